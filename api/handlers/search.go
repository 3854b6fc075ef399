package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/docindex/db/searchdb"
	"github.com/meghashyamc/docindex/db/termindex"
	"github.com/meghashyamc/docindex/logger"
	"github.com/meghashyamc/docindex/services/search"
	"github.com/meghashyamc/docindex/validation"
)

const defaultResultsPerPage = 20

// SearchDefaults apply when a request leaves mode or partial unset.
type SearchDefaults struct {
	Mode    termindex.Mode
	Partial bool
}

type SearchRequest struct {
	Query   string `form:"query" json:"query" validate:"required,valid_query,min=1,max=1000"`
	Mode    string `form:"mode" json:"mode" validate:"valid_mode"`
	Partial string `form:"partial" json:"partial"`
	PerPage int    `form:"per_page" json:"per_page" validate:"min=0,max=100"`
	Page    int    `form:"page" json:"page" validate:"min=0,max=10000"`
}

func (r *SearchRequest) setDefaults() {
	if r.PerPage == 0 {
		r.PerPage = defaultResultsPerPage
	}

	if r.Page == 0 {
		r.Page = 1
	}
}

type SearchResponse struct {
	Documents   []termindex.Hit       `json:"documents"`
	Objects     []termindex.ObjectHit `json:"objects"`
	Generation  string                `json:"generation"`
	SearchTime  string                `json:"search_time"`
	PageDetails Pagination            `json:"page_details"`
}

type SuggestRequest struct {
	Query string `form:"query" json:"query" validate:"required,valid_query,max=200"`
	Limit int    `form:"limit" json:"limit" validate:"min=0,max=100"`
}

func SetupSearch(router *gin.Engine, logger logger.Logger, service *search.Service, validator *validation.Validator, defaults SearchDefaults) {
	router.GET("/search", handleSearch(service, logger, validator, defaults))
	router.GET("/terms/:term", handleLookup(service, logger))
	router.GET("/suggest", handleSuggest(service, logger, validator))
	router.GET("/stats", handleStats(service, logger))
}

func handleSearch(service *search.Service, logger logger.Logger, validator *validation.Validator, defaults SearchDefaults) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SearchRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request query parameters"})
			return
		}
		request.setDefaults()

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate search request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		mode := defaults.Mode
		if request.Mode != "" {
			// valid_mode has already accepted it
			mode, _ = termindex.ParseMode(request.Mode)
		}

		partial := defaults.Partial
		if request.Partial != "" {
			var err error
			if partial, err = strconv.ParseBool(request.Partial); err != nil {
				c.Abort()
				writeResponse(c, nil, http.StatusNotAcceptable, []string{"invalid partial, expected a boolean"})
				return
			}
		}

		limit := request.PerPage
		offset := (request.Page - 1) * request.PerPage
		results, err := service.Search(c.Request.Context(), search.Request{
			Query:   request.Query,
			Mode:    mode,
			Partial: partial,
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			logger.Error("search failed", "err", err.Error())
			writeError(c, err)
			return
		}

		c.Header(HeaderPaginationTotalCount, strconv.Itoa(results.Total))
		writeResponse(c, SearchResponse{
			Documents:   results.Documents,
			Objects:     results.Objects,
			Generation:  results.Generation,
			SearchTime:  results.SearchTime,
			PageDetails: calculatePagination(results.Total, limit, offset),
		}, http.StatusOK, nil)
	}
}

func handleLookup(service *search.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := service.Lookup(c.Param("term"))
		if err != nil {
			logger.Warn("term lookup failed", "term", c.Param("term"), "err", err.Error())
			writeError(c, err)
			return
		}
		if len(result.Documents) == 0 {
			writeError(c, fmt.Errorf("%w: %s", search.ErrTermNotFound, result.Term))
			return
		}

		writeResponse(c, result, http.StatusOK, nil)
	}
}

func handleSuggest(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := SuggestRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from suggest request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request query parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate suggest request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		suggestions, err := service.Suggest(request.Query, request.Limit)
		if err != nil {
			logger.Error("suggest failed", "err", err.Error())
			writeError(c, err)
			return
		}
		if suggestions.Results == nil {
			suggestions.Results = []searchdb.Result{}
		}

		writeResponse(c, suggestions, http.StatusOK, nil)
	}
}

func handleStats(service *search.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := service.Stats()
		if err != nil {
			logger.Warn("could not get index stats", "err", err.Error())
			writeError(c, err)
			return
		}

		writeResponse(c, stats, http.StatusOK, nil)
	}
}
