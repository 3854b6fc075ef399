package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/docindex/services/index"
	"github.com/meghashyamc/docindex/services/search"
)

const HeaderPaginationTotalCount = "X-Pagination-Total-Count"

type response struct {
	Data   any      `json:"data"`
	Errors []string `json:"errors"`
}

func writeResponse(c *gin.Context, data interface{}, statusCode int, errors []string) {

	if statusCode == http.StatusNoContent {
		c.JSON(statusCode, nil)
		return

	}

	response := response{
		Data:   data,
		Errors: errors,
	}

	c.JSON(statusCode, response)
}

type Pagination struct {
	CurrentPage  int  `json:"current_page"`
	PageSize     int  `json:"page_size"`
	TotalPages   int  `json:"total_pages"`
	HasNextPage  bool `json:"has_next_page"`
	HasPrevPage  bool `json:"has_prev_page"`
	TotalResults int  `json:"total_results"`
}

func calculatePagination(total, limit, offset int) Pagination {
	pageSize := limit
	currentPage := (offset / limit) + 1
	totalPages := (total + pageSize - 1) / pageSize

	if totalPages == 0 {
		totalPages = 1
	}

	return Pagination{
		CurrentPage:  currentPage,
		PageSize:     pageSize,
		TotalPages:   totalPages,
		HasNextPage:  currentPage < totalPages,
		HasPrevPage:  currentPage > 1,
		TotalResults: total,
	}
}

// statusForError maps service errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, index.ErrNoSnapshot), errors.Is(err, index.ErrServiceStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, index.ErrLoadInProgress):
		return http.StatusConflict
	case errors.Is(err, search.ErrTermNotFound),
		errors.Is(err, search.ErrObjectNotFound),
		errors.Is(err, search.ErrDocumentNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	c.Abort()
	writeResponse(c, nil, statusForError(err), []string{err.Error()})
}
