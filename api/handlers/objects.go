package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/docindex/logger"
	"github.com/meghashyamc/docindex/services/search"
	"github.com/meghashyamc/docindex/validation"
)

type FindObjectsRequest struct {
	Query string `form:"query" json:"query" validate:"required,valid_query,max=1000"`
	Limit int    `form:"limit" json:"limit" validate:"min=0,max=100"`
}

func SetupObjects(router *gin.Engine, logger logger.Logger, service *search.Service, validator *validation.Validator) {
	router.GET("/objects", handleFindObjects(service, logger, validator))
	router.GET("/objects/:name", handleGetObject(service, logger))
	router.GET("/documents/:id", handleGetDocument(service, logger))
}

func handleFindObjects(service *search.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := FindObjectsRequest{}
		if err := c.ShouldBindQuery(&request); err != nil {
			logger.Warn("could not extract expected params from objects request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request query parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate objects request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		objects, err := service.FindObjects(request.Query, request.Limit)
		if err != nil {
			logger.Error("object search failed", "err", err.Error())
			writeError(c, err)
			return
		}

		writeResponse(c, objects, http.StatusOK, nil)
	}
}

func handleGetObject(service *search.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		object, err := service.Object(c.Param("name"))
		if err != nil {
			logger.Warn("could not get object", "name", c.Param("name"), "err", err.Error())
			writeError(c, err)
			return
		}

		writeResponse(c, object, http.StatusOK, nil)
	}
}

func handleGetDocument(service *search.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{"document id must be an integer"})
			return
		}

		document, err := service.Document(id)
		if err != nil {
			logger.Warn("could not get document", "id", id, "err", err.Error())
			writeError(c, err)
			return
		}

		writeResponse(c, document, http.StatusOK, nil)
	}
}
