package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meghashyamc/docindex/db/kvdb"
	"github.com/meghashyamc/docindex/logger"
	"github.com/meghashyamc/docindex/services/index"
	"github.com/meghashyamc/docindex/validation"
)

type IndexRequest struct {
	Path string `json:"path" validate:"required,abs_path,existing_path,payload_path"`
}

type IndexResponse struct {
	ID string `json:"id"`
}

type IndexStatusResponse struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}

func SetupIndex(router *gin.Engine, logger logger.Logger, service *index.Service, validator *validation.Validator) {
	router.POST("/index", handleIndex(service, logger, validator))
	router.GET("/index/history", handleGetIndexHistory(service, logger))
	router.GET("/index/:id", handleGetIndexStatus(service, logger))
}

func handleIndex(service *index.Service, logger logger.Logger, validator *validation.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		request := IndexRequest{}
		if err := c.ShouldBindJSON(&request); err != nil {
			logger.Warn("could not extract expected params from index request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusUnprocessableEntity, []string{"failed to extract request body parameters"})
			return
		}

		if err := validator.Validate(request); err != nil {
			logger.Warn("could not validate request", "err", err.Error())
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{err.Error()})
			return
		}

		requestID := uuid.New().String()
		if err := service.Load(request.Path, requestID); err != nil {
			logger.Warn("could not load index", "err", err.Error())
			writeError(c, err)
			return
		}

		writeResponse(c, IndexResponse{ID: requestID}, http.StatusAccepted, nil)
	}
}

func handleGetIndexStatus(service *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Param("id")
		if _, err := uuid.Parse(requestID); err != nil {
			c.Abort()
			writeResponse(c, nil, http.StatusNotAcceptable, []string{"invalid request id"})
			return
		}

		status, err := service.Status(requestID)
		if err != nil {
			if errors.Is(err, kvdb.ErrNotFound) {
				c.Abort()
				writeResponse(c, nil, http.StatusNotFound, []string{"request not found"})
				return
			}
			logger.Error("could not get index status", "request_id", requestID, "err", err.Error())
			writeError(c, err)
			return
		}

		data := IndexStatusResponse{ID: requestID, Status: status}
		switch status {
		case index.ProgressStatusComplete:
			writeResponse(c, data, http.StatusOK, nil)
		case index.ProgressStatusFailed:
			writeResponse(c, data, http.StatusInternalServerError, []string{"index load failed"})
		default:
			writeResponse(c, data, http.StatusAccepted, nil)
		}
	}
}

func handleGetIndexHistory(service *index.Service, logger logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := service.History()
		if err != nil {
			logger.Error("could not get index history", "err", err.Error())
			writeError(c, err)
			return
		}

		writeResponse(c, history, http.StatusOK, nil)
	}
}
