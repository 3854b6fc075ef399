package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/docindex/api/handlers"
	"github.com/meghashyamc/docindex/db/termindex"
	"github.com/meghashyamc/docindex/logger"
	"github.com/meghashyamc/docindex/metrics"
	"github.com/meghashyamc/docindex/services/index"
	"github.com/meghashyamc/docindex/services/search"
	"github.com/meghashyamc/docindex/validation"
)

type routeDependencies struct {
	logger        logger.Logger
	indexService  *index.Service
	searchService *search.Service
	validator     *validation.Validator
	metrics       *metrics.Metrics
	mode          termindex.Mode
	partial       bool
}

func setupRoutes(router *gin.Engine, deps routeDependencies) {
	router.GET("/health", health())
	router.GET("/metrics", gin.WrapH(deps.metrics.Handler()))

	handlers.SetupIndex(router, deps.logger, deps.indexService, deps.validator)
	handlers.SetupSearch(router, deps.logger, deps.searchService, deps.validator, handlers.SearchDefaults{
		Mode:    deps.mode,
		Partial: deps.partial,
	})
	handlers.SetupObjects(router, deps.logger, deps.searchService, deps.validator)

}

func health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	}
}

func newRouter(m *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.UseRawPath = true
	router.Use(_CORSMiddleware())
	router.Use(gin.Recovery())
	router.Use(metricsMiddleware(m))

	return router
}
