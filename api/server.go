package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/docindex/config"
	"github.com/meghashyamc/docindex/db/kvdb"
	"github.com/meghashyamc/docindex/db/searchdb"
	"github.com/meghashyamc/docindex/db/termindex"
	"github.com/meghashyamc/docindex/logger"
	"github.com/meghashyamc/docindex/metrics"
	"github.com/meghashyamc/docindex/services/index"
	"github.com/meghashyamc/docindex/services/search"
	"github.com/meghashyamc/docindex/validation"
)

type server struct {
	cfg           *config.Config
	router        *gin.Engine
	httpServer    *http.Server
	kvdb          kvdb.DB
	searchdb      searchdb.DB
	cache         search.Cache
	indexService  *index.Service
	searchService *search.Service
	validator     *validation.Validator
	metrics       *metrics.Metrics
	logger        logger.Logger
}

func Run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)

	defer cancel()

	s := &server{
		cfg:     cfg,
		logger:  logger.New(cfg.GetLogLevel()),
		metrics: metrics.New(),
	}
	if err := s.setupDependencies(ctx); err != nil {
		return err
	}
	s.loadInitialIndex(ctx)
	s.setupRouter()
	s.setupHTTPServer()
	s.setupGracefulShutdown(ctx)

	return nil
}

func (s *server) setupDependencies(ctx context.Context) error {
	var err error
	s.kvdb, err = kvdb.New(s.logger, s.cfg)
	if err != nil {
		s.logger.Error("error creating kvDB", "err", err.Error())
		return err
	}
	s.searchdb = searchdb.New(s.logger)
	s.validator, err = validation.New(s.logger)
	if err != nil {
		s.logger.Error("error creating validator", "err", err.Error())
		return err
	}

	s.cache = search.NewNoopCache()
	if redisAddr := s.cfg.GetRedisAddr(); redisAddr != "" {
		redisCache, err := search.NewRedisCache(ctx, s.logger, redisAddr, s.cfg.GetCacheTTL(), s.metrics)
		if err != nil {
			s.logger.Warn("query cache disabled, could not connect to redis", "addr", redisAddr, "err", err.Error())
		} else {
			s.cache = redisCache
		}
	}

	s.indexService = index.New(ctx, s.logger, s.searchdb, s.kvdb, s.metrics, s.cfg.GetMaxLoadTime())
	s.searchService = search.New(s.logger, s.indexService, s.searchdb, s.cache, s.metrics)

	return nil

}

// loadInitialIndex makes the configured payload live before serving. The
// server still starts without it and answers 503 until an index is loaded.
func (s *server) loadInitialIndex(ctx context.Context) {
	payloadPath := s.cfg.GetPayloadPath()
	if payloadPath == "" {
		s.logger.Info("no index.payload_path configured, waiting for POST /index")
		return
	}

	if _, err := s.indexService.LoadSync(ctx, payloadPath); err != nil {
		s.logger.Error("could not load configured search index", "path", payloadPath, "err", err.Error())
	}
}

func (s *server) setupRouter() {
	router := newRouter(s.metrics)

	router.Use(loggingMiddleware(s.logger))

	mode, err := termindex.ParseMode(s.cfg.GetDefaultMode())
	if err != nil {
		s.logger.Warn("invalid search.default_mode, using and", "mode", s.cfg.GetDefaultMode())
		mode = termindex.ModeAnd
	}

	setupRoutes(router, routeDependencies{
		logger:        s.logger,
		indexService:  s.indexService,
		searchService: s.searchService,
		validator:     s.validator,
		metrics:       s.metrics,
		mode:          mode,
		partial:       s.cfg.GetPartialMatching(),
	})

	s.router = router
}

func (s *server) setupHTTPServer() {

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", s.cfg.GetPort()),
		Handler: s.router.Handler(),
	}
	s.httpServer = httpServer
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()
	s.logger.Info("http server started", "port", s.cfg.GetPort())
}

func (s *server) setupGracefulShutdown(ctx context.Context) {

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		s.logger.Info("starting to shut down http server")
		shutdownCtx := context.Background()
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error shutting down http server", "err", err)
			return
		}
		s.cache.Close()
		s.kvdb.Close()
		s.searchdb.Close()
		s.logger.Info("shut down http server successfully")
	}()

	wg.Wait()
}
