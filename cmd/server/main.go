package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fundmatch/backend/config"
	"github.com/fundmatch/backend/internal/announcements"
	"github.com/fundmatch/backend/internal/cachewarm"
	"github.com/fundmatch/backend/internal/engagement"
	"github.com/fundmatch/backend/internal/explain"
	"github.com/fundmatch/backend/internal/matching"
	"github.com/fundmatch/backend/internal/metrics"
	"github.com/fundmatch/backend/internal/middleware"
	"github.com/fundmatch/backend/internal/organizations"
	"github.com/fundmatch/backend/internal/quota"
	"github.com/fundmatch/backend/internal/scoring"
	"github.com/fundmatch/backend/internal/subscriptions"
	"github.com/fundmatch/backend/pkg/database"
	"github.com/fundmatch/backend/pkg/queue"
	redispkg "github.com/fundmatch/backend/pkg/redis"
)

func newLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func main() {
	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("postgres connect failed", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	rdb, err := redispkg.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis connect failed", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories.
	orgRepo := organizations.NewRepository(pool)
	annRepo := announcements.NewRepository(pool)
	subRepo := subscriptions.NewRepository(pool)
	matchRepo := matching.NewRepository(pool)
	engageRepo := engagement.NewRepository(pool)
	metricsRepo := metrics.NewRepository(pool)

	invalidations := queue.NewQueue(rdb.Client, logger)

	// Scoring and generation.
	scoringCfg := scoring.FromApp(cfg.Scoring)
	quotaSvc := quota.NewService(quota.NewRedisCounter(rdb.Client), cfg.Quota.FreeMonthlyLimit)
	matchSvc := matching.NewService(orgRepo, annRepo, subRepo, quotaSvc, matchRepo, scoringCfg, logger)

	// Explanations.
	var generator explain.Generator
	if cfg.Gemini.APIKey != "" {
		g, err := explain.NewGeminiGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			logger.Fatal("gemini init failed", zap.Error(err))
		}
		generator = g
		logger.Info("explanation provider enabled", zap.String("model", cfg.Gemini.Model))
	} else {
		logger.Warn("no GEMINI_API_KEY set, explanations fall back to templates")
	}
	breaker := explain.NewBreaker(
		cfg.Breaker.FailureThreshold,
		time.Duration(cfg.Breaker.CooldownSec)*time.Second,
		time.Duration(cfg.Breaker.MaxCooldownSec)*time.Second,
	)
	explainStore := explain.NewRedisStore(rdb.Client, time.Duration(cfg.Cache.ExplanationTTLHours)*time.Hour)
	budget := explain.NewDailyBudget(rdb.Client, cfg.Gemini.DailyCallLimit)
	explainSvc := explain.NewService(explainStore, budget, breaker, generator,
		time.Duration(cfg.Gemini.TimeoutSec)*time.Second, scoringCfg.Name(), logger)

	// Warming and metrics.
	warmController := cachewarm.NewController(orgRepo, orgRepo, matchRepo, annRepo, explainSvc,
		cfg.Metrics.K,
		time.Duration(cfg.Cache.SmartWindowDays)*24*time.Hour,
		time.Duration(cfg.Cache.FullWindowDays)*24*time.Hour,
		time.Duration(cfg.Cache.WarmTimeoutSec)*time.Second,
		cfg.Cache.WarmMaxOrgs, logger)
	metricsSvc := metrics.NewService(metricsRepo, cfg.Metrics.K, cfg.Metrics.MinSampleSize, cfg.Metrics.WindowDays, logger)

	// Handlers.
	orgHandler := organizations.NewHandler(orgRepo, invalidations, logger)
	annHandler := announcements.NewHandler(annRepo, invalidations, logger)
	matchHandler := matching.NewHandler(matchSvc, matchRepo, explainSvc, annRepo, orgRepo, logger)
	engageHandler := engagement.NewHandler(engageRepo, logger)
	metricsHandler := metrics.NewHandler(metricsSvc, logger)
	warmHandler := cachewarm.NewHandler(warmController, logger)
	invalidateHandler := explain.NewAdminHandler(explainSvc, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		orgs := api.Group("/organizations")
		{
			orgs.GET("/:id", orgHandler.GetProfile)
			orgs.PUT("/:id", orgHandler.UpdateProfile)
			orgs.POST("/:id/matches", matchHandler.Generate)
			orgs.GET("/:id/matches", matchHandler.List)
		}

		anns := api.Group("/announcements")
		{
			anns.GET("/:id", annHandler.GetByID)
			anns.POST("/:id/reclassify", annHandler.Reclassify)
		}

		matches := api.Group("/matches")
		{
			matches.GET("/:id/explanation", matchHandler.GetExplanation)
			matches.POST("/:id/save", engageHandler.Save)
			matches.POST("/:id/view", engageHandler.View)
		}

		admin := api.Group("/admin")
		{
			admin.GET("/metrics", metricsHandler.Report)
			admin.POST("/cache/warm", warmHandler.Warm)
			admin.POST("/invalidate/organizations/:id", invalidateHandler.InvalidateOrganization)
			admin.POST("/invalidate/announcements/:id", invalidateHandler.InvalidateAnnouncement)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
