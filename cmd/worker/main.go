package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fundmatch/backend/config"
	"github.com/fundmatch/backend/internal/announcements"
	"github.com/fundmatch/backend/internal/cachewarm"
	"github.com/fundmatch/backend/internal/explain"
	"github.com/fundmatch/backend/internal/matching"
	"github.com/fundmatch/backend/internal/metrics"
	"github.com/fundmatch/backend/internal/organizations"
	"github.com/fundmatch/backend/internal/scoring"
	"github.com/fundmatch/backend/internal/worker"
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

	rdb, err := redispkg.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis connect failed", zap.Error(err))
	}
	defer rdb.Close()

	orgRepo := organizations.NewRepository(pool)
	annRepo := announcements.NewRepository(pool)
	matchRepo := matching.NewRepository(pool)
	metricsRepo := metrics.NewRepository(pool)

	scoringCfg := scoring.FromApp(cfg.Scoring)

	var generator explain.Generator
	if cfg.Gemini.APIKey != "" {
		g, err := explain.NewGeminiGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			logger.Fatal("gemini init failed", zap.Error(err))
		}
		generator = g
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

	warmController := cachewarm.NewController(orgRepo, orgRepo, matchRepo, annRepo, explainSvc,
		cfg.Metrics.K,
		time.Duration(cfg.Cache.SmartWindowDays)*24*time.Hour,
		time.Duration(cfg.Cache.FullWindowDays)*24*time.Hour,
		time.Duration(cfg.Cache.WarmTimeoutSec)*time.Second,
		cfg.Cache.WarmMaxOrgs, logger)
	metricsSvc := metrics.NewService(metricsRepo, cfg.Metrics.K, cfg.Metrics.MinSampleSize, cfg.Metrics.WindowDays, logger)

	invalidations := queue.NewQueue(rdb.Client, logger)
	w := worker.New(invalidations, explainSvc, warmController, metricsSvc, logger)

	cronRunner, err := w.StartCron(ctx)
	if err != nil {
		logger.Fatal("cron start failed", zap.Error(err))
	}

	go w.RunConsumer(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	cronCtx := cronRunner.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("cron jobs did not finish before shutdown deadline")
	}
	logger.Info("worker stopped")
}
