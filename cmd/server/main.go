// Package main - точка входа сервера FinSight Progression.
//
// Философия: прогрессия должна учить, а не удерживать. Движок наблюдает
// за поведением ученика, оценивает этап обучения и адаптирует интерфейс
// так, чтобы подсказки исчезали ровно тогда, когда перестают быть нужны.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries/Sagas)
// - Infrastructure: реализация репозиториев, кеши, шина событий
// - Interface: REST API handlers
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/finsight-hub/finsight-progression/config"

	// Application layer
	"github.com/finsight-hub/finsight-progression/internal/application/command"
	"github.com/finsight-hub/finsight-progression/internal/application/eventhandler"
	"github.com/finsight-hub/finsight-progression/internal/application/query"
	"github.com/finsight-hub/finsight-progression/internal/application/saga"

	// Domain layer
	"github.com/finsight-hub/finsight-progression/internal/domain/behavior"
	"github.com/finsight-hub/finsight-progression/internal/domain/notification"
	"github.com/finsight-hub/finsight-progression/internal/domain/progress"
	"github.com/finsight-hub/finsight-progression/internal/domain/shared"
	"github.com/finsight-hub/finsight-progression/internal/domain/stage"

	// Infrastructure layer
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/messaging"
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/metrics"
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/persistence/memory"
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/persistence/postgres"
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/persistence/redis"
	"github.com/finsight-hub/finsight-progression/internal/infrastructure/service"

	// Interface layer
	httpserver "github.com/finsight-hub/finsight-progression/internal/interface/http"
	"github.com/finsight-hub/finsight-progression/internal/interface/http/handlers"

	// Packages
	"github.com/finsight-hub/finsight-progression/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting FinSight Progression",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Bool("debug", cfg.App.Debug),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (опционально в development)
	// ─────────────────────────────────────────────────────────────────────────
	var dbConn *postgres.Connection
	var progressStore progress.Store
	var notificationRepo notification.Repository

	if cfg.Database.URL != "" {
		log.Info("connecting to database...")
		dbConn, err = postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection...")
			dbConn.Close()
		}()

		if err := dbConn.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		log.Info("database connection established")

		// ───────────────────────────────────────────────────────────────────
		// 4. ЗАПУСК МИГРАЦИЙ
		// ───────────────────────────────────────────────────────────────────
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(dbConn)
		if err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		status, err := migrator.Status(ctx)
		if err != nil {
			log.Warn("failed to get migration status", logger.Err(err))
		} else {
			applied := 0
			for _, m := range status {
				if m.IsApplied {
					applied++
				}
			}
			log.Info("migrations completed",
				logger.Int("applied", applied),
				logger.Int("total", len(status)),
			)
		}

		progressStore = postgres.NewProgressRepository(dbConn)
		notificationRepo = postgres.NewNotificationRepository(dbConn)
	} else {
		// Без базы движок работает на in-memory хранилищах: прогресс
		// живёт до рестарта. Годится только для локальной разработки.
		log.Warn("DATABASE_URL not set, using in-memory stores")
		progressStore = memory.NewProgressStore()
		notificationRepo = memory.NewNotificationRepository()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ИНИЦИАЛИЗАЦИЯ REDIS (или in-memory фолбэк)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	var eventLog behavior.EventLogStore
	var startMarks behavior.StartMarkStore
	var assessmentCache query.AssessmentCache

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisCache.Close()

		eventLog = redis.NewEventLogStore(redisCache, cfg.Tracking.RetentionWindow)
		startMarks = redis.NewStartMarkStore(redisCache, cfg.Tracking.MaxInteractionDuration)
		if cfg.Features.IsEnabled(config.FeatureAssessmentCache, nil) {
			assessmentCache = redis.NewAssessmentCache(redisCache)
		}
		log.Info("Redis connection established")
	} else {
		log.Warn("Redis disabled, using in-memory event log (single instance only)")
		eventLog = memory.NewEventLogStore(cfg.Tracking.RetentionWindow)
		startMarks = memory.NewStartMarkStore()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. МЕТРИКИ
	// ─────────────────────────────────────────────────────────────────────────
	var promMetrics *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		promMetrics = metrics.New()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ИНИЦИАЛИЗАЦИЯ EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	eventBusConfig := messaging.DefaultInMemoryEventBusConfig()
	eventBusConfig.Logger = log
	eventBusConfig.Metrics = promMetrics
	eventBusConfig.AsyncMode = cfg.Features.IsEnabled(config.FeatureExperimentalAsyncEvents, nil)
	eventBus := messaging.NewInMemoryEventBus(eventBusConfig)
	if promMetrics != nil {
		if err := eventBus.SubscribeAll(promMetrics.EventRecorder()); err != nil {
			return fmt.Errorf("subscribe metrics recorder: %w", err)
		}
	}
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ДОМЕННЫЕ СЕРВИСЫ
	// ─────────────────────────────────────────────────────────────────────────
	pseudonymizer := service.NewPseudonymizer([]byte(cfg.Tracking.PseudonymizerKey))
	engine := stage.NewEngine(stage.DefaultEngineConfig())

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER (Commands, Queries, Sagas)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	achievementFlow := saga.NewAchievementFlowSaga(
		progressStore,
		eventLog,
		engine,
		eventBus,
		log,
		saga.AchievementFlowConfig{
			EnableBadges:      cfg.Features.IsEnabled(config.FeatureGamificationBadges, nil),
			UseCompareAndSwap: cfg.Features.IsEnabled(config.FeatureExperimentalCASUpsert, nil),
			MaxBadgesPerRun:   cfg.Gamification.MaxBadgesPerRun,
		},
	)

	trackInteractionCmd := command.NewTrackInteractionHandler(
		eventLog,
		startMarks,
		pseudonymizer,
		achievementFlow,
		eventBus,
		log,
		command.TrackInteractionHandlerConfig{
			MaxDuration: cfg.Tracking.MaxInteractionDuration,
		},
	)

	updateMetricsCmd := command.NewUpdateMetricsHandler(progressStore, eventBus, log)

	assessmentQuery := query.NewGetStageAssessmentHandler(
		eventLog,
		engine,
		assessmentCache,
		eventBus,
		log,
		query.GetStageAssessmentHandlerConfig{
			CacheTTL:         cfg.Assessment.CacheTTL,
			StaleAfterEvents: cfg.Assessment.StaleAfterEvents,
		},
	)

	contentConfigQuery := query.NewGetContentConfigHandler(
		assessmentQuery,
		log,
		cfg.Features.IsEnabled(config.FeatureAdaptationContent, nil),
	)

	stageProgressQuery := query.NewGetStageProgressHandler(assessmentQuery)
	learnerProgressQuery := query.NewGetLearnerProgressHandler(progressStore, notificationRepo, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 10. РЕГИСТРАЦИЯ EVENT HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("registering event handlers...")

	if cfg.Features.IsEnabled(config.FeatureNotifyBadgeUnlocked, nil) {
		onBadgeUnlocked := eventhandler.NewOnBadgeUnlockedHandler(notificationRepo, log)
		if err := eventBus.Subscribe(shared.EventBadgeUnlocked, onBadgeUnlocked.Handle); err != nil {
			return fmt.Errorf("failed to subscribe badge handler: %w", err)
		}
	}

	if cfg.Features.IsEnabled(config.FeatureNotifyStreakBroken, nil) {
		onStreakBroken := eventhandler.NewOnStreakBrokenHandler(notificationRepo, log)
		if err := eventBus.Subscribe(shared.EventDailyStreakBroken, onStreakBroken.Handle); err != nil {
			return fmt.Errorf("failed to subscribe streak handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	if dbConn != nil {
		healthChecker.AddCheck("database", handlers.NewDatabaseCheck(dbConn))
	}
	if redisCache != nil {
		healthChecker.AddCheck("cache", handlers.NewCacheCheck(redisCache))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 12. СОЗДАНИЕ HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing HTTP server...")

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.EnableCORS = cfg.HTTP.EnableCORS
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.EnableMetrics = cfg.Observability.MetricsEnabled
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpConfig.APIKeyHeader = cfg.HTTP.APIKeyHeader
	httpConfig.APIKeys = cfg.HTTP.APIKeys

	httpDeps := httpserver.Dependencies{
		TrackInteractionHandler:   trackInteractionCmd,
		UpdateMetricsHandler:      updateMetricsCmd,
		GetStageAssessmentHandler: assessmentQuery,
		GetContentConfigHandler:   contentConfigQuery,
		GetStageProgressHandler:   stageProgressQuery,
		GetLearnerProgressHandler: learnerProgressQuery,
		Notifications:             notificationRepo,
		Logger:                    log,
		Metrics:                   promMetrics,
		HealthChecker:             healthChecker,
	}

	httpServer := httpserver.NewServer(httpConfig, httpDeps)

	// ─────────────────────────────────────────────────────────────────────────
	// 13. ЗАПУСК СЕРВИСОВ
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)

	go func() {
		log.Info("starting HTTP server", logger.String("address", httpServer.Address()))
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 14. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("FinSight Progression is running",
		logger.String("http_address", httpServer.Address()),
		logger.Bool("metrics", cfg.Observability.MetricsEnabled),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	}

	log.Info("starting graceful shutdown...",
		logger.String("timeout", cfg.App.ShutdownTimeout.String()),
	)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	// Event bus, Redis и база данных закроются через defer

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = parseLogLevel(cfg.Observability.LogLevel)

	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}

	return logger.New(opts)
}

// parseLogLevel разбирает уровень логирования из конфигурации.
func parseLogLevel(level string) logger.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logger.LevelDebug
	case "warn", "warning":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}
