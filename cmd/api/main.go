package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mindwell-health/practice-platform/cmd/mainconfig"
	"github.com/mindwell-health/practice-platform/internal/absence"
	"github.com/mindwell-health/practice-platform/internal/api/router"
	"github.com/mindwell-health/practice-platform/internal/catalog"
	"github.com/mindwell-health/practice-platform/internal/collision"
	appconfig "github.com/mindwell-health/practice-platform/internal/config"
	"github.com/mindwell-health/practice-platform/internal/directory"
	"github.com/mindwell-health/practice-platform/internal/forms"
	"github.com/mindwell-health/practice-platform/internal/notify"
	"github.com/mindwell-health/practice-platform/internal/observability/metrics"
	"github.com/mindwell-health/practice-platform/internal/schedule"
	"github.com/mindwell-health/practice-platform/internal/therapy"
	"github.com/mindwell-health/practice-platform/pkg/logging"
)

func main() {
	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel, cfg.Env)
	logger.Info("starting practice-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Initialize repositories and stores. Without a database URL everything
	// runs on in-memory implementations, which is enough for local work.
	var (
		repo         therapy.Repository
		catalogStore catalog.Store
		dir          directory.Directory
		absenceStore absence.Store
		byService    forms.RuleSource
		byTarget     forms.RuleSource
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo = therapy.NewPostgresRepository(pool)
		catalogStore = catalog.NewPostgresStore(pool)
		dir = directory.NewPostgresDirectory(pool)
		absenceStore = absence.NewPostgresStore(pool)
		byService = forms.NewPostgresServiceSource(pool)
		byTarget = forms.NewPostgresTargetSource(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		repo = therapy.NewInMemoryRepository()
		catalogStore = catalog.NewMemoryStore()
		dir = directory.NewMemoryDirectory()
		absenceStore = absence.NewMemoryStore()
		byService = forms.NewServiceMemorySource()
		byTarget = forms.NewTargetMemorySource()
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		catalogStore = catalog.NewCachedStore(catalogStore, rdb, cfg.CatalogCacheTTL, logger)
	}

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	// Notification queue and outbound email
	var queue notify.Queue
	if cfg.UseMemoryQueue || cfg.NotifyQueueURL == "" {
		queue = notify.NewMemoryQueue(256)
	} else {
		queue = notify.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL)
	}

	var sender notify.EmailSender
	switch {
	case cfg.SendGridAPIKey != "":
		sender = notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
	case cfg.EmailFrom != "":
		sender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
	default:
		logger.Warn("no email sender configured, using stub")
		sender = notify.NewStubEmailSender(logger)
	}

	m := metrics.NewSchedulingMetrics(nil)

	notifier := notify.NewService(notify.ServiceParams{
		Queue:      queue,
		Directory:  dir,
		AdminEmail: cfg.AdminEmail,
		Metrics:    m,
		Logger:     logger,
	})

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	dispatcher := notify.NewDispatcher(queue, sender, m, logger)
	for i := 0; i < cfg.WorkerCount; i++ {
		go func() {
			if err := dispatcher.Run(workerCtx); err != nil {
				logger.Error("notify dispatcher stopped", "error", err)
			}
		}()
	}

	// Scheduling core
	generator := schedule.NewGenerator(catalogStore, logger)
	detector := collision.NewDetector(repo, collision.Config{
		PeriodMinutes: cfg.SessionPeriodMinutes,
		BreakMinutes:  cfg.SessionBreakMinutes,
	})
	rules := forms.NewModalSource(cfg.FormRuleMode, byService, byTarget)

	therapyService := therapy.NewService(therapy.ServiceParams{
		Repo:          repo,
		Catalog:       catalogStore,
		Directory:     dir,
		Generator:     generator,
		Detector:      detector,
		Rules:         rules,
		DischargeCode: cfg.DischargeServiceCode,
		Notifier:      notifier,
		Metrics:       m,
		Logger:        logger,
	})

	rescheduler := absence.NewRescheduler(repo, catalogStore, logger)
	absenceService := absence.NewService(absence.ServiceParams{
		Store:       absenceStore,
		Rescheduler: rescheduler,
		Notifier:    notifier,
		Metrics:     m,
		MinDays:     cfg.AbsenceMinDays,
		Logger:      logger,
	})

	sweeper := absence.NewSweeper(absenceStore, repo, logger)
	scheduler, err := sweeper.Start(cfg.AbsenceSweepInterval)
	if err != nil {
		logger.Error("failed to start absence sweep", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	// Initialize handlers
	therapyHandler := therapy.NewHandler(therapyService, logger)
	absenceHandler := absence.NewHandler(absenceService, logger)

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		TherapyHandler:     therapyHandler,
		AbsenceHandler:     absenceHandler,
		MetricsHandler:     promhttp.Handler(),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSOrigins,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopWorkers()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
