package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/customerpulse/pulse/internal/alerts"
	"github.com/customerpulse/pulse/internal/api"
	"github.com/customerpulse/pulse/internal/config"
	"github.com/customerpulse/pulse/internal/health"
	"github.com/customerpulse/pulse/internal/intelligence"
	"github.com/customerpulse/pulse/internal/llm"
	"github.com/customerpulse/pulse/internal/lock"
	"github.com/customerpulse/pulse/internal/models"
	"github.com/customerpulse/pulse/internal/notifications"
	"github.com/customerpulse/pulse/internal/scheduler"
	"github.com/customerpulse/pulse/internal/secrets"
	"github.com/customerpulse/pulse/internal/storage"
	"github.com/customerpulse/pulse/internal/store"
)

type closableStore interface {
	store.Store
	Close()
}

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting customer pulse")

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	var cipher secrets.Cipher
	if cfg.SecretKey != "" {
		if cipher, err = secrets.New(cfg.SecretKey); err != nil {
			logrus.Fatalf("Failed to initialize credential encryption: %v", err)
		}
	}

	if err := bootstrapProvider(ctx, cfg, st, cipher); err != nil {
		logrus.Fatalf("Failed to store text analyzer configuration: %v", err)
	}

	analyzers := llm.Fixed(nil)
	if cipher != nil {
		analyzers = llm.NewResolver(st, cipher).WithBaseURL(cfg.LLMProvider, cfg.LLMBaseURL)
	} else {
		logrus.Warn("SECRET_KEY not set, deep analysis and assessments will degrade")
	}

	locker, err := openLocker(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize locks: %v", err)
	}

	archive, err := openArchive(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize report archive: %v", err)
	}

	opts := alerts.Options{
		Workers: cfg.DailyJobWorkers,
		Storage: archive,
	}
	if notifier := notifications.NewService(cfg); notifier.Enabled() {
		opts.Notifier = notifier
	} else {
		logrus.Info("No notification channel configured, run digests disabled")
	}

	calculator := health.NewCalculator(st, health.NewGenerator(analyzers))
	alertService := alerts.NewService(st, calculator, alerts.NewGenerator(), locker, opts)

	schedulerService := scheduler.NewService(cfg.DailyJobSchedule, cfg.Location(), cfg.DailyJobTimeout, alertService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}

	handler := &api.Handler{
		Store:      st,
		Processor:  intelligence.NewService(st, analyzers, calculator),
		Calculator: calculator,
		Jobs:       schedulerService,
		Metrics:    alertService,
		Storage:    archive,
		Cipher:     cipher,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}
	schedulerService.Stop(shutdownCtx)

	logrus.Info("Server exited")
}

func openStore(ctx context.Context, cfg *config.Config) (closableStore, error) {
	if cfg.DatabaseURL == "" {
		logrus.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewMemory(), nil
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, int32(cfg.DatabaseMaxConns))
	if err != nil {
		return nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

// bootstrapProvider stores LLM_PROVIDER as the active analyzer config so a
// fresh deployment analyzes without a call to the config endpoint.
func bootstrapProvider(ctx context.Context, cfg *config.Config, st store.Store, cipher secrets.Cipher) error {
	if cfg.LLMProvider == "" || cipher == nil {
		return nil
	}

	encrypted, err := cipher.Encrypt(cfg.LLMAPIKey)
	if err != nil {
		return err
	}
	if err := st.SaveLLMConfig(ctx, &models.LLMConfig{
		Provider:        cfg.LLMProvider,
		ModelName:       cfg.LLMModel,
		APIKeyEncrypted: encrypted,
		IsActive:        true,
	}); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"provider": cfg.LLMProvider,
		"model":    cfg.LLMModel,
	}).Info("Activated text analyzer from environment")
	return nil
}

func openLocker(ctx context.Context, cfg *config.Config) (lock.Locker, error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), nil
	}
	return lock.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

func openArchive(ctx context.Context, cfg *config.Config) (storage.StorageInterface, error) {
	switch {
	case cfg.StorageAccount != "":
		return storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
	case cfg.ReportDir != "":
		return storage.NewDirStorage(cfg.ReportDir), nil
	default:
		logrus.Info("No report archive configured")
		return nil, nil
	}
}
