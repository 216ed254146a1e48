package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Skufu/DiabetView/internal/aiclient"
	"github.com/Skufu/DiabetView/internal/cache"
	applog "github.com/Skufu/DiabetView/internal/logger"
	"github.com/Skufu/DiabetView/internal/observability"
	"github.com/Skufu/DiabetView/internal/orchestrator"
	"github.com/Skufu/DiabetView/internal/store"
)

const serviceName = "diabetview"

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Port        string
	GinMode     string
	DatabaseURL string
	EnableDB    bool
	AI          aiclient.Config
	Debounce    time.Duration
	// SessionIdleTTL is how long a session may sit unedited and unwatched.
	SessionIdleTTL time.Duration
	Redis          cache.Config
	LogLevel       string
	LogFormat      string
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	logger, err := applog.NewLogger(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	metrics := observability.NewMetrics()
	checks := map[string]HealthChecker{}
	opts := []aiclient.Option{aiclient.WithMetrics(metrics)}

	if cfg.EnableDB {
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()

		projectionLog := store.NewProjectionLog(pool)
		if err := projectionLog.EnsureSchema(ctx); err != nil {
			logger.Fatal("database schema failed", zap.Error(err))
		}
		opts = append(opts, aiclient.WithRecorder(projectionLog))
		checks["db"] = projectionLog
	}

	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedis(cache.NewRedisClient(cfg.Redis), cfg.Redis.TTL)
		defer redisCache.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, cache reads will miss", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
		opts = append(opts, aiclient.WithCache(redisCache))
		checks["redis"] = redisCache
	}

	projector, err := aiclient.New(cfg.AI, logger, opts...)
	if err != nil {
		logger.Fatal("AI client setup failed", zap.Error(err))
	}
	sessions := orchestrator.NewRegistry(projector, cfg.Debounce, logger, metrics)
	sessions.ExpireIdle(cfg.SessionIdleTTL)

	router := setupRouter(routerDeps{
		logger:    logger,
		metrics:   metrics,
		projector: projector,
		sessions:  sessions,
		checks:    checks,
	}, detectStaticRoot())

	// No WriteTimeout: session event streams stay open.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("server listening", zap.String("port", cfg.Port))
	waitForShutdown(server, sessions, logger)
}

func loadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", gin.ReleaseMode),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		EnableDB:    strings.EqualFold(getEnv("ENABLE_DB", "false"), "true"),
		AI: aiclient.Config{
			Provider:     getEnv("AI_PROVIDER", aiclient.ProviderAuto),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			Model:        os.Getenv("AI_MODEL"),
			BaseURL:      os.Getenv("AI_BASE_URL"),
		},
		Redis: cache.Config{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if cfg.EnableDB && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}

	var err error
	if cfg.AI.Timeout, err = getDuration("AI_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Debounce, err = getDuration("PROJECTION_DEBOUNCE", orchestrator.DefaultDebounce); err != nil {
		return nil, err
	}
	if cfg.Redis.TTL, err = getDuration("CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTTL, err = getDuration("SESSION_IDLE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}

	switch strings.ToLower(cfg.AI.Provider) {
	case aiclient.ProviderAuto, aiclient.ProviderGemini, aiclient.ProviderOpenAI:
	default:
		return nil, fmt.Errorf("AI_PROVIDER must be auto, gemini or openai, got %q", cfg.AI.Provider)
	}

	return cfg, nil
}

func waitForShutdown(server *http.Server, sessions *orchestrator.Registry, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server")
	sessions.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, raw)
	}
	return d, nil
}

func detectStaticRoot() string {
	startDir, err := os.Getwd()
	if err != nil {
		return "."
	}

	candidates := []string{
		startDir,
		filepath.Join(startDir, "web"),
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		if fileExists(filepath.Join(dir, "index.html")) {
			return dir
		}
	}

	return startDir
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
