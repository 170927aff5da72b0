package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Hobby2025/Contribase-sub000/internal/ai"
	"github.com/Hobby2025/Contribase-sub000/internal/app"
	"github.com/Hobby2025/Contribase-sub000/internal/config"
	"github.com/Hobby2025/Contribase-sub000/internal/githubapi"
	"github.com/Hobby2025/Contribase-sub000/internal/health"
	"github.com/Hobby2025/Contribase-sub000/internal/pipeline"
	"github.com/Hobby2025/Contribase-sub000/internal/progress"
	"github.com/Hobby2025/Contribase-sub000/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "contribase: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", "config/local.yaml", "path to YAML config file")
	flag.Parse()

	configFile, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer func() {
		_ = configFile.Close()
	}()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = zap.NewAtomicLevelAt(logLevel(cfg.Server.LogLevel))
	logger, err := loggerConfig.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	telemetryRuntime, err := telemetry.Setup(telemetry.Config{
		Enabled:          cfg.Telemetry.OTELEnabled,
		ServiceName:      "contribase",
		TraceMode:        cfg.Telemetry.OTELTraceMode,
		TraceSampleRatio: cfg.Telemetry.OTELTraceSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetryRuntime.Shutdown(shutdownCtx)
	}()

	rootCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	httpClient, err := buildGitHubHTTPClient(cfg)
	if err != nil {
		return fmt.Errorf("build github client: %w", err)
	}
	restClient, err := githubapi.NewGitHubRESTClient(httpClient, cfg.GitHub.APIBaseURL)
	if err != nil {
		return fmt.Errorf("build github rest client: %w", err)
	}

	requestClient := githubapi.NewClient(httpClient, githubapi.RetryConfig{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
		MaxBackoff:        cfg.Retry.MaxBackoff,
	})
	dataClient, err := githubapi.NewDataClient(cfg.GitHub.APIBaseURL, requestClient, logger)
	if err != nil {
		return fmt.Errorf("build github data client: %w", err)
	}

	store, entryCount, err := buildProgressStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("build progress store: %w", err)
	}
	go progress.StartSweeper(rootCtx, store, cfg.Store.SweepInterval, logger)

	orchestrator, err := buildOrchestrator(cfg, logger)
	if err != nil {
		return fmt.Errorf("build model orchestrator: %w", err)
	}

	metrics, err := app.NewMetrics(entryCount)
	if err != nil {
		return fmt.Errorf("build metrics: %w", err)
	}

	var quota pipeline.QuotaChecker
	if cfg.Quota.DailyLimit > 0 {
		quota = pipeline.NewDailyQuota(cfg.Quota.DailyLimit)
	}

	runner := pipeline.NewRunner(dataClient, store, orchestrator, quota, metrics, pipeline.Config{
		MaxCommits:        cfg.GitHub.MaxCommits,
		DetailConcurrency: cfg.GitHub.DetailConcurrency,
	}, logger)

	evaluator := health.NewStatusEvaluator()
	healthProvider := healthProviderFunc(func(ctx context.Context) health.Status {
		probeCtx, probeCancel := context.WithTimeout(ctx, 5*time.Second)
		defer probeCancel()
		return evaluator.Evaluate(health.Input{
			StoreHealthy:       storeHealthy(probeCtx, store),
			GitHubClientUsable: githubapi.ProbeCredential(probeCtx, restClient) == nil,
			AIConfigured:       cfg.AI.Enabled,
		})
	})

	apiServer := app.NewServer(runner, store, logger)
	handler := app.NewHTTPHandler(apiServer, metrics.Handler(), health.NewHandler(healthProvider))

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.ListenAddr))
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			serverErrCh <- serveErr
		}
		close(serverErrCh)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case serveErr := <-serverErrCh:
		if serveErr != nil {
			return fmt.Errorf("http server failed: %w", serveErr)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildGitHubHTTPClient prefers GitHub App installation auth and falls back
// to a personal token from the environment.
func buildGitHubHTTPClient(cfg *config.Config) (*http.Client, error) {
	if cfg.GitHub.App.AppID > 0 {
		return githubapi.NewInstallationHTTPClient(githubapi.InstallationAuthConfig{
			AppID:          cfg.GitHub.App.AppID,
			InstallationID: cfg.GitHub.App.InstallationID,
			PrivateKeyPath: cfg.GitHub.App.PrivateKeyPath,
			Timeout:        cfg.GitHub.RequestTimeout,
		})
	}
	token := strings.TrimSpace(os.Getenv("CONTRIBASE_GITHUB_TOKEN"))
	if token == "" {
		return nil, fmt.Errorf("no GitHub App configured and CONTRIBASE_GITHUB_TOKEN is empty")
	}
	return githubapi.NewTokenHTTPClient(token, cfg.GitHub.RequestTimeout, nil)
}

func buildProgressStore(cfg *config.Config, logger *zap.Logger) (progress.Store, func() int, error) {
	switch cfg.Store.Backend {
	case "redis":
		client, err := buildRedisClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		store := progress.NewRedisStore(client, progress.RedisStoreConfig{
			Namespace: "contribase",
			TTL:       cfg.Store.TTL,
		})
		logger.Info("progress store backend selected", zap.String("backend", "redis"))
		return store, nil, nil
	default:
		store := progress.NewMemoryStore(cfg.Store.TTL)
		logger.Info("progress store backend selected", zap.String("backend", "memory"))
		return store, store.Len, nil
	}
}

func buildRedisClient(cfg *config.Config) (redis.UniversalClient, error) {
	switch cfg.Store.RedisMode {
	case "sentinel":
		if len(cfg.Store.RedisSentinelAddrs) == 0 {
			return nil, fmt.Errorf("sentinel mode requires sentinel addresses")
		}
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.Store.RedisMasterSet,
			SentinelAddrs: cfg.Store.RedisSentinelAddrs,
			Password:      cfg.Store.RedisPassword,
			DB:            cfg.Store.RedisDB,
		}), nil
	default:
		return redis.NewClient(&redis.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		}), nil
	}
}

func buildOrchestrator(cfg *config.Config, logger *zap.Logger) (*ai.Orchestrator, error) {
	orchestratorCfg := ai.OrchestratorConfig{
		MaxPromptCommits:      cfg.AI.MaxPromptCommits,
		MaxPromptDependencies: cfg.AI.MaxPromptDependencies,
	}
	if !cfg.AI.Enabled {
		return ai.NewOrchestrator(nil, orchestratorCfg, logger), nil
	}
	provider, err := ai.NewOpenAIProvider(ai.OpenAIProviderConfig{
		APIBaseURL: cfg.AI.APIBaseURL,
		Model:      cfg.AI.Model,
		APIKey:     cfg.AI.APIKey,
		Timeout:    cfg.AI.RequestTimeout,
	}, nil)
	if err != nil {
		return nil, err
	}
	return ai.NewOrchestrator(provider, orchestratorCfg, logger), nil
}

func storeHealthy(ctx context.Context, store progress.Store) bool {
	_, _, err := store.Get(ctx, "healthcheck", "probe")
	return err == nil
}

type healthProviderFunc func(ctx context.Context) health.Status

func (f healthProviderFunc) CurrentStatus(ctx context.Context) health.Status {
	return f(ctx)
}

func logLevel(raw string) zapcore.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
