// Package cli provides the initialization shared by cmd/cardspend and
// cmd/cardspend-cli.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cardspend/internal/amqp"
	"cardspend/internal/cache"
	"cardspend/internal/chart"
	"cardspend/internal/config"
	"cardspend/internal/core"
	"cardspend/internal/log"
	"cardspend/internal/rules"
	"cardspend/internal/services"
	"cardspend/internal/statement"
)

// SetupLogger builds the process logger at the given level and makes it the
// slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// LoadRules resolves the configured rule source.
func LoadRules(ctx context.Context, cfg *config.Config, logger *log.Logger) (core.CategorySet, error) {
	set, err := rules.Load(ctx, cfg.RuleOptions())
	if err != nil {
		return core.CategorySet{}, err
	}
	logger.WithComponent(log.ComponentRules).Info("Loaded category rules",
		"source", cfg.RulesSource, "rules", set.Len())
	return set, nil
}

// ChartStyle builds the chart style, loading the configured font if any.
func ChartStyle(cfg *config.Config) (chart.Style, error) {
	style := chart.Style{
		Title:  cfg.ChartTitle,
		Width:  cfg.ChartWidth,
		Height: cfg.ChartHeight,
	}
	if cfg.ChartFontPath != "" {
		font, err := chart.LoadFont(cfg.ChartFontPath)
		if err != nil {
			return chart.Style{}, err
		}
		style.Font = font
	}
	return style, nil
}

// BuildService wires the analysis service from cfg. When AMQP is configured
// but unreachable the service runs without events. The returned cleanup
// closes whatever was opened.
func BuildService(ctx context.Context, cfg *config.Config, logger *log.Logger) (*services.AnalysisService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	reader, err := statement.NewReader(cfg.ReaderOptions())
	if err != nil {
		return nil, cleanup, fmt.Errorf("statement reader: %w", err)
	}

	set, err := LoadRules(ctx, cfg, logger)
	if err != nil {
		return nil, cleanup, fmt.Errorf("load rules: %w", err)
	}

	style, err := ChartStyle(cfg)
	if err != nil {
		return nil, cleanup, fmt.Errorf("chart style: %w", err)
	}

	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpLogger := logger.WithComponent(log.ComponentAMQP)
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			amqpLogger.Warn("AMQP unavailable, analysis events disabled", log.FieldError, err)
		} else {
			amqpLogger.Info("AMQP client connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
			publisher = client
			closers = append(closers, func() {
				if err := client.Close(); err != nil {
					amqpLogger.Warn("Failed to close AMQP client", log.FieldError, err)
				}
			})
		}
	}

	svc := services.NewAnalysisService(reader, set, cfg.PipelineOptions(), style, publisher)
	if cfg.ReportCacheSize > 0 {
		reports := cache.NewLRUCache[services.Report](cfg.ReportCacheSize, cfg.ReportCacheTTL)
		manager := cache.NewManager(logger.WithComponent(log.ComponentCache))
		manager.Register(reports)
		manager.StartCleanup(cleanupInterval(cfg.ReportCacheTTL))
		closers = append(closers, manager.Stop)
		svc.WithReportCache(reports)
	}
	return svc, cleanup, nil
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl > 5*time.Minute {
		return 5 * time.Minute
	}
	return ttl
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
