package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cardspend/internal/pipeline"
	"cardspend/internal/rules"
	"cardspend/internal/statement"
)

type Config struct {
	// HTTP Server
	Port               string
	MaxUploadBytes     int64
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration

	// Recent reports kept for GET /api/analyses/{id}/chart, disabled at size 0
	ReportCacheSize int
	ReportCacheTTL  time.Duration

	// Logging
	LogLevel string

	// Category rules
	RulesSource  string
	RulesFile    string
	SQLiteDBPath string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Statement layout
	HeaderSkip        int
	DateColumn        string
	DescriptionColumn string
	AmountColumn      string
	DateLayout        string
	Encoding          string

	// Chart
	ChartWidth    int
	ChartHeight   int
	ChartFontPath string
	ChartTitle    string
}

func Load() *Config {
	defaults := statement.DefaultOptions()

	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		ReportCacheSize: getEnvInt("REPORT_CACHE_SIZE", 100),
		ReportCacheTTL:  getEnvDuration("REPORT_CACHE_TTL", 30*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		RulesSource:  getEnv("RULES_SOURCE", rules.SourceBuiltin),
		RulesFile:    getEnv("RULES_FILE", "./rules.yaml"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/cardspend.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "cardspend"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "analysis_completed"),

		HeaderSkip:        getEnvInt("STATEMENT_HEADER_SKIP", defaults.HeaderSkip),
		DateColumn:        getEnv("STATEMENT_DATE_COLUMN", defaults.Columns.Date),
		DescriptionColumn: getEnv("STATEMENT_DESCRIPTION_COLUMN", defaults.Columns.Description),
		AmountColumn:      getEnv("STATEMENT_AMOUNT_COLUMN", defaults.Columns.Amount),
		DateLayout:        getEnv("STATEMENT_DATE_LAYOUT", pipeline.DefaultDateLayout),
		Encoding:          getEnv("STATEMENT_ENCODING", defaults.Encoding),

		ChartWidth:    getEnvInt("CHART_WIDTH", 1024),
		ChartHeight:   getEnvInt("CHART_HEIGHT", 512),
		ChartFontPath: getEnv("CHART_FONT_PATH", ""),
		ChartTitle:    getEnv("CHART_TITLE", "Spending by category"),
	}

	return cfg
}

// Validate validates the configuration and returns an error listing every problem
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.MaxUploadBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be positive", c.MaxUploadBytes))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}
	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if c.ReportCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache size %d: must not be negative", c.ReportCacheSize))
	}
	if c.ReportCacheSize > 0 && c.ReportCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must be at least 1 second", c.ReportCacheTTL))
	}

	validSources := []string{rules.SourceBuiltin, rules.SourceYAML, rules.SourceSQLite}
	switch c.RulesSource {
	case rules.SourceBuiltin:
	case rules.SourceYAML:
		if c.RulesFile == "" {
			errors = append(errors, "rules file cannot be empty when using yaml rules")
		} else if _, err := os.Stat(c.RulesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("rules file does not exist: %s", c.RulesFile))
		}
	case rules.SourceSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite rules")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid rules source '%s': must be one of %v", c.RulesSource, validSources))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := statement.NewReader(c.ReaderOptions()); err != nil {
		errors = append(errors, fmt.Sprintf("invalid statement layout: %v", err))
	}
	if c.DateLayout == "" {
		errors = append(errors, "statement date layout cannot be empty")
	}

	if c.ChartWidth < 100 || c.ChartHeight < 100 {
		errors = append(errors, fmt.Sprintf("invalid chart size %dx%d: both sides must be at least 100 pixels", c.ChartWidth, c.ChartHeight))
	}
	if c.ChartFontPath != "" {
		if _, err := os.Stat(c.ChartFontPath); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("chart font file does not exist: %s", c.ChartFontPath))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ReaderOptions returns the statement layout.
func (c *Config) ReaderOptions() statement.Options {
	return statement.Options{
		HeaderSkip: c.HeaderSkip,
		Columns: statement.Schema{
			Date:        c.DateColumn,
			Description: c.DescriptionColumn,
			Amount:      c.AmountColumn,
		},
		Encoding: c.Encoding,
	}
}

func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{DateLayout: c.DateLayout}
}

func (c *Config) RuleOptions() rules.Options {
	return rules.Options{Source: c.RulesSource, File: c.RulesFile, DBPath: c.SQLiteDBPath}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
