package config

import (
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"alpha_portfolios/internal/models"
)

// Config is the process configuration, read once at startup.
type Config struct {
	// Seed portfolio, used only when the portfolio file is empty.
	AlpacaAPIKey    string
	AlpacaSecretKey string
	AlpacaBaseURL   string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	FinnhubAPIKey string
	NewsAPIKey    string

	PortfoliosFile     string
	StoreEncryptionKey string
	JournalPath        string

	LogLevel      string
	LogFile       string
	LogPretty     bool
	MaxLogSizeMB  int64
	MaxLogBackups int

	CycleSchedule    string
	TargetSymbols    []string
	TrendingLimit    int
	BenchmarkSymbol  string
	Simulate         bool
	CycleConcurrency int
	ExternalTimeout  time.Duration
	StreamPrices     bool
	DefaultRisk      models.RiskConfig
	HTTPAddr         string
	TelegramBotToken string
	TelegramChatID   string
}

// secretVars are masked when the .env file is echoed at startup.
var secretVars = map[string]bool{
	"ALPACA_API_KEY":       true,
	"ALPACA_SECRET_KEY":    true,
	"OPENAI_API_KEY":       true,
	"FINNHUB_API_KEY":      true,
	"NEWS_API_KEY":         true,
	"STORE_ENCRYPTION_KEY": true,
	"TELEGRAM_BOT_TOKEN":   true,
}

// Load reads a .env file if present and builds the configuration from the
// process environment. Missing or malformed values fall back to defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using system environment variables")
	} else {
		logEnvFile()
	}

	return &Config{
		AlpacaAPIKey:    getEnv("ALPACA_API_KEY", ""),
		AlpacaSecretKey: getEnv("ALPACA_SECRET_KEY", ""),
		AlpacaBaseURL:   getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		FinnhubAPIKey: getEnv("FINNHUB_API_KEY", ""),
		NewsAPIKey:    getEnv("NEWS_API_KEY", ""),

		PortfoliosFile:     getEnv("PORTFOLIOS_FILE", "portfolios.json"),
		StoreEncryptionKey: getEnv("STORE_ENCRYPTION_KEY", ""),
		JournalPath:        getEnv("JOURNAL_PATH", "journal.db"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", "alpha_portfolios.log"),
		LogPretty:     getEnvAsBool("LOG_PRETTY", false),
		MaxLogSizeMB:  int64(getEnvAsInt("MAX_LOG_SIZE_MB", 10)),
		MaxLogBackups: getEnvAsInt("MAX_LOG_BACKUPS", 3),

		CycleSchedule:    getEnv("CYCLE_SCHEDULE", "@every 15m"),
		TargetSymbols:    getEnvAsList("TARGET_SYMBOLS", []string{"auto"}),
		TrendingLimit:    getEnvAsInt("TRENDING_LIMIT", 5),
		BenchmarkSymbol:  getEnv("BENCHMARK_SYMBOL", "^spx"),
		Simulate:         getEnvAsBool("SIMULATE", false),
		CycleConcurrency: getEnvAsInt("CYCLE_CONCURRENCY", 4),
		ExternalTimeout:  time.Duration(getEnvAsInt("EXTERNAL_TIMEOUT_SEC", 10)) * time.Second,
		StreamPrices:     getEnvAsBool("STREAM_PRICES", false),
		DefaultRisk: models.RiskConfig{
			StopLossPct:      getEnvAsFloat64("DEFAULT_STOP_LOSS_PCT", 0.05),
			TakeProfitPct:    getEnvAsFloat64("DEFAULT_TAKE_PROFIT_PCT", 0.10),
			MaxDrawdownPct:   getEnvAsFloat64("DEFAULT_MAX_DRAWDOWN_PCT", 0.10),
			TradePnLLimitPct: getEnvAsFloat64("DEFAULT_TRADE_PNL_LIMIT_PCT", 0.05),
			RiskFraction:     getEnvAsFloat64("DEFAULT_RISK_FRACTION", 0.02),
		},
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

// HasSeedPortfolio reports whether usable Alpaca credentials were configured
// through the environment. Placeholder keys copied from an example .env are ignored.
func (c *Config) HasSeedPortfolio() bool {
	return c.AlpacaAPIKey != "" && c.AlpacaSecretKey != "" && c.AlpacaAPIKey != "your_alpaca_api_key"
}

func logEnvFile() {
	envMap, err := godotenv.Read()
	if err != nil {
		return
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ev := log.Info()
	for _, k := range keys {
		if secretVars[k] {
			ev = ev.Str(k, mask(envMap[k]))
		} else {
			ev = ev.Str(k, envMap[k])
		}
	}
	ev.Msg(".env file variables")
}
