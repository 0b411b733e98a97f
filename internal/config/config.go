package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the bot.
type Config struct {
	// Mode
	TradingEnabled bool
	PaperMode      bool
	Debug          bool
	LogLevel       string

	// Capital
	CapitalBase decimal.Decimal // total base capital for the ledger
	FeeReserve  decimal.Decimal // never allocated to a trade
	InputSize   decimal.Decimal // fixed per-cycle input

	// Detection
	DetectInterval    time.Duration
	FreshnessHorizon  time.Duration   // L1
	MinVolume24h      decimal.Decimal // L2
	MinSwaps24h       int64           // L2
	MaxPriceDeviation decimal.Decimal // L4, fraction of median
	MinPoolsPerToken  int             // population needed for the deviation test
	MaxObsSkew        time.Duration   // max spread of leg observation times
	MinSpreadPct      decimal.Decimal // early reject before the cost model
	MaxGrossReturnPct decimal.Decimal // sanity cap on cycle return

	// Cost model
	MarginMultiplier  decimal.Decimal
	TipPercentile     int
	TipTargetFrac     decimal.Decimal
	TipBoostThreshold decimal.Decimal // venue_fees/gross below this boosts the tip
	TipAbsCap         decimal.Decimal
	TipMin            decimal.Decimal
	GasMult           decimal.Decimal

	// Governor
	DailyTradeCap  int
	DailyLossLimit decimal.Decimal
	FailCap        int
	KillSwitchPath string

	// Submission
	MinSubmitInterval time.Duration
	QueueCapacity     int
	JobDeadline       time.Duration
	AttemptDeadline   time.Duration
	RotateAfter       int // consecutive transport errors before endpoint rotation

	// Endpoints
	PriceFeedURL  string
	PrimaryURLs   []string
	SecondaryURLs []string
	TipFloorURL   string

	// Reporting
	StatsInterval time.Duration

	// Optional collaborators
	DatabasePath   string
	DatabaseURL    string
	TelegramToken  string
	TelegramChatID int64

	// Wallet (base58 64-byte ed25519 key; when empty, main uses an ephemeral
	// key in paper mode and refuses to start otherwise)
	WalletPrivateKey string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		TradingEnabled: getEnvBool("TRADING_ENABLED", false),
		PaperMode:      getEnvBool("PAPER_MODE", true),
		Debug:          getEnvBool("DEBUG", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		CapitalBase: getEnvDecimal("CAPITAL_BASE", decimal.NewFromFloat(2.0)),
		FeeReserve:  getEnvDecimal("FEE_RESERVE", decimal.NewFromFloat(0.1)),
		InputSize:   getEnvDecimal("INPUT_SIZE", decimal.NewFromFloat(0.5)),

		DetectInterval:    getEnvMillis("DETECT_INTERVAL_MS", 400*time.Millisecond),
		FreshnessHorizon:  getEnvMinutes("PRICE_FRESHNESS_MIN", 30*time.Minute),
		MinVolume24h:      getEnvDecimal("MIN_VOLUME_24H", decimal.NewFromInt(10000)),
		MinSwaps24h:       int64(getEnvInt("MIN_SWAPS_24H", 5)),
		MaxPriceDeviation: getEnvDecimal("MAX_PRICE_DEVIATION", decimal.NewFromFloat(0.50)),
		MinPoolsPerToken:  getEnvInt("MIN_POOLS_PER_TOKEN", 2),
		MaxObsSkew:        getEnvMillis("MAX_OBS_SKEW_MS", time.Second),
		MinSpreadPct:      getEnvDecimal("MIN_SPREAD_PCT", decimal.NewFromFloat(0.1)),
		MaxGrossReturnPct: getEnvDecimal("MAX_GROSS_RETURN_PCT", decimal.NewFromInt(20)),

		MarginMultiplier:  getEnvDecimal("MARGIN_MULTIPLIER", decimal.NewFromFloat(1.05)),
		TipPercentile:     getEnvInt("TIP_PERCENTILE", 99),
		TipTargetFrac:     getEnvDecimal("TIP_TARGET_FRAC", decimal.NewFromFloat(0.10)),
		TipBoostThreshold: getEnvDecimal("TIP_BOOST_THRESHOLD", decimal.NewFromFloat(0.05)),
		TipAbsCap:         getEnvDecimal("TIP_ABS_CAP", decimal.NewFromFloat(0.005)),
		TipMin:            getEnvDecimal("TIP_MIN", decimal.NewFromFloat(0.0001)),
		GasMult:           getEnvDecimal("GAS_MULT", decimal.NewFromFloat(1.5)),

		DailyTradeCap:  getEnvInt("DAILY_TRADE_CAP", 200),
		DailyLossLimit: getEnvDecimal("DAILY_LOSS_LIMIT", decimal.NewFromFloat(0.5)),
		FailCap:        getEnvInt("FAIL_CAP", 3),
		KillSwitchPath: getEnv("KILL_SWITCH_PATH", "data/killswitch"),

		MinSubmitInterval: getEnvMillis("MIN_SUBMIT_INTERVAL_MS", 1100*time.Millisecond),
		QueueCapacity:     getEnvInt("QUEUE_CAPACITY", 100),
		JobDeadline:       getEnvMillis("JOB_DEADLINE_MS", 500*time.Millisecond),
		AttemptDeadline:   getEnvMillis("ATTEMPT_DEADLINE_MS", 5000*time.Millisecond),
		RotateAfter:       getEnvInt("ENDPOINT_ROTATE_AFTER", 3),

		PriceFeedURL:  os.Getenv("PRICE_FEED_URL"),
		PrimaryURLs:   splitList(os.Getenv("PRIMARY_URL")),
		SecondaryURLs: splitList(os.Getenv("SECONDARY_URL")),
		TipFloorURL:   os.Getenv("TIP_FLOOR_URL"),

		StatsInterval: getEnvSeconds("STATS_INTERVAL_SEC", 60*time.Second),

		DatabasePath: os.Getenv("DATABASE_PATH"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		WalletPrivateKey: os.Getenv("WALLET_PRIVATE_KEY"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	// Tip floor defaults to the first secondary endpoint's API.
	if cfg.TipFloorURL == "" && len(cfg.SecondaryURLs) > 0 {
		cfg.TipFloorURL = cfg.SecondaryURLs[0] + "/api/v1/bundles/tip_floor"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run on. A failure here
// is fatal at startup.
func (c *Config) Validate() error {
	if c.PriceFeedURL == "" {
		return fmt.Errorf("PRICE_FEED_URL is required")
	}
	if !c.PaperMode {
		if len(c.PrimaryURLs) == 0 {
			return fmt.Errorf("PRIMARY_URL is required outside paper mode")
		}
		if len(c.SecondaryURLs) == 0 {
			return fmt.Errorf("SECONDARY_URL is required outside paper mode")
		}
	}
	if c.CapitalBase.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("CAPITAL_BASE must be > 0, got %s", c.CapitalBase)
	}
	if c.FeeReserve.IsNegative() {
		return fmt.Errorf("FEE_RESERVE must be >= 0, got %s", c.FeeReserve)
	}
	if c.InputSize.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("INPUT_SIZE must be > 0, got %s", c.InputSize)
	}
	free := c.CapitalBase.Sub(c.FeeReserve)
	if c.InputSize.GreaterThan(free) {
		return fmt.Errorf("INPUT_SIZE %s exceeds free capital %s", c.InputSize, free)
	}
	if c.MarginMultiplier.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("MARGIN_MULTIPLIER must be >= 1.0, got %s", c.MarginMultiplier)
	}
	switch c.TipPercentile {
	case 25, 50, 75, 95, 99:
	default:
		return fmt.Errorf("TIP_PERCENTILE must be one of 25/50/75/95/99, got %d", c.TipPercentile)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("QUEUE_CAPACITY must be > 0, got %d", c.QueueCapacity)
	}
	if c.DailyTradeCap <= 0 {
		return fmt.Errorf("DAILY_TRADE_CAP must be > 0, got %d", c.DailyTradeCap)
	}
	if c.FailCap <= 0 {
		return fmt.Errorf("FAIL_CAP must be > 0, got %d", c.FailCap)
	}
	if c.MaxPriceDeviation.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("MAX_PRICE_DEVIATION must be > 0, got %s", c.MaxPriceDeviation)
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
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

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil && i > 0 {
			return time.Duration(i) * time.Millisecond
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil && i > 0 {
			return time.Duration(i) * time.Second
		}
	}
	return defaultValue
}

func getEnvMinutes(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil && i > 0 {
			return time.Duration(i) * time.Minute
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
