package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func setBaseline(t *testing.T) {
	t.Helper()
	t.Setenv("PRICE_FEED_URL", "http://localhost:8080/prices")
	t.Setenv("PRIMARY_URL", "wss://mainnet.block-engine.example/api/v1/bundles")
	t.Setenv("SECONDARY_URL", "https://mainnet.block-engine.example")
}

func TestLoadDefaults(t *testing.T) {
	setBaseline(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.PaperMode {
		t.Fatal("paper mode must default on")
	}
	if cfg.TradingEnabled {
		t.Fatal("trading must default off")
	}
	if cfg.MinSubmitInterval != 1100*time.Millisecond {
		t.Fatalf("min submit interval = %v", cfg.MinSubmitInterval)
	}
	if cfg.QueueCapacity != 100 {
		t.Fatalf("queue capacity = %d", cfg.QueueCapacity)
	}
	if cfg.JobDeadline != 500*time.Millisecond {
		t.Fatalf("job deadline = %v", cfg.JobDeadline)
	}
	if !cfg.MarginMultiplier.Equal(decimal.NewFromFloat(1.05)) {
		t.Fatalf("margin multiplier = %s", cfg.MarginMultiplier)
	}
	if cfg.TipPercentile != 99 {
		t.Fatalf("tip percentile = %d", cfg.TipPercentile)
	}
	if cfg.TipFloorURL == "" {
		t.Fatal("tip floor URL must default from the secondary endpoint")
	}
}

func TestLoadOverrides(t *testing.T) {
	setBaseline(t)
	t.Setenv("CAPITAL_BASE", "5.5")
	t.Setenv("INPUT_SIZE", "0.9")
	t.Setenv("DAILY_TRADE_CAP", "42")
	t.Setenv("MIN_SUBMIT_INTERVAL_MS", "2500")
	t.Setenv("PRIMARY_URL", "wss://a.example, wss://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.CapitalBase.Equal(decimal.NewFromFloat(5.5)) {
		t.Fatalf("capital = %s", cfg.CapitalBase)
	}
	if cfg.DailyTradeCap != 42 {
		t.Fatalf("trade cap = %d", cfg.DailyTradeCap)
	}
	if cfg.MinSubmitInterval != 2500*time.Millisecond {
		t.Fatalf("interval = %v", cfg.MinSubmitInterval)
	}
	if len(cfg.PrimaryURLs) != 2 || cfg.PrimaryURLs[1] != "wss://b.example" {
		t.Fatalf("primary urls = %v", cfg.PrimaryURLs)
	}
}

func TestValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing feed url", map[string]string{"PRICE_FEED_URL": ""}},
		{"zero capital", map[string]string{"CAPITAL_BASE": "0"}},
		{"negative capital", map[string]string{"CAPITAL_BASE": "-1"}},
		{"input exceeds free capital", map[string]string{"CAPITAL_BASE": "1.0", "FEE_RESERVE": "0.8", "INPUT_SIZE": "0.5"}},
		{"margin below one", map[string]string{"MARGIN_MULTIPLIER": "0.5"}},
		{"bad percentile", map[string]string{"TIP_PERCENTILE": "42"}},
		{"live without primary", map[string]string{"PAPER_MODE": "false", "PRIMARY_URL": ""}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setBaseline(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
