// Arbbot - Triangular arbitrage executor for Solana AMM pools
//
// Consumes a multi-venue price book for one base asset, searches it for
// base→X→Y→base cycles that round-trip at positive net value, and submits
// the winning cycle as an atomic bundle through a low-latency block-inclusion
// channel with an HTTP fallback.
//
// Pipeline:
// 1. Pull price snapshot from the local feed service
// 2. Filter: freshness, volume, swap count, zero price, median deviation
// 3. Search cycles through the venue quote functions
// 4. Cost model: venue fees + dynamic tip + gas, margin verdict
// 5. Safety governor: caps, loss limit, failure streak, kill switch
// 6. Bounded queue → rate-limited consumer → primary/fallback transport
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/bundle"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/config"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/cost"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/engine"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/feed"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/filter"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/ledger"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/notify"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/queue"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/risk"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/stats"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/storage"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/transport"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/triangle"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
	"github.com/tom14cat14/solana-arbitrage-bot/internal/venue"
)

const version = "2.1.0"

// baseToken is wrapped SOL; every pool quotes against it and PnL is measured
// in it.
const baseToken = "So11111111111111111111111111111111111111112"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Bool("trading_enabled", cfg.TradingEnabled).
		Bool("paper_mode", cfg.PaperMode).
		Str("capital", cfg.CapitalBase.StringFixed(4)).
		Str("input_size", cfg.InputSize.StringFixed(4)).
		Msg("⚡ Arbbot starting...")

	// ====== WALLET ======
	var signer bundle.Signer
	if cfg.WalletPrivateKey != "" {
		signer, err = bundle.NewLocalSigner(cfg.WalletPrivateKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load wallet key")
		}
	} else {
		if !cfg.PaperMode {
			log.Fatal().Msg("WALLET_PRIVATE_KEY is required outside paper mode")
		}
		signer, err = bundle.NewEphemeralSigner()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to generate ephemeral key")
		}
		log.Warn().Msg("⚠️ No wallet key, using ephemeral signer (paper mode)")
	}

	// ====== VENUES ======
	// Venues are registered at start; pools are added and their quotes
	// refreshed from the observation stream each tick.
	depthMult := decimal.NewFromInt(50)
	registry := venue.NewRegistry()
	registry.Register("raydium", venue.NewCPMM(
		"raydium", "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8",
		decimal.NewFromFloat(0.0025), baseToken, depthMult))
	registry.Register("orca", venue.NewCPMM(
		"orca", "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc",
		decimal.NewFromFloat(0.0030), baseToken, depthMult))
	registry.Register("pumpswap", venue.NewCPMM(
		"pumpswap", "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA",
		decimal.NewFromFloat(0.0025), baseToken, depthMult))

	// ====== CORE COMPONENTS ======
	led := ledger.New(cfg.CapitalBase, cfg.FeeReserve)
	breaker := risk.NewBreaker()
	q := queue.New(cfg.QueueCapacity)
	recorder := queue.NewRecorder(led)

	db, err := storage.New(cfg.DatabaseURL, cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open trade log")
	}
	recorder.AddSink(db)

	telegram := notify.New(cfg.TelegramToken, cfg.TelegramChatID)
	if telegram != nil {
		recorder.AddSink(telegram)
		breaker.OnTrip(telegram.NotifyBreaker)
	}

	kill := risk.NewKillSwitch(cfg.KillSwitchPath, breaker, func() {
		n := q.Drain(func(job *types.SubmissionJob) { led.ReleaseUnsubmitted(job.Reserved) })
		if n > 0 {
			log.Warn().Int("dropped", n).Msg("Queue emptied by kill switch")
		}
	})

	tipMonitor := cost.NewTipFloorMonitor(cfg.TipFloorURL, 10*time.Minute)
	model := cost.New(cost.Options{
		MarginMultiplier:  cfg.MarginMultiplier,
		TipPercentile:     cfg.TipPercentile,
		TipTargetFrac:     cfg.TipTargetFrac,
		TipBoostThreshold: cfg.TipBoostThreshold,
		TipAbsCap:         cfg.TipAbsCap,
		TipMin:            cfg.TipMin,
		GasMult:           cfg.GasMult,
	}, registry, tipMonitor.Snapshot)

	assembler := bundle.NewAssembler(registry, signer, bundle.Options{BaseToken: baseToken})

	governor := risk.NewGovernor(risk.Options{
		TradingEnabled: cfg.TradingEnabled,
		InputSize:      cfg.InputSize,
		DailyTradeCap:  cfg.DailyTradeCap,
		DailyLossLimit: cfg.DailyLossLimit,
		FailCap:        cfg.FailCap,
		JobDeadline:    cfg.JobDeadline,
	}, led, breaker, kill, assembler)

	search := triangle.New(triangle.Options{
		BaseToken:         baseToken,
		Input:             cfg.InputSize,
		MaxObsSkew:        cfg.MaxObsSkew,
		MaxGrossReturnPct: cfg.MaxGrossReturnPct,
		MinSpreadPct:      cfg.MinSpreadPct,
	}, registry)

	priceFilter := filter.New(filter.Options{
		FreshnessHorizon: cfg.FreshnessHorizon,
		MinVolume24h:     cfg.MinVolume24h,
		MinSwaps24h:      cfg.MinSwaps24h,
		MaxDeviation:     cfg.MaxPriceDeviation,
		MinPoolsPerToken: cfg.MinPoolsPerToken,
	})

	feedClient := feed.NewClient(cfg.PriceFeedURL, 10*time.Second, time.Second)

	detector := engine.NewDetector(
		feedClient, priceFilter, registry, search, model, governor,
		q, led, breaker, cfg.DetectInterval)

	var primary, secondary transport.Transport
	if !cfg.PaperMode {
		primary = transport.NewPrimary(cfg.PrimaryURLs, cfg.RotateAfter)
		secondary = transport.NewSecondary(cfg.SecondaryURLs, cfg.RotateAfter)
	}
	consumer := queue.NewConsumer(q, primary, secondary, recorder, queue.ConsumerOptions{
		MinInterval:     cfg.MinSubmitInterval,
		AttemptDeadline: cfg.AttemptDeadline,
		PaperMode:       cfg.PaperMode,
	})

	reporter := stats.NewReporter(cfg.StatsInterval, priceFilter, detector, q, led, breaker, recorder)

	// ====== RUN ======
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return detector.Run(ctx) })
	g.Go(func() error { return consumer.Run(ctx) })
	g.Go(func() error { return tipMonitor.Run(ctx) })
	g.Go(func() error { return kill.Run(ctx, time.Second) })
	g.Go(func() error { return reporter.Run(ctx) })

	log.Info().Msg("✅ All systems online")

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("Pipeline task failed")
	}

	log.Info().Msg("👋 Goodbye!")
}
