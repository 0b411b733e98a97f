package storage

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STORAGE - Optional trade log
// ═══════════════════════════════════════════════════════════════════════════════
//
// The pipeline is stateless across restarts; this log exists for analysis,
// not recovery. With neither DATABASE_URL nor DATABASE_PATH set it degrades
// to a no-op.
//
// ═══════════════════════════════════════════════════════════════════════════════

// BundleRecord is one terminal job outcome.
type BundleRecord struct {
	ID        string `gorm:"primaryKey"`
	Path      string
	Venues    string
	Gross     decimal.Decimal `gorm:"type:decimal(20,9)"`
	Cost      decimal.Decimal `gorm:"type:decimal(20,9)"`
	Net       decimal.Decimal `gorm:"type:decimal(20,9)"`
	Tip       decimal.Decimal `gorm:"type:decimal(20,9)"`
	Outcome   string          `gorm:"index"`
	Reason    string
	Paper     bool
	CreatedAt time.Time
}

type Database struct {
	db      *gorm.DB
	enabled bool
}

// New opens postgres when DATABASE_URL is set, sqlite when DATABASE_PATH is,
// and a disabled no-op store otherwise.
func New(databaseURL, databasePath string) (*Database, error) {
	var dialector gorm.Dialector
	switch {
	case databaseURL != "":
		dialector = postgres.Open(databaseURL)
	case databasePath != "":
		if dir := filepath.Dir(databasePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		dialector = sqlite.Open(databasePath)
	default:
		log.Warn().Msg("No database configured, running without trade log")
		return &Database{enabled: false}, nil
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&BundleRecord{}); err != nil {
		return nil, err
	}

	log.Info().Msg("💾 Trade log connected")
	return &Database{db: db, enabled: true}, nil
}

// RecordOutcome implements the recorder sink. Write failures are logged and
// swallowed; the trade log never blocks the pipeline.
func (d *Database) RecordOutcome(job *types.SubmissionJob, outcome types.Outcome, reason string) {
	if !d.enabled {
		return
	}
	rec := BundleRecord{
		ID:      job.ID,
		Path:    job.Candidate.Path(),
		Venues:  job.Candidate.BuyX.Venue + "," + job.Candidate.SellX.Venue + "," + job.Candidate.BuyY.Venue + "," + job.Candidate.SellY.Venue,
		Gross:   job.Cost.GrossProfit,
		Cost:    job.Cost.TotalCost,
		Net:     job.Cost.NetProfit,
		Tip:     job.Cost.Tip,
		Outcome: string(outcome),
		Reason:  reason,
		Paper:   outcome == types.OutcomePaper,
	}
	if err := d.db.Create(&rec).Error; err != nil {
		log.Warn().Err(err).Str("job", job.ID).Msg("Trade log write failed")
	}
}

// RecentOutcomes returns the last n records, newest first.
func (d *Database) RecentOutcomes(n int) ([]BundleRecord, error) {
	if !d.enabled {
		return nil, nil
	}
	var out []BundleRecord
	err := d.db.Order("created_at desc").Limit(n).Find(&out).Error
	return out, err
}
