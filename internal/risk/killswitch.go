package risk

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

// KillSwitch watches the operator-controlled marker path. Existence opens
// the breaker and empties the queue; removal rearms the breaker. The marker
// lives on the filesystem so an operator can trip it without attaching to
// the process.
type KillSwitch struct {
	path    string
	breaker *Breaker
	onTrip  func() // empties the queue

	wasPresent bool
}

func NewKillSwitch(path string, breaker *Breaker, onTrip func()) *KillSwitch {
	return &KillSwitch{path: path, breaker: breaker, onTrip: onTrip}
}

// Engaged reports whether the marker currently exists. Used by the governor
// as its first safety check, right after the trading-enabled gate.
func (k *KillSwitch) Engaged() bool {
	_, err := os.Stat(k.path)
	return err == nil
}

// Run polls the marker until the context ends.
func (k *KillSwitch) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	k.wasPresent = k.Engaged()
	if k.wasPresent {
		k.trip()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			present := k.Engaged()
			switch {
			case present && !k.wasPresent:
				k.trip()
			case !present && k.wasPresent:
				log.Info().Str("path", k.path).Msg("🔄 Kill switch removed")
				k.breaker.Rearm()
			}
			k.wasPresent = present
		}
	}
}

func (k *KillSwitch) trip() {
	log.Error().Str("path", k.path).Msg("🛑 Kill switch engaged")
	k.breaker.Open("kill switch engaged")
	if k.onTrip != nil {
		k.onTrip()
	}
}
