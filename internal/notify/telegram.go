package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/tom14cat14/solana-arbitrage-bot/internal/types"
)

// Telegram pushes operator-facing events: breaker trips and landed bundles.
// Disabled when no token/chat is configured; all sends are best effort.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// New returns nil (disabled) when token or chatID is empty.
func New(token string, chatID int64) *Telegram {
	if token == "" || chatID == 0 {
		return nil
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Telegram init failed, notifications disabled")
		return nil
	}
	log.Info().Str("bot", api.Self.UserName).Msg("🔔 Telegram notifier ready")
	return &Telegram{api: api, chatID: chatID}
}

// NotifyBreaker reports a breaker trip.
func (t *Telegram) NotifyBreaker(reason string) {
	if t == nil {
		return
	}
	t.send(fmt.Sprintf("🚨 Circuit breaker OPEN\nReason: %s\nRemove the kill-switch marker to resume.", reason))
}

// RecordOutcome implements the recorder sink; only landed bundles are worth
// a push.
func (t *Telegram) RecordOutcome(job *types.SubmissionJob, outcome types.Outcome, reason string) {
	if t == nil || outcome != types.OutcomeLanded {
		return
	}
	t.send(fmt.Sprintf("✅ Bundle landed\n%s\nNet: %s\nTip: %s\nID: %s",
		job.Candidate.Path(),
		job.Cost.NetProfit.StringFixed(6),
		job.Cost.Tip.StringFixed(6),
		reason))
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("Telegram send failed")
	}
}
