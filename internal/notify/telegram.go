// Package notify forwards alerts and trades to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"alpha_portfolios/internal/events"
	"alpha_portfolios/internal/models"
)

// TelegramBaseURL is the Bot API root.
const TelegramBaseURL = "https://api.telegram.org"

// Telegram sends messages through the Bot API. Without a token or chat id
// every send is a no-op.
type Telegram struct {
	client *resty.Client
	token  string
	chatID string
	log    zerolog.Logger
}

// NewTelegram builds a notifier against baseURL.
func NewTelegram(baseURL, token, chatID string, timeout time.Duration, log zerolog.Logger) *Telegram {
	return &Telegram{
		client: resty.New().SetBaseURL(baseURL).SetTimeout(timeout),
		token:  token,
		chatID: chatID,
		log:    log.With().Str("component", "telegram").Logger(),
	}
}

// Enabled reports whether credentials are configured.
func (t *Telegram) Enabled() bool {
	return t.token != "" && t.chatID != ""
}

// Send posts text to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if !t.Enabled() {
		t.log.Debug().Msg("Telegram credentials missing, skipping notification")
		return nil
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "Markdown",
		}).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram API error: status %d", resp.StatusCode())
	}
	return nil
}

// Notifies reports whether an event type is forwarded.
func Notifies(typ models.ActivityType) bool {
	return typ == models.ActivityAlert || typ == models.ActivityTrade
}

// Format renders an event as a chat message.
func Format(e events.Event) string {
	switch e.Type {
	case models.ActivityAlert:
		return fmt.Sprintf("🚨 *%s*\n%s", e.Portfolio, e.Message)
	default:
		return fmt.Sprintf("💸 *%s*\n%s", e.Portfolio, e.Message)
	}
}

// Run forwards alert and trade events from ch until it closes. Send failures
// are logged and never retried.
func (t *Telegram) Run(ctx context.Context, ch <-chan events.Event) {
	for e := range ch {
		if !Notifies(e.Type) || !t.Enabled() {
			continue
		}
		if err := t.Send(ctx, Format(e)); err != nil {
			t.log.Warn().Err(err).Str("portfolio", e.Portfolio).Msg("Telegram notification failed")
		}
	}
}
