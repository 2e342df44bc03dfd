package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"slotwatch/internal/metrics"
)

// Notifier is a fire-and-forget consumer of outcome messages. Delivery
// failures must never abort the invocation.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Config holds Telegram Bot API credentials.
type Config struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// Telegram sends messages through the Bot API.
type Telegram struct {
	cfg    Config
	client *http.Client
	base   string
}

// NewTelegram creates a Telegram notifier. With missing credentials it
// returns a no-op notifier that warns once, matching the predecessor's
// behavior of degrading rather than failing.
func NewTelegram(cfg Config) Notifier {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		slog.Warn("Telegram credentials not configured, notifications disabled")
		return Nop{}
	}
	return &Telegram{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		base:   "https://api.telegram.org",
	}
}

// Send delivers a text message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id": t.cfg.ChatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.base, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to read telegram response: %w", err)
	}

	if !gjson.GetBytes(body, "ok").Bool() {
		metrics.NotificationsTotal.WithLabelValues("rejected").Inc()
		desc := gjson.GetBytes(body, "description").String()
		return fmt.Errorf("telegram rejected message (status %d): %s", resp.StatusCode, desc)
	}

	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	return nil
}

// Nop is a notifier that discards every message.
type Nop struct{}

func (Nop) Send(ctx context.Context, text string) error { return nil }
