// Package telegram implements the Telegram channel connector: long-poll and
// webhook intake, and rate-limited outbound send, grounded on the
// teacher's internal/channels/telegram/adapter.go trimmed to spec.md
// §4.8's scope (no media, no reconnect backoff beyond what the library
// itself does).
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"github.com/chora-ai/chai/internal/channels"
	chaimodel "github.com/chora-ai/chai/internal/model"
)

// defaultRateLimit and defaultRateBurst approximate Telegram's documented
// bot API ceiling (roughly 30 messages/second overall) when Config leaves
// the rate unconfigured.
const (
	defaultRateLimit = 30
	defaultRateBurst = 30
)

// IntakeMode selects how updates arrive.
type IntakeMode string

const (
	ModeLongPoll IntakeMode = "long_poll"
	ModeWebhook  IntakeMode = "webhook"
)

// Config configures the connector.
type Config struct {
	Token         string
	Mode          IntakeMode
	WebhookURL    string // public HTTPS URL registered with Telegram in webhook mode
	WebhookSecret string // optional X-Telegram-Bot-Api-Secret-Token value
	RateLimit     float64 // outbound messages/second; defaults to defaultRateLimit
	RateBurst     int     // defaults to defaultRateBurst
	Logger        *slog.Logger
}

// Connector implements channels.Handle and, in webhook mode, exposes an
// HTTP handler for the gateway's HTTP adapter to mount at
// /telegram/webhook.
type Connector struct {
	cfg     Config
	bot     *tgbot.Bot
	queue   *channels.InboundQueue
	logger  *slog.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	offset  int64
	cancel  context.CancelFunc
	stopped bool
}

var _ channels.Handle = (*Connector)(nil)

// New constructs a Telegram connector. Inbound text messages are pushed
// onto queue; queue-full causes the webhook handler to return 503 and the
// long-poll loop to terminate, per spec.md §4.8.
func New(cfg Config, queue *channels.InboundQueue) (*Connector, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram: token is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeLongPoll
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b, err := tgbot.New(cfg.Token, tgbot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}

	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = defaultRateLimit
	}
	rateBurst := cfg.RateBurst
	if rateBurst <= 0 {
		rateBurst = defaultRateBurst
	}

	return &Connector{
		cfg:     cfg,
		bot:     b,
		queue:   queue,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(rateLimit), rateBurst),
	}, nil
}

// ID implements channels.Handle.
func (c *Connector) ID() string { return "telegram" }

// Send implements channels.Handle by posting text to the conversation's
// chat id, blocking on the outbound rate limiter first to stay under
// Telegram's bot API throughput ceiling.
func (c *Connector) Send(ctx context.Context, conversationID, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: rate limiter: %w", err)
	}

	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid conversation id %q: %w", conversationID, err)
	}
	_, err = c.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	return err
}

// Start begins intake according to Mode. For long-poll mode it launches
// the polling loop as a background goroutine; for webhook mode it registers
// WebhookURL (and WebhookSecret, if set) with Telegram and starts no
// goroutine (the gateway's HTTP adapter drives HandleWebhook instead).
func (c *Connector) Start(ctx context.Context) error {
	if c.cfg.Mode != ModeLongPoll {
		params := &tgbot.SetWebhookParams{URL: c.cfg.WebhookURL}
		if c.cfg.WebhookSecret != "" {
			params.SecretToken = c.cfg.WebhookSecret
		}
		if _, err := c.bot.SetWebhook(ctx, params); err != nil {
			return fmt.Errorf("telegram: set webhook: %w", err)
		}
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	go c.longPollLoop(loopCtx)
	return nil
}

// Stop implements channels.Handle.
func (c *Connector) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
	if c.cfg.Mode == ModeWebhook {
		_, err := c.bot.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{})
		return err
	}
	return nil
}

// longPollLoop calls getUpdates with a 30s server-side hold, advancing
// offset to max(update_id)+1 after each batch. It terminates when the
// inbound queue is full or the context is cancelled.
func (c *Connector) longPollLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		offset := c.offset
		c.mu.Unlock()

		updates, err := c.bot.GetUpdates(ctx, &tgbot.GetUpdatesParams{
			Offset:  int(offset),
			Timeout: 30,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("telegram: get updates failed", "error", err)
			continue
		}

		var maxUpdateID int64
		for _, u := range updates {
			if int64(u.ID) > maxUpdateID {
				maxUpdateID = int64(u.ID)
			}
			if err := c.dispatch(u); err != nil {
				c.logger.Warn("telegram: inbound queue full, stopping long-poll loop", "error", err)
				return
			}
		}
		if maxUpdateID > 0 {
			c.mu.Lock()
			c.offset = maxUpdateID + 1
			c.mu.Unlock()
		}
	}
}

// HandleWebhook is mounted at POST /telegram/webhook by the HTTP adapter.
// It optionally verifies the configured secret header, decodes one update,
// and pushes it to the inbound queue; queue-full yields 503.
func (c *Connector) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if c.cfg.WebhookSecret != "" {
		if r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != c.cfg.WebhookSecret {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	var update models.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := c.dispatch(update); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (c *Connector) dispatch(update models.Update) error {
	if update.Message == nil || update.Message.Text == "" {
		return nil
	}
	msg := chaimodel.InboundMessage{
		ChannelID:      c.ID(),
		ConversationID: strconv.FormatInt(update.Message.Chat.ID, 10),
		Text:           update.Message.Text,
	}
	return c.queue.Push(msg)
}
