// Package telegram adapts the Telegram Bot API to the gateway interfaces.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sakif/snippetbot/internal/gateway"
)

var _ gateway.Gateway = (*Client)(nil)

// Client wraps a tgbotapi.BotAPI. It is safe for concurrent use.
type Client struct {
	api    *tgbotapi.BotAPI
	logger *slog.Logger
}

// New authenticates with the Bot API (getMe) and returns a ready client.
func New(token string, logger *slog.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connecting: %w", err)
	}
	return &Client{api: api, logger: logger}, nil
}

// NewWithEndpoint is New against a custom API endpoint such as a local Bot API
// server. endpoint has the form "https://host/bot%s/%s".
func NewWithEndpoint(token, endpoint string, logger *slog.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram: connecting: %w", err)
	}
	return &Client{api: api, logger: logger}, nil
}

// Username returns the bot's handle as reported by getMe.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// SendText sends a text message. A Markdown message the platform refuses to
// parse (snippet bodies often contain stray '*' or '_') is resent as plain text.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, format gateway.Format) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if format == gateway.FormatMarkdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}

	_, err := c.api.Send(msg)
	if err != nil && format == gateway.FormatMarkdown && isParseError(err) {
		c.logger.Warn("markdown rejected, resending as plain text",
			slog.Int64("chatID", chatID),
			slog.String("error", err.Error()),
		)
		msg.ParseMode = ""
		_, err = c.api.Send(msg)
	}
	if err != nil {
		return fmt.Errorf("telegram: sending message to %d: %w", chatID, err)
	}
	return nil
}

// SendPhoto sends an image by URL or by previously uploaded file id.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, imageRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var file tgbotapi.RequestFileData = tgbotapi.FileID(imageRef)
	if strings.HasPrefix(imageRef, "http://") || strings.HasPrefix(imageRef, "https://") {
		file = tgbotapi.FileURL(imageRef)
	}

	if _, err := c.api.Send(tgbotapi.NewPhoto(chatID, file)); err != nil {
		return fmt.Errorf("telegram: sending photo to %d: %w", chatID, err)
	}
	return nil
}

// SetWebhook registers url as the push endpoint.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("telegram: building webhook config: %w", err)
	}
	if _, err := c.api.Request(wh); err != nil {
		return fmt.Errorf("telegram: setting webhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes any registered webhook. getUpdates is refused while
// a webhook is set, so polling mode calls this first.
func (c *Client) DeleteWebhook() error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("telegram: deleting webhook: %w", err)
	}
	return nil
}

// Updates starts long polling and streams normalised messages. The returned
// channel is closed after StopUpdates, or when ctx is done.
func (c *Client) Updates(ctx context.Context, timeoutSeconds int) <-chan gateway.Message {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = timeoutSeconds
	updates := c.api.GetUpdatesChan(cfg)

	out := make(chan gateway.Message)
	go relay(ctx, updates, out)
	return out
}

// relay forwards message updates to out until ctx is done or updates closes.
// After ctx ends it keeps reading updates until the library closes it on
// StopUpdates, so the library's poll loop never blocks on a full buffer.
func relay(ctx context.Context, updates <-chan tgbotapi.Update, out chan<- gateway.Message) {
	defer func() {
		for range updates {
		}
	}()
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			msg, ok := FromUpdate(u)
			if !ok {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// StopUpdates ends the long-polling loop started by Updates.
func (c *Client) StopUpdates() {
	c.api.StopReceivingUpdates()
}

// FromUpdate extracts the chat message from an update. ok is false for
// updates that carry no message (edits, callbacks, channel posts).
func FromUpdate(u tgbotapi.Update) (gateway.Message, bool) {
	m := u.Message
	if m == nil || m.Chat == nil {
		return gateway.Message{}, false
	}

	msg := gateway.Message{
		ChatID: m.Chat.ID,
		Text:   m.Text,
	}
	if m.From != nil {
		msg.SenderID = m.From.ID
		msg.SenderHandle = m.From.UserName
	}
	if msg.Text == "" {
		msg.Text = m.Caption
	}
	// Telegram lists every resolution of a photo, smallest first.
	if n := len(m.Photo); n > 0 {
		msg.ImageRef = m.Photo[n-1].FileID
	}

	return msg, true
}

// DecodeUpdate reads one webhook request body.
func DecodeUpdate(r io.Reader) (gateway.Message, bool, error) {
	var u tgbotapi.Update
	if err := json.NewDecoder(r).Decode(&u); err != nil {
		return gateway.Message{}, false, fmt.Errorf("telegram: decoding update: %w", err)
	}
	msg, ok := FromUpdate(u)
	return msg, ok, nil
}

func isParseError(err error) bool {
	return strings.Contains(err.Error(), "can't parse entities")
}
