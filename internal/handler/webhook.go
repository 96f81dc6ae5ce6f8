// Package handler contains the bot's HTTP handlers.
package handler

import (
	"context"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippetbot/internal/apperror"
	"github.com/sakif/snippetbot/internal/gateway"
	"github.com/sakif/snippetbot/internal/metrics"
)

// maxUpdateSize caps a webhook body. A snippet is at most ~100KB of text.
const maxUpdateSize = 1 << 20

// MessageHandler processes one inbound message. *bot.Dispatcher satisfies it.
type MessageHandler interface {
	Handle(ctx context.Context, msg gateway.Message) error
}

// DecodeFunc turns a request body into a message. ok is false for updates
// that carry nothing to handle.
type DecodeFunc func(r io.Reader) (msg gateway.Message, ok bool, err error)

// WebhookHandler receives pushed updates.
type WebhookHandler struct {
	secret  string
	decode  DecodeFunc
	handler MessageHandler
	logger  *slog.Logger
}

func NewWebhookHandler(secret string, decode DecodeFunc, handler MessageHandler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:  secret,
		decode:  decode,
		handler: handler,
		logger:  logger,
	}
}

// HandleUpdate handles POST /webhook/{secret}.
//
// Responses:
//
//	404 → wrong secret (indistinguishable from an unknown route)
//	400 → body is not an update
//	500 → the store failed; Telegram will redeliver
//	200 → handled, or nothing to handle
func (h *WebhookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	secret := chi.URLParam(r, "secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.secret)) != 1 {
		http.NotFound(w, r)
		return
	}

	msg, ok, err := h.decode(http.MaxBytesReader(w, r.Body, maxUpdateSize))
	if err != nil {
		h.logger.Warn("rejected webhook body", slog.String("error", err.Error()))
		writeError(w, apperror.ValidationFailed("body", "invalid update payload"))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	metrics.UpdatesReceived.WithLabelValues("webhook").Inc()

	if err := h.handler.Handle(r.Context(), msg); err != nil {
		h.logger.Error("failed to handle webhook update",
			slog.Int64("chatID", msg.ChatID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
