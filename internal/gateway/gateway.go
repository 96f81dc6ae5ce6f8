// Package gateway defines the bot's view of the messaging platform.
//
// Inbound traffic is normalised into Message; outbound traffic goes through
// Gateway. The dispatcher depends only on this package, so it never sees a
// Telegram type and both transports (polling and webhook) look the same to it.
package gateway

import "context"

// Format selects how the platform renders outgoing text.
type Format int

const (
	FormatPlain Format = iota
	FormatMarkdown
)

// Message is one inbound chat message.
type Message struct {
	ChatID       int64
	SenderID     int64
	SenderHandle string // may be empty
	Text         string // caption for photo messages
	ImageRef     string // file id of the largest attached photo, if any
}

// Gateway sends replies to the platform.
type Gateway interface {
	SendText(ctx context.Context, chatID int64, text string, format Format) error
	SendPhoto(ctx context.Context, chatID int64, imageRef string) error

	// Username is the bot's own handle, used to build deep links.
	Username() string
}
