package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/sakif/snippetbot/internal/apperror"
	"github.com/sakif/snippetbot/internal/gateway"
	"github.com/sakif/snippetbot/internal/metrics"
	"github.com/sakif/snippetbot/internal/service"
)

// Replies.
const (
	MsgWelcome         = "Welcome! Use the provided links to access specific codes."
	MsgInvalidLink     = "Invalid or expired link."
	MsgAddCodeDenied   = "You are not authorized to add codes."
	MsgBroadcastDenied = "You are not authorized to broadcast messages."
	MsgStatsDenied     = "You are not authorized to view stats."
	MsgCodeAdded       = "Code added successfully! Share this link:\n%s"
	MsgBroadcastSent   = "Broadcast sent successfully!\nDelivered: %d, failed: %d"
	MsgInternalError   = "Something went wrong. Please try again later."
	msgSnippet         = "*Language:* %s\n*Description:* %s\n\n%s"
	msgStats           = "📊 *Bot Statistics*:\n\n👥 Total Users: %d\n📂 Total Codes: %d"
	msgInvalidSnippet  = "Invalid snippet: %s\n%s"
	defaultLinkHost    = "t.me"
	deepLinkFormat     = "https://%s/%s?start=%s"
)

// privileged maps each admin-only command to the reply a regular user gets.
var privileged = map[string]string{
	CmdAddCode:   MsgAddCodeDenied,
	CmdBroadcast: MsgBroadcastDenied,
	CmdStats:     MsgStatsDenied,
}

// Services groups what the dispatcher delegates to.
type Services struct {
	Users     *service.UserService
	Access    *service.AccessService
	Snippets  *service.SnippetService
	Stats     *service.StatsService
	Broadcast *service.BroadcastService
}

// Options configures deep links.
type Options struct {
	// LinkHost is the deep-link host, "t.me" when empty.
	LinkHost string
	// BotName overrides the gateway's own username in deep links and
	// /command@BotName matching.
	BotName string
}

// Dispatcher runs one inbound message to completion. It is safe for
// concurrent use; the poller calls Handle from many goroutines.
type Dispatcher struct {
	gw     gateway.Gateway
	svc    Services
	opts   Options
	logger *slog.Logger
}

func NewDispatcher(gw gateway.Gateway, svc Services, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.LinkHost == "" {
		opts.LinkHost = defaultLinkHost
	}
	return &Dispatcher{gw: gw, svc: svc, opts: opts, logger: logger}
}

// Handle registers the sender, then parses and runs at most one command.
//
// The returned error is a store failure (or a recovered panic). Domain
// outcomes such as not-found, rejection and bad input are answered in chat and
// return nil, as do failed reply deliveries: the message was processed, and
// having the platform redeliver it would repeat its side effects.
func (d *Dispatcher) Handle(ctx context.Context, msg gateway.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling message",
				slog.Int64("chatID", msg.ChatID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("bot: panic handling message: %v", r)
		}
	}()

	// Every sender is recorded, command or not. A failure here must not
	// stop the command itself from running.
	var regErr error
	if msg.SenderID != 0 {
		if _, regErr = d.svc.Users.Register(ctx, msg.SenderID, msg.SenderHandle); regErr != nil {
			metrics.RegistrationFailures.Inc()
			d.logger.Error("failed to register user",
				slog.Int64("userID", msg.SenderID),
				slog.String("error", regErr.Error()),
			)
		}
	}

	cmd := Parse(msg.Text, d.botName())
	if cmd == nil {
		// Registration is idempotent, so a redelivered plain message is safe.
		return regErr
	}

	// Once a command has run, only its own error is reported. A redelivery
	// would repeat its side effects (access counts, broadcasts), and the
	// sender is registered again on their next message anyway.
	return d.run(ctx, msg, cmd)
}

func (d *Dispatcher) run(ctx context.Context, msg gateway.Message, cmd Command) error {
	name := cmd.Name()

	if denied, ok := privileged[name]; ok {
		allowed, err := d.svc.Access.IsAuthorized(ctx, msg.SenderID)
		if err != nil {
			return d.fail(ctx, msg, name, err)
		}
		if !allowed {
			d.logger.Warn("unauthorized command",
				slog.String("command", name),
				slog.Int64("userID", msg.SenderID),
			)
			d.count(name, metrics.OutcomeRejected)
			d.reply(ctx, msg.ChatID, denied, gateway.FormatPlain)
			return nil
		}
	}

	switch c := cmd.(type) {
	case MalformedCommand:
		d.logger.Warn("malformed command",
			slog.String("command", c.Command),
			slog.Int64("userID", msg.SenderID),
		)
		d.count(name, metrics.OutcomeMalformed)
		d.reply(ctx, msg.ChatID, c.Usage, gateway.FormatPlain)
		return nil
	case StartCommand:
		return d.start(ctx, msg, c)
	case AddCodeCommand:
		return d.addCode(ctx, msg, c)
	case BroadcastCommand:
		return d.broadcast(ctx, msg, c)
	case StatsCommand:
		return d.stats(ctx, msg)
	default:
		return fmt.Errorf("bot: unhandled command %T", cmd)
	}
}

func (d *Dispatcher) start(ctx context.Context, msg gateway.Message, c StartCommand) error {
	if c.Payload == "" {
		d.count(CmdStart, metrics.OutcomeOK)
		d.reply(ctx, msg.ChatID, MsgWelcome, gateway.FormatPlain)
		return nil
	}

	// The counter moves before the reply is sent.
	snippet, err := d.svc.Snippets.Open(ctx, c.Payload)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			d.count(CmdStart, metrics.OutcomeNotFound)
			d.reply(ctx, msg.ChatID, MsgInvalidLink, gateway.FormatPlain)
			return nil
		}
		return d.fail(ctx, msg, CmdStart, err)
	}

	d.count(CmdStart, metrics.OutcomeOK)
	d.reply(ctx, msg.ChatID,
		fmt.Sprintf(msgSnippet, snippet.Language, snippet.Description, snippet.Content),
		gateway.FormatMarkdown)

	if snippet.Image != "" {
		if err := d.gw.SendPhoto(ctx, msg.ChatID, snippet.Image); err != nil {
			d.logger.Warn("failed to send snippet image",
				slog.String("id", snippet.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (d *Dispatcher) addCode(ctx context.Context, msg gateway.Message, c AddCodeCommand) error {
	snippet, err := d.svc.Snippets.Create(ctx, service.AddCodeInput{
		Language:    c.Language,
		Description: c.Description,
		Content:     c.Body,
		Image:       msg.ImageRef,
		CreatedBy:   msg.SenderHandle,
	})
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			d.count(CmdAddCode, metrics.OutcomeInvalid)
			d.reply(ctx, msg.ChatID,
				fmt.Sprintf(msgInvalidSnippet, apperror.UserMessage(err, "invalid input"), UsageAddCode),
				gateway.FormatPlain)
			return nil
		}
		return d.fail(ctx, msg, CmdAddCode, err)
	}

	d.count(CmdAddCode, metrics.OutcomeOK)
	d.reply(ctx, msg.ChatID, fmt.Sprintf(MsgCodeAdded, d.DeepLink(snippet.ID)), gateway.FormatPlain)
	return nil
}

func (d *Dispatcher) broadcast(ctx context.Context, msg gateway.Message, c BroadcastCommand) error {
	result, err := d.svc.Broadcast.Broadcast(ctx, c.Text)
	if err != nil {
		return d.fail(ctx, msg, CmdBroadcast, err)
	}

	d.count(CmdBroadcast, metrics.OutcomeOK)
	d.reply(ctx, msg.ChatID,
		fmt.Sprintf(MsgBroadcastSent, result.Delivered, result.Failed),
		gateway.FormatPlain)
	return nil
}

func (d *Dispatcher) stats(ctx context.Context, msg gateway.Message) error {
	stats, err := d.svc.Stats.Stats(ctx)
	if err != nil {
		return d.fail(ctx, msg, CmdStats, err)
	}

	d.count(CmdStats, metrics.OutcomeOK)
	d.reply(ctx, msg.ChatID, fmt.Sprintf(msgStats, stats.Users, stats.Snippets), gateway.FormatMarkdown)
	return nil
}

// DeepLink is the shareable link that opens snippet id through /start.
func (d *Dispatcher) DeepLink(id string) string {
	return fmt.Sprintf(deepLinkFormat, d.opts.LinkHost, d.botName(), id)
}

func (d *Dispatcher) botName() string {
	if d.opts.BotName != "" {
		return d.opts.BotName
	}
	return d.gw.Username()
}

// reply sends text and logs a failed delivery.
func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string, format gateway.Format) {
	if err := d.gw.SendText(ctx, chatID, text, format); err != nil {
		d.logger.Warn("failed to send reply",
			slog.Int64("chatID", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// fail logs err, tells the user something went wrong and returns err.
func (d *Dispatcher) fail(ctx context.Context, msg gateway.Message, command string, err error) error {
	d.logger.Error("command failed",
		slog.String("command", command),
		slog.Int64("userID", msg.SenderID),
		slog.String("error", err.Error()),
	)
	d.count(command, metrics.OutcomeError)
	d.reply(ctx, msg.ChatID, MsgInternalError, gateway.FormatPlain)
	return fmt.Errorf("bot: %s: %w", command, err)
}

func (d *Dispatcher) count(command, outcome string) {
	metrics.CommandsTotal.WithLabelValues(command, outcome).Inc()
}
