// Package bot turns inbound chat messages into commands and runs them.
//
// Parsing produces one of a closed set of Command variants; the Dispatcher
// switches on the variant. Both transports (polling and webhook) hand their
// messages to the same Dispatcher, so a command behaves identically no matter
// how it arrived.
package bot

import (
	"strings"
	"unicode"
)

// Command names, as typed after the slash.
const (
	CmdStart     = "start"
	CmdAddCode   = "add_code"
	CmdBroadcast = "broadcast"
	CmdStats     = "stats"
)

const fence = "```"

// Command is a parsed chat command.
type Command interface {
	Name() string
}

// StartCommand opens a snippet when Payload is set, or greets the user.
type StartCommand struct {
	Payload string
}

// AddCodeCommand stores a new snippet.
type AddCodeCommand struct {
	Language    string
	Description string
	Body        string
}

// BroadcastCommand sends Text to every known user.
type BroadcastCommand struct {
	Text string
}

// StatsCommand reports user and snippet totals.
type StatsCommand struct{}

// MalformedCommand is a recognised command whose arguments did not parse.
type MalformedCommand struct {
	Command string
	Usage   string
}

func (StartCommand) Name() string       { return CmdStart }
func (AddCodeCommand) Name() string     { return CmdAddCode }
func (BroadcastCommand) Name() string   { return CmdBroadcast }
func (StatsCommand) Name() string       { return CmdStats }
func (c MalformedCommand) Name() string { return c.Command }

// Usage lines sent back for malformed commands.
const (
	UsageAddCode   = "Usage: /add_code <language> <description> ```<code>```"
	UsageBroadcast = "Usage: /broadcast <message>"
)

// commands is tried in order; the first name that matches wins.
var commands = []struct {
	name  string
	parse func(args string) Command
}{
	{CmdStart, parseStart},
	{CmdAddCode, parseAddCode},
	{CmdBroadcast, parseBroadcast},
	{CmdStats, parseStats},
}

// Parse recognises a command at the start of text. It returns nil when text
// is not a command this bot knows.
//
// A command token is "/name" or "/name@BotName", followed by whitespace or the
// end of the text. The @BotName form is only accepted when it names botName
// (compared case-insensitively, as Telegram handles are); an empty botName
// accepts any suffix.
func Parse(text, botName string) Command {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	if !strings.HasPrefix(text, "/") {
		return nil
	}

	token, args := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		token, args = text[:i], text[i:]
	}

	name := token[1:]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		target := name[at+1:]
		name = name[:at]
		if botName != "" && !strings.EqualFold(target, botName) {
			return nil
		}
	}

	for _, c := range commands {
		if c.name == name {
			return c.parse(args)
		}
	}
	return nil
}

func parseStart(args string) Command {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return StartCommand{}
	}
	return StartCommand{Payload: fields[0]}
}

// parseAddCode reads `<language> <description> ```<body>````. The body runs
// from the first fence to the last one, so it may itself contain fences.
func parseAddCode(args string) Command {
	malformed := MalformedCommand{Command: CmdAddCode, Usage: UsageAddCode}

	open := strings.Index(args, fence)
	if open < 0 {
		return malformed
	}
	closing := strings.LastIndex(args, fence)
	if closing == open {
		return malformed
	}

	head := strings.TrimSpace(args[:open])
	language, description, ok := cutSpace(head)
	description = strings.TrimSpace(description)
	if !ok || language == "" || description == "" {
		return malformed
	}

	body := strings.Trim(args[open+len(fence):closing], "\r\n")
	if strings.TrimSpace(body) == "" {
		return malformed
	}

	return AddCodeCommand{
		Language:    language,
		Description: description,
		Body:        body,
	}
}

// cutSpace is strings.Cut on the first whitespace rune.
func cutSpace(s string) (before, after string, found bool) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i:], true
}

func parseBroadcast(args string) Command {
	text := strings.TrimSpace(args)
	if text == "" {
		return MalformedCommand{Command: CmdBroadcast, Usage: UsageBroadcast}
	}
	return BroadcastCommand{Text: text}
}

func parseStats(string) Command {
	return StatsCommand{}
}
