// Package commands holds the command definitions plugins register and the
// request passed to their handlers.
package commands

import (
	"context"
	"strings"

	"go.mau.fi/whatsmeow/types/events"

	"axiombot/pkg/config"
	"axiombot/pkg/gateway"
	"axiombot/pkg/logger"
	"axiombot/pkg/message"
	"axiombot/pkg/state"
)

// EventKind selects what makes a definition fire.
type EventKind string

const (
	// OnCommand fires when the body starts with prefix + trigger.
	OnCommand EventKind = "command"
	// OnText fires for every message with a body.
	OnText EventKind = "text"
	// OnImage, OnVideo and OnSticker fire on content type.
	OnImage   EventKind = "image"
	OnVideo   EventKind = "video"
	OnSticker EventKind = "sticker"
)

// Handler runs one definition for one message. Returned errors are logged
// by the dispatcher and never reach the user.
type Handler func(ctx context.Context, req *Request) error

// Definition is a registered command or passive handler.
type Definition struct {
	// Trigger is a regular expression matched right after the prefix.
	// Handlers get the text after its leading word as Request.Match,
	// not a capture group. Only used when On is OnCommand.
	Trigger string
	// On defaults to OnCommand.
	On EventKind
	// RequireOwner restricts the definition to sudo senders.
	RequireOwner bool
	// Hidden keeps the definition out of help listings.
	Hidden      bool
	Description string
	Category    string
	Handler     Handler
}

// Kind returns On, treating the zero value as OnCommand.
func (d *Definition) Kind() EventKind {
	if d.On == "" {
		return OnCommand
	}
	return d.On
}

// VisibleInHelp reports whether help output should list the definition.
func (d *Definition) VisibleInHelp() bool {
	return !d.Hidden && d.Kind() == OnCommand
}

// Name is the literal leading word of the trigger, used in listings.
func (d *Definition) Name() string {
	end := strings.IndexFunc(d.Trigger, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-')
	})
	if end < 0 {
		return d.Trigger
	}
	return d.Trigger[:end]
}

// Request is what a handler receives.
type Request struct {
	Message *message.Message
	// Match is the argument text for commands and the full body for text
	// handlers.
	Match    string
	Raw      *events.Message
	Gateway  gateway.Gateway
	Registry *Registry
	Store    *state.Store
	Config   config.Runtime
	Log      *logger.Logger
}

// Chat is shorthand for the message's chat jid.
func (r *Request) Chat() string { return r.Message.Chat }

// Send posts text to the chat without quoting.
func (r *Request) Send(ctx context.Context, text string) error {
	_, err := r.Gateway.Send(ctx, &gateway.Outgoing{To: r.Message.Chat, Text: text})
	return err
}

// Reply posts text to the chat quoting the triggering message.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Gateway.Send(ctx, &gateway.Outgoing{To: r.Message.Chat, Text: text, Quote: r.Message})
	return err
}

// ReplyMentions posts text that tags mentions.
func (r *Request) ReplyMentions(ctx context.Context, text string, mentions []string) error {
	_, err := r.Gateway.Send(ctx, &gateway.Outgoing{
		To:       r.Message.Chat,
		Text:     text,
		Mentions: mentions,
		Quote:    r.Message,
	})
	return err
}

// ReplyMedia posts an attachment with caption.
func (r *Request) ReplyMedia(ctx context.Context, media *gateway.Media, caption string) error {
	_, err := r.Gateway.Send(ctx, &gateway.Outgoing{
		To:    r.Message.Chat,
		Text:  caption,
		Media: media,
		Quote: r.Message,
	})
	return err
}

// React reacts to the triggering message.
func (r *Request) React(ctx context.Context, emoji string) error {
	return r.Gateway.React(ctx, r.Message.Chat, r.Message.Sender, r.Message.ID, emoji)
}

// Target resolves who a command is aimed at: the first mention, then the
// quoted author, then a number in the argument.
func (r *Request) Target() string {
	if len(r.Message.Mentions) > 0 {
		return r.Message.Mentions[0]
	}
	if r.Message.Quoted != nil && r.Message.Quoted.Sender != "" {
		return r.Message.Quoted.Sender
	}
	arg := strings.TrimSpace(r.Match)
	if first, _, _ := strings.Cut(arg, " "); strings.HasSuffix(first, "@s.whatsapp.net") {
		return first
	}
	// The number may be written with spaces, dashes or a leading +.
	end := strings.IndexFunc(arg, func(c rune) bool {
		return !(c >= '0' && c <= '9' || strings.ContainsRune("+-() ", c))
	})
	if end >= 0 {
		arg = arg[:end]
	}
	return gateway.UserJID(arg)
}
