// Package plugintest builds requests against in-memory collaborators for
// plugin tests.
package plugintest

import (
	"context"
	"testing"

	"axiombot/pkg/commands"
	"axiombot/pkg/config"
	"axiombot/pkg/gateway"
	"axiombot/pkg/gateway/gatewaytest"
	"axiombot/pkg/logger"
	"axiombot/pkg/message"
	"axiombot/pkg/state"
)

const (
	BotJID    = "2340000000000@s.whatsapp.net"
	GroupJID  = "120363000000000001@g.us"
	SenderJID = "2348012345678@s.whatsapp.net"
	OwnerNum  = "2349000000000"
)

// Env is a set of fakes shared by one test.
type Env struct {
	Log      *logger.Logger
	Gateway  *gatewaytest.Recorder
	Store    *state.Store
	Registry *commands.Registry
	Config   *config.Config
}

// New returns an Env with an in-memory store and a recording gateway.
func New(t *testing.T) *Env {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: logger.LevelError})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.SetSudo([]string{OwnerNum})
	return &Env{
		Log:      log,
		Gateway:  gatewaytest.New(BotJID),
		Store:    state.NewStore(log, state.NewMemoryBackend()),
		Registry: commands.NewRegistry(),
		Config:   cfg,
	}
}

// Text returns a group text message from SenderJID.
func Text(body string) *message.Message {
	return &message.Message{
		ID:       "MSG1",
		Chat:     GroupJID,
		Sender:   SenderJID,
		PushName: "Ada",
		IsGroup:  true,
		Kind:     message.KindConversation,
		Body:     body,
		HasBody:  body != "",
		Prefix:   ".",
	}
}

// Request wraps msg for a handler.
func (e *Env) Request(msg *message.Message, match string) *commands.Request {
	return &commands.Request{
		Message:  msg,
		Match:    match,
		Gateway:  e.Gateway,
		Registry: e.Registry,
		Store:    e.Store,
		Config:   e.Config.Snapshot(),
		Log:      e.Log,
	}
}

// Find returns the definition whose trigger name is name, or the first
// definition of kind on when name is empty.
func Find(t *testing.T, defs []*commands.Definition, name string, on commands.EventKind) *commands.Definition {
	t.Helper()
	for _, d := range defs {
		if name != "" && d.Kind() == commands.OnCommand && d.Name() == name {
			return d
		}
		if name == "" && d.Kind() == on {
			return d
		}
	}
	t.Fatalf("no definition %q (%s)", name, on)
	return nil
}

// Run invokes the named command with match and fails on handler error.
func (e *Env) Run(t *testing.T, defs []*commands.Definition, name string, msg *message.Message, match string) {
	t.Helper()
	def := Find(t, defs, name, commands.OnCommand)
	if err := def.Handler(context.Background(), e.Request(msg, match)); err != nil {
		t.Fatalf("%s: %v", name, err)
	}
}

// RunText invokes the text handler with msg's body.
func (e *Env) RunText(t *testing.T, defs []*commands.Definition, msg *message.Message) {
	t.Helper()
	def := Find(t, defs, "", commands.OnText)
	if err := def.Handler(context.Background(), e.Request(msg, msg.Body)); err != nil {
		t.Fatalf("text handler: %v", err)
	}
}

// LastText returns the most recent sent text, or "".
func (e *Env) LastText() string {
	texts := e.Gateway.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// AddGroup registers GroupJID with SenderJID, the bot and members. The
// admin flags decide who holds admin rights.
func (e *Env) AddGroup(botAdmin, senderAdmin bool, members ...string) *gateway.GroupInfo {
	info := &gateway.GroupInfo{
		JID:  GroupJID,
		Name: "Test Group",
		Participants: []gateway.Participant{
			{JID: BotJID, IsAdmin: botAdmin},
			{JID: SenderJID, IsAdmin: senderAdmin},
		},
	}
	for _, m := range members {
		info.Participants = append(info.Participants, gateway.Participant{JID: m})
	}
	e.Gateway.Groups[GroupJID] = info
	return info
}
