package sticky

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"axiombot/pkg/commands"
	"axiombot/pkg/message"
	"axiombot/pkg/plugins/plugintest"
	"axiombot/pkg/state"
)

type runner struct {
	mu   sync.Mutex
	ran  []string
	hits int
}

func (r *runner) RunCommand(ctx context.Context, msg *message.Message, raw *events.Message, text string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, text)
	return r.hits
}

func sticker(sum byte) *waE2E.Message {
	return &waE2E.Message{StickerMessage: &waE2E.StickerMessage{FileSHA256: []byte{sum, 0xab, 0xcd, 0xef, 0x01}}}
}

func replyToSticker(body string, sum byte) *message.Message {
	msg := plugintest.Text(body)
	msg.Quoted = &message.Quoted{ID: "S", Sender: plugintest.SenderJID, Kind: message.KindSticker, Content: sticker(sum)}
	return msg
}

func stickerMsg(sum byte) *message.Message {
	msg := plugintest.Text("")
	msg.Kind = message.KindSticker
	msg.Content = sticker(sum)
	return msg
}

func TestBindAndRun(t *testing.T) {
	env := plugintest.New(t)
	env.AddGroup(false, true)
	r := &runner{hits: 1}
	p := New(env.Store, r)
	defs := p.Commands()

	env.Run(t, defs, "sticky", plugintest.Text(".sticky alive"), "alive")
	if !strings.HasPrefix(env.LastText(), "Please reply to a sticker") {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	env.Run(t, defs, "sticky", replyToSticker(".sticky alive", 1), "alive")
	if env.LastText() != "*Sticky Command Set Successfully*\n\nSticker assigned to command: .alive\nCreated by: Ada\nScope: This Group Only" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	handler := plugintest.Find(t, defs, "", commands.OnSticker)
	if err := handler.Handler(context.Background(), env.Request(stickerMsg(1), "")); err != nil {
		t.Fatalf("sticker: %v", err)
	}
	if err := handler.Handler(context.Background(), env.Request(stickerMsg(2), "")); err != nil {
		t.Fatalf("sticker: %v", err)
	}
	if len(r.ran) != 1 || r.ran[0] != ".alive" {
		t.Fatalf("unexpected runs %v", r.ran)
	}

	// Group-bound stickers do nothing elsewhere.
	other := stickerMsg(1)
	other.Chat = "120363999999999999@g.us"
	if err := handler.Handler(context.Background(), env.Request(other, "")); err != nil {
		t.Fatalf("sticker: %v", err)
	}
	if len(r.ran) != 1 {
		t.Fatalf("scope must be honoured, got %v", r.ran)
	}

	env.Run(t, defs, "stickyinfo", replyToSticker(".stickyinfo", 1), "")
	if !strings.Contains(env.LastText(), "Usage count: 1\nScope: Group Only") {
		t.Fatalf("unexpected info %q", env.LastText())
	}

	env.Run(t, defs, "unsticky", replyToSticker(".unsticky", 1), "")
	if env.LastText() != "*Sticky Command Removed*\n\nRemoved command: .alive\nUsage count: 1" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "unsticky", replyToSticker(".unsticky", 1), "")
	if env.LastText() != "This sticker does not have any assigned command" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
}

func TestListFiltersByScope(t *testing.T) {
	env := plugintest.New(t)
	p := New(env.Store, &runner{})
	defs := p.Commands()

	err := state.Put(context.Background(), env.Store, state.SectionSticky, map[string]Binding{
		"aaaaaaaaaaaa": {Command: ".menu", CreatedByName: "Ada", Timestamp: 1},
		"bbbbbbbbbbbb": {Command: ".alive", CreatedByName: "Bo", Timestamp: 2, GroupID: "120363999999999999@g.us"},
		"cccccccccccc": {Command: ".list", CreatedByName: "Cy", Timestamp: 3, GroupID: plugintest.GroupJID},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	env.Run(t, defs, "stickylist", plugintest.Text(".stickylist"), "")
	got := env.LastText()
	if strings.Contains(got, ".alive") || !strings.Contains(got, "1. Command: .menu") || !strings.Contains(got, "2. Command: .list") {
		t.Fatalf("unexpected list %q", got)
	}
	if !strings.HasSuffix(got, "Total: 2 sticky commands") || !strings.Contains(got, "Sticker ID: aaaaaaaa...") {
		t.Fatalf("unexpected list %q", got)
	}

	env.Run(t, defs, "clearsticky", plugintest.Text(".clearsticky"), "")
	if env.LastText() != "*All Sticky Commands Cleared*\n\nRemoved 3 sticky commands" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "clearsticky", plugintest.Text(".clearsticky"), "")
	if env.LastText() != "No sticky commands to clear" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
}

func TestTestStickyReportsFailure(t *testing.T) {
	env := plugintest.New(t)
	msg := replyToSticker(".sticky ping", 7)
	msg.IsGroup, msg.Chat = false, plugintest.SenderJID
	r := &runner{}
	p := New(env.Store, r)
	defs := p.Commands()

	env.Run(t, defs, "sticky", msg, "ping")
	if !strings.HasSuffix(env.LastText(), "Scope: Global") {
		t.Fatalf("private bindings are global, got %q", env.LastText())
	}
	test := replyToSticker(".teststicky", 7)
	test.IsGroup, test.Chat = false, plugintest.SenderJID
	env.Run(t, defs, "teststicky", test, "")
	if env.LastText() != "*Test failed* - Command could not be executed" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
}
