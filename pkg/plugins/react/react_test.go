package react

import (
	"context"
	"strings"
	"testing"

	"axiombot/pkg/message"
	"axiombot/pkg/plugins/plugintest"
	"axiombot/pkg/state"
)

func reply(body string) *message.Message {
	msg := plugintest.Text(body)
	msg.Quoted = &message.Quoted{ID: "Q1", Sender: "2347000000001@s.whatsapp.net", Kind: message.KindConversation, Text: "nice"}
	return msg
}

func TestIsEmoji(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want bool
	}{
		{"❤️", true},
		{"👍", true},
		{"👍🏽", true},
		{"👨‍👩‍👧", true},
		{"⭐", true},
		{"", false},
		{"ok", false},
		{"👍 x", false},
	} {
		if got := IsEmoji(tc.in); got != tc.want {
			t.Errorf("IsEmoji(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestReact(t *testing.T) {
	env := plugintest.New(t)
	defs := New(env.Store).Commands()

	env.Run(t, defs, "react", plugintest.Text(".react ❤️"), "❤️")
	if !strings.HasPrefix(env.LastText(), "Please reply to a message to react to it") {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "react", reply(".react"), "")
	if !strings.HasPrefix(env.LastText(), "Please provide an emoji") {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "react", reply(".react yes"), "yes")
	if !strings.HasPrefix(env.LastText(), "Please provide a valid emoji") {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "react", reply(".react 🔥"), "🔥")
	calls := env.Gateway.Calls("react")
	if len(calls) != 1 || calls[0].Args[1] != "Q1" || calls[0].Args[2] != "🔥" {
		t.Fatalf("unexpected reactions %+v", calls)
	}
}

func TestQuickReact(t *testing.T) {
	env := plugintest.New(t)
	defs := New(env.Store).Commands()

	env.Run(t, defs, "clap", plugintest.Text(".clap"), "")
	if env.LastText() != "Please reply to a message to react with 👏" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "perfect", reply(".perfect"), "")
	calls := env.Gateway.Calls("react")
	if len(calls) != 1 || calls[0].Args[2] != "💯" || calls[0].Chat != plugintest.GroupJID {
		t.Fatalf("unexpected reactions %+v", calls)
	}
}

func TestAutoReactConfiguration(t *testing.T) {
	env := plugintest.New(t)
	env.AddGroup(false, true)
	defs := New(env.Store).Commands()
	ctx := context.Background()

	env.Run(t, defs, "autoreact", plugintest.Text(".autoreact fun"), "fun")
	if !strings.HasPrefix(env.LastText(), "*Fun & Energetic Template Applied*") || !strings.Contains(env.LastText(), "Chance: 25% per message") {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	env.Run(t, defs, "autoreact", plugintest.Text(".autoreact probability 40"), "probability 40")
	env.Run(t, defs, "autoreact", plugintest.Text(".autoreact mode keyword"), "mode keyword")
	env.Run(t, defs, "autoreact", plugintest.Text(".autoreact keyword well played 🏆"), "keyword well played 🏆")
	if env.LastText() != "*Keyword reaction added*\n\nKeyword: well played\nEmoji: 🏆" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "autoreact", plugintest.Text(".autoreact mode sometimes"), "mode sometimes")
	if env.LastText() != "Invalid mode. Use: random/keyword/both" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "autoreact", plugintest.Text(".autoreact sparkly"), "sparkly")
	if !strings.HasPrefix(env.LastText(), "*Unknown template: sparkly*") {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	m, err := state.Get[map[string]Setting](ctx, env.Store, state.SectionAutoReact)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	s := m[plugintest.GroupJID]
	if !s.Enabled || s.Mode != ModeKeyword || s.Probability != 0.4 || s.Keywords["well played"] != "🏆" || s.Keywords["party"] != "🎉" {
		t.Fatalf("unexpected setting %+v", s)
	}
	// Applying a template must not alias the preset.
	if _, ok := Templates[1].Setting.Keywords["well played"]; ok {
		t.Fatalf("template keywords were mutated")
	}

	env.Run(t, defs, "removekeyword", plugintest.Text(".removekeyword party"), "party")
	if env.LastText() != "*Keyword reaction removed*\n\nKeyword: party\nEmoji: 🎉" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "removekeyword", plugintest.Text(".removekeyword party"), "party")
	if env.LastText() != "This keyword is not configured for auto reactions" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	env.Run(t, defs, "clearautoreact", plugintest.Text(".clearautoreact"), "")
	if env.LastText() != "*All auto reaction settings cleared*\n\nRemoved settings from 1 chats" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
}

func TestAutoReactNeedsAdminInGroups(t *testing.T) {
	env := plugintest.New(t)
	env.AddGroup(true, false)
	defs := New(env.Store).Commands()

	env.Run(t, defs, "autoreact", plugintest.Text(".autoreact on"), "on")
	if env.LastText() != "_You are not an admin_" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	msg := plugintest.Text(".autoreact on")
	msg.IsGroup, msg.Chat = false, plugintest.SenderJID
	env.Run(t, defs, "autoreact", msg, "on")
	if !strings.HasPrefix(env.LastText(), "*Auto reactions turned ON*") {
		t.Fatalf("private chats need no admin, got %q", env.LastText())
	}
}

func TestTextHandlerPrefersKeywords(t *testing.T) {
	env := plugintest.New(t)
	p := New(env.Store)
	roll := 0.99
	p.roll = func() float64 { return roll }
	p.pick = func(n int) int { return n - 1 }
	defs := p.Commands()

	err := state.Put(context.Background(), env.Store, state.SectionAutoReact, map[string]Setting{
		plugintest.GroupJID: {
			Enabled:     true,
			Mode:        ModeBoth,
			Emojis:      []string{"😀", "😎"},
			Probability: 0.5,
			Keywords:    map[string]string{"thanks": "🙏"},
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	env.RunText(t, defs, plugintest.Text("Thanks a lot"))
	env.RunText(t, defs, plugintest.Text("just chatting"))
	roll = 0.1
	env.RunText(t, defs, plugintest.Text("just chatting"))

	calls := env.Gateway.Calls("react")
	if len(calls) != 2 {
		t.Fatalf("expected two reactions, got %+v", calls)
	}
	if calls[0].Args[2] != "🙏" || calls[1].Args[2] != "😎" {
		t.Fatalf("unexpected reactions %+v", calls)
	}

	other := plugintest.Text("thanks")
	other.Chat = "120363999999999999@g.us"
	env.RunText(t, defs, other)
	if len(env.Gateway.Calls("react")) != 2 {
		t.Fatalf("unconfigured chats get no reactions")
	}
}
