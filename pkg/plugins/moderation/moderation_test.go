package moderation

import (
	"context"
	"strings"
	"testing"

	"axiombot/pkg/gateway"
	"axiombot/pkg/message"
	"axiombot/pkg/plugins/pluginkit"
	"axiombot/pkg/plugins/plugintest"
	"axiombot/pkg/state"
)

const (
	admin    = "2347000000009@s.whatsapp.net"
	offender = plugintest.SenderJID
)

func TestContainsLink(t *testing.T) {
	cases := map[string]bool{
		"see https://example.com/x": true,
		"www.example.org":           true,
		"visit shop.io today":       true,
		"no links here":             false,
		"ends with a dot.":          false,
	}
	for text, want := range cases {
		if got := ContainsLink(text); got != want {
			t.Errorf("ContainsLink(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestContainsBanned(t *testing.T) {
	if !ContainsBanned("That is SPAMMY", []string{"spam"}) {
		t.Fatalf("matching ignores case and substrings")
	}
	if ContainsBanned("clean", []string{"", "spam"}) {
		t.Fatalf("unexpected match")
	}
}

// adminMsg is a command sent by a group admin.
func adminMsg(body string) *message.Message {
	msg := plugintest.Text(body)
	msg.Sender = admin
	return msg
}

func participant(jid string, isAdmin bool) gateway.Participant {
	return gateway.Participant{JID: jid, IsAdmin: isAdmin}
}

func TestAntiLinkConfiguration(t *testing.T) {
	env := plugintest.New(t)
	info := env.AddGroup(true, false)
	info.Participants = append(info.Participants, participant(admin, true))
	defs := New(env.Store).Commands()

	env.Run(t, defs, "antilink", plugintest.Text(".antilink on"), "on")
	if env.LastText() != pluginkit.NotAdmin {
		t.Fatalf("non admins must be refused, got %q", env.LastText())
	}

	env.Run(t, defs, "antilink", adminMsg(".antilink"), "")
	if !strings.Contains(env.LastText(), "Status: DISABLED\nAction: WARN") {
		t.Fatalf("unexpected status %q", env.LastText())
	}
	env.Run(t, defs, "antilink", adminMsg(".antilink KICK"), "KICK")
	if env.LastText() != "*Antilink action set to:* KICK" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "antilink", adminMsg(".antilink maybe"), "maybe")
	if env.LastText() != badOption {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	rules, err := state.Get[map[string]LinkRule](context.Background(), env.Store, state.SectionAntiLink)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r := rules[plugintest.GroupJID]; !r.Enabled || r.Action != ActionKick {
		t.Fatalf("unexpected rule %+v", r)
	}
}

func TestBannedWordList(t *testing.T) {
	env := plugintest.New(t)
	env.AddGroup(true, true)
	defs := New(env.Store).Commands()

	env.Run(t, defs, "addword", plugintest.Text(".addword Spam"), "Spam")
	env.Run(t, defs, "addword", plugintest.Text(".addword scam"), "scam")
	if env.LastText() != "*Word added to ban list:* scam\n\nTotal banned words: 2" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "addword", plugintest.Text(".addword spam"), "spam")
	if env.LastText() != "_This word is already banned_" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "removeword", plugintest.Text(".removeword scam"), "scam")
	env.Run(t, defs, "removeword", plugintest.Text(".removeword scam"), "scam")
	if env.LastText() != "_This word is not in the ban list_" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "listwords", plugintest.Text(".listwords"), "")
	if env.LastText() != "*Banned Words List*\n\n1. spam\n\nTotal: 1 words" {
		t.Fatalf("unexpected list %q", env.LastText())
	}

	// Adding words does not enable the rule.
	env.Run(t, defs, "antiword", plugintest.Text(".antiword"), "")
	if !strings.Contains(env.LastText(), "Status: DISABLED") || !strings.Contains(env.LastText(), "Banned Words: 1") {
		t.Fatalf("unexpected status %q", env.LastText())
	}
}

func TestWarnThenKick(t *testing.T) {
	env := plugintest.New(t)
	env.AddGroup(true, false)
	defs := New(env.Store).Commands()
	ctx := context.Background()

	err := state.Put(ctx, env.Store, state.SectionAntiLink, map[string]LinkRule{
		plugintest.GroupJID: {Enabled: true, Action: ActionWarn},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	for i := 1; i <= MaxWarnings; i++ {
		env.RunText(t, defs, plugintest.Text("join www.spam.example"))
	}

	if got := len(env.Gateway.Calls("revoke")); got != MaxWarnings {
		t.Fatalf("every offending message must be deleted, got %d", got)
	}
	texts := env.Gateway.Texts()
	if len(texts) != MaxWarnings {
		t.Fatalf("expected %d notices, got %v", MaxWarnings, texts)
	}
	if texts[0] != "*Warning 1/3*\n"+linkReason+"\n\n@2348012345678 - 2 warning(s) remaining before removal." {
		t.Fatalf("unexpected first warning %q", texts[0])
	}
	if !strings.HasPrefix(texts[2], "*User Removed*\n"+linkReason) {
		t.Fatalf("third strike must remove, got %q", texts[2])
	}
	kicks := env.Gateway.Calls("participants")
	if len(kicks) != 1 || kicks[0].Args[0] != "remove" || kicks[0].Args[1] != offender {
		t.Fatalf("unexpected participant calls %+v", kicks)
	}

	warnings, err := state.Get[map[string]map[string]int](ctx, env.Store, state.SectionWarnings)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(warnings[plugintest.GroupJID]) != 0 {
		t.Fatalf("warnings must be cleared after removal, got %v", warnings)
	}
}

func TestEnforcementExemptions(t *testing.T) {
	ctx := context.Background()
	seed := func(t *testing.T, env *plugintest.Env) {
		t.Helper()
		err := state.Put(ctx, env.Store, state.SectionAntiWord, map[string]WordRule{
			plugintest.GroupJID: {Enabled: true, Action: ActionDelete, Words: []string{"spam"}},
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	t.Run("admin sender", func(t *testing.T) {
		env := plugintest.New(t)
		env.AddGroup(true, true)
		seed(t, env)
		env.RunText(t, New(env.Store).Commands(), plugintest.Text("buy spam"))
		if len(env.Gateway.Calls("revoke")) != 0 {
			t.Fatalf("admins are exempt")
		}
	})

	t.Run("bot not admin", func(t *testing.T) {
		env := plugintest.New(t)
		env.AddGroup(false, false)
		seed(t, env)
		env.RunText(t, New(env.Store).Commands(), plugintest.Text("buy spam"))
		if len(env.Gateway.Calls("revoke")) != 0 {
			t.Fatalf("nothing can be enforced without admin rights")
		}
	})

	t.Run("silent delete", func(t *testing.T) {
		env := plugintest.New(t)
		env.AddGroup(true, false)
		seed(t, env)
		env.RunText(t, New(env.Store).Commands(), plugintest.Text("buy SPAM now"))
		if len(env.Gateway.Calls("revoke")) != 1 || len(env.Gateway.Sent()) != 0 {
			t.Fatalf("delete action removes the message without a notice")
		}
	})
}

func TestManualWarnAndReset(t *testing.T) {
	env := plugintest.New(t)
	info := env.AddGroup(true, false)
	info.Participants = append(info.Participants, participant(admin, true))
	defs := New(env.Store).Commands()

	msg := adminMsg(".warn stop flooding")
	msg.Quoted = &message.Quoted{ID: "Q", Sender: offender}
	env.Run(t, defs, "warn", msg, "stop flooding")
	if !strings.HasPrefix(env.LastText(), "*Warning 1/3*\nstop flooding") {
		t.Fatalf("unexpected warning %q", env.LastText())
	}

	env.Run(t, defs, "resetwarn", adminMsg(".resetwarn 2348012345678"), "2348012345678")
	if env.LastText() != "_Warnings cleared for @2348012345678_" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	env.Run(t, defs, "resetwarn", adminMsg(".resetwarn 2348012345678"), "2348012345678")
	if env.LastText() != "_User has no warnings_" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	env.Run(t, defs, "warn", adminMsg(".warn 2347000000009"), "2347000000009")
	if env.LastText() != "_Admins cannot be warned_" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
}
