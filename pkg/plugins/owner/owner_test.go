package owner

import (
	"context"
	"testing"

	"axiombot/pkg/message"
	"axiombot/pkg/plugins/plugintest"
)

func TestSudoManagement(t *testing.T) {
	env := plugintest.New(t)
	defs := New(env.Store).Commands()

	env.Run(t, defs, "setsudo", plugintest.Text(".setsudo 12"), "12")
	if env.LastText() != "_Invalid WhatsApp number format. Example: 27828418477_" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	env.Run(t, defs, "setsudo", plugintest.Text(".setsudo 27828418477"), "27828418477")
	env.Run(t, defs, "setsudo", plugintest.Text(".setsudo 27828418477"), "27828418477")
	if env.LastText() != "_Number is already a sudo user._" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	env.Run(t, defs, "getsudo", plugintest.Text(".getsudo"), "")
	if env.LastText() != "*Sudo Users:*\n• "+plugintest.OwnerNum+"\n• 27828418477" {
		t.Fatalf("unexpected list %q", env.LastText())
	}

	env.Run(t, defs, "delsudo", plugintest.Text(".delsudo 27828418477"), "27828418477")
	stored, err := env.Store.SudoNumbers(context.Background())
	if err != nil || len(stored) != 0 {
		t.Fatalf("expected empty stored list, got %v %v", stored, err)
	}
	env.Run(t, defs, "delsudo", plugintest.Text(".delsudo 27828418477"), "27828418477")
	if env.LastText() != "_Number is not in sudo list._" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
}

func TestBlockByNumberAndReply(t *testing.T) {
	env := plugintest.New(t)
	defs := New(env.Store).Commands()

	env.Run(t, defs, "block", plugintest.Text(".block"), "")
	if len(env.Gateway.Calls("block")) != 0 {
		t.Fatalf("no target must not block")
	}

	env.Run(t, defs, "block", plugintest.Text(".block +234 700 000 0000"), "+234 700 000 0000")
	msg := plugintest.Text(".unblock")
	msg.Quoted = &message.Quoted{ID: "Q", Sender: "2347111111111@s.whatsapp.net"}
	env.Run(t, defs, "unblock", msg, "")

	calls := env.Gateway.Calls("block")
	if len(calls) != 2 {
		t.Fatalf("expected two blocklist updates, got %+v", calls)
	}
	if calls[0].Chat != "2347000000000@s.whatsapp.net" || !calls[0].Value {
		t.Fatalf("unexpected block %+v", calls[0])
	}
	if calls[1].Chat != "2347111111111@s.whatsapp.net" || calls[1].Value {
		t.Fatalf("unexpected unblock %+v", calls[1])
	}
	if env.LastText() != "_Unblocked +2347111111111_" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
}

func TestSaveForwardsToEverySudo(t *testing.T) {
	env := plugintest.New(t)
	if _, err := env.Store.AddSudo(context.Background(), "2347222222222"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	defs := New(env.Store).Commands()

	msg := plugintest.Text(".save")
	msg.Quoted = &message.Quoted{ID: "Q", Kind: message.KindConversation, Text: "remember this"}
	env.Run(t, defs, "save", msg, "")

	sent := env.Gateway.Sent()
	if len(sent) != 2 {
		t.Fatalf("expected two forwards, got %+v", sent)
	}
	if sent[0].To != plugintest.OwnerNum+"@s.whatsapp.net" || sent[1].To != "2347222222222@s.whatsapp.net" {
		t.Fatalf("unexpected recipients %s %s", sent[0].To, sent[1].To)
	}
	for _, s := range sent {
		if s.Text != "remember this" || s.Quote != nil {
			t.Fatalf("unexpected forward %+v", s)
		}
	}
}

func TestProfileShowsStatus(t *testing.T) {
	env := plugintest.New(t)
	target := "2347000000000@s.whatsapp.net"
	env.Gateway.Statuses = map[string]string{target: "busy"}
	defs := New(env.Store).Commands()

	env.Run(t, defs, "profile", plugintest.Text(".profile 2347000000000"), "2347000000000")
	want := "*Profile Information*\n\n*Number:* +2347000000000\n*JID:* " + target + "\n*Status:* busy\n*Profile Picture:* Not available"
	if env.LastText() != want {
		t.Fatalf("unexpected profile %q", env.LastText())
	}
}
