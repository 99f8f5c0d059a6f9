package greetings

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"axiombot/pkg/message"
	"axiombot/pkg/plugins/plugintest"
	"axiombot/pkg/state"
)

const newcomer = "2347000000001@s.whatsapp.net"

func newPlugin(env *plugintest.Env) *Plugin {
	p := New(env.Log, env.Store, env.Gateway, env.Config)
	p.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }
	return p
}

func TestConfigureWelcome(t *testing.T) {
	env := plugintest.New(t)
	env.AddGroup(false, true)
	p := newPlugin(env)
	defs := p.Commands()

	env.Run(t, defs, "welcome", plugintest.Text(".welcome"), "")
	if !strings.HasPrefix(env.LastText(), "*Welcome Configuration*\n\nStatus: DISABLED\nType: TEXT\nMessage: Welcome @user to @group!") {
		t.Fatalf("unexpected status %q", env.LastText())
	}

	env.Run(t, defs, "welcome", plugintest.Text(".welcome text Hi @user, welcome to @group"), "text Hi @user, welcome to @group")
	if env.LastText() != "*Welcome text message set*\n\nMessage: Hi @user, welcome to @group" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	env.Run(t, defs, "welcome", plugintest.Text(".welcome image https://x.test/a.jpg"), "image https://x.test/a.jpg")
	if !strings.HasPrefix(env.LastText(), "Please provide image URL and message") {
		t.Fatalf("image needs url and text, got %q", env.LastText())
	}

	env.Run(t, defs, "welcome", plugintest.Text(".welcome off"), "off")
	env.Run(t, defs, "welcome", plugintest.Text(".welcome banner"), "banner")
	if env.LastText() != "Invalid option. Use: on/off/text/image/video" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	m, err := state.Get[map[string]Setting](context.Background(), env.Store, state.SectionWelcome)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	s := m[plugintest.GroupJID]
	if s.Enabled || s.Type != TypeText || s.Message != "Hi @user, welcome to @group" {
		t.Fatalf("unexpected setting %+v", s)
	}
}

func TestConfigureRequiresAdmin(t *testing.T) {
	env := plugintest.New(t)
	env.AddGroup(true, false)
	defs := newPlugin(env).Commands()

	env.Run(t, defs, "setgoodbye", plugintest.Text(".setgoodbye bye"), "bye")
	if env.LastText() != "_You are not an admin_" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	m, _ := state.Get[map[string]Setting](context.Background(), env.Store, state.SectionGoodbye)
	if len(m) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestJoinedSendsWelcome(t *testing.T) {
	env := plugintest.New(t)
	info := env.AddGroup(false, false, newcomer)
	info.Topic = "Book lovers"
	p := newPlugin(env)
	ctx := context.Background()

	p.Joined(ctx, plugintest.GroupJID, []string{newcomer})
	if len(env.Gateway.Sent()) != 0 {
		t.Fatalf("greetings are off until configured")
	}

	env.Run(t, p.Commands(), "setwelcome", func() *message.Message {
		msg := plugintest.Text(".setwelcome Hi @user (@number) to @group, @desc. We are @count. Sent by @bot for @owner on @date")
		msg.Sudo = true
		return msg
	}(), "Hi @user (@number) to @group, @desc. We are @count. Sent by @bot for @owner on @date")
	env.Gateway.Reset()

	p.Joined(ctx, plugintest.GroupJID, []string{newcomer, plugintest.BotJID})
	sent := env.Gateway.Sent()
	if len(sent) != 1 {
		t.Fatalf("the bot's own join is not greeted, got %d sends", len(sent))
	}
	want := "Hi @2347000000001 (2347000000001) to Test Group, Book lovers. We are 3. Sent by axiom for masterj on 2026-03-01"
	if sent[0].Text != want {
		t.Fatalf("got %q\nwant %q", sent[0].Text, want)
	}
	if sent[0].To != plugintest.GroupJID || len(sent[0].Mentions) != 1 || sent[0].Mentions[0] != newcomer {
		t.Fatalf("unexpected envelope %+v", sent[0])
	}
}

func TestLeftSendsImageGoodbye(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNG"))
	}))
	defer srv.Close()

	env := plugintest.New(t)
	env.AddGroup(false, false)
	p := newPlugin(env)
	p.Client = srv.Client()

	err := state.Put(context.Background(), env.Store, state.SectionGoodbye, map[string]Setting{
		plugintest.GroupJID: {Enabled: true, Type: TypeImage, ImageURL: srv.URL + "/bye.png", Message: "Bye @user"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	p.Left(context.Background(), plugintest.GroupJID, []string{newcomer})
	sent := env.Gateway.Sent()
	if len(sent) != 1 || sent[0].Media == nil {
		t.Fatalf("expected an image greeting, got %+v", sent)
	}
	if sent[0].Media.Kind != message.KindImage || sent[0].Media.Mimetype != "image/png" || string(sent[0].Media.Data) != "PNG" {
		t.Fatalf("unexpected media %+v", sent[0].Media)
	}
	if sent[0].Text != "Bye @2347000000001" {
		t.Fatalf("unexpected caption %q", sent[0].Text)
	}
}

func TestBrokenMediaFallsBackToText(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	env := plugintest.New(t)
	env.AddGroup(false, false)
	p := newPlugin(env)
	p.Client = srv.Client()

	err := state.Put(context.Background(), env.Store, state.SectionWelcome, map[string]Setting{
		plugintest.GroupJID: {Enabled: true, Type: TypeVideo, VideoURL: srv.URL + "/missing.mp4", Message: "Hello @user"},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	p.Joined(context.Background(), plugintest.GroupJID, []string{newcomer})
	sent := env.Gateway.Sent()
	if len(sent) != 1 || sent[0].Media != nil || sent[0].Text != "Hello @2347000000001" {
		t.Fatalf("expected a plain text greeting, got %+v", sent)
	}
}
