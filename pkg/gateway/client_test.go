package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.mau.fi/whatsmeow/types"

	"axiombot/pkg/logger"
)

func newOfflineClient(t *testing.T) *Client {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: logger.LevelError})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c, err := NewClient(context.Background(), log, &Config{
		SessionPath: filepath.Join(t.TempDir(), "session.db"),
		LogLevel:    logger.LevelError,
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	t.Cleanup(func() { _ = c.Disconnect() })
	return c
}

func TestClientResolveLID(t *testing.T) {
	c := newOfflineClient(t)
	ctx := context.Background()

	lid := types.NewJID("111111111111111", types.HiddenUserServer)
	pn := types.NewJID("2349000000000", types.DefaultUserServer)
	if err := c.wa.Store.LIDs.PutLIDMapping(ctx, lid, pn); err != nil {
		t.Fatalf("seed mapping: %v", err)
	}

	cases := map[string]string{
		"111111111111111@lid":          "2349000000000@s.whatsapp.net",
		"999999999999999@lid":          "999999999999999@lid",
		"2348012345678@s.whatsapp.net": "2348012345678@s.whatsapp.net",
		"not a jid@@":                  "not a jid@@",
	}
	for in, want := range cases {
		if got := c.ResolveLID(in); got != want {
			t.Errorf("ResolveLID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClientUnpairedCallsReportNotConnected(t *testing.T) {
	c := newOfflineClient(t)

	if c.Self() != "" {
		t.Fatalf("an unpaired client has no jid")
	}
	if err := c.SetStatusMessage(context.Background(), "busy"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
