package antidelete

import (
	"context"
	"strings"
	"testing"

	"axiombot/pkg/plugins/plugintest"
	"axiombot/pkg/state"
)

func TestDeleteModes(t *testing.T) {
	owner := "2348012345678"
	cases := []struct {
		arg     string
		enabled bool
		mode    string
		target  string
	}{
		{"dm", true, state.AntiDeleteDM, ""},
		{"HERE", true, state.AntiDeleteRestore, ""},
		{"2347000000000", true, state.AntiDeleteJID, "2347000000000@s.whatsapp.net"},
		{"2347000000001@s.whatsapp.net", true, state.AntiDeleteJID, "2347000000001@s.whatsapp.net"},
	}
	for _, tc := range cases {
		t.Run(tc.arg, func(t *testing.T) {
			env := plugintest.New(t)
			p := New(env.Store)
			env.Run(t, p.Commands(), "delete", plugintest.Text(".delete "+tc.arg), tc.arg)

			settings, err := env.Store.AntiDelete(context.Background())
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			got := settings[owner]
			if got.Enabled != tc.enabled || got.Mode != tc.mode || got.TargetJID != tc.target {
				t.Fatalf("unexpected setting %+v", got)
			}
			if !strings.HasPrefix(env.LastText(), "_✅") {
				t.Fatalf("unexpected reply %q", env.LastText())
			}
		})
	}
}

func TestDeleteOffKeepsMode(t *testing.T) {
	env := plugintest.New(t)
	p := New(env.Store)
	env.Run(t, p.Commands(), "delete", plugintest.Text(".delete here"), "here")
	env.Run(t, p.Commands(), "delete", plugintest.Text(".delete off"), "off")

	settings, _ := env.Store.AntiDelete(context.Background())
	got := settings["2348012345678"]
	if got.Enabled || got.Mode != state.AntiDeleteRestore {
		t.Fatalf("off should only clear the flag: %+v", got)
	}
	if env.LastText() != "_❌ Anti-delete disabled_" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
}

func TestDeleteInvalidAndStatus(t *testing.T) {
	env := plugintest.New(t)
	p := New(env.Store)

	env.Run(t, p.Commands(), "delete", plugintest.Text(".delete 123"), "123")
	if env.LastText() != "_❌ Invalid option. Use: dm, here, off, or a phone number_" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}

	env.Run(t, p.Commands(), "delete", plugintest.Text(".delete dm"), "dm")
	env.Run(t, p.Commands(), "delete", plugintest.Text(".delete"), "")
	if !strings.HasSuffix(env.LastText(), "• Anti-Delete: ON (All deleted messages → Your DM)") {
		t.Fatalf("unexpected status %q", env.LastText())
	}
}
