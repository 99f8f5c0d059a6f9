package features

import (
	"context"
	"testing"

	"axiombot/pkg/plugins/plugintest"
)

func TestToggleRoundTrip(t *testing.T) {
	env := plugintest.New(t)
	p := New(env.Store)
	defs := p.Commands()

	env.Run(t, defs, "type", plugintest.Text(".type on"), "on")
	if env.LastText() != "_Auto Type enabled!_" {
		t.Fatalf("unexpected reply %q", env.LastText())
	}
	f, err := env.Store.Features(context.Background())
	if err != nil || !f.AutoType || f.AutoRecord {
		t.Fatalf("unexpected features %+v %v", f, err)
	}

	env.Run(t, defs, "type", plugintest.Text(".type"), "")
	if env.LastText() != "_Auto Type is currently: ON_\nUse .type on/off to change." {
		t.Fatalf("unexpected status %q", env.LastText())
	}

	env.Run(t, defs, "type", plugintest.Text(".type off"), "off")
	f, _ = env.Store.Features(context.Background())
	if f.AutoType {
		t.Fatalf("auto type should be off")
	}
}

func TestEveryToggleIsOwnerOnly(t *testing.T) {
	for _, d := range New(nil).Commands() {
		if !d.RequireOwner {
			t.Fatalf("%s must be owner-only", d.Name())
		}
	}
}
