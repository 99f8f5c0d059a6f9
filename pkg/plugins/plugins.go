// Package plugins assembles the feature plugins and registers their
// command tables.
package plugins

import (
	"fmt"
	"time"

	"axiombot/pkg/commands"
	"axiombot/pkg/plugins/afk"
	"axiombot/pkg/plugins/alive"
	"axiombot/pkg/plugins/antidelete"
	"axiombot/pkg/plugins/features"
	"axiombot/pkg/plugins/greetings"
	"axiombot/pkg/plugins/group"
	"axiombot/pkg/plugins/info"
	"axiombot/pkg/plugins/moderation"
	"axiombot/pkg/plugins/owner"
	"axiombot/pkg/plugins/react"
	"axiombot/pkg/plugins/sticky"
	"axiombot/pkg/plugins/wordgame"
	"axiombot/pkg/state"
)

// Plugin is a named table of command definitions.
type Plugin interface {
	Name() string
	Commands() []*commands.Definition
}

// Deps are the collaborators plugins are built from. The stateful plugins
// are built by the caller so their jobs and listeners can be wired too.
type Deps struct {
	Store     *state.Store
	Runner    sticky.Runner
	Uptime    func() time.Duration
	AFK       *afk.Plugin
	Greetings *greetings.Plugin
	WordGame  *wordgame.Plugin
}

// All returns every plugin in registration order.
func All(d Deps) []Plugin {
	return []Plugin{
		info.New(nil, d.Uptime),
		features.New(d.Store),
		owner.New(d.Store),
		antidelete.New(d.Store),
		d.AFK,
		group.New(),
		moderation.New(d.Store),
		d.Greetings,
		sticky.New(d.Store, d.Runner),
		react.New(d.Store),
		d.WordGame,
		alive.New(d.Store, d.Uptime),
	}
}

// Register adds every plugin's definitions to reg in order. Registration
// order is dispatch order within a message.
func Register(reg *commands.Registry, plugins ...Plugin) error {
	for _, p := range plugins {
		for _, def := range p.Commands() {
			if err := reg.Register(def); err != nil {
				return fmt.Errorf("plugin %s: %w", p.Name(), err)
			}
		}
	}
	return nil
}
