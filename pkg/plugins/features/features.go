// Package features toggles the presence and status switches stored in the
// botfeatures section.
package features

import (
	"context"
	"fmt"

	"axiombot/pkg/commands"
	"axiombot/pkg/plugins/pluginkit"
	"axiombot/pkg/state"
)

type toggle struct {
	trigger string
	label   string
	field   func(f *state.BotFeatures) *bool
}

var toggles = []toggle{
	{"online", "Always Online", func(f *state.BotFeatures) *bool { return &f.AlwaysOnline }},
	{"type", "Auto Type", func(f *state.BotFeatures) *bool { return &f.AutoType }},
	{"record", "Auto Record", func(f *state.BotFeatures) *bool { return &f.AutoRecord }},
	{"status", "Auto View Status", func(f *state.BotFeatures) *bool { return &f.AutoViewStatus }},
}

// Plugin implements the feature toggles.
type Plugin struct {
	store *state.Store
}

func New(store *state.Store) *Plugin {
	return &Plugin{store: store}
}

func (p *Plugin) Name() string { return "features" }

func (p *Plugin) Commands() []*commands.Definition {
	defs := make([]*commands.Definition, 0, len(toggles))
	for _, t := range toggles {
		defs = append(defs, &commands.Definition{
			Trigger:      t.trigger + " ?(.*)",
			RequireOwner: true,
			Description:  t.label,
			Category:     "user",
			Handler:      p.handler(t),
		})
	}
	return defs
}

func (p *Plugin) handler(t toggle) commands.Handler {
	return func(ctx context.Context, req *commands.Request) error {
		on, ok := pluginkit.Toggle(req.Match)
		if !ok {
			current, err := p.store.Features(ctx)
			if err != nil {
				return err
			}
			return req.Reply(ctx, fmt.Sprintf("_%s is currently: %s_\nUse %s%s on/off to change.",
				t.label, pluginkit.OnOff(*t.field(&current)), req.Config.Prefix, t.trigger))
		}

		err := state.Modify(ctx, p.store, state.SectionBotFeatures, func(f *state.BotFeatures) error {
			*t.field(f) = on
			return nil
		})
		if err != nil {
			return req.Reply(ctx, pluginkit.Failed("update "+t.label, err))
		}
		if on {
			return req.Reply(ctx, "_"+t.label+" enabled!_")
		}
		return req.Reply(ctx, "_"+t.label+" disabled!_")
	}
}
