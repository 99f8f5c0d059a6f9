// Package alive answers liveness checks with an optional saved message.
package alive

import (
	"context"
	"strings"
	"time"

	"axiombot/pkg/commands"
	"axiombot/pkg/plugins/pluginkit"
	"axiombot/pkg/state"
	"axiombot/pkg/version"
)

// Message is the aliveMessage section.
type Message struct {
	Custom  bool   `json:"custom"`
	Message string `json:"message"`
}

// Plugin implements alive.
type Plugin struct {
	store  *state.Store
	uptime func() time.Duration
}

// New creates the plugin. A nil uptime func uses the process uptime.
func New(store *state.Store, uptime func() time.Duration) *Plugin {
	if uptime == nil {
		uptime = version.Uptime
	}
	return &Plugin{store: store, uptime: uptime}
}

func (p *Plugin) Name() string { return "alive" }

func (p *Plugin) Commands() []*commands.Definition {
	return []*commands.Definition{{
		Trigger:     "alive ?(.*)",
		Description: "Bot status with customizable message and prefixes (@uptime, @name, @owner, @bot)",
		Category:    "misc",
		Handler:     p.handle,
	}}
}

func (p *Plugin) handle(ctx context.Context, req *commands.Request) error {
	if custom := strings.TrimSpace(req.Match); custom != "" {
		if err := state.Put(ctx, p.store, state.SectionAlive, Message{Custom: true, Message: custom}); err != nil {
			return req.Reply(ctx, pluginkit.Failed("save alive message", err))
		}
	}

	saved, err := state.Get[Message](ctx, p.store, state.SectionAlive)
	if err != nil {
		return err
	}

	name := req.Message.PushName
	if name == "" {
		name = "User"
	}
	uptime := pluginkit.Uptime(p.uptime())

	if !saved.Custom || saved.Message == "" {
		return req.Reply(ctx, "Hello "+name+" all systems are functional\nuptime: "+uptime)
	}

	owner, bot := req.Config.OwnerName, req.Config.BotName
	if owner == "" {
		owner = "Owner"
	}
	if bot == "" {
		bot = "Bot"
	}
	text := pluginkit.Expand(saved.Message, map[string]string{
		"uptime": uptime,
		"name":   name,
		"owner":  owner,
		"bot":    bot,
	})
	return req.Reply(ctx, text)
}
