// Package antidelete configures where recovered messages are delivered.
package antidelete

import (
	"context"
	"regexp"
	"strings"

	"axiombot/pkg/commands"
	"axiombot/pkg/message"
	"axiombot/pkg/plugins/pluginkit"
	"axiombot/pkg/state"
)

var (
	phonePattern = regexp.MustCompile(`^\d{10,15}$`)
	jidPattern   = regexp.MustCompile(`^\d+@s\.whatsapp\.net$`)
)

const helpText = `*Anti-Delete Control (Global)*

*Usage Examples:*
• ` + "`" + `{p}delete dm` + "`" + ` - Send ALL deleted messages to your private DM
• ` + "`" + `{p}delete here` + "`" + ` - Restore ALL deleted messages where they were deleted
• ` + "`" + `{p}delete off` + "`" + ` - Disable anti-delete completely
• ` + "`" + `{p}delete <number>` + "`" + ` - Send ALL deleted messages to specific number

*Current Status:*`

// Plugin implements the delete command.
type Plugin struct {
	store *state.Store
}

func New(store *state.Store) *Plugin {
	return &Plugin{store: store}
}

func (p *Plugin) Name() string { return "antidelete" }

func (p *Plugin) Commands() []*commands.Definition {
	return []*commands.Definition{
		{Trigger: "delete ?(.*)", RequireOwner: true, Description: "Anti-delete control", Category: "utility", Handler: p.handle},
	}
}

func (p *Plugin) update(ctx context.Context, owner string, fn func(s *state.AntiDeleteSetting)) error {
	return state.Modify(ctx, p.store, state.SectionAntiDelete, func(m *map[string]state.AntiDeleteSetting) error {
		s, ok := (*m)[owner]
		if !ok {
			s = state.AntiDeleteSetting{Mode: state.AntiDeleteDM}
		}
		fn(&s)
		(*m)[owner] = s
		return nil
	})
}

func (p *Plugin) handle(ctx context.Context, req *commands.Request) error {
	owner := message.Number(req.Message.Sender)
	arg := strings.ToLower(strings.TrimSpace(req.Match))

	if arg == "" {
		return p.status(ctx, req, owner)
	}

	var (
		reply string
		apply func(s *state.AntiDeleteSetting)
	)
	switch {
	case arg == "dm" || arg == "private":
		reply = "_✅ Anti-delete enabled globally - ALL deleted messages (groups & private) will be sent to your DM_"
		apply = func(s *state.AntiDeleteSetting) { s.Enabled, s.Mode = true, state.AntiDeleteDM }
	case arg == "here" || arg == "restore":
		reply = "_✅ Anti-delete enabled globally - ALL deleted messages will be restored where they were deleted_"
		apply = func(s *state.AntiDeleteSetting) { s.Enabled, s.Mode = true, state.AntiDeleteRestore }
	case arg == "off" || arg == "disable":
		reply = "_❌ Anti-delete disabled_"
		apply = func(s *state.AntiDeleteSetting) { s.Enabled = false }
	case phonePattern.MatchString(arg):
		reply = "_✅ Anti-delete enabled - deleted messages will be sent to " + arg + "_"
		apply = func(s *state.AntiDeleteSetting) {
			s.Enabled, s.Mode, s.TargetJID = true, state.AntiDeleteJID, arg+"@s.whatsapp.net"
		}
	case jidPattern.MatchString(arg):
		reply = "_✅ Anti-delete enabled - deleted messages will be sent to " + message.Number(arg) + "_"
		apply = func(s *state.AntiDeleteSetting) { s.Enabled, s.Mode, s.TargetJID = true, state.AntiDeleteJID, arg }
	default:
		return req.Reply(ctx, "_❌ Invalid option. Use: dm, here, off, or a phone number_")
	}

	if err := p.update(ctx, owner, apply); err != nil {
		return req.Reply(ctx, pluginkit.Failed("update anti-delete", err))
	}
	return req.Reply(ctx, reply)
}

func (p *Plugin) status(ctx context.Context, req *commands.Request, owner string) error {
	settings, err := p.store.AntiDelete(ctx)
	if err != nil {
		return err
	}
	s := settings[owner]

	text := strings.ReplaceAll(helpText, "{p}", req.Config.Prefix)
	text += "\n• Anti-Delete: " + pluginkit.OnOff(s.Enabled)
	if s.Enabled {
		switch s.Mode {
		case state.AntiDeleteDM:
			text += " (All deleted messages → Your DM)"
		case state.AntiDeleteRestore:
			text += " (All deleted messages → Restored in original chat)"
		case state.AntiDeleteJID:
			target := message.Number(s.TargetJID)
			if target == "" {
				target = "Custom number"
			}
			text += " (All deleted messages → " + target + ")"
		}
	}
	return req.Reply(ctx, text)
}
