// Package owner holds account management commands: sudo list, blocking,
// profile lookups and saving messages to the owners.
package owner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"axiombot/pkg/commands"
	"axiombot/pkg/gateway"
	"axiombot/pkg/message"
	"axiombot/pkg/plugins/pluginkit"
	"axiombot/pkg/state"
)

// Plugin implements the owner commands.
type Plugin struct {
	store *state.Store
}

func New(store *state.Store) *Plugin {
	return &Plugin{store: store}
}

func (p *Plugin) Name() string { return "owner" }

func (p *Plugin) Commands() []*commands.Definition {
	return []*commands.Definition{
		{Trigger: "setsudo ?(.*)", RequireOwner: true, Description: "Set sudo", Category: "user", Handler: p.setSudo},
		{Trigger: "delsudo ?(.*)", RequireOwner: true, Description: "Remove sudo", Category: "user", Handler: p.delSudo},
		{Trigger: "getsudo", RequireOwner: true, Description: "List sudo users", Category: "user", Handler: p.getSudo},
		{Trigger: "save", Description: "Save any message or media by replying to it", Category: "user", Handler: p.save},
		{Trigger: "block ?(.*)", RequireOwner: true, Description: "Block a user", Category: "user", Handler: p.blocker(true)},
		{Trigger: "unblock ?(.*)", RequireOwner: true, Description: "Unblock a user", Category: "user", Handler: p.blocker(false)},
		{Trigger: "setbio ?(.*)", RequireOwner: true, Description: "Set your profile status/about", Category: "user", Handler: p.setBio},
		{Trigger: "pp ?(.*)", RequireOwner: true, Description: "Get profile picture of user", Category: "user", Handler: p.picture},
		{Trigger: "profile ?(.*)", RequireOwner: true, Description: "Get profile information", Category: "user", Handler: p.profile},
	}
}

func (p *Plugin) setSudo(ctx context.Context, req *commands.Request) error {
	number := strings.TrimSpace(req.Match)
	if number == "" {
		return req.Reply(ctx, "_Please provide a number. Example: "+req.Config.Prefix+"setsudo 27828418477_")
	}
	if !pluginkit.ValidNumber(number) {
		return req.Reply(ctx, "_Invalid WhatsApp number format. Example: 27828418477_")
	}
	number = pluginkit.Digits(number)

	added, err := p.store.AddSudo(ctx, number)
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("add sudo", err))
	}
	if !added {
		return req.Reply(ctx, "_Number is already a sudo user._")
	}
	return req.Reply(ctx, "_Added "+number+" to sudo users._")
}

func (p *Plugin) delSudo(ctx context.Context, req *commands.Request) error {
	number := pluginkit.Digits(req.Match)
	if number == "" {
		return req.Reply(ctx, "_Please provide a number. Example: "+req.Config.Prefix+"delsudo 27828418477_")
	}
	removed, err := p.store.RemoveSudo(ctx, number)
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("remove sudo", err))
	}
	if !removed {
		return req.Reply(ctx, "_Number is not in sudo list._")
	}
	return req.Reply(ctx, "_Removed "+number+" from sudo users._")
}

func (p *Plugin) getSudo(ctx context.Context, req *commands.Request) error {
	list := p.store.Sudoers(ctx, req.Config.Sudo)
	if len(list) == 0 {
		return req.Reply(ctx, "_No sudo users configured._")
	}
	var b strings.Builder
	b.WriteString("*Sudo Users:*")
	for _, n := range list {
		b.WriteString("\n• " + n)
	}
	return req.Reply(ctx, b.String())
}

// save forwards the quoted message to every sudo number without replying
// in the chat.
func (p *Plugin) save(ctx context.Context, req *commands.Request) error {
	quoted := req.Message.Quoted
	if quoted == nil {
		return req.Reply(ctx, "_Reply to a message or media to save it_\nExample: Reply to any message and type `"+req.Config.Prefix+"save`")
	}
	sudo := p.store.Sudoers(ctx, req.Config.Sudo)
	if len(sudo) == 0 {
		return req.Reply(ctx, "_No sudo users configured_")
	}

	out := gateway.Outgoing{Text: quoted.Text}
	if quoted.Kind.IsMedia() {
		data, err := req.Message.DownloadQuoted(ctx)
		if err != nil {
			return fmt.Errorf("downloading quoted media: %w", err)
		}
		info := message.Describe(quoted.Content)
		out.Media = &gateway.Media{Kind: quoted.Kind, Data: data, Mimetype: info.Mimetype, FileName: info.FileName, PTT: info.PTT}
		if quoted.Kind == message.KindDocument && out.Media.FileName == "" {
			out.Media.FileName = "document"
		}
	} else if out.Text == "" {
		return nil
	}

	delivered := 0
	for _, number := range sudo {
		msg := out
		msg.To = gateway.UserJID(number)
		if _, err := req.Gateway.Send(ctx, &msg); err != nil {
			req.Log.Warn("Failed to forward saved message", zap.String("sudo", number), zap.Error(err))
			continue
		}
		delivered++
	}
	req.Log.Debug("Saved message forwarded", zap.Int("delivered", delivered), zap.Int("sudo", len(sudo)))
	return nil
}

func (p *Plugin) blocker(block bool) commands.Handler {
	verb, done := "unblock", "Unblocked"
	if block {
		verb, done = "block", "Blocked"
	}
	return func(ctx context.Context, req *commands.Request) error {
		target := req.Target()
		if target == "" {
			return req.Reply(ctx, "_Reply to a message or provide a phone number_\nExample: `"+req.Config.Prefix+verb+" 1234567890`")
		}
		if err := req.Gateway.UpdateBlocklist(ctx, target, block); err != nil {
			return req.Reply(ctx, pluginkit.Failed(verb+" user", err))
		}
		return req.Reply(ctx, "_"+done+" +"+message.Number(target)+"_")
	}
}

func (p *Plugin) setBio(ctx context.Context, req *commands.Request) error {
	bio := strings.TrimSpace(req.Match)
	if bio == "" {
		return req.Reply(ctx, "_Please provide a status message_\nExample: `"+req.Config.Prefix+"setbio Living my best life!`")
	}
	if err := req.Gateway.SetStatusMessage(ctx, bio); err != nil {
		return req.Reply(ctx, pluginkit.Failed("set profile status", err))
	}
	return req.Reply(ctx, "_Profile status updated to: "+bio+"_")
}

// subject defaults Target to the sender.
func subject(req *commands.Request) string {
	if t := req.Target(); t != "" {
		return t
	}
	return req.Message.Sender
}

func (p *Plugin) picture(ctx context.Context, req *commands.Request) error {
	target := subject(req)
	url, err := req.Gateway.ProfilePicture(ctx, target)
	if err != nil || url == "" {
		return req.Reply(ctx, "_Profile picture not found or private_")
	}
	return req.Reply(ctx, fmt.Sprintf("*Profile Picture*\n\n*Number:* +%s\n%s", message.Number(target), url))
}

func (p *Plugin) profile(ctx context.Context, req *commands.Request) error {
	target := subject(req)

	status, err := req.Gateway.UserStatus(ctx, target)
	if err != nil || status == "" {
		status = "Not available"
	}

	var b strings.Builder
	b.WriteString("*Profile Information*\n\n")
	fmt.Fprintf(&b, "*Number:* +%s\n", message.Number(target))
	fmt.Fprintf(&b, "*JID:* %s\n", target)
	fmt.Fprintf(&b, "*Status:* %s\n", status)
	if url, err := req.Gateway.ProfilePicture(ctx, target); err == nil && url != "" {
		fmt.Fprintf(&b, "*Profile Picture:* %s", url)
	} else {
		b.WriteString("*Profile Picture:* Not available")
	}
	return req.Reply(ctx, b.String())
}
