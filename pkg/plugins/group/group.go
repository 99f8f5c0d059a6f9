// Package group holds group administration commands.
package group

import (
	"context"
	"fmt"
	"strings"

	"axiombot/pkg/commands"
	"axiombot/pkg/gateway"
	"axiombot/pkg/message"
	"axiombot/pkg/plugins/pluginkit"
)

// Plugin implements the group commands.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "group" }

func (p *Plugin) Commands() []*commands.Definition {
	return []*commands.Definition{
		{Trigger: "add ?(.*)", Description: "Add user to group", Category: "group", Handler: p.add},
		{Trigger: "kick ?(.*)", Description: "Remove user from group", Category: "group", Handler: p.member(gateway.ActionRemove, "kick", "remove user", "_ Removed user from the group_")},
		{Trigger: "promote ?(.*)", Description: "Promote user to admin", Category: "group", Handler: p.member(gateway.ActionPromote, "promote", "promote user", "_ Promoted user to admin_")},
		{Trigger: "demote ?(.*)", Description: "Demote admin to member", Category: "group", Handler: p.member(gateway.ActionDemote, "demote", "demote user", "_ Demoted user to member_")},
		{Trigger: "mute", Description: "Mute group (only admins can send messages)", Category: "group", Handler: p.setting(announce, true)},
		{Trigger: "unmute", Description: "Unmute group (everyone can send messages)", Category: "group", Handler: p.setting(announce, false)},
		{Trigger: "lock", Description: "Lock group settings (only admins can edit)", Category: "group", Handler: p.setting(locked, true)},
		{Trigger: "unlock", Description: "Unlock group settings (everyone can edit)", Category: "group", Handler: p.setting(locked, false)},
		{Trigger: "ginfo", Description: "Get group information", Category: "group", Handler: p.info},
		{Trigger: "admins", Description: "List group admins", Category: "group", Handler: p.admins},
		{Trigger: "tagall ?(.*)", Description: "Tag all group members", Category: "group", Handler: p.tagAll},
		{Trigger: "tag ?(.*)", Description: "Tag users with replied message", Category: "group", Handler: p.tag},
		{Trigger: "leave", Description: "Leave the group", Category: "group", Handler: p.leave},
		{Trigger: "setname ?(.*)", Description: "Change group name", Category: "group", Handler: p.setName},
		{Trigger: "setdesc ?(.*)", Description: "Change group description", Category: "group", Handler: p.setDesc},
		{Trigger: "invite", Description: "Get group invite link", Category: "group", Handler: p.invite},
		{Trigger: "revoke", Description: "Revoke group invite link", Category: "group", Handler: p.revoke},
	}
}

func (p *Plugin) add(ctx context.Context, req *commands.Request) error {
	if !req.Message.IsGroup {
		return req.Reply(ctx, pluginkit.GroupOnly)
	}
	number := pluginkit.Digits(req.Match)
	if number == "" {
		return req.Reply(ctx, "_Please provide a phone number_\nExample: `"+req.Config.Prefix+"add 1234567890`")
	}
	info, err := pluginkit.GroupAdmin(ctx, req, true)
	if info == nil {
		return err
	}
	if err := req.Gateway.UpdateParticipants(ctx, req.Chat(), []string{gateway.UserJID(number)}, gateway.ActionAdd); err != nil {
		return req.Reply(ctx, pluginkit.Failed("add user", err))
	}
	return req.Reply(ctx, fmt.Sprintf("_ Added %s to the group_", number))
}

// member builds kick, promote and demote, which differ only in action.
func (p *Plugin) member(action gateway.ParticipantAction, name, verb, done string) commands.Handler {
	return func(ctx context.Context, req *commands.Request) error {
		info, err := pluginkit.GroupAdmin(ctx, req, true)
		if info == nil {
			return err
		}
		target := req.Target()
		if target == "" {
			return req.Reply(ctx, "_Reply to a message or provide a phone number_\nExample: `"+req.Config.Prefix+name+" 1234567890`")
		}
		if err := req.Gateway.UpdateParticipants(ctx, req.Chat(), []string{target}, action); err != nil {
			return req.Reply(ctx, pluginkit.Failed(verb, err))
		}
		req.Gateway.InvalidateGroup(req.Chat())
		return req.Reply(ctx, done)
	}
}

type groupSetting int

const (
	announce groupSetting = iota
	locked
)

func (p *Plugin) setting(which groupSetting, on bool) commands.Handler {
	return func(ctx context.Context, req *commands.Request) error {
		info, err := pluginkit.GroupAdmin(ctx, req, true)
		if info == nil {
			return err
		}
		var verb, done string
		switch {
		case which == announce && on:
			verb, done = "mute group", "_ Group muted - Only admins can send messages_"
			err = req.Gateway.SetAnnounce(ctx, req.Chat(), true)
		case which == announce:
			verb, done = "unmute group", "_ Group unmuted - Everyone can send messages_"
			err = req.Gateway.SetAnnounce(ctx, req.Chat(), false)
		case on:
			verb, done = "lock group", "_🔒 Group settings locked - Only admins can edit group info_"
			err = req.Gateway.SetLocked(ctx, req.Chat(), true)
		default:
			verb, done = "unlock group", "_🔓 Group settings unlocked - Everyone can edit group info_"
			err = req.Gateway.SetLocked(ctx, req.Chat(), false)
		}
		if err != nil {
			return req.Reply(ctx, pluginkit.Failed(verb, err))
		}
		req.Gateway.InvalidateGroup(req.Chat())
		return req.Reply(ctx, done)
	}
}

// metadata loads the group for read-only commands.
func metadata(ctx context.Context, req *commands.Request, verb string) (*gateway.GroupInfo, error) {
	if !req.Message.IsGroup {
		return nil, req.Reply(ctx, pluginkit.GroupOnly)
	}
	info, err := req.Gateway.GroupInfo(ctx, req.Chat())
	if err != nil {
		return nil, req.Reply(ctx, pluginkit.Failed(verb, err))
	}
	return info, nil
}

func adminsOnly(v bool) string {
	if v {
		return "Admins only"
	}
	return "Everyone"
}

func (p *Plugin) info(ctx context.Context, req *commands.Request) error {
	info, err := metadata(ctx, req, "get group info")
	if info == nil {
		return err
	}
	desc := info.Topic
	if desc == "" {
		desc = "No description"
	}
	total := len(info.Participants)
	admins := len(info.Admins())

	var b strings.Builder
	b.WriteString("*📋 Group Information*\n\n")
	fmt.Fprintf(&b, "*Name:* %s\n", info.Name)
	fmt.Fprintf(&b, "*Description:* %s\n", desc)
	fmt.Fprintf(&b, "*Total Members:* %d\n", total)
	fmt.Fprintf(&b, "*Group ID:* %s\n", info.JID)
	fmt.Fprintf(&b, "*Admins:* %d\n", admins)
	fmt.Fprintf(&b, "*Members:* %d\n", total-admins)
	b.WriteString("*Settings:*\n")
	fmt.Fprintf(&b, "• Messages: %s\n", adminsOnly(info.Announce))
	fmt.Fprintf(&b, "• Edit info: %s\n", adminsOnly(info.Locked))
	return req.Reply(ctx, b.String())
}

func (p *Plugin) admins(ctx context.Context, req *commands.Request) error {
	info, err := metadata(ctx, req, "get admin list")
	if info == nil {
		return err
	}
	admins := info.Admins()
	if len(admins) == 0 {
		return req.Reply(ctx, "_No admins found in this group_")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*👑 Group Admins (%d)*\n\n", len(admins))
	for i, a := range admins {
		fmt.Fprintf(&b, "%d. +%s\n", i+1, message.Number(a.JID))
	}
	return req.Reply(ctx, b.String())
}

func (p *Plugin) tagAll(ctx context.Context, req *commands.Request) error {
	info, err := metadata(ctx, req, "tag all")
	if info == nil {
		return err
	}
	announcement := strings.TrimSpace(req.Match)
	if announcement == "" {
		announcement = "Group Announcement"
	}
	var (
		b        strings.Builder
		mentions = make([]string, 0, len(info.Participants))
	)
	fmt.Fprintf(&b, "*📢 %s*\n\n", announcement)
	for i, m := range info.Participants {
		mentions = append(mentions, m.JID)
		fmt.Fprintf(&b, "%d. @%s\n", i+1, message.Number(m.JID))
	}
	_, err = req.Gateway.Send(ctx, &gateway.Outgoing{To: req.Chat(), Text: b.String(), Mentions: mentions})
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("tag all", err))
	}
	return nil
}

// tag repeats the quoted text while silently mentioning every member.
func (p *Plugin) tag(ctx context.Context, req *commands.Request) error {
	if !req.Message.IsGroup {
		return req.Reply(ctx, "This command is for groups only!")
	}
	if req.Message.Quoted == nil {
		return req.Reply(ctx, "Reply to a message to tag!")
	}
	info, err := req.Gateway.GroupInfo(ctx, req.Chat())
	if err != nil {
		return req.Reply(ctx, "Failed to tag members!")
	}
	mentions := make([]string, 0, len(info.Participants))
	for _, m := range info.Participants {
		mentions = append(mentions, m.JID)
	}
	_, err = req.Gateway.Send(ctx, &gateway.Outgoing{To: req.Chat(), Text: req.Message.Quoted.Text, Mentions: mentions})
	if err != nil {
		return req.Reply(ctx, "Failed to tag members!")
	}
	return nil
}

func (p *Plugin) leave(ctx context.Context, req *commands.Request) error {
	if !req.Message.IsGroup {
		return req.Reply(ctx, pluginkit.GroupOnly)
	}
	if err := req.Reply(ctx, "_👋 Goodbye! Leaving the group..._"); err != nil {
		return err
	}
	if err := req.Gateway.LeaveGroup(ctx, req.Chat()); err != nil {
		return req.Reply(ctx, pluginkit.Failed("leave group", err))
	}
	return nil
}

func (p *Plugin) setName(ctx context.Context, req *commands.Request) error {
	if !req.Message.IsGroup {
		return req.Reply(ctx, pluginkit.GroupOnly)
	}
	name := strings.TrimSpace(req.Match)
	if name == "" {
		return req.Reply(ctx, "_Please provide a new group name_\nExample: `"+req.Config.Prefix+"setname My New Group`")
	}
	info, err := pluginkit.GroupAdmin(ctx, req, true)
	if info == nil {
		return err
	}
	if err := req.Gateway.SetGroupName(ctx, req.Chat(), name); err != nil {
		return req.Reply(ctx, pluginkit.Failed("change group name", err))
	}
	req.Gateway.InvalidateGroup(req.Chat())
	return req.Reply(ctx, "_ Group name changed to: "+name+"_")
}

func (p *Plugin) setDesc(ctx context.Context, req *commands.Request) error {
	if !req.Message.IsGroup {
		return req.Reply(ctx, pluginkit.GroupOnly)
	}
	desc := strings.TrimSpace(req.Match)
	if desc == "" {
		return req.Reply(ctx, "_Please provide a new group description_\nExample: `"+req.Config.Prefix+"setdesc Welcome to our group!`")
	}
	info, err := pluginkit.GroupAdmin(ctx, req, true)
	if info == nil {
		return err
	}
	if err := req.Gateway.SetGroupTopic(ctx, req.Chat(), desc); err != nil {
		return req.Reply(ctx, pluginkit.Failed("change group description", err))
	}
	req.Gateway.InvalidateGroup(req.Chat())
	return req.Reply(ctx, "_ Group description updated_")
}

func (p *Plugin) invite(ctx context.Context, req *commands.Request) error {
	info, err := pluginkit.GroupAdmin(ctx, req, true)
	if info == nil {
		return err
	}
	link, err := req.Gateway.InviteLink(ctx, req.Chat(), false)
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("get invite link", err))
	}
	return req.Reply(ctx, "*🔗 Group Invite Link*\n\n"+link)
}

func (p *Plugin) revoke(ctx context.Context, req *commands.Request) error {
	info, err := pluginkit.GroupAdmin(ctx, req, true)
	if info == nil {
		return err
	}
	if _, err := req.Gateway.InviteLink(ctx, req.Chat(), true); err != nil {
		return req.Reply(ctx, pluginkit.Failed("revoke invite link", err))
	}
	return req.Reply(ctx, "_ Group invite link revoked - Old links are now invalid_")
}
