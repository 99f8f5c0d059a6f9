// Package moderation enforces per-group link and banned-word policies with
// a three strike warning system.
package moderation

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"axiombot/pkg/commands"
	"axiombot/pkg/gateway"
	"axiombot/pkg/message"
	"axiombot/pkg/plugins/pluginkit"
	"axiombot/pkg/state"
)

// Enforcement actions.
const (
	ActionWarn   = "warn"
	ActionDelete = "delete"
	ActionKick   = "kick"
)

// MaxWarnings is the strike that removes a member.
const MaxWarnings = 3

const (
	linkReason   = "Links are not allowed in this group!"
	wordReason   = "Your message contains banned words!"
	manualReason = "You have been warned by an admin"
	badOption    = "Invalid option. Use: on/off/warn/delete/kick"
)

var linkPattern = regexp.MustCompile(`(?i)(https?://\S+)|(www\.\S+)|([a-zA-Z0-9-]+\.[a-zA-Z]{2,})`)

// LinkRule is one group's entry in the antilink section.
type LinkRule struct {
	Enabled bool   `json:"enabled"`
	Action  string `json:"action"`
}

// WordRule is one group's entry in the antiword section.
type WordRule struct {
	Enabled bool     `json:"enabled"`
	Action  string   `json:"action"`
	Words   []string `json:"words"`
}

// ContainsLink reports whether text looks like it carries a URL or domain.
func ContainsLink(text string) bool {
	return linkPattern.MatchString(text)
}

// ContainsBanned reports whether text contains any of words, ignoring case.
func ContainsBanned(text string, words []string) bool {
	for _, w := range words {
		if w != "" && pluginkit.ContainsFold(text, w) {
			return true
		}
	}
	return false
}

// Plugin implements the moderation commands and the enforcing text handler.
type Plugin struct {
	store *state.Store
}

func New(store *state.Store) *Plugin {
	return &Plugin{store: store}
}

func (p *Plugin) Name() string { return "moderation" }

func (p *Plugin) Commands() []*commands.Definition {
	return []*commands.Definition{
		{Trigger: "antilink ?(.*)", Description: "Configure antilink protection (on/off/warn/delete/kick)", Category: "group", Handler: p.antiLink},
		{Trigger: "antiword ?(.*)", Description: "Configure antiword protection", Category: "group", Handler: p.antiWord},
		{Trigger: "addword ?(.*)", Description: "Add word to banned list", Category: "group", Handler: p.addWord},
		{Trigger: "removeword ?(.*)", Description: "Remove word from banned list", Category: "group", Handler: p.removeWord},
		{Trigger: "listwords", Description: "Show all banned words", Category: "group", Handler: p.listWords},
		{Trigger: "warn ?(.*)", Description: "Warn a member (3 warnings then kick)", Category: "group", Handler: p.warn},
		{Trigger: "resetwarn ?(.*)", Description: "Clear a member's warnings", Category: "group", Handler: p.resetWarn},
		{On: commands.OnText, Handler: p.enforce},
	}
}

func (p *Plugin) linkRule(ctx context.Context, group string) (LinkRule, error) {
	m, err := state.Get[map[string]LinkRule](ctx, p.store, state.SectionAntiLink)
	if err != nil {
		return LinkRule{}, err
	}
	rule, ok := m[group]
	if !ok {
		rule = LinkRule{Action: ActionWarn}
	}
	return rule, nil
}

func (p *Plugin) wordRule(ctx context.Context, group string) (WordRule, error) {
	m, err := state.Get[map[string]WordRule](ctx, p.store, state.SectionAntiWord)
	if err != nil {
		return WordRule{}, err
	}
	rule, ok := m[group]
	if !ok {
		rule = WordRule{Action: ActionWarn}
	}
	return rule, nil
}

func (p *Plugin) updateWords(ctx context.Context, group string, fn func(*WordRule) error) (WordRule, error) {
	var out WordRule
	err := state.Modify(ctx, p.store, state.SectionAntiWord, func(m *map[string]WordRule) error {
		rule, ok := (*m)[group]
		if !ok {
			rule = WordRule{Action: ActionWarn}
		}
		if err := fn(&rule); err != nil {
			return err
		}
		(*m)[group] = rule
		out = rule
		return nil
	})
	return out, err
}

func enabled(v bool) string {
	if v {
		return "ENABLED"
	}
	return "DISABLED"
}

func (p *Plugin) antiLink(ctx context.Context, req *commands.Request) error {
	info, err := pluginkit.GroupAdmin(ctx, req, false)
	if info == nil {
		return err
	}
	arg := strings.ToLower(strings.TrimSpace(req.Match))
	group := req.Chat()

	if arg == "" {
		rule, err := p.linkRule(ctx, group)
		if err != nil {
			return err
		}
		return req.Reply(ctx, fmt.Sprintf("*Antilink Configuration*\n\nStatus: %s\nAction: %s\n\n"+
			"*Available Commands:*\n"+
			"• .antilink on - Enable with warn action\n"+
			"• .antilink off - Disable protection\n"+
			"• .antilink warn - Set warn action (3 warnings then kick)\n"+
			"• .antilink delete - Set silent delete action\n"+
			"• .antilink kick - Set immediate kick action",
			enabled(rule.Enabled), strings.ToUpper(rule.Action)))
	}

	var (
		rule  LinkRule
		reply string
	)
	switch arg {
	case "on":
		rule, reply = LinkRule{Enabled: true, Action: ActionWarn}, "*Antilink protection enabled* with warn action (3 warnings then kick)"
	case "off":
		rule, reply = LinkRule{Enabled: false, Action: ActionWarn}, "*Antilink protection disabled*"
	case ActionWarn, ActionDelete, ActionKick:
		rule, reply = LinkRule{Enabled: true, Action: arg}, "*Antilink action set to:* "+strings.ToUpper(arg)
	default:
		return req.Reply(ctx, badOption)
	}
	err = state.Modify(ctx, p.store, state.SectionAntiLink, func(m *map[string]LinkRule) error {
		(*m)[group] = rule
		return nil
	})
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("update antilink", err))
	}
	return req.Reply(ctx, reply)
}

func (p *Plugin) antiWord(ctx context.Context, req *commands.Request) error {
	info, err := pluginkit.GroupAdmin(ctx, req, false)
	if info == nil {
		return err
	}
	arg := strings.ToLower(strings.TrimSpace(req.Match))
	group := req.Chat()

	if arg == "" {
		rule, err := p.wordRule(ctx, group)
		if err != nil {
			return err
		}
		return req.Reply(ctx, fmt.Sprintf("*Antiword Configuration*\n\nStatus: %s\nAction: %s\nBanned Words: %d\n\n"+
			"*Available Commands:*\n"+
			"• .antiword on - Enable protection\n"+
			"• .antiword off - Disable protection\n"+
			"• .antiword warn - Set warn action (3 warnings then kick)\n"+
			"• .antiword delete - Set silent delete action\n"+
			"• .antiword kick - Set immediate kick action\n"+
			"• .addword <word> - Add banned word\n"+
			"• .removeword <word> - Remove word\n"+
			"• .listwords - Show banned words",
			enabled(rule.Enabled), strings.ToUpper(rule.Action), len(rule.Words)))
	}

	var reply string
	switch arg {
	case "on":
		reply = "*Antiword protection enabled*"
	case "off":
		reply = "*Antiword protection disabled*"
	case ActionWarn, ActionDelete, ActionKick:
		reply = "*Antiword action set to:* " + strings.ToUpper(arg)
	default:
		return req.Reply(ctx, badOption)
	}
	_, err = p.updateWords(ctx, group, func(r *WordRule) error {
		r.Enabled = arg != "off"
		if arg != "on" && arg != "off" {
			r.Action = arg
		}
		return nil
	})
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("update antiword", err))
	}
	return req.Reply(ctx, reply)
}

func (p *Plugin) addWord(ctx context.Context, req *commands.Request) error {
	info, err := pluginkit.GroupAdmin(ctx, req, false)
	if info == nil {
		return err
	}
	word := strings.ToLower(strings.TrimSpace(req.Match))
	if word == "" {
		return req.Reply(ctx, "_Please provide a word to ban_\nExample: `"+req.Config.Prefix+"addword badword`")
	}

	exists := false
	rule, err := p.updateWords(ctx, req.Chat(), func(r *WordRule) error {
		if slices.Contains(r.Words, word) {
			exists = true
			return state.ErrSkipWrite
		}
		r.Words = append(r.Words, word)
		return nil
	})
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("add word", err))
	}
	if exists {
		return req.Reply(ctx, "_This word is already banned_")
	}
	return req.Reply(ctx, fmt.Sprintf("*Word added to ban list:* %s\n\nTotal banned words: %d", word, len(rule.Words)))
}

func (p *Plugin) removeWord(ctx context.Context, req *commands.Request) error {
	info, err := pluginkit.GroupAdmin(ctx, req, false)
	if info == nil {
		return err
	}
	word := strings.ToLower(strings.TrimSpace(req.Match))
	if word == "" {
		return req.Reply(ctx, "_Please provide a word to remove_\nExample: `"+req.Config.Prefix+"removeword badword`")
	}

	missing := false
	rule, err := p.updateWords(ctx, req.Chat(), func(r *WordRule) error {
		idx := slices.Index(r.Words, word)
		if idx < 0 {
			missing = true
			return state.ErrSkipWrite
		}
		r.Words = slices.Delete(r.Words, idx, idx+1)
		return nil
	})
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("remove word", err))
	}
	if missing {
		return req.Reply(ctx, "_This word is not in the ban list_")
	}
	return req.Reply(ctx, fmt.Sprintf("*Word removed from ban list:* %s\n\nTotal banned words: %d", word, len(rule.Words)))
}

func (p *Plugin) listWords(ctx context.Context, req *commands.Request) error {
	info, err := pluginkit.GroupAdmin(ctx, req, false)
	if info == nil {
		return err
	}
	rule, err := p.wordRule(ctx, req.Chat())
	if err != nil {
		return err
	}
	if len(rule.Words) == 0 {
		return req.Reply(ctx, "_No banned words configured_")
	}
	var b strings.Builder
	b.WriteString("*Banned Words List*\n\n")
	for i, w := range rule.Words {
		fmt.Fprintf(&b, "%d. %s\n", i+1, w)
	}
	fmt.Fprintf(&b, "\nTotal: %d words", len(rule.Words))
	return req.Reply(ctx, b.String())
}

// addWarning bumps user's strike count in group and returns it.
func (p *Plugin) addWarning(ctx context.Context, group, user string) (int, error) {
	count := 0
	err := state.Modify(ctx, p.store, state.SectionWarnings, func(m *map[string]map[string]int) error {
		users := (*m)[group]
		if users == nil {
			users = make(map[string]int)
			(*m)[group] = users
		}
		users[user]++
		count = users[user]
		return nil
	})
	return count, err
}

// clearWarnings forgets user's strikes and reports whether there were any.
func (p *Plugin) clearWarnings(ctx context.Context, group, user string) (bool, error) {
	had := false
	err := state.Modify(ctx, p.store, state.SectionWarnings, func(m *map[string]map[string]int) error {
		users := (*m)[group]
		if _, ok := users[user]; !ok {
			return state.ErrSkipWrite
		}
		had = true
		delete(users, user)
		if len(users) == 0 {
			delete(*m, group)
		}
		return nil
	})
	return had, err
}

// strike applies one warning and removes the user on the last one.
func (p *Plugin) strike(ctx context.Context, req *commands.Request, user, reason string) error {
	group := req.Chat()
	count, err := p.addWarning(ctx, group, user)
	if err != nil {
		return err
	}
	tag := "@" + message.Number(user)
	if count >= MaxWarnings {
		if err := req.Gateway.UpdateParticipants(ctx, group, []string{user}, gateway.ActionRemove); err != nil {
			return fmt.Errorf("removing %s: %w", user, err)
		}
		if _, err := p.clearWarnings(ctx, group, user); err != nil {
			return err
		}
		req.Gateway.InvalidateGroup(group)
		return p.announce(ctx, req, fmt.Sprintf("*User Removed*\n%s\n\nUser %s has been removed after %d warnings.", reason, tag, MaxWarnings), user)
	}
	return p.announce(ctx, req, fmt.Sprintf("*Warning %d/%d*\n%s\n\n%s - %d warning(s) remaining before removal.",
		count, MaxWarnings, reason, tag, MaxWarnings-count), user)
}

// announce posts to the group without quoting, mentioning user.
func (p *Plugin) announce(ctx context.Context, req *commands.Request, text, user string) error {
	_, err := req.Gateway.Send(ctx, &gateway.Outgoing{To: req.Chat(), Text: text, Mentions: []string{user}})
	return err
}

// punish deletes the offending message, then applies action.
func (p *Plugin) punish(ctx context.Context, req *commands.Request, action, reason string) error {
	msg := req.Message
	if err := req.Gateway.Revoke(ctx, msg.Chat, msg.Sender, msg.ID); err != nil {
		return fmt.Errorf("deleting %s: %w", msg.ID, err)
	}
	switch action {
	case ActionWarn:
		return p.strike(ctx, req, msg.Sender, reason)
	case ActionDelete:
		return nil
	case ActionKick:
		if err := req.Gateway.UpdateParticipants(ctx, msg.Chat, []string{msg.Sender}, gateway.ActionRemove); err != nil {
			return fmt.Errorf("removing %s: %w", msg.Sender, err)
		}
		req.Gateway.InvalidateGroup(msg.Chat)
		return p.announce(ctx, req, fmt.Sprintf("*User Removed*\n%s\n\nUser @%s has been removed from the group.", reason, message.Number(msg.Sender)), msg.Sender)
	}
	return p.announce(ctx, req, "*Violation Detected*\n"+reason, msg.Sender)
}

func (p *Plugin) enforce(ctx context.Context, req *commands.Request) error {
	msg := req.Message
	if !msg.IsGroup || strings.TrimSpace(msg.Body) == "" {
		return nil
	}

	var action, reason string
	link, err := p.linkRule(ctx, msg.Chat)
	if err != nil {
		return err
	}
	if link.Enabled && ContainsLink(msg.Body) {
		action, reason = link.Action, linkReason
	} else {
		words, err := p.wordRule(ctx, msg.Chat)
		if err != nil {
			return err
		}
		if words.Enabled && ContainsBanned(msg.Body, words.Words) {
			action, reason = words.Action, wordReason
		}
	}
	if reason == "" {
		return nil
	}

	info, err := req.Gateway.GroupInfo(ctx, msg.Chat)
	if err != nil {
		return err
	}
	if info.IsAdmin(msg.Sender) || !info.IsAdmin(req.Gateway.Self()) {
		return nil
	}
	return p.punish(ctx, req, action, reason)
}

func (p *Plugin) warn(ctx context.Context, req *commands.Request) error {
	info, err := pluginkit.GroupAdmin(ctx, req, true)
	if info == nil {
		return err
	}
	target := req.Target()
	if target == "" {
		return req.Reply(ctx, "_Reply to a message or mention a user to warn_")
	}
	if info.IsAdmin(target) {
		return req.Reply(ctx, "_Admins cannot be warned_")
	}
	reason := manualReason
	if req.Message.Quoted != nil && len(req.Message.Mentions) == 0 {
		if r := strings.TrimSpace(req.Match); r != "" {
			reason = r
		}
	}
	return p.strike(ctx, req, target, reason)
}

func (p *Plugin) resetWarn(ctx context.Context, req *commands.Request) error {
	info, err := pluginkit.GroupAdmin(ctx, req, false)
	if info == nil {
		return err
	}
	target := req.Target()
	if target == "" {
		return req.Reply(ctx, "_Reply to a message or mention a user to reset_")
	}
	had, err := p.clearWarnings(ctx, req.Chat(), target)
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("reset warnings", err))
	}
	if !had {
		return req.Reply(ctx, "_User has no warnings_")
	}
	return req.ReplyMentions(ctx, "_Warnings cleared for @"+message.Number(target)+"_", []string{target})
}
