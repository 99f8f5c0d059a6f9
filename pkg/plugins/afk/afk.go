// Package afk tracks users who are away and answers when they are
// mentioned.
package afk

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"axiombot/pkg/commands"
	"axiombot/pkg/cron"
	"axiombot/pkg/plugins/pluginkit"
	"axiombot/pkg/state"
)

// MaxAge is how long an AFK entry survives housekeeping.
const MaxAge = 7 * 24 * time.Hour

const (
	noReason     = "No reason provided"
	groupListMax = 5
	templateHelp = "*Available Prefixes:*\n@user, @name - AFK user name\n@time - AFK duration\n@date - AFK start date\n@mentioner - Person who mentioned\n@reason - AFK reason"
)

// Entry is one AFK user, keyed by jid in the afk section.
type Entry struct {
	Name      string `json:"name"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"` // unix millis
	Mentions  int    `json:"mentions"`
}

// Since returns when the user went away.
func (e Entry) Since() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Plugin implements the afk commands.
type Plugin struct {
	store *state.Store
	now   func() time.Time
}

// New creates the plugin. A nil clock uses time.Now.
func New(store *state.Store, now func() time.Time) *Plugin {
	if now == nil {
		now = time.Now
	}
	return &Plugin{store: store, now: now}
}

func (p *Plugin) Name() string { return "afk" }

func (p *Plugin) Commands() []*commands.Definition {
	return []*commands.Definition{
		{Trigger: "afk ?(.*)", Description: "Set AFK status with optional reason", Category: "user", Handler: p.setAFK},
		{Trigger: "unafk", Description: "Remove AFK status manually", Category: "user", Handler: p.unAFK},
		{Trigger: "afklist", Description: "Show all AFK users", Category: "user", Handler: p.list},
		{Trigger: "setafkmsg ?(.*)", RequireOwner: true, Description: "Set custom AFK response message", Category: "user", Handler: p.setTemplate},
		{Trigger: "cleanafk", RequireOwner: true, Description: "Clean up AFK entries older than 7 days", Category: "user", Handler: p.clean},
		{On: commands.OnText, Handler: p.onText},
	}
}

func (p *Plugin) entries(ctx context.Context) (map[string]Entry, error) {
	return state.Get[map[string]Entry](ctx, p.store, state.SectionAFK)
}

func (p *Plugin) setAFK(ctx context.Context, req *commands.Request) error {
	name := req.Message.PushName
	if name == "" {
		name = "User"
	}
	now := p.now()
	reason := strings.TrimSpace(req.Match)

	entry := Entry{Name: name, Reason: reason, Timestamp: now.UnixMilli()}
	if entry.Reason == "" {
		entry.Reason = noReason
	}
	err := state.Modify(ctx, p.store, state.SectionAFK, func(m *map[string]Entry) error {
		(*m)[req.Message.Sender] = entry
		return nil
	})
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("set AFK", err))
	}

	text := fmt.Sprintf("*AFK Status Set*\n\n%s is now AFK\n", name)
	if reason != "" {
		text += "Reason: " + reason + "\n"
	}
	text += "Time: " + now.Format(pluginkit.TimeLayout)
	return req.Reply(ctx, text)
}

// remove deletes sender's entry and returns it.
func (p *Plugin) remove(ctx context.Context, sender string) (Entry, bool, error) {
	var (
		removed Entry
		found   bool
	)
	err := state.Modify(ctx, p.store, state.SectionAFK, func(m *map[string]Entry) error {
		removed, found = (*m)[sender]
		if !found {
			return state.ErrSkipWrite
		}
		delete(*m, sender)
		return nil
	})
	return removed, found, err
}

func (p *Plugin) welcomeBack(name string, e Entry) string {
	return fmt.Sprintf("*Welcome Back%s!*\n\nYou were AFK for %s\nMentions received: %d",
		name, pluginkit.Duration(p.now().Sub(e.Since())), e.Mentions)
}

func (p *Plugin) unAFK(ctx context.Context, req *commands.Request) error {
	entry, found, err := p.remove(ctx, req.Message.Sender)
	if err != nil {
		return err
	}
	if !found {
		return req.Reply(ctx, "You are not currently AFK")
	}
	return req.Reply(ctx, p.welcomeBack("", entry))
}

type listed struct {
	jid string
	Entry
}

func sorted(m map[string]Entry) []listed {
	out := make([]listed, 0, len(m))
	for jid, e := range m {
		out = append(out, listed{jid: jid, Entry: e})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].jid < out[j].jid
	})
	return out
}

func (p *Plugin) list(ctx context.Context, req *commands.Request) error {
	m, err := p.entries(ctx)
	if err != nil {
		return err
	}
	if len(m) == 0 {
		return req.Reply(ctx, "No users are currently AFK")
	}

	var b strings.Builder
	b.WriteString("*Currently AFK Users*\n\n")
	for i, e := range sorted(m) {
		number, _, _ := strings.Cut(e.jid, "@")
		fmt.Fprintf(&b, "%d. %s (+%s)\n", i+1, e.Name, number)
		fmt.Fprintf(&b, "   Reason: %s\n", e.Reason)
		fmt.Fprintf(&b, "   Duration: %s\n", pluginkit.Duration(p.now().Sub(e.Since())))
		fmt.Fprintf(&b, "   Mentions: %d\n\n", e.Mentions)
	}
	return req.Reply(ctx, b.String())
}

func (p *Plugin) setTemplate(ctx context.Context, req *commands.Request) error {
	template := strings.TrimSpace(req.Match)
	if template == "" {
		return req.Reply(ctx, "Please provide a custom AFK message\n\nExample: "+req.Config.Prefix+"setafkmsg @user is currently AFK since @time ago. Reason: @reason\n\n"+templateHelp)
	}
	if err := state.Put(ctx, p.store, state.SectionAFKMessage, template); err != nil {
		return req.Reply(ctx, pluginkit.Failed("save AFK message", err))
	}
	return req.Reply(ctx, "*Custom AFK message set*\n\nMessage: "+template+"\n\n*Available Prefixes:*\n@user, @name, @time, @date, @mentioner, @reason")
}

// Cleanup removes entries older than MaxAge and reports how many.
func (p *Plugin) Cleanup(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-MaxAge).UnixMilli()
	removed := 0
	err := state.Modify(ctx, p.store, state.SectionAFK, func(m *map[string]Entry) error {
		for jid, e := range *m {
			if e.Timestamp < cutoff {
				delete(*m, jid)
				removed++
			}
		}
		if removed == 0 {
			return state.ErrSkipWrite
		}
		return nil
	})
	return removed, err
}

func (p *Plugin) clean(ctx context.Context, req *commands.Request) error {
	n, err := p.Cleanup(ctx)
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("clean AFK entries", err))
	}
	return req.Reply(ctx, fmt.Sprintf("*AFK Cleanup Complete*\n\nRemoved %d old AFK entries (older than 7 days)", n))
}

// Job is the housekeeping job running Cleanup.
func (p *Plugin) Job(spec string) cron.Job {
	return cron.Job{
		Name: "afk-cleanup",
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := p.Cleanup(ctx)
			return err
		},
	}
}

func (p *Plugin) onText(ctx context.Context, req *commands.Request) error {
	msg := req.Message
	// Command invocations are left to their handlers; otherwise ".afk"
	// would immediately welcome its sender back.
	if req.Config.Prefix != "" && strings.HasPrefix(msg.Body, req.Config.Prefix) {
		return nil
	}

	if entry, found, err := p.remove(ctx, msg.Sender); err != nil {
		return err
	} else if found {
		return req.Reply(ctx, p.welcomeBack(" "+entry.Name, entry))
	}

	targets := append([]string(nil), msg.Mentions...)
	if msg.Quoted != nil && msg.Quoted.Sender != "" {
		targets = append(targets, msg.Quoted.Sender)
	}
	if err := p.notifyMentioned(ctx, req, targets); err != nil {
		return err
	}

	if msg.IsGroup && (strings.Contains(msg.Body, "@everyone") || strings.Contains(msg.Body, "@all")) {
		return p.notifyEveryone(ctx, req)
	}
	return nil
}

// notifyMentioned answers for the first AFK user among targets.
func (p *Plugin) notifyMentioned(ctx context.Context, req *commands.Request, targets []string) error {
	if len(targets) == 0 {
		return nil
	}
	var (
		hit   Entry
		found bool
	)
	err := state.Modify(ctx, p.store, state.SectionAFK, func(m *map[string]Entry) error {
		for _, jid := range targets {
			if e, ok := (*m)[jid]; ok {
				e.Mentions++
				(*m)[jid] = e
				hit, found = e, true
				return nil
			}
		}
		return state.ErrSkipWrite
	})
	if err != nil || !found {
		return err
	}

	template, err := state.Get[string](ctx, p.store, state.SectionAFKMessage)
	if err != nil {
		return err
	}
	since := pluginkit.Duration(p.now().Sub(hit.Since()))
	text := fmt.Sprintf("*%s is currently AFK*\n\nReason: %s\nAFK since: %s ago\nMentions: %d",
		hit.Name, hit.Reason, since, hit.Mentions)
	if template != "" {
		mentioner := req.Message.PushName
		if mentioner == "" {
			mentioner = "Someone"
		}
		text = pluginkit.Expand(template, map[string]string{
			"user":      hit.Name,
			"name":      hit.Name,
			"time":      since,
			"date":      hit.Since().Format(pluginkit.TimeLayout),
			"mentioner": mentioner,
			"reason":    hit.Reason,
		})
	}
	return req.Reply(ctx, text)
}

func (p *Plugin) notifyEveryone(ctx context.Context, req *commands.Request) error {
	var shown []listed
	total := 0
	err := state.Modify(ctx, p.store, state.SectionAFK, func(m *map[string]Entry) error {
		all := sorted(*m)
		total = len(all)
		if total == 0 {
			return state.ErrSkipWrite
		}
		if len(all) > groupListMax {
			all = all[:groupListMax]
		}
		for _, e := range all {
			e.Mentions++
			(*m)[e.jid] = e.Entry
			shown = append(shown, e)
		}
		return nil
	})
	if err != nil || total == 0 {
		return err
	}

	var b strings.Builder
	b.WriteString("*AFK Users in this group:*\n\n")
	for i, e := range shown {
		fmt.Fprintf(&b, "%d. %s - AFK for %s\n", i+1, e.Name, pluginkit.Duration(p.now().Sub(e.Since())))
		fmt.Fprintf(&b, "   Reason: %s\n\n", e.Reason)
	}
	if total > groupListMax {
		fmt.Fprintf(&b, "... and %d more AFK users", total-groupListMax)
	}
	return req.Reply(ctx, b.String())
}
