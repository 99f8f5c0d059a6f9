// Package sticky binds commands to stickers: sending a bound sticker runs
// its command.
package sticky

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"axiombot/pkg/commands"
	"axiombot/pkg/message"
	"axiombot/pkg/plugins/pluginkit"
	"axiombot/pkg/state"
)

// Runner re-dispatches text as a command on behalf of msg.
type Runner interface {
	RunCommand(ctx context.Context, msg *message.Message, raw *events.Message, text string) int
}

// Binding is one sticker's entry in the sticky section, keyed by the hex
// SHA-256 of the sticker file.
type Binding struct {
	Command       string `json:"command"`
	CreatedBy     string `json:"createdBy"`
	CreatedByName string `json:"createdByName"`
	Timestamp     int64  `json:"timestamp"` // unix millis
	GroupID       string `json:"groupId,omitempty"`
	UsageCount    int    `json:"usageCount"`
}

func (b Binding) scope() string {
	if b.GroupID != "" {
		return "Group Only"
	}
	return "Global"
}

// Plugin implements the sticky commands and the sticker handler.
type Plugin struct {
	store  *state.Store
	runner Runner
	now    func() time.Time
}

func New(store *state.Store, runner Runner) *Plugin {
	return &Plugin{store: store, runner: runner, now: time.Now}
}

func (p *Plugin) Name() string { return "sticky" }

func (p *Plugin) Commands() []*commands.Definition {
	return []*commands.Definition{
		{Trigger: "sticky ?(.*)", Description: "Assign command to sticker (reply to sticker with command)", Category: "utility", Handler: p.bind},
		{Trigger: "unsticky", Description: "Remove command from sticker (reply to sticker)", Category: "utility", Handler: p.unbind},
		{Trigger: "stickylist", Description: "Show all sticky commands", Category: "utility", Handler: p.list},
		{Trigger: "stickyinfo", Description: "Get info about sticker command (reply to sticker)", Category: "utility", Handler: p.info},
		{Trigger: "clearsticky", RequireOwner: true, Description: "Clear all sticky commands (Owner only)", Category: "utility", Handler: p.clear},
		{Trigger: "teststicky", Description: "Test sticky command execution (reply to sticker)", Category: "utility", Handler: p.test},
		{On: commands.OnSticker, Handler: p.onSticker},
	}
}

func (p *Plugin) bindings(ctx context.Context) (map[string]Binding, error) {
	return state.Get[map[string]Binding](ctx, p.store, state.SectionSticky)
}

// quotedSticker returns the hash of the replied-to sticker. ok is false when
// a reply has been sent explaining what is missing.
func quotedSticker(ctx context.Context, req *commands.Request, missing string) (string, bool, error) {
	q := req.Message.Quoted
	if q == nil || q.Kind != message.KindSticker {
		return "", false, req.Reply(ctx, missing)
	}
	hash := message.StickerHash(q.Content)
	if hash == "" {
		return "", false, req.Reply(ctx, "Could not identify sticker. Please try again.")
	}
	return hash, true, nil
}

// groupAdmin allows anyone in private chats and admins in groups.
func groupAdmin(ctx context.Context, req *commands.Request) (bool, error) {
	if !req.Message.IsGroup {
		return true, nil
	}
	info, err := pluginkit.GroupAdmin(ctx, req, false)
	return info != nil, err
}

func (p *Plugin) bind(ctx context.Context, req *commands.Request) error {
	if ok, err := groupAdmin(ctx, req); !ok {
		return err
	}
	pfx := req.Config.Prefix
	hash, ok, err := quotedSticker(ctx, req, "Please reply to a sticker with the command you want to assign\n\nExample:\n"+
		"*Reply to a sticker:* "+pfx+"sticky alive\n*Reply to a sticker:* "+pfx+"sticky menu\n*Reply to a sticker:* "+pfx+"sticky ping")
	if !ok {
		return err
	}
	cmd := strings.TrimSpace(req.Match)
	if cmd == "" {
		return req.Reply(ctx, "Please provide a command to assign to this sticker\n\nExample:\n"+pfx+"sticky alive\n"+pfx+"sticky menu\n"+pfx+"sticky ping")
	}
	if !strings.HasPrefix(cmd, pfx) {
		cmd = pfx + cmd
	}

	name := req.Message.PushName
	if name == "" {
		name = "User"
	}
	b := Binding{
		Command:       cmd,
		CreatedBy:     req.Message.Sender,
		CreatedByName: name,
		Timestamp:     p.now().UnixMilli(),
	}
	scope := "Global"
	if req.Message.IsGroup {
		b.GroupID = req.Chat()
		scope = "This Group Only"
	}
	err = state.Modify(ctx, p.store, state.SectionSticky, func(m *map[string]Binding) error {
		(*m)[hash] = b
		return nil
	})
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("save sticky command", err))
	}
	return req.Reply(ctx, fmt.Sprintf("*Sticky Command Set Successfully*\n\nSticker assigned to command: %s\nCreated by: %s\nScope: %s", cmd, name, scope))
}

func (p *Plugin) unbind(ctx context.Context, req *commands.Request) error {
	if ok, err := groupAdmin(ctx, req); !ok {
		return err
	}
	hash, ok, err := quotedSticker(ctx, req, "Please reply to a sticker to remove its assigned command")
	if !ok {
		return err
	}
	var (
		removed Binding
		found   bool
	)
	err = state.Modify(ctx, p.store, state.SectionSticky, func(m *map[string]Binding) error {
		removed, found = (*m)[hash]
		if !found {
			return state.ErrSkipWrite
		}
		delete(*m, hash)
		return nil
	})
	if err != nil {
		return req.Reply(ctx, "Failed to remove sticky command")
	}
	if !found {
		return req.Reply(ctx, "This sticker does not have any assigned command")
	}
	return req.Reply(ctx, fmt.Sprintf("*Sticky Command Removed*\n\nRemoved command: %s\nUsage count: %d", removed.Command, removed.UsageCount))
}

func (p *Plugin) list(ctx context.Context, req *commands.Request) error {
	all, err := p.bindings(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		return req.Reply(ctx, "No sticky commands configured")
	}

	hashes := make([]string, 0, len(all))
	for hash, b := range all {
		if req.Message.IsGroup && b.GroupID != "" && b.GroupID != req.Chat() {
			continue
		}
		hashes = append(hashes, hash)
	}
	if len(hashes) == 0 {
		return req.Reply(ctx, "No sticky commands configured for this chat")
	}
	sort.Slice(hashes, func(i, j int) bool {
		a, b := all[hashes[i]], all[hashes[j]]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return hashes[i] < hashes[j]
	})

	var sb strings.Builder
	sb.WriteString("*Sticky Commands List*\n\n")
	for i, hash := range hashes {
		b := all[hash]
		fmt.Fprintf(&sb, "%d. Command: %s\n", i+1, b.Command)
		fmt.Fprintf(&sb, "   Created by: %s\n", b.CreatedByName)
		fmt.Fprintf(&sb, "   Created: %s\n", time.UnixMilli(b.Timestamp).Format("2006-01-02"))
		fmt.Fprintf(&sb, "   Usage: %d times\n", b.UsageCount)
		fmt.Fprintf(&sb, "   Scope: %s\n", b.scope())
		fmt.Fprintf(&sb, "   Sticker ID: %s...\n\n", hash[:min(8, len(hash))])
	}
	fmt.Fprintf(&sb, "Total: %d sticky commands", len(hashes))
	return req.Reply(ctx, sb.String())
}

func (p *Plugin) info(ctx context.Context, req *commands.Request) error {
	hash, ok, err := quotedSticker(ctx, req, "Please reply to a sticker to get its command info")
	if !ok {
		return err
	}
	all, err := p.bindings(ctx)
	if err != nil {
		return err
	}
	b, found := all[hash]
	if !found {
		return req.Reply(ctx, "This sticker does not have any assigned command")
	}
	return req.Reply(ctx, fmt.Sprintf("*Sticky Command Info*\n\nCommand: %s\nCreated by: %s\nCreated: %s\nUsage count: %d\nScope: %s\nSticker ID: %s",
		b.Command, b.CreatedByName, time.UnixMilli(b.Timestamp).Format(pluginkit.TimeLayout), b.UsageCount, b.scope(), hash))
}

func (p *Plugin) clear(ctx context.Context, req *commands.Request) error {
	count := 0
	err := state.Modify(ctx, p.store, state.SectionSticky, func(m *map[string]Binding) error {
		count = len(*m)
		if count == 0 {
			return state.ErrSkipWrite
		}
		*m = map[string]Binding{}
		return nil
	})
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("clear sticky commands", err))
	}
	if count == 0 {
		return req.Reply(ctx, "No sticky commands to clear")
	}
	return req.Reply(ctx, fmt.Sprintf("*All Sticky Commands Cleared*\n\nRemoved %d sticky commands", count))
}

func (p *Plugin) test(ctx context.Context, req *commands.Request) error {
	if ok, err := groupAdmin(ctx, req); !ok {
		return err
	}
	hash, ok, err := quotedSticker(ctx, req, "Please reply to a sticker to test its command")
	if !ok {
		return err
	}
	all, err := p.bindings(ctx)
	if err != nil {
		return err
	}
	b, found := all[hash]
	if !found {
		return req.Reply(ctx, "This sticker does not have any assigned command")
	}
	if err := req.Reply(ctx, "*Testing Sticky Command*\n\nCommand: "+b.Command+"\nExecuting now..."); err != nil {
		return err
	}
	if p.runner.RunCommand(ctx, req.Message, req.Raw, b.Command) == 0 {
		return req.Reply(ctx, "*Test failed* - Command could not be executed")
	}
	return req.Reply(ctx, "*Test completed successfully*")
}

// onSticker runs the command bound to an incoming sticker, honouring group
// scope, and counts the use.
func (p *Plugin) onSticker(ctx context.Context, req *commands.Request) error {
	hash := message.StickerHash(req.Message.Content)
	if hash == "" {
		return nil
	}
	var (
		b     Binding
		found bool
	)
	err := state.Modify(ctx, p.store, state.SectionSticky, func(m *map[string]Binding) error {
		b, found = (*m)[hash]
		if !found || (b.GroupID != "" && b.GroupID != req.Chat()) {
			found = false
			return state.ErrSkipWrite
		}
		b.UsageCount++
		(*m)[hash] = b
		return nil
	})
	if err != nil || !found {
		return err
	}
	p.runner.RunCommand(ctx, req.Message, req.Raw, b.Command)
	return nil
}
