// Package info lists the registered commands.
package info

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"axiombot/pkg/commands"
	"axiombot/pkg/plugins/pluginkit"
	"axiombot/pkg/version"
)

type style struct {
	bullet, border, header, footer string
}

var styles = []style{
	{"◦", "═", "〘", "〙"},
	{"→", "─", "《", "》"},
	{"•", "=", "[", "]"},
	{"»", "─", "{", "}"},
}

// SystemStats is what the menu header shows about the host.
type SystemStats struct {
	Platform string
	TotalRAM uint64
}

// ReadSystemStats queries the host through gopsutil.
func ReadSystemStats(ctx context.Context) (SystemStats, error) {
	stats := SystemStats{Platform: runtime.GOOS}
	if h, err := host.InfoWithContext(ctx); err == nil && h.Platform != "" {
		stats.Platform = h.Platform
	}
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("reading memory: %w", err)
	}
	stats.TotalRAM = v.Total
	return stats, nil
}

// Plugin implements menu and list.
type Plugin struct {
	stats  func(ctx context.Context) (SystemStats, error)
	uptime func() time.Duration
	style  atomic.Uint32
}

// New creates the plugin. Nil funcs use gopsutil and the process uptime.
func New(stats func(ctx context.Context) (SystemStats, error), uptime func() time.Duration) *Plugin {
	if stats == nil {
		stats = ReadSystemStats
	}
	if uptime == nil {
		uptime = version.Uptime
	}
	return &Plugin{stats: stats, uptime: uptime}
}

func (p *Plugin) Name() string { return "info" }

func (p *Plugin) Commands() []*commands.Definition {
	return []*commands.Definition{
		{Trigger: "menu", Hidden: true, Description: "List commands", Category: "info", Handler: p.menu},
		{Trigger: "list", Description: "List all commands with descriptions", Category: "info", Handler: p.list},
	}
}

func (p *Plugin) nextStyle() style {
	i := p.style.Add(1) - 1
	return styles[int(i)%len(styles)]
}

func (p *Plugin) menu(ctx context.Context, req *commands.Request) error {
	st := p.nextStyle()
	stats, err := p.stats(ctx)
	if err != nil {
		req.Log.Debug("System stats unavailable", zap.Error(err))
	}
	totalGB := float64(stats.TotalRAM) / (1024 * 1024 * 1024)

	var b strings.Builder
	fmt.Fprintf(&b, "╭%s%s %s %s%s◆➤\n", strings.Repeat(st.border, 3), st.header, req.Config.BotName, st.footer, strings.Repeat(st.border, 2))
	b.WriteString("┃◦╭──────────────\n")
	fmt.Fprintf(&b, "┃◦│ Owner :  %s\n", req.Config.OwnerName)
	fmt.Fprintf(&b, "┃◦│ User : %s\n", req.Message.PushName)
	fmt.Fprintf(&b, "┃◦│ Plugins : %d\n", req.Registry.Len())
	fmt.Fprintf(&b, "┃◦│ Runtime : %s\n", pluginkit.Clock(p.uptime()))
	fmt.Fprintf(&b, "┃◦│ Platform : %s\n", stats.Platform)
	fmt.Fprintf(&b, "┃◦│ Total RAM : %.2f GB\n", totalGB)
	fmt.Fprintf(&b, "┃◦│ Go Version : %s\n", runtime.Version())
	b.WriteString("┃◦│\n┃◦│  ⣾⣽⣻⢿⡿⣟⣯⣷⣾⣽⣻⢿⡿⣟⣯⣷\n┃◦│\n")
	b.WriteString("┃◦╰───────────────\n")
	fmt.Fprintf(&b, "╰%s◆➤\n\n", strings.Repeat(st.border, 15))

	for _, cat := range req.Registry.Categories() {
		fmt.Fprintf(&b, "╭%s%s %s %s%s◆➤\n│◦╭─────────────────", strings.Repeat(st.border, 4), st.header, strings.ToUpper(cat.Name), st.footer, strings.Repeat(st.border, 2))
		for _, d := range cat.Commands {
			fmt.Fprintf(&b, "\n│◦│ %s %s", st.bullet, d.Name())
		}
		fmt.Fprintf(&b, "\n┃◦╰─────────────────\n╰%s◆➤\n\n", strings.Repeat(st.border, 15))
	}
	return req.Reply(ctx, strings.TrimSpace(b.String()))
}

func (p *Plugin) list(ctx context.Context, req *commands.Request) error {
	var b strings.Builder
	b.WriteString("*COMMAND REFERENCE*\n\n")

	total := 0
	categories := req.Registry.Categories()
	for _, cat := range categories {
		fmt.Fprintf(&b, "*%s COMMANDS*\n%s\n", strings.ToUpper(cat.Name), strings.Repeat("-", 30))
		for _, d := range cat.Commands {
			desc := d.Description
			if desc == "" {
				desc = "No description available"
			}
			fmt.Fprintf(&b, "%-12s : %s\n", d.Name(), desc)
			total++
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Summary: %d commands across %d categories\n", total, len(categories))
	fmt.Fprintf(&b, "Use %smenu for system overview", req.Config.Prefix)
	return req.Reply(ctx, strings.TrimSpace(b.String()))
}
