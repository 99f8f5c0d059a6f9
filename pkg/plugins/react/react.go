// Package react sends reactions on request and reacts to chat traffic
// automatically.
package react

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"axiombot/pkg/commands"
	"axiombot/pkg/plugins/pluginkit"
	"axiombot/pkg/state"
)

// Auto-react modes.
const (
	ModeRandom  = "random"
	ModeKeyword = "keyword"
	ModeBoth    = "both"
)

// Setting is one chat's entry in the autoreact section.
type Setting struct {
	Enabled     bool              `json:"enabled"`
	Mode        string            `json:"mode"`
	Emojis      []string          `json:"emojis"`
	Probability float64           `json:"probability"`
	Keywords    map[string]string `json:"keywords"`
}

func defaultSetting() Setting {
	return Setting{
		Mode:        ModeRandom,
		Emojis:      []string{"❤️", "👍", "😂"},
		Probability: 0.15,
		Keywords:    map[string]string{},
	}
}

// Template is a ready-made auto-react configuration.
type Template struct {
	Key         string
	Name        string
	Description string
	Setting     Setting
}

// Templates lists the presets in menu order.
var Templates = []Template{
	{"basic", "Basic Reactions", "Simple positive reactions", Setting{
		Enabled: true, Mode: ModeRandom, Emojis: []string{"👍", "❤️", "😊"}, Probability: 0.15,
		Keywords: map[string]string{"thanks": "🙏", "good": "👍", "love": "❤️"},
	}},
	{"fun", "Fun & Energetic", "Lively reactions for active groups", Setting{
		Enabled: true, Mode: ModeBoth, Emojis: []string{"🔥", "🎉", "😂", "💯", "⭐"}, Probability: 0.25,
		Keywords: map[string]string{"funny": "😂", "amazing": "🔥", "perfect": "💯", "party": "🎉", "awesome": "⭐"},
	}},
	{"professional", "Professional", "Minimal reactions for work groups", Setting{
		Enabled: true, Mode: ModeKeyword, Emojis: []string{"👍", "✅"}, Probability: 0.1,
		Keywords: map[string]string{"done": "✅", "completed": "✅", "approved": "👍", "confirmed": "✅"},
	}},
	{"supportive", "Supportive", "Encouraging and caring reactions", Setting{
		Enabled: true, Mode: ModeBoth, Emojis: []string{"❤️", "🤗", "👏", "🙏", "💪"}, Probability: 0.2,
		Keywords: map[string]string{"help": "🤗", "support": "💪", "thanks": "🙏", "great": "👏", "well done": "👏"},
	}},
}

func findTemplate(key string) (Template, bool) {
	for _, t := range Templates {
		if t.Key == key {
			return t, true
		}
	}
	return Template{}, false
}

var quick = []struct {
	name, emoji, desc string
}{
	{"love", "❤️", "React with love emoji"},
	{"like", "👍", "React with thumbs up"},
	{"laugh", "😂", "React with laughing emoji"},
	{"fire", "🔥", "React with fire emoji"},
	{"star", "⭐", "React with star emoji"},
	{"clap", "👏", "React with clapping emoji"},
	{"party", "🎉", "React with party emoji"},
	{"perfect", "💯", "React with 100 emoji"},
}

// IsEmoji reports whether s is a short run of emoji code points, allowing
// joiners, variation selectors and skin tones.
func IsEmoji(s string) bool {
	if s == "" || utf8.RuneCountInString(s) > 8 {
		return false
	}
	for _, r := range s {
		switch {
		case r == 0x200D, r == 0xFE0F, r == 0x20E3, r == 0xA9, r == 0xAE:
		case r >= 0x1F000 && r <= 0x1FAFF:
		case r >= 0x2000 && r <= 0x3300:
		case unicode.Is(unicode.So, r):
		default:
			return false
		}
	}
	return true
}

// Plugin implements the reaction commands and the auto-react handler.
type Plugin struct {
	store *state.Store
	// roll returns a float in [0, 1); pick returns an index below n.
	roll func() float64
	pick func(n int) int
}

func New(store *state.Store) *Plugin {
	return &Plugin{store: store, roll: rand.Float64, pick: rand.IntN}
}

func (p *Plugin) Name() string { return "react" }

func (p *Plugin) Commands() []*commands.Definition {
	defs := []*commands.Definition{
		{Trigger: "react ?(.*)", Description: "React to a message (reply to message with emoji)", Category: "utility", Handler: p.react},
		{Trigger: "autoreact ?(.*)", Description: "Configure auto reactions with easy templates", Category: "utility", Handler: p.autoReact},
		{Trigger: "removekeyword ?(.*)", Description: "Remove keyword reaction", Category: "utility", Handler: p.removeKeyword},
		{Trigger: "clearautoreact", RequireOwner: true, Description: "Clear all auto reaction settings (Owner only)", Category: "utility", Handler: p.clear},
		{On: commands.OnText, Handler: p.onText},
	}
	for _, q := range quick {
		defs = append(defs, &commands.Definition{
			Trigger:     q.name,
			Description: q.desc,
			Category:    "utility",
			Handler:     p.quickReact(q.emoji),
		})
	}
	return defs
}

func (p *Plugin) react(ctx context.Context, req *commands.Request) error {
	pfx := req.Config.Prefix
	q := req.Message.Quoted
	if q == nil {
		return req.Reply(ctx, "Please reply to a message to react to it\n\nExample:\n*Reply to a message:* "+pfx+"react ❤️\n*Reply to a message:* "+pfx+"react 👍\n*Reply to a message:* "+pfx+"react 😂")
	}
	emoji := strings.TrimSpace(req.Match)
	if emoji == "" {
		return req.Reply(ctx, "Please provide an emoji to react with\n\nExample:\n"+pfx+"react ❤️\n"+pfx+"react 👍\n"+pfx+"react 😂\n"+pfx+"react 🔥")
	}
	if !IsEmoji(emoji) {
		return req.Reply(ctx, "Please provide a valid emoji\n\nExamples of valid emojis:\n❤️ 👍 😂 🔥 ⭐ 💯 👏 🎉")
	}
	if err := req.Gateway.React(ctx, req.Chat(), q.Sender, q.ID, emoji); err != nil {
		return req.Reply(ctx, "Failed to react to message. Please try again.")
	}
	return nil
}

func (p *Plugin) quickReact(emoji string) commands.Handler {
	return func(ctx context.Context, req *commands.Request) error {
		q := req.Message.Quoted
		if q == nil {
			return req.Reply(ctx, "Please reply to a message to react with "+emoji)
		}
		if err := req.Gateway.React(ctx, req.Chat(), q.Sender, q.ID, emoji); err != nil {
			return req.Reply(ctx, "Failed to react to message")
		}
		return nil
	}
}

func (p *Plugin) setting(ctx context.Context, chat string) (Setting, error) {
	m, err := state.Get[map[string]Setting](ctx, p.store, state.SectionAutoReact)
	if err != nil {
		return Setting{}, err
	}
	s, ok := m[chat]
	if !ok {
		return defaultSetting(), nil
	}
	if s.Keywords == nil {
		s.Keywords = map[string]string{}
	}
	return s, nil
}

func (p *Plugin) update(ctx context.Context, chat string, fn func(*Setting) error) error {
	return state.Modify(ctx, p.store, state.SectionAutoReact, func(m *map[string]Setting) error {
		s, ok := (*m)[chat]
		if !ok {
			s = defaultSetting()
		}
		if s.Keywords == nil {
			s.Keywords = map[string]string{}
		}
		if err := fn(&s); err != nil {
			return err
		}
		(*m)[chat] = s
		return nil
	})
}

// groupAdmin allows anyone in private chats and admins in groups.
func groupAdmin(ctx context.Context, req *commands.Request) (bool, error) {
	if !req.Message.IsGroup {
		return true, nil
	}
	info, err := pluginkit.GroupAdmin(ctx, req, false)
	return info != nil, err
}

func percent(p float64) string {
	return strconv.FormatFloat(p*100, 'f', -1, 64) + "%"
}

func sortedKeywords(kw map[string]string) []string {
	keys := make([]string, 0, len(kw))
	for k := range kw {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (p *Plugin) autoReact(ctx context.Context, req *commands.Request) error {
	if ok, err := groupAdmin(ctx, req); !ok {
		return err
	}
	pfx := req.Config.Prefix
	chat := req.Chat()
	sub, rest, _ := strings.Cut(strings.TrimSpace(req.Match), " ")
	sub = strings.ToLower(sub)
	rest = strings.TrimSpace(rest)

	if sub == "" {
		s, err := p.setting(ctx, chat)
		if err != nil {
			return err
		}
		var names []string
		for _, t := range Templates {
			names = append(names, fmt.Sprintf("• %s - %s", t.Key, t.Name))
		}
		return req.Reply(ctx, fmt.Sprintf("*Auto React System*\n\nCurrent Status: %s\n\n*Easy Setup Templates:*\n%s\n\n"+
			"*Quick Commands:*\n"+
			"• %[3]sautoreact basic - Set up basic reactions\n"+
			"• %[3]sautoreact fun - Set up fun reactions\n"+
			"• %[3]sautoreact professional - Set up work-friendly reactions\n"+
			"• %[3]sautoreact supportive - Set up caring reactions\n"+
			"• %[3]sautoreact on - Enable current settings\n"+
			"• %[3]sautoreact off - Disable auto reactions\n"+
			"• %[3]sautoreact status - Show current settings\n"+
			"• %[3]sautoreact mode <random|keyword|both>\n"+
			"• %[3]sautoreact probability <0-100>\n"+
			"• %[3]sautoreact emojis <emoji> <emoji> ...\n"+
			"• %[3]sautoreact keyword <word> <emoji>\n\n"+
			"*Example:*\nJust type: %[3]sautoreact fun\nThat's it! Bot will automatically react to messages with fun emojis.",
			pluginkit.OnOff(s.Enabled), strings.Join(names, "\n"), pfx))
	}

	if sub == "template" {
		sub, rest = strings.ToLower(rest), ""
	}
	if t, ok := findTemplate(sub); ok {
		err := p.update(ctx, chat, func(s *Setting) error {
			*s = t.Setting
			s.Emojis = slices.Clone(t.Setting.Emojis)
			s.Keywords = make(map[string]string, len(t.Setting.Keywords))
			for k, v := range t.Setting.Keywords {
				s.Keywords[k] = v
			}
			return nil
		})
		if err != nil {
			return req.Reply(ctx, pluginkit.Failed("apply template", err))
		}
		return req.Reply(ctx, fmt.Sprintf("*%s Template Applied*\n\n%s\n\nEmojis: %s\nKeywords: %d smart reactions\nChance: %s per message\n\n"+
			"Auto reactions are now ACTIVE!\n\nTry sending messages and watch the bot react automatically.",
			t.Name, t.Description, strings.Join(t.Setting.Emojis, " "), len(t.Setting.Keywords), percent(t.Setting.Probability)))
	}

	switch sub {
	case "on", "off":
		on := sub == "on"
		if err := p.update(ctx, chat, func(s *Setting) error { s.Enabled = on; return nil }); err != nil {
			return req.Reply(ctx, pluginkit.Failed("update auto reactions", err))
		}
		if on {
			return req.Reply(ctx, "*Auto reactions turned ON*\n\nBot will now react to messages automatically.")
		}
		return req.Reply(ctx, "*Auto reactions turned OFF*\n\nBot will stop reacting automatically.")

	case "status":
		s, err := p.setting(ctx, chat)
		if err != nil {
			return err
		}
		var kw []string
		for _, k := range sortedKeywords(s.Keywords) {
			kw = append(kw, k+" → "+s.Keywords[k])
		}
		keywords := strings.Join(kw, "\n")
		if keywords == "" {
			keywords = "None"
		}
		return req.Reply(ctx, fmt.Sprintf("*Current Auto React Settings*\n\nStatus: %s\nMode: %s\nReaction Chance: %s\n\nRandom Emojis:\n%s\n\nSmart Keywords:\n%s\n\n"+
			"To change settings, use a template:\n%[6]sautoreact basic\n%[6]sautoreact fun\n%[6]sautoreact professional\n%[6]sautoreact supportive",
			pluginkit.OnOff(s.Enabled), s.Mode, percent(s.Probability), strings.Join(s.Emojis, " "), keywords, pfx))

	case "mode":
		mode := strings.ToLower(rest)
		if mode != ModeRandom && mode != ModeKeyword && mode != ModeBoth {
			return req.Reply(ctx, "Invalid mode. Use: random/keyword/both")
		}
		if err := p.update(ctx, chat, func(s *Setting) error { s.Mode = mode; return nil }); err != nil {
			return req.Reply(ctx, pluginkit.Failed("update auto reactions", err))
		}
		return req.Reply(ctx, "*Auto react mode set to:* "+mode)

	case "probability":
		v, err := strconv.ParseFloat(strings.TrimSuffix(rest, "%"), 64)
		if err != nil || v < 0 || v > 100 {
			return req.Reply(ctx, "Please provide a chance between 0 and 100\nExample: "+pfx+"autoreact probability 25")
		}
		if err := p.update(ctx, chat, func(s *Setting) error { s.Probability = v / 100; return nil }); err != nil {
			return req.Reply(ctx, pluginkit.Failed("update auto reactions", err))
		}
		return req.Reply(ctx, "*Reaction chance set to:* "+percent(v/100))

	case "emojis":
		emojis := strings.Fields(rest)
		if len(emojis) == 0 || slices.ContainsFunc(emojis, func(e string) bool { return !IsEmoji(e) }) {
			return req.Reply(ctx, "Please provide valid emojis separated by spaces\nExample: "+pfx+"autoreact emojis 🔥 🎉 😂")
		}
		if err := p.update(ctx, chat, func(s *Setting) error { s.Emojis = emojis; return nil }); err != nil {
			return req.Reply(ctx, pluginkit.Failed("update auto reactions", err))
		}
		return req.Reply(ctx, "*Random emojis set:* "+strings.Join(emojis, " "))

	case "keyword":
		i := strings.LastIndex(rest, " ")
		if i < 0 {
			return req.Reply(ctx, "Please provide a keyword and an emoji\nExample: "+pfx+"autoreact keyword thanks 🙏")
		}
		word, emoji := strings.ToLower(strings.TrimSpace(rest[:i])), strings.TrimSpace(rest[i+1:])
		if word == "" || !IsEmoji(emoji) {
			return req.Reply(ctx, "Please provide a keyword and an emoji\nExample: "+pfx+"autoreact keyword thanks 🙏")
		}
		if err := p.update(ctx, chat, func(s *Setting) error { s.Keywords[word] = emoji; return nil }); err != nil {
			return req.Reply(ctx, pluginkit.Failed("update auto reactions", err))
		}
		return req.Reply(ctx, fmt.Sprintf("*Keyword reaction added*\n\nKeyword: %s\nEmoji: %s", word, emoji))
	}

	return req.Reply(ctx, fmt.Sprintf("*Unknown template: %s*\n\nAvailable templates:\n"+
		"• basic - Simple positive reactions\n"+
		"• fun - Energetic and lively\n"+
		"• professional - Work-friendly\n"+
		"• supportive - Caring and encouraging\n\nExample: %sautoreact fun", sub, pfx))
}

func (p *Plugin) removeKeyword(ctx context.Context, req *commands.Request) error {
	if ok, err := groupAdmin(ctx, req); !ok {
		return err
	}
	word := strings.ToLower(strings.TrimSpace(req.Match))
	if word == "" {
		return req.Reply(ctx, "Please provide a keyword to remove\nExample: "+req.Config.Prefix+"removekeyword hello")
	}
	var emoji string
	err := state.Modify(ctx, p.store, state.SectionAutoReact, func(m *map[string]Setting) error {
		s, ok := (*m)[req.Chat()]
		if !ok {
			return state.ErrSkipWrite
		}
		if emoji, ok = s.Keywords[word]; !ok {
			return state.ErrSkipWrite
		}
		delete(s.Keywords, word)
		(*m)[req.Chat()] = s
		return nil
	})
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("remove keyword", err))
	}
	if emoji == "" {
		return req.Reply(ctx, "This keyword is not configured for auto reactions")
	}
	return req.Reply(ctx, fmt.Sprintf("*Keyword reaction removed*\n\nKeyword: %s\nEmoji: %s", word, emoji))
}

func (p *Plugin) clear(ctx context.Context, req *commands.Request) error {
	count := 0
	err := state.Modify(ctx, p.store, state.SectionAutoReact, func(m *map[string]Setting) error {
		count = len(*m)
		if count == 0 {
			return state.ErrSkipWrite
		}
		*m = map[string]Setting{}
		return nil
	})
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("clear auto reactions", err))
	}
	if count == 0 {
		return req.Reply(ctx, "No auto reaction settings to clear")
	}
	return req.Reply(ctx, fmt.Sprintf("*All auto reaction settings cleared*\n\nRemoved settings from %d chats", count))
}

// choose picks the reaction for text: a matching keyword first, then a
// random emoji with the configured probability.
func (p *Plugin) choose(s Setting, text string) string {
	lower := strings.ToLower(text)
	if s.Mode == ModeKeyword || s.Mode == ModeBoth {
		for _, k := range sortedKeywords(s.Keywords) {
			if strings.Contains(lower, k) {
				return s.Keywords[k]
			}
		}
	}
	if (s.Mode == ModeRandom || s.Mode == ModeBoth) && len(s.Emojis) > 0 && p.roll() < s.Probability {
		return s.Emojis[p.pick(len(s.Emojis))]
	}
	return ""
}

func (p *Plugin) onText(ctx context.Context, req *commands.Request) error {
	if strings.TrimSpace(req.Message.Body) == "" {
		return nil
	}
	m, err := state.Get[map[string]Setting](ctx, p.store, state.SectionAutoReact)
	if err != nil {
		return err
	}
	s, ok := m[req.Chat()]
	if !ok || !s.Enabled {
		return nil
	}
	emoji := p.choose(s, req.Message.Body)
	if emoji == "" {
		return nil
	}
	return req.React(ctx, emoji)
}
