// Package greetings sends per-group welcome and goodbye messages when
// members join or leave.
package greetings

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"axiombot/pkg/commands"
	"axiombot/pkg/config"
	"axiombot/pkg/gateway"
	"axiombot/pkg/logger"
	"axiombot/pkg/message"
	"axiombot/pkg/plugins/pluginkit"
	"axiombot/pkg/state"
)

// Greeting types.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeVideo = "video"
)

const placeholders = "@user, @name, @number, @group, @desc, @count, @members, @time, @date, @bot, @owner"

// Setting is one group's entry in the welcome or goodbye section.
type Setting struct {
	Enabled  bool   `json:"enabled"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	ImageURL string `json:"imageUrl,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
}

type flavor struct {
	name     string
	title    string
	section  string
	fallback string
	verb     string
}

var (
	welcome = flavor{
		name:     "welcome",
		title:    "Welcome",
		section:  state.SectionWelcome,
		fallback: "Welcome @user to @group!\n\nWe now have @count members.",
		verb:     "Welcome @user to @group!",
	}
	goodbye = flavor{
		name:     "goodbye",
		title:    "Goodbye",
		section:  state.SectionGoodbye,
		fallback: "Goodbye @user!\n\nWe now have @count members.",
		verb:     "Goodbye @user from @group!",
	}
)

func (f flavor) defaults() Setting {
	return Setting{Type: TypeText, Message: f.fallback}
}

// Plugin implements the greeting commands and listens for membership
// changes.
type Plugin struct {
	log    *logger.Logger
	store  *state.Store
	gw     gateway.Gateway
	config *config.Config

	// Client fetches image and video greetings.
	Client *http.Client
	now    func() time.Time
}

func New(log *logger.Logger, store *state.Store, gw gateway.Gateway, cfg *config.Config) *Plugin {
	return &Plugin{
		log:    log.Named("greetings"),
		store:  store,
		gw:     gw,
		config: cfg,
		Client: pluginkit.DefaultHTTPClient,
		now:    time.Now,
	}
}

func (p *Plugin) Name() string { return "greetings" }

func (p *Plugin) Commands() []*commands.Definition {
	return []*commands.Definition{
		{Trigger: "welcome ?(.*)", Description: "Configure welcome messages (on/off/text/image/video)", Category: "group", Handler: p.configure(welcome)},
		{Trigger: "setwelcome ?(.*)", Description: "Quick set welcome text message", Category: "group", Handler: p.quickSet(welcome)},
		{Trigger: "goodbye ?(.*)", Description: "Configure goodbye messages (on/off/text/image/video)", Category: "group", Handler: p.configure(goodbye)},
		{Trigger: "setgoodbye ?(.*)", Description: "Quick set goodbye text message", Category: "group", Handler: p.quickSet(goodbye)},
	}
}

func (p *Plugin) setting(ctx context.Context, f flavor, group string) (Setting, bool, error) {
	m, err := state.Get[map[string]Setting](ctx, p.store, f.section)
	if err != nil {
		return Setting{}, false, err
	}
	s, ok := m[group]
	if !ok {
		return f.defaults(), false, nil
	}
	return s, true, nil
}

func (p *Plugin) update(ctx context.Context, f flavor, group string, fn func(*Setting)) error {
	return state.Modify(ctx, p.store, f.section, func(m *map[string]Setting) error {
		s, ok := (*m)[group]
		if !ok {
			s = f.defaults()
		}
		fn(&s)
		(*m)[group] = s
		return nil
	})
}

func cutWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t\n")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

func (p *Plugin) configure(f flavor) commands.Handler {
	return func(ctx context.Context, req *commands.Request) error {
		info, err := pluginkit.GroupAdmin(ctx, req, false)
		if info == nil {
			return err
		}
		group := req.Chat()
		pfx := req.Config.Prefix
		sub, rest := cutWord(req.Match)

		switch strings.ToLower(sub) {
		case "", "show":
			s, _, err := p.setting(ctx, f, group)
			if err != nil {
				return err
			}
			status := "DISABLED"
			if s.Enabled {
				status = "ENABLED"
			}
			return req.Reply(ctx, fmt.Sprintf("*%s Configuration*\n\nStatus: %s\nType: %s\nMessage: %s\n\n"+
				"*Available Commands:*\n"+
				"• %[5]s%[6]s on - Enable %[6]s messages\n"+
				"• %[5]s%[6]s off - Disable %[6]s messages\n"+
				"• %[5]s%[6]s text <message> - Set text message\n"+
				"• %[5]s%[6]s image <url> <message> - Set image message\n"+
				"• %[5]s%[6]s video <url> <message> - Set video message\n"+
				"• %[5]sset%[6]s <message> - Quick set text message\n\n"+
				"*Available Prefixes:*\n%[7]s",
				f.title, status, strings.ToUpper(s.Type), s.Message, pfx, f.name, placeholders))

		case "on", "off":
			on := strings.EqualFold(sub, "on")
			if err := p.update(ctx, f, group, func(s *Setting) { s.Enabled = on }); err != nil {
				return req.Reply(ctx, pluginkit.Failed("update "+f.name, err))
			}
			if on {
				return req.Reply(ctx, "*"+f.title+" messages enabled*")
			}
			return req.Reply(ctx, "*"+f.title+" messages disabled*")

		case TypeText:
			if rest == "" {
				return req.Reply(ctx, fmt.Sprintf("Please provide a %s message\nExample: %s%s text %s", f.name, pfx, f.name, f.verb))
			}
			err := p.update(ctx, f, group, func(s *Setting) {
				s.Enabled, s.Type, s.Message = true, TypeText, rest
			})
			if err != nil {
				return req.Reply(ctx, pluginkit.Failed("update "+f.name, err))
			}
			return req.Reply(ctx, fmt.Sprintf("*%s text message set*\n\nMessage: %s", f.title, rest))

		case TypeImage, TypeVideo:
			kind := strings.ToLower(sub)
			url, text := cutWord(rest)
			if url == "" || text == "" {
				sample := "https://example.com/image.jpg"
				if kind == TypeVideo {
					sample = "https://example.com/video.mp4"
				}
				return req.Reply(ctx, fmt.Sprintf("Please provide %s URL and message\nExample: %s%s %s %s %s!",
					kind, pfx, f.name, kind, sample, strings.Fields(f.verb)[0]+" @user"))
			}
			err := p.update(ctx, f, group, func(s *Setting) {
				s.Enabled, s.Type, s.Message = true, kind, text
				if kind == TypeImage {
					s.ImageURL = url
				} else {
					s.VideoURL = url
				}
			})
			if err != nil {
				return req.Reply(ctx, pluginkit.Failed("update "+f.name, err))
			}
			label := "Image"
			if kind == TypeVideo {
				label = "Video"
			}
			return req.Reply(ctx, fmt.Sprintf("*%s %s message set*\n\n%s: %s\nMessage: %s", f.title, kind, label, url, text))
		}
		return req.Reply(ctx, "Invalid option. Use: on/off/text/image/video")
	}
}

func (p *Plugin) quickSet(f flavor) commands.Handler {
	return func(ctx context.Context, req *commands.Request) error {
		info, err := pluginkit.GroupAdmin(ctx, req, false)
		if info == nil {
			return err
		}
		text := strings.TrimSpace(req.Match)
		if text == "" {
			return req.Reply(ctx, fmt.Sprintf("Please provide a %s message\nExample: %sset%s %s We now have @count members.\n\n*Available Prefixes:*\n%s",
				f.name, req.Config.Prefix, f.name, f.verb, placeholders))
		}
		err = p.update(ctx, f, req.Chat(), func(s *Setting) {
			s.Enabled, s.Type, s.Message = true, TypeText, text
		})
		if err != nil {
			return req.Reply(ctx, pluginkit.Failed("update "+f.name, err))
		}
		return req.Reply(ctx, fmt.Sprintf("*%s message set successfully*\n\nMessage: %s", f.title, text))
	}
}

// Joined greets users that entered group.
func (p *Plugin) Joined(ctx context.Context, group string, users []string) {
	p.greet(ctx, welcome, group, users)
}

// Left says goodbye to users that left group.
func (p *Plugin) Left(ctx context.Context, group string, users []string) {
	p.greet(ctx, goodbye, group, users)
}

func (p *Plugin) greet(ctx context.Context, f flavor, group string, users []string) {
	s, found, err := p.setting(ctx, f, group)
	if err != nil {
		p.log.Warn("Failed to read greeting settings", zap.String("group", group), zap.Error(err))
		return
	}
	if !found || !s.Enabled {
		return
	}
	info, err := p.gw.GroupInfo(ctx, group)
	if err != nil {
		p.log.Warn("Failed to load group for greeting", zap.String("group", group), zap.Error(err))
		return
	}
	template := s.Message
	if template == "" {
		template = f.fallback
	}
	media := p.media(ctx, s)

	self := message.Number(p.gw.Self())
	rt := p.config.Snapshot()
	for _, user := range users {
		if message.Number(user) == self {
			continue
		}
		out := &gateway.Outgoing{
			To:       group,
			Text:     p.render(template, user, info, rt),
			Mentions: []string{user},
			Media:    media,
		}
		if _, err := p.gw.Send(ctx, out); err != nil {
			p.log.Warn("Failed to send greeting",
				zap.String("kind", f.name),
				zap.String("group", group),
				zap.String("user", user),
				zap.Error(err))
		}
	}
}

// media fetches the configured attachment. Failures fall back to text.
func (p *Plugin) media(ctx context.Context, s Setting) *gateway.Media {
	var (
		url      string
		kind     message.Kind
		fallback string
	)
	switch s.Type {
	case TypeImage:
		url, kind, fallback = s.ImageURL, message.KindImage, "image/jpeg"
	case TypeVideo:
		url, kind, fallback = s.VideoURL, message.KindVideo, "video/mp4"
	default:
		return nil
	}
	if url == "" {
		return nil
	}
	data, mimetype, err := pluginkit.Fetch(ctx, p.Client, url)
	if err != nil {
		p.log.Warn("Failed to fetch greeting media", zap.String("url", url), zap.Error(err))
		return nil
	}
	if mimetype == "" || strings.HasPrefix(mimetype, "application/octet-stream") {
		mimetype = fallback
	}
	return &gateway.Media{Kind: kind, Data: data, Mimetype: mimetype}
}

// render expands placeholders for one member. The member is addressed by
// mention since join events carry no display name.
func (p *Plugin) render(template, user string, info *gateway.GroupInfo, rt config.Runtime) string {
	number := message.Number(user)
	groupName := info.Name
	if groupName == "" {
		groupName = "Group"
	}
	desc := info.Topic
	if desc == "" {
		desc = "No description"
	}
	bot := rt.BotName
	if bot == "" {
		bot = "Bot"
	}
	owner := rt.OwnerName
	if owner == "" {
		owner = "Owner"
	}
	now := p.now()
	count := strconv.Itoa(len(info.Participants))
	return pluginkit.Expand(template, map[string]string{
		"user":    "@" + number,
		"name":    "@" + number,
		"number":  number,
		"group":   groupName,
		"desc":    desc,
		"count":   count,
		"members": count,
		"time":    now.Format(pluginkit.TimeLayout),
		"date":    now.Format("2006-01-02"),
		"bot":     bot,
		"owner":   owner,
	})
}
