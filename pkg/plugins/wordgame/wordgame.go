// Package wordgame runs word-chain elimination games in group chats.
// Players take turns answering with a word that starts with the last
// letter of the previous one; the minimum length grows every full round.
package wordgame

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"axiombot/pkg/commands"
	"axiombot/pkg/cron"
	"axiombot/pkg/gateway"
	"axiombot/pkg/logger"
	"axiombot/pkg/plugins/pluginkit"
	"axiombot/pkg/state"
)

const (
	LobbyWait   = 60 * time.Second
	TurnLimit   = 30 * time.Second
	IdleTimeout = 10 * time.Minute

	StartLetters = 3
)

// Game states.
const (
	StatusWaiting = "waiting"
	StatusActive  = "active"
)

type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Eliminated bool   `json:"eliminated"`
}

// Game is one chat's entry in the wordgame section.
type Game struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Creator     string   `json:"creator"`
	CreatorName string   `json:"creatorName"`
	Players     []Player `json:"players"`
	Turn        int      `json:"turn"` // index among active players
	MinLetters  int      `json:"minLetters"`
	Letter      string   `json:"letter,omitempty"`
	UsedWords   []string `json:"usedWords"`

	WaitStart    int64 `json:"waitStart"` // unix millis
	LastActivity int64 `json:"lastActivity"`
	TurnStart    int64 `json:"turnStart"`
	TurnSeq      int   `json:"turnSeq"`
}

func (g *Game) active() []int {
	var idx []int
	for i, p := range g.Players {
		if !p.Eliminated {
			idx = append(idx, i)
		}
	}
	return idx
}

func (g *Game) current() *Player {
	a := g.active()
	if len(a) == 0 {
		return nil
	}
	return &g.Players[a[g.Turn%len(a)]]
}

func (g *Game) has(id string) bool {
	return slices.ContainsFunc(g.Players, func(p Player) bool { return p.ID == id })
}

func names(players []Player, keep func(Player) bool) string {
	var lines []string
	for _, p := range players {
		if keep(p) {
			lines = append(lines, fmt.Sprintf("%d. %s", len(lines)+1, p.Name))
		}
	}
	return strings.Join(lines, "\n")
}

func all(Player) bool          { return true }
func alive(p Player) bool      { return !p.Eliminated }
func eliminated(p Player) bool { return p.Eliminated }

func (g *Game) letterOr() string {
	if g.Letter == "" {
		return "Starting..."
	}
	return g.Letter
}

// Plugin implements the game commands, the answer handler and the turn
// timers.
type Plugin struct {
	log   *logger.Logger
	store *state.Store
	gw    gateway.Gateway
	words *Validator

	now   func() time.Time
	after func(d time.Duration, f func())
}

func New(log *logger.Logger, store *state.Store, gw gateway.Gateway, words *Validator) *Plugin {
	return &Plugin{
		log:   log.Named("wordgame"),
		store: store,
		gw:    gw,
		words: words,
		now:   time.Now,
		after: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}
}

func (p *Plugin) Name() string { return "wordgame" }

func (p *Plugin) Commands() []*commands.Definition {
	return []*commands.Definition{
		{Trigger: "wcg ?(.*)", Description: "Word Chain Game (wcg, wcg stop, wcg status, wcg cleanup)", Category: "game", Handler: p.wcg},
		{Trigger: "join", Description: "Join active word game", Category: "game", Handler: p.join},
		{On: commands.OnText, Handler: p.onText},
	}
}

func (p *Plugin) game(ctx context.Context, chat string) (*Game, error) {
	m, err := state.Get[map[string]Game](ctx, p.store, state.SectionWordGame)
	if err != nil {
		return nil, err
	}
	g, ok := m[chat]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (p *Plugin) secondsLeft(g *Game) int {
	left := LobbyWait - p.now().Sub(time.UnixMilli(g.WaitStart))
	return max(0, int(left/time.Second))
}

func (p *Plugin) say(ctx context.Context, chat, text string, mentions ...string) {
	if _, err := p.gw.Send(ctx, &gateway.Outgoing{To: chat, Text: text, Mentions: mentions}); err != nil {
		p.log.Warn("Failed to send game message", zap.String("chat", chat), zap.Error(err))
	}
}

func (p *Plugin) wcg(ctx context.Context, req *commands.Request) error {
	switch strings.ToLower(strings.TrimSpace(req.Match)) {
	case "":
		return p.create(ctx, req)
	case "stop":
		return p.stop(ctx, req)
	case "status":
		return p.status(ctx, req)
	case "cleanup":
		if !req.Message.Sudo {
			return nil
		}
		n, err := p.Cleanup(ctx)
		if err != nil {
			return req.Reply(ctx, pluginkit.Failed("clean word games", err))
		}
		return req.Reply(ctx, fmt.Sprintf("*Word Game Cleanup Complete*\n\nRemoved %d inactive games", n))
	}
	pfx := req.Config.Prefix
	return req.Reply(ctx, fmt.Sprintf("*Word Chain Game*\n\n%[1]swcg - Start a game\n%[1]swcg status - Show the game\n%[1]swcg stop - End the game\n%[1]sjoin - Join the lobby", pfx))
}

func (p *Plugin) create(ctx context.Context, req *commands.Request) error {
	chat := req.Chat()
	name := req.Message.PushName
	if name == "" {
		name = "Player"
	}
	now := p.now().UnixMilli()
	var (
		existing *Game
		created  Game
	)
	err := state.Modify(ctx, p.store, state.SectionWordGame, func(m *map[string]Game) error {
		if g, ok := (*m)[chat]; ok {
			existing = &g
			return state.ErrSkipWrite
		}
		created = Game{
			ID:           uuid.NewString(),
			Status:       StatusWaiting,
			Creator:      req.Message.Sender,
			CreatorName:  name,
			Players:      []Player{{ID: req.Message.Sender, Name: name}},
			MinLetters:   StartLetters,
			UsedWords:    []string{},
			WaitStart:    now,
			LastActivity: now,
		}
		(*m)[chat] = created
		return nil
	})
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("start the game", err))
	}

	if existing != nil {
		if existing.Status == StatusActive {
			cur := existing.current()
			return req.Reply(ctx, fmt.Sprintf("*Word Chain Game Already Active*\n\nMinimum Letters: %d\nActive Players: %s\nCurrent Turn: %s\nNext Letter: %s\n\nWait for your turn or use %swcg stop to end the game",
				existing.MinLetters, strings.ReplaceAll(names(existing.Players, alive), "\n", ", "), cur.Name, existing.letterOr(), req.Config.Prefix))
		}
		return req.Reply(ctx, fmt.Sprintf("*Word Chain Game Waiting for Players*\n\nPlayers: %d/∞\nTime left: %ds\n\nType *join* to participate!\nMinimum 2 players required.",
			len(existing.Players), p.secondsLeft(existing)))
	}

	p.after(LobbyWait, func() { p.lobbyTimeout(chat, created.ID) })
	return req.Reply(ctx, fmt.Sprintf("*Word Chain Game Created*\n\n*Creator:* %s\n*Players:* 1/∞\n*Waiting Time:* 60 seconds\n\n*Game Rules:*\n"+
		"• Word chain elimination game\n"+
		"• Each player provides words starting with the last letter\n"+
		"• Word length increases progressively (3 letters, then 4, then 5, etc.)\n"+
		"• Last player standing wins\n"+
		"• Dictionary validation enabled\n"+
		"• 30 seconds per turn\n\n"+
		"*Waiting for players...*\n\nType *join* to participate!\nMinimum 2 players required.\n\n"+
		"Game will auto-start in 60 seconds if enough players join.", name))
}

// joinGame adds the sender to the lobby. quiet suppresses the reply when no
// game exists, for the bare "join" text.
func (p *Plugin) joinGame(ctx context.Context, req *commands.Request, quiet bool) error {
	chat := req.Chat()
	name := req.Message.PushName
	if name == "" {
		name = "Player"
	}
	var (
		g      Game
		found  bool
		dup    bool
		joined bool
	)
	err := state.Modify(ctx, p.store, state.SectionWordGame, func(m *map[string]Game) error {
		g, found = (*m)[chat]
		if !found || g.Status != StatusWaiting {
			return state.ErrSkipWrite
		}
		if g.has(req.Message.Sender) {
			dup = true
			return state.ErrSkipWrite
		}
		g.Players = append(g.Players, Player{ID: req.Message.Sender, Name: name})
		g.LastActivity = p.now().UnixMilli()
		(*m)[chat] = g
		joined = true
		return nil
	})
	switch {
	case err != nil:
		return req.Reply(ctx, pluginkit.Failed("join the game", err))
	case !found:
		if quiet {
			return nil
		}
		return req.Reply(ctx, "No active word game found. Start one with "+req.Config.Prefix+"wcg")
	case g.Status == StatusActive:
		return req.Reply(ctx, "Game already started! Wait for the next game.")
	case dup:
		return req.Reply(ctx, "You are already in the game!")
	case !joined:
		return nil
	}
	next := "Waiting for more players... (minimum 2)"
	if len(g.Players) >= 2 {
		next = "Game will start automatically when timer ends!"
	}
	return req.Reply(ctx, fmt.Sprintf("*%s joined the game!*\n\n*Current Players (%d):*\n%s\n\nTime left: %ds\n%s",
		name, len(g.Players), names(g.Players, all), p.secondsLeft(&g), next))
}

func (p *Plugin) join(ctx context.Context, req *commands.Request) error {
	return p.joinGame(ctx, req, false)
}

func (p *Plugin) stop(ctx context.Context, req *commands.Request) error {
	var found, allowed bool
	err := state.Modify(ctx, p.store, state.SectionWordGame, func(m *map[string]Game) error {
		g, ok := (*m)[req.Chat()]
		found = ok
		allowed = ok && (g.Creator == req.Message.Sender || req.Message.Sudo)
		if !allowed {
			return state.ErrSkipWrite
		}
		delete(*m, req.Chat())
		return nil
	})
	switch {
	case err != nil:
		return req.Reply(ctx, pluginkit.Failed("stop the game", err))
	case !found:
		return req.Reply(ctx, "No active game found.")
	case !allowed:
		return req.Reply(ctx, "Only the game creator can stop the game.")
	}
	return req.Reply(ctx, "*Word Chain Game stopped.*\n\nThanks for playing!")
}

func (p *Plugin) status(ctx context.Context, req *commands.Request) error {
	g, err := p.game(ctx, req.Chat())
	if err != nil {
		return err
	}
	if g == nil {
		return req.Reply(ctx, "No active game found.")
	}
	if g.Status == StatusWaiting {
		return req.Reply(ctx, fmt.Sprintf("*Word Chain Game Status*\n\nStatus: WAITING FOR PLAYERS\nPlayers: %d\nTime left: %ds\n\n*Players:*\n%s",
			len(g.Players), p.secondsLeft(g), names(g.Players, all)))
	}
	out := names(g.Players, eliminated)
	if out == "" {
		out = "None"
	}
	return req.Reply(ctx, fmt.Sprintf("*Word Chain Game Status*\n\nStatus: ACTIVE\nMinimum Letters: %d\nCurrent Turn: %s\nNext Letter: %s\n\n*Active Players:*\n%s\n\n*Eliminated Players:*\n%s",
		g.MinLetters, g.current().Name, g.letterOr(), names(g.Players, alive), out))
}

// beginTurn stamps a new turn on g.
func (p *Plugin) beginTurn(g *Game) {
	g.TurnSeq++
	g.TurnStart = p.now().UnixMilli()
	g.LastActivity = g.TurnStart
}

func (p *Plugin) armTurn(chat string, g *Game) {
	id, seq := g.ID, g.TurnSeq
	p.after(TurnLimit, func() { p.turnTimeout(chat, id, seq) })
}

func turnPrompt(g *Game) string {
	cur := g.current()
	if g.Letter == "" {
		return fmt.Sprintf("*@%s's Turn*\n\nProvide your starting word (minimum %d letters)\n\nTime limit: 30 seconds", cur.Name, g.MinLetters)
	}
	return fmt.Sprintf("*@%s's Turn*\n\nProvide a word starting with: *%s*\nMinimum %d letters\n\nTime limit: 30 seconds", cur.Name, g.Letter, g.MinLetters)
}

// lobbyTimeout starts the game, or cancels it when too few players joined.
func (p *Plugin) lobbyTimeout(chat, id string) {
	ctx := context.Background()
	var (
		g        Game
		ok       bool
		canceled bool
	)
	err := state.Modify(ctx, p.store, state.SectionWordGame, func(m *map[string]Game) error {
		g, ok = (*m)[chat]
		if !ok || g.ID != id || g.Status != StatusWaiting {
			ok = false
			return state.ErrSkipWrite
		}
		if len(g.Players) < 2 {
			canceled = true
			delete(*m, chat)
			return nil
		}
		g.Status = StatusActive
		g.Turn = 0
		g.MinLetters = StartLetters
		g.Letter = ""
		p.beginTurn(&g)
		(*m)[chat] = g
		return nil
	})
	if err != nil {
		p.log.Warn("Failed to start word game", zap.String("chat", chat), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	if canceled {
		p.say(ctx, chat, "*Word Chain Game Cancelled*\n\nNot enough players joined within 60 seconds.\nMinimum 2 players required.")
		return
	}
	cur := g.current()
	p.say(ctx, chat, fmt.Sprintf("*Word Chain Game Started!*\n\n*Players:*\n%s\n\n*@%s's Turn*\nProvide your starting word (minimum %d letters)\n\nTime limit: 30 seconds per turn",
		names(g.Players, alive), cur.Name, g.MinLetters), cur.ID)
	p.armTurn(chat, &g)
}

// turnTimeout eliminates the current player unless the turn it was armed
// for has already ended.
func (p *Plugin) turnTimeout(chat, id string, seq int) {
	ctx := context.Background()
	var (
		g    Game
		ok   bool
		out  Player
		over bool
		grew bool
	)
	err := state.Modify(ctx, p.store, state.SectionWordGame, func(m *map[string]Game) error {
		g, ok = (*m)[chat]
		if !ok || g.ID != id || g.Status != StatusActive || g.TurnSeq != seq {
			ok = false
			return state.ErrSkipWrite
		}
		cur := g.current()
		cur.Eliminated = true
		out = *cur
		left := len(g.active())
		if left <= 1 {
			over = true
			delete(*m, chat)
			return nil
		}
		// The next player slides into the eliminated one's slot.
		if g.Turn >= left {
			g.Turn = 0
			g.MinLetters++
			grew = true
		}
		p.beginTurn(&g)
		(*m)[chat] = g
		return nil
	})
	if err != nil {
		p.log.Warn("Failed to expire word game turn", zap.String("chat", chat), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	p.say(ctx, chat, fmt.Sprintf("*Time's Up!*\n\n@%s has been eliminated for taking too long.\n\nRemaining players: %d", out.Name, len(g.active())), out.ID)
	if over {
		p.finish(ctx, chat, &g)
		return
	}
	p.announceTurn(ctx, chat, &g, grew)
}

func (p *Plugin) announceTurn(ctx context.Context, chat string, g *Game, grew bool) {
	if grew {
		p.say(ctx, chat, fmt.Sprintf("*Letter Count Increased!*\n\nMinimum letters required: %d", g.MinLetters))
	}
	p.say(ctx, chat, turnPrompt(g), g.current().ID)
	p.armTurn(chat, g)
}

func (p *Plugin) finish(ctx context.Context, chat string, g *Game) {
	var sb strings.Builder
	sb.WriteString("*Word Chain Game Over!*\n\n")
	var mentions []string
	if a := g.active(); len(a) == 1 {
		w := g.Players[a[0]]
		fmt.Fprintf(&sb, "*Winner: @%s*\n\nCongratulations! You are the last player standing!\n\nFinal Letter Count: %d", w.Name, g.MinLetters)
		mentions = append(mentions, w.ID)
	} else {
		sb.WriteString("*No Winner*\n\nAll players were eliminated.")
	}
	if out := names(g.Players, eliminated); out != "" {
		sb.WriteString("\n\n*Eliminated Players:*\n" + out)
	}
	sb.WriteString("\n\nThanks for playing Word Chain Game!")
	p.say(ctx, chat, sb.String(), mentions...)
}

func (p *Plugin) onText(ctx context.Context, req *commands.Request) error {
	body := strings.TrimSpace(req.Message.Body)
	if body == "" || (req.Config.Prefix != "" && strings.HasPrefix(body, req.Config.Prefix)) {
		return nil
	}
	if strings.EqualFold(body, "join") {
		return p.joinGame(ctx, req, true)
	}
	g, err := p.game(ctx, req.Chat())
	if err != nil || g == nil || g.Status != StatusActive {
		return err
	}
	if cur := g.current(); cur == nil || cur.ID != req.Message.Sender {
		return nil
	}
	return p.answer(ctx, req, g, strings.Fields(strings.ToUpper(body)))
}

// answer checks a turn's words outside the store lock, then commits the
// turn if it is still the same one.
func (p *Plugin) answer(ctx context.Context, req *commands.Request, g *Game, words []string) error {
	if len(words) != 1 {
		return req.Reply(ctx, fmt.Sprintf("You need to provide exactly 1 word(s). You provided %d.", len(words)))
	}
	word := words[0]
	var problem string
	switch {
	case len([]rune(word)) < g.MinLetters:
		problem = fmt.Sprintf("Invalid words (not in dictionary): %s (too short - need %d+ letters)\n", word, g.MinLetters)
	case g.Letter != "" && !strings.HasPrefix(word, g.Letter):
		problem = fmt.Sprintf("Words not starting with '%s': %s\n", g.Letter, word)
	case slices.Contains(g.UsedWords, word):
		problem = fmt.Sprintf("Already used words: %s\n", word)
	case !p.words.Valid(ctx, word):
		problem = fmt.Sprintf("Invalid words (not in dictionary): %s\n", word)
	}
	if problem != "" {
		hint := fmt.Sprintf("\nTry again! Provide your starting word (minimum %d letters)", g.MinLetters)
		if g.Letter != "" {
			hint = fmt.Sprintf("\nTry again! Provide a word starting with: *%s*\nMinimum %d letters", g.Letter, g.MinLetters)
		}
		return req.ReplyMentions(ctx, "*Invalid Answer!*\n\n"+problem+hint, []string{req.Message.Sender})
	}

	var (
		next Game
		ok   bool
		grew bool
		name string
	)
	err := state.Modify(ctx, p.store, state.SectionWordGame, func(m *map[string]Game) error {
		next, ok = (*m)[req.Chat()]
		if !ok || next.ID != g.ID || next.TurnSeq != g.TurnSeq || next.Status != StatusActive {
			ok = false
			return state.ErrSkipWrite
		}
		name = next.current().Name
		next.UsedWords = append(next.UsedWords, word)
		r := []rune(word)
		next.Letter = string(r[len(r)-1])
		next.Turn = (next.Turn + 1) % len(next.active())
		if next.Turn == 0 {
			next.MinLetters++
			grew = true
		}
		p.beginTurn(&next)
		(*m)[req.Chat()] = next
		return nil
	})
	if err != nil {
		return req.Reply(ctx, pluginkit.Failed("record the answer", err))
	}
	if !ok {
		return nil
	}
	if err := req.Reply(ctx, fmt.Sprintf("*Correct!*\n\n%s provided: %s\n\nNext letter: *%s*", name, word, next.Letter)); err != nil {
		return err
	}
	p.announceTurn(ctx, req.Chat(), &next, grew)
	return nil
}

// Cleanup removes games idle for longer than IdleTimeout.
func (p *Plugin) Cleanup(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-IdleTimeout).UnixMilli()
	removed := 0
	err := state.Modify(ctx, p.store, state.SectionWordGame, func(m *map[string]Game) error {
		for chat, g := range *m {
			if g.LastActivity < cutoff {
				delete(*m, chat)
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

// Job is the housekeeping job running Cleanup.
func (p *Plugin) Job(spec string) cron.Job {
	return cron.Job{
		Name: "wordgame-cleanup",
		Spec: spec,
		Run: func(ctx context.Context) error {
			n, err := p.Cleanup(ctx)
			if n > 0 {
				p.log.Info("Removed idle word games", zap.Int("count", n))
			}
			return err
		},
	}
}
