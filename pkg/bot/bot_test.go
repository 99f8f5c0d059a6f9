package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"axiombot/pkg/antidelete"
	"axiombot/pkg/commands"
	"axiombot/pkg/config"
	"axiombot/pkg/dispatch"
	"axiombot/pkg/gateway/gatewaytest"
	"axiombot/pkg/logger"
	"axiombot/pkg/state"
)

const selfJID = "2340000000000@s.whatsapp.net"

type listener struct {
	mu     sync.Mutex
	joined []string
	left   []string
}

func (l *listener) Joined(ctx context.Context, group string, users []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.joined = append(l.joined, users...)
}

func (l *listener) Left(ctx context.Context, group string, users []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.left = append(l.left, users...)
}

type harness struct {
	bot        *Bot
	gw         *gatewaytest.Recorder
	registry   *commands.Registry
	dispatcher *dispatch.Dispatcher
	cache      *antidelete.Cache
	store      *state.Store
	config     *config.Config
	listener   *listener
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: logger.LevelError})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	h := &harness{
		gw:       gatewaytest.New(selfJID),
		registry: commands.NewRegistry(),
		cache:    antidelete.NewCache(antidelete.DefaultTTL, nil),
		store:    state.NewStore(log, state.NewMemoryBackend()),
		config:   config.DefaultConfig(),
		listener: &listener{},
	}
	h.config.Features.Logs = false
	h.dispatcher = dispatch.New(log, h.registry, h.gw, h.store, h.config, h.cache)
	recoverer := antidelete.NewRecoverer(log, h.cache, h.gw, h.store, h.config)
	h.bot = New(log, h.gw, h.dispatcher, recoverer, h.store, h.config, []ParticipantListener{h.listener})
	h.bot.NoticeDelay = time.Millisecond
	t.Cleanup(h.bot.Stop)
	return h
}

func (h *harness) wait() {
	h.bot.Wait()
	h.dispatcher.Wait()
}

func incoming(id string, content *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:   types.NewJID("2348012345678", types.DefaultUserServer),
				Sender: types.NewJID("2348012345678", types.DefaultUserServer),
			},
			ID:        id,
			Timestamp: time.Now(),
		},
		Message: content,
	}
}

func TestMessageReachesDispatcher(t *testing.T) {
	h := newHarness(t)
	var match atomic.Value
	h.registry.MustRegister(&commands.Definition{Trigger: "afk ?(.*)", Handler: func(ctx context.Context, req *commands.Request) error {
		match.Store(req.Match)
		return nil
	}})

	h.bot.HandleEvent(incoming("M1", &waE2E.Message{Conversation: proto.String(".afk in a meeting")}))
	h.wait()

	if got, _ := match.Load().(string); got != "in a meeting" {
		t.Fatalf("unexpected match %q", got)
	}
	if _, ok := h.cache.Lookup("M1"); !ok {
		t.Fatalf("routed message should be recorded for recovery")
	}
}

func TestEditsAreIgnored(t *testing.T) {
	h := newHarness(t)
	var ran atomic.Int32
	h.registry.MustRegister(&commands.Definition{On: commands.OnText, Handler: func(ctx context.Context, req *commands.Request) error {
		ran.Add(1)
		return nil
	}})

	evt := incoming("M2", &waE2E.Message{Conversation: proto.String("edited")})
	evt.IsEdit = true
	h.bot.HandleEvent(evt)
	h.wait()

	if ran.Load() != 0 {
		t.Fatalf("edits must not be dispatched")
	}
}

func TestRevokeRunsRecovery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := "2349000000000"
	h.config.SetSudo([]string{owner})
	err := state.Put(ctx, h.store, state.SectionAntiDelete, map[string]state.AntiDeleteSetting{
		owner: {Enabled: true, Mode: state.AntiDeleteDM},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	h.bot.HandleEvent(incoming("ORIG", &waE2E.Message{Conversation: proto.String("gone soon")}))
	h.wait()

	revoke := incoming("REV", &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
		Type: waE2E.ProtocolMessage_REVOKE.Enum(),
		Key:  &waCommon.MessageKey{ID: proto.String("ORIG")},
	}})
	h.bot.HandleEvent(revoke)
	h.wait()

	sent := h.gw.Sent()
	if len(sent) != 1 || sent[0].Text != "gone soon" || sent[0].To != owner+"@s.whatsapp.net" {
		t.Fatalf("unexpected recovery sends: %+v", sent)
	}
}

func TestParticipantsNotifyListeners(t *testing.T) {
	h := newHarness(t)
	group := types.NewJID("120363000000000001", types.GroupServer)
	alice := types.NewJID("2348000000001", types.DefaultUserServer)
	bob := types.NewJID("2348000000002", types.DefaultUserServer)

	h.bot.HandleEvent(&events.GroupInfo{JID: group, Join: []types.JID{alice}, Leave: []types.JID{bob}})
	h.bot.HandleEvent(&events.GroupInfo{JID: group})
	h.wait()

	if len(h.listener.joined) != 1 || h.listener.joined[0] != alice.String() {
		t.Fatalf("unexpected joins %v", h.listener.joined)
	}
	if len(h.listener.left) != 1 || h.listener.left[0] != bob.String() {
		t.Fatalf("unexpected leaves %v", h.listener.left)
	}
}

func TestCallRejection(t *testing.T) {
	caller := types.NewJID("2348012345678", types.DefaultUserServer)
	offer := &events.CallOffer{BasicCallMeta: types.BasicCallMeta{From: caller, CallID: "CALL1"}}

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t)
		h.bot.HandleEvent(offer)
		h.wait()
		if len(h.gw.Calls("reject_call")) != 0 || len(h.gw.Sent()) != 0 {
			t.Fatalf("calls must be left alone when rejection is off")
		}
	})

	t.Run("enabled", func(t *testing.T) {
		h := newHarness(t)
		h.config.Features.CallReject = true
		h.bot.HandleEvent(offer)
		h.wait()

		rejected := h.gw.Calls("reject_call")
		if len(rejected) != 1 {
			t.Fatalf("expected one rejection, got %+v", rejected)
		}
		sent := h.gw.Sent()
		if len(sent) != 1 || sent[0].Text != CallRejectText || sent[0].To != "2348012345678@s.whatsapp.net" {
			t.Fatalf("unexpected caller notice %+v", sent)
		}
	})
}

func TestConnectedNoticeSentOnce(t *testing.T) {
	h := newHarness(t)
	h.config.Bot.Name = "axiom"

	h.bot.HandleEvent(&events.Connected{})
	h.bot.HandleEvent(&events.Connected{})
	h.wait()

	sent := h.gw.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected a single notice, got %d", len(sent))
	}
	if sent[0].To != selfJID || sent[0].Text != "axiom connected" {
		t.Fatalf("unexpected notice %+v", sent[0])
	}
}

func TestConnectedNoticeDisabled(t *testing.T) {
	h := newHarness(t)
	h.config.WhatsApp.ConnectNotice = false

	h.bot.HandleEvent(&events.Connected{})
	h.wait()

	if len(h.gw.Sent()) != 0 {
		t.Fatalf("notice must not be sent when disabled")
	}
}

func TestConfigChangedTogglesPresence(t *testing.T) {
	h := newHarness(t)

	next := config.DefaultConfig()
	next.Features.AlwaysOnline = true
	h.config.Apply(next)
	if err := h.bot.ConfigChanged(h.config); err != nil {
		t.Fatalf("config changed: %v", err)
	}
	if err := h.bot.ConfigChanged(h.config); err != nil {
		t.Fatalf("config changed: %v", err)
	}

	calls := h.gw.Calls("presence")
	if len(calls) != 1 || !calls[0].Value {
		t.Fatalf("expected one presence update, got %+v", calls)
	}
}
