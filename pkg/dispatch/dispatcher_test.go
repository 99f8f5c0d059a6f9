package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"axiombot/pkg/antidelete"
	"axiombot/pkg/commands"
	"axiombot/pkg/config"
	"axiombot/pkg/gateway"
	"axiombot/pkg/gateway/gatewaytest"
	"axiombot/pkg/logger"
	"axiombot/pkg/message"
	"axiombot/pkg/state"
)

type harness struct {
	registry *commands.Registry
	gw       *gatewaytest.Recorder
	store    *state.Store
	config   *config.Config
	cache    *antidelete.Cache
	d        *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: logger.LevelError})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	h := &harness{
		registry: commands.NewRegistry(),
		gw:       gatewaytest.New("2340000000000@s.whatsapp.net"),
		store:    state.NewStore(log, state.NewMemoryBackend()),
		config:   config.DefaultConfig(),
		cache:    antidelete.NewCache(antidelete.DefaultTTL, nil),
	}
	h.config.Features.Logs = false
	h.d = New(log, h.registry, h.gw, h.store, h.config, h.cache)
	h.d.PauseAfter = time.Millisecond
	return h
}

func textMessage(body string, sudo bool) *message.Message {
	return &message.Message{
		ID:      "MSG1",
		Chat:    "120363000000000001@g.us",
		Sender:  "2348012345678@s.whatsapp.net",
		IsGroup: true,
		Sudo:    sudo,
		Kind:    message.KindConversation,
		Body:    body,
		HasBody: true,
	}
}

func TestFailingHandlerDoesNotStopOthers(t *testing.T) {
	h := newHarness(t)
	var ran atomic.Int32

	h.registry.MustRegister(
		&commands.Definition{Trigger: "ping", Handler: func(ctx context.Context, req *commands.Request) error {
			ran.Add(1)
			return nil
		}},
		&commands.Definition{Trigger: "ping", Handler: func(ctx context.Context, req *commands.Request) error {
			panic("boom")
		}},
		&commands.Definition{Trigger: "ping", Handler: func(ctx context.Context, req *commands.Request) error {
			ran.Add(1)
			return errors.New("handler error after work")
		}},
	)

	h.d.Dispatch(context.Background(), textMessage(".ping", false), nil)
	h.d.Wait()

	if got := ran.Load(); got != 2 {
		t.Fatalf("expected the two healthy handlers to run, got %d", got)
	}
}

func TestWorkModeGating(t *testing.T) {
	cases := []struct {
		name   string
		mode   config.WorkMode
		sudo   bool
		expect int32
	}{
		{"private stranger", config.WorkPrivate, false, 0},
		{"private sudo", config.WorkPrivate, true, 1},
		{"public stranger", config.WorkPublic, false, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.config.Bot.WorkMode = tc.mode
			var ran atomic.Int32
			h.registry.MustRegister(&commands.Definition{Trigger: "menu", Handler: func(ctx context.Context, req *commands.Request) error {
				ran.Add(1)
				return nil
			}})

			h.d.Dispatch(context.Background(), textMessage(".menu", tc.sudo), nil)
			h.d.Wait()

			if got := ran.Load(); got != tc.expect {
				t.Fatalf("expected %d invocations, got %d", tc.expect, got)
			}
		})
	}
}

func TestOwnerOnlyNeedsSudo(t *testing.T) {
	h := newHarness(t)
	var ran atomic.Int32
	h.registry.MustRegister(&commands.Definition{Trigger: "setsudo", RequireOwner: true, Handler: func(ctx context.Context, req *commands.Request) error {
		ran.Add(1)
		return nil
	}})

	h.d.Dispatch(context.Background(), textMessage(".setsudo", false), nil)
	h.d.Dispatch(context.Background(), textMessage(".setsudo", true), nil)
	h.d.Wait()

	if got := ran.Load(); got != 1 {
		t.Fatalf("expected only the sudo message to run, got %d", got)
	}
}

func TestPrivateModeKeepsPassiveHandlers(t *testing.T) {
	h := newHarness(t)
	h.config.Bot.WorkMode = config.WorkPrivate
	var ran atomic.Int32
	h.registry.MustRegister(&commands.Definition{On: commands.OnText, Handler: func(ctx context.Context, req *commands.Request) error {
		ran.Add(1)
		return nil
	}})

	h.d.Dispatch(context.Background(), textMessage("hello", false), nil)
	h.d.Wait()

	if ran.Load() != 1 {
		t.Fatalf("text handlers must still see strangers in private mode")
	}
}

func TestMatchArgumentAndTextBody(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	got := map[string]string{}

	h.registry.MustRegister(
		&commands.Definition{Trigger: "afk ?(.*)", Handler: func(ctx context.Context, req *commands.Request) error {
			mu.Lock()
			defer mu.Unlock()
			got["command"] = req.Match
			return nil
		}},
		&commands.Definition{On: commands.OnText, Handler: func(ctx context.Context, req *commands.Request) error {
			mu.Lock()
			defer mu.Unlock()
			got["text"] = req.Match
			return nil
		}},
		&commands.Definition{On: commands.OnImage, Handler: func(ctx context.Context, req *commands.Request) error {
			mu.Lock()
			defer mu.Unlock()
			got["image"] = req.Match
			return nil
		}},
	)

	h.d.Dispatch(context.Background(), textMessage(".afk in a meeting", false), nil)
	h.d.Wait()

	if got["command"] != "in a meeting" {
		t.Fatalf("unexpected command match %q", got["command"])
	}
	if got["text"] != ".afk in a meeting" {
		t.Fatalf("text handlers receive the full body, got %q", got["text"])
	}
	if _, ok := got["image"]; ok {
		t.Fatalf("image handler fired for a text message")
	}
}

func TestKindHandlersFireWithoutBody(t *testing.T) {
	h := newHarness(t)
	var ran atomic.Int32
	h.registry.MustRegister(&commands.Definition{On: commands.OnSticker, Handler: func(ctx context.Context, req *commands.Request) error {
		ran.Add(1)
		return nil
	}})

	msg := &message.Message{ID: "S1", Chat: "1@s.whatsapp.net", Sender: "1@s.whatsapp.net", Kind: message.KindSticker}
	h.d.Dispatch(context.Background(), msg, nil)
	h.d.Wait()

	if ran.Load() != 1 {
		t.Fatalf("sticker handler should fire")
	}
}

func TestDispatchRecordsForAntiDelete(t *testing.T) {
	h := newHarness(t)
	h.d.Dispatch(context.Background(), textMessage("keep me", false), nil)
	h.d.Wait()

	if entry, ok := h.cache.Lookup("MSG1"); !ok || entry.Message.Body != "keep me" {
		t.Fatalf("message should be recorded")
	}
}

func TestPresenceSideEffects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := state.Put(ctx, h.store, state.SectionBotFeatures, state.BotFeatures{AutoType: true}); err != nil {
		t.Fatalf("seed features: %v", err)
	}

	h.d.Dispatch(ctx, textMessage("hi", false), nil)
	h.d.Wait()

	calls := h.gw.Calls("chat_presence")
	if len(calls) != 2 {
		t.Fatalf("expected composing then paused, got %+v", calls)
	}
	if calls[0].Args[0] != string(gateway.PresenceComposing) || calls[1].Args[0] != string(gateway.PresencePaused) {
		t.Fatalf("unexpected presence order %+v", calls)
	}

	h.gw.Reset()
	status := textMessage("status update", false)
	status.Chat = gateway.StatusBroadcast
	h.d.Dispatch(ctx, status, nil)
	h.d.Wait()
	if len(h.gw.Calls("chat_presence")) != 0 {
		t.Fatalf("broadcast chats must not get presence updates")
	}
	if len(h.gw.Calls("read")) != 0 {
		t.Fatalf("status must not be viewed while the feature is off")
	}
}

func TestAutoViewStatus(t *testing.T) {
	h := newHarness(t)
	h.config.Features.AutoViewStatus = true

	status := textMessage("status update", false)
	status.Chat = gateway.StatusBroadcast
	h.d.Dispatch(context.Background(), status, nil)
	h.d.Wait()

	reads := h.gw.Calls("read")
	if len(reads) != 1 || reads[0].Chat != gateway.StatusBroadcast {
		t.Fatalf("expected a read receipt for the status, got %+v", reads)
	}
}

func TestBroadcastSkipsHandlers(t *testing.T) {
	h := newHarness(t)
	var ran atomic.Int32
	count := func(ctx context.Context, req *commands.Request) error {
		ran.Add(1)
		return nil
	}
	h.registry.MustRegister(
		&commands.Definition{Trigger: "ping", Handler: count},
		&commands.Definition{On: commands.OnText, Handler: count},
	)

	for _, body := range []string{"my status", ".ping"} {
		status := textMessage(body, true)
		status.Chat = gateway.StatusBroadcast
		h.d.Dispatch(context.Background(), status, nil)
	}
	h.d.Wait()

	if got := ran.Load(); got != 0 {
		t.Fatalf("broadcast messages must not reach handlers, %d ran", got)
	}
	if len(h.gw.Sent()) != 0 {
		t.Fatalf("nothing may be sent to a broadcast chat")
	}
	if _, ok := h.cache.Lookup("MSG1"); !ok {
		t.Fatalf("broadcast messages are still recorded")
	}
}

func TestRunCommandSkipsPassiveHandlers(t *testing.T) {
	h := newHarness(t)
	var commandsRun, textRun atomic.Int32
	h.registry.MustRegister(
		&commands.Definition{Trigger: "alive", Handler: func(ctx context.Context, req *commands.Request) error {
			commandsRun.Add(1)
			return nil
		}},
		&commands.Definition{On: commands.OnText, Handler: func(ctx context.Context, req *commands.Request) error {
			textRun.Add(1)
			return nil
		}},
	)

	sticker := &message.Message{ID: "S2", Chat: "1@s.whatsapp.net", Sender: "1@s.whatsapp.net", Kind: message.KindSticker}
	if n := h.d.RunCommand(context.Background(), sticker, nil, ".alive"); n != 1 {
		t.Fatalf("expected one command started, got %d", n)
	}
	h.d.Wait()

	if commandsRun.Load() != 1 || textRun.Load() != 0 {
		t.Fatalf("unexpected runs: commands=%d text=%d", commandsRun.Load(), textRun.Load())
	}
}
