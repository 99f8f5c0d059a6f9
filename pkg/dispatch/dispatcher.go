// Package dispatch routes normalized messages to every matching command
// definition.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"axiombot/pkg/antidelete"
	"axiombot/pkg/commands"
	"axiombot/pkg/config"
	"axiombot/pkg/gateway"
	"axiombot/pkg/logger"
	"axiombot/pkg/message"
	"axiombot/pkg/state"
)

const (
	defaultPauseAfter     = 3 * time.Second
	defaultHandlerTimeout = 2 * time.Minute
)

// Dispatcher fans a message out to the registry. Handlers run on their own
// goroutines; one failing handler never affects another.
type Dispatcher struct {
	log      *logger.Logger
	registry *commands.Registry
	gw       gateway.Gateway
	store    *state.Store
	config   *config.Config
	cache    *antidelete.Cache

	// PauseAfter is how long typing or recording indicators stay up.
	PauseAfter time.Duration
	// HandlerTimeout bounds each handler's context.
	HandlerTimeout time.Duration

	wg sync.WaitGroup
}

// New creates a Dispatcher.
func New(
	log *logger.Logger,
	registry *commands.Registry,
	gw gateway.Gateway,
	store *state.Store,
	cfg *config.Config,
	cache *antidelete.Cache,
) *Dispatcher {
	return &Dispatcher{
		log:            log,
		registry:       registry,
		gw:             gw,
		store:          store,
		config:         cfg,
		cache:          cache,
		PauseAfter:     defaultPauseAfter,
		HandlerTimeout: defaultHandlerTimeout,
	}
}

// Dispatch runs side effects for msg and then every definition whose access
// rule and trigger accept it, in registration order. It returns once all
// handlers are started. Broadcast chats get side effects only.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *message.Message, raw *events.Message) {
	rt := d.config.Snapshot()

	d.sideEffects(ctx, msg, rt)
	d.cache.Record(msg)

	if gateway.IsBroadcastJID(msg.Chat) {
		return
	}

	if rt.Logs && msg.HasBody {
		d.log.Info("Message",
			zap.String("chat", msg.Chat),
			zap.String("sender", msg.Sender),
			zap.String("body", msg.Body),
			zap.Bool("sudo", msg.Sudo),
		)
	}

	for _, def := range d.registry.List() {
		if !allowed(def, msg, rt) {
			continue
		}
		match, ok := d.trigger(def, msg, rt.Prefix)
		if !ok {
			continue
		}
		d.spawn(ctx, def, d.request(msg, raw, match, rt))
	}
}

// RunCommand dispatches text as if msg's body were text, considering only
// command definitions. Passive handlers and side effects are skipped.
func (d *Dispatcher) RunCommand(ctx context.Context, msg *message.Message, raw *events.Message, text string) int {
	rt := d.config.Snapshot()
	synthetic := *msg
	synthetic.Body, synthetic.HasBody = text, text != ""

	started := 0
	for _, def := range d.registry.List() {
		if def.Kind() != commands.OnCommand || !allowed(def, &synthetic, rt) {
			continue
		}
		match, ok := d.registry.Match(def, rt.Prefix, synthetic.Body)
		if !ok {
			continue
		}
		d.spawn(ctx, def, d.request(&synthetic, raw, match, rt))
		started++
	}
	return started
}

// Wait blocks until every started handler and delayed side effect has
// finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// allowed applies owner restriction and work mode. Private mode gates
// commands only; passive handlers still see every message.
func allowed(def *commands.Definition, msg *message.Message, rt config.Runtime) bool {
	if msg.Sudo {
		return true
	}
	if def.RequireOwner {
		return false
	}
	if rt.IsPrivate() && def.Kind() == commands.OnCommand {
		return false
	}
	return true
}

func (d *Dispatcher) trigger(def *commands.Definition, msg *message.Message, prefix string) (string, bool) {
	switch def.Kind() {
	case commands.OnCommand:
		if !msg.HasBody {
			return "", false
		}
		return d.registry.Match(def, prefix, msg.Body)
	case commands.OnText:
		return msg.Body, msg.HasBody
	case commands.OnImage:
		return msg.Body, msg.Kind == message.KindImage
	case commands.OnVideo:
		return msg.Body, msg.Kind == message.KindVideo
	case commands.OnSticker:
		return msg.Body, msg.Kind == message.KindSticker
	}
	return "", false
}

func (d *Dispatcher) request(msg *message.Message, raw *events.Message, match string, rt config.Runtime) *commands.Request {
	return &commands.Request{
		Message:  msg,
		Match:    match,
		Raw:      raw,
		Gateway:  d.gw,
		Registry: d.registry,
		Store:    d.store,
		Config:   rt,
		Log:      d.log,
	}
}

func (d *Dispatcher) spawn(ctx context.Context, def *commands.Definition, req *commands.Request) {
	trace := uuid.NewString()
	log := d.log.WithFields(
		zap.String("trigger", def.Trigger),
		zap.String("on", string(def.Kind())),
		zap.String("message_id", req.Message.ID),
		zap.String("trace_id", trace),
	)
	req.Log = log

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("Handler panicked",
					zap.String("panic", fmt.Sprint(r)),
					zap.ByteString("stack", debug.Stack()),
				)
			}
		}()

		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.HandlerTimeout)
		defer cancel()

		if err := def.Handler(hctx, req); err != nil {
			log.Warn("Handler failed", zap.Error(err))
		}
	}()
}

// sideEffects updates presence and status receipts before any handler runs.
func (d *Dispatcher) sideEffects(ctx context.Context, msg *message.Message, rt config.Runtime) {
	features, err := d.store.Features(ctx)
	if err != nil {
		d.log.Warn("Failed to read bot features", zap.Error(err))
	}

	if msg.Chat == gateway.StatusBroadcast && (features.AutoViewStatus || rt.AutoViewStatus) {
		if err := d.gw.MarkRead(ctx, msg.Chat, msg.Sender, msg.ID); err != nil {
			d.log.Debug("Failed to view status", zap.Error(err))
		}
	}

	if gateway.IsBroadcastJID(msg.Chat) {
		return
	}

	switch {
	case features.AlwaysOnline || rt.AlwaysOnline:
		if err := d.gw.SetPresence(ctx, true); err != nil {
			d.log.Debug("Failed to set presence", zap.Error(err))
		}
	case features.AutoType:
		d.flashPresence(ctx, msg.Chat, gateway.PresenceComposing)
	case features.AutoRecord:
		d.flashPresence(ctx, msg.Chat, gateway.PresenceRecording)
	}
}

func (d *Dispatcher) flashPresence(ctx context.Context, chat string, presence gateway.ChatPresence) {
	if err := d.gw.SetChatPresence(ctx, chat, presence); err != nil {
		d.log.Debug("Failed to set chat presence", zap.Error(err))
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		timer := time.NewTimer(d.PauseAfter)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		if err := d.gw.SetChatPresence(context.WithoutCancel(ctx), chat, gateway.PresencePaused); err != nil {
			d.log.Debug("Failed to pause chat presence", zap.Error(err))
		}
	}()
}
