// Package bot routes gateway events to the dispatcher, the anti-delete
// recoverer and participant listeners.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"axiombot/pkg/antidelete"
	"axiombot/pkg/config"
	"axiombot/pkg/dispatch"
	"axiombot/pkg/gateway"
	"axiombot/pkg/logger"
	"axiombot/pkg/message"
	"axiombot/pkg/state"
)

// CallRejectText is sent to callers when call rejection is on.
const CallRejectText = "_NUMBER UNDER ARTIFICIAL INTELLIGENCE, NO 📞_"

const defaultNoticeDelay = 5 * time.Second

// ParticipantListener reacts to members joining or leaving a group.
type ParticipantListener interface {
	Joined(ctx context.Context, group string, users []string)
	Left(ctx context.Context, group string, users []string)
}

// Bot is the event router.
type Bot struct {
	log        *logger.Logger
	gw         gateway.Gateway
	dispatcher *dispatch.Dispatcher
	recoverer  *antidelete.Recoverer
	store      *state.Store
	config     *config.Config
	listeners  []ParticipantListener

	// NoticeDelay is the wait between connecting and the connected notice.
	NoticeDelay time.Duration

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	noticeOnce sync.Once
	online     atomic.Bool
}

// New creates a Bot. Events are handled once HandleEvent is registered
// with the client.
func New(
	log *logger.Logger,
	gw gateway.Gateway,
	dispatcher *dispatch.Dispatcher,
	recoverer *antidelete.Recoverer,
	store *state.Store,
	cfg *config.Config,
	listeners []ParticipantListener,
) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		log:         log.Named("bot"),
		gw:          gw,
		dispatcher:  dispatcher,
		recoverer:   recoverer,
		store:       store,
		config:      cfg,
		listeners:   listeners,
		NoticeDelay: defaultNoticeDelay,
		ctx:         ctx,
		cancel:      cancel,
	}
	b.online.Store(cfg.Snapshot().AlwaysOnline)
	return b
}

// HandleEvent is the whatsmeow event callback. Work is moved off the
// client's event goroutine.
func (b *Bot) HandleEvent(evt any) {
	switch e := evt.(type) {
	case *events.Message:
		b.goSafe("message", func(ctx context.Context) { b.handleMessage(ctx, e) })
	case *events.GroupInfo:
		if len(e.Join) == 0 && len(e.Leave) == 0 {
			return
		}
		b.goSafe("participants", func(ctx context.Context) { b.handleParticipants(ctx, e) })
	case *events.CallOffer:
		b.goSafe("call", func(ctx context.Context) { b.handleCall(ctx, e.From.String(), e.CallID) })
	case *events.Connected:
		b.goSafe("connected", b.handleConnected)
	}
}

// Stop cancels background work and waits for it.
func (b *Bot) Stop() {
	b.cancel()
	b.wg.Wait()
}

// Wait blocks until routed events have been handed off.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) goSafe(name string, fn func(ctx context.Context)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("Event handler panicked", zap.String("event", name), zap.Any("panic", r))
			}
		}()
		fn(b.ctx)
	}()
}

func (b *Bot) handleMessage(ctx context.Context, evt *events.Message) {
	if id, ok := message.RevokedID(evt); ok {
		if err := b.recoverer.HandleRevoke(ctx, id); err != nil {
			b.log.Warn("Failed to recover deleted message", zap.String("id", id), zap.Error(err))
		}
		return
	}
	if evt.IsEdit {
		return
	}

	rt := b.config.Snapshot()
	msg, err := message.Normalize(evt, message.Options{
		Sudo:       b.store.Sudoers(ctx, rt.Sudo),
		Prefix:     rt.Prefix,
		Downloader: b.gw,
		LIDs:       b.gw,
	})
	if err != nil {
		if !errors.Is(err, message.ErrUnsupported) {
			b.log.Warn("Failed to normalize message", zap.Error(err))
		}
		return
	}
	b.dispatcher.Dispatch(ctx, msg, evt)
}

func (b *Bot) handleParticipants(ctx context.Context, evt *events.GroupInfo) {
	group := evt.JID.String()
	b.gw.InvalidateGroup(group)

	joined := jids(evt.Join)
	left := jids(evt.Leave)
	for _, l := range b.listeners {
		if len(joined) > 0 {
			l.Joined(ctx, group, joined)
		}
		if len(left) > 0 {
			l.Left(ctx, group, left)
		}
	}
}

func (b *Bot) handleCall(ctx context.Context, from, callID string) {
	if !b.config.Snapshot().CallReject {
		return
	}
	if err := b.gw.RejectCall(ctx, from, callID); err != nil {
		b.log.Warn("Failed to reject call", zap.String("from", from), zap.Error(err))
		return
	}
	if _, err := b.gw.Send(ctx, &gateway.Outgoing{To: gateway.UserJID(message.Number(from)), Text: CallRejectText}); err != nil {
		b.log.Warn("Failed to notify caller", zap.Error(err))
	}
}

func (b *Bot) handleConnected(ctx context.Context) {
	if !b.config.WhatsApp.ConnectNotice {
		return
	}
	b.noticeOnce.Do(func() {
		select {
		case <-time.After(b.NoticeDelay):
		case <-ctx.Done():
			return
		}
		self := b.gw.Self()
		if self == "" {
			return
		}
		text := b.config.Snapshot().BotName + " connected"
		if _, err := b.gw.Send(ctx, &gateway.Outgoing{To: self, Text: text}); err != nil {
			b.log.Warn("Failed to send connected notice", zap.Error(err))
		}
	})
}

// ConfigChanged follows edits to features.always_online in the config file.
func (b *Bot) ConfigChanged(cfg *config.Config) error {
	on := cfg.Snapshot().AlwaysOnline
	if b.online.Swap(on) == on {
		return nil
	}
	if err := b.gw.SetPresence(b.ctx, on); err != nil {
		return fmt.Errorf("setting presence: %w", err)
	}
	return nil
}

func jids[T interface{ String() string }](list []T) []string {
	out := make([]string, 0, len(list))
	for _, j := range list {
		out = append(out, j.String())
	}
	return out
}
