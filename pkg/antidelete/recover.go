package antidelete

import (
	"context"
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"axiombot/pkg/config"
	"axiombot/pkg/gateway"
	"axiombot/pkg/logger"
	"axiombot/pkg/message"
	"axiombot/pkg/state"
)

const (
	restoredNote   = "\n\n_🔄 Restored by Anti-Delete_"
	stickerNote    = "_🔄 Sticker restored by Anti-Delete_"
	mediaFallback  = "Media message"
	mediaLostTitle = "_📎 Media content could not be restored_\n\n"
	mediaLostNote  = "\n_Media files expire quickly after deletion and cannot be recovered._"
)

// Recoverer re-sends deleted messages according to the owners' settings.
type Recoverer struct {
	log    *logger.Logger
	cache  *Cache
	gw     gateway.Gateway
	store  *state.Store
	config *config.Config
}

// NewRecoverer creates a Recoverer.
func NewRecoverer(log *logger.Logger, cache *Cache, gw gateway.Gateway, store *state.Store, cfg *config.Config) *Recoverer {
	return &Recoverer{log: log, cache: cache, gw: gw, store: store, config: cfg}
}

// activeOwner returns the first sudo number with anti-delete enabled.
func (r *Recoverer) activeOwner(ctx context.Context) (string, state.AntiDeleteSetting, bool) {
	settings, err := r.store.AntiDelete(ctx)
	if err != nil {
		r.log.Warn("Failed to read anti-delete settings", zap.Error(err))
		return "", state.AntiDeleteSetting{}, false
	}
	for _, number := range r.store.Sudoers(ctx, r.config.Snapshot().Sudo) {
		if s, ok := settings[number]; ok && s.Enabled {
			return number, s, true
		}
	}
	return "", state.AntiDeleteSetting{}, false
}

// HandleRevoke is called when message id was deleted for everyone. Unknown
// or expired ids are ignored.
func (r *Recoverer) HandleRevoke(ctx context.Context, id string) error {
	entry, ok := r.cache.Lookup(id)
	if !ok {
		r.log.Debug("No recorded message for deleted id", zap.String("id", id))
		return nil
	}
	defer r.cache.Forget(id)

	msg := entry.Message
	if msg.Chat == gateway.StatusBroadcast {
		r.log.Info("Detected status update deletion", zap.String("sender", msg.Sender))
	}

	owner, setting, ok := r.activeOwner(ctx)
	if !ok {
		return nil
	}

	target := gateway.UserJID(owner)
	switch setting.Mode {
	case state.AntiDeleteRestore:
		target = msg.Chat
	case state.AntiDeleteJID:
		target = setting.TargetJID
	}
	if target == "" {
		r.log.Warn("Anti-delete has no target", zap.String("mode", setting.Mode))
		return nil
	}

	text := msg.Body
	if text == "" {
		text = message.Describe(msg.Content).Caption
	}
	shown := text
	if shown == "" {
		shown = mediaFallback
	}

	// The forwarded notice quotes the author so the recipient sees who
	// deleted what.
	notice := &gateway.Outgoing{
		To:   target,
		Text: shown,
		Quote: &message.Message{
			ID:      msg.ID,
			Sender:  msg.Sender,
			Content: &waE2E.Message{Conversation: proto.String("+" + message.Number(msg.Sender) + "\n" + shown)},
		},
	}
	if _, err := r.gw.Send(ctx, notice); err != nil {
		return fmt.Errorf("sending deleted message notice: %w", err)
	}

	if msg.Kind == message.KindConversation || msg.Kind == message.KindExtendedText {
		return nil
	}
	return r.restoreMedia(ctx, target, msg, text)
}

func (r *Recoverer) restoreMedia(ctx context.Context, target string, msg *message.Message, caption string) error {
	data, err := msg.Download(ctx)
	if err != nil {
		r.log.Info("Deleted media unavailable, sending details", zap.String("id", msg.ID), zap.Error(err))
		_, err = r.gw.Send(ctx, &gateway.Outgoing{To: target, Text: mediaLostInfo(msg)})
		return err
	}

	info := message.Describe(msg.Content)
	media := &gateway.Media{Kind: msg.Kind, Data: data, Mimetype: info.Mimetype, FileName: info.FileName, PTT: info.PTT}
	out := &gateway.Outgoing{To: target, Media: media}
	var followUp string

	switch msg.Kind {
	case message.KindImage, message.KindVideo:
		out.Text = caption + restoredNote
	case message.KindDocument:
		if media.FileName == "" {
			media.FileName = "document"
		}
		out.Text = caption + restoredNote
	case message.KindAudio:
		if media.Mimetype == "" {
			media.Mimetype = "audio/ogg; codecs=opus"
		}
		what := "Audio"
		if info.PTT {
			what = "Voice note"
		}
		followUp = "_🔄 " + what + " restored by Anti-Delete_"
	case message.KindSticker:
		followUp = stickerNote
	default:
		return r.sendRestoreFailure(ctx, target, msg.Kind)
	}

	if _, err := r.gw.Send(ctx, out); err != nil {
		r.log.Warn("Failed to re-send deleted media", zap.String("id", msg.ID), zap.Error(err))
		return r.sendRestoreFailure(ctx, target, msg.Kind)
	}
	if followUp != "" {
		_, err := r.gw.Send(ctx, &gateway.Outgoing{To: target, Text: followUp})
		return err
	}
	return nil
}

func (r *Recoverer) sendRestoreFailure(ctx context.Context, target string, kind message.Kind) error {
	text := fmt.Sprintf("_❌ Could not restore media content_\n_Media Type: %s_\n_This media may have expired or been corrupted_", kind)
	_, err := r.gw.Send(ctx, &gateway.Outgoing{To: target, Text: text})
	return err
}

func mediaLostInfo(msg *message.Message) string {
	info := message.Describe(msg.Content)

	var b strings.Builder
	b.WriteString(mediaLostTitle)
	fmt.Fprintf(&b, "*Media Type:* %s\n", strings.Replace(string(msg.Kind), "Message", "", 1))
	if info.Mimetype != "" {
		fmt.Fprintf(&b, "*Format:* %s\n", info.Mimetype)
	}
	if info.FileName != "" {
		fmt.Fprintf(&b, "*File Name:* %s\n", info.FileName)
	}
	if info.Size > 0 {
		fmt.Fprintf(&b, "*Size:* %.2f MB\n", float64(info.Size)/1024/1024)
	}
	if info.Seconds > 0 {
		fmt.Fprintf(&b, "*Duration:* %ds\n", info.Seconds)
	}
	if info.Width > 0 && info.Height > 0 {
		fmt.Fprintf(&b, "*Dimensions:* %dx%d\n", info.Width, info.Height)
	}
	b.WriteString(mediaLostNote)
	return b.String()
}
