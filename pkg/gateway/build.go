package gateway

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"

	"axiombot/pkg/message"
)

func contextInfoFor(out *Outgoing) *waE2E.ContextInfo {
	if out.Quote == nil && len(out.Mentions) == 0 {
		return nil
	}
	info := &waE2E.ContextInfo{}
	if len(out.Mentions) > 0 {
		info.MentionedJID = out.Mentions
	}
	if q := out.Quote; q != nil {
		info.StanzaID = proto.String(q.ID)
		info.Participant = proto.String(q.Sender)
		info.QuotedMessage = q.Content
	}
	return info
}

func buildText(out *Outgoing) *waE2E.Message {
	ctxInfo := contextInfoFor(out)
	if ctxInfo == nil {
		return &waE2E.Message{Conversation: proto.String(out.Text)}
	}
	return &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
		Text:        proto.String(out.Text),
		ContextInfo: ctxInfo,
	}}
}

func mediaType(kind message.Kind) (whatsmeow.MediaType, error) {
	switch kind {
	case message.KindImage, message.KindSticker:
		return whatsmeow.MediaImage, nil
	case message.KindVideo:
		return whatsmeow.MediaVideo, nil
	case message.KindAudio:
		return whatsmeow.MediaAudio, nil
	case message.KindDocument:
		return whatsmeow.MediaDocument, nil
	}
	return "", fmt.Errorf("cannot upload %s", kind)
}

// DefaultMimetype is used when an outgoing attachment names none.
func DefaultMimetype(kind message.Kind, ptt bool) string {
	switch kind {
	case message.KindImage:
		return "image/jpeg"
	case message.KindVideo:
		return "video/mp4"
	case message.KindAudio:
		if ptt {
			return "audio/ogg; codecs=opus"
		}
		return "audio/mpeg"
	case message.KindSticker:
		return "image/webp"
	}
	return "application/octet-stream"
}

func (c *Client) buildMedia(ctx context.Context, out *Outgoing) (*waE2E.Message, error) {
	m := out.Media
	mt, err := mediaType(m.Kind)
	if err != nil {
		return nil, err
	}
	up, err := c.wa.Upload(ctx, m.Data, mt)
	if err != nil {
		return nil, fmt.Errorf("uploading %s: %w", m.Kind, err)
	}

	mimetype := m.Mimetype
	if mimetype == "" {
		mimetype = DefaultMimetype(m.Kind, m.PTT)
	}
	ctxInfo := contextInfoFor(out)
	var caption *string
	if out.Text != "" {
		caption = proto.String(out.Text)
	}

	switch m.Kind {
	case message.KindImage:
		return &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
			Caption:       caption,
			Mimetype:      proto.String(mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			ContextInfo:   ctxInfo,
		}}, nil
	case message.KindVideo:
		return &waE2E.Message{VideoMessage: &waE2E.VideoMessage{
			Caption:       caption,
			Mimetype:      proto.String(mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			ContextInfo:   ctxInfo,
		}}, nil
	case message.KindAudio:
		return &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
			Mimetype:      proto.String(mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			PTT:           proto.Bool(m.PTT),
			ContextInfo:   ctxInfo,
		}}, nil
	case message.KindSticker:
		return &waE2E.Message{StickerMessage: &waE2E.StickerMessage{
			Mimetype:      proto.String(mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			ContextInfo:   ctxInfo,
		}}, nil
	default:
		fileName := m.FileName
		if fileName == "" {
			fileName = "file"
		}
		return &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			Caption:       caption,
			FileName:      proto.String(fileName),
			Title:         proto.String(fileName),
			Mimetype:      proto.String(mimetype),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			ContextInfo:   ctxInfo,
		}}, nil
	}
}
