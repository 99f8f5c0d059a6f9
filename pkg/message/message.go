// Package message turns whatsmeow message events into the library-neutral
// Message value consumed by the dispatcher and plugins.
package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// ErrUnsupported is returned for events that carry no usable content.
var ErrUnsupported = errors.New("message: unsupported event shape")

// Kind is the content type of a message, named after the protocol field.
type Kind string

const (
	KindConversation  Kind = "conversation"
	KindExtendedText  Kind = "extendedTextMessage"
	KindImage         Kind = "imageMessage"
	KindVideo         Kind = "videoMessage"
	KindAudio         Kind = "audioMessage"
	KindDocument      Kind = "documentMessage"
	KindSticker       Kind = "stickerMessage"
	KindReaction      Kind = "reactionMessage"
	KindProtocol      Kind = "protocolMessage"
	KindListResponse  Kind = "listResponseMessage"
	KindButtonsReply  Kind = "buttonsResponseMessage"
	KindTemplateReply Kind = "templateButtonReplyMessage"
	KindContact       Kind = "contactMessage"
	KindLocation      Kind = "locationMessage"
	KindPoll          Kind = "pollCreationMessage"
	KindUnknown       Kind = "unknown"
)

// IsMedia reports whether the kind carries a downloadable attachment.
func (k Kind) IsMedia() bool {
	switch k {
	case KindImage, KindVideo, KindAudio, KindDocument, KindSticker:
		return true
	}
	return false
}

// Envelope records which wrapper the content arrived in.
type Envelope string

const (
	EnvelopeNormal    Envelope = "normal"
	EnvelopeEphemeral Envelope = "ephemeral"
	EnvelopeViewOnce  Envelope = "view_once"
)

// Downloader fetches and decrypts the attachment of a message.
type Downloader interface {
	DownloadMedia(ctx context.Context, content *waE2E.Message) ([]byte, error)
}

// Message is the normalized form of one inbound event. It is read-only once
// Normalize returns.
type Message struct {
	ID        string
	Chat      string
	Sender    string
	PushName  string
	IsGroup   bool
	FromMe    bool
	Sudo      bool
	Kind      Kind
	Envelope  Envelope
	Body      string
	HasBody   bool
	Quoted    *Quoted
	Mentions  []string
	Prefix    string
	Timestamp time.Time

	// Content is the unwrapped protocol message, kept for media re-sends.
	Content *waE2E.Message

	downloader Downloader
}

// Quoted is the message a reply refers to.
type Quoted struct {
	ID       string
	Sender   string
	Kind     Kind
	Text     string
	Envelope Envelope
	Content  *waE2E.Message
}

// LIDResolver maps a hidden-user (@lid) jid to the phone-number jid the
// account is known by, returning jid unchanged when no mapping exists.
type LIDResolver interface {
	ResolveLID(jid string) string
}

// Options carries the per-message settings Normalize needs.
type Options struct {
	Sudo       []string
	Prefix     string
	Downloader Downloader
	// LIDs resolves mentions and quoted senders in LID-addressed groups.
	LIDs       LIDResolver
}

// Normalize converts evt. A nil event, or one whose content is missing,
// yields ErrUnsupported; callers drop such messages.
func Normalize(evt *events.Message, opts Options) (msg *Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			msg, err = nil, fmt.Errorf("%w: %v", ErrUnsupported, r)
		}
	}()

	if evt == nil {
		return nil, ErrUnsupported
	}
	raw := evt.RawMessage
	if raw == nil {
		raw = evt.Message
	}
	if raw == nil {
		return nil, ErrUnsupported
	}

	content, envelope := unwrap(raw)
	if content == nil {
		return nil, ErrUnsupported
	}

	kind := kindOf(content)
	ctxInfo := contextInfo(content)

	msg = &Message{
		ID:         evt.Info.ID,
		Chat:       evt.Info.Chat.String(),
		PushName:   evt.Info.PushName,
		IsGroup:    evt.Info.IsGroup,
		FromMe:     evt.Info.IsFromMe,
		Kind:       kind,
		Envelope:   envelope,
		Prefix:     opts.Prefix,
		Timestamp:  evt.Info.Timestamp,
		Content:    content,
		Mentions:   resolveAll(ctxInfo.GetMentionedJID(), opts.LIDs),
		downloader: opts.Downloader,
	}
	msg.Sender = resolveSender(evt.Info.MessageSource, ctxInfo, opts.LIDs)
	msg.Sudo = msg.FromMe || IsSudo(msg.Sender, opts.Sudo)
	msg.Body, msg.HasBody = bodyOf(content)

	if q := ctxInfo.GetQuotedMessage(); q != nil {
		qContent, qEnvelope := unwrap(q)
		if qContent != nil {
			msg.Quoted = &Quoted{
				ID:       ctxInfo.GetStanzaID(),
				Sender:   resolveLID(ctxInfo.GetParticipant(), opts.LIDs),
				Kind:     kindOf(qContent),
				Text:     quotedText(qContent),
				Envelope: qEnvelope,
				Content:  qContent,
			}
		}
	}

	return msg, nil
}

// resolveSender prefers the explicit participant, then a phone-number alias
// for hidden-user ids, then the context hint, then the chat itself.
func resolveSender(src types.MessageSource, ctxInfo *waE2E.ContextInfo, lids LIDResolver) string {
	sender := src.Sender
	if sender.Server == types.HiddenUserServer && !src.SenderAlt.IsEmpty() {
		sender = src.SenderAlt
	}
	if !sender.IsEmpty() {
		return resolveLID(sender.ToNonAD().String(), lids)
	}
	if p := ctxInfo.GetParticipant(); p != "" {
		return resolveLID(p, lids)
	}
	return src.Chat.ToNonAD().String()
}

func resolveLID(jid string, lids LIDResolver) string {
	if lids == nil || !strings.HasSuffix(jid, "@"+types.HiddenUserServer) {
		return jid
	}
	return lids.ResolveLID(jid)
}

func resolveAll(jids []string, lids LIDResolver) []string {
	if lids == nil || len(jids) == 0 {
		return jids
	}
	out := make([]string, len(jids))
	for i, jid := range jids {
		out[i] = resolveLID(jid, lids)
	}
	return out
}

// unwrap strips at most one ephemeral and then one view-once envelope.
// Device-sent copies of our own messages are a transport wrapper and are
// opened first without counting towards that limit.
func unwrap(m *waE2E.Message) (*waE2E.Message, Envelope) {
	if dsm := m.GetDeviceSentMessage().GetMessage(); dsm != nil {
		m = dsm
	}

	envelope := EnvelopeNormal
	if inner := m.GetEphemeralMessage().GetMessage(); inner != nil {
		m = inner
		envelope = EnvelopeEphemeral
	}

	var viewOnce *waE2E.Message
	switch {
	case m.GetViewOnceMessage().GetMessage() != nil:
		viewOnce = m.GetViewOnceMessage().GetMessage()
	case m.GetViewOnceMessageV2().GetMessage() != nil:
		viewOnce = m.GetViewOnceMessageV2().GetMessage()
	case m.GetViewOnceMessageV2Extension().GetMessage() != nil:
		viewOnce = m.GetViewOnceMessageV2Extension().GetMessage()
	}
	if viewOnce != nil {
		m = viewOnce
		envelope = EnvelopeViewOnce
	}

	return m, envelope
}

func kindOf(m *waE2E.Message) Kind {
	switch {
	case m.Conversation != nil:
		return KindConversation
	case m.ExtendedTextMessage != nil:
		return KindExtendedText
	case m.ImageMessage != nil:
		return KindImage
	case m.VideoMessage != nil:
		return KindVideo
	case m.AudioMessage != nil:
		return KindAudio
	case m.DocumentMessage != nil:
		return KindDocument
	case m.StickerMessage != nil:
		return KindSticker
	case m.ReactionMessage != nil:
		return KindReaction
	case m.ProtocolMessage != nil:
		return KindProtocol
	case m.ListResponseMessage != nil:
		return KindListResponse
	case m.ButtonsResponseMessage != nil:
		return KindButtonsReply
	case m.TemplateButtonReplyMessage != nil:
		return KindTemplateReply
	case m.ContactMessage != nil:
		return KindContact
	case m.LocationMessage != nil:
		return KindLocation
	case m.PollCreationMessage != nil:
		return KindPoll
	}
	return KindUnknown
}

// bodyOf tries conversation text, the type-specific text or caption, then
// interactive reply selections.
func bodyOf(m *waE2E.Message) (string, bool) {
	candidates := []string{
		m.GetConversation(),
		m.GetExtendedTextMessage().GetText(),
		m.GetImageMessage().GetCaption(),
		m.GetVideoMessage().GetCaption(),
		m.GetDocumentMessage().GetCaption(),
		m.GetListResponseMessage().GetSingleSelectReply().GetSelectedRowID(),
		m.GetButtonsResponseMessage().GetSelectedButtonID(),
		m.GetTemplateButtonReplyMessage().GetSelectedID(),
	}
	for _, c := range candidates {
		if c != "" {
			return c, true
		}
	}
	return "", false
}

func quotedText(m *waE2E.Message) string {
	if text, ok := bodyOf(m); ok {
		return text
	}
	if d := m.GetExtendedTextMessage().GetDescription(); d != "" {
		return d
	}
	return ""
}

func contextInfo(m *waE2E.Message) *waE2E.ContextInfo {
	switch {
	case m.ExtendedTextMessage != nil:
		return m.ExtendedTextMessage.GetContextInfo()
	case m.ImageMessage != nil:
		return m.ImageMessage.GetContextInfo()
	case m.VideoMessage != nil:
		return m.VideoMessage.GetContextInfo()
	case m.AudioMessage != nil:
		return m.AudioMessage.GetContextInfo()
	case m.DocumentMessage != nil:
		return m.DocumentMessage.GetContextInfo()
	case m.StickerMessage != nil:
		return m.StickerMessage.GetContextInfo()
	case m.ContactMessage != nil:
		return m.ContactMessage.GetContextInfo()
	case m.LocationMessage != nil:
		return m.LocationMessage.GetContextInfo()
	case m.ListResponseMessage != nil:
		return m.ListResponseMessage.GetContextInfo()
	case m.ButtonsResponseMessage != nil:
		return m.ButtonsResponseMessage.GetContextInfo()
	case m.TemplateButtonReplyMessage != nil:
		return m.TemplateButtonReplyMessage.GetContextInfo()
	}
	return nil
}

// Number returns the bare phone number (or user part) of a jid, without
// the server and device suffix.
func Number(jid string) string {
	user, _, _ := strings.Cut(jid, "@")
	user, _, _ = strings.Cut(user, ":")
	return user
}

// IsSudo reports whether sender matches any configured sudo number. Numbers
// match by containment in either direction so device and country-code
// variants still resolve.
func IsSudo(sender string, sudo []string) bool {
	n := Number(sender)
	if n == "" {
		return false
	}
	for _, s := range sudo {
		s = strings.TrimPrefix(strings.TrimSpace(s), "+")
		if s == "" {
			continue
		}
		if strings.Contains(n, s) || strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// RevokedID returns the id of the message a delete-for-everyone event
// targets.
func RevokedID(evt *events.Message) (string, bool) {
	if evt == nil || evt.Message == nil {
		return "", false
	}
	content, _ := unwrap(evt.Message)
	pm := content.GetProtocolMessage()
	if pm == nil || pm.GetType() != waE2E.ProtocolMessage_REVOKE {
		return "", false
	}
	id := pm.GetKey().GetID()
	return id, id != ""
}
