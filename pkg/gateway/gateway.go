// Package gateway is the bot's only path to the WhatsApp network. Plugins
// talk to the Gateway interface using string JIDs; the whatsmeow Client is
// the production implementation.
package gateway

import (
	"context"
	"errors"
	"strings"

	"axiombot/pkg/message"
)

var (
	// ErrNotConnected is returned when the session is not logged in.
	ErrNotConnected = errors.New("gateway: not connected")
	// ErrNotAdmin is returned by helpers that require group admin rights.
	ErrNotAdmin = errors.New("gateway: not a group admin")
	// ErrInvalidJID is returned for addresses that cannot be parsed.
	ErrInvalidJID = errors.New("gateway: invalid jid")
)

// ParticipantAction is a group membership change.
type ParticipantAction string

const (
	ActionAdd     ParticipantAction = "add"
	ActionRemove  ParticipantAction = "remove"
	ActionPromote ParticipantAction = "promote"
	ActionDemote  ParticipantAction = "demote"
)

// ChatPresence is the per-chat indicator shown to the other side.
type ChatPresence string

const (
	PresenceComposing ChatPresence = "composing"
	PresenceRecording ChatPresence = "recording"
	PresencePaused    ChatPresence = "paused"
)

// Participant is one member of a group.
type Participant struct {
	JID          string
	Number       string
	IsAdmin      bool
	IsSuperAdmin bool
}

// GroupInfo is the cached group metadata.
type GroupInfo struct {
	JID          string
	Name         string
	Topic        string
	Owner        string
	Locked       bool
	Announce     bool
	Participants []Participant
}

// Admins returns the participants holding admin or super admin rights.
func (g *GroupInfo) Admins() []Participant {
	var admins []Participant
	for _, p := range g.Participants {
		if p.IsAdmin || p.IsSuperAdmin {
			admins = append(admins, p)
		}
	}
	return admins
}

// IsAdmin reports whether jid is an admin. Device suffixes are ignored and
// a phone-number alias matches as well.
func (g *GroupInfo) IsAdmin(jid string) bool {
	n := message.Number(jid)
	for _, p := range g.Participants {
		if !p.IsAdmin && !p.IsSuperAdmin {
			continue
		}
		if message.Number(p.JID) == n || (p.Number != "" && p.Number == n) {
			return true
		}
	}
	return false
}

// Has reports whether jid is a member.
func (g *GroupInfo) Has(jid string) bool {
	n := message.Number(jid)
	for _, p := range g.Participants {
		if message.Number(p.JID) == n || p.Number == n {
			return true
		}
	}
	return false
}

// Media is an attachment to upload with an outgoing message.
type Media struct {
	Kind     message.Kind
	Data     []byte
	Mimetype string
	FileName string
	PTT      bool
}

// Outgoing describes one message to send. Text becomes the caption when
// Media is set.
type Outgoing struct {
	To       string
	Text     string
	Mentions []string
	Quote    *message.Message
	Media    *Media
}

// Gateway is the set of network operations the bot relies on.
type Gateway interface {
	// Self returns the bot's own non-device jid, or "" before login.
	Self() string

	Send(ctx context.Context, out *Outgoing) (string, error)
	React(ctx context.Context, chat, sender, id, emoji string) error
	Revoke(ctx context.Context, chat, sender, id string) error
	MarkRead(ctx context.Context, chat, sender string, ids ...string) error

	SetPresence(ctx context.Context, available bool) error
	SetChatPresence(ctx context.Context, chat string, presence ChatPresence) error

	GroupInfo(ctx context.Context, group string) (*GroupInfo, error)
	InvalidateGroup(group string)
	UpdateParticipants(ctx context.Context, group string, users []string, action ParticipantAction) error
	SetGroupName(ctx context.Context, group, name string) error
	SetGroupTopic(ctx context.Context, group, topic string) error
	SetAnnounce(ctx context.Context, group string, announce bool) error
	SetLocked(ctx context.Context, group string, locked bool) error
	InviteLink(ctx context.Context, group string, reset bool) (string, error)
	LeaveGroup(ctx context.Context, group string) error

	SetStatusMessage(ctx context.Context, text string) error
	UpdateBlocklist(ctx context.Context, jid string, block bool) error
	ProfilePicture(ctx context.Context, jid string) (string, error)
	UserStatus(ctx context.Context, jid string) (string, error)
	RejectCall(ctx context.Context, from, callID string) error

	message.Downloader
	message.LIDResolver
}

// IsBotAdmin reports whether the bot itself administers group.
func IsBotAdmin(ctx context.Context, gw Gateway, group string) (bool, error) {
	info, err := gw.GroupInfo(ctx, group)
	if err != nil {
		return false, err
	}
	return info.IsAdmin(gw.Self()), nil
}

// UserJID turns a phone number (with or without +, spaces or dashes) into a
// user jid. Inputs already containing a server are returned unchanged.
func UserJID(number string) string {
	if strings.Contains(number, "@") {
		return number
	}
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + "@s.whatsapp.net"
}

// IsGroupJID reports whether jid addresses a group.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, "@g.us")
}

// IsBroadcastJID reports whether jid is a broadcast list or the status feed.
func IsBroadcastJID(jid string) bool {
	return strings.HasSuffix(jid, "@broadcast")
}

// StatusBroadcast is the chat status updates arrive in.
const StatusBroadcast = "status@broadcast"
