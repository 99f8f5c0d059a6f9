// Package gatewaytest provides an in-memory Gateway that records every
// outbound call.
package gatewaytest

import (
	"context"
	"fmt"
	"sync"

	"go.mau.fi/whatsmeow/proto/waE2E"

	"axiombot/pkg/gateway"
)

// Call is one recorded non-send operation.
type Call struct {
	Op    string
	Chat  string
	Args  []string
	Value bool
}

// Recorder implements gateway.Gateway. Zero value is ready to use; set
// SelfJID and Groups before handing it out.
type Recorder struct {
	SelfJID string

	// Groups answers GroupInfo. Missing groups return an error.
	Groups map[string]*gateway.GroupInfo

	Pictures map[string]string
	Statuses map[string]string
	// LIDs maps hidden-user jids to phone-number jids for ResolveLID.
	LIDs     map[string]string

	SendErr     error
	DownloadErr error
	Download    []byte

	mu    sync.Mutex
	sent  []gateway.Outgoing
	calls []Call
	seq   int
}

var _ gateway.Gateway = (*Recorder)(nil)

// New returns a Recorder for the given bot jid.
func New(self string) *Recorder {
	return &Recorder{SelfJID: self, Groups: make(map[string]*gateway.GroupInfo)}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Sent returns a copy of every message sent so far.
func (r *Recorder) Sent() []gateway.Outgoing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gateway.Outgoing(nil), r.sent...)
}

// Texts returns the text of every sent message, in order.
func (r *Recorder) Texts() []string {
	var out []string
	for _, m := range r.Sent() {
		out = append(out, m.Text)
	}
	return out
}

// Calls returns recorded operations named op, or all when op is "".
func (r *Recorder) Calls(op string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if op == "" || c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent, r.calls = nil, nil
}

func (r *Recorder) Self() string { return r.SelfJID }

func (r *Recorder) Send(ctx context.Context, out *gateway.Outgoing) (string, error) {
	if r.SendErr != nil {
		return "", r.SendErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.sent = append(r.sent, *out)
	return fmt.Sprintf("SENT%d", r.seq), nil
}

func (r *Recorder) React(ctx context.Context, chat, sender, id, emoji string) error {
	r.record(Call{Op: "react", Chat: chat, Args: []string{sender, id, emoji}})
	return nil
}

func (r *Recorder) Revoke(ctx context.Context, chat, sender, id string) error {
	r.record(Call{Op: "revoke", Chat: chat, Args: []string{sender, id}})
	return nil
}

func (r *Recorder) MarkRead(ctx context.Context, chat, sender string, ids ...string) error {
	r.record(Call{Op: "read", Chat: chat, Args: append([]string{sender}, ids...)})
	return nil
}

func (r *Recorder) SetPresence(ctx context.Context, available bool) error {
	r.record(Call{Op: "presence", Value: available})
	return nil
}

func (r *Recorder) SetChatPresence(ctx context.Context, chat string, presence gateway.ChatPresence) error {
	r.record(Call{Op: "chat_presence", Chat: chat, Args: []string{string(presence)}})
	return nil
}

func (r *Recorder) GroupInfo(ctx context.Context, group string) (*gateway.GroupInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.Groups[group]
	if !ok {
		return nil, fmt.Errorf("unknown group %s", group)
	}
	return info, nil
}

func (r *Recorder) InvalidateGroup(group string) {}

func (r *Recorder) UpdateParticipants(ctx context.Context, group string, users []string, action gateway.ParticipantAction) error {
	r.record(Call{Op: "participants", Chat: group, Args: append([]string{string(action)}, users...)})
	return nil
}

func (r *Recorder) SetGroupName(ctx context.Context, group, name string) error {
	r.record(Call{Op: "group_name", Chat: group, Args: []string{name}})
	return nil
}

func (r *Recorder) SetGroupTopic(ctx context.Context, group, topic string) error {
	r.record(Call{Op: "group_topic", Chat: group, Args: []string{topic}})
	return nil
}

func (r *Recorder) SetAnnounce(ctx context.Context, group string, announce bool) error {
	r.record(Call{Op: "announce", Chat: group, Value: announce})
	return nil
}

func (r *Recorder) SetLocked(ctx context.Context, group string, locked bool) error {
	r.record(Call{Op: "locked", Chat: group, Value: locked})
	return nil
}

func (r *Recorder) InviteLink(ctx context.Context, group string, reset bool) (string, error) {
	r.record(Call{Op: "invite", Chat: group, Value: reset})
	return "https://chat.whatsapp.com/TESTCODE", nil
}

func (r *Recorder) LeaveGroup(ctx context.Context, group string) error {
	r.record(Call{Op: "leave", Chat: group})
	return nil
}

func (r *Recorder) SetStatusMessage(ctx context.Context, text string) error {
	r.record(Call{Op: "status", Args: []string{text}})
	return nil
}

func (r *Recorder) UpdateBlocklist(ctx context.Context, jid string, block bool) error {
	r.record(Call{Op: "block", Chat: jid, Value: block})
	return nil
}

func (r *Recorder) ProfilePicture(ctx context.Context, jid string) (string, error) {
	return r.Pictures[jid], nil
}

func (r *Recorder) UserStatus(ctx context.Context, jid string) (string, error) {
	return r.Statuses[jid], nil
}

func (r *Recorder) RejectCall(ctx context.Context, from, callID string) error {
	r.record(Call{Op: "reject_call", Chat: from, Args: []string{callID}})
	return nil
}

func (r *Recorder) DownloadMedia(ctx context.Context, content *waE2E.Message) ([]byte, error) {
	if r.DownloadErr != nil {
		return nil, r.DownloadErr
	}
	return r.Download, nil
}

func (r *Recorder) ResolveLID(jid string) string {
	if pn, ok := r.LIDs[jid]; ok {
		return pn
	}
	return jid
}
