package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/lib-x/entsqlite"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"axiombot/pkg/logger"
)

const lidLookupTimeout = 2 * time.Second

// Config configures the whatsmeow client.
type Config struct {
	SessionPath string
	SessionID   string
	LogLevel    logger.Level
}

// Client is the whatsmeow-backed Gateway.
type Client struct {
	log       *logger.Logger
	config    *Config
	container *sqlstore.Container
	wa        *whatsmeow.Client
	groups    *groupCache

	mu          sync.RWMutex
	handlers    []func(evt any)
	onLoggedOut func()
	connected   bool
	paired      chan struct{}
	pairOnce    sync.Once
}

var _ Gateway = (*Client)(nil)

// NewClient opens the session database and prepares a client for the first
// stored device. A fresh database yields an unpaired device.
func NewClient(ctx context.Context, log *logger.Logger, cfg *Config) (*Client, error) {
	if cfg.SessionPath == "" {
		return nil, fmt.Errorf("whatsapp session_path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SessionPath), 0700); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)", cfg.SessionPath)
	container, err := sqlstore.New(ctx, "sqlite3", dsn, log.WhatsApp("database", cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("loading device: %w", err)
	}

	c := &Client{
		log:       log,
		config:    cfg,
		container: container,
		groups:    newGroupCache(groupCacheTTL, time.Now),
		paired:    make(chan struct{}),
	}
	c.wa = whatsmeow.NewClient(device, log.WhatsApp("client", cfg.LogLevel))
	c.wa.EnableAutoReconnect = true
	c.wa.AddEventHandler(c.handleEvent)

	if device.ID != nil {
		c.markPaired()
	}
	return c, nil
}

// AddEventHandler registers fn for every protocol event. Handlers run on
// whatsmeow's event goroutine and must not block.
func (c *Client) AddEventHandler(fn func(evt any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

// OnLoggedOut sets the callback run when the session is revoked remotely.
func (c *Client) OnLoggedOut(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLoggedOut = fn
}

// Connect opens the websocket. An unpaired device prints a QR code to the
// terminal for every code the server issues.
func (c *Client) Connect(ctx context.Context) error {
	if c.wa.Store.ID == nil {
		qrChan, err := c.wa.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("requesting pairing codes: %w", err)
		}
		if err := c.wa.Connect(); err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		go c.printQR(qrChan)
		return nil
	}

	if err := c.wa.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	return nil
}

// WaitPaired blocks until the device is linked or ctx ends.
func (c *Client) WaitPaired(ctx context.Context) error {
	select {
	case <-c.paired:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) printQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			c.log.Info("Scan the QR code below with WhatsApp > Linked devices")
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
		case "success":
			c.log.Info("Device paired")
			c.markPaired()
		default:
			c.log.Warn("Pairing ended", zap.String("event", item.Event), zap.Error(item.Error))
		}
	}
}

func (c *Client) markPaired() {
	c.pairOnce.Do(func() { close(c.paired) })
}

// Disconnect closes the websocket and the session database.
func (c *Client) Disconnect() error {
	c.wa.Disconnect()
	c.setConnected(false)
	return c.container.Close()
}

// Connected reports whether the session is online and logged in.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Client) handleEvent(evt any) {
	switch e := evt.(type) {
	case *events.Connected:
		c.setConnected(true)
		c.markPaired()
		c.log.Info("WhatsApp connected", zap.String("self", c.Self()), zap.String("session", c.config.SessionID))
	case *events.Disconnected:
		c.setConnected(false)
		c.log.Warn("WhatsApp disconnected, reconnecting")
	case *events.StreamReplaced:
		c.setConnected(false)
		c.log.Warn("WhatsApp stream replaced by another connection")
	case *events.LoggedOut:
		c.setConnected(false)
		c.log.Error("WhatsApp session logged out", zap.String("reason", e.Reason.String()))
		c.mu.RLock()
		fn := c.onLoggedOut
		c.mu.RUnlock()
		if fn != nil {
			fn()
		}
	case *events.GroupInfo:
		c.groups.invalidate(e.JID.String())
	case *events.JoinedGroup:
		c.groups.invalidate(e.JID.String())
	}

	c.mu.RLock()
	handlers := c.handlers
	c.mu.RUnlock()
	for _, h := range handlers {
		h(evt)
	}
}

// Self returns the logged-in account's jid without device suffix.
func (c *Client) Self() string {
	if c.wa.Store.ID == nil {
		return ""
	}
	return c.wa.Store.ID.ToNonAD().String()
}

func (c *Client) ready() error {
	if c.wa.Store.ID == nil || !c.wa.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Send delivers out and returns the server-assigned message id.
func (c *Client) Send(ctx context.Context, out *Outgoing) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	to, err := parseJID(out.To)
	if err != nil {
		return "", err
	}

	var content *waE2E.Message
	if out.Media != nil {
		content, err = c.buildMedia(ctx, out)
		if err != nil {
			return "", err
		}
	} else {
		content = buildText(out)
	}

	resp, err := c.wa.SendMessage(ctx, to, content)
	if err != nil {
		return "", fmt.Errorf("sending message: %w", err)
	}
	c.log.Debug("Sent WhatsApp message", zap.String("to", out.To), zap.String("id", resp.ID))
	return resp.ID, nil
}

// React puts emoji on message id; an empty emoji removes the reaction.
func (c *Client) React(ctx context.Context, chat, sender, id, emoji string) error {
	chatJID, senderJID, err := parsePair(chat, sender)
	if err != nil {
		return err
	}
	_, err = c.wa.SendMessage(ctx, chatJID, c.wa.BuildReaction(chatJID, senderJID, id, emoji))
	return err
}

// Revoke deletes message id for everyone.
func (c *Client) Revoke(ctx context.Context, chat, sender, id string) error {
	chatJID, senderJID, err := parsePair(chat, sender)
	if err != nil {
		return err
	}
	_, err = c.wa.SendMessage(ctx, chatJID, c.wa.BuildRevoke(chatJID, senderJID, id))
	return err
}

// MarkRead sends read receipts for ids.
func (c *Client) MarkRead(ctx context.Context, chat, sender string, ids ...string) error {
	chatJID, senderJID, err := parsePair(chat, sender)
	if err != nil {
		return err
	}
	return c.wa.MarkRead(ctx, ids, time.Now(), chatJID, senderJID)
}

// SetPresence sets the global online state.
func (c *Client) SetPresence(ctx context.Context, available bool) error {
	presence := types.PresenceUnavailable
	if available {
		presence = types.PresenceAvailable
	}
	return c.wa.SendPresence(ctx, presence)
}

// SetChatPresence shows typing or recording in chat.
func (c *Client) SetChatPresence(ctx context.Context, chat string, presence ChatPresence) error {
	jid, err := parseJID(chat)
	if err != nil {
		return err
	}
	state, media := types.ChatPresenceComposing, types.ChatPresenceMediaText
	switch presence {
	case PresenceRecording:
		media = types.ChatPresenceMediaAudio
	case PresencePaused:
		state = types.ChatPresencePaused
	}
	return c.wa.SendChatPresence(ctx, jid, state, media)
}

// GroupInfo returns group metadata, served from cache while fresh.
func (c *Client) GroupInfo(ctx context.Context, group string) (*GroupInfo, error) {
	if info, ok := c.groups.get(group); ok {
		return info, nil
	}
	jid, err := parseJID(group)
	if err != nil {
		return nil, err
	}
	raw, err := c.wa.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("fetching group info: %w", err)
	}
	info := convertGroup(raw)
	c.groups.put(group, info)
	return info, nil
}

// InvalidateGroup drops the cached metadata for group.
func (c *Client) InvalidateGroup(group string) {
	c.groups.invalidate(group)
}

// UpdateParticipants applies action to users.
func (c *Client) UpdateParticipants(ctx context.Context, group string, users []string, action ParticipantAction) error {
	jid, err := parseJID(group)
	if err != nil {
		return err
	}
	targets := make([]types.JID, 0, len(users))
	for _, u := range users {
		t, err := parseJID(u)
		if err != nil {
			return err
		}
		targets = append(targets, t)
	}

	var change whatsmeow.ParticipantChange
	switch action {
	case ActionAdd:
		change = whatsmeow.ParticipantChangeAdd
	case ActionRemove:
		change = whatsmeow.ParticipantChangeRemove
	case ActionPromote:
		change = whatsmeow.ParticipantChangePromote
	case ActionDemote:
		change = whatsmeow.ParticipantChangeDemote
	default:
		return fmt.Errorf("unknown participant action %q", action)
	}

	defer c.groups.invalidate(group)
	if _, err := c.wa.UpdateGroupParticipants(ctx, jid, targets, change); err != nil {
		return fmt.Errorf("updating participants: %w", err)
	}
	return nil
}

// SetGroupName renames group.
func (c *Client) SetGroupName(ctx context.Context, group, name string) error {
	jid, err := parseJID(group)
	if err != nil {
		return err
	}
	defer c.groups.invalidate(group)
	return c.wa.SetGroupName(ctx, jid, name)
}

// SetGroupTopic replaces the group description.
func (c *Client) SetGroupTopic(ctx context.Context, group, topic string) error {
	jid, err := parseJID(group)
	if err != nil {
		return err
	}
	raw, err := c.wa.GetGroupInfo(ctx, jid)
	if err != nil {
		return fmt.Errorf("fetching group info: %w", err)
	}
	defer c.groups.invalidate(group)
	return c.wa.SetGroupTopic(ctx, jid, raw.TopicID, "", topic)
}

// SetAnnounce toggles admins-only messaging.
func (c *Client) SetAnnounce(ctx context.Context, group string, announce bool) error {
	jid, err := parseJID(group)
	if err != nil {
		return err
	}
	defer c.groups.invalidate(group)
	return c.wa.SetGroupAnnounce(ctx, jid, announce)
}

// SetLocked toggles admins-only group settings.
func (c *Client) SetLocked(ctx context.Context, group string, locked bool) error {
	jid, err := parseJID(group)
	if err != nil {
		return err
	}
	defer c.groups.invalidate(group)
	return c.wa.SetGroupLocked(ctx, jid, locked)
}

// InviteLink returns the group invite link, optionally revoking the old one.
func (c *Client) InviteLink(ctx context.Context, group string, reset bool) (string, error) {
	jid, err := parseJID(group)
	if err != nil {
		return "", err
	}
	return c.wa.GetGroupInviteLink(ctx, jid, reset)
}

// LeaveGroup leaves group.
func (c *Client) LeaveGroup(ctx context.Context, group string) error {
	jid, err := parseJID(group)
	if err != nil {
		return err
	}
	defer c.groups.invalidate(group)
	return c.wa.LeaveGroup(ctx, jid)
}

// SetStatusMessage sets the account's about text.
func (c *Client) SetStatusMessage(ctx context.Context, text string) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.wa.SetStatusMessage(ctx, types.SetStatusInput{Text: &text})
}

// ResolveLID looks jid up in the session's LID map. Unknown or non-LID jids
// are returned as given.
func (c *Client) ResolveLID(jid string) string {
	lid, err := types.ParseJID(jid)
	if err != nil || lid.Server != types.HiddenUserServer {
		return jid
	}
	ctx, cancel := context.WithTimeout(context.Background(), lidLookupTimeout)
	defer cancel()
	pn, err := c.wa.Store.LIDs.GetPNForLID(ctx, lid.ToNonAD())
	if err != nil {
		c.log.Debug("LID lookup failed", zap.String("jid", jid), zap.Error(err))
		return jid
	}
	if pn.IsEmpty() {
		return jid
	}
	return pn.ToNonAD().String()
}

// UpdateBlocklist blocks or unblocks jid.
func (c *Client) UpdateBlocklist(ctx context.Context, jid string, block bool) error {
	target, err := parseJID(jid)
	if err != nil {
		return err
	}
	action := events.BlocklistChangeActionUnblock
	if block {
		action = events.BlocklistChangeActionBlock
	}
	_, err = c.wa.UpdateBlocklist(ctx, target, action)
	return err
}

// ProfilePicture returns the full-size profile picture URL of jid, or ""
// when none is visible.
func (c *Client) ProfilePicture(ctx context.Context, jid string) (string, error) {
	target, err := parseJID(jid)
	if err != nil {
		return "", err
	}
	info, err := c.wa.GetProfilePictureInfo(ctx, target, &whatsmeow.GetProfilePictureParams{})
	if err != nil {
		return "", err
	}
	if info == nil {
		return "", nil
	}
	return info.URL, nil
}

// UserStatus returns the about text of jid.
func (c *Client) UserStatus(ctx context.Context, jid string) (string, error) {
	target, err := parseJID(jid)
	if err != nil {
		return "", err
	}
	infos, err := c.wa.GetUserInfo(ctx, []types.JID{target})
	if err != nil {
		return "", err
	}
	return infos[target].Status, nil
}

// RejectCall declines an incoming call.
func (c *Client) RejectCall(ctx context.Context, from, callID string) error {
	jid, err := parseJID(from)
	if err != nil {
		return err
	}
	return c.wa.RejectCall(ctx, jid, callID)
}

// DownloadMedia fetches and decrypts the attachment in content.
func (c *Client) DownloadMedia(ctx context.Context, content *waE2E.Message) ([]byte, error) {
	var d whatsmeow.DownloadableMessage
	switch {
	case content.GetImageMessage() != nil:
		d = content.GetImageMessage()
	case content.GetVideoMessage() != nil:
		d = content.GetVideoMessage()
	case content.GetAudioMessage() != nil:
		d = content.GetAudioMessage()
	case content.GetDocumentMessage() != nil:
		d = content.GetDocumentMessage()
	case content.GetStickerMessage() != nil:
		d = content.GetStickerMessage()
	default:
		return nil, fmt.Errorf("message has no downloadable media")
	}
	return c.wa.Download(ctx, d)
}

func parseJID(s string) (types.JID, error) {
	jid, err := types.ParseJID(s)
	if err != nil || jid.IsEmpty() {
		return types.EmptyJID, fmt.Errorf("%w: %q", ErrInvalidJID, s)
	}
	return jid, nil
}

func parsePair(chat, sender string) (types.JID, types.JID, error) {
	chatJID, err := parseJID(chat)
	if err != nil {
		return types.EmptyJID, types.EmptyJID, err
	}
	if sender == "" {
		return chatJID, types.EmptyJID, nil
	}
	senderJID, err := parseJID(sender)
	if err != nil {
		return types.EmptyJID, types.EmptyJID, err
	}
	return chatJID, senderJID, nil
}

func convertGroup(raw *types.GroupInfo) *GroupInfo {
	info := &GroupInfo{
		JID:      raw.JID.String(),
		Name:     raw.Name,
		Topic:    raw.Topic,
		Owner:    raw.OwnerJID.String(),
		Locked:   raw.IsLocked,
		Announce: raw.IsAnnounce,
	}
	for _, p := range raw.Participants {
		part := Participant{
			JID:          p.JID.ToNonAD().String(),
			IsAdmin:      p.IsAdmin,
			IsSuperAdmin: p.IsSuperAdmin,
		}
		if !p.PhoneNumber.IsEmpty() {
			part.Number = p.PhoneNumber.User
		}
		info.Participants = append(info.Participants, part)
	}
	return info
}
