// ABOUTME: Matrix transport: each customer is a direct-message room with the shop's account
// ABOUTME: Syncs room messages into transport.Inbound and sends replies as text or HTML notices

package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/intake-gateway/internal/transport"
)

// sendTimeout bounds a single Matrix send.
const sendTimeout = 30 * time.Second

// Config holds the Matrix account the gateway runs as.
type Config struct {
	Homeserver  string
	UserID      string
	Username    string
	Password    string
	AccessToken string
	DeviceID    string
	// Encryption turns on end-to-end encryption support.
	Encryption bool
	// DataDir holds the crypto database when encryption is on.
	DataDir string
	// AllowedRooms restricts the rooms the gateway answers in. Empty allows all.
	AllowedRooms []string
	// AutoJoin accepts room invites so customers can start a conversation.
	AutoJoin bool
}

// Client is a transport.Sender backed by a Matrix account. Room IDs are the
// customer identifiers handed to the intake engine.
type Client struct {
	cfg    Config
	matrix *mautrix.Client
	rooms  *roomSizes
	logger *slog.Logger

	mu     sync.Mutex
	userID id.UserID
}

// New creates a client. Call Login before Run when no access token is
// configured.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Homeserver == "" {
		return nil, errors.New("matrix: homeserver is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	if cfg.DeviceID != "" {
		client.DeviceID = id.DeviceID(cfg.DeviceID)
	}

	c := &Client{
		cfg:    cfg,
		matrix: client,
		logger: logger.With("component", "matrix"),
		userID: id.UserID(cfg.UserID),
	}
	c.rooms = newRoomSizes(func(ctx context.Context, room id.RoomID) (int, error) {
		resp, err := client.JoinedMembers(ctx, room)
		if err != nil {
			return 0, err
		}
		return len(resp.Joined), nil
	})
	return c, nil
}

// Login authenticates with the configured password unless an access token is
// already set.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.AccessToken != "" {
		return nil
	}
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return errors.New("matrix: username and password are required without an access token")
	}

	resp, err := c.matrix.Login(ctx, &mautrix.ReqLogin{
		Type: mautrix.AuthTypePassword,
		Identifier: mautrix.UserIdentifier{
			Type: mautrix.IdentifierTypeUser,
			User: c.cfg.Username,
		},
		Password:                 c.cfg.Password,
		DeviceID:                 id.DeviceID(c.cfg.DeviceID),
		InitialDeviceDisplayName: "intake-gateway",
		StoreCredentials:         true,
	})
	if err != nil {
		return fmt.Errorf("matrix login: %w", err)
	}

	c.mu.Lock()
	c.userID = resp.UserID
	c.mu.Unlock()
	c.logger.Info("logged in to matrix", "user_id", resp.UserID, "device_id", resp.DeviceID)
	return nil
}

// UserID returns the account the client is logged in as.
func (c *Client) UserID() id.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Send delivers msg to the room recipientID. HTML, when set, is sent as the
// formatted body with Text as the plain fallback.
func (c *Client) Send(ctx context.Context, recipientID string, msg transport.Outbound) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	room := id.RoomID(recipientID)
	if msg.HTML == "" {
		if _, err := c.matrix.SendText(ctx, room, msg.Text); err != nil {
			return fmt.Errorf("sending to %s: %w", recipientID, err)
		}
		return nil
	}

	content := &event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          msg.Text,
		Format:        event.FormatHTML,
		FormattedBody: msg.HTML,
	}
	if _, err := c.matrix.SendMessageEvent(ctx, room, event.EventMessage, content); err != nil {
		return fmt.Errorf("sending to %s: %w", recipientID, err)
	}
	return nil
}

// Run syncs with the homeserver and passes room messages to h until ctx is
// cancelled.
func (c *Client) Run(ctx context.Context, h transport.Handler) error {
	if c.cfg.Encryption {
		helper, err := enableEncryption(ctx, c.matrix, c.UserID(), c.cfg.DataDir, c.logger)
		if err != nil {
			return fmt.Errorf("setting up encryption: %w", err)
		}
		defer helper.Close()
	}

	syncer, ok := c.matrix.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", c.matrix.Syncer)
	}
	syncer.OnEventType(event.EventMessage, func(ctx context.Context, evt *event.Event) {
		c.handleMessage(ctx, evt, h)
	})
	syncer.OnEventType(event.StateMember, c.handleMember)

	c.logger.Info("starting matrix sync", "homeserver", c.cfg.Homeserver, "user_id", c.UserID())

	err := c.matrix.SyncWithContext(ctx)
	if ctx.Err() != nil {
		c.logger.Info("matrix sync stopped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("matrix sync failed: %w", err)
	}
	return nil
}

func (c *Client) handleMessage(ctx context.Context, evt *event.Event, h transport.Handler) {
	if !c.roomAllowed(evt.RoomID) {
		c.logger.Debug("ignoring message from non-allowed room", "room", evt.RoomID)
		return
	}

	members, err := c.rooms.count(ctx, evt.RoomID)
	if err != nil {
		c.logger.Warn("could not count room members", "room", evt.RoomID, "error", err)
	}

	msg, ok := toInbound(c.UserID(), evt, members)
	if !ok {
		return
	}
	h.HandleInbound(ctx, msg)
}

// handleMember accepts invites addressed to the gateway and forgets cached
// room sizes when membership changes.
func (c *Client) handleMember(ctx context.Context, evt *event.Event) {
	c.rooms.forget(evt.RoomID)

	member := evt.Content.AsMember()
	if !c.cfg.AutoJoin || member.Membership != event.MembershipInvite || evt.GetStateKey() != c.UserID().String() {
		return
	}
	if !c.roomAllowed(evt.RoomID) {
		return
	}
	if _, err := c.matrix.JoinRoomByID(ctx, evt.RoomID); err != nil {
		c.logger.Warn("failed to accept invite", "room", evt.RoomID, "error", err)
		return
	}
	c.logger.Info("joined room", "room", evt.RoomID, "inviter", evt.Sender)
}

func (c *Client) roomAllowed(room id.RoomID) bool {
	if len(c.cfg.AllowedRooms) == 0 {
		return true
	}
	return slices.Contains(c.cfg.AllowedRooms, room.String())
}

// toInbound converts a room message. members is the joined member count, or
// zero when unknown. It reports false for events that carry nothing to route.
func toInbound(self id.UserID, evt *event.Event, members int) (transport.Inbound, bool) {
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok {
		return transport.Inbound{}, false
	}

	msg := transport.Inbound{
		ID:              evt.ID.String(),
		SenderID:        evt.RoomID.String(),
		Timestamp:       time.UnixMilli(evt.Timestamp),
		FromSelf:        evt.Sender == self,
		StatusBroadcast: content.MsgType == event.MsgNotice,
		Group:           members > 2,
	}

	switch content.MsgType {
	case event.MsgText, event.MsgNotice, event.MsgEmote:
		msg.Body = content.Body
	case event.MsgImage, event.MsgVideo, event.MsgFile:
		msg.HasMedia = true
		msg.MediaURI = string(content.URL)
		if content.File != nil {
			msg.MediaURI = string(content.File.URL)
		}
		// Captions are not answers to the current question.
	default:
		return transport.Inbound{}, false
	}
	return msg, true
}

// roomSizes caches joined member counts per room.
type roomSizes struct {
	lookup func(context.Context, id.RoomID) (int, error)

	mu    sync.Mutex
	sizes map[id.RoomID]int
}

func newRoomSizes(lookup func(context.Context, id.RoomID) (int, error)) *roomSizes {
	return &roomSizes{lookup: lookup, sizes: make(map[id.RoomID]int)}
}

func (r *roomSizes) count(ctx context.Context, room id.RoomID) (int, error) {
	r.mu.Lock()
	n, ok := r.sizes[room]
	r.mu.Unlock()
	if ok {
		return n, nil
	}

	n, err := r.lookup(ctx, room)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	r.sizes[room] = n
	r.mu.Unlock()
	return n, nil
}

func (r *roomSizes) forget(room id.RoomID) {
	r.mu.Lock()
	delete(r.sizes, room)
	r.mu.Unlock()
}
