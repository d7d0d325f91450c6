// ABOUTME: Tests for Matrix event conversion, room-size caching, and crypto store helpers
// ABOUTME: Runs without a homeserver; the device check uses a scratch SQLite file

package matrix

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

const (
	shop = id.UserID("@shop:example.org")
	room = id.RoomID("!dm:example.org")
)

func messageEvent(sender id.UserID, content *event.MessageEventContent) *event.Event {
	return &event.Event{
		ID:        "$evt",
		Sender:    sender,
		RoomID:    room,
		Timestamp: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC).UnixMilli(),
		Content:   event.Content{Parsed: content},
	}
}

func TestToInbound_Text(t *testing.T) {
	evt := messageEvent("@customer:example.org", &event.MessageEventContent{MsgType: event.MsgText, Body: "oi"})

	msg, ok := toInbound(shop, evt, 2)
	require.True(t, ok)
	assert.Equal(t, "$evt", msg.ID)
	assert.Equal(t, room.String(), msg.SenderID, "the room identifies the customer")
	assert.Equal(t, "oi", msg.Body)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), msg.Timestamp.UTC())
	assert.False(t, msg.FromSelf)
	assert.False(t, msg.Group)
	assert.False(t, msg.HasMedia)
}

func TestToInbound_Flags(t *testing.T) {
	own, ok := toInbound(shop, messageEvent(shop, &event.MessageEventContent{MsgType: event.MsgText, Body: "menu"}), 2)
	require.True(t, ok)
	assert.True(t, own.FromSelf)

	notice, ok := toInbound(shop, messageEvent("@bot:example.org", &event.MessageEventContent{MsgType: event.MsgNotice, Body: "status"}), 2)
	require.True(t, ok)
	assert.True(t, notice.StatusBroadcast)

	group, ok := toInbound(shop, messageEvent("@customer:example.org", &event.MessageEventContent{MsgType: event.MsgText, Body: "oi"}), 3)
	require.True(t, ok)
	assert.True(t, group.Group)

	unknown, ok := toInbound(shop, messageEvent("@customer:example.org", &event.MessageEventContent{MsgType: event.MsgText, Body: "oi"}), 0)
	require.True(t, ok)
	assert.False(t, unknown.Group, "unknown size is treated as a direct chat")
}

func TestToInbound_Media(t *testing.T) {
	plain, ok := toInbound(shop, messageEvent("@customer:example.org", &event.MessageEventContent{
		MsgType: event.MsgImage,
		Body:    "IMG_0001.jpg",
		URL:     "mxc://example.org/plain",
	}), 2)
	require.True(t, ok)
	assert.True(t, plain.HasMedia)
	assert.Equal(t, "mxc://example.org/plain", plain.MediaURI)
	assert.Empty(t, plain.Body)

	encrypted, ok := toInbound(shop, messageEvent("@customer:example.org", &event.MessageEventContent{
		MsgType: event.MsgImage,
		File:    &event.EncryptedFileInfo{URL: "mxc://example.org/encrypted"},
	}), 2)
	require.True(t, ok)
	assert.Equal(t, "mxc://example.org/encrypted", encrypted.MediaURI)
}

func TestToInbound_Ignored(t *testing.T) {
	_, ok := toInbound(shop, messageEvent("@customer:example.org", &event.MessageEventContent{MsgType: event.MsgLocation}), 2)
	assert.False(t, ok)

	_, ok = toInbound(shop, &event.Event{RoomID: room}, 2)
	assert.False(t, ok)
}

func TestRoomSizes_CachesUntilForgotten(t *testing.T) {
	calls := 0
	sizes := newRoomSizes(func(context.Context, id.RoomID) (int, error) {
		calls++
		return 2, nil
	})

	for i := 0; i < 3; i++ {
		n, err := sizes.count(context.Background(), room)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	}
	assert.Equal(t, 1, calls)

	sizes.forget(room)
	_, err := sizes.count(context.Background(), room)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRoomSizes_ErrorsAreNotCached(t *testing.T) {
	fail := true
	sizes := newRoomSizes(func(context.Context, id.RoomID) (int, error) {
		if fail {
			return 0, errors.New("forbidden")
		}
		return 2, nil
	})

	_, err := sizes.count(context.Background(), room)
	require.Error(t, err)

	fail = false
	n, err := sizes.count(context.Background(), room)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRoomAllowed(t *testing.T) {
	open := &Client{}
	assert.True(t, open.roomAllowed(room))

	restricted := &Client{cfg: Config{AllowedRooms: []string{"!other:example.org"}}}
	assert.False(t, restricted.roomAllowed(room))
	assert.True(t, restricted.roomAllowed("!other:example.org"))
}

func TestNew_RequiresHomeserver(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)

	c, err := New(Config{Homeserver: "https://matrix.example.org", UserID: shop.String(), AccessToken: "token"}, nil)
	require.NoError(t, err)
	assert.Equal(t, shop, c.UserID())
	assert.NoError(t, c.Login(context.Background()), "access token skips password login")
}

func TestNewCryptoStore(t *testing.T) {
	s := newCryptoStore("/data", "@shop:matrix.org")
	assert.Equal(t, filepath.Join("/data", "matrix-crypto-shop_matrix.org.db"), s.path)
	assert.Len(t, s.key, 32)

	assert.Equal(t, filepath.Join("/data", "matrix-crypto-a-b_c_x.y.db"), newCryptoStore("/data", "@a-b_c:x.y").path)
	assert.Equal(t, filepath.Join("/data", "matrix-crypto-weird.db"), newCryptoStore("/data", "w/e i\\rd").path)

	assert.Equal(t, s.key, newCryptoStore("/other", "@shop:matrix.org").key)
	assert.NotEqual(t, s.key, newCryptoStore("/data", "@ops:matrix.org").key)
}

func TestCryptoStore_OwnedByOtherDevice(t *testing.T) {
	s := newCryptoStore(t.TempDir(), shop)

	stale, err := s.ownedByOtherDevice("DEVICE")
	require.NoError(t, err)
	assert.False(t, stale, "missing database")

	db, err := sql.Open("sqlite3", s.path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE crypto_account (device_id TEXT)")
	require.NoError(t, err)

	stale, err = s.ownedByOtherDevice("DEVICE")
	require.NoError(t, err)
	assert.False(t, stale, "no account stored")

	_, err = db.Exec("INSERT INTO crypto_account (device_id) VALUES ('OLD')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	stale, err = s.ownedByOtherDevice("DEVICE")
	require.NoError(t, err)
	assert.True(t, stale)

	stale, err = s.ownedByOtherDevice("OLD")
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestCryptoStore_Remove(t *testing.T) {
	s := newCryptoStore(t.TempDir(), shop)
	require.NoError(t, s.remove(), "nothing to remove")

	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0600))
	}
	require.NoError(t, s.remove())

	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		assert.NoFileExists(t, p)
	}
}

func TestEnableEncryption_RequiresDataDir(t *testing.T) {
	_, err := enableEncryption(context.Background(), nil, shop, "", slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_dir")
}
