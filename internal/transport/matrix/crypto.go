// ABOUTME: End-to-end encryption for customer rooms using the mautrix crypto helper
// ABOUTME: One crypto database per bot account, discarded when the bot logs in as a new device

package matrix

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/crypto/cryptohelper"
	"maunium.net/go/mautrix/id"
)

// cryptoStore is the on-disk olm state of one bot account.
type cryptoStore struct {
	path string
	key  []byte
}

// newCryptoStore places the database for account under dataDir. The file
// name keeps only the safe characters of the user ID, so @shop:matrix.org
// maps to matrix-crypto-shop_matrix.org.db. The pickle key is derived from
// the account so two bots sharing a data dir cannot read each other's keys.
func newCryptoStore(dataDir string, account id.UserID) cryptoStore {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r == ':':
			return '_'
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return -1
	}, strings.TrimPrefix(account.String(), "@"))

	sum := sha256.Sum256([]byte("intake-gateway-crypto:" + account.String()))
	return cryptoStore{
		path: filepath.Join(dataDir, "matrix-crypto-"+slug+".db"),
		key:  sum[:],
	}
}

// ownedByOtherDevice reports whether the database was created for a device
// other than deviceID. A missing database or account row is not a mismatch.
func (s cryptoStore) ownedByOtherDevice(deviceID string) (bool, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	db, err := sql.Open("sqlite3", s.path)
	if err != nil {
		return false, err
	}
	defer db.Close()

	var stored string
	err = db.QueryRow("SELECT device_id FROM crypto_account LIMIT 1").Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored != deviceID, nil
}

// remove deletes the database together with its WAL files.
func (s cryptoStore) remove() error {
	for _, p := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

// enableEncryption attaches a crypto helper to client so replies to encrypted
// customer rooms are encrypted. The caller closes the helper when syncing stops.
func enableEncryption(ctx context.Context, client *mautrix.Client, account id.UserID, dataDir string, logger *slog.Logger) (*cryptohelper.CryptoHelper, error) {
	if dataDir == "" {
		return nil, errors.New("matrix data_dir is required when encryption is on")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	store := newCryptoStore(dataDir, account)

	// Keys stored for a previous device cannot decrypt anything for this one.
	stale, err := store.ownedByOtherDevice(client.DeviceID.String())
	if err != nil {
		logger.Debug("could not read stored device ID", "db", store.path, "error", err)
	}
	if stale {
		logger.Warn("bot logged in as a new device, discarding crypto database", "db", store.path)
		if err := store.remove(); err != nil {
			return nil, err
		}
	}

	helper, err := cryptohelper.NewCryptoHelper(client, store.key, store.path)
	if err != nil {
		return nil, fmt.Errorf("creating crypto helper: %w", err)
	}
	if err := helper.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing crypto helper: %w", err)
	}
	client.Crypto = helper

	logger.Info("encryption enabled", "db", store.path, "device", client.DeviceID)
	return helper, nil
}
