package infra

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// The history database key lives next to history.db as a hex string.
// 32 bytes, matching SQLCipher's 256-bit PRAGMA key.
const (
	historyKeyName = "history.key"
	historyKeySize = 32
)

// FileKeyProvider implements domain.KeyProvider for the encrypted
// history database. The key is stored hex-encoded so it can be fed to a
// sqlcipher shell as PRAGMA key = "x'...'" when inspecting the database
// by hand.
type FileKeyProvider struct {
	keyPath string
}

// NewFileKeyProvider returns a provider rooted at the daemon data
// directory, alongside the database the key unlocks.
func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return &FileKeyProvider{keyPath: filepath.Join(dataDir, historyKeyName)}
}

// GetKey reads and decodes the stored key.
func (p *FileKeyProvider) GetKey() ([]byte, error) {
	raw, err := os.ReadFile(p.keyPath)
	if err != nil {
		return nil, fmt.Errorf("read history key: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode history key: %w", err)
	}
	if len(key) != historyKeySize {
		return nil, fmt.Errorf("history key is %d bytes, want %d", len(key), historyKeySize)
	}
	return key, nil
}

// StoreKey writes the key hex-encoded, readable only by the owner.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if len(key) != historyKeySize {
		return fmt.Errorf("history key is %d bytes, want %d", len(key), historyKeySize)
	}
	if err := os.MkdirAll(filepath.Dir(p.keyPath), 0700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(p.keyPath, []byte(hex.EncodeToString(key)+"\n"), 0600); err != nil {
		return fmt.Errorf("write history key: %w", err)
	}
	return nil
}

// KeyExists reports whether a key file is present.
func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.keyPath)
	return err == nil
}

// EnsureKey returns the stored key, generating and persisting a fresh
// random one on first run. Losing the key file makes the history
// database unreadable; there is no recovery path.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key := make([]byte, historyKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate history key: %w", err)
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

var _ domain.KeyProvider = (*FileKeyProvider)(nil)
