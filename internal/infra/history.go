package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/site_block/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const historyDBName = "history.db"

// EncryptedHistory implements domain.HistoryStore using a SQLCipher
// encrypted SQLite database. Session history and distraction events are
// personal data; they stay encrypted at rest.
type EncryptedHistory struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedHistory opens (or creates) the encrypted history database.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedHistory(dataDir string, key []byte) (*EncryptedHistory, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, historyDBName)
	keyHex := hex.EncodeToString(key)

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	h := &EncryptedHistory{db: db, dbPath: dbPath}
	if err := h.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return h, nil
}

func (h *EncryptedHistory) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		focused_minutes INTEGER NOT NULL,
		completed INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS distractions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_distractions_domain_at ON distractions(domain, at);
	`
	_, err := h.db.Exec(schema)
	return err
}

// AppendSession stores one finished or aborted session.
func (h *EncryptedHistory) AppendSession(rec domain.SessionRecord) error {
	completed := 0
	if rec.Completed {
		completed = 1
	}
	_, err := h.db.Exec(`
		INSERT OR REPLACE INTO sessions (id, started_at, ended_at, duration_seconds, focused_minutes, completed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt, rec.EndedAt, rec.DurationSecs, rec.FocusedMinutes, completed,
	)
	return err
}

// RecentSessions returns up to limit sessions, newest first.
func (h *EncryptedHistory) RecentSessions(limit int) ([]domain.SessionRecord, error) {
	rows, err := h.db.Query(`
		SELECT id, started_at, ended_at, duration_seconds, focused_minutes, completed
		FROM sessions ORDER BY ended_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SessionRecord
	for rows.Next() {
		var rec domain.SessionRecord
		var completed int
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.EndedAt, &rec.DurationSecs, &rec.FocusedMinutes, &completed); err != nil {
			return nil, err
		}
		rec.Completed = completed == 1
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordDistraction stores one blocked-page hit / override event.
func (h *EncryptedHistory) RecordDistraction(d string, at time.Time) error {
	_, err := h.db.Exec(`INSERT INTO distractions (domain, at) VALUES (?, ?)`, d, at.Unix())
	return err
}

// DistractionCount counts events for a domain since the given time.
func (h *EncryptedHistory) DistractionCount(d string, since time.Time) (int, error) {
	var n int
	err := h.db.QueryRow(`SELECT COUNT(*) FROM distractions WHERE domain = ? AND at >= ?`,
		d, since.Unix()).Scan(&n)
	return n, err
}

// TotalDistractions counts all events ever recorded.
func (h *EncryptedHistory) TotalDistractions() (int, error) {
	var n int
	err := h.db.QueryRow(`SELECT COUNT(*) FROM distractions`).Scan(&n)
	return n, err
}

// Prune deletes sessions and events older than the cutoff.
func (h *EncryptedHistory) Prune(before time.Time) error {
	cutoff := before.Unix()
	if _, err := h.db.Exec(`DELETE FROM sessions WHERE ended_at < ?`, cutoff); err != nil {
		return err
	}
	_, err := h.db.Exec(`DELETE FROM distractions WHERE at < ?`, cutoff)
	return err
}

// Close releases the database connection.
func (h *EncryptedHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Ensure EncryptedHistory implements domain.HistoryStore.
var _ domain.HistoryStore = (*EncryptedHistory)(nil)
