// Package store persists verification outcomes in a SQLite archive.
//
// Each archived row carries an HMAC over its content so later edits to
// the archive itself are detectable. The HMAC key is derived from a
// master key file via HKDF-SHA256; the key file is created on first use.
package store

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/hkdf"

	"bluebook/internal/verifier"
)

// ErrNotFound is returned when a submission id does not exist.
var ErrNotFound = errors.New("store: submission not found")

// masterKeySize is the size of the generated master key in bytes.
const masterKeySize = 32

// hmacInfo is the HKDF domain separation label for row HMAC keys.
const hmacInfo = "bluebook:archive-hmac"

// Schema for the submission archive.
const schema = `
CREATE TABLE IF NOT EXISTS submissions (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    artifact_hash TEXT NOT NULL,
    session_id    TEXT NOT NULL,
    title         TEXT NOT NULL,
    name          TEXT NOT NULL,
    verdict       TEXT NOT NULL,
    verified_at   INTEGER NOT NULL,
    result_json   BLOB NOT NULL,
    row_hmac      BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_submissions_session ON submissions(session_id);
CREATE INDEX IF NOT EXISTS idx_submissions_verdict ON submissions(verdict, verified_at);
`

// Store is the SQLite submission archive.
type Store struct {
	db      *sql.DB
	hmacKey []byte
}

// Entry is one archived verification outcome.
type Entry struct {
	ID           int64           `json:"id"`
	ArtifactHash string          `json:"artifact_hash"`
	SessionID    string          `json:"session_id"`
	Title        string          `json:"title"`
	Name         string          `json:"name"`
	Verdict      string          `json:"verdict"`
	VerifiedAt   time.Time       `json:"verified_at"`
	Result       verifier.Result `json:"result"`

	// Tampered is set when the row HMAC no longer matches the row.
	Tampered bool `json:"tampered,omitempty"`
}

// Open opens or creates the archive at dbPath. The master key lives at
// keyPath and is generated with 0600 permissions when absent.
func Open(dbPath, keyPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	masterKey, err := loadOrCreateMasterKey(keyPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	hmacKey, err := deriveKey(masterKey, hmacInfo, 32)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, hmacKey: hmacKey}, nil
}

// Close closes the archive.
func (s *Store) Close() error {
	return s.db.Close()
}

// Archive inserts a verification outcome and returns its row id.
func (s *Store) Archive(artifactHash, sessionID string, res *verifier.Result) (int64, error) {
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return 0, fmt.Errorf("store: marshal result: %w", err)
	}

	verifiedAt := time.Now().UTC()
	mac := s.rowHMAC(artifactHash, sessionID, string(res.Verdict), verifiedAt.UnixNano(), resultJSON)

	result, err := s.db.Exec(`
		INSERT INTO submissions
			(artifact_hash, session_id, title, name, verdict, verified_at, result_json, row_hmac)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		artifactHash, sessionID, res.Title, res.Name, string(res.Verdict),
		verifiedAt.UnixNano(), resultJSON, mac)
	if err != nil {
		return 0, fmt.Errorf("store: insert submission: %w", err)
	}

	return result.LastInsertId()
}

// Get returns a single archived entry by row id.
func (s *Store) Get(id int64) (*Entry, error) {
	row := s.db.QueryRow(`
		SELECT id, artifact_hash, session_id, title, name, verdict, verified_at, result_json, row_hmac
		FROM submissions WHERE id = ?`, id)

	entry, err := s.scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entry, err
}

// List returns all archived entries, newest first, with each row's HMAC
// rechecked.
func (s *Store) List() ([]*Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, artifact_hash, session_id, title, name, verdict, verified_at, result_json, row_hmac
		FROM submissions ORDER BY verified_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: query submissions: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := s.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry      Entry
		verifiedAt int64
		resultJSON []byte
		mac        []byte
	)
	if err := row.Scan(&entry.ID, &entry.ArtifactHash, &entry.SessionID, &entry.Title,
		&entry.Name, &entry.Verdict, &verifiedAt, &resultJSON, &mac); err != nil {
		return nil, err
	}

	entry.VerifiedAt = time.Unix(0, verifiedAt).UTC()
	if err := json.Unmarshal(resultJSON, &entry.Result); err != nil {
		return nil, fmt.Errorf("store: unmarshal result for row %d: %w", entry.ID, err)
	}

	expected := s.rowHMAC(entry.ArtifactHash, entry.SessionID, entry.Verdict, verifiedAt, resultJSON)
	entry.Tampered = !hmac.Equal(mac, expected)

	return &entry, nil
}

// rowHMAC computes the integrity tag over one row's content.
func (s *Store) rowHMAC(artifactHash, sessionID, verdict string, verifiedAt int64, resultJSON []byte) []byte {
	mac := hmac.New(sha256.New, s.hmacKey)
	fmt.Fprintf(mac, "%s|%s|%s|%d|", artifactHash, sessionID, verdict, verifiedAt)
	mac.Write(resultJSON)
	return mac.Sum(nil)
}

// loadOrCreateMasterKey reads the master key file, generating it when
// missing.
func loadOrCreateMasterKey(keyPath string) ([]byte, error) {
	key, err := os.ReadFile(keyPath)
	if err == nil {
		if len(key) != masterKeySize {
			return nil, fmt.Errorf("store: master key is %d bytes, want %d", len(key), masterKeySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("store: read master key: %w", err)
	}

	key = make([]byte, masterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("store: generate master key: %w", err)
	}

	if dir := filepath.Dir(keyPath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("store: create key directory: %w", err)
		}
	}
	if err := os.WriteFile(keyPath, key, 0600); err != nil {
		return nil, fmt.Errorf("store: write master key: %w", err)
	}
	return key, nil
}

// deriveKey derives a purpose-specific key from the master key using
// HKDF with SHA-256.
func deriveKey(masterKey []byte, info string, size int) ([]byte, error) {
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	key := make([]byte, size)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("store: key derivation failed: %w", err)
	}
	return key, nil
}
