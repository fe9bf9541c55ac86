package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentsim/core"
	_ "modernc.org/sqlite" // SQLite driver
)

// schema is applied on every open; IF NOT EXISTS keeps reopening idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL,
	cache_file   TEXT NOT NULL DEFAULT '',
	max_duration INTEGER NOT NULL DEFAULT 0,
	agent_keys   TEXT NOT NULL DEFAULT '[]',
	worlds       TEXT NOT NULL DEFAULT '[]',
	interactions INTEGER NOT NULL DEFAULT 0,
	checkpoints  TEXT NOT NULL DEFAULT '[]',
	metadata     TEXT NOT NULL DEFAULT '{}',
	created      TEXT NOT NULL,
	updated      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions (status);
`

const sessionColumns = `id, name, description, status, cache_file, max_duration,
	agent_keys, worlds, interactions, checkpoints, metadata, created, updated`

// SQLiteStore is a durable SessionStore backed by a single SQLite file.
// Registries and metadata are JSON-encoded into TEXT columns; times are
// stored as RFC 3339 strings. The connection pool is capped at one
// connection, which sidesteps SQLITE_BUSY under concurrent use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and applies
// the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create inserts the session. A duplicate id is reported as a ValidationError
// so callers can match it the same way as with the in-memory store.
func (s *SQLiteStore) Create(sess *core.Session) error {
	agentKeys, worlds, checkpoints, metadata, err := encodeRegistries(sess)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Description, string(sess.Status), sess.CacheFile,
		int64(sess.MaxDuration), agentKeys, worlds, sess.Interactions, checkpoints,
		metadata, sess.Created.UTC().Format(time.RFC3339Nano), sess.Updated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return &core.ValidationError{Field: "id", Value: sess.ID, Message: "session already exists"}
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get returns the stored session or a not-found error.
func (s *SQLiteStore) Get(id string) (*core.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFound("session", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return sess, nil
}

// Update overwrites the stored row for the session id.
func (s *SQLiteStore) Update(sess *core.Session) error {
	agentKeys, worlds, checkpoints, metadata, err := encodeRegistries(sess)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`UPDATE sessions SET
		name = ?, description = ?, status = ?, cache_file = ?, max_duration = ?,
		agent_keys = ?, worlds = ?, interactions = ?, checkpoints = ?, metadata = ?,
		created = ?, updated = ?
		WHERE id = ?`,
		sess.Name, sess.Description, string(sess.Status), sess.CacheFile,
		int64(sess.MaxDuration), agentKeys, worlds, sess.Interactions, checkpoints,
		metadata, sess.Created.UTC().Format(time.RFC3339Nano), sess.Updated.UTC().Format(time.RFC3339Nano),
		sess.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if affected == 0 {
		return core.NewNotFound("session", sess.ID)
	}
	return nil
}

// Delete removes the session row.
func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		return core.NewNotFound("session", id)
	}
	return nil
}

// List returns all stored sessions ordered by creation time.
func (s *SQLiteStore) List() ([]*core.Session, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY created, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*core.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// encodeRegistries JSON-encodes the session's slice/map fields for storage.
func encodeRegistries(sess *core.Session) (agentKeys, worlds, checkpoints, metadata string, err error) {
	encode := func(v any) (string, error) {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode session field: %w", err)
		}
		return string(raw), nil
	}
	if agentKeys, err = encode(sess.AgentKeys); err != nil {
		return
	}
	if worlds, err = encode(sess.Worlds); err != nil {
		return
	}
	if checkpoints, err = encode(sess.Checkpoints); err != nil {
		return
	}
	metadata, err = encode(sess.Metadata)
	return
}

// rowScanner lets scanSession work on both QueryRow and Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*core.Session, error) {
	var (
		sess        core.Session
		status      string
		maxDuration int64
		agentKeys   string
		worlds      string
		checkpoints string
		metadata    string
		created     string
		updated     string
	)
	if err := row.Scan(&sess.ID, &sess.Name, &sess.Description, &status, &sess.CacheFile,
		&maxDuration, &agentKeys, &worlds, &sess.Interactions, &checkpoints, &metadata,
		&created, &updated); err != nil {
		return nil, err
	}
	sess.Status = core.SessionStatus(status)
	sess.MaxDuration = time.Duration(maxDuration)
	if err := json.Unmarshal([]byte(agentKeys), &sess.AgentKeys); err != nil {
		return nil, fmt.Errorf("decode agent keys: %w", err)
	}
	if err := json.Unmarshal([]byte(worlds), &sess.Worlds); err != nil {
		return nil, fmt.Errorf("decode worlds: %w", err)
	}
	if err := json.Unmarshal([]byte(checkpoints), &sess.Checkpoints); err != nil {
		return nil, fmt.Errorf("decode checkpoints: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("decode created: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("decode updated: %w", err)
	}
	sess.Created = createdAt
	sess.Updated = updatedAt
	return &sess, nil
}
