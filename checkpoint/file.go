package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentsim/core"
)

// metaFile is the on-disk sidecar format written next to each payload. Keys
// stay flat so the sidecar remains greppable and tool friendly.
type metaFile struct {
	CheckpointID   string                `json:"checkpoint_id"`
	CheckpointName string                `json:"checkpoint_name"`
	SessionID      string                `json:"session_id"`
	Status         core.CheckpointStatus `json:"status"`
	CreatedAt      time.Time             `json:"created_at"`
	AgentsSummary  []string              `json:"agents_summary"`
	WorldsSummary  []string              `json:"worlds_summary"`
}

// FileStore persists checkpoints on the local filesystem. Each checkpoint is
// a payload file plus a ".meta" JSON sidecar; both are written via a
// temp-then-rename sequence so readers never observe partial content. Opening
// a store rescans the directory, so checkpoints survive process restarts.
type FileStore struct {
	dir string

	mu      sync.RWMutex
	records map[string]*core.Checkpoint
}

// NewFileStore opens (creating if needed) a file backed checkpoint store
// rooted at dir and loads any sidecars already present.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	s := &FileStore{dir: dir, records: make(map[string]*core.Checkpoint)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load rescans the directory for ".meta" sidecars and rebuilds the index.
func (s *FileStore) load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read checkpoint dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta") {
			continue
		}
		metaPath := filepath.Join(s.dir, entry.Name())
		raw, err := os.ReadFile(metaPath)
		if err != nil {
			return fmt.Errorf("read sidecar %s: %w", entry.Name(), err)
		}
		var meta metaFile
		if err := json.Unmarshal(raw, &meta); err != nil {
			return fmt.Errorf("decode sidecar %s: %w", entry.Name(), err)
		}
		s.records[meta.CheckpointID] = &core.Checkpoint{
			ID:        meta.CheckpointID,
			Name:      meta.CheckpointName,
			SessionID: meta.SessionID,
			Status:    meta.Status,
			File:      strings.TrimSuffix(metaPath, ".meta"),
			Metadata: core.CheckpointMetadata{
				AgentsSummary: meta.AgentsSummary,
				WorldsSummary: meta.WorldsSummary,
			},
			Created: meta.CreatedAt,
		}
	}
	return nil
}

// Save persists the payload and sidecar, then updates the in-memory index.
// When the checkpoint carries no explicit file path one is derived from the
// session id and checkpoint name inside the store directory.
func (s *FileStore) Save(ckpt *core.Checkpoint, payload []byte) error {
	if ckpt == nil || ckpt.ID == "" {
		return &core.ValidationError{Field: "checkpoint", Message: "checkpoint id must not be empty"}
	}
	path := ckpt.File
	if path == "" {
		// Include the checkpoint id so same-named checkpoints never collide.
		path = filepath.Join(s.dir, fmt.Sprintf("%s_checkpoint_%s_%s.json", core.ShortID(ckpt.SessionID), ckpt.Name, core.ShortID(ckpt.ID)))
	}
	if err := writeFileAtomic(path, payload); err != nil {
		return fmt.Errorf("write checkpoint payload: %w", err)
	}
	meta := metaFile{
		CheckpointID:   ckpt.ID,
		CheckpointName: ckpt.Name,
		SessionID:      ckpt.SessionID,
		Status:         ckpt.Status,
		CreatedAt:      ckpt.Created,
		AgentsSummary:  ckpt.Metadata.AgentsSummary,
		WorldsSummary:  ckpt.Metadata.WorldsSummary,
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint sidecar: %w", err)
	}
	if err := writeFileAtomic(path+".meta", raw); err != nil {
		return fmt.Errorf("write checkpoint sidecar: %w", err)
	}

	record := ckpt.Clone()
	record.File = path

	s.mu.Lock()
	s.records[ckpt.ID] = record
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the stored checkpoint record or a not-found error.
func (s *FileStore) Get(id string) (*core.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, core.NewNotFound("checkpoint", id)
	}
	return record.Clone(), nil
}

// Payload reads the snapshot bytes back from disk.
func (s *FileStore) Payload(id string) ([]byte, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, core.NewNotFound("checkpoint", id)
	}
	data, err := os.ReadFile(record.File)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint payload: %w", err)
	}
	return data, nil
}

// List returns the checkpoints belonging to a session ordered by creation
// time (id as tie breaker, so the order is stable across rescans).
func (s *FileStore) List(sessionID string) ([]*core.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*core.Checkpoint
	for _, record := range s.records {
		if record.SessionID == sessionID {
			out = append(out, record.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

// SetStatus updates the status in the index and rewrites the sidecar so the
// change survives a restart.
func (s *FileStore) SetStatus(id string, status core.CheckpointStatus) error {
	s.mu.Lock()
	record, ok := s.records[id]
	if ok {
		record.Status = status
		record = record.Clone()
	}
	s.mu.Unlock()
	if !ok {
		return core.NewNotFound("checkpoint", id)
	}

	meta := metaFile{
		CheckpointID:   record.ID,
		CheckpointName: record.Name,
		SessionID:      record.SessionID,
		Status:         record.Status,
		CreatedAt:      record.Created,
		AgentsSummary:  record.Metadata.AgentsSummary,
		WorldsSummary:  record.Metadata.WorldsSummary,
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint sidecar: %w", err)
	}
	if err := writeFileAtomic(record.File+".meta", raw); err != nil {
		return fmt.Errorf("write checkpoint sidecar: %w", err)
	}
	return nil
}

// Delete removes the payload, sidecar and index entry.
func (s *FileStore) Delete(id string) error {
	s.mu.Lock()
	record, ok := s.records[id]
	if ok {
		delete(s.records, id)
	}
	s.mu.Unlock()
	if !ok {
		return core.NewNotFound("checkpoint", id)
	}
	if err := os.Remove(record.File); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint payload: %w", err)
	}
	if err := os.Remove(record.File + ".meta"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint sidecar: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
