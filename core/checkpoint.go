package core

import "time"

// CheckpointStatus enumerates the lifecycle states of a checkpoint.
type CheckpointStatus string

const (
	// CheckpointCreated is the initial status before the snapshot is persisted.
	CheckpointCreated CheckpointStatus = "CREATED"
	// CheckpointSaved indicates the snapshot was persisted successfully.
	CheckpointSaved CheckpointStatus = "SAVED"
	// CheckpointRestored indicates the snapshot was applied to a session.
	CheckpointRestored CheckpointStatus = "RESTORED"
	// CheckpointFailed indicates the snapshot could not be persisted.
	CheckpointFailed CheckpointStatus = "FAILED"
)

// CheckpointMetadata summarizes the session state captured by a checkpoint.
// Summaries carry names only; handles are reconstructed lazily on restore.
type CheckpointMetadata struct {
	AgentsSummary []string `json:"agents_summary"`
	WorldsSummary []string `json:"worlds_summary"`
}

// Checkpoint is a named, persisted snapshot of session state enabling later
// restoration. After a successful save it should be treated as immutable
// except for the status flip to RESTORED.
type Checkpoint struct {
	ID        string             `json:"checkpoint_id"`
	Name      string             `json:"checkpoint_name"`
	SessionID string             `json:"session_id"`
	Status    CheckpointStatus   `json:"status"`
	File      string             `json:"file,omitempty"`
	Metadata  CheckpointMetadata `json:"metadata"`
	Created   time.Time          `json:"created_at"`
}

// NewCheckpoint creates a checkpoint in status CREATED bound to a session.
func NewCheckpoint(id, name, sessionID string) *Checkpoint {
	return &Checkpoint{
		ID:        id,
		Name:      name,
		SessionID: sessionID,
		Status:    CheckpointCreated,
		Created:   time.Now().UTC(),
	}
}

// Clone returns a copy of the checkpoint safe for independent mutation.
func (c *Checkpoint) Clone() *Checkpoint {
	clone := *c
	clone.Metadata.AgentsSummary = make([]string, len(c.Metadata.AgentsSummary))
	copy(clone.Metadata.AgentsSummary, c.Metadata.AgentsSummary)
	clone.Metadata.WorldsSummary = make([]string, len(c.Metadata.WorldsSummary))
	copy(clone.Metadata.WorldsSummary, c.Metadata.WorldsSummary)
	return &clone
}

// CheckpointStore persists checkpoints together with their opaque payload
// (a snapshot of the session cache file; the store never parses it).
type CheckpointStore interface {
	// Save persists the checkpoint record and its payload atomically.
	Save(ckpt *Checkpoint, payload []byte) error

	// Get returns the checkpoint record by id.
	Get(id string) (*Checkpoint, error)

	// Payload returns the snapshot bytes saved with the checkpoint.
	Payload(id string) ([]byte, error)

	// List returns the checkpoints belonging to a session in save order.
	List(sessionID string) ([]*Checkpoint, error)

	// SetStatus updates the status of a stored checkpoint.
	SetStatus(id string, status CheckpointStatus) error

	// Delete removes a checkpoint and its payload.
	Delete(id string) error
}
