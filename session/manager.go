package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentsim/checkpoint"
	"github.com/hupe1980/agentsim/core"
	"github.com/hupe1980/agentsim/logging"
)

// Options configures a session Manager using the functional options pattern.
type Options struct {
	// Store persists sessions. Defaults to the in-memory implementation.
	Store core.SessionStore

	// Checkpoints persists checkpoint records and payloads. Defaults to the
	// in-memory implementation.
	Checkpoints core.CheckpointStore

	// CacheDir is where derived cache files are created when Begin is not
	// given an explicit path. Defaults to an "agentsim" directory under the
	// OS temp dir.
	CacheDir string

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// Manager owns the session lifecycle against a persona-simulation engine.
//
// Contract:
//   - All operations on one session id are serialized through a capacity-1
//     acquisition channel; distinct sessions never contend
//   - Begin acquires the cache file before the engine sees the session;
//     End releases it exactly once on every path
//   - Checkpoint flushes the engine first so the snapshot is complete
//   - End removes the session from the store, so a second End returns a
//     not-found error
//   - MaxDuration is advisory: End logs a warning when exceeded, nothing
//     is ever interrupted.
type Manager struct {
	engine      core.Engine
	store       core.SessionStore
	checkpoints core.CheckpointStore
	cacheDir    string
	logger      logging.Logger

	mu       sync.Mutex
	runtimes map[string]*sessionRuntime
}

// sessionRuntime carries the per-session concurrency gate and the cache file
// resource for the lifetime of the session.
type sessionRuntime struct {
	gate  chan struct{}
	cache *cacheFile
}

// NewManager creates a session Manager bound to the given engine. All
// dependencies have in-memory defaults suitable for tests and demos.
func NewManager(engine core.Engine, optFns ...func(o *Options)) *Manager {
	opts := Options{
		Store:       NewInMemoryStore(),
		Checkpoints: checkpoint.NewInMemoryStore(),
		CacheDir:    filepath.Join(os.TempDir(), "agentsim"),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Manager{
		engine:      engine,
		store:       opts.Store,
		checkpoints: opts.Checkpoints,
		cacheDir:    opts.CacheDir,
		logger:      opts.Logger,
		runtimes:    make(map[string]*sessionRuntime),
	}
}

// acquire serializes access to one session. It returns the runtime and a
// release func, or a not-found error when the session does not exist. A
// session known to the store but not to this manager (e.g. a durable store
// reopened by a fresh process) gets its runtime rehydrated on first access.
func (m *Manager) acquire(ctx context.Context, sessionID string) (*sessionRuntime, func(), error) {
	m.mu.Lock()
	rt, ok := m.runtimes[sessionID]
	if !ok {
		sess, err := m.store.Get(sessionID)
		if err != nil {
			m.mu.Unlock()
			return nil, nil, err
		}
		rt = &sessionRuntime{gate: make(chan struct{}, 1), cache: &cacheFile{path: sess.CacheFile}}
		m.runtimes[sessionID] = rt
	}
	m.mu.Unlock()

	select {
	case rt.gate <- struct{}{}:
		return rt, func() { <-rt.gate }, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (m *Manager) engineReady() error {
	if m.engine == nil {
		return &core.ValidationError{Field: "engine", Message: "no engine configured"}
	}
	return nil
}

// BeginOptions configure a single Begin call.
type BeginOptions struct {
	// Description is free-form context stored on the session.
	Description string

	// CacheFile overrides the derived cache file path
	// (default: "<safe-name>_<id8>.json" under the manager's cache dir).
	CacheFile string

	// MaxDuration is the advisory wall-time budget for the session.
	MaxDuration time.Duration
}

// Begin creates a session in status CREATED: it derives and acquires the
// cache file, announces the session to the engine and persists the record.
func (m *Manager) Begin(ctx context.Context, name string, optFns ...func(o *BeginOptions)) (*core.Session, error) {
	if err := m.engineReady(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, &core.ValidationError{Field: "name", Value: name, Message: "session name must not be empty"}
	}
	opts := BeginOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	id := core.NewID()
	cachePath := opts.CacheFile
	if cachePath == "" {
		cachePath = filepath.Join(m.cacheDir, fmt.Sprintf("%s_%s.json", safeFileName(name), core.ShortID(id)))
	}
	cache, err := acquireCacheFile(cachePath)
	if err != nil {
		return nil, err
	}

	sess := core.NewSession(id, name)
	sess.Description = opts.Description
	sess.CacheFile = cachePath
	sess.MaxDuration = opts.MaxDuration

	if err := m.engine.BeginSession(ctx, id, cachePath); err != nil {
		cache.release()
		return nil, core.NewEngineError("begin_session", err)
	}
	if err := m.store.Create(sess); err != nil {
		cache.release()
		return nil, err
	}

	m.mu.Lock()
	m.runtimes[id] = &sessionRuntime{gate: make(chan struct{}, 1), cache: cache}
	m.mu.Unlock()

	m.logger.Info("session.begin", "session_id", id, "name", name, "cache_file", cachePath)
	return sess, nil
}

// Checkpoint snapshots the session's cache state under a name (default
// "checkpoint_<id8>"). The session must be RUNNING or PAUSED. The engine is
// flushed first so the cache file bytes are a complete snapshot.
func (m *Manager) Checkpoint(ctx context.Context, sessionID, name string) (*core.Checkpoint, error) {
	if err := m.engineReady(); err != nil {
		return nil, err
	}
	rt, release, err := m.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := m.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Status.Active() {
		return nil, &core.ValidationError{
			Field:   "status",
			Value:   string(sess.Status),
			Message: "checkpoint requires a RUNNING or PAUSED session",
		}
	}

	id := core.NewID()
	if name == "" {
		name = "checkpoint_" + core.ShortID(id)
	}
	ckpt := core.NewCheckpoint(id, name, sessionID)
	ckpt.Metadata.AgentsSummary = append([]string{}, sess.AgentKeys...)
	ckpt.Metadata.WorldsSummary = append([]string{}, sess.Worlds...)
	if sess.CacheFile != "" {
		// The checkpoint id is part of the path so two checkpoints sharing a
		// user-supplied name never alias one payload file.
		base := strings.TrimSuffix(sess.CacheFile, filepath.Ext(sess.CacheFile))
		ckpt.File = fmt.Sprintf("%s_checkpoint_%s_%s.json", base, safeFileName(name), core.ShortID(id))
	}

	if err := m.engine.CheckpointSession(ctx, sessionID); err != nil {
		return nil, core.NewEngineError("checkpoint_session", err)
	}
	payload, err := rt.cache.snapshot()
	if err != nil {
		return nil, err
	}

	ckpt.Status = core.CheckpointSaved
	if err := m.checkpoints.Save(ckpt, payload); err != nil {
		ckpt.Status = core.CheckpointFailed
		m.logger.Error("session.checkpoint.save_failed", "session_id", sessionID, "checkpoint_id", id, "error", err)
		return nil, err
	}

	if err := sess.AppendCheckpoint(ckpt.ID); err != nil {
		return nil, err
	}
	if err := m.store.Update(sess); err != nil {
		return nil, err
	}

	m.logger.Info("session.checkpoint", "session_id", sessionID, "checkpoint_id", id, "name", name, "bytes", len(payload))
	return ckpt, nil
}

// RestoreRequest directs a Restore call.
type RestoreRequest struct {
	// CheckpointID names the snapshot to restore from.
	CheckpointID string

	// SessionID is the target for an in-place restore. Empty defaults to the
	// checkpoint's own session. Ignored when NewSession is set.
	SessionID string

	// NewSession restores into a fresh session instead of re-seeding an
	// existing one.
	NewSession bool
}

// Restore applies a checkpoint payload. With NewSession a fresh session named
// "Restored_<checkpoint>_<id8>" is created, its registries rebuilt from the
// checkpoint metadata and its metadata linked back via "restored_from".
// Otherwise the target session's cache is re-seeded in place. Either way the
// restored session ends up RUNNING and the checkpoint is marked RESTORED.
func (m *Manager) Restore(ctx context.Context, req RestoreRequest) (*core.Session, error) {
	if err := m.engineReady(); err != nil {
		return nil, err
	}
	ckpt, err := m.checkpoints.Get(req.CheckpointID)
	if err != nil {
		return nil, err
	}
	payload, err := m.checkpoints.Payload(req.CheckpointID)
	if err != nil {
		return nil, err
	}

	if req.NewSession {
		return m.restoreIntoNew(ctx, ckpt, payload)
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = ckpt.SessionID
	}

	rt, release, err := m.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := m.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, &core.ValidationError{
			Field:   "status",
			Value:   string(sess.Status),
			Message: "cannot restore into a terminal session",
		}
	}

	if err := rt.cache.seed(payload); err != nil {
		return nil, err
	}
	if err := m.engine.BeginSession(ctx, sessionID, sess.CacheFile); err != nil {
		return nil, core.NewEngineError("begin_session", err)
	}
	for _, key := range ckpt.Metadata.AgentsSummary {
		sess.RegisterAgentKey(key)
	}
	if err := sess.Transition(core.SessionRunning); err != nil {
		return nil, err
	}
	sess.SetMetadata("restored_from", ckpt.ID)
	if err := m.store.Update(sess); err != nil {
		return nil, err
	}
	if err := m.checkpoints.SetStatus(ckpt.ID, core.CheckpointRestored); err != nil {
		m.logger.Warn("session.restore.mark_failed", "checkpoint_id", ckpt.ID, "error", err)
	}

	m.logger.Info("session.restore", "session_id", sessionID, "checkpoint_id", ckpt.ID, "new_session", false)
	return sess, nil
}

// restoreIntoNew builds a fresh session seeded with the checkpoint payload.
func (m *Manager) restoreIntoNew(ctx context.Context, ckpt *core.Checkpoint, payload []byte) (*core.Session, error) {
	id := core.NewID()
	name := fmt.Sprintf("Restored_%s_%s", ckpt.Name, core.ShortID(id))
	cachePath := filepath.Join(m.cacheDir, fmt.Sprintf("%s_%s.json", safeFileName(name), core.ShortID(id)))

	cache, err := acquireCacheFile(cachePath)
	if err != nil {
		return nil, err
	}
	if err := cache.seed(payload); err != nil {
		cache.release()
		return nil, err
	}

	sess := core.NewSession(id, name)
	sess.CacheFile = cachePath
	sess.SetMetadata("restored_from", ckpt.ID)
	for _, key := range ckpt.Metadata.AgentsSummary {
		sess.RegisterAgentKey(key)
	}
	for _, world := range ckpt.Metadata.WorldsSummary {
		sess.RegisterWorld(world)
	}

	if err := m.engine.BeginSession(ctx, id, cachePath); err != nil {
		cache.release()
		return nil, core.NewEngineError("begin_session", err)
	}
	if err := sess.Transition(core.SessionRunning); err != nil {
		cache.release()
		return nil, err
	}
	if err := m.store.Create(sess); err != nil {
		cache.release()
		return nil, err
	}

	m.mu.Lock()
	m.runtimes[id] = &sessionRuntime{gate: make(chan struct{}, 1), cache: cache}
	m.mu.Unlock()

	if err := m.checkpoints.SetStatus(ckpt.ID, core.CheckpointRestored); err != nil {
		m.logger.Warn("session.restore.mark_failed", "checkpoint_id", ckpt.ID, "error", err)
	}

	m.logger.Info("session.restore", "session_id", id, "checkpoint_id", ckpt.ID, "new_session", true)
	return sess, nil
}

// Summary condenses a finished session for callers of End.
type Summary struct {
	SessionID    string             `json:"session_id"`
	Name         string             `json:"name"`
	Status       core.SessionStatus `json:"status"`
	Duration     time.Duration      `json:"duration"`
	Interactions int                `json:"interactions"`
	Checkpoints  int                `json:"checkpoints"`
}

// End finishes the session: the status becomes COMPLETED unless it already is
// terminal (FAILED and STOPPED are preserved), the engine drops its
// per-session state, the cache file is released exactly once and the session
// is removed from the store. A second End returns a not-found error.
//
// Engine teardown failures are logged, not returned; by then the session is
// over either way.
func (m *Manager) End(ctx context.Context, sessionID string) (*Summary, error) {
	if err := m.engineReady(); err != nil {
		return nil, err
	}
	rt, release, err := m.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := m.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if sess.MaxDuration > 0 && sess.Age() > sess.MaxDuration {
		m.logger.Warn("session.end.max_duration_exceeded",
			"session_id", sessionID, "age", sess.Age().String(), "max_duration", sess.MaxDuration.String())
	}

	if !sess.Status.Terminal() {
		if err := sess.Transition(core.SessionCompleted); err != nil {
			return nil, err
		}
	}

	if err := m.engine.EndSession(ctx, sessionID); err != nil {
		m.logger.Warn("session.end.engine_teardown_failed", "session_id", sessionID, "error", err)
	}
	rt.cache.release()

	if err := m.store.Delete(sessionID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	delete(m.runtimes, sessionID)
	m.mu.Unlock()

	summary := &Summary{
		SessionID:    sess.ID,
		Name:         sess.Name,
		Status:       sess.Status,
		Duration:     sess.Age(),
		Interactions: sess.Interactions,
		Checkpoints:  len(sess.Checkpoints),
	}
	m.logger.Info("session.end",
		"session_id", sessionID, "status", string(summary.Status),
		"interactions", summary.Interactions, "checkpoints", summary.Checkpoints)
	return summary, nil
}

// Pause suspends a RUNNING session.
func (m *Manager) Pause(ctx context.Context, sessionID string) error {
	_, err := m.transition(ctx, sessionID, core.SessionPaused)
	return err
}

// Resume reactivates a PAUSED session.
func (m *Manager) Resume(ctx context.Context, sessionID string) error {
	_, err := m.transition(ctx, sessionID, core.SessionRunning)
	return err
}

// Stop marks the session STOPPED. The stop is cooperative: in-flight engine
// calls are never interrupted, the status change only prevents further runs.
func (m *Manager) Stop(ctx context.Context, sessionID string) error {
	_, err := m.transition(ctx, sessionID, core.SessionStopped)
	return err
}

// MarkRunning flips the session to RUNNING, used by the facade when a
// simulation starts executing.
func (m *Manager) MarkRunning(ctx context.Context, sessionID string) error {
	_, err := m.transition(ctx, sessionID, core.SessionRunning)
	return err
}

// MarkFailed flips the session to FAILED after an engine failure.
func (m *Manager) MarkFailed(ctx context.Context, sessionID string) error {
	_, err := m.transition(ctx, sessionID, core.SessionFailed)
	return err
}

func (m *Manager) transition(ctx context.Context, sessionID string, to core.SessionStatus) (*core.Session, error) {
	_, release, err := m.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	sess, err := m.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Transition(to); err != nil {
		return nil, err
	}
	if err := m.store.Update(sess); err != nil {
		return nil, err
	}
	m.logger.Debug("session.transition", "session_id", sessionID, "status", string(to))
	return sess, nil
}

// RegisterAgent records an agent cache key on the session registry.
func (m *Manager) RegisterAgent(ctx context.Context, sessionID, key string) error {
	return m.updateRegistry(ctx, sessionID, func(sess *core.Session) {
		sess.RegisterAgentKey(key)
	})
}

// RegisterWorld records a world name on the session registry.
func (m *Manager) RegisterWorld(ctx context.Context, sessionID, name string) error {
	return m.updateRegistry(ctx, sessionID, func(sess *core.Session) {
		sess.RegisterWorld(name)
	})
}

// AddInteractions increments the session's interaction counter.
func (m *Manager) AddInteractions(ctx context.Context, sessionID string, n int) error {
	return m.updateRegistry(ctx, sessionID, func(sess *core.Session) {
		sess.AddInteractions(n)
	})
}

func (m *Manager) updateRegistry(ctx context.Context, sessionID string, mutate func(sess *core.Session)) error {
	_, release, err := m.acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer release()

	sess, err := m.store.Get(sessionID)
	if err != nil {
		return err
	}
	mutate(sess)
	return m.store.Update(sess)
}

// Get returns a snapshot of the session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*core.Session, error) {
	return m.store.Get(sessionID)
}

// List returns snapshots of all known sessions.
func (m *Manager) List(ctx context.Context) ([]*core.Session, error) {
	return m.store.List()
}

// Checkpoints returns the session's checkpoints in save order.
func (m *Manager) Checkpoints(ctx context.Context, sessionID string) ([]*core.Checkpoint, error) {
	return m.checkpoints.List(sessionID)
}
