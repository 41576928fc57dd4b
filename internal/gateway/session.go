package gateway

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionState is the resumable part of a connection, as persisted.
type SessionState struct {
	ShardID    int
	ShardCount int
	SessionID  string
	Seq        *int64
	ResumeURL  string
	UpdatedAt  time.Time
}

// SessionStore persists resume state across connections and restarts.
type SessionStore interface {
	// Load returns nil, nil when nothing is stored for the shard.
	Load(ctx context.Context, shardID, shardCount int) (*SessionState, error)
	Save(ctx context.Context, st SessionState) error
	Delete(ctx context.Context, shardID, shardCount int) error
}

// MemoryStore is a process-local SessionStore.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[[2]int]SessionState
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[[2]int]SessionState)}
}

func (m *MemoryStore) Load(_ context.Context, shardID, shardCount int) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[[2]int{shardID, shardCount}]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *MemoryStore) Save(_ context.Context, st SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[[2]int{st.ShardID, st.ShardCount}] = st
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, shardID, shardCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, [2]int{shardID, shardCount})
	return nil
}

// ResumeManager tracks the session id, last sequence and resume URL of one
// shard and decides whether the next connection resumes. It is not safe for
// concurrent use; the owning connection loop is its only caller.
type ResumeManager struct {
	shardID    int
	shardCount int
	sessionID  string
	seq        int64
	hasSeq     bool
	resumeURL  string
	store      SessionStore
	logger     *zap.Logger
}

// NewResumeManager creates a ResumeManager. A nil store keeps state in memory only.
func NewResumeManager(shardID, shardCount int, store SessionStore, logger *zap.Logger) *ResumeManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResumeManager{
		shardID:    shardID,
		shardCount: shardCount,
		store:      store,
		logger:     logger,
	}
}

// Observe applies the sequence number of a dispatch. It returns false for a
// frame at or below the stored sequence of a live session, which has been
// delivered already and must not be routed again.
func (r *ResumeManager) Observe(seq int64) bool {
	if r.hasSeq && r.sessionID != "" && seq <= r.seq {
		return false
	}
	r.seq = seq
	r.hasSeq = true
	return true
}

// Seq returns the last applied sequence number.
func (r *ResumeManager) Seq() (int64, bool) {
	return r.seq, r.hasSeq
}

// SessionID returns the current session id, empty if none.
func (r *ResumeManager) SessionID() string {
	return r.sessionID
}

// ResumeURL returns the URL resumes must dial, empty if none was given.
func (r *ResumeManager) ResumeURL() string {
	return r.resumeURL
}

// Ready records the session established by READY.
func (r *ResumeManager) Ready(sessionID, resumeURL string) {
	r.sessionID = sessionID
	r.resumeURL = resumeURL
}

// Resumable reports whether a session id and a sequence are both known.
func (r *ResumeManager) Resumable() bool {
	return r.sessionID != "" && r.hasSeq
}

// Clear forgets the session; the next connection identifies.
func (r *ResumeManager) Clear() {
	r.sessionID = ""
	r.resumeURL = ""
	r.seq = 0
	r.hasSeq = false
}

// State returns the current state in its persisted form.
func (r *ResumeManager) State() SessionState {
	st := SessionState{
		ShardID:    r.shardID,
		ShardCount: r.shardCount,
		SessionID:  r.sessionID,
		ResumeURL:  r.resumeURL,
	}
	if r.hasSeq {
		seq := r.seq
		st.Seq = &seq
	}
	return st
}

// Load restores state saved by a previous process.
func (r *ResumeManager) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	st, err := r.store.Load(ctx, r.shardID, r.shardCount)
	if err != nil || st == nil {
		return err
	}
	r.sessionID = st.SessionID
	r.resumeURL = st.ResumeURL
	r.hasSeq = st.Seq != nil
	if st.Seq != nil {
		r.seq = *st.Seq
	}
	r.logger.Debug("restored session", zap.Bool("resumable", r.Resumable()))
	return nil
}

// Persist saves the current state, or deletes it when there is no session.
func (r *ResumeManager) Persist(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	if r.sessionID == "" {
		return r.store.Delete(ctx, r.shardID, r.shardCount)
	}
	st := r.State()
	st.UpdatedAt = time.Now().UTC()
	return r.store.Save(ctx, st)
}
