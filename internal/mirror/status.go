package mirror

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SyncState is the outcome of the most recent sync attempt.
type SyncState string

const (
	SyncNever   SyncState = "never"
	SyncSuccess SyncState = "success"
	SyncFailed  SyncState = "failed"
)

// SyncStatus is process-wide session state: mutated by the mirror after
// every sync attempt, read by UI polling and health checks. Not persisted
// beyond the session.
type SyncStatus struct {
	mu sync.Mutex

	sessionID      uuid.UUID
	lastSyncTime   time.Time
	lastSyncStatus SyncState
	pendingRecords int
	isOnline       bool
	isSyncing      bool
}

// StatusSnapshot is a copyable view of the status at one instant.
type StatusSnapshot struct {
	SessionID      uuid.UUID `json:"session_id"`
	LastSyncTime   time.Time `json:"last_sync_time"`
	LastSyncStatus SyncState `json:"last_sync_status"`
	PendingRecords int       `json:"pending_records"`
	IsOnline       bool      `json:"is_online"`
	IsSyncing      bool      `json:"is_syncing"`
}

// NewSyncStatus returns a fresh status with a unique session id.
func NewSyncStatus() *SyncStatus {
	return &SyncStatus{
		sessionID:      uuid.New(),
		lastSyncStatus: SyncNever,
	}
}

// Snapshot returns a consistent copy of the current state.
func (s *SyncStatus) Snapshot() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatusSnapshot{
		SessionID:      s.sessionID,
		LastSyncTime:   s.lastSyncTime,
		LastSyncStatus: s.lastSyncStatus,
		PendingRecords: s.pendingRecords,
		IsOnline:       s.isOnline,
		IsSyncing:      s.isSyncing,
	}
}

func (s *SyncStatus) setOnline(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isOnline = online
}

func (s *SyncStatus) setSyncing(syncing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isSyncing = syncing
}

func (s *SyncStatus) setPending(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingRecords = n
}

func (s *SyncStatus) recordAttempt(state SyncState, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSyncStatus = state
	s.lastSyncTime = at
}
