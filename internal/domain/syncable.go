package domain

import "time"

// Syncable carries the bookkeeping fields every locally replicated entity
// needs: when it was created, when it was last written locally, and whether
// the server has acknowledged this exact state.
type Syncable struct {
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
	ID           string    `json:"id"`
	Synced       bool      `json:"synced"`
}

// InitTimestamps stamps a freshly created entity. CreatedAt is preserved if
// the caller already set it (replaying server data keeps the server's value).
func (s *Syncable) InitTimestamps() {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.LastModified = now
}

// Touch records a local write. Every write invalidates sync state; the sync
// engine re-marks the entity as synced in a separate, explicit step after the
// server acknowledges it.
func (s *Syncable) Touch() {
	s.LastModified = time.Now()
	s.Synced = false
}

// MarkSynced records server acknowledgement of the current state.
func (s *Syncable) MarkSynced() {
	s.Synced = true
}
