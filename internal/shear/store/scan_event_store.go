package store

import (
	"context"
	"time"
)

// Audit results written by the core.  A physical scan always writes
// "scan" first, followed by the outcome row.
const (
	ResultScan         = "scan"
	ResultUnlock       = "unlock"
	ResultPending      = "pending"
	ResultUnknown      = "unknown"
	ResultError        = "error"
	ResultManualLock   = "manual_lock"
	ResultManualUnlock = "manual_unlock"
	ResultTimeoutLock  = "timeout_lock"
	ResultMotionReset  = "motion_reset"
	ResultEmergency    = "emergency_stop"
	ResultErrorUnlock  = "error_unlock"
)

// ScanEventRecord is one immutable audit fact.  Records outlive the
// user account they reference; nothing in the core updates or deletes
// them.
type ScanEventRecord struct {
	ID        int64     `json:"id"`
	CardID    string    `json:"card_id"`
	Result    string    `json:"result"`
	ActorName string    `json:"actor_name,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}

// ScanEventStore persists scan events as an append-only audit log.
type ScanEventStore interface {
	Append(ctx context.Context, rec ScanEventRecord) error

	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]ScanEventRecord, error)

	// CountForCard reports how many audit rows reference the card.
	// Used to show what history survives a user removal.
	CountForCard(ctx context.Context, cardID string) (int64, error)
}
