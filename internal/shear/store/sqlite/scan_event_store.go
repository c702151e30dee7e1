package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/shopfloor/shearlock/internal/db"
	"github.com/shopfloor/shearlock/internal/shear/store"
)

// ScanEventStore persists the audit log.  Append-only: nothing in this
// type (or anywhere else in the core) updates or deletes a row.
type ScanEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewScanEventStore(db *sql.DB, writer *dbpkg.Worker) *ScanEventStore {
	return &ScanEventStore{db: db, writer: writer}
}

func (s *ScanEventStore) Append(ctx context.Context, rec store.ScanEventRecord) error {
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now().UTC()
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO scan_events(card_id, result, actor_name, scanned_at_ms)
VALUES (?, ?, ?, ?);
`, rec.CardID, rec.Result, rec.ActorName, rec.ScannedAt.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("Append scan event: %w", err)
		}
		return nil
	})
}

func (s *ScanEventStore) Recent(ctx context.Context, limit int) ([]store.ScanEventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, card_id, result, actor_name, scanned_at_ms
FROM scan_events
ORDER BY id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}
	defer rows.Close()

	var out []store.ScanEventRecord
	for rows.Next() {
		var rec store.ScanEventRecord
		var scannedMs int64
		if err := rows.Scan(&rec.ID, &rec.CardID, &rec.Result, &rec.ActorName, &scannedMs); err != nil {
			return nil, fmt.Errorf("Recent scan: %w", err)
		}
		rec.ScannedAt = time.UnixMilli(scannedMs).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ScanEventStore) CountForCard(ctx context.Context, cardID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM scan_events WHERE card_id = ?;
`, cardID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountForCard: %w", err)
	}
	return n, nil
}
