package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopfloor/shearlock/internal/shear/store"
)

// Maintenance operations for the audit log.  These are the one sanctioned
// exception to append-only: offline cleanup of legacy data, run from the
// admin tool, never from the server.

// PurgeOperational deletes state-transition rows (manual locks, timer
// expiries, motion resets) from the audit log, keeping only rows that
// describe actual card presentations.  Returns the number deleted.
func (s *ScanEventStore) PurgeOperational(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM scan_events
WHERE result IN (?, ?, ?, ?, ?, ?);
`, store.ResultManualLock, store.ResultManualUnlock, store.ResultTimeoutLock,
			store.ResultMotionReset, store.ResultEmergency, store.ResultErrorUnlock)
		if err != nil {
			return fmt.Errorf("PurgeOperational: %w", err)
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

// DedupeScans collapses runs of "scan" rows for the same card closer
// together than window, keeping the earliest row of each run.  Cleans up
// history recorded before reader-side duplicate suppression existed.
func (s *ScanEventStore) DedupeScans(ctx context.Context, window time.Duration) (int64, error) {
	windowMs := window.Milliseconds()
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT id, card_id, scanned_at_ms
FROM scan_events
WHERE result = ?
ORDER BY card_id, scanned_at_ms, id;
`, store.ResultScan)
		if err != nil {
			return fmt.Errorf("DedupeScans select: %w", err)
		}

		var doomed []int64
		var lastCard string
		var lastMs int64
		for rows.Next() {
			var id, ms int64
			var card string
			if err := rows.Scan(&id, &card, &ms); err != nil {
				rows.Close()
				return fmt.Errorf("DedupeScans scan: %w", err)
			}
			if card == lastCard && ms-lastMs < windowMs {
				doomed = append(doomed, id)
				continue
			}
			lastCard, lastMs = card, ms
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("DedupeScans rows: %w", err)
		}
		rows.Close()

		for _, id := range doomed {
			if _, err := tx.ExecContext(ctx, `DELETE FROM scan_events WHERE id = ?;`, id); err != nil {
				return fmt.Errorf("DedupeScans delete: %w", err)
			}
		}
		deleted = int64(len(doomed))
		return nil
	})
	return deleted, err
}
