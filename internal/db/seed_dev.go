package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SeedDev inserts a couple of well-known test badges so a dev build has
// something to scan against.  Idempotent.
func SeedDev(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC().UnixMilli()

	seed := []struct {
		cardID, name, level, dept string
	}{
		{"1001", "Test Admin", "admin", "Administration"},
		{"1002", "Test Operator", "user", "Operations"},
	}

	for _, u := range seed {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO users(card_id, name, access_level, department, status, created_at_ms)
VALUES (?, ?, ?, ?, 'active', ?);
`, u.cardID, u.name, u.level, u.dept, now); err != nil {
			return fmt.Errorf("seed user %s: %w", u.cardID, err)
		}
	}

	return nil
}
