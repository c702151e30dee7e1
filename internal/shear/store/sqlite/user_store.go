package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/shopfloor/shearlock/internal/db"
	"github.com/shopfloor/shearlock/internal/shear/store"
)

// UserStore is the SQLite-backed Directory.  Reads go straight to the
// connection; all writes funnel through the single-writer Worker.
type UserStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewUserStore(db *sql.DB, writer *dbpkg.Worker) *UserStore {
	return &UserStore{db: db, writer: writer}
}

func (s *UserStore) LookupActiveUser(ctx context.Context, cardID string) (*store.User, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
SELECT card_id, name, access_level, department, status, created_at_ms, last_access_ms
FROM users
WHERE card_id = ? AND status = 'active';
`, cardID)

	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupActiveUser: %w", err)
	}
	return u, nil
}

func (s *UserStore) LookupPendingRequest(ctx context.Context, cardID string) (*store.AccessRequest, error) {
	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		return nil, nil
	}

	var r store.AccessRequest
	var requestedMs int64
	err := s.db.QueryRowContext(ctx, `
SELECT card_id, name, email, department, requested_at_ms
FROM pending_requests
WHERE card_id = ?;
`, cardID).Scan(&r.CardID, &r.Name, &r.Email, &r.Department, &requestedMs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LookupPendingRequest: %w", err)
	}
	r.RequestedAt = time.UnixMilli(requestedMs).UTC()
	return &r, nil
}

func (s *UserStore) RecordAccess(ctx context.Context, cardID string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE users SET last_access_ms = ? WHERE card_id = ?;
`, at.UTC().UnixMilli(), cardID)
		if err != nil {
			return fmt.Errorf("RecordAccess: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrUserNotFound
		}
		return nil
	})
}

func (s *UserStore) AddUser(ctx context.Context, u store.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Status == "" {
		u.Status = "active"
	}
	if u.AccessLevel == "" {
		u.AccessLevel = "user"
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO users(card_id, name, access_level, department, status, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, u.CardID, u.Name, u.AccessLevel, u.Department, u.Status, u.CreatedAt.UTC().UnixMilli())
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return store.ErrUserExists
			}
			return fmt.Errorf("AddUser: %w", err)
		}
		return nil
	})
}

// RemoveUser clears the card from both operational tables in one
// transaction.  scan_events rows are intentionally left alone.
func (s *UserStore) RemoveUser(ctx context.Context, cardID string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE card_id = ?;`, cardID)
		if err != nil {
			return fmt.Errorf("RemoveUser: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrUserNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_requests WHERE card_id = ?;`, cardID); err != nil {
			return fmt.Errorf("RemoveUser pending: %w", err)
		}
		return nil
	})
}

func (s *UserStore) AddPendingRequest(ctx context.Context, r store.AccessRequest) error {
	if r.RequestedAt.IsZero() {
		r.RequestedAt = time.Now().UTC()
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO pending_requests(card_id, name, email, department, requested_at_ms)
VALUES (?, ?, ?, ?, ?);
`, r.CardID, r.Name, r.Email, r.Department, r.RequestedAt.UTC().UnixMilli())
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return store.ErrRequestDuplicate
			}
			return fmt.Errorf("AddPendingRequest: %w", err)
		}
		return nil
	})
}

func (s *UserStore) ApproveRequest(ctx context.Context, cardID, accessLevel string) error {
	if accessLevel == "" {
		accessLevel = "user"
	}
	now := time.Now().UTC().UnixMilli()
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var name, dept string
		err := tx.QueryRowContext(ctx, `
SELECT name, department FROM pending_requests WHERE card_id = ?;
`, cardID).Scan(&name, &dept)
		if err == sql.ErrNoRows {
			return store.ErrRequestNotFound
		}
		if err != nil {
			return fmt.Errorf("ApproveRequest lookup: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO users(card_id, name, access_level, department, status, created_at_ms)
VALUES (?, ?, ?, ?, 'active', ?);
`, cardID, name, accessLevel, dept, now); err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return store.ErrUserExists
			}
			return fmt.Errorf("ApproveRequest insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_requests WHERE card_id = ?;`, cardID); err != nil {
			return fmt.Errorf("ApproveRequest delete: %w", err)
		}
		return nil
	})
}

func (s *UserStore) RemovePendingRequest(ctx context.Context, cardID string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM pending_requests WHERE card_id = ?;`, cardID)
		if err != nil {
			return fmt.Errorf("RemovePendingRequest: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrRequestNotFound
		}
		return nil
	})
}

func (s *UserStore) ListUsers(ctx context.Context) ([]store.User, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT card_id, name, access_level, department, status, created_at_ms, last_access_ms
FROM users
ORDER BY name;
`)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	defer rows.Close()

	var out []store.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ListUsers scan: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *UserStore) ListPendingRequests(ctx context.Context) ([]store.AccessRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT card_id, name, email, department, requested_at_ms
FROM pending_requests
ORDER BY requested_at_ms;
`)
	if err != nil {
		return nil, fmt.Errorf("ListPendingRequests: %w", err)
	}
	defer rows.Close()

	var out []store.AccessRequest
	for rows.Next() {
		var r store.AccessRequest
		var requestedMs int64
		if err := rows.Scan(&r.CardID, &r.Name, &r.Email, &r.Department, &requestedMs); err != nil {
			return nil, fmt.Errorf("ListPendingRequests scan: %w", err)
		}
		r.RequestedAt = time.UnixMilli(requestedMs).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*store.User, error) {
	var u store.User
	var createdMs int64
	var lastAccessMs sql.NullInt64
	if err := row.Scan(&u.CardID, &u.Name, &u.AccessLevel, &u.Department, &u.Status, &createdMs, &lastAccessMs); err != nil {
		return nil, err
	}
	u.CreatedAt = time.UnixMilli(createdMs).UTC()
	if lastAccessMs.Valid {
		t := time.UnixMilli(lastAccessMs.Int64).UTC()
		u.LastAccess = &t
	}
	return &u, nil
}
