package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserExists       = errors.New("card already enrolled")
	ErrUserNotFound     = errors.New("no such user")
	ErrRequestNotFound  = errors.New("no such pending request")
	ErrRequestDuplicate = errors.New("request already pending")
)

// User is an enrolled card holder.  Status gates authorization: only
// "active" users unlock the shear.
type User struct {
	CardID      string     `json:"card_id"`
	Name        string     `json:"name"`
	AccessLevel string     `json:"access_level"`
	Department  string     `json:"department"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	LastAccess  *time.Time `json:"last_access,omitempty"`
}

// AccessRequest is a card waiting for an administrator's approval.
type AccessRequest struct {
	CardID      string    `json:"card_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Department  string    `json:"department"`
	RequestedAt time.Time `json:"requested_at"`
}

// UserStore is the Directory: the authoritative, mutable set of
// enrolled users and pending requests, keyed by card identifier.
// Removal here is final for authorization purposes — a removed user is
// indistinguishable from a never-seen card — while the scan-event audit
// trail is deliberately untouched.
type UserStore interface {
	// LookupActiveUser returns the user for cardID if one exists with
	// active status, or (nil, nil) otherwise.
	LookupActiveUser(ctx context.Context, cardID string) (*User, error)

	// LookupPendingRequest returns the pending request for cardID, or
	// (nil, nil) if there is none.
	LookupPendingRequest(ctx context.Context, cardID string) (*AccessRequest, error)

	// RecordAccess stamps the user's last-access time.
	RecordAccess(ctx context.Context, cardID string, at time.Time) error

	AddUser(ctx context.Context, u User) error

	// RemoveUser deletes the user and any pending request for the card.
	// Scan events referencing the card are preserved.
	RemoveUser(ctx context.Context, cardID string) error

	AddPendingRequest(ctx context.Context, r AccessRequest) error

	// ApproveRequest promotes a pending request to an active user with
	// the given access level.
	ApproveRequest(ctx context.Context, cardID, accessLevel string) error

	RemovePendingRequest(ctx context.Context, cardID string) error

	ListUsers(ctx context.Context) ([]User, error)
	ListPendingRequests(ctx context.Context) ([]AccessRequest, error)
}
