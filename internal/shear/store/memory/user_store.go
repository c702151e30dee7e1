package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopfloor/shearlock/internal/shear/store"
)

// UserStore is an in-memory Directory for tests and dev environments.
type UserStore struct {
	mu      sync.RWMutex
	users   map[string]store.User
	pending map[string]store.AccessRequest
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[string]store.User),
		pending: make(map[string]store.AccessRequest),
	}
}

func (s *UserStore) LookupActiveUser(_ context.Context, cardID string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.TrimSpace(cardID)]
	if !ok || u.Status != "active" {
		return nil, nil
	}
	out := u
	return &out, nil
}

func (s *UserStore) LookupPendingRequest(_ context.Context, cardID string) (*store.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.pending[strings.TrimSpace(cardID)]
	if !ok {
		return nil, nil
	}
	out := r
	return &out, nil
}

func (s *UserStore) RecordAccess(_ context.Context, cardID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[cardID]
	if !ok {
		return store.ErrUserNotFound
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	u.LastAccess = &at
	s.users[cardID] = u
	return nil
}

func (s *UserStore) AddUser(_ context.Context, u store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.CardID]; ok {
		return store.ErrUserExists
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Status == "" {
		u.Status = "active"
	}
	if u.AccessLevel == "" {
		u.AccessLevel = "user"
	}
	s.users[u.CardID] = u
	return nil
}

func (s *UserStore) RemoveUser(_ context.Context, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[cardID]; !ok {
		return store.ErrUserNotFound
	}
	delete(s.users, cardID)
	delete(s.pending, cardID)
	return nil
}

func (s *UserStore) AddPendingRequest(_ context.Context, r store.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[r.CardID]; ok {
		return store.ErrRequestDuplicate
	}
	if r.RequestedAt.IsZero() {
		r.RequestedAt = time.Now().UTC()
	}
	s.pending[r.CardID] = r
	return nil
}

func (s *UserStore) ApproveRequest(_ context.Context, cardID, accessLevel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.pending[cardID]
	if !ok {
		return store.ErrRequestNotFound
	}
	delete(s.pending, cardID)
	s.users[cardID] = store.User{
		CardID:      cardID,
		Name:        r.Name,
		AccessLevel: accessLevel,
		Department:  r.Department,
		Status:      "active",
		CreatedAt:   time.Now().UTC(),
	}
	return nil
}

func (s *UserStore) RemovePendingRequest(_ context.Context, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[cardID]; !ok {
		return store.ErrRequestNotFound
	}
	delete(s.pending, cardID)
	return nil
}

func (s *UserStore) ListUsers(_ context.Context) ([]store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *UserStore) ListPendingRequests(_ context.Context) ([]store.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.AccessRequest, 0, len(s.pending))
	for _, r := range s.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardID < out[j].CardID })
	return out, nil
}
