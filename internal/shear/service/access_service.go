// Package service implements the access decision engine: it turns a
// completed card scan into an authorize/pending/unknown/error outcome,
// writes the audit trail, and drives the lock controller.
package service

import (
	"context"
	"log"
	"time"

	"github.com/shopfloor/shearlock/internal/shear/broadcast"
	"github.com/shopfloor/shearlock/internal/shear/store"
	"github.com/shopfloor/shearlock/internal/shear/types"
)

// LockControl is the slice of the lock controller the decision engine
// needs: grant access or flash the deny LED.
type LockControl interface {
	Unlock(actor, cardID string)
	DenyFeedback()
}

// Decision is the engine's verdict on one scan.
type Decision struct {
	Scan    types.CardScan `json:"scan"`
	Outcome types.Outcome  `json:"outcome"`

	// User is set only for authorized decisions.
	User *store.User `json:"user,omitempty"`
}

type Config struct {
	Users  store.UserStore
	Audit  store.ScanEventStore
	Queue  *broadcast.Queue
	Lock   LockControl
	Logger *log.Logger

	// OnDecision, if set, is called after every decision.  Used by the
	// dev console; never on the hot path's critical section.
	OnDecision func(Decision)
}

type AccessService struct {
	users  store.UserStore
	audit  store.ScanEventStore
	queue  *broadcast.Queue
	lock   LockControl
	logger *log.Logger

	onDecision func(Decision)
	now        func() time.Time
}

func New(cfg Config) *AccessService {
	return &AccessService{
		users:      cfg.Users,
		audit:      cfg.Audit,
		queue:      cfg.Queue,
		lock:       cfg.Lock,
		logger:     cfg.Logger,
		onDecision: cfg.OnDecision,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// HandleScan runs the full decision pipeline for one completed scan.
// The audit row for the raw scan is written before any lookup, so every
// card presentation leaves a trace even when the directory is down.
func (s *AccessService) HandleScan(ctx context.Context, scan types.CardScan) Decision {
	s.appendAudit(ctx, store.ScanEventRecord{
		CardID:    scan.CardID,
		Result:    store.ResultScan,
		ScannedAt: scan.ReadAt,
	})

	d := s.decide(ctx, scan)

	s.publish(d)
	if s.onDecision != nil {
		s.onDecision(d)
	}
	return d
}

func (s *AccessService) decide(ctx context.Context, scan types.CardScan) Decision {
	d := Decision{Scan: scan}

	user, err := s.users.LookupActiveUser(ctx, scan.CardID)
	if err != nil {
		// Directory unreachable: fail closed.  The shear stays locked no
		// matter who the card belongs to.
		s.logger.Printf("directory lookup for card %s: %v", scan.CardID, err)
		d.Outcome = types.OutcomeError
		s.appendAudit(ctx, store.ScanEventRecord{CardID: scan.CardID, Result: store.ResultError, ScannedAt: s.now()})
		s.lock.DenyFeedback()
		return d
	}

	if user != nil {
		d.Outcome = types.OutcomeAuthorized
		d.User = user
		if err := s.users.RecordAccess(ctx, scan.CardID, s.now()); err != nil {
			s.logger.Printf("record access for card %s: %v", scan.CardID, err)
		}
		s.appendAudit(ctx, store.ScanEventRecord{CardID: scan.CardID, Result: store.ResultUnlock, ActorName: user.Name, ScannedAt: s.now()})
		s.lock.Unlock(user.Name, scan.CardID)
		return d
	}

	req, err := s.users.LookupPendingRequest(ctx, scan.CardID)
	if err != nil {
		s.logger.Printf("pending lookup for card %s: %v", scan.CardID, err)
		d.Outcome = types.OutcomeError
		s.appendAudit(ctx, store.ScanEventRecord{CardID: scan.CardID, Result: store.ResultError, ScannedAt: s.now()})
		s.lock.DenyFeedback()
		return d
	}

	if req != nil {
		d.Outcome = types.OutcomePending
		s.appendAudit(ctx, store.ScanEventRecord{CardID: scan.CardID, Result: store.ResultPending, ActorName: req.Name, ScannedAt: s.now()})
		s.logger.Printf("card %s is awaiting approval (%s)", scan.CardID, req.Name)
		s.lock.DenyFeedback()
		return d
	}

	d.Outcome = types.OutcomeUnknown
	s.appendAudit(ctx, store.ScanEventRecord{CardID: scan.CardID, Result: store.ResultUnknown, ScannedAt: s.now()})
	s.logger.Printf("unknown card %s denied", scan.CardID)
	s.lock.DenyFeedback()
	return d
}

func (s *AccessService) publish(d Decision) {
	if s.queue == nil {
		return
	}
	ev := broadcast.Event{
		Type:    broadcast.EventScan,
		At:      d.Scan.ReadAt,
		CardID:  d.Scan.CardID,
		Outcome: d.Outcome,
	}
	if d.User != nil {
		ev.Actor = d.User.Name
	}
	s.queue.Publish(ev)
}

// appendAudit is best effort.  Losing an audit row is logged, never
// allowed to change the access decision.
func (s *AccessService) appendAudit(ctx context.Context, rec store.ScanEventRecord) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, rec); err != nil {
		s.logger.Printf("audit append (%s, card=%s): %v", rec.Result, rec.CardID, err)
	}
}
