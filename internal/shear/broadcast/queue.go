// Package broadcast carries status and scan events from the core to the
// UI push channel.  The queue is bounded: a stalled consumer loses the
// oldest events rather than blocking the producers, and a heartbeat is
// synthesized when nothing has happened for a while so the subscriber's
// connection stays alive.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shopfloor/shearlock/internal/shear/types"
)

type EventType string

const (
	EventScan      EventType = "scan"
	EventStatus    EventType = "status"
	EventHeartbeat EventType = "heartbeat"
)

// Event is one broadcast item.  Exactly one of the payload groups is
// populated, selected by Type.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`
	At   time.Time `json:"at"`

	// EventScan
	CardID  string        `json:"card_id,omitempty"`
	Outcome types.Outcome `json:"outcome,omitempty"`
	Actor   string        `json:"actor,omitempty"`

	// EventStatus
	Status *types.Status `json:"status,omitempty"`
}

const (
	// DefaultCapacity bounds the queue; overflow drops the oldest event.
	DefaultCapacity = 64

	// HeartbeatInterval is how long Drain waits with no real traffic
	// before synthesizing a heartbeat.  Heartbeats are never persisted
	// or audited.
	HeartbeatInterval = 30 * time.Second
)

type Queue struct {
	mu     sync.Mutex
	ch     chan Event
	lastAt time.Time

	heartbeatAfter time.Duration
	now            func() time.Time
}

func NewQueue() *Queue {
	return newQueue(DefaultCapacity, HeartbeatInterval)
}

func newQueue(capacity int, heartbeatAfter time.Duration) *Queue {
	q := &Queue{
		ch:             make(chan Event, capacity),
		heartbeatAfter: heartbeatAfter,
		now:            func() time.Time { return time.Now().UTC() },
	}
	q.lastAt = q.now()
	return q
}

// Publish enqueues an event, dropping the oldest one when full.  Never
// blocks; producers are the lock controller and the access service,
// neither of which may stall on a slow UI.
func (q *Queue) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = q.now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.lastAt = ev.At
	for {
		select {
		case q.ch <- ev:
			return
		default:
		}
		// Full: drop the oldest and retry.
		select {
		case <-q.ch:
		default:
		}
	}
}

// Drain returns the next event, blocking until one arrives, the
// heartbeat interval elapses with no traffic, or ctx is done.  The
// second return is false only on context cancellation.
func (q *Queue) Drain(ctx context.Context) (Event, bool) {
	for {
		q.mu.Lock()
		wait := q.heartbeatAfter - q.now().Sub(q.lastAt)
		q.mu.Unlock()

		if wait <= 0 {
			return q.heartbeat(), true
		}

		timer := time.NewTimer(wait)
		select {
		case ev := <-q.ch:
			timer.Stop()
			return ev, true
		case <-timer.C:
			// Re-check: a publish may have landed between the wait
			// computation and the timer firing.
			select {
			case ev := <-q.ch:
				return ev, true
			default:
				return q.heartbeat(), true
			}
		case <-ctx.Done():
			timer.Stop()
			return Event{}, false
		}
	}
}

func (q *Queue) heartbeat() Event {
	now := q.now()
	q.mu.Lock()
	q.lastAt = now
	q.mu.Unlock()
	return Event{ID: uuid.NewString(), Type: EventHeartbeat, At: now}
}

// Len reports how many events are waiting.
func (q *Queue) Len() int { return len(q.ch) }
