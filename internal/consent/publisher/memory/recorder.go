// Package memory keeps ConsentGiven notifications in process and fans them out to
// subscribers. It is the default sink when no broker is configured.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"consentwindow/internal/consent/models"
)

const (
	defaultSubscriberBuffer = 64

	// DefaultCapacity is how many recent notifications a Recorder retains.
	DefaultCapacity = 1024
)

// Recorder retains the most recent notifications in order and offers each one to
// subscribers.
type Recorder struct {
	mu          sync.RWMutex
	capacity    int
	events      []models.ConsentGiven
	subscribers map[int]chan models.ConsentGiven
	nextID      int
	dropped     int
}

type Option func(*Recorder)

// WithCapacity bounds the retained history. Older notifications are discarded first.
func WithCapacity(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.capacity = n
		}
	}
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		capacity:    DefaultCapacity,
		subscribers: make(map[int]chan models.ConsentGiven),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PublishConsentGiven records the event and offers it to subscribers without blocking.
// A subscriber whose buffer is full misses the event.
func (r *Recorder) PublishConsentGiven(ctx context.Context, event models.ConsentGiven) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == r.capacity {
		copy(r.events, r.events[1:])
		r.events[len(r.events)-1] = event
	} else {
		r.events = append(r.events, event)
	}
	for _, ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			r.dropped++
		}
	}
	return nil
}

// Events returns a copy of the retained notifications, oldest first.
func (r *Recorder) Events() []models.ConsentGiven {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.ConsentGiven(nil), r.events...)
}

// Dropped counts deliveries skipped because a subscriber was slow.
func (r *Recorder) Dropped() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}

// Subscribe returns a channel of future events and a cancel func that closes it.
func (r *Recorder) Subscribe() (<-chan models.ConsentGiven, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	ch := make(chan models.ConsentGiven, defaultSubscriberBuffer)
	r.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subscribers, id)
			close(ch)
		})
	}
}

// Drain hands every notification published from now on to handle, until ctx is done.
func (r *Recorder) Drain(ctx context.Context, handle func(context.Context, models.ConsentGiven)) error {
	events, cancel := r.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			handle(ctx, event)
		}
	}
}

// LogNotifications is a Drain handler that writes each notification as a log line.
func (r *Recorder) LogNotifications(logger *slog.Logger) func(context.Context, models.ConsentGiven) {
	return func(ctx context.Context, e models.ConsentGiven) {
		logger.InfoContext(ctx, "consent given",
			"owner_id", e.Owner.String(),
			"fingerprint", e.Fingerprint.String(),
			"index", e.Index,
			"starts_at", e.StartsAt.Unix(),
			"expires_at", e.ExpiresAt.Unix(),
			"dropped", r.Dropped(),
		)
	}
}
