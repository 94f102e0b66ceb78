// Package broadcast fans avatar frames out to a dynamic set of observers,
// typically one per connected client.
package broadcast

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/avatarpipe/internal/pipeline"
)

// Observer receives every published frame and stream-abort notice. A
// returned error drops the observer from the broadcaster.
type Observer interface {
	OnFrame(frame *pipeline.Frame) error
	OnStreamError(message, stage string) error
}

// BroadcastError aggregates per-observer delivery failures from one
// Publish call. Delivery to the remaining observers still happened.
type BroadcastError struct {
	Failures map[string]error // observer id to failure
}

func (e *BroadcastError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	return fmt.Sprintf("broadcast failed for %d observer(s): %s", len(e.Failures), strings.Join(ids, ", "))
}

// Broadcaster delivers frames to all subscribed observers. Subscribe and
// Unsubscribe are idempotent and safe during a Publish; a Publish works
// on a snapshot of the set taken at its start.
type Broadcaster struct {
	mu        sync.RWMutex
	observers map[Observer]string
	logger    zerolog.Logger
}

// New creates an empty Broadcaster.
func New(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		observers: make(map[Observer]string),
		logger:    logger.With().Str("component", "broadcast").Logger(),
	}
}

// Subscribe registers the observer. Re-subscribing an already registered
// observer is a no-op.
func (b *Broadcaster) Subscribe(o Observer) {
	if o == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.observers[o]; ok {
		return
	}
	id := uuid.NewString()
	b.observers[o] = id
	b.logger.Debug().Str("observer", id).Int("total", len(b.observers)).Msg("Observer subscribed")
}

// Unsubscribe removes the observer. Removing an unknown observer is a
// no-op.
func (b *Broadcaster) Unsubscribe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.observers[o]; ok {
		delete(b.observers, o)
		b.logger.Debug().Str("observer", id).Int("total", len(b.observers)).Msg("Observer unsubscribed")
	}
}

// ObserverCount returns the number of currently subscribed observers.
func (b *Broadcaster) ObserverCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

// Publish delivers the frame to every observer subscribed at call time.
// A failing observer is unsubscribed; the frame still reaches everyone
// else. When any observer failed, Publish returns a BroadcastError.
func (b *Broadcaster) Publish(frame *pipeline.Frame) error {
	return b.fanOut(func(o Observer) error { return o.OnFrame(frame) })
}

// PublishError tells every observer that the originating stream aborted,
// with the same fault isolation as Publish.
func (b *Broadcaster) PublishError(message, stage string) error {
	return b.fanOut(func(o Observer) error { return o.OnStreamError(message, stage) })
}

func (b *Broadcaster) fanOut(deliver func(Observer) error) error {
	b.mu.RLock()
	snapshot := make(map[Observer]string, len(b.observers))
	for o, id := range b.observers {
		snapshot[o] = id
	}
	b.mu.RUnlock()

	var failures map[string]error
	for o, id := range snapshot {
		if err := deliver(o); err != nil {
			if failures == nil {
				failures = make(map[string]error)
			}
			failures[id] = err
			b.Unsubscribe(o)
			b.logger.Warn().Err(err).Str("observer", id).Msg("Observer dropped after delivery failure")
		}
	}

	if failures != nil {
		return &BroadcastError{Failures: failures}
	}
	return nil
}
