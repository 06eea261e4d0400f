// Package notify broadcasts trading-loop events to one or more backends.
// The log notifier is always on; Redis pub/sub and RabbitMQ backends can be
// layered on top via configuration.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event kinds emitted by the trading loop.
const (
	KindTradeCompleted = "trade-completed"
	KindTradeSkipped   = "trade-skipped"
	KindLoopError      = "loop-error"
)

// Event is one notification.
type Event struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Message    string            `json:"message"`
	TxHash     string            `json:"txHash,omitempty"`
	Reasoning  string            `json:"reasoning,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Notifier delivers events to one backend.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event Event) error
	Close() error
}

// Fanout broadcasts events to every configured backend. Delivery failures
// are joined and reported but one failing backend does not block the rest.
type Fanout struct {
	notifiers []Notifier
}

// NewFanout creates a dispatcher over the given backends; nils are skipped.
func NewFanout(notifiers ...Notifier) *Fanout {
	set := make([]Notifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			set = append(set, n)
		}
	}
	return &Fanout{notifiers: set}
}

// Notify fills in event defaults and broadcasts.
func (f *Fanout) Notify(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	var errs []error
	for _, notifier := range f.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("backend %s: %w", notifier.Name(), err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Close closes every backend, joining errors.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, notifier := range f.notifiers {
		if err := notifier.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
