// Package events fans component lifecycle changes out to live subscribers and NATS.
package events

import (
	"context"
	"errors"
	"time"
)

// 事件类型
const (
	ComponentAllocated  = "component.allocated"
	ComponentInstalled  = "component.installed"
	ComponentInspected  = "component.inspected"
	ComponentMaintained = "component.maintained"
)

// Event is one lifecycle change, published after the write commits.
type Event struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	EntityID       string    `json:"entity_id"`
	ComponentID    string    `json:"component_id"`
	ManufacturerID string    `json:"manufacturer_id,omitempty"`
	Status         string    `json:"status,omitempty"`
	QCStatus       string    `json:"qc_status,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	events chan Event
}

// NewRecorder buffers up to size events; further events are dropped.
func NewRecorder(size int) *Recorder {
	return &Recorder{events: make(chan Event, size)}
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	select {
	case r.events <- e:
	default:
	}
	return nil
}

// Drain returns every event recorded so far.
func (r *Recorder) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-r.events:
			out = append(out, e)
		default:
			return out
		}
	}
}
