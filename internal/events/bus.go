package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"github.com/cabinetworks/contractor-backend/pkg/metrics"
	"go.uber.org/multierr"
)

const defaultSubscriberTimeout = 45 * time.Second

// Handler consumes an event. Returned errors are logged and counted, never
// propagated to the publisher's transaction.
type Handler func(ctx context.Context, ev Event) error

// Subscriber is a named handler bound to the events it accepts.
type Subscriber struct {
	Name    string
	accepts func(Event) bool
	handle  Handler
}

// OnProposalAccepted adapts a typed handler for ProposalAccepted.
func OnProposalAccepted(name string, fn func(context.Context, ProposalAccepted) error) Subscriber {
	return Subscriber{
		Name: name,
		accepts: func(ev Event) bool {
			_, ok := ev.(ProposalAccepted)
			return ok
		},
		handle: func(ctx context.Context, ev Event) error {
			return fn(ctx, ev.(ProposalAccepted))
		},
	}
}

// OnProposalSent adapts a typed handler for ProposalSent.
func OnProposalSent(name string, fn func(context.Context, ProposalSent) error) Subscriber {
	return Subscriber{
		Name: name,
		accepts: func(ev Event) bool {
			_, ok := ev.(ProposalSent)
			return ok
		},
		handle: func(ctx context.Context, ev Event) error {
			return fn(ctx, ev.(ProposalSent))
		},
	}
}

// Publisher is what the pipeline needs from the bus.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	PublishAsync(ctx context.Context, ev Event)
}

// Bus dispatches events to subscribers in registration order. Each subscriber
// runs under its own timeout with panic recovery, so one failure never
// prevents the others from running.
type Bus struct {
	mu       sync.RWMutex
	subs     []Subscriber
	timeout  time.Duration
	metrics  *metrics.Pipeline
	logg     *logger.Logger
	inflight sync.WaitGroup
}

// NewBus builds an empty bus.
func NewBus(timeout time.Duration, m *metrics.Pipeline, logg *logger.Logger) *Bus {
	if timeout <= 0 {
		timeout = defaultSubscriberTimeout
	}
	return &Bus{timeout: timeout, metrics: m, logg: logg}
}

// Subscribe appends subscribers. Registration normally happens once at startup.
func (b *Bus) Subscribe(subs ...Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range subs {
		if sub.handle == nil || sub.accepts == nil {
			continue
		}
		b.subs = append(b.subs, sub)
	}
}

// Publish runs every matching subscriber synchronously and returns their
// combined failures for diagnostics.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if ev == nil {
		return nil
	}
	b.mu.RLock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	var errs error
	for _, sub := range subs {
		if !sub.accepts(ev) {
			continue
		}
		start := time.Now()
		err := b.dispatch(ctx, sub, ev)
		b.metrics.ObserveSubscriber(sub.Name, time.Since(start), err == nil)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", sub.Name, err))
			b.logFailure(ctx, sub.Name, ev, err)
		}
	}
	return errs
}

// PublishAsync dispatches on a context detached from the caller's
// cancellation. Use Wait to drain in-flight dispatches.
func (b *Bus) PublishAsync(ctx context.Context, ev Event) {
	if ev == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		_ = b.Publish(detached, ev)
	}()
}

// Wait blocks until every PublishAsync dispatch has finished.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

func (b *Bus) dispatch(ctx context.Context, sub Subscriber, ev Event) error {
	subCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if b.logg != nil {
					b.logg.Error(b.logg.WithField(ctx, "subscriber", sub.Name), "events.subscriber.panic", fmt.Errorf("%v", r))
				}
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- sub.handle(subCtx, ev)
	}()

	select {
	case err := <-done:
		return err
	case <-subCtx.Done():
		return fmt.Errorf("subscriber timed out after %s: %w", b.timeout, subCtx.Err())
	}
}

func (b *Bus) logFailure(ctx context.Context, name string, ev Event, err error) {
	if b.logg == nil {
		return
	}
	b.logg.Error(b.logg.WithField(b.logg.WithEventType(ctx, ev.Name()), "subscriber", name), "events.subscriber.failed", err)
}

type syncPublisher struct {
	Publisher
}

func (s syncPublisher) PublishAsync(ctx context.Context, ev Event) {
	_ = s.Publish(ctx, ev)
}

// Synchronous makes PublishAsync block until every subscriber has run. Used
// when asynchronous dispatch is disabled and in tests that assert side effects
// right after the triggering call.
func Synchronous(p Publisher) Publisher {
	return syncPublisher{Publisher: p}
}
