package liveflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ghalamif/LiveFlow/internal/domain"
)

// ErrPublisherClosed is returned by Publish after Close or Stop.
var ErrPublisherClosed = errors.New("liveflow: publisher closed")

// Publisher is a Collector fed by external producers: station drivers,
// network listeners or tests push samples with Publish. Samples published
// before the runtime starts wait in the publisher's buffer.
type Publisher struct {
	in      chan Sample
	closing chan struct{}
	stop    chan struct{}
	done    chan struct{}

	mu      sync.RWMutex
	closed  bool
	started bool

	closeOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewPublisher(buffer int) *Publisher {
	if buffer < 0 {
		buffer = 0
	}
	return &Publisher{
		in:      make(chan Sample, buffer),
		closing: make(chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Publish hands s to the pipeline, blocking while the buffer is full.
func (p *Publisher) Publish(ctx context.Context, s Sample) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	select {
	case p.in <- s:
		return nil
	case <-p.stop:
		return ErrPublisherClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream. Samples already published are still delivered, then
// Done is closed and a runtime driven by this publisher returns from Run.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.closing)
	})
}

// Done is closed once the publisher stopped forwarding samples.
func (p *Publisher) Done() <-chan struct{} { return p.done }

func (p *Publisher) Start(ctx context.Context, out chan<- domain.Sample) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("publisher already started")
	}
	p.started = true

	p.wg.Add(1)
	go p.forward(ctx, out)
	return nil
}

// Stop discards whatever has not been forwarded yet.
func (p *Publisher) Stop() error {
	p.stopOnce.Do(func() { close(p.stop) })
	p.Close()
	p.wg.Wait()
	return nil
}

func (p *Publisher) forward(ctx context.Context, out chan<- domain.Sample) {
	defer p.wg.Done()
	defer close(p.done)

	send := func(s Sample) bool {
		select {
		case out <- s:
			return true
		case <-ctx.Done():
			return false
		case <-p.stop:
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case s := <-p.in:
			if !send(s) {
				return
			}
		case <-p.closing:
			for {
				select {
				case s := <-p.in:
					if !send(s) {
						return
					}
				default:
					return
				}
			}
		}
	}
}
