package liveflow

import (
	"errors"
	"fmt"
	"sync"
)

// ErrChannelSinkClosed is returned by a channel sink after its close func ran.
var ErrChannelSinkClosed = errors.New("liveflow: channel sink closed")

// SampleBatchSink receives the samples emitted while handling one live
// sample or one repeater tick.
type SampleBatchSink func([]Sample) error

// NewCallbackSink wraps fn as a Sink. The batch passed to fn is a private copy.
func NewCallbackSink(name string, fn SampleBatchSink) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

type callbackSink struct {
	name string
	fn   SampleBatchSink
}

func (s *callbackSink) Name() string { return s.name }

func (s *callbackSink) WriteBatch(batch []Sample) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	if len(batch) == 0 {
		return nil
	}
	return s.fn(copyBatch(batch))
}

// NewChannelSink publishes batches on the returned channel. Call the returned
// func during shutdown to close the channel. A full channel blocks the event
// loop until the reader catches up.
func NewChannelSink(name string, buffer int) (Sink, <-chan []Sample, func()) {
	if name == "" {
		name = "channel"
	}
	s := &channelSink{
		name:   name,
		ch:     make(chan []Sample, max(buffer, 0)),
		closed: make(chan struct{}),
	}
	return s, s.ch, s.close
}

type channelSink struct {
	name   string
	ch     chan []Sample
	closed chan struct{}

	// mu keeps close from racing a send in progress.
	mu   sync.RWMutex
	once sync.Once
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) WriteBatch(batch []Sample) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}
	if len(batch) == 0 {
		return nil
	}

	select {
	case s.ch <- copyBatch(batch):
		return nil
	case <-s.closed:
		return ErrChannelSinkClosed
	}
}

func (s *channelSink) close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

// LatestSink remembers the newest emitted sample, the "current conditions"
// view of a station. It is safe to read from any goroutine.
type LatestSink struct {
	name string

	mu     sync.RWMutex
	latest Sample
	ok     bool
}

func NewLatestSink(name string) *LatestSink {
	if name == "" {
		name = "latest"
	}
	return &LatestSink{name: name}
}

func (s *LatestSink) Name() string { return s.name }

func (s *LatestSink) WriteBatch(batch []Sample) error {
	if len(batch) == 0 {
		return nil
	}
	newest := batch[0]
	for _, smp := range batch[1:] {
		if !smp.Timestamp.Before(newest.Timestamp) {
			newest = smp
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ok || !newest.Timestamp.Before(s.latest.Timestamp) {
		s.latest = newest
		s.ok = true
	}
	return nil
}

// Latest returns the newest sample seen so far; ok is false before the first.
func (s *LatestSink) Latest() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ok
}

// copyBatch detaches the batch from the slice shared by every sink.
func copyBatch(samples []Sample) []Sample {
	out := make([]Sample, len(samples))
	copy(out, samples)
	return out
}
