package ports

import "github.com/ghalamif/LiveFlow/internal/domain"

// Emitter receives samples produced by an aggregator.
type Emitter func(domain.Sample)

// Aggregator consumes a stream of samples and emits zero or more samples per
// input, synchronously, before Incoming returns.
type Aggregator interface {
	Incoming(s domain.Sample)
	// Reset drops all accumulated state and cancels pending timers.
	Reset()
	// Flush emits partially accumulated state, if any.
	Flush()
}
