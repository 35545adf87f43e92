package ports

import "github.com/ghalamif/LiveFlow/internal/domain"

// Sink receives the samples emitted by the aggregator chain. Delivery is fire
// and forget: errors are reported to observability and never reach the
// producer.
type Sink interface {
	WriteBatch(samples []domain.Sample) error
	Name() string
}

// StationSink is implemented by sinks that tag what they store with the
// connected station.
type StationSink interface {
	Sink
	ConnectStation(code string)
}
