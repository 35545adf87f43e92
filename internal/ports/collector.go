package ports

import (
	"context"

	"github.com/ghalamif/LiveFlow/internal/domain"
)

// Collector is the opaque producer of live samples. Start must not block; it
// delivers samples on out until ctx is cancelled or Stop is called.
type Collector interface {
	Start(ctx context.Context, out chan<- domain.Sample) error
	Stop() error
}
