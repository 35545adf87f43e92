package ports

import (
	"time"

	"github.com/ghalamif/LiveFlow/internal/domain"
)

// LiveBuffer keeps a bounded, persisted window of recent raw samples for the
// monitored station.
type LiveBuffer interface {
	ConnectStation(code string)
	LiveData(s domain.Sample)
	Data() []domain.Sample
	Since(t time.Time) []domain.Sample
	Flush() error
	Close() error
	Stats() LiveBufferStats
}

type LiveBufferStats struct {
	StationCode   string
	Entries       int
	LastFileWrite time.Time
	LastSave      time.Time
	LastRewrite   time.Time
}
