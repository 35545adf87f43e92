package replay

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/LiveFlow/internal/adapters/livebuffer"
	"github.com/ghalamif/LiveFlow/internal/adapters/observability"
	"github.com/ghalamif/LiveFlow/internal/domain"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func recording(n int, step time.Duration) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString(livebuffer.EncodeRecord(domain.Sample{
			Timestamp:    base.Add(time.Duration(i) * step),
			HardwareType: domain.HardwareDavis,
			Temperature:  float64(20 + i),
		}))
	}
	return sb.String()
}

func drain(t *testing.T, c *Collector, out <-chan domain.Sample) []domain.Sample {
	t.Helper()
	var got []domain.Sample
	for {
		select {
		case s := <-out:
			got = append(got, s)
		case <-c.Done():
			for {
				select {
				case s := <-out:
					got = append(got, s)
				default:
					return got
				}
			}
		case <-time.After(5 * time.Second):
			t.Fatal("replay did not finish")
		}
	}
}

func TestReplayDeliversRecordsInOrder(t *testing.T) {
	c := NewReaderCollector(strings.NewReader(recording(5, time.Minute)), Config{Path: "mem"}, observability.Nop{})
	out := make(chan domain.Sample, 8)

	require.NoError(t, c.Start(context.Background(), out))
	got := drain(t, c, out)
	require.NoError(t, c.Stop())
	require.NoError(t, c.Err())

	require.Len(t, got, 5)
	for i, s := range got {
		assert.Equal(t, base.Add(time.Duration(i)*time.Minute), s.Timestamp)
		assert.Equal(t, float64(20+i), s.Temperature)
		assert.True(t, s.IsDavis())
	}
}

func TestReplaySkipsInvalidLines(t *testing.T) {
	input := "garbage\n\n" + recording(2, time.Second) + "2024\tbroken\n"
	c := NewReaderCollector(strings.NewReader(input), Config{Path: "mem"}, observability.Nop{})
	out := make(chan domain.Sample, 8)

	require.NoError(t, c.Start(context.Background(), out))
	assert.Len(t, drain(t, c, out), 2)
}

func TestReplayContinuesAfterOverlongLine(t *testing.T) {
	input := recording(2, time.Second) + strings.Repeat("x", 70000) + "\n" + recording(3, time.Minute)
	c := NewReaderCollector(strings.NewReader(input), Config{Path: "mem"}, observability.Nop{})
	out := make(chan domain.Sample, 8)

	require.NoError(t, c.Start(context.Background(), out))
	got := drain(t, c, out)
	require.NoError(t, c.Err())
	require.Len(t, got, 5)
	assert.Equal(t, base.Add(2*time.Minute), got[4].Timestamp)
}

func TestReplayRestampsToStartTime(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	c := NewReaderCollector(strings.NewReader(recording(3, 10*time.Second)), Config{Path: "mem", Restamp: true}, observability.Nop{})
	c.now = func() time.Time { return start }
	out := make(chan domain.Sample, 8)

	require.NoError(t, c.Start(context.Background(), out))
	got := drain(t, c, out)
	require.Len(t, got, 3)
	assert.Equal(t, start, got[0].Timestamp)
	assert.Equal(t, start.Add(20*time.Second), got[2].Timestamp)
}

func TestReplayPacesBySpeed(t *testing.T) {
	// Two seconds of recording played back 50 times faster.
	c := NewReaderCollector(strings.NewReader(recording(3, time.Second)), Config{Path: "mem", Speed: 50}, observability.Nop{})
	out := make(chan domain.Sample, 8)

	began := time.Now()
	require.NoError(t, c.Start(context.Background(), out))
	got := drain(t, c, out)
	assert.Len(t, got, 3)
	assert.GreaterOrEqual(t, time.Since(began), 40*time.Millisecond)
}

func TestReplayStopInterruptsPlayback(t *testing.T) {
	c := NewReaderCollector(strings.NewReader(recording(3, time.Hour)), Config{Path: "mem", Speed: 1}, observability.Nop{})
	out := make(chan domain.Sample, 8)

	require.NoError(t, c.Start(context.Background(), out))
	assert.Error(t, c.Start(context.Background(), out))

	select {
	case <-out:
	case <-time.After(5 * time.Second):
		t.Fatal("first record was not delivered")
	}
	require.NoError(t, c.Stop())
	<-c.Done()
	assert.ErrorIs(t, c.Err(), context.Canceled)
	assert.NoError(t, c.Stop())
}

func TestNewCollectorRequiresPath(t *testing.T) {
	_, err := NewCollector(Config{}, observability.Nop{})
	assert.Error(t, err)

	c, err := NewCollector(Config{Path: "/does/not/exist.dat"}, observability.Nop{})
	require.NoError(t, err)
	assert.Error(t, c.Start(context.Background(), make(chan domain.Sample)))
}
