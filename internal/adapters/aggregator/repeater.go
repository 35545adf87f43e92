package aggregator

import (
	"time"

	"github.com/ghalamif/LiveFlow/internal/domain"
	"github.com/ghalamif/LiveFlow/internal/ports"
)

// RepeatGrace is added to every repeat deadline so a genuine transmission
// arriving on schedule wins over the synthetic copy.
const RepeatGrace = 500 * time.Millisecond

// RepeatInterval is the nominal transmission cadence of a hardware type.
func RepeatInterval(hw domain.HardwareType) time.Duration {
	switch hw {
	case domain.HardwareDavis:
		return 2500 * time.Millisecond
	case domain.HardwareFineOffset:
		return 48 * time.Second
	default:
		return 30 * time.Second
	}
}

type repeaterState struct {
	last       domain.Sample
	receivedAt time.Time
	interval   time.Duration
	ticks      int
}

// Repeater forwards genuine samples and, while the station stays quiet,
// re-emits the last one once per nominal interval with its timestamp advanced
// accordingly.
type Repeater struct {
	sched ports.Scheduler
	emit  ports.Emitter
	obs   ports.Observability

	state *repeaterState
	timer ports.TimerHandle
}

func NewRepeater(sched ports.Scheduler, emit ports.Emitter, obs ports.Observability) *Repeater {
	return &Repeater{sched: sched, emit: emit, obs: obs}
}

func (r *Repeater) Incoming(s domain.Sample) {
	if r.stopTimer() {
		r.obs.LogDebug("repeat_preempted", ports.Field{Key: "ts", Value: s.Timestamp})
	}

	r.state = &repeaterState{
		last:       s,
		receivedAt: r.sched.Now(),
		interval:   RepeatInterval(s.HardwareType),
	}
	r.emit(s)
	r.schedule()
}

// Reset forgets the last sample and cancels any pending repeat.
func (r *Repeater) Reset() {
	r.stopTimer()
	r.state = nil
}

func (r *Repeater) Flush() {}

func (r *Repeater) schedule() {
	st := r.state
	deadline := st.receivedAt.Add(time.Duration(st.ticks+1)*st.interval + RepeatGrace)
	r.timer = r.sched.AfterFunc(deadline.Sub(r.sched.Now()), r.repeat)
}

func (r *Repeater) repeat() {
	r.timer = nil
	st := r.state
	if st == nil {
		return
	}
	st.ticks++

	s := st.last
	s.Timestamp = st.last.Timestamp.Add(time.Duration(st.ticks) * st.interval)
	s.Synthetic = true
	r.obs.IncCounter(ports.MetricSyntheticSamples, 1)
	r.emit(s)
	r.schedule()
}

func (r *Repeater) stopTimer() bool {
	if r.timer == nil {
		return false
	}
	stopped := r.timer.Stop()
	r.timer = nil
	return stopped
}

var _ ports.Aggregator = (*Repeater)(nil)
