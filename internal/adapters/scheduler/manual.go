package scheduler

import (
	"sort"
	"time"

	"github.com/ghalamif/LiveFlow/internal/ports"
)

// Manual is a virtual-clock scheduler. Time only moves when Advance or Set is
// called; due callbacks run synchronously inside those calls, in deadline
// order.
type Manual struct {
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time { return m.now }

func (m *Manual) AfterFunc(d time.Duration, fn func()) ports.TimerHandle {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{owner: m, at: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer due on the way.
func (m *Manual) Advance(d time.Duration) {
	m.Set(m.now.Add(d))
}

// Set moves the clock to t (never backwards), firing due timers. Callbacks
// observe Now() equal to their own deadline.
func (m *Manual) Set(t time.Time) {
	for {
		next := m.nextDue(t)
		if next == nil {
			break
		}
		m.remove(next)
		if next.at.After(m.now) {
			m.now = next.at
		}
		next.fn()
	}
	if t.After(m.now) {
		m.now = t
	}
}

// Pending returns the number of scheduled, not yet fired timers.
func (m *Manual) Pending() int { return len(m.timers) }

func (m *Manual) nextDue(limit time.Time) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.Slice(m.timers, func(i, j int) bool {
		if m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at.Before(m.timers[j].at)
	})
	if m.timers[0].at.After(limit) {
		return nil
	}
	return m.timers[0]
}

func (m *Manual) remove(t *manualTimer) bool {
	for i, cur := range m.timers {
		if cur == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return true
		}
	}
	return false
}

type manualTimer struct {
	owner *Manual
	at    time.Time
	seq   uint64
	fn    func()
}

func (t *manualTimer) Stop() bool { return t.owner.remove(t) }

var _ ports.Scheduler = (*Manual)(nil)
