package aggregator

// noBaseline marks a tracker that has not seen a valid storm total since
// construction or Reset.
const noBaseline = -1

// stormTracker turns the Davis storm-rain counter into either a running total
// or per-emission deltas. The counter only decreases when a new storm starts,
// so a smaller total is treated as a fresh storm and never yields a negative
// delta.
type stormTracker struct {
	runningTotal bool
	baseline     float64
}

func newStormTracker(runningTotal bool) stormTracker {
	return stormTracker{runningTotal: runningTotal, baseline: noBaseline}
}

func (t *stormTracker) reset() {
	t.baseline = noBaseline
}

// observe returns the storm rain value to emit for the given total and
// whether the total went backwards.
func (t *stormTracker) observe(total float64, valid bool) (float64, bool) {
	if total < 0 {
		total = 0
	}
	if !valid {
		// No storm in progress: the next storm starts from zero.
		t.baseline = 0
		return total, false
	}
	if t.baseline == noBaseline {
		t.baseline = total
		return total, false
	}
	if total < t.baseline {
		t.baseline = total
		if t.runningTotal {
			return total, true
		}
		return 0, true
	}

	out := total
	if !t.runningTotal {
		out = total - t.baseline
	}
	t.baseline = total
	return out, false
}
