package player

import "time"

// pulsesPerBeat is the fixed sync-pulse rate of the standard timing grid.
const pulsesPerBeat = 24

// deadline identifies which timebase deadline fired.
type deadline int

const (
	deadlineTick deadline = iota
	deadlinePulse
)

// timebase produces the tick and sync-pulse deadlines for one session and
// blocks until they fall due. Each new deadline is the previous target plus
// the ideal duration, never the actual wake time, so small overruns
// self-correct instead of accumulating. A late tick stays late; there is no
// catch-up skipping.
type timebase struct {
	now   func() time.Time
	sleep func(time.Duration)

	tickTarget  time.Time
	pulseTarget time.Time
	pulseOn     bool
}

func newTimebase(pulseOn bool, now func() time.Time, sleep func(time.Duration)) *timebase {
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &timebase{now: now, sleep: sleep, pulseOn: pulseOn}
}

// start arms both deadlines at the current instant, so the first tick (and
// first pulse) fire immediately.
func (tb *timebase) start() {
	t := tb.now()
	tb.tickTarget = t
	tb.pulseTarget = t
}

// next blocks until the earlier pending deadline and reports which fired.
// When both fall due at the same instant the pulse wins, keeping the sync
// grid ahead of note onsets.
func (tb *timebase) next() deadline {
	target := tb.tickTarget
	which := deadlineTick
	if tb.pulseOn && !tb.pulseTarget.After(tb.tickTarget) {
		target = tb.pulseTarget
		which = deadlinePulse
	}
	if d := target.Sub(tb.now()); d > 0 {
		tb.sleep(d)
	}
	return which
}

// advanceTick schedules the next tick deadline d after the previous target.
func (tb *timebase) advanceTick(d time.Duration) {
	tb.tickTarget = tb.tickTarget.Add(d)
}

// advancePulse schedules the next pulse deadline d after the previous target.
func (tb *timebase) advancePulse(d time.Duration) {
	tb.pulseTarget = tb.pulseTarget.Add(d)
}

// tickDuration returns the grooved length of the given tick. milliBPM is
// read fresh per tick so live tempo automation takes effect immediately.
func tickDuration(groove []int, tick, ticksPerBeat, milliBPM int) time.Duration {
	w := groove[tick%len(groove)]
	return time.Duration(60e9 * int64(w) / (int64(ticksPerBeat) * int64(milliBPM)))
}

// pulseDuration returns the length of one sync pulse. Pulses run on a steady
// tempo grid, independent of groove: synchronized gear needs an even clock,
// otherwise its own tempo-locked effects would inherit the groove jitter.
func pulseDuration(ticksPerBeat, milliBPM, pulsesPerTick int) time.Duration {
	return time.Duration(60e12 / (int64(ticksPerBeat) * int64(milliBPM) * int64(pulsesPerTick)))
}
