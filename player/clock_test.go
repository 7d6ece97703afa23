package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimebaseAdvancesFromTargetNotWakeTime(t *testing.T) {
	clock := newFakeClock()
	clock.overshoot = 3 * time.Millisecond // host wakes late every time

	tb := newTimebase(false, clock.Now, clock.Sleep)
	tb.start()
	start := clock.Now()

	const ticks = 100
	d := 10 * time.Millisecond
	for i := 0; i < ticks; i++ {
		assert.Equal(t, deadlineTick, tb.next())
		tb.advanceTick(d)
	}

	// Targets are ideal-duration sums off the session start; the per-wake
	// overshoot must not accumulate into them.
	assert.Equal(t, start.Add(ticks*d), tb.tickTarget)
}

func TestTimebaseSkipsSleepWhenLate(t *testing.T) {
	clock := newFakeClock()
	tb := newTimebase(false, clock.Now, clock.Sleep)
	tb.start()

	// Force the clock well past the next target.
	clock.now = clock.now.Add(time.Second)
	tb.next()
	assert.Equal(t, 0, clock.slept, "an overdue deadline fires without sleeping")
}

func TestTimebasePulseWinsTies(t *testing.T) {
	clock := newFakeClock()
	tb := newTimebase(true, clock.Now, clock.Sleep)
	tb.start()

	// Both deadlines due at the same instant: the sync grid goes first.
	assert.Equal(t, deadlinePulse, tb.next())
	tb.advancePulse(20 * time.Millisecond)
	assert.Equal(t, deadlineTick, tb.next())
	tb.advanceTick(60 * time.Millisecond)

	// Three pulses fall before the next tick.
	for i := 0; i < 3; i++ {
		assert.Equal(t, deadlinePulse, tb.next())
		tb.advancePulse(20 * time.Millisecond)
	}
	assert.Equal(t, deadlineTick, tb.next())
}

func TestTimebaseIgnoresPulseWhenDisabled(t *testing.T) {
	clock := newFakeClock()
	tb := newTimebase(false, clock.Now, clock.Sleep)
	tb.start()
	tb.advancePulse(-time.Hour) // even an overdue pulse target is invisible
	assert.Equal(t, deadlineTick, tb.next())
}

func TestPulseDurationIndependentOfGroove(t *testing.T) {
	// 24 pulses per beat at 60 BPM: one pulse every 1/24 s, regardless of
	// any groove applied to ticks.
	d := pulseDuration(1, 60000, 24)
	assert.Equal(t, time.Second/24, d)

	// 4 ticks per beat at 120 BPM: 6 pulses per tick, 48 per second.
	d = pulseDuration(4, 120000, 6)
	assert.Equal(t, time.Second/48, d)
}

func TestTickDurationReadsTempoFresh(t *testing.T) {
	groove := []int{1000}
	slow := tickDuration(groove, 0, 4, 60000)
	fast := tickDuration(groove, 0, 4, 120000)
	assert.Equal(t, 250*time.Millisecond, slow)
	assert.Equal(t, 125*time.Millisecond, fast)
}
