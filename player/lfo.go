package player

import (
	"math"
	"math/rand"

	"tactus/midi"
	"tactus/song"
)

// Waveform maps a phase in rotations to a raw value in the unit range.
// Everything outside [0,1) folds back by taking the fractional part.
type Waveform func(phase float64) float64

func frac(phase float64) float64 {
	f := math.Mod(phase, 1)
	if f < 0 {
		f += 1
	}
	return f
}

func sineWave(phase float64) float64 {
	return 0.5 + 0.5*math.Sin(2*math.Pi*phase)
}

func triangleWave(phase float64) float64 {
	f := frac(phase)
	if f < 0.5 {
		return 2 * f
	}
	return 2 - 2*f
}

func sawtoothWave(phase float64) float64 {
	return frac(phase)
}

func squareWave(phase float64) float64 {
	if frac(phase) < 0.5 {
		return 0
	}
	return 1
}

// randomWave is a deterministic sample-and-hold: one uniform value per
// rotation, stable across replays of the same session.
func randomWave(phase float64) float64 {
	cycle := int64(math.Floor(phase))
	return rand.New(rand.NewSource(cycle ^ 0x5DEECE66D)).Float64()
}

var waveforms = map[string]Waveform{
	"sine":     sineWave,
	"triangle": triangleWave,
	"sawtooth": sawtoothWave,
	"square":   squareWave,
	"random":   randomWave,
}

// WaveformByName resolves a configuration waveform name.
func WaveformByName(name string) (Waveform, error) {
	if w, ok := waveforms[name]; ok {
		return w, nil
	}
	return nil, errorf(KindConfiguration, "unknown waveform %q", name)
}

// RotationUnit is the time base one LFO rotation is stretched across.
type RotationUnit string

const (
	// RotationSong stretches rotations across the whole song.
	RotationSong RotationUnit = "song"
	// RotationBeat stretches rotations across one beat.
	RotationBeat RotationUnit = "beat"
	// RotationSecond stretches rotations across wall-clock seconds, derived
	// from the session's initial tempo.
	RotationSecond RotationUnit = "second"
	// RotationActivity stretches rotations across the first-to-last sounding
	// tick of a named instrument, falling back to the whole song when that
	// instrument is silent or absent.
	RotationActivity RotationUnit = "activity"
)

// ParseRotationUnit resolves a configuration rotation-unit name.
func ParseRotationUnit(s string) (RotationUnit, error) {
	switch RotationUnit(s) {
	case RotationSong, RotationBeat, RotationSecond, RotationActivity:
		return RotationUnit(s), nil
	}
	return "", errorf(KindConfiguration, "unknown rotation unit %q", s)
}

// Target is where an LFO's output goes: a continuous controller on a device
// channel, or the session's live tempo.
type Target struct {
	Tempo   bool
	Device  *midi.Device
	Channel uint8
	Control midi.ControlTarget
}

// LFO is one low-frequency modulation source. Its time scaling is fixed once
// per session by prepare; per tick it evaluates, clamps into
// [MinValue,MaxValue], and emits only when the value changed from the last
// one sent (or on tick 0).
type LFO struct {
	Wave         Waveform
	Unit         RotationUnit
	Speed        float64 // rotations per unit
	Phase        float64 // initial phase in rotations
	MinAmplitude int
	MaxAmplitude int
	MinValue     int
	MaxValue     int
	Target       Target

	// Instrument names whose activity drives the RotationActivity unit.
	Instrument string

	startTick float64
	spanTicks float64
	lastSent  int
	hasSent   bool
}

// prepare fixes the tick-to-rotation scaling for one session and resets the
// change cache.
func (l *LFO) prepare(st song.Structure, arr song.Arrangement, milliBPM int) {
	l.startTick = 0
	switch l.Unit {
	case RotationBeat:
		l.spanTicks = float64(st.TicksPerBeat)
	case RotationSecond:
		// Ticks in one second at the session's initial tempo.
		l.spanTicks = float64(st.TicksPerBeat) * float64(milliBPM) / 60000.0
	case RotationActivity:
		first, last, ok := arr.ActivityRange(l.Instrument)
		if ok {
			l.startTick = float64(first)
			l.spanTicks = float64(last - first + 1)
		} else {
			l.spanTicks = float64(st.TotalTicks)
		}
	default: // RotationSong
		l.spanTicks = float64(st.TotalTicks)
	}
	l.lastSent = 0
	l.hasSent = false
}

// valueAt evaluates the LFO at a tick, scaled and clamped into
// [MinValue,MaxValue].
func (l *LFO) valueAt(tick int) int {
	rot := l.Phase + l.Speed*(float64(tick)-l.startTick)/l.spanTicks
	raw := l.Wave(rot)
	v := int(math.Round(float64(l.MinAmplitude) + raw*float64(l.MaxAmplitude-l.MinAmplitude)))
	if v < l.MinValue {
		v = l.MinValue
	}
	if v > l.MaxValue {
		v = l.MaxValue
	}
	return v
}

// apply evaluates the LFO for one tick and routes the result: a controller
// message on change, or a direct write to the session tempo. The tempo path
// is the only way automation feeds back into the scheduler.
func (l *LFO) apply(tick int, setTempo func(int)) error {
	v := l.valueAt(tick)
	if l.hasSent && v == l.lastSent && tick != 0 {
		return nil
	}
	l.lastSent = v
	l.hasSent = true
	if l.Target.Tempo {
		setTempo(v)
		return nil
	}
	msg := l.Target.Control.Message(l.Target.Channel, v)
	if err := l.Target.Device.Send(msg); err != nil {
		return wrap(KindProtocol, err, "controller change")
	}
	return nil
}
