// Package song holds the tick-indexed musical structure the player consumes.
// Arrangements are produced upstream (generators, loaders); the player only
// reads them.
package song

// MaxVelocity is the top of the internal velocity range. Internal velocities
// are wide so upstream generators can work with fine dynamics; the midi
// package rescales them to 0..127 on output.
const MaxVelocity = 32767

// Structure fixes the time grid for one playback session.
type Structure struct {
	TicksPerBeat int
	TicksPerBar  int
	TotalTicks   int
}

// Bars returns the song length in whole bars.
func (s Structure) Bars() int {
	if s.TicksPerBar <= 0 {
		return 0
	}
	return s.TotalTicks / s.TicksPerBar
}

// Entry is one element of a voice timeline: a note or a pause.
// A pause is an entry with zero velocity.
type Entry struct {
	Pitch    int
	Velocity int // 0 = pause, 1..MaxVelocity = note
	Duration int // ticks, >= 1
	Legato   bool
}

// Note creates a sounding entry.
func Note(pitch, velocity, duration int, legato bool) Entry {
	return Entry{Pitch: pitch, Velocity: velocity, Duration: duration, Legato: legato}
}

// Pause creates a silent entry.
func Pause(duration int) Entry {
	return Entry{Duration: duration}
}

// IsNote reports whether the entry sounds.
func (e Entry) IsNote() bool { return e.Velocity > 0 }

// IsPause reports whether the entry is silent.
func (e Entry) IsPause() bool { return e.Velocity == 0 }

// Voice is one independent, gapless note/pause timeline within a track.
type Voice []Entry

// TotalTicks returns the summed duration of all entries.
func (v Voice) TotalTicks() int {
	total := 0
	for _, e := range v {
		total += e.Duration
	}
	return total
}

// TrackType distinguishes melodic tracks (transposable) from rhythmic ones
// (drum maps, never transposed).
type TrackType int

const (
	TrackMelodic TrackType = iota
	TrackRhythmic
)

// Track is a group of voices played on one instrument.
type Track struct {
	Type   TrackType
	Voices []Voice
}

// ArrangementEntry binds a track to the logical instrument that plays it.
type ArrangementEntry struct {
	Track      *Track
	Instrument string
}

// Arrangement is the ordered set of tracks making up a song.
type Arrangement []ArrangementEntry

// Instruments returns the distinct instrument names in arrangement order.
func (a Arrangement) Instruments() []string {
	seen := make(map[string]bool)
	var names []string
	for _, e := range a {
		if !seen[e.Instrument] {
			seen[e.Instrument] = true
			names = append(names, e.Instrument)
		}
	}
	return names
}

// ActivityRange returns the first and last tick (inclusive) at which any
// voice of the named instrument's tracks is sounding. ok is false if the
// instrument is absent or never sounds.
func (a Arrangement) ActivityRange(instrument string) (first, last int, ok bool) {
	for _, e := range a {
		if e.Instrument != instrument {
			continue
		}
		for _, v := range e.Track.Voices {
			tick := 0
			for _, entry := range v {
				if entry.IsNote() {
					if !ok || tick < first {
						first = tick
					}
					if end := tick + entry.Duration - 1; !ok || end > last {
						last = end
					}
					ok = true
				}
				tick += entry.Duration
			}
		}
	}
	return first, last, ok
}
