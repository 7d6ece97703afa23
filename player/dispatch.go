package player

import (
	gomidi "gitlab.com/gomidi/midi/v2"

	"tactus/midi"
	"tactus/song"
)

// dispatcher runs the per-tick note lifecycle over all tracks. Each tick is
// three strict phases per track: expirations, starts, deferred note-offs.
// The phase order matters: a legato target must be sounding before its
// predecessor releases, so that voice-stealing logic on the receiving side
// glides instead of retriggering.
type dispatcher struct {
	arrangement song.Arrangement
	channels    []midi.DeviceChannel // per arrangement entry, resolved once
	cursors     *cursorTable
}

func newDispatcher(arr song.Arrangement, reg *midi.Registry) (*dispatcher, error) {
	d := &dispatcher{
		arrangement: arr,
		channels:    make([]midi.DeviceChannel, len(arr)),
		cursors:     newCursorTable(arr),
	}
	for i, e := range arr {
		dc, err := reg.Resolve(e.Instrument)
		if err != nil {
			return nil, wrap(KindConfiguration, err, "arrangement")
		}
		d.channels[i] = dc
	}
	return d, nil
}

func soundingKey(pitch int) (uint8, error) {
	if pitch < 0 || pitch > 127 {
		return 0, errorf(KindProtocol, "pitch %d out of MIDI range", pitch)
	}
	return uint8(pitch), nil
}

func (d *dispatcher) noteOn(dc midi.DeviceChannel, pitch, velocity int) error {
	key, err := soundingKey(pitch)
	if err != nil {
		return err
	}
	if err := dc.Device.Send(gomidi.NoteOn(dc.Channel, key, midi.OutputVelocity(velocity))); err != nil {
		return wrap(KindProtocol, err, "note on")
	}
	return nil
}

func (d *dispatcher) noteOff(dc midi.DeviceChannel, pitch int) error {
	key, err := soundingKey(pitch)
	if err != nil {
		return err
	}
	if err := dc.Device.Send(gomidi.NoteOff(dc.Channel, key)); err != nil {
		return wrap(KindProtocol, err, "note off")
	}
	return nil
}

// playTick advances every voice by one tick. transposition is snapshotted by
// the caller at the top of the tick and applies to melodic tracks only.
// With silent set, phases 1-2 still advance all cursor state but nothing is
// emitted; that is how skip fast-forwards without audible effect.
func (d *dispatcher) playTick(transposition int, silent bool) error {
	for ti := range d.arrangement {
		track := d.arrangement[ti].Track
		dc := d.channels[ti]
		transpose := 0
		if track.Type == song.TrackMelodic {
			transpose = transposition
		}

		// Phase 1: expirations. A legato note followed by a note of a
		// different pitch keeps sounding until phase 3; releasing it now
		// would put an audible gap before the glide target. Legato into the
		// same pitch cannot glide to itself, so it releases immediately.
		var deferred []int
		for vi, v := range track.Voices {
			c := d.cursors.at(ti, vi)
			if c.remaining != 0 || c.pos == 0 {
				continue
			}
			ended := v[c.pos-1]
			if !ended.IsNote() || c.lastPitch == noPitch {
				continue
			}
			pitch := c.lastPitch
			c.lastPitch = noPitch
			if ended.Legato && c.pos < len(v) && v[c.pos].IsNote() && v[c.pos].Pitch+transpose != pitch {
				deferred = append(deferred, pitch)
				continue
			}
			if silent {
				continue
			}
			if err := d.noteOff(dc, pitch); err != nil {
				return err
			}
		}

		// Phase 2: starts.
		for vi, v := range track.Voices {
			c := d.cursors.at(ti, vi)
			if c.remaining != 0 || c.pos >= len(v) {
				continue
			}
			e := v[c.pos]
			if e.IsNote() {
				pitch := e.Pitch + transpose
				if !silent {
					if err := d.noteOn(dc, pitch, e.Velocity); err != nil {
						return err
					}
				}
				c.lastPitch = pitch
			} else {
				c.lastPitch = noPitch
			}
			c.remaining = e.Duration
			c.pos++
		}

		// Phase 3: deferred offs, strictly after every phase-2 onset.
		if !silent {
			for _, pitch := range deferred {
				if err := d.noteOff(dc, pitch); err != nil {
					return err
				}
			}
		}

		// The tick has now elapsed for every voice.
		for vi := range track.Voices {
			c := d.cursors.at(ti, vi)
			if c.remaining > 0 {
				c.remaining--
			}
		}
	}
	return nil
}

// muteActive releases every currently sounding note, ignoring legato. Runs
// defensively before playback and always after it, normal end or abort, so
// no exit path leaves a note stuck.
func (d *dispatcher) muteActive() error {
	var firstErr error
	for ti := range d.arrangement {
		track := d.arrangement[ti].Track
		dc := d.channels[ti]
		for vi := range track.Voices {
			c := d.cursors.at(ti, vi)
			if c.lastPitch == noPitch {
				continue
			}
			pitch := c.lastPitch
			c.lastPitch = noPitch
			if err := d.noteOff(dc, pitch); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// reset rewinds every cursor to the song start.
func (d *dispatcher) reset() {
	d.cursors.reset()
}
