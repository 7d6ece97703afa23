package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tactus/midi"
	"tactus/song"
)

// fakeClock drives the timebase deterministically: sleeping advances the
// clock instead of waiting, with optional overshoot to model a tardy host
// scheduler and a callback so tests can act mid-session from the playback
// goroutine.
type fakeClock struct {
	now       time.Time
	overshoot time.Duration
	slept     int
	onSleep   func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(0, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d + c.overshoot)
	c.slept++
	if c.onSleep != nil {
		c.onSleep(c.slept)
	}
}

// testSong is a two-instrument arrangement exercising legato, pauses and a
// rhythmic track.
func testSong() (song.Structure, song.Arrangement) {
	st := song.Structure{TicksPerBeat: 4, TicksPerBar: 8, TotalTicks: 16}
	lead := song.Voice{
		song.Note(60, 20000, 4, true),
		song.Note(62, 20000, 4, false),
		song.Pause(2),
		song.Note(64, 20000, 4, true),
		song.Note(64, 20000, 2, false),
	}
	kick := song.Voice{
		song.Note(36, 30000, 2, false), song.Pause(6),
		song.Note(36, 30000, 2, false), song.Pause(6),
	}
	arr := song.Arrangement{
		{Track: &song.Track{Type: song.TrackMelodic, Voices: []song.Voice{lead}}, Instrument: "lead"},
		{Track: &song.Track{Type: song.TrackRhythmic, Voices: []song.Voice{kick}}, Instrument: "drums"},
	}
	return st, arr
}

func testDevices(sync bool) ([]*midi.Device, map[string]midi.DeviceChannel) {
	main := &midi.Device{Name: "main", Ports: []string{"out"}, ClockSync: sync}
	channels := map[string]midi.DeviceChannel{
		"lead":  {Device: main, Channel: 0, Program: -1},
		"drums": {Device: main, Channel: 9, Program: -1},
	}
	return []*midi.Device{main}, channels
}

// newTestPlayer builds an opened player over a Recorder and a fake clock.
func newTestPlayer(t *testing.T, opts Options) (*Player, *midi.Recorder, *fakeClock) {
	t.Helper()
	rec := midi.NewRecorder("out")
	opts.Backend = rec
	if opts.Devices == nil {
		opts.Devices, opts.Channels = testDevices(false)
	}
	p, err := New(opts)
	require.NoError(t, err)
	clock := newFakeClock()
	p.now = clock.Now
	p.sleep = clock.Sleep
	require.NoError(t, p.Open())
	t.Cleanup(func() { p.Close() })
	rec.Reset() // drop any open-time noise, keep session messages only
	return p, rec, clock
}

// newTestDispatcher builds a dispatcher over an open registry and Recorder.
func newTestDispatcher(t *testing.T, arr song.Arrangement) (*dispatcher, *midi.Recorder) {
	t.Helper()
	rec := midi.NewRecorder("out")
	devices, channels := testDevices(false)
	reg := midi.NewRegistry(rec, devices, channels)
	require.NoError(t, reg.Open())
	t.Cleanup(func() { reg.Close() })
	d, err := newDispatcher(arr, reg)
	require.NoError(t, err)
	return d, rec
}
