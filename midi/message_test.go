package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"tactus/song"
)

func TestOutputVelocityBounds(t *testing.T) {
	assert.Equal(t, uint8(0), OutputVelocity(0), "silence stays silence")
	assert.Equal(t, uint8(0), OutputVelocity(-5))
	assert.Equal(t, uint8(1), OutputVelocity(1), "quietest sounding value maps to 1, never 0")
	assert.Equal(t, uint8(127), OutputVelocity(song.MaxVelocity))
	assert.Equal(t, uint8(127), OutputVelocity(song.MaxVelocity+100))
}

func TestOutputVelocityMonotonic(t *testing.T) {
	prev := uint8(0)
	for v := 0; v <= song.MaxVelocity; v += 121 {
		out := OutputVelocity(v)
		assert.GreaterOrEqual(t, out, prev, "velocity map must not decrease at %d", v)
		prev = out
	}
}

func TestControlTargetByName(t *testing.T) {
	ct, err := ControlTargetByName("modulationWheel")
	require.NoError(t, err)
	assert.Equal(t, 127, ct.Max())
	assert.Equal(t, "CC ch=3 num=1 val=64", Format(ct.Message(3, 64)))

	bend, err := ControlTargetByName("pitchBend")
	require.NoError(t, err)
	assert.Equal(t, 16383, bend.Max())
	assert.Equal(t, "PitchBend ch=0 val=8192", Format(bend.Message(0, 8192)))

	_, err = ControlTargetByName("flubber")
	assert.Error(t, err)
}

func TestControlTargetClamps(t *testing.T) {
	ct, err := ControlTargetByName("volume")
	require.NoError(t, err)
	assert.Equal(t, "CC ch=0 num=7 val=127", Format(ct.Message(0, 500)))
	assert.Equal(t, "CC ch=0 num=7 val=0", Format(ct.Message(0, -3)))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "NoteOn ch=1 key=60 vel=100", Format(gomidi.NoteOn(1, 60, 100)))
	assert.Equal(t, "NoteOff ch=1 key=60", Format(gomidi.NoteOff(1, 60)))
	assert.Equal(t, "Program ch=2 prog=5", Format(gomidi.ProgramChange(2, 5)))
	assert.Equal(t, "Start", Format(gomidi.Start()))
	assert.Equal(t, "Stop", Format(gomidi.Stop()))
	assert.Equal(t, "TimingClock", Format(gomidi.TimingClock()))
}
