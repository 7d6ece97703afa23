package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"

	"tactus/song"
)

// OutputVelocity rescales an internal velocity (0..song.MaxVelocity) to the
// 7-bit wire range. Zero maps to zero; anything sounding maps to at least 1
// so a quiet note is never silently dropped.
func OutputVelocity(v int) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= song.MaxVelocity {
		return 127
	}
	return uint8(1 + (v-1)*126/(song.MaxVelocity-1))
}

// Continuous controller numbers by configuration name. Pitch bend is special
// cased in ControlTargetByName since it is not a control change.
var controllerNumbers = map[string]uint8{
	"modulationWheel": 1,
	"breath":          2,
	"footPedal":       4,
	"portamentoTime":  5,
	"volume":          7,
	"balance":         8,
	"pan":             10,
	"expression":      11,
	"effect1Depth":    91,
	"effect2Depth":    92,
	"effect3Depth":    93,
	"effect4Depth":    94,
	"effect5Depth":    95,
}

const pitchBendName = "pitchBend"

// ControlTarget is a resolved continuous-controller destination: either a
// control change number or the pitch bend wheel.
type ControlTarget struct {
	name string
	cc   uint8
	bend bool
}

// ControlTargetByName resolves a configuration controller name. Unknown
// names are a configuration error.
func ControlTargetByName(name string) (ControlTarget, error) {
	if name == pitchBendName {
		return ControlTarget{name: name, bend: true}, nil
	}
	if cc, ok := controllerNumbers[name]; ok {
		return ControlTarget{name: name, cc: cc}, nil
	}
	return ControlTarget{}, fmt.Errorf("unknown controller %q", name)
}

// Name returns the configuration name of the target.
func (t ControlTarget) Name() string { return t.name }

// Max returns the largest value the target accepts (14-bit for pitch bend,
// 7-bit for control changes).
func (t ControlTarget) Max() int {
	if t.bend {
		return 16383
	}
	return 127
}

// Message builds the wire message carrying value to the target on channel.
func (t ControlTarget) Message(channel uint8, value int) gomidi.Message {
	if value < 0 {
		value = 0
	}
	if value > t.Max() {
		value = t.Max()
	}
	if t.bend {
		return gomidi.Pitchbend(channel, int16(value-8192))
	}
	return gomidi.ControlChange(channel, t.cc, uint8(value))
}

// Format renders a message for traces and debug logs.
func Format(msg gomidi.Message) string {
	var ch, b1, b2 uint8
	var rel int16
	var abs uint16
	switch {
	case msg.GetNoteOn(&ch, &b1, &b2):
		return fmt.Sprintf("NoteOn ch=%d key=%d vel=%d", ch, b1, b2)
	case msg.GetNoteOff(&ch, &b1, &b2):
		return fmt.Sprintf("NoteOff ch=%d key=%d", ch, b1)
	case msg.GetControlChange(&ch, &b1, &b2):
		return fmt.Sprintf("CC ch=%d num=%d val=%d", ch, b1, b2)
	case msg.GetProgramChange(&ch, &b1):
		return fmt.Sprintf("Program ch=%d prog=%d", ch, b1)
	case msg.GetPitchBend(&ch, &rel, &abs):
		return fmt.Sprintf("PitchBend ch=%d val=%d", ch, abs)
	case msg.Is(gomidi.StartMsg):
		return "Start"
	case msg.Is(gomidi.StopMsg):
		return "Stop"
	case msg.Is(gomidi.TimingClockMsg):
		return "TimingClock"
	}
	return msg.String()
}
