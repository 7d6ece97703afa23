package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
devices:
  - name: main
    ports: ["IAC Driver Bus 1", "Midi Through"]
    clockSync: true
  - name: sampler
    ports: ["Volca Sample"]
instruments:
  lead:
    device: main
    channel: 0
    program: 5
  bass:
    device: main
    channel: 1
  drums:
    device: sampler
    channel: 9
bpm: 98.5
groove: "3,2,2,3"
transposition: -12
preWaitTicks: 4
postWaitTicks: 8
lfos:
  - waveform: sine
    rotationUnit: beat
    speed: 0.5
    minAmplitude: 20
    maxAmplitude: 110
    controller: modulationWheel
    device: main
    channel: 0
  - waveform: triangle
    rotationUnit: song
    speed: 1
    minAmplitude: 80000
    maxAmplitude: 140000
    controller: tempo
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("devices:\n  - name: main\n    ports: [out]\n"))
	require.NoError(t, err)
	assert.Equal(t, 120.0, cfg.BPM, "bpm defaults when absent")
	assert.Empty(t, cfg.Groove)
	assert.Zero(t, cfg.Transposition)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("devices: [unclosed"))
	require.Error(t, err)
}

func TestBuildFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)
	s, err := cfg.Build()
	require.NoError(t, err)

	assert.Equal(t, 98500, s.MilliBPM)
	assert.Equal(t, -12, s.Transposition)
	assert.Equal(t, 4, s.PreWaitTicks)
	assert.Equal(t, 8, s.PostWaitTicks)

	require.Len(t, s.Devices, 2)
	assert.Equal(t, "main", s.Devices[0].Name)
	assert.True(t, s.Devices[0].ClockSync)
	assert.False(t, s.Devices[1].ClockSync)

	lead := s.Channels["lead"]
	assert.Same(t, s.Devices[0], lead.Device)
	assert.Equal(t, uint8(0), lead.Channel)
	assert.Equal(t, 5, lead.Program)
	assert.Equal(t, -1, s.Channels["bass"].Program, "missing program leaves the patch unchanged")
	assert.Same(t, s.Devices[1], s.Channels["drums"].Device)

	// Groove weights normalize to a cycle sum of len * 1000.
	require.Len(t, s.Groove, 4)
	sum := 0
	for _, w := range s.Groove {
		sum += w
	}
	assert.Equal(t, 4000, sum)

	require.Len(t, s.LFOs, 2)
	mod := s.LFOs[0]
	assert.False(t, mod.Target.Tempo)
	assert.Same(t, s.Devices[0], mod.Target.Device)
	assert.Equal(t, 0, mod.MinValue)
	assert.Equal(t, 127, mod.MaxValue, "value range defaults to the controller's full range")
	tempo := s.LFOs[1]
	assert.True(t, tempo.Target.Tempo)
	assert.Nil(t, tempo.Target.Device)
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero bpm", func(c *Config) { c.BPM = 0 }, "bpm"},
		{"no devices", func(c *Config) { c.Devices = nil }, "no devices"},
		{"unnamed device", func(c *Config) { c.Devices[0].Name = "" }, "without a name"},
		{"duplicate device", func(c *Config) { c.Devices[1].Name = "main" }, "duplicate device"},
		{"device without ports", func(c *Config) { c.Devices[0].Ports = nil }, "no candidate ports"},
		{"unknown instrument device", func(c *Config) {
			ic := c.Instruments["lead"]
			ic.Device = "ghost"
			c.Instruments["lead"] = ic
		}, "unknown device"},
		{"channel out of range", func(c *Config) {
			ic := c.Instruments["lead"]
			ic.Channel = 16
			c.Instruments["lead"] = ic
		}, "out of range 0..15"},
		{"program out of range", func(c *Config) {
			p := 128
			ic := c.Instruments["lead"]
			ic.Program = &p
			c.Instruments["lead"] = ic
		}, "out of range 0..127"},
		{"malformed groove", func(c *Config) { c.Groove = "3 x 2" }, "groove"},
		{"unknown waveform", func(c *Config) { c.LFOs[0].Waveform = "trapezoid" }, "waveform"},
		{"unknown rotation unit", func(c *Config) { c.LFOs[0].RotationUnit = "fortnight" }, "rotation unit"},
		{"unknown controller", func(c *Config) { c.LFOs[0].Controller = "flanger" }, "controller"},
		{"controller unknown device", func(c *Config) { c.LFOs[0].Device = "ghost" }, "unknown device"},
		{"controller channel out of range", func(c *Config) { c.LFOs[0].Channel = -1 }, "out of range"},
		{"inverted value range", func(c *Config) {
			lo, hi := 100, 10
			c.LFOs[0].MinValue = &lo
			c.LFOs[0].MaxValue = &hi
		}, "inverted value range"},
		{"inverted amplitude range", func(c *Config) {
			c.LFOs[0].MinAmplitude = 110
			c.LFOs[0].MaxAmplitude = 20
		}, "inverted amplitude range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(fullConfig))
			require.NoError(t, err)
			tt.mutate(cfg)
			_, err = cfg.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
