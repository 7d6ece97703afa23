// Package config loads and validates the session configuration surface:
// devices, the instrument channel map, groove, tempo, rolls, and controller
// LFOs. Every configuration-kind failure is caught here, before a session
// can start.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"tactus/midi"
	"tactus/player"
)

// DeviceConfig describes one output endpoint. Ports are candidate port
// names in preference order.
type DeviceConfig struct {
	Name      string   `yaml:"name"`
	Ports     []string `yaml:"ports"`
	ClockSync bool     `yaml:"clockSync"`
}

// InstrumentConfig maps a logical instrument to a device channel. A missing
// program leaves the patch unchanged.
type InstrumentConfig struct {
	Device  string `yaml:"device"`
	Channel int    `yaml:"channel"`
	Program *int   `yaml:"program"`
}

// LFOConfig describes one controller LFO. Controller "tempo" routes the LFO
// into live tempo automation instead of a MIDI controller.
type LFOConfig struct {
	Waveform     string  `yaml:"waveform"`
	RotationUnit string  `yaml:"rotationUnit"`
	Speed        float64 `yaml:"speed"`
	Phase        float64 `yaml:"phase"`
	MinAmplitude int     `yaml:"minAmplitude"`
	MaxAmplitude int     `yaml:"maxAmplitude"`
	MinValue     *int    `yaml:"minValue"`
	MaxValue     *int    `yaml:"maxValue"`
	Controller   string  `yaml:"controller"`
	Device       string  `yaml:"device"`
	Channel      int     `yaml:"channel"`
	Instrument   string  `yaml:"instrument"` // for the activity rotation unit
}

// Config is the full session configuration.
type Config struct {
	Devices       []DeviceConfig              `yaml:"devices"`
	Instruments   map[string]InstrumentConfig `yaml:"instruments"`
	BPM           float64                     `yaml:"bpm"`
	Groove        string                      `yaml:"groove"`
	Transposition int                         `yaml:"transposition"`
	PreWaitTicks  int                         `yaml:"preWaitTicks"`
	PostWaitTicks int                         `yaml:"postWaitTicks"`
	LFOs          []LFOConfig                 `yaml:"lfos"`
}

// tempoTarget is the reserved controller name for live tempo automation.
const tempoTarget = "tempo"

// Parse decodes a YAML config.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{BPM: 120}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load reads and decodes a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Session is the validated, player-ready form of a Config.
type Session struct {
	Devices       []*midi.Device
	Channels      map[string]midi.DeviceChannel
	Groove        []int
	MilliBPM      int
	Transposition int
	PreWaitTicks  int
	PostWaitTicks int
	LFOs          []*player.LFO
}

// Build validates the config and resolves it into a Session.
func (c *Config) Build() (*Session, error) {
	if c.BPM <= 0 {
		return nil, fmt.Errorf("bpm %v must be positive", c.BPM)
	}
	if len(c.Devices) == 0 {
		return nil, fmt.Errorf("no devices configured")
	}

	byName := make(map[string]*midi.Device)
	s := &Session{
		MilliBPM:      int(math.Round(c.BPM * 1000)),
		Transposition: c.Transposition,
		PreWaitTicks:  c.PreWaitTicks,
		PostWaitTicks: c.PostWaitTicks,
		Channels:      make(map[string]midi.DeviceChannel),
	}
	for _, dc := range c.Devices {
		if dc.Name == "" {
			return nil, fmt.Errorf("device without a name")
		}
		if byName[dc.Name] != nil {
			return nil, fmt.Errorf("duplicate device %q", dc.Name)
		}
		if len(dc.Ports) == 0 {
			return nil, fmt.Errorf("device %q has no candidate ports", dc.Name)
		}
		d := &midi.Device{Name: dc.Name, Ports: dc.Ports, ClockSync: dc.ClockSync}
		byName[dc.Name] = d
		s.Devices = append(s.Devices, d)
	}

	for name, ic := range c.Instruments {
		dev := byName[ic.Device]
		if dev == nil {
			return nil, fmt.Errorf("instrument %q references unknown device %q", name, ic.Device)
		}
		if ic.Channel < 0 || ic.Channel > 15 {
			return nil, fmt.Errorf("instrument %q channel %d out of range 0..15", name, ic.Channel)
		}
		program := -1
		if ic.Program != nil {
			if *ic.Program < 0 || *ic.Program > 127 {
				return nil, fmt.Errorf("instrument %q program %d out of range 0..127", name, *ic.Program)
			}
			program = *ic.Program
		}
		s.Channels[name] = midi.DeviceChannel{Device: dev, Channel: uint8(ic.Channel), Program: program}
	}

	groove, err := player.ParseGroove(c.Groove)
	if err != nil {
		return nil, err
	}
	s.Groove = groove

	for i, lc := range c.LFOs {
		lfo, err := buildLFO(lc, byName)
		if err != nil {
			return nil, fmt.Errorf("lfo %d: %w", i, err)
		}
		s.LFOs = append(s.LFOs, lfo)
	}
	return s, nil
}

func buildLFO(lc LFOConfig, devices map[string]*midi.Device) (*player.LFO, error) {
	wave, err := player.WaveformByName(lc.Waveform)
	if err != nil {
		return nil, err
	}
	unit, err := player.ParseRotationUnit(lc.RotationUnit)
	if err != nil {
		return nil, err
	}

	var target player.Target
	maxValue := 0
	if lc.Controller == tempoTarget {
		target.Tempo = true
		maxValue = math.MaxInt32
	} else {
		control, err := midi.ControlTargetByName(lc.Controller)
		if err != nil {
			return nil, err
		}
		dev := devices[lc.Device]
		if dev == nil {
			return nil, fmt.Errorf("controller target references unknown device %q", lc.Device)
		}
		if lc.Channel < 0 || lc.Channel > 15 {
			return nil, fmt.Errorf("controller target channel %d out of range 0..15", lc.Channel)
		}
		target.Device = dev
		target.Channel = uint8(lc.Channel)
		target.Control = control
		maxValue = control.Max()
	}

	lfo := &player.LFO{
		Wave:         wave,
		Unit:         unit,
		Speed:        lc.Speed,
		Phase:        lc.Phase,
		MinAmplitude: lc.MinAmplitude,
		MaxAmplitude: lc.MaxAmplitude,
		MinValue:     0,
		MaxValue:     maxValue,
		Target:       target,
		Instrument:   lc.Instrument,
	}
	if lc.MinValue != nil {
		lfo.MinValue = *lc.MinValue
	}
	if lc.MaxValue != nil {
		lfo.MaxValue = *lc.MaxValue
	}
	if lfo.MaxValue < lfo.MinValue {
		return nil, fmt.Errorf("inverted value range %d..%d", lfo.MinValue, lfo.MaxValue)
	}
	if lfo.MaxAmplitude < lfo.MinAmplitude {
		return nil, fmt.Errorf("inverted amplitude range %d..%d", lfo.MinAmplitude, lfo.MaxAmplitude)
	}
	return lfo, nil
}
