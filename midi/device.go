package midi

import (
	"fmt"
	"sort"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// allSoundOff is the control change that silences a channel immediately.
const allSoundOff = 120

// Device is one logical output endpoint. Ports lists candidate port names in
// preference order; the first one present on the backend wins. Devices with
// ClockSync set receive realtime Start/Stop and timing pulses so downstream
// gear stays phase-locked.
type Device struct {
	Name      string
	Ports     []string
	ClockSync bool

	send    SendFunc
	closeFn func() error
	port    string
}

// Open resolves and opens the device's port. Opening an already open device
// is an error; Close must run first.
func (d *Device) Open(b Backend) error {
	if d.send != nil {
		return fmt.Errorf("device %q already open", d.Name)
	}
	available := b.Ports()
	name, ok := d.resolvePort(available)
	if !ok {
		return fmt.Errorf("device %q: none of %v found among output ports %v", d.Name, d.Ports, available)
	}
	send, closeFn, err := b.Open(name)
	if err != nil {
		return fmt.Errorf("device %q: %w", d.Name, err)
	}
	d.send = send
	d.closeFn = closeFn
	d.port = name
	return nil
}

// resolvePort picks the first candidate with an exact match, falling back to
// a case-insensitive substring match (port names often carry driver
// suffixes).
func (d *Device) resolvePort(available []string) (string, bool) {
	for _, cand := range d.Ports {
		for _, p := range available {
			if p == cand {
				return p, true
			}
		}
		for _, p := range available {
			if strings.Contains(strings.ToLower(p), strings.ToLower(cand)) {
				return p, true
			}
		}
	}
	return "", false
}

// IsOpen reports whether the device currently holds an open port.
func (d *Device) IsOpen() bool { return d.send != nil }

// Port returns the resolved port name, or "" if not open.
func (d *Device) Port() string { return d.port }

// Send delivers one message to the device.
func (d *Device) Send(msg gomidi.Message) error {
	if d.send == nil {
		return fmt.Errorf("device %q not open", d.Name)
	}
	return d.send(msg)
}

// Close releases the device's port. Closing a closed device is a no-op.
func (d *Device) Close() error {
	if d.send == nil {
		return nil
	}
	err := d.closeFn()
	d.send = nil
	d.closeFn = nil
	d.port = ""
	return err
}

// DeviceChannel addresses one channel on one device. Program -1 leaves the
// patch unchanged. Two DeviceChannels are interchangeable when device,
// channel and program agree; program selection is de-duplicated on that
// basis.
type DeviceChannel struct {
	Device  *Device
	Channel uint8 // 0..15
	Program int   // -1 = leave unchanged
}

type channelKey struct {
	device  string
	channel uint8
	program int
}

func (dc DeviceChannel) key() channelKey {
	return channelKey{device: dc.Device.Name, channel: dc.Channel, program: dc.Program}
}

// Registry owns the configured devices and the instrument-to-channel map for
// one session.
type Registry struct {
	backend  Backend
	devices  []*Device
	channels map[string]DeviceChannel
	opened   bool
}

// NewRegistry creates a registry over the given devices and channel map.
func NewRegistry(backend Backend, devices []*Device, channels map[string]DeviceChannel) *Registry {
	return &Registry{backend: backend, devices: devices, channels: channels}
}

// Devices returns the configured devices in order.
func (r *Registry) Devices() []*Device { return r.devices }

// IsOpen reports whether Open has succeeded without a matching Close.
func (r *Registry) IsOpen() bool { return r.opened }

// Open opens every device. All-or-nothing: if any device fails, the ones
// opened so far are closed again and the registry stays closed.
func (r *Registry) Open() error {
	if r.opened {
		return fmt.Errorf("registry already open")
	}
	for i, d := range r.devices {
		if err := d.Open(r.backend); err != nil {
			for _, prev := range r.devices[:i] {
				prev.Close()
			}
			return err
		}
	}
	r.opened = true
	return nil
}

// Close mutes every mapped channel, then releases every device. Safe no-op
// when not open.
func (r *Registry) Close() error {
	if !r.opened {
		return nil
	}
	err := r.MuteAllChannels()
	for _, d := range r.devices {
		if cerr := d.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	r.opened = false
	return err
}

// Resolve maps an instrument name to its device channel. An unmapped
// instrument is a configuration error.
func (r *Registry) Resolve(instrument string) (DeviceChannel, error) {
	dc, ok := r.channels[instrument]
	if !ok {
		return DeviceChannel{}, fmt.Errorf("instrument %q not in channel map", instrument)
	}
	return dc, nil
}

// sortedInstruments gives a stable iteration order over the channel map.
func (r *Registry) sortedInstruments() []string {
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPrograms sends exactly one program change per distinct
// (device, channel, program) combination with a program configured.
func (r *Registry) ApplyPrograms() error {
	sent := make(map[channelKey]bool)
	for _, name := range r.sortedInstruments() {
		dc := r.channels[name]
		if dc.Program < 0 || sent[dc.key()] {
			continue
		}
		sent[dc.key()] = true
		if err := dc.Device.Send(gomidi.ProgramChange(dc.Channel, uint8(dc.Program))); err != nil {
			return err
		}
	}
	return nil
}

// MuteAllChannels sends all-sound-off on every distinct mapped channel.
func (r *Registry) MuteAllChannels() error {
	type muteKey struct {
		device  string
		channel uint8
	}
	sent := make(map[muteKey]bool)
	for _, name := range r.sortedInstruments() {
		dc := r.channels[name]
		k := muteKey{device: dc.Device.Name, channel: dc.Channel}
		if sent[k] {
			continue
		}
		sent[k] = true
		if err := dc.Device.Send(gomidi.ControlChange(dc.Channel, allSoundOff, 0)); err != nil {
			return err
		}
	}
	return nil
}

// HasSync reports whether any device wants clock synchronization.
func (r *Registry) HasSync() bool {
	for _, d := range r.devices {
		if d.ClockSync {
			return true
		}
	}
	return false
}

func (r *Registry) sendSync(msg gomidi.Message) error {
	for _, d := range r.devices {
		if !d.ClockSync {
			continue
		}
		if err := d.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// SendStart tells synchronized devices playback begins.
func (r *Registry) SendStart() error { return r.sendSync(gomidi.Start()) }

// SendStop tells synchronized devices playback ended.
func (r *Registry) SendStop() error { return r.sendSync(gomidi.Stop()) }

// SendPulse emits one timing pulse to synchronized devices.
func (r *Registry) SendPulse() error { return r.sendSync(gomidi.TimingClock()) }
