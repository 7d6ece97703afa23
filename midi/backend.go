// Package midi is the protocol surface of the player: output devices,
// instrument-to-channel resolution, and the message vocabulary built on
// gitlab.com/gomidi/midi/v2.
package midi

import (
	"fmt"
	"sort"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// SendFunc delivers one MIDI message to an open port.
type SendFunc func(msg gomidi.Message) error

// Backend abstracts MIDI output port discovery and opening, so tests can
// substitute a Recorder for real hardware.
type Backend interface {
	// Ports returns the names of the available output ports.
	Ports() []string
	// Open opens the named port and returns a sender plus a close func.
	Open(name string) (SendFunc, func() error, error)
}

type driverBackend struct{}

// Driver returns the Backend backed by the registered gomidi driver.
func Driver() Backend {
	return driverBackend{}
}

func (driverBackend) Ports() []string {
	var names []string
	for _, p := range gomidi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}

func (driverBackend) Open(name string) (SendFunc, func() error, error) {
	for _, p := range gomidi.GetOutPorts() {
		if p.String() != name {
			continue
		}
		send, err := gomidi.SendTo(p)
		if err != nil {
			return nil, nil, fmt.Errorf("open %q: %w", name, err)
		}
		port := p
		return SendFunc(send), port.Close, nil
	}
	return nil, nil, fmt.Errorf("no such output port %q", name)
}

// Recorder is a Backend that captures every sent message instead of talking
// to hardware. Playback tests inspect its trace.
type Recorder struct {
	mu       sync.Mutex
	ports    []string
	trace    []string
	byPort   map[string][]gomidi.Message
	failures map[string]error
	opens    map[string]int
}

// NewRecorder creates a Recorder exposing the given port names.
func NewRecorder(ports ...string) *Recorder {
	return &Recorder{
		ports:    ports,
		byPort:   make(map[string][]gomidi.Message),
		failures: make(map[string]error),
		opens:    make(map[string]int),
	}
}

// FailOpen makes future opens of the named port return err.
func (r *Recorder) FailOpen(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[name] = err
}

func (r *Recorder) Ports() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ports...)
}

func (r *Recorder) Open(name string) (SendFunc, func() error, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failures[name]; err != nil {
		return nil, nil, err
	}
	found := false
	for _, p := range r.ports {
		if p == name {
			found = true
			break
		}
	}
	if !found {
		return nil, nil, fmt.Errorf("no such output port %q", name)
	}
	r.opens[name]++
	send := func(msg gomidi.Message) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.byPort[name] = append(r.byPort[name], msg)
		r.trace = append(r.trace, name+": "+Format(msg))
		return nil
	}
	closeFn := func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.opens[name]--
		return nil
	}
	return send, closeFn, nil
}

// OpenCount returns how many opens of the named port are outstanding.
func (r *Recorder) OpenCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens[name]
}

// Messages returns the messages sent to the named port, in order.
func (r *Recorder) Messages(name string) []gomidi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]gomidi.Message(nil), r.byPort[name]...)
}

// Trace returns every sent message across all ports as "port: message"
// lines, in send order.
func (r *Recorder) Trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.trace...)
}

// Reset drops all recorded messages but keeps ports open.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = nil
	r.byPort = make(map[string][]gomidi.Message)
}

// SortedPorts returns the recorded port names in stable order, for tests
// that iterate over byPort.
func (r *Recorder) SortedPorts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var names []string
	for name := range r.byPort {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
