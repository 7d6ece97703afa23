// Package player is the real-time playback core: it advances a discrete tick
// clock with a drift-free wait loop, emits ordered note lifecycle events,
// keeps synchronized devices phase-locked, and layers controller automation
// on top. One goroutine owns the loop; AbortPlay and SkipToTick are the only
// cross-thread entry points and act as polled atomic signals.
package player

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tactus/debug"
	"tactus/midi"
	"tactus/song"
)

// State is the lifecycle state of a Player.
type State int

const (
	StateClosed State = iota
	StateOpen
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StatePlaying:
		return "playing"
	}
	return "unknown"
}

const noSkip = -1

// Options configures a Player for one or more sessions over the same song.
type Options struct {
	Structure   song.Structure
	Arrangement song.Arrangement

	Devices  []*midi.Device
	Channels map[string]midi.DeviceChannel
	Backend  midi.Backend // nil = the real MIDI driver

	Groove        []int // weights; normalized internally, nil = flat
	Transposition int
	MilliBPM      int
	PreWaitTicks  int // clock runs, no notes, before tick 0
	PostWaitTicks int // clock runs, no notes, after the last tick
	LFOs          []*LFO
}

// Player is the playback lifecycle controller.
type Player struct {
	structure     song.Structure
	arrangement   song.Arrangement
	registry      *midi.Registry
	disp          *dispatcher
	groove        []int
	transposition int
	initialTempo  int
	preWait       int
	postWait      int
	lfos          []*LFO
	pulsesPerTick int // 0 when no device wants sync

	mu    sync.Mutex
	state State

	// Session state. currentTick and milliBPM are atomics only so observers
	// (UI, SkipToTick) can read them; the playback loop is the sole writer.
	currentTick atomic.Int64
	milliBPM    atomic.Int64
	abort       atomic.Bool
	skip        atomic.Int64 // single-slot skip mailbox, noSkip when empty

	now   func() time.Time
	sleep func(time.Duration)
}

// New validates the configuration and builds a Player in the closed state.
// Every failure detectable before a session starts is caught here.
func New(opts Options) (*Player, error) {
	st := opts.Structure
	if st.TicksPerBeat <= 0 || st.TotalTicks <= 0 {
		return nil, errorf(KindConfiguration, "structure needs positive ticksPerBeat and totalTicks, got %+v", st)
	}
	if opts.MilliBPM <= 0 {
		return nil, errorf(KindConfiguration, "tempo %d milliBPM must be positive", opts.MilliBPM)
	}
	if opts.PreWaitTicks < 0 || opts.PostWaitTicks < 0 {
		return nil, errorf(KindConfiguration, "negative wait ticks")
	}

	groove := opts.Groove
	if len(groove) == 0 {
		groove = []int{grooveScale}
	} else {
		for _, w := range groove {
			if w <= 0 {
				return nil, errorf(KindConfiguration, "groove weight %d must be positive", w)
			}
		}
		groove = NormalizeGroove(groove)
	}

	if err := validateArrangement(st, opts.Arrangement); err != nil {
		return nil, err
	}

	pulsesPerTick := 0
	for _, d := range opts.Devices {
		if d.ClockSync {
			if pulsesPerBeat%st.TicksPerBeat != 0 {
				return nil, errorf(KindConfiguration,
					"ticksPerBeat %d does not divide the %d pulse-per-beat sync grid", st.TicksPerBeat, pulsesPerBeat)
			}
			pulsesPerTick = pulsesPerBeat / st.TicksPerBeat
			break
		}
	}

	backend := opts.Backend
	if backend == nil {
		backend = midi.Driver()
	}
	registry := midi.NewRegistry(backend, opts.Devices, opts.Channels)

	disp, err := newDispatcher(opts.Arrangement, registry)
	if err != nil {
		return nil, err
	}

	for _, l := range opts.LFOs {
		if l.Wave == nil {
			return nil, errorf(KindConfiguration, "controller LFO without waveform")
		}
		if _, err := ParseRotationUnit(string(l.Unit)); err != nil {
			return nil, err
		}
		if l.MaxValue < l.MinValue || l.MaxAmplitude < l.MinAmplitude {
			return nil, errorf(KindConfiguration, "controller LFO with inverted value or amplitude range")
		}
		if !l.Target.Tempo && l.Target.Device == nil {
			return nil, errorf(KindConfiguration, "controller LFO targets no device")
		}
	}

	p := &Player{
		structure:     st,
		arrangement:   opts.Arrangement,
		registry:      registry,
		disp:          disp,
		groove:        groove,
		transposition: opts.Transposition,
		initialTempo:  opts.MilliBPM,
		preWait:       opts.PreWaitTicks,
		postWait:      opts.PostWaitTicks,
		lfos:          opts.LFOs,
		pulsesPerTick: pulsesPerTick,
		now:           time.Now,
		sleep:         time.Sleep,
	}
	p.milliBPM.Store(int64(opts.MilliBPM))
	p.skip.Store(noSkip)
	return p, nil
}

// validateArrangement flags upstream contract violations before a cursor can
// run off the end of a voice mid-session.
func validateArrangement(st song.Structure, arr song.Arrangement) error {
	for ti, e := range arr {
		for vi, v := range e.Track.Voices {
			total := 0
			for _, entry := range v {
				if entry.Duration < 1 {
					return errorf(KindConfiguration, "track %d voice %d has entry with duration %d", ti, vi, entry.Duration)
				}
				if entry.Velocity < 0 || entry.Velocity > song.MaxVelocity {
					return errorf(KindConfiguration, "track %d voice %d has velocity %d out of range", ti, vi, entry.Velocity)
				}
				total += entry.Duration
			}
			if total != st.TotalTicks {
				return errorf(KindConfiguration, "track %d voice %d covers %d ticks, song has %d", ti, vi, total, st.TotalTicks)
			}
		}
	}
	return nil
}

// State returns the current lifecycle state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CurrentTick returns the tick the playback loop will process next.
func (p *Player) CurrentTick() int {
	return int(p.currentTick.Load())
}

// Tempo returns the live tempo in milliBPM.
func (p *Player) Tempo() int {
	return int(p.milliBPM.Load())
}

// Structure returns the session's time grid.
func (p *Player) Structure() song.Structure {
	return p.structure
}

func (p *Player) setTempo(milliBPM int) {
	if milliBPM > 0 {
		p.milliBPM.Store(int64(milliBPM))
	}
}

// Open opens every configured device, all-or-nothing. Opening an open player
// is a lifecycle error.
func (p *Player) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateClosed {
		return errorf(KindLifecycle, "open: player already %s", p.state)
	}
	if err := p.registry.Open(); err != nil {
		return wrap(KindDevice, err, "open")
	}
	p.state = StateOpen
	debug.Log("player", "opened %d devices", len(p.registry.Devices()))
	return nil
}

// Close mutes all mapped channels and releases every device. Closing a
// closed player is a no-op; closing while playing is a lifecycle error.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StatePlaying:
		return errorf(KindLifecycle, "close while playing")
	case StateClosed:
		return nil
	}
	err := p.registry.Close()
	p.state = StateClosed
	debug.Log("player", "closed")
	if err != nil {
		return wrap(KindDevice, err, "close")
	}
	return nil
}

// MuteAllChannels sends all-sound-off on every mapped channel.
func (p *Player) MuteAllChannels() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateClosed {
		return errorf(KindLifecycle, "mute: player is closed")
	}
	if err := p.registry.MuteAllChannels(); err != nil {
		return wrap(KindProtocol, err, "mute all channels")
	}
	return nil
}

// AbortPlay asks the playback loop to stop at the next tick boundary. No-op
// unless playing. It performs no cleanup itself; Play always runs its fixed
// mute/post-roll tail before returning.
func (p *Player) AbortPlay() {
	p.mu.Lock()
	playing := p.state == StatePlaying
	p.mu.Unlock()
	if playing {
		p.abort.Store(true)
	}
}

// SkipToTick asks the playback loop to fast-forward to the given tick at the
// next boundary. Backward targets are rejected: cursors are not invertible
// without replay. Skipping to the current tick is a no-op success.
func (p *Player) SkipToTick(tick int) bool {
	p.mu.Lock()
	playing := p.state == StatePlaying
	p.mu.Unlock()
	cur := p.CurrentTick()
	if !playing || tick < cur || tick >= p.structure.TotalTicks {
		return false
	}
	if tick == cur {
		return true
	}
	p.skip.Store(int64(tick))
	return true
}

// Play runs one playback session to completion. Regardless of normal
// completion, abort, cancellation, or error, the sequence is fixed:
// pre-roll wait, main tick loop, mute-all-active, post-roll wait. That tail
// is what guarantees no stuck notes survive any exit path.
func (p *Player) Play(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	p.mu.Lock()
	if p.state != StateOpen {
		p.mu.Unlock()
		return errorf(KindLifecycle, "play: player is %s, not open", p.state)
	}
	p.state = StatePlaying
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.state = StateOpen
		p.mu.Unlock()
	}()

	// Fresh session state.
	p.abort.Store(false)
	p.skip.Store(noSkip)
	p.currentTick.Store(0)
	p.milliBPM.Store(int64(p.initialTempo))
	p.disp.reset()
	for _, l := range p.lfos {
		l.prepare(p.structure, p.arrangement, p.initialTempo)
	}

	if err := p.registry.ApplyPrograms(); err != nil {
		return wrap(KindProtocol, err, "program select")
	}

	sync := p.registry.HasSync()
	if sync {
		if err := p.registry.SendStart(); err != nil {
			return wrap(KindProtocol, err, "sync start")
		}
	}

	tb := newTimebase(sync, p.now, p.sleep)
	tb.start()

	// Defensive: nothing may be sounding before the first tick.
	p.disp.muteActive()

	debug.Log("play", "session start: %d ticks at %d milliBPM", p.structure.TotalTicks, p.initialTempo)

	playErr := p.waitTicks(tb, p.preWait)
	if playErr == nil {
		playErr = p.run(ctx, tb)
	}

	// Fixed tail, every exit path.
	if err := p.disp.muteActive(); err != nil && playErr == nil {
		playErr = err
	}
	if err := p.waitTicks(tb, p.postWait); err != nil && playErr == nil {
		playErr = err
	}
	if sync {
		if err := p.registry.SendStop(); err != nil && playErr == nil {
			playErr = wrap(KindProtocol, err, "sync stop")
		}
	}
	debug.Log("play", "session end (tick %d)", p.CurrentTick())
	return playErr
}

// run is the main tick loop. It is the sole writer of all cursor, LFO and
// tempo state for the session.
func (p *Player) run(ctx context.Context, tb *timebase) error {
	total := p.structure.TotalTicks
	tick := 0
	for tick < total {
		if p.abort.Load() || ctx.Err() != nil {
			debug.Log("play", "aborted at tick %d", tick)
			return nil
		}
		if req := p.skip.Swap(noSkip); req >= 0 {
			var err error
			tick, err = p.applySkip(int(req), tick)
			p.currentTick.Store(int64(tick))
			if err != nil {
				return err
			}
			continue
		}
		if tb.next() == deadlinePulse {
			if err := p.registry.SendPulse(); err != nil {
				return wrap(KindProtocol, err, "sync pulse")
			}
			tb.advancePulse(pulseDuration(p.structure.TicksPerBeat, p.Tempo(), p.pulsesPerTick))
			continue
		}
		if err := p.disp.playTick(p.transposition, false); err != nil {
			return err
		}
		for _, l := range p.lfos {
			if err := l.apply(tick, p.setTempo); err != nil {
				return err
			}
		}
		debug.LogEvery(256, "tick", "at tick %d", tick)
		tb.advanceTick(tickDuration(p.groove, tick, p.structure.TicksPerBeat, p.Tempo()))
		tick++
		p.currentTick.Store(int64(tick))
	}
	return nil
}

// applySkip honors a skip request at a tick boundary: mute, rewind, replay
// the prefix silently, resume at the target. Stale (non-forward) requests
// are ignored.
func (p *Player) applySkip(target, tick int) (int, error) {
	if target <= tick {
		return tick, nil
	}
	if err := p.disp.muteActive(); err != nil {
		return tick, err
	}
	p.disp.reset()
	for t := 0; t < target; t++ {
		if err := p.disp.playTick(p.transposition, true); err != nil {
			return t, err
		}
	}
	debug.Log("skip", "fast-forwarded %d -> %d", tick, target)
	return target, nil
}

// waitTicks runs the clock for n silent ticks, keeping sync pulses flowing.
// Used for the pre-roll and post-roll.
func (p *Player) waitTicks(tb *timebase, n int) error {
	for i := 0; i < n; {
		if tb.next() == deadlinePulse {
			if err := p.registry.SendPulse(); err != nil {
				return wrap(KindProtocol, err, "sync pulse")
			}
			tb.advancePulse(pulseDuration(p.structure.TicksPerBeat, p.Tempo(), p.pulsesPerTick))
			continue
		}
		tb.advanceTick(tickDuration(p.groove, i, p.structure.TicksPerBeat, p.Tempo()))
		i++
	}
	return nil
}
