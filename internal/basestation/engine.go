package basestation

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/lhctl/internal/ble"
)

// Command payloads. Both characteristics take a single byte.
const (
	cmdPowerOff = 0x00
	cmdPowerOn  = 0x01
	cmdIdentify = 0x01
)

// scanSessionID keys the discovery-window timer in the one-shot registry.
// Real device identifiers are BLE addresses and can never collide with it.
const scanSessionID = "scan-session"

// Action is a command that can be applied to one or more base stations.
type Action int

const (
	ActionPowerOn Action = iota
	ActionPowerOff
	ActionIdentify
)

func (a Action) String() string {
	switch a {
	case ActionPowerOn:
		return "power-on"
	case ActionPowerOff:
		return "power-off"
	case ActionIdentify:
		return "identify"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Options configures discovery filtering and the engine's timing.
type Options struct {
	NamePrefix       string        // advertised-name filter for discovery
	ScanWindow       time.Duration // length of one discovery window
	PollInterval     time.Duration // status poll tick
	PollTimeout      time.Duration // give up waiting for power-on confirmation
	IdentifyDuration time.Duration // assumed duration of the identify blink
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		NamePrefix:       "LHB-",
		ScanWindow:       10 * time.Second,
		PollInterval:     time.Second,
		PollTimeout:      18 * time.Second,
		IdentifyDuration: 20 * time.Second,
	}
}

// Engine tracks every base station found in the current scan session,
// issues power and identify commands over the transport, and folds the
// transport's asynchronous events into per-device state reported to the
// Observer.
//
// All engine state is guarded by one mutex: transport events, timer ticks
// and caller commands are serialized through it, so there is a single
// logical execution context per session. Observer methods are invoked
// under that context and must follow the Observer contract.
type Engine struct {
	transport ble.Transport
	observer  Observer
	opts      Options

	mu        sync.Mutex
	scanning  bool
	available bool // adapter usable, updated by AdapterStateChanged
	stations  map[string]*Basestation
	lastState map[string]State
	connected map[string]bool
	ready     map[string]bool // control service enumerated
	timers    *timerRegistry
}

// NewEngine creates an engine over the given transport and registers
// itself as the transport's event handler. Zero-valued Options fields
// fall back to DefaultOptions.
func NewEngine(transport ble.Transport, observer Observer, opts Options) *Engine {
	def := DefaultOptions()
	if opts.NamePrefix == "" {
		opts.NamePrefix = def.NamePrefix
	}
	if opts.ScanWindow <= 0 {
		opts.ScanWindow = def.ScanWindow
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = def.PollTimeout
	}
	if opts.IdentifyDuration <= 0 {
		opts.IdentifyDuration = def.IdentifyDuration
	}
	if observer == nil {
		observer = NopObserver{}
	}

	e := &Engine{
		transport: transport,
		observer:  observer,
		opts:      opts,
		available: true,
		stations:  make(map[string]*Basestation),
		lastState: make(map[string]State),
		connected: make(map[string]bool),
		ready:     make(map[string]bool),
		timers:    newTimerRegistry(),
	}
	transport.SetHandler(e)
	return e
}

// StartScan opens a new discovery window. Any previous session is torn
// down first: all timers are cancelled, all connections dropped and the
// tracked set cleared, so nothing leaks across rescans. Starting a scan
// while one is active is a no-op.
func (e *Engine) StartScan() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.scanning {
		slog.Warn("[ENGINE] scan already in progress")
		return
	}

	e.resetLocked()
	e.observer.ScanStarted()

	if !e.available {
		slog.Warn("[ENGINE] adapter unavailable, skipping discovery")
		e.observer.ScanCompleted()
		return
	}
	if err := e.transport.StartScan(); err != nil {
		slog.Warn("[ENGINE] failed to open scan", "error", err)
		e.observer.ScanCompleted()
		return
	}

	e.scanning = true
	e.timers.startOneShot(scanSessionID, e.opts.ScanWindow, e.finishScan)
	slog.Info("[ENGINE] scanning", "window", e.opts.ScanWindow, "prefix", e.opts.NamePrefix)
}

// finishScan closes the discovery window: the physical scan stops, every
// station in the working set is reported and connected, and the session
// moves to the tracking phase.
func (e *Engine) finishScan() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.scanning {
		return
	}
	e.scanning = false
	e.transport.StopScan()

	for _, bs := range e.sortedLocked() {
		e.observer.Discovered(bs.ID, bs.Name)
		e.transport.Connect(bs.ID)
	}
	slog.Info("[ENGINE] scan completed", "found", len(e.stations))
	e.observer.ScanCompleted()
}

// resetLocked tears down the previous session.
func (e *Engine) resetLocked() {
	e.timers.stopAll()
	for id := range e.connected {
		e.transport.Disconnect(id)
	}
	e.stations = make(map[string]*Basestation)
	e.lastState = make(map[string]State)
	e.connected = make(map[string]bool)
	e.ready = make(map[string]bool)
}

// Basestations returns a sorted snapshot of the tracked stations.
func (e *Engine) Basestations() []Basestation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortedLocked()
}

func (e *Engine) sortedLocked() []Basestation {
	list := make([]Basestation, 0, len(e.stations))
	for _, bs := range e.stations {
		list = append(list, *bs)
	}
	sortStations(list)
	return list
}

// Apply issues the action to each target station independently: one
// station's failure never blocks or affects another's.
func (e *Engine) Apply(action Action, ids []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		if _, ok := e.stations[id]; !ok {
			slog.Warn("[ENGINE] action on unknown station", "action", action, "id", id)
			continue
		}
		switch action {
		case ActionPowerOn:
			e.powerOnLocked(id)
		case ActionPowerOff:
			e.powerOffLocked(id)
		case ActionIdentify:
			e.identifyLocked(id)
		}
	}
}

// powerOnLocked reports Unknown (the command is in flight), starts the
// confirmation poll and writes the power-on byte.
func (e *Engine) powerOnLocked(id string) {
	e.setStateLocked(id, StateUnknown)
	e.timers.startPoll(id, e.opts.PollInterval, func(elapsed time.Duration) {
		e.pollTick(id, elapsed)
	})
	e.transport.Write(id, ble.CharPower, []byte{cmdPowerOn})
}

// powerOffLocked cancels any confirmation poll, reports Unknown and
// writes the power-off byte.
func (e *Engine) powerOffLocked(id string) {
	e.timers.stopPoll(id)
	e.setStateLocked(id, StateUnknown)
	e.transport.Write(id, ble.CharPower, []byte{cmdPowerOff})
}

// identifyLocked triggers the locate blink. The device sends no distinct
// identify-complete signal, so completion is assumed after
// IdentifyDuration; the one-shot then reports On. This is a deliberate
// approximation of the blink length, not a confirmation.
func (e *Engine) identifyLocked(id string) {
	e.setStateLocked(id, StateIdentifying)
	e.timers.startOneShot(id, e.opts.IdentifyDuration, func() {
		e.identifyDone(id)
	})
	e.transport.Write(id, ble.CharIdentify, []byte{cmdIdentify})
}

func (e *Engine) identifyDone(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.stations[id]; !ok {
		return
	}
	e.setStateLocked(id, StateOn)
}

// pollTick runs on every poll interval: it requests a fresh status read
// and gives up with StateError once the elapsed time reaches the timeout.
// The read result arrives later, asynchronously, through
// CharacteristicValue, possibly after several more ticks or not at all.
func (e *Engine) pollTick(id string, elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// This tick may have been in flight while the poll was cancelled or
	// replaced (a confirmed On, a power-off, a rescan). Only act on
	// behalf of the poll that is still registered.
	current, polling := e.timers.pollElapsed(id)
	if !polling || current != elapsed {
		return
	}
	if _, ok := e.stations[id]; !ok {
		e.timers.stopPoll(id)
		return
	}
	e.transport.Read(id, ble.CharPower)
	if elapsed >= e.opts.PollTimeout {
		slog.Warn("[ENGINE] power-on not confirmed before deadline", "id", id, "elapsed", elapsed)
		e.timers.stopPoll(id)
		e.setStateLocked(id, StateError)
	}
}

// setStateLocked updates the station and the last-known-state map, and
// notifies the observer only when the state actually changed.
func (e *Engine) setStateLocked(id string, state State) {
	bs, ok := e.stations[id]
	if !ok {
		return
	}
	bs.State = state
	if e.lastState[id] == state {
		return
	}
	e.lastState[id] = state
	slog.Debug("[ENGINE] state changed", "id", id, "state", state)
	e.observer.StateChanged(id, state)
}

// Close tears the session down: timers stopped, scan stopped, every
// station disconnected.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scanning {
		e.scanning = false
		e.transport.StopScan()
	}
	e.resetLocked()
}

// ble.EventHandler implementation. The transport invokes these from its
// own goroutines; each one serializes through the engine mutex.

// AdapterStateChanged records radio availability. If the adapter dies
// mid-window the session completes immediately with whatever was found.
func (e *Engine) AdapterStateChanged(enabled, poweredOn bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	available := enabled && poweredOn
	if available != e.available {
		e.available = available
		e.observer.PermissionsChanged()
	}
	if !available && e.scanning {
		e.scanning = false
		e.timers.stopOneShot(scanSessionID)
		e.transport.StopScan()
		// Stations already in the working set stay tracked and visible,
		// so report them just as a normal window expiry would. No
		// connections are attempted: the adapter is gone.
		for _, bs := range e.sortedLocked() {
			e.observer.Discovered(bs.ID, bs.Name)
		}
		e.observer.ScanCompleted()
	}
}

// Discovered adds a matching advertisement to the working set. Dedup is
// by identifier: stations often advertise under the same name after a
// power cycle, but the address stays stable for the session.
func (e *Engine) Discovered(id, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.scanning {
		return
	}
	if !strings.HasPrefix(name, e.opts.NamePrefix) {
		return
	}
	if _, ok := e.stations[id]; ok {
		return
	}
	e.stations[id] = &Basestation{ID: id, Name: name, State: StateUnknown}
	e.lastState[id] = StateUnknown
	slog.Info("[ENGINE] found base station", "id", id, "name", name)
}

// Connected marks the station command-eligible and requests an initial
// status read if the control service is already enumerated; otherwise
// the read waits for ServicesReady.
func (e *Engine) Connected(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.stations[id]; !ok {
		return
	}
	e.connected[id] = true
	e.observer.Connected(id)
	if e.ready[id] {
		e.transport.Read(id, ble.CharPower)
	}
}

// ServicesReady records the enumerated characteristics and issues the
// initial status read.
func (e *Engine) ServicesReady(id string, chars []ble.Characteristic) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.stations[id]; !ok {
		return
	}
	e.ready[id] = true
	for _, c := range chars {
		if c == ble.CharPower {
			e.transport.Read(id, ble.CharPower)
			return
		}
	}
	slog.Warn("[ENGINE] station has no power characteristic", "id", id)
}

// CharacteristicValue feeds decoded status bytes into the poll state
// machine. A transport read error cancels any poll and forces StateError.
func (e *Engine) CharacteristicValue(id string, char ble.Characteristic, value []byte, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.stations[id]; !ok {
		return
	}
	if char != ble.CharPower {
		return
	}

	if err != nil {
		slog.Warn("[ENGINE] status read failed", "id", id, "error", err)
		e.timers.stopPoll(id)
		e.setStateLocked(id, StateError)
		return
	}

	state := DecodeStatus(value)
	if state == StateError {
		slog.Warn("[ENGINE] unrecognized status byte", "id", id, "status", fmt.Sprintf("0x%02x", value[0]))
	}

	// A confirmed On ends the poll, as does any decoded state arriving at
	// or past the deadline; the decoded state wins over a synthetic one.
	if elapsed, polling := e.timers.pollElapsed(id); polling {
		if state == StateOn || elapsed >= e.opts.PollTimeout {
			e.timers.stopPoll(id)
		}
	}
	e.setStateLocked(id, state)
}

// WriteCompleted reports command write failures and, for successful power
// writes, requests the authoritative post-write status.
func (e *Engine) WriteCompleted(id string, char ble.Characteristic, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.stations[id]; !ok {
		return
	}
	if err != nil {
		slog.Warn("[ENGINE] command write failed", "id", id, "characteristic", char, "error", err)
		if char == ble.CharIdentify {
			// The blink never started; the optimistic completion
			// must not report On.
			e.timers.stopOneShot(id)
		}
		e.observer.SetStateFailed(id)
		return
	}
	if char == ble.CharPower {
		e.transport.Read(id, ble.CharPower)
	}
}

var _ ble.EventHandler = (*Engine)(nil)
