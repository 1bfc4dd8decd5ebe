package basestation

// Observer receives engine notifications. Methods are invoked on the
// engine's context while it is processing an event: they must not block
// and must not call back into the engine synchronously; hand off to
// another goroutine for anything long-running.
type Observer interface {
	// PermissionsChanged fires when radio availability changes (adapter
	// powered off, permissions revoked or granted).
	PermissionsChanged()
	// ScanStarted fires when a new discovery window opens.
	ScanStarted()
	// ScanCompleted fires when the window closes, after every discovered
	// station has been reported.
	ScanCompleted()
	// Discovered fires once per station found during the window.
	Discovered(id, name string)
	// Connected fires when a station becomes reachable for commands.
	Connected(id string)
	// StateChanged fires when a station's state differs from the last
	// reported one. Duplicate states are suppressed.
	StateChanged(id string, state State)
	// SetStateFailed fires when a command write failed for one station.
	SetStateFailed(id string)
}

// NopObserver implements Observer with no-ops. Embed it to implement only
// the notifications you care about.
type NopObserver struct{}

func (NopObserver) PermissionsChanged()                 {}
func (NopObserver) ScanStarted()                        {}
func (NopObserver) ScanCompleted()                      {}
func (NopObserver) Discovered(id, name string)          {}
func (NopObserver) Connected(id string)                 {}
func (NopObserver) StateChanged(id string, state State) {}
func (NopObserver) SetStateFailed(id string)            {}

var _ Observer = NopObserver{}
