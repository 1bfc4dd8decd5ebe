// Package basestation tracks the power state of Lighthouse base stations
// and drives power/identify commands over a BLE transport.
package basestation

import "fmt"

// State is the power/boot state of one base station, derived from the
// single status byte exposed by the power characteristic.
type State int

const (
	// StateUnknown means no status has been read yet, or a command is in
	// flight and the true state is not yet confirmed.
	StateUnknown State = iota
	// StateOff means the station reported itself powered down.
	StateOff
	// StateOn means the station is fully powered and tracking.
	StateOn
	// StatePowering means the station is entering or leaving standby.
	StatePowering
	// StateBooting means the station is starting up.
	StateBooting
	// StateIdentifying means the locate blink was triggered and is assumed
	// to still be running.
	StateIdentifying
	// StateError means the station reported an unrecognized status, a
	// read or write failed, or a power-on was never confirmed.
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateOff:
		return "off"
	case StateOn:
		return "on"
	case StatePowering:
		return "powering"
	case StateBooting:
		return "booting"
	case StateIdentifying:
		return "identifying"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status bytes reported by the power characteristic.
const (
	statusOff       = 0x00
	statusBooting   = 0x01
	statusStandby   = 0x08
	statusBootingV2 = 0x09
	statusOn        = 0x0b
)

// DecodeStatus maps a power characteristic payload to a State. An empty
// payload means no status is available yet and yields StateUnknown; a
// nonempty payload with an unrecognized status byte yields StateError.
func DecodeStatus(payload []byte) State {
	if len(payload) == 0 {
		return StateUnknown
	}
	switch payload[0] {
	case statusOff:
		return StateOff
	case statusOn:
		return StateOn
	case statusStandby:
		return StatePowering
	case statusBooting, statusBootingV2:
		return StateBooting
	default:
		return StateError
	}
}
