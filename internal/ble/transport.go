// Package ble abstracts the BLE central used to control Lighthouse-style
// base stations. It exposes fire-and-forget commands (scan, connect, read,
// write) whose results are delivered as asynchronous events, so the engine
// on top never blocks on the radio.
package ble

import "fmt"

// Lighthouse V2 control GATT UUIDs
const (
	ControlServiceUUID = "00001523-1212-efde-1523-785feabcd124"
	PowerCharUUID      = "00001525-1212-efde-1523-785feabcd124"
	IdentifyCharUUID   = "00008421-1212-efde-1523-785feabcd124"
)

// Characteristic identifies one of the base station's control
// characteristics. Payloads on both are a single byte.
type Characteristic int

const (
	// CharPower holds the power command/status byte.
	CharPower Characteristic = iota
	// CharIdentify triggers the locate blink on write.
	CharIdentify
)

func (c Characteristic) String() string {
	switch c {
	case CharPower:
		return "power"
	case CharIdentify:
		return "identify"
	default:
		return fmt.Sprintf("characteristic(%d)", int(c))
	}
}

// UUID returns the GATT UUID string for the characteristic.
func (c Characteristic) UUID() string {
	switch c {
	case CharPower:
		return PowerCharUUID
	case CharIdentify:
		return IdentifyCharUUID
	default:
		return ""
	}
}

// EventHandler receives the asynchronous results of transport commands.
// Implementations must be safe to call from transport goroutines.
type EventHandler interface {
	// AdapterStateChanged reports radio availability changes.
	AdapterStateChanged(enabled, poweredOn bool)
	// Discovered reports an advertisement seen during an active scan.
	Discovered(id, name string)
	// Connected reports a successful connection.
	Connected(id string)
	// ServicesReady reports that the control service was enumerated and
	// lists the characteristics found on it.
	ServicesReady(id string, chars []Characteristic)
	// CharacteristicValue delivers the result of a Read, or a notification.
	CharacteristicValue(id string, char Characteristic, value []byte, err error)
	// WriteCompleted delivers the result of a Write.
	WriteCompleted(id string, char Characteristic, err error)
}

// Transport is the BLE central. All per-device methods are fire-and-forget:
// failures and results come back through the EventHandler, never as return
// values, so one slow device cannot stall another.
type Transport interface {
	// Enable powers on the adapter. An error means BLE is unavailable or
	// unauthorized on this host.
	Enable() error
	// SetHandler registers the event sink. Must be called before StartScan.
	SetHandler(h EventHandler)
	// StartScan begins advertising discovery. An error means no scan was
	// opened (adapter unavailable).
	StartScan() error
	// StopScan ends an active scan. Safe to call when not scanning.
	StopScan()
	// Connect initiates a connection to a previously discovered device.
	Connect(id string)
	// Disconnect drops the connection, if any.
	Disconnect(id string)
	// Read requests the current value of a characteristic.
	Read(id string, char Characteristic)
	// Write sends a payload to a characteristic.
	Write(id string, char Characteristic, value []byte)
}
