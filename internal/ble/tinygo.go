package ble

import (
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// TinygoTransport implements Transport on tinygo.org/x/bluetooth.
// Device identifiers are the address strings reported by the scanner
// (MAC addresses on Linux, CoreBluetooth UUIDs on macOS).
type TinygoTransport struct {
	adapter *bluetooth.Adapter

	mu      sync.Mutex
	handler EventHandler
	addrs   map[string]bluetooth.Address // every address ever seen, for Connect
	seen    map[string]bool              // reset per scan, suppresses repeat events
	devices map[string]*peripheral
}

type peripheral struct {
	device bluetooth.Device
	chars  map[Characteristic]bluetooth.DeviceCharacteristic
}

// NewTinygoTransport creates a transport backed by the default adapter.
func NewTinygoTransport() *TinygoTransport {
	return &TinygoTransport{
		adapter: bluetooth.DefaultAdapter,
		addrs:   make(map[string]bluetooth.Address),
		seen:    make(map[string]bool),
		devices: make(map[string]*peripheral),
	}
}

func (t *TinygoTransport) Enable() error {
	if err := t.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	// tinygo fires this (with connected=false) when a peripheral drops.
	// There is no engine-level reconnect; just forget the handle.
	t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		id := device.Address.String()
		t.mu.Lock()
		delete(t.devices, id)
		t.mu.Unlock()
		slog.Debug("[BLE] peripheral disconnected", "id", id)
	})

	if h := t.currentHandler(); h != nil {
		h.AdapterStateChanged(true, true)
	}
	return nil
}

func (t *TinygoTransport) SetHandler(h EventHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

func (t *TinygoTransport) currentHandler() EventHandler {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handler
}

// StartScan opens a scan. adapter.Scan blocks until StopScan, so it runs
// on its own goroutine; advertisements are forwarded as Discovered events.
func (t *TinygoTransport) StartScan() error {
	t.mu.Lock()
	t.seen = make(map[string]bool)
	t.mu.Unlock()

	go func() {
		err := t.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			id := result.Address.String()
			t.mu.Lock()
			t.addrs[id] = result.Address
			if t.seen[id] {
				t.mu.Unlock()
				return
			}
			t.seen[id] = true
			h := t.handler
			t.mu.Unlock()
			if h != nil {
				h.Discovered(id, result.LocalName())
			}
		})
		if err != nil {
			slog.Warn("[BLE] scan ended", "error", err)
		}
	}()
	return nil
}

func (t *TinygoTransport) StopScan() {
	if err := t.adapter.StopScan(); err != nil {
		slog.Debug("[BLE] stop scan", "error", err)
	}
}

func (t *TinygoTransport) Connect(id string) {
	t.mu.Lock()
	addr, ok := t.addrs[id]
	h := t.handler
	t.mu.Unlock()
	if !ok {
		slog.Warn("[BLE] connect requested for unknown address", "id", id)
		return
	}

	// tinygo's Connect blocks with its own internal timeout.
	go func() {
		device, err := t.adapter.Connect(addr, bluetooth.ConnectionParams{})
		if err != nil {
			slog.Warn("[BLE] connect failed", "id", id, "error", err)
			return
		}

		t.mu.Lock()
		t.devices[id] = &peripheral{
			device: device,
			chars:  make(map[Characteristic]bluetooth.DeviceCharacteristic),
		}
		t.mu.Unlock()

		if h != nil {
			h.Connected(id)
		}
		t.discoverControlService(id, device, h)
	}()
}

// discoverControlService enumerates the control service and caches its
// power/identify characteristics.
func (t *TinygoTransport) discoverControlService(id string, device bluetooth.Device, h EventHandler) {
	svcUUID, err := bluetooth.ParseUUID(ControlServiceUUID)
	if err != nil {
		slog.Error("[BLE] bad control service UUID", "error", err)
		return
	}

	svcs, err := device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil || len(svcs) == 0 {
		slog.Warn("[BLE] control service not found", "id", id, "error", err)
		return
	}

	chars, err := svcs[0].DiscoverCharacteristics(nil)
	if err != nil {
		slog.Warn("[BLE] characteristic discovery failed", "id", id, "error", err)
		return
	}

	var kinds []Characteristic
	t.mu.Lock()
	p := t.devices[id]
	for _, c := range chars {
		switch c.UUID().String() {
		case PowerCharUUID:
			if p != nil {
				p.chars[CharPower] = c
			}
			kinds = append(kinds, CharPower)
		case IdentifyCharUUID:
			if p != nil {
				p.chars[CharIdentify] = c
			}
			kinds = append(kinds, CharIdentify)
		}
	}
	t.mu.Unlock()

	if h != nil {
		h.ServicesReady(id, kinds)
	}
}

func (t *TinygoTransport) Disconnect(id string) {
	t.mu.Lock()
	p := t.devices[id]
	delete(t.devices, id)
	t.mu.Unlock()
	if p == nil {
		return
	}
	if err := p.device.Disconnect(); err != nil {
		slog.Debug("[BLE] disconnect", "id", id, "error", err)
	}
}

// lookupChar finds the cached characteristic handle for id.
func (t *TinygoTransport) lookupChar(id string, char Characteristic) (bluetooth.DeviceCharacteristic, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.devices[id]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("ble: not connected to %s", id)
	}
	c, ok := p.chars[char]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("ble: %s characteristic not enumerated on %s", char, id)
	}
	return c, nil
}

func (t *TinygoTransport) Read(id string, char Characteristic) {
	h := t.currentHandler()
	go func() {
		c, err := t.lookupChar(id, char)
		if err != nil {
			if h != nil {
				h.CharacteristicValue(id, char, nil, err)
			}
			return
		}
		buf := make([]byte, 16)
		n, err := c.Read(buf)
		if h != nil {
			h.CharacteristicValue(id, char, buf[:n], err)
		}
	}()
}

func (t *TinygoTransport) Write(id string, char Characteristic, value []byte) {
	h := t.currentHandler()
	data := make([]byte, len(value))
	copy(data, value)
	go func() {
		c, err := t.lookupChar(id, char)
		if err == nil {
			_, err = c.WriteWithoutResponse(data)
		}
		if h != nil {
			h.WriteCompleted(id, char, err)
		}
	}()
}

// Compile-time check that TinygoTransport implements Transport.
var _ Transport = (*TinygoTransport)(nil)
