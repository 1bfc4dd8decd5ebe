package ble

import "testing"

func TestCharacteristicString(t *testing.T) {
	tests := []struct {
		char Characteristic
		want string
	}{
		{CharPower, "power"},
		{CharIdentify, "identify"},
		{Characteristic(9), "characteristic(9)"},
	}

	for _, tt := range tests {
		if got := tt.char.String(); got != tt.want {
			t.Errorf("Characteristic(%d).String() = %q, want %q", int(tt.char), got, tt.want)
		}
	}
}

func TestCharacteristicUUID(t *testing.T) {
	if got := CharPower.UUID(); got != PowerCharUUID {
		t.Errorf("CharPower.UUID() = %q, want %q", got, PowerCharUUID)
	}
	if got := CharIdentify.UUID(); got != IdentifyCharUUID {
		t.Errorf("CharIdentify.UUID() = %q, want %q", got, IdentifyCharUUID)
	}
	if got := Characteristic(9).UUID(); got != "" {
		t.Errorf("unknown characteristic UUID = %q, want empty", got)
	}
}
