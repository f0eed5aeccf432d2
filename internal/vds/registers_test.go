package vds

import (
	"errors"
	"testing"
)

func TestNewRegisterMap(t *testing.T) {
	m, err := NewRegisterMap()
	if err != nil {
		t.Fatalf("NewRegisterMap() err=%v", err)
	}

	for _, p := range Params() {
		if _, ok := m.Entry(p); !ok {
			t.Errorf("parameter %s missing from register map", p)
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	m, err := NewRegisterMap()
	if err != nil {
		t.Fatalf("NewRegisterMap() err=%v", err)
	}

	for _, p := range Params() {
		for ch := 0; ch < NumChannels; ch++ {
			a1, scoped1, err1 := m.Resolve(p, ch)
			a2, scoped2, err2 := m.Resolve(p, ch)
			if err1 != nil || err2 != nil {
				t.Fatalf("Resolve(%s, %d) err=%v/%v", p, ch, err1, err2)
			}
			if a1 != a2 || scoped1 != scoped2 {
				t.Errorf("Resolve(%s, %d) unstable: 0x%04x/0x%04x", p, ch, a1, a2)
			}
		}
	}
}

func TestResolve_UnknownParameter(t *testing.T) {
	m, _ := NewRegisterMap()

	if _, _, err := m.Resolve(Param(200), 0); !errors.Is(err, ErrUnknownParameter) {
		t.Fatalf("Resolve(unknown) err=%v, want ErrUnknownParameter", err)
	}
}

func TestResolve_ChannelOutOfRange(t *testing.T) {
	m, _ := NewRegisterMap()

	for _, ch := range []int{-1, NumChannels, 100} {
		if _, _, err := m.Resolve(ParamChanVSet, ch); !errors.Is(err, ErrUnknownParameter) {
			t.Errorf("Resolve(voltage_set, %d) err=%v, want ErrUnknownParameter", ch, err)
		}
	}
}

func TestChannelBases_Spacing(t *testing.T) {
	for i := 1; i < NumChannels; i++ {
		if chanBase[i] <= chanBase[i-1] {
			t.Errorf("channel bases not strictly increasing at %d: 0x%04x <= 0x%04x",
				i, chanBase[i], chanBase[i-1])
		}
		if chanBase[i]-chanBase[i-1] != channelBlockSize {
			t.Errorf("channel block spacing at %d = 0x%04x, want 0x%04x",
				i, chanBase[i]-chanBase[i-1], uint32(channelBlockSize))
		}
	}
}

func TestResolve_ChannelAddressMath(t *testing.T) {
	m, _ := NewRegisterMap()

	// voltage_set on channel 3: chanBase[3] + 0x0010 = 0x01d0
	addr, scoped, err := m.Resolve(ParamChanVSet, 3)
	if err != nil {
		t.Fatalf("Resolve err=%v", err)
	}
	if !scoped {
		t.Error("voltage_set should be channel-scoped")
	}
	if addr != 0x01d0 {
		t.Errorf("address = 0x%04x, want 0x01d0", addr)
	}

	for ch := 0; ch < NumChannels; ch++ {
		addr, _, err := m.Resolve(ParamChanIMom, ch)
		if err != nil {
			t.Fatalf("Resolve(current_mom, %d) err=%v", ch, err)
		}
		if want := chanBase[ch] + 0x001c; addr != want {
			t.Errorf("Resolve(current_mom, %d) = 0x%04x, want 0x%04x", ch, addr, want)
		}
	}
}

func TestResolve_ModuleScopeIgnoresChannel(t *testing.T) {
	m, _ := NewRegisterMap()

	for ch := 0; ch < NumChannels; ch++ {
		addr, scoped, err := m.Resolve(ParamTemperature, ch)
		if err != nil {
			t.Fatalf("Resolve(temperature, %d) err=%v", ch, err)
		}
		if scoped {
			t.Error("temperature should be module-scoped")
		}
		if addr != 0x004c {
			t.Errorf("Resolve(temperature, %d) = 0x%04x, want 0x004c", ch, addr)
		}
	}
}

func TestParamByName(t *testing.T) {
	p, ok := ParamByName("voltage_set")
	if !ok || p != ParamChanVSet {
		t.Fatalf("ParamByName(voltage_set) = %v, %v", p, ok)
	}

	if _, ok := ParamByName("no_such_parameter"); ok {
		t.Fatal("ParamByName accepted an undeclared name")
	}
}
