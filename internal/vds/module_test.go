package vds

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/fweiler/OpenSupplyCore/internal/vme"
	"go.uber.org/zap"
)

// ---- fake bus ----

type busWrite struct {
	base  uint32
	addr  uint32
	value uint32
}

type fakeBus struct {
	regs   map[uint32]uint32 // keyed by base+addr
	reads  int
	writes []busWrite
	fail   bool
}

func newFakeBus() *fakeBus {
	return &fakeBus{regs: make(map[uint32]uint32)}
}

func (b *fakeBus) ReadA16D32(_ context.Context, base, addr uint32) (uint32, error) {
	if b.fail {
		return 0, &vme.BusError{Op: "read", Address: base + addr, Msg: "bus timeout"}
	}
	b.reads++
	return b.regs[base+addr], nil
}

func (b *fakeBus) WriteA16D32(_ context.Context, base, addr uint32, value uint32) error {
	if b.fail {
		return &vme.BusError{Op: "write", Address: base + addr, Msg: "bus timeout"}
	}
	b.writes = append(b.writes, busWrite{base: base, addr: addr, value: value})
	b.regs[base+addr] = value
	return nil
}

func newTestModule(t *testing.T, bus Bus) *Module {
	t.Helper()
	m, err := NewModule("hv0", 0x9000, bus, zap.NewNop())
	if err != nil {
		t.Fatalf("NewModule() err=%v", err)
	}
	return m
}

// ---- tests ----

func TestWriteAnalog_SetVoltageAddressAndEncoding(t *testing.T) {
	bus := newFakeBus()
	m := newTestModule(t, bus)

	if err := m.WriteAnalog(context.Background(), ParamChanVSet, 3, 500.0); err != nil {
		t.Fatalf("WriteAnalog err=%v", err)
	}

	if len(bus.writes) != 1 {
		t.Fatalf("bus writes = %d, want 1", len(bus.writes))
	}
	w := bus.writes[0]
	if w.base != 0x9000 || w.addr != 0x01d0 {
		t.Errorf("write target = base 0x%04x addr 0x%04x, want 0x9000/0x01d0", w.base, w.addr)
	}
	if want := math.Float32bits(500.0); w.value != want {
		t.Errorf("wire word = 0x%08x, want float32 bits of 500.0 (0x%08x)", w.value, want)
	}

	got, _, ok := m.LastAnalog(ParamChanVSet, 3)
	if !ok || got != 500.0 {
		t.Errorf("cached value = %v (ok=%v), want 500.0", got, ok)
	}
}

func TestWriteAnalog_MicroAmpOnWire(t *testing.T) {
	bus := newFakeBus()
	m := newTestModule(t, bus)

	if err := m.WriteAnalog(context.Background(), ParamChanISet, 0, 500.0); err != nil {
		t.Fatalf("WriteAnalog err=%v", err)
	}

	if want := math.Float32bits(float32(500.0 * 1e-6)); bus.writes[0].value != want {
		t.Errorf("wire word = 0x%08x, want amperes (0x%08x)", bus.writes[0].value, want)
	}
}

func TestWrite_ReadOnlyIsSilentNoOp(t *testing.T) {
	bus := newFakeBus()
	m := newTestModule(t, bus)

	// prime a cached value so we can see it survive
	bus.regs[0x9000+0x0000] = 0x0041
	if _, _, err := m.ReadDigital(context.Background(), ParamModStatus, 0, 0xffffffff); err != nil {
		t.Fatalf("ReadDigital err=%v", err)
	}

	writesBefore := len(bus.writes)
	readsBefore := bus.reads

	if err := m.WriteDigital(context.Background(), ParamModStatus, 0, 0xdead, 0xffffffff); err != nil {
		t.Fatalf("write to read-only parameter returned err=%v", err)
	}
	if err := m.WriteDigital(context.Background(), ParamChanStatus, 2, 0xdead, 0xffffffff); err != nil {
		t.Fatalf("write to read-only parameter returned err=%v", err)
	}
	for _, p := range []Param{ParamVMax, ParamIMax, ParamSupplyP5, ParamSupplyP12,
		ParamSupplyN12, ParamTemperature, ParamChanVMom, ParamChanIMom} {
		if err := m.WriteAnalog(context.Background(), p, 1, 123.0); err != nil {
			t.Fatalf("write to read-only %s returned err=%v", p, err)
		}
	}

	if len(bus.writes) != writesBefore || bus.reads != readsBefore {
		t.Errorf("read-only writes touched the bus: reads %d->%d writes %d->%d",
			readsBefore, bus.reads, writesBefore, len(bus.writes))
	}

	got, _, ok := m.LastDigital(ParamModStatus, 0, 0xffffffff)
	if !ok || got != 0x0041 {
		t.Errorf("cached module_status = 0x%04x (ok=%v), want 0x0041 unchanged", got, ok)
	}
}

func TestUnknownParameter_ReadAndWrite(t *testing.T) {
	bus := newFakeBus()
	m := newTestModule(t, bus)

	bogus := Param(99)

	if _, _, err := m.ReadDigital(context.Background(), bogus, 0, 0xffffffff); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("ReadDigital(bogus) err=%v, want ErrUnknownParameter", err)
	}
	if err := m.WriteAnalog(context.Background(), bogus, 0, 1.0); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("WriteAnalog(bogus) err=%v, want ErrUnknownParameter", err)
	}
	if _, _, ok := m.LastDigital(bogus, 0, 0xffffffff); ok {
		t.Error("state store gained an entry from a failed transaction")
	}
	if bus.reads != 0 || len(bus.writes) != 0 {
		t.Error("unknown parameter reached the bus")
	}
}

func TestReadDigital_FullRefreshMaskedExposure(t *testing.T) {
	bus := newFakeBus()
	m := newTestModule(t, bus)

	bus.regs[0x9000+0x0100] = 0xffff00ff // channel 0 status

	got, _, err := m.ReadDigital(context.Background(), ParamChanStatus, 0, 0x0000ffff)
	if err != nil {
		t.Fatalf("ReadDigital err=%v", err)
	}
	if got != 0x000000ff {
		t.Errorf("masked read = 0x%08x, want 0x000000ff", got)
	}

	// the cache holds the whole word
	full, _, ok := m.LastDigital(ParamChanStatus, 0, 0xffffffff)
	if !ok || full != 0xffff00ff {
		t.Errorf("cached word = 0x%08x (ok=%v), want 0xffff00ff", full, ok)
	}
}

func TestWriteDigital_UnmaskedWireMaskedCache(t *testing.T) {
	bus := newFakeBus()
	m := newTestModule(t, bus)

	// prime cache with a full read
	bus.regs[0x9000+0x000c] = 0x000000ff // module_control
	if _, _, err := m.ReadDigital(context.Background(), ParamModCtrl, 0, 0xffffffff); err != nil {
		t.Fatalf("ReadDigital err=%v", err)
	}

	if err := m.WriteDigital(context.Background(), ParamModCtrl, 0, 0xab00, 0xff00); err != nil {
		t.Fatalf("WriteDigital err=%v", err)
	}

	// the full word goes out unmasked
	last := bus.writes[len(bus.writes)-1]
	if last.value != 0xab00 {
		t.Errorf("wire word = 0x%08x, want unmasked 0xab00", last.value)
	}

	// only masked bits become authoritative in the cache
	cached, _, _ := m.LastDigital(ParamModCtrl, 0, 0xffffffff)
	if cached != 0xabff {
		t.Errorf("cached word = 0x%08x, want 0xabff", cached)
	}
}

func TestBusFailureLeavesCacheUntouched(t *testing.T) {
	bus := newFakeBus()
	m := newTestModule(t, bus)

	bus.regs[0x9000+0x0118] = math.Float32bits(1500.0) // channel 0 voltage_mom
	if _, _, err := m.ReadAnalog(context.Background(), ParamChanVMom, 0); err != nil {
		t.Fatalf("ReadAnalog err=%v", err)
	}

	bus.fail = true

	_, _, err := m.ReadAnalog(context.Background(), ParamChanVMom, 0)
	if err == nil {
		t.Fatal("expected bus error")
	}
	var busErr *vme.BusError
	if !errors.As(err, &busErr) {
		t.Fatalf("err=%v, want a *vme.BusError in the chain", err)
	}

	if err := m.WriteAnalog(context.Background(), ParamChanVSet, 0, 10.0); err == nil {
		t.Fatal("expected bus error on write")
	}

	// last-known-good survives the failures
	got, _, ok := m.LastAnalog(ParamChanVMom, 0)
	if !ok || got != 1500.0 {
		t.Errorf("cached voltage_mom = %v (ok=%v), want 1500.0", got, ok)
	}
	if _, _, ok := m.LastAnalog(ParamChanVSet, 0); ok {
		t.Error("failed write mutated the state store")
	}
}

func TestReadAnalog_MicroAmpExposure(t *testing.T) {
	bus := newFakeBus()
	m := newTestModule(t, bus)

	bus.regs[0x9000+0x011c] = math.Float32bits(float32(2.5e-6)) // channel 0 current_mom, amperes

	got, _, err := m.ReadAnalog(context.Background(), ParamChanIMom, 0)
	if err != nil {
		t.Fatalf("ReadAnalog err=%v", err)
	}
	if math.Abs(got-2.5) > 1e-4 {
		t.Errorf("current_mom = %v uA, want ~2.5", got)
	}
}

func TestUpdateCallback(t *testing.T) {
	bus := newFakeBus()
	m := newTestModule(t, bus)

	var updates []Update
	m.SetUpdateFunc(func(u Update) { updates = append(updates, u) })

	if err := m.WriteAnalog(context.Background(), ParamChanVSet, 5, 100.0); err != nil {
		t.Fatalf("WriteAnalog err=%v", err)
	}

	// read-only no-op must not notify
	if err := m.WriteAnalog(context.Background(), ParamChanVMom, 5, 1.0); err != nil {
		t.Fatalf("WriteAnalog err=%v", err)
	}

	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	u := updates[0]
	if u.Module != "hv0" || u.Param != "voltage_set" || u.Channel != 5 || u.Analog != 100.0 {
		t.Errorf("unexpected update: %+v", u)
	}
}

func TestTimestampCapturedAtEntry(t *testing.T) {
	bus := newFakeBus()
	m := newTestModule(t, bus)

	_, at, err := m.ReadDigital(context.Background(), ParamModStatus, 0, 0xffffffff)
	if err != nil {
		t.Fatalf("ReadDigital err=%v", err)
	}
	if at.IsZero() {
		t.Error("transaction timestamp missing")
	}

	_, cachedAt, ok := m.LastDigital(ParamModStatus, 0, 0xffffffff)
	if !ok || !cachedAt.Equal(at) {
		t.Errorf("cache timestamp %v != returned %v", cachedAt, at)
	}
}
