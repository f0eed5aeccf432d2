package vds

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bus performs addressed 32-bit register transactions against the backplane.
// Implementations must serialize transactions across the whole module; the
// backplane has a single bus master.
type Bus interface {
	ReadA16D32(ctx context.Context, base, addr uint32) (uint32, error)
	WriteA16D32(ctx context.Context, base, addr uint32, value uint32) error
}

// Update is pushed to the subscriber after every successful transaction.
type Update struct {
	Module  string    `json:"module"`
	Param   string    `json:"parameter"`
	Channel int       `json:"channel"`
	Kind    Kind      `json:"-"`
	Digital uint32    `json:"digital,omitempty"`
	Analog  float64   `json:"analog,omitempty"`
	At      time.Time `json:"timestamp"`
}

type stateKey struct {
	param   Param
	channel int
}

// Module is one VDS high-voltage module on the backplane. It resolves
// (parameter, channel) pairs to bus addresses, runs the register
// transaction, translates raw words and keeps the last-known value per
// entry. Reads and writes run synchronously on the caller's goroutine; the
// bus access is the only blocking point.
type Module struct {
	ID   uuid.UUID
	Name string
	Base uint32

	regs   *RegisterMap
	bus    Bus
	logger *zap.Logger

	mu        sync.RWMutex
	digital   map[stateKey]uint32
	analog    map[stateKey]float64
	updatedAt map[stateKey]time.Time
	onUpdate  func(Update)
}

func NewModule(name string, base uint32, bus Bus, logger *zap.Logger) (*Module, error) {
	regs, err := NewRegisterMap()
	if err != nil {
		return nil, fmt.Errorf("failed to build register map: %w", err)
	}

	return &Module{
		ID:        uuid.New(),
		Name:      name,
		Base:      base,
		regs:      regs,
		bus:       bus,
		logger:    logger,
		digital:   make(map[stateKey]uint32),
		analog:    make(map[stateKey]float64),
		updatedAt: make(map[stateKey]time.Time),
	}, nil
}

// SetUpdateFunc registers the subscriber notified after successful
// transactions. Must be called before the module is shared.
func (m *Module) SetUpdateFunc(fn func(Update)) {
	m.onUpdate = fn
}

// ReadDigital reads a bitfield parameter from the bus, refreshes the whole
// cached word and returns the bits selected by mask. The returned timestamp
// is captured at call entry, before the bus transaction.
func (m *Module) ReadDigital(ctx context.Context, p Param, channel int, mask uint32) (uint32, time.Time, error) {
	at := time.Now()

	addr, chanScoped, err := m.regs.Resolve(p, channel)
	if err != nil {
		return 0, at, err
	}
	if !chanScoped {
		channel = 0
	}

	raw, err := m.bus.ReadA16D32(ctx, m.Base, addr)
	if err != nil {
		return 0, at, fmt.Errorf("read %s: %w", p, err)
	}

	key := stateKey{param: p, channel: channel}
	m.mu.Lock()
	m.digital[key] = raw
	m.updatedAt[key] = at
	m.mu.Unlock()

	m.logger.Debug("digital read",
		zap.String("module", m.Name),
		zap.String("parameter", p.String()),
		zap.Int("channel", channel),
		zap.Uint32("value", raw))

	m.notify(Update{Module: m.Name, Param: p.String(), Channel: channel,
		Kind: KindDigital, Digital: raw, At: at})

	return raw & mask, at, nil
}

// WriteDigital writes a bitfield parameter. Writes to read-only parameters
// are accepted and dropped without a bus transaction. The full word goes out
// unmasked; only the masked bits become authoritative in the cache.
func (m *Module) WriteDigital(ctx context.Context, p Param, channel int, value, mask uint32) error {
	if p.ReadOnly() {
		return nil
	}

	addr, chanScoped, err := m.regs.Resolve(p, channel)
	if err != nil {
		return err
	}
	if !chanScoped {
		channel = 0
	}

	if err := m.bus.WriteA16D32(ctx, m.Base, addr, value); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}

	at := time.Now()
	key := stateKey{param: p, channel: channel}
	m.mu.Lock()
	m.digital[key] = (m.digital[key] &^ mask) | (value & mask)
	cached := m.digital[key]
	m.updatedAt[key] = at
	m.mu.Unlock()

	m.logger.Debug("digital write",
		zap.String("module", m.Name),
		zap.String("parameter", p.String()),
		zap.Int("channel", channel),
		zap.Uint32("value", value))

	m.notify(Update{Module: m.Name, Param: p.String(), Channel: channel,
		Kind: KindDigital, Digital: cached, At: at})

	return nil
}

// ReadAnalog reads a float parameter from the bus, reinterpreting the raw
// word's bit pattern and rescaling where the parameter calls for it.
func (m *Module) ReadAnalog(ctx context.Context, p Param, channel int) (float64, time.Time, error) {
	at := time.Now()

	addr, chanScoped, err := m.regs.Resolve(p, channel)
	if err != nil {
		return 0, at, err
	}
	if !chanScoped {
		channel = 0
	}

	raw, err := m.bus.ReadA16D32(ctx, m.Base, addr)
	if err != nil {
		return 0, at, fmt.Errorf("read %s: %w", p, err)
	}

	value := DecodeAnalog(raw, p)

	key := stateKey{param: p, channel: channel}
	m.mu.Lock()
	m.analog[key] = value
	m.updatedAt[key] = at
	m.mu.Unlock()

	m.logger.Debug("analog read",
		zap.String("module", m.Name),
		zap.String("parameter", p.String()),
		zap.Int("channel", channel),
		zap.Float64("value", value))

	m.notify(Update{Module: m.Name, Param: p.String(), Channel: channel,
		Kind: KindAnalog, Analog: value, At: at})

	return value, at, nil
}

// WriteAnalog writes a float parameter. Writes to read-only parameters are
// accepted and dropped without a bus transaction.
func (m *Module) WriteAnalog(ctx context.Context, p Param, channel int, value float64) error {
	if p.ReadOnly() {
		return nil
	}

	addr, chanScoped, err := m.regs.Resolve(p, channel)
	if err != nil {
		return err
	}
	if !chanScoped {
		channel = 0
	}

	if err := m.bus.WriteA16D32(ctx, m.Base, addr, EncodeAnalog(value, p)); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}

	at := time.Now()
	key := stateKey{param: p, channel: channel}
	m.mu.Lock()
	m.analog[key] = value
	m.updatedAt[key] = at
	m.mu.Unlock()

	m.logger.Debug("analog write",
		zap.String("module", m.Name),
		zap.String("parameter", p.String()),
		zap.Int("channel", channel),
		zap.Float64("value", value))

	m.notify(Update{Module: m.Name, Param: p.String(), Channel: channel,
		Kind: KindAnalog, Analog: value, At: at})

	return nil
}

// LastDigital returns the cached word for (p, channel) narrowed by mask.
func (m *Module) LastDigital(p Param, channel int, mask uint32) (uint32, time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := stateKey{param: p, channel: channel}
	value, ok := m.digital[key]
	return value & mask, m.updatedAt[key], ok
}

// LastAnalog returns the cached value for (p, channel).
func (m *Module) LastAnalog(p Param, channel int) (float64, time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := stateKey{param: p, channel: channel}
	value, ok := m.analog[key]
	return value, m.updatedAt[key], ok
}

func (m *Module) notify(u Update) {
	if m.onUpdate != nil {
		m.onUpdate(u)
	}
}
