package vds

import (
	"errors"
	"fmt"
)

// NumChannels is the number of independent output channels per module.
const NumChannels = 8

// channelBlockSize is the spacing between consecutive channel register
// blocks in the module's address space.
const channelBlockSize = 0x40

// chanBase holds the absolute offset of each channel's register block.
var chanBase = [NumChannels]uint32{
	0x0100, 0x0140, 0x0180, 0x01c0,
	0x0200, 0x0240, 0x0280, 0x02c0,
}

// ErrUnknownParameter is returned when a parameter has no register-map entry
// or resolves through an out-of-range channel index.
var ErrUnknownParameter = errors.New("unknown parameter")

// Scope tags a register entry as module-wide or per-channel.
type Scope uint8

const (
	ScopeModule Scope = iota
	ScopeChannel
)

// RegisterEntry places one parameter in the module's address space. Module
// entries are absolute offsets; channel entries are relative to the owning
// channel's base.
type RegisterEntry struct {
	Scope  Scope
	Offset uint16
}

var moduleOffsets = map[Param]uint16{
	ParamModStatus:        0x0000,
	ParamModEvtStatus:     0x0004,
	ParamModEvtMask:       0x0008,
	ParamModCtrl:          0x000c,
	ParamModEvtChanStatus: 0x0010,
	ParamModEvtChanMask:   0x0014,
	ParamModEvtGrpStatus:  0x0018,
	ParamModEvtGrpMask:    0x001c,
	ParamVRamp:            0x0020,
	ParamCRamp:            0x0024,
	ParamVMax:             0x0028,
	ParamIMax:             0x002c,
	ParamSupplyP5:         0x0040,
	ParamSupplyP12:        0x0044,
	ParamSupplyN12:        0x0048,
	ParamTemperature:      0x004c,
}

var channelOffsets = map[Param]uint16{
	ParamChanStatus:    0x0000,
	ParamChanEvtStatus: 0x0004,
	ParamChanEvtMask:   0x0008,
	ParamChanCtrl:      0x000c,
	ParamChanVSet:      0x0010,
	ParamChanISet:      0x0014,
	ParamChanVMom:      0x0018,
	ParamChanIMom:      0x001c,
	ParamChanVBounds:   0x0020,
	ParamChanIBounds:   0x0024,
}

// RegisterMap resolves (parameter, channel) pairs to bus addresses. Built
// once at construction and immutable afterwards.
type RegisterMap struct {
	entries map[Param]RegisterEntry
}

// NewRegisterMap builds the map from the two offset tables. Every declared
// parameter must appear in exactly one table; a parameter in both or neither
// is a construction error.
func NewRegisterMap() (*RegisterMap, error) {
	entries := make(map[Param]RegisterEntry, numParams)

	for p, off := range moduleOffsets {
		entries[p] = RegisterEntry{Scope: ScopeModule, Offset: off}
	}
	for p, off := range channelOffsets {
		if _, dup := entries[p]; dup {
			return nil, fmt.Errorf("parameter %s registered in both scopes", p)
		}
		entries[p] = RegisterEntry{Scope: ScopeChannel, Offset: off}
	}

	for p := Param(0); p < numParams; p++ {
		if _, ok := entries[p]; !ok {
			return nil, fmt.Errorf("parameter %s has no register entry", p)
		}
	}

	return &RegisterMap{entries: entries}, nil
}

// Resolve returns the bus address of p for the given channel, and whether
// the parameter is channel-scoped. The channel index is ignored for
// module-scoped parameters.
func (m *RegisterMap) Resolve(p Param, channel int) (uint32, bool, error) {
	entry, ok := m.entries[p]
	if !ok {
		return 0, false, fmt.Errorf("resolve %s: %w", p, ErrUnknownParameter)
	}

	if entry.Scope == ScopeModule {
		return uint32(entry.Offset), false, nil
	}

	if channel < 0 || channel >= NumChannels {
		return 0, true, fmt.Errorf("resolve %s: channel %d: %w", p, channel, ErrUnknownParameter)
	}

	return chanBase[channel] + uint32(entry.Offset), true, nil
}

// ChannelScoped reports whether p has one register per output channel.
func (p Param) ChannelScoped() bool {
	_, ok := channelOffsets[p]
	return ok
}

// Entry returns the raw register entry for p.
func (m *RegisterMap) Entry(p Param) (RegisterEntry, bool) {
	entry, ok := m.entries[p]
	return entry, ok
}
