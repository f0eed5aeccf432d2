package vds

// Param identifies one logical quantity of an 8-channel VDS high-voltage
// module. The set is fixed at compile time.
type Param uint8

const (
	// Module parameters
	ParamModStatus Param = iota
	ParamModEvtStatus
	ParamModEvtMask
	ParamModCtrl
	ParamModEvtChanStatus
	ParamModEvtChanMask
	ParamModEvtGrpStatus
	ParamModEvtGrpMask
	ParamVRamp
	ParamCRamp
	ParamVMax
	ParamIMax
	ParamSupplyP5
	ParamSupplyP12
	ParamSupplyN12
	ParamTemperature

	// Channel parameters
	ParamChanStatus
	ParamChanEvtStatus
	ParamChanEvtMask
	ParamChanCtrl
	ParamChanVSet
	ParamChanISet
	ParamChanVMom
	ParamChanIMom
	ParamChanVBounds
	ParamChanIBounds

	numParams
)

// Kind distinguishes the two register encodings on the module.
type Kind uint8

const (
	// KindDigital registers carry a bitfield in the raw word.
	KindDigital Kind = iota
	// KindAnalog registers carry the bit pattern of an IEEE-754 float32.
	KindAnalog
)

// ParamInfo is the declaration of one parameter as exposed to the API.
type ParamInfo struct {
	Name string // wire name used by the REST/WebSocket surface
	Kind Kind
	Unit string
}

var paramInfo = [numParams]ParamInfo{
	ParamModStatus:        {Name: "module_status", Kind: KindDigital},
	ParamModEvtStatus:     {Name: "module_event_status", Kind: KindDigital},
	ParamModEvtMask:       {Name: "module_event_mask", Kind: KindDigital},
	ParamModCtrl:          {Name: "module_control", Kind: KindDigital},
	ParamModEvtChanStatus: {Name: "module_event_channel_status", Kind: KindDigital},
	ParamModEvtChanMask:   {Name: "module_event_channel_mask", Kind: KindDigital},
	ParamModEvtGrpStatus:  {Name: "module_event_group_status", Kind: KindDigital},
	ParamModEvtGrpMask:    {Name: "module_event_group_mask", Kind: KindDigital},
	ParamVRamp:            {Name: "voltage_ramp_speed", Kind: KindAnalog, Unit: "%/s"},
	ParamCRamp:            {Name: "current_ramp_speed", Kind: KindAnalog, Unit: "%/s"},
	ParamVMax:             {Name: "voltage_max", Kind: KindAnalog, Unit: "V"},
	ParamIMax:             {Name: "current_max", Kind: KindAnalog, Unit: "A"},
	ParamSupplyP5:         {Name: "supply_p5", Kind: KindAnalog, Unit: "V"},
	ParamSupplyP12:        {Name: "supply_p12", Kind: KindAnalog, Unit: "V"},
	ParamSupplyN12:        {Name: "supply_n12", Kind: KindAnalog, Unit: "V"},
	ParamTemperature:      {Name: "temperature", Kind: KindAnalog, Unit: "degC"},

	ParamChanStatus:    {Name: "channel_status", Kind: KindDigital},
	ParamChanEvtStatus: {Name: "channel_event_status", Kind: KindDigital},
	ParamChanEvtMask:   {Name: "channel_event_mask", Kind: KindDigital},
	ParamChanCtrl:      {Name: "channel_control", Kind: KindDigital},
	ParamChanVSet:      {Name: "voltage_set", Kind: KindAnalog, Unit: "V"},
	ParamChanISet:      {Name: "current_set", Kind: KindAnalog, Unit: "uA"},
	ParamChanVMom:      {Name: "voltage_mom", Kind: KindAnalog, Unit: "V"},
	ParamChanIMom:      {Name: "current_mom", Kind: KindAnalog, Unit: "uA"},
	ParamChanVBounds:   {Name: "voltage_bounds", Kind: KindAnalog, Unit: "V"},
	ParamChanIBounds:   {Name: "current_bounds", Kind: KindAnalog, Unit: "A"},
}

var paramByName = func() map[string]Param {
	m := make(map[string]Param, numParams)
	for p := Param(0); p < numParams; p++ {
		m[paramInfo[p].Name] = p
	}
	return m
}()

func (p Param) Info() ParamInfo {
	if p >= numParams {
		return ParamInfo{Name: "unknown"}
	}
	return paramInfo[p]
}

func (p Param) String() string { return p.Info().Name }

func (p Param) Kind() Kind { return p.Info().Kind }

// ParamByName resolves a wire name to its parameter identifier.
func ParamByName(name string) (Param, bool) {
	p, ok := paramByName[name]
	return p, ok
}

// Params returns every declared parameter in declaration order.
func Params() []Param {
	out := make([]Param, 0, numParams)
	for p := Param(0); p < numParams; p++ {
		out = append(out, p)
	}
	return out
}

// readOnlyParams are accepted on the write path but produce no bus
// transaction and no state change. Vmom/Imom, the limits, the supply rails
// and the temperature are measured by the module; the two status registers
// are latched readbacks.
var readOnlyParams = map[Param]struct{}{
	ParamModStatus:   {},
	ParamChanStatus:  {},
	ParamVMax:        {},
	ParamIMax:        {},
	ParamSupplyP5:    {},
	ParamSupplyP12:   {},
	ParamSupplyN12:   {},
	ParamTemperature: {},
	ParamChanVMom:    {},
	ParamChanIMom:    {},
}

// ReadOnly reports whether writes to p are silently ignored.
func (p Param) ReadOnly() bool {
	_, ok := readOnlyParams[p]
	return ok
}

// microAmpParams are stored on the bus in amperes but exposed in microamperes.
var microAmpParams = map[Param]struct{}{
	ParamChanISet: {},
	ParamChanIMom: {},
}

func (p Param) microAmpScaled() bool {
	_, ok := microAmpParams[p]
	return ok
}
