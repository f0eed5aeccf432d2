package vds

import "math"

// Analog registers carry the bit pattern of an IEEE-754 float32 in the raw
// bus word. The conversion is a bit cast, never a numeric one; NaN and Inf
// patterns pass through untouched.

// DecodeAnalog converts a raw bus word into the externally visible value of
// p, widening to float64 and applying the ampere-to-microampere rescale for
// the current setpoint and monitor readback.
func DecodeAnalog(raw uint32, p Param) float64 {
	v := float64(math.Float32frombits(raw))
	if p.microAmpScaled() {
		v *= 1e6
	}
	return v
}

// EncodeAnalog converts an externally visible value of p into the raw bus
// word, rescaling microamperes back to amperes before bit-packing.
func EncodeAnalog(value float64, p Param) uint32 {
	if p.microAmpScaled() {
		value *= 1e-6
	}
	return math.Float32bits(float32(value))
}
