package input

import "golang.org/x/exp/constraints"

func constrain[T constraints.Ordered](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// mapRange maps value linearly from [fromMin, fromMax] onto [toMin, toMax].
// A degenerate source range maps everything to toMin.
func mapRange[T constraints.Float](value, fromMin, fromMax, toMin, toMax T) T {
	if fromMax == fromMin {
		return toMin
	}
	return (value-fromMin)/(fromMax-fromMin)*(toMax-toMin) + toMin
}

// JoystickCalibration describes one joystick axis. Mid is the raw rest value
// measured at start-up.
type JoystickCalibration struct {
	RawMin, RawMax int
	Mid            int
	Deadzone       int
	OutMin, OutMax int16
}

// Map converts a raw reading piecewise-linearly: [RawMin, Mid] onto the lower
// half of the output range and (Mid, RawMax] onto the upper half. Results
// strictly within Deadzone of the output midpoint snap to it; the result is
// clamped to [OutMin, OutMax].
func (c JoystickCalibration) Map(raw int) int16 {
	v := float64(raw)
	mid := float64(c.Mid)
	outMin, outMax := float64(c.OutMin), float64(c.OutMax)
	outMid := (outMax + outMin) / 2

	if v > mid {
		v = mapRange(v, mid, float64(c.RawMax), outMid, outMax)
	} else {
		v = mapRange(v, float64(c.RawMin), mid, outMin, outMid)
	}

	dz := float64(c.Deadzone)
	if v > outMid-dz && v < outMid+dz {
		v = outMid
	}
	return int16(constrain(v, outMin, outMax))
}

// PedalCalibration describes one pedal.
type PedalCalibration struct {
	RawMin, RawMax int
	Deadzone       int
	OutMin, OutMax int16
}

// Map converts a raw reading linearly onto [OutMin, OutMax]. Values below
// OutMin+Deadzone read as fully released.
func (c PedalCalibration) Map(raw int) int16 {
	outMin, outMax := float64(c.OutMin), float64(c.OutMax)
	v := mapRange(float64(raw), float64(c.RawMin), float64(c.RawMax), outMin, outMax)
	if v < outMin+float64(c.Deadzone) {
		v = outMin
	}
	return int16(constrain(v, outMin, outMax))
}
