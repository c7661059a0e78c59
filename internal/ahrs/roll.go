package ahrs

import "math"

// foldDeg maps an angle into [-180, 180].
func foldDeg(deg float64) float64 {
	return math.Remainder(deg, 360)
}

// rollUnwrapper turns a wrapped angle sequence into a continuous one by
// folding each step into [-180, 180] before accumulating it.
type rollUnwrapper struct {
	prevRaw float64
	roll    float64
}

func (u *rollUnwrapper) next(raw float64) float64 {
	u.roll += foldDeg(raw - u.prevRaw)
	u.prevRaw = raw
	return u.roll
}
