package ahrs

import (
	"math"

	"github.com/westphae/quaternion"
)

// FilterConfig tunes the gradient-descent orientation filter.
type FilterConfig struct {
	// GyroMeasErrorDPS is the expected gyroscope measurement error (deg/s).
	GyroMeasErrorDPS float64
	// GyroMeasDriftDPS is the expected gyroscope drift rate (deg/s/s).
	GyroMeasDriftDPS float64
	// MountOffsetDeg is subtracted from the extracted roll so the controller's
	// rest pose reads zero.
	MountOffsetDeg float64
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		GyroMeasErrorDPS: 40,
		GyroMeasDriftDPS: 2,
		MountOffsetDeg:   90,
	}
}

// Filter is a Madgwick-style IMU filter (accelerometer + gyroscope) with
// integral gyro bias compensation. It is not safe for concurrent use.
type Filter struct {
	q    quaternion.Quaternion
	bias [3]float64

	beta float64
	zeta float64

	mountOffsetDeg float64
	unwrap         rollUnwrapper
}

func NewFilter(cfg FilterConfig) *Filter {
	if cfg.GyroMeasErrorDPS <= 0 {
		cfg.GyroMeasErrorDPS = 40
	}
	if cfg.GyroMeasDriftDPS <= 0 {
		cfg.GyroMeasDriftDPS = 2
	}
	return &Filter{
		q:              quaternion.Quaternion{W: 1},
		beta:           math.Sqrt(3.0/4.0) * cfg.GyroMeasErrorDPS * math.Pi / 180,
		zeta:           math.Sqrt(3.0/4.0) * cfg.GyroMeasDriftDPS * math.Pi / 180,
		mountOffsetDeg: cfg.MountOffsetDeg,
	}
}

// Quaternion returns the current orientation as (q0, q1, q2, q3).
func (f *Filter) Quaternion() [4]float64 {
	return [4]float64{f.q.W, f.q.X, f.q.Y, f.q.Z}
}

// Bias returns the accumulated gyro bias estimate in rad/s.
func (f *Filter) Bias() [3]float64 { return f.bias }

// Update advances the filter by dt seconds. Gyro rates are rad/s; the
// accelerometer may use any unit.
//
// A zero acceleration vector leaves the state untouched.
func (f *Filter) Update(ax, ay, az, gx, gy, gz, dt float64) {
	norm := math.Sqrt(ax*ax + ay*ay + az*az)
	if norm == 0 {
		return
	}
	ax /= norm
	ay /= norm
	az /= norm

	q0, q1, q2, q3 := f.q.W, f.q.X, f.q.Y, f.q.Z

	// Objective function: predicted minus measured gravity direction.
	f1 := 2*(q1*q3-q0*q2) - ax
	f2 := 2*(q0*q1+q2*q3) - ay
	f3 := 1 - 2*(q1*q1+q2*q2) - az

	// Jacobian transpose times f.
	step := quaternion.Quaternion{
		W: 2*q1*f2 - 2*q2*f1,
		X: 2*q3*f1 + 2*q0*f2 - 4*q1*f3,
		Y: 2*q3*f2 - 4*q2*f3 - 2*q0*f1,
		Z: 2*q1*f1 + 2*q2*f2,
	}
	if n := step.Norm(); n != 0 {
		step = step.Scale(1 / n)
	}

	// Gyro error direction is the vector part of 2 q* ⊗ step.
	werr := quaternion.Prod(quaternion.Quaternion{W: 2}, f.q.Conj(), step)
	f.bias[0] += werr.X * dt * f.zeta
	f.bias[1] += werr.Y * dt * f.zeta
	f.bias[2] += werr.Z * dt * f.zeta

	omega := quaternion.Quaternion{
		X: gx - f.bias[0],
		Y: gy - f.bias[1],
		Z: gz - f.bias[2],
	}
	qDot := quaternion.Prod(quaternion.Quaternion{W: 0.5}, f.q, omega)

	next := quaternion.Quaternion{
		W: q0 + dt*(qDot.W-f.beta*step.W),
		X: q1 + dt*(qDot.X-f.beta*step.X),
		Y: q2 + dt*(qDot.Y-f.beta*step.Y),
		Z: q3 + dt*(qDot.Z-f.beta*step.Z),
	}
	n := next.Norm()
	if n == 0 {
		return
	}
	f.q = next.Scale(1 / n)
}

// Roll returns the unwrapped roll in degrees. Each call advances the unwrap
// state, so it should be called once per Update.
func (f *Filter) Roll() float64 {
	return f.unwrap.next(f.rawRollDeg())
}

func (f *Filter) rawRollDeg() float64 {
	q0, q1, q2, q3 := f.q.W, f.q.X, f.q.Y, f.q.Z
	r := math.Atan2(-2*(q0*q1+q2*q3), q0*q0-q1*q1-q2*q2+q3*q3)
	return foldDeg(r*180/math.Pi - f.mountOffsetDeg)
}
