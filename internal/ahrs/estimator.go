package ahrs

import (
	"fmt"
	"sync"
	"time"
)

// Sensor provides accelerometer (any unit) and gyroscope (rad/s) samples.
type Sensor interface {
	ReadAccelGyro() (accel, gyro [3]float64, err error)
}

type Snapshot struct {
	Available bool

	RollDeg    float64
	Quaternion [4]float64
	GyroBias   [3]float64
	Samples    uint64

	LastError string
	UpdatedAt time.Time
}

// Estimator feeds sensor samples through a Filter using wall-clock dt.
//
// An Estimator built by Unavailable never produces a value; the rest of the
// controller keeps running without steering.
type Estimator struct {
	sensor Sensor
	filter *Filter
	now    func() time.Time

	lastAt time.Time

	mu   sync.RWMutex
	snap Snapshot
}

func NewEstimator(sensor Sensor, cfg FilterConfig) *Estimator {
	if sensor == nil {
		return Unavailable()
	}
	e := &Estimator{sensor: sensor, filter: NewFilter(cfg), now: time.Now}
	e.snap.Available = true
	e.snap.Quaternion = e.filter.Quaternion()
	return e
}

func Unavailable() *Estimator {
	return &Estimator{now: time.Now}
}

func (e *Estimator) Available() bool {
	return e != nil && e.sensor != nil
}

func (e *Estimator) Snapshot() Snapshot {
	if e == nil {
		return Snapshot{}
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// SampleRoll reads one sample, advances the filter and returns the unwrapped
// roll in degrees. ok is false when there is no value this cycle: the
// estimator is unavailable, the read failed (err is set), or this is the
// first sample, which only establishes the time base.
//
// SampleRoll is meant to be driven by a single goroutine.
func (e *Estimator) SampleRoll() (roll float64, ok bool, err error) {
	if !e.Available() {
		return 0, false, nil
	}
	accel, gyro, err := e.sensor.ReadAccelGyro()
	if err != nil {
		e.setErr(err)
		return 0, false, fmt.Errorf("ahrs: read sensor: %w", err)
	}

	now := e.now()
	if e.lastAt.IsZero() {
		e.lastAt = now
		return 0, false, nil
	}
	dt := now.Sub(e.lastAt).Seconds()
	e.lastAt = now
	// A long stall (debugger, bus hang) would integrate a bogus rotation.
	if dt <= 0 || dt > 0.5 {
		dt = 0
	}

	e.filter.Update(accel[0], accel[1], accel[2], gyro[0], gyro[1], gyro[2], dt)
	roll = e.filter.Roll()

	e.mu.Lock()
	e.snap.RollDeg = roll
	e.snap.Quaternion = e.filter.Quaternion()
	e.snap.GyroBias = e.filter.Bias()
	e.snap.Samples++
	e.snap.LastError = ""
	e.snap.UpdatedAt = now
	e.mu.Unlock()
	return roll, true, nil
}

func (e *Estimator) setErr(err error) {
	e.mu.Lock()
	e.snap.LastError = err.Error()
	e.mu.Unlock()
}
