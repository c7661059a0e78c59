package controller

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"gyrowheel/internal/report"
)

// RollSource yields the unwrapped roll in degrees. ok is false when there is
// no value this cycle; err explains a failed read.
type RollSource interface {
	SampleRoll() (roll float64, ok bool, err error)
}

type SteeringConfig struct {
	// RotationDeg is the full lock-to-lock travel.
	RotationDeg    float64
	OutMin, OutMax int16
}

func DefaultSteeringConfig() SteeringConfig {
	return SteeringConfig{RotationDeg: 900, OutMin: 0, OutMax: 32767}
}

// SteeringValue clamps roll to half the rotation either side of centre and
// scales it linearly onto [OutMin, OutMax].
func (c SteeringConfig) SteeringValue(roll float64) int16 {
	half := c.RotationDeg / 2
	if roll < -half {
		roll = -half
	}
	if roll > half {
		roll = half
	}
	ratio := float64(int(c.OutMax)-int(c.OutMin)) / c.RotationDeg
	return int16((roll+half)*ratio + float64(c.OutMin))
}

type sampler struct {
	source   RollSource
	steering SteeringConfig
	report   *report.Report
	timer    Timer
	period   time.Duration
	health   *health

	lastRoll atomic.Uint64 // math.Float64bits
	samples  atomic.Uint64
}

func (s *sampler) run(ctx context.Context) error {
	for {
		if err := s.timer.Delay(ctx, s.period); err != nil {
			return err
		}
		s.cycle()
	}
}

func (s *sampler) cycle() {
	roll, ok, err := s.source.SampleRoll()
	if err != nil {
		s.health.fail("imu", err)
		return
	}
	if !ok {
		return
	}
	s.health.ok("imu")
	s.report.SetSteering(s.steering.SteeringValue(roll))
	s.lastRoll.Store(math.Float64bits(roll))
	s.samples.Add(1)
}
