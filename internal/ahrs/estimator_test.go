package ahrs

import (
	"errors"
	"testing"
	"time"
)

type fakeSensor struct {
	accel, gyro [3]float64
	err         error
	reads       int
}

func (f *fakeSensor) ReadAccelGyro() (accel, gyro [3]float64, err error) {
	f.reads++
	return f.accel, f.gyro, f.err
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestEstimator(s Sensor) (*Estimator, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	e := NewEstimator(s, zeroOffset())
	e.now = clk.now
	return e, clk
}

func TestUnavailable_NeverProducesValue(t *testing.T) {
	e := Unavailable()
	if e.Available() {
		t.Fatalf("Available()=true")
	}
	for i := 0; i < 3; i++ {
		if _, ok, err := e.SampleRoll(); ok || err != nil {
			t.Fatalf("ok=%v err=%v want false,nil", ok, err)
		}
	}
	if e.Snapshot().Available {
		t.Fatalf("snapshot reports available")
	}
}

func TestNewEstimator_NilSensorIsUnavailable(t *testing.T) {
	if NewEstimator(nil, DefaultFilterConfig()).Available() {
		t.Fatalf("expected unavailable")
	}
}

func TestSampleRoll_FirstSampleEstablishesTimeBase(t *testing.T) {
	s := &fakeSensor{accel: [3]float64{0, 0, 1}}
	e, clk := newTestEstimator(s)

	if _, ok, err := e.SampleRoll(); ok || err != nil {
		t.Fatalf("first: ok=%v err=%v want false,nil", ok, err)
	}
	clk.advance(10 * time.Millisecond)
	roll, ok, err := e.SampleRoll()
	if !ok || err != nil {
		t.Fatalf("second: ok=%v err=%v want true,nil", ok, err)
	}
	if roll != 0 {
		t.Fatalf("roll=%v want 0", roll)
	}
	if snap := e.Snapshot(); snap.Samples != 1 || !snap.Available {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestSampleRoll_ReadErrorYieldsNoValue(t *testing.T) {
	boom := errors.New("nack")
	s := &fakeSensor{accel: [3]float64{0, 0, 1}}
	e, clk := newTestEstimator(s)
	_, _, _ = e.SampleRoll()
	clk.advance(10 * time.Millisecond)

	s.err = boom
	_, ok, err := e.SampleRoll()
	if ok || !errors.Is(err, boom) {
		t.Fatalf("ok=%v err=%v want false,%v", ok, err, boom)
	}
	if e.Snapshot().LastError == "" {
		t.Fatalf("expected LastError to be recorded")
	}

	s.err = nil
	clk.advance(10 * time.Millisecond)
	if _, ok, err := e.SampleRoll(); !ok || err != nil {
		t.Fatalf("after recovery ok=%v err=%v", ok, err)
	}
	if e.Snapshot().LastError != "" {
		t.Fatalf("LastError not cleared")
	}
}

func TestSampleRoll_LongStallDoesNotIntegrateGyro(t *testing.T) {
	s := &fakeSensor{accel: [3]float64{0, 0, 1}, gyro: [3]float64{3, 0, 0}}
	e, clk := newTestEstimator(s)
	_, _, _ = e.SampleRoll()

	clk.advance(2 * time.Second)
	roll, ok, err := e.SampleRoll()
	if !ok || err != nil {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if roll != 0 {
		t.Fatalf("roll=%v want 0 after stalled dt", roll)
	}
}

func TestSampleRoll_TracksTilt(t *testing.T) {
	s := &fakeSensor{accel: [3]float64{0, 0.5, 0.8660254}}
	e, clk := newTestEstimator(s)
	var roll float64
	for i := 0; i < 2001; i++ {
		r, ok, err := e.SampleRoll()
		if err != nil {
			t.Fatalf("SampleRoll: %v", err)
		}
		if ok {
			roll = r
		}
		clk.advance(5 * time.Millisecond)
	}
	if roll > -28 || roll < -32 {
		t.Fatalf("roll=%v want ~-30", roll)
	}
}
