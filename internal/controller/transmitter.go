package controller

import (
	"context"
	"time"

	"gyrowheel/internal/report"
	"gyrowheel/internal/transport"
)

// Indicator is the status LED.
type Indicator interface {
	On() error
	Off() error
}

// transmitter pushes report snapshots while a peer is connected and blinks
// the status LED while none is.
type transmitter struct {
	report    *report.Report
	transport transport.Transport
	led       Indicator
	timer     Timer
	period    time.Duration
	blinkHalf time.Duration
	health    *health
}

func (t *transmitter) run(ctx context.Context) error {
	for {
		if err := t.cycle(ctx); err != nil {
			return err
		}
	}
}

func (t *transmitter) cycle(ctx context.Context) error {
	if t.transport.PeerConnected() {
		st := t.report.Snapshot()
		t.transport.SetReport(st.Encode())
		if err := t.transport.Notify(); err != nil {
			t.health.fail("transport", err)
		} else {
			t.health.ok("transport")
		}
		return t.timer.Delay(ctx, t.period)
	}

	t.setLED(false)
	if err := t.timer.Delay(ctx, t.blinkHalf); err != nil {
		return err
	}
	t.setLED(true)
	return t.timer.Delay(ctx, t.blinkHalf)
}

func (t *transmitter) setLED(on bool) {
	if t.led == nil {
		return
	}
	var err error
	if on {
		err = t.led.On()
	} else {
		err = t.led.Off()
	}
	if err != nil {
		t.health.fail("status_led", err)
		return
	}
	t.health.ok("status_led")
}
