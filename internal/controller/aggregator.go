package controller

import (
	"context"
	"errors"
	"time"

	"gyrowheel/internal/report"
)

type KeyScanner interface {
	Scan(ctx context.Context) error
	States() uint16
}

type JoystickReader interface {
	Read() (x, y int16, pressed bool, err error)
}

type PedalReader interface {
	Read() (accelerator, brake int16, err error)
}

type ButtonReader interface {
	Pressed() (bool, error)
}

// Inputs are the manual sources polled by the aggregator. Any may be nil when
// not fitted.
type Inputs struct {
	Keypad      KeyScanner
	Joystick    JoystickReader
	Pedals      PedalReader
	GearForward ButtonReader
	GearReverse ButtonReader
}

const keypadMask = 1<<16 - 1

// aggregator polls the manual inputs in a fixed order and publishes them.
// The button mask persists across cycles so a failing source keeps its last
// bits.
type aggregator struct {
	in     Inputs
	report *report.Report
	timer  Timer
	period time.Duration
	health *health

	mask uint32
}

func (a *aggregator) run(ctx context.Context) error {
	for {
		if err := a.cycle(ctx); err != nil {
			return err
		}
		if err := a.timer.Delay(ctx, a.period); err != nil {
			return err
		}
	}
}

// cycle returns an error only when ctx ended mid-scan.
func (a *aggregator) cycle(ctx context.Context) error {
	if a.in.Keypad != nil {
		if err := a.in.Keypad.Scan(ctx); err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return err
			}
			a.health.fail("keypad", err)
		} else {
			a.mask = a.mask&^keypadMask | uint32(a.in.Keypad.States())
			a.health.ok("keypad")
		}
	}

	if a.in.Joystick != nil {
		x, y, pressed, err := a.in.Joystick.Read()
		if err != nil {
			a.health.fail("joystick", err)
		} else {
			a.report.SetAxes(x, y)
			a.setBit(report.BitJoystickButton, pressed)
			a.health.ok("joystick")
		}
	}

	if a.in.Pedals != nil {
		acc, brake, err := a.in.Pedals.Read()
		if err != nil {
			a.health.fail("pedals", err)
		} else {
			a.report.SetPedals(acc, brake)
			a.health.ok("pedals")
		}
	}

	a.readButton("gear_forward", a.in.GearForward, report.BitGearForward)
	a.readButton("gear_reverse", a.in.GearReverse, report.BitGearReverse)

	a.report.SetButtons(a.mask)
	return nil
}

func (a *aggregator) readButton(source string, b ButtonReader, bit uint) {
	if b == nil {
		return
	}
	pressed, err := b.Pressed()
	if err != nil {
		a.health.fail(source, err)
		return
	}
	a.setBit(bit, pressed)
	a.health.ok(source)
}

func (a *aggregator) setBit(bit uint, on bool) {
	if on {
		a.mask |= 1 << bit
	} else {
		a.mask &^= 1 << bit
	}
}
