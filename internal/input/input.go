// Package input turns raw pin and ADC readings into controller values: key
// matrix bits, gear buttons, joystick axes and pedal travel.
package input

import (
	"context"
	"time"
)

// DigitalInput is a readable line. 0 is low.
type DigitalInput interface {
	Value() (int, error)
}

// DigitalOutput is a drivable line.
type DigitalOutput interface {
	SetValue(v int) error
}

// AnalogInput returns one raw ADC conversion.
type AnalogInput interface {
	Read() (int, error)
}

// Delayer suspends the caller for d. It returns early only when ctx ends.
type Delayer interface {
	Delay(ctx context.Context, d time.Duration) error
}
