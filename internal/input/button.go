package input

import "fmt"

// Button is a push button or gear switch. With the usual pull-up wiring a low
// line means pressed; Invert flips that for pull-down wiring.
type Button struct {
	pin    DigitalInput
	invert bool
}

func NewButton(pin DigitalInput, invert bool) *Button {
	return &Button{pin: pin, invert: invert}
}

func (b *Button) Pressed() (bool, error) {
	if b == nil || b.pin == nil {
		return false, fmt.Errorf("input: button not initialized")
	}
	v, err := b.pin.Value()
	if err != nil {
		return false, err
	}
	return (v == 0) != b.invert, nil
}
