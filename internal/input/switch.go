package input

import "fmt"

// Switch drives an on/off output such as the status LED or the vibration
// motor. Invert is for active-low wiring.
type Switch struct {
	pin    DigitalOutput
	invert bool
}

func NewSwitch(pin DigitalOutput, invert bool) *Switch {
	return &Switch{pin: pin, invert: invert}
}

func (s *Switch) On() error  { return s.Set(true) }
func (s *Switch) Off() error { return s.Set(false) }

func (s *Switch) Set(on bool) error {
	if s == nil || s.pin == nil {
		return fmt.Errorf("input: switch not initialized")
	}
	v := 0
	if on != s.invert {
		v = 1
	}
	return s.pin.SetValue(v)
}
