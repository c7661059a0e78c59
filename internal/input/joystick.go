package input

import "fmt"

type JoystickConfig struct {
	Deadzone       int
	RawMin, RawMax int
	OutMin, OutMax int16
	// CalibrationSamples readings per axis are averaged at construction to
	// find the rest position.
	CalibrationSamples int
}

func DefaultJoystickConfig() JoystickConfig {
	return JoystickConfig{
		Deadzone:           1600,
		RawMin:             200,
		RawMax:             3100,
		OutMin:             -32767,
		OutMax:             32767,
		CalibrationSamples: 10,
	}
}

// Joystick is a two-axis stick with a push button.
type Joystick struct {
	x, y   AnalogInput
	button *Button

	calX, calY JoystickCalibration
}

// NewJoystick measures the rest position of both axes; the stick must be
// centred. button may be nil.
func NewJoystick(x, y AnalogInput, button DigitalInput, cfg JoystickConfig) (*Joystick, error) {
	if x == nil || y == nil {
		return nil, fmt.Errorf("input: joystick axis is nil")
	}
	if cfg.CalibrationSamples <= 0 {
		cfg.CalibrationSamples = 10
	}
	if cfg.RawMax <= cfg.RawMin {
		return nil, fmt.Errorf("input: joystick raw range [%d,%d] is empty", cfg.RawMin, cfg.RawMax)
	}

	var sumX, sumY int
	for i := 0; i < cfg.CalibrationSamples; i++ {
		vx, err := x.Read()
		if err != nil {
			return nil, fmt.Errorf("input: joystick calibration x: %w", err)
		}
		vy, err := y.Read()
		if err != nil {
			return nil, fmt.Errorf("input: joystick calibration y: %w", err)
		}
		sumX += vx
		sumY += vy
	}

	base := JoystickCalibration{
		RawMin:   cfg.RawMin,
		RawMax:   cfg.RawMax,
		Deadzone: cfg.Deadzone,
		OutMin:   cfg.OutMin,
		OutMax:   cfg.OutMax,
	}
	j := &Joystick{x: x, y: y, calX: base, calY: base}
	j.calX.Mid = sumX / cfg.CalibrationSamples
	j.calY.Mid = sumY / cfg.CalibrationSamples
	if button != nil {
		j.button = NewButton(button, false)
	}
	return j, nil
}

func (j *Joystick) Calibration() (x, y JoystickCalibration) { return j.calX, j.calY }

// Read returns both mapped axes and the button state.
func (j *Joystick) Read() (x, y int16, pressed bool, err error) {
	rx, err := j.x.Read()
	if err != nil {
		return 0, 0, false, fmt.Errorf("input: joystick x: %w", err)
	}
	ry, err := j.y.Read()
	if err != nil {
		return 0, 0, false, fmt.Errorf("input: joystick y: %w", err)
	}
	if j.button != nil {
		pressed, err = j.button.Pressed()
		if err != nil {
			return 0, 0, false, fmt.Errorf("input: joystick button: %w", err)
		}
	}
	return j.calX.Map(rx), j.calY.Map(ry), pressed, nil
}
