package input

import "fmt"

type PedalConfig struct {
	Deadzone       int
	RawMin, RawMax int
	OutMin, OutMax int16
}

func DefaultPedalConfig() PedalConfig {
	return PedalConfig{
		Deadzone: 2000,
		RawMin:   200,
		RawMax:   2700,
		OutMin:   0,
		OutMax:   32767,
	}
}

// Pedals reads the accelerator and brake potentiometers.
type Pedals struct {
	accelerator, brake AnalogInput
	cal                PedalCalibration
}

func NewPedals(accelerator, brake AnalogInput, cfg PedalConfig) (*Pedals, error) {
	if accelerator == nil || brake == nil {
		return nil, fmt.Errorf("input: pedal input is nil")
	}
	if cfg.RawMax <= cfg.RawMin {
		return nil, fmt.Errorf("input: pedal raw range [%d,%d] is empty", cfg.RawMin, cfg.RawMax)
	}
	return &Pedals{
		accelerator: accelerator,
		brake:       brake,
		cal: PedalCalibration{
			RawMin:   cfg.RawMin,
			RawMax:   cfg.RawMax,
			Deadzone: cfg.Deadzone,
			OutMin:   cfg.OutMin,
			OutMax:   cfg.OutMax,
		},
	}, nil
}

func (p *Pedals) Read() (accelerator, brake int16, err error) {
	ra, err := p.accelerator.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("input: accelerator: %w", err)
	}
	rb, err := p.brake.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("input: brake: %w", err)
	}
	return p.cal.Map(ra), p.cal.Map(rb), nil
}
