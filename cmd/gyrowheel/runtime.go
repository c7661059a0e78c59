package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"gyrowheel/internal/adc"
	"gyrowheel/internal/ahrs"
	"gyrowheel/internal/config"
	"gyrowheel/internal/controller"
	"gyrowheel/internal/gpio"
	"gyrowheel/internal/i2c"
	"gyrowheel/internal/input"
	"gyrowheel/internal/sensors/mpu9250"
	"gyrowheel/internal/transport"
	"gyrowheel/internal/web"
)

// Hardware openers; tests swap them for fakes.
var (
	openIMU = func(c config.IMUConfig) (ahrs.Sensor, func() error, error) {
		bus, err := i2c.OpenNumber(c.I2CBus)
		if err != nil {
			return nil, nil, err
		}
		dev, err := mpu9250.New(bus.Dev(c.Addr))
		if err != nil {
			_ = bus.Close()
			return nil, nil, err
		}
		if c.CalibrationSamples > 0 {
			if err := dev.Calibrate(c.CalibrationSamples); err != nil {
				_ = bus.Close()
				return nil, nil, fmt.Errorf("calibrate: %w", err)
			}
		}
		log.WithFields(log.Fields{
			"bus":         bus.Path(),
			"model":       dev.Model(),
			"gyro_offset": dev.GyroOffset(),
		}).Info("imu: ready")
		return dev, bus.Close, nil
	}
	openChip = func(path string) (pinChip, error) {
		c, err := gpio.Open(path)
		if err != nil {
			return nil, err
		}
		return gpioChip{c}, nil
	}
	openADC = func(dev string) (analogDevice, error) {
		d, err := adc.Open(dev)
		if err != nil {
			return nil, err
		}
		return adcDevice{d}, nil
	}
)

type pinLine interface {
	Value() (int, error)
	SetValue(v int) error
}

type pinChip interface {
	Input(name string, bias gpio.Bias) (pinLine, error)
	Output(name string, initial int) (pinLine, error)
	Close() error
}

type gpioChip struct{ c *gpio.Chip }

func (g gpioChip) Input(name string, bias gpio.Bias) (pinLine, error) {
	l, err := g.c.Input(name, bias)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (g gpioChip) Output(name string, initial int) (pinLine, error) {
	l, err := g.c.Output(name, initial)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (g gpioChip) Close() error { return g.c.Close() }

type analogDevice interface {
	Channel(n int) input.AnalogInput
}

type adcDevice struct{ d *adc.Device }

func (a adcDevice) Channel(n int) input.AnalogInput { return a.d.Channel(n) }

type runtime struct {
	cfg config.Config

	est *ahrs.Estimator
	tr  transport.Transport
	ws  *transport.WebSocket
	ctl *controller.Service

	motor   *input.Switch
	closers []func() error
}

func newRuntime(cfg config.Config) (rt *runtime, err error) {
	rt = &runtime{cfg: cfg}
	defer func() {
		if err != nil {
			rt.close()
		}
	}()

	rt.est = rt.buildEstimator()

	var chip pinChip
	if needsGPIO(cfg) {
		chip, err = openChip(cfg.Inputs.GPIOChip)
		if err != nil {
			return nil, fmt.Errorf("gpio: %w", err)
		}
		rt.closers = append(rt.closers, chip.Close)
	}

	var led controller.Indicator
	if cfg.Outputs.StatusLED.Line != "" {
		line, err := output(chip, cfg.Outputs.StatusLED, false)
		if err != nil {
			return nil, fmt.Errorf("outputs.status_led: %w", err)
		}
		led = input.NewSwitch(line, cfg.Outputs.StatusLED.Invert)
	}
	if cfg.Outputs.Motor.Line != "" {
		line, err := output(chip, cfg.Outputs.Motor, false)
		if err != nil {
			return nil, fmt.Errorf("outputs.motor: %w", err)
		}
		rt.motor = input.NewSwitch(line, cfg.Outputs.Motor.Invert)
		if err := rt.motor.Off(); err != nil {
			return nil, fmt.Errorf("outputs.motor: %w", err)
		}
	}

	inputs, err := buildInputs(cfg.Inputs, chip)
	if err != nil {
		return nil, err
	}

	if err := rt.buildTransport(); err != nil {
		return nil, err
	}

	rt.ctl, err = controller.New(controller.Config{
		InputPeriod:     cfg.Inputs.Period,
		SamplePeriod:    cfg.Steering.Period,
		TransmitPeriod:  cfg.Transport.Period,
		BlinkHalfPeriod: cfg.Transport.BlinkPeriod,
		Steering: controller.SteeringConfig{
			RotationDeg: cfg.Steering.RotationDeg,
			OutMin:      cfg.Steering.OutputMin,
			OutMax:      cfg.Steering.OutputMax,
		},
	}, controller.Deps{
		Roll:      rt.est,
		Inputs:    inputs,
		Transport: rt.tr,
		StatusLED: led,
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// buildEstimator brings up the IMU. Any failure leaves steering unavailable
// while the rest of the controller keeps working.
func (rt *runtime) buildEstimator() *ahrs.Estimator {
	c := rt.cfg.IMU
	if !c.Enabled() {
		log.Info("imu: disabled, steering unavailable")
		return ahrs.Unavailable()
	}
	sensor, closeFn, err := openIMU(c)
	if err != nil {
		log.WithError(err).Warn("imu: init failed, steering unavailable")
		return ahrs.Unavailable()
	}
	if closeFn != nil {
		rt.closers = append(rt.closers, closeFn)
	}
	return ahrs.NewEstimator(sensor, ahrs.FilterConfig{
		GyroMeasErrorDPS: c.GyroMeasErrorDPS,
		GyroMeasDriftDPS: c.GyroMeasDriftDPS,
		MountOffsetDeg:   *c.MountOffsetDeg,
	})
}

func (rt *runtime) buildTransport() error {
	c := rt.cfg.Transport
	switch c.Kind {
	case config.TransportWebSocket:
		rt.ws = transport.NewWebSocket()
		rt.tr = rt.ws
	case config.TransportUDP:
		u, err := transport.NewUDP(c.UDPDest)
		if err != nil {
			return fmt.Errorf("transport: %w", err)
		}
		rt.tr = u
	case config.TransportSerial:
		s, err := transport.NewSerial(transport.SerialConfig{
			Device:    c.SerialDevice,
			Baud:      c.SerialBaud,
			IgnoreDSR: c.SerialIgnoreDSR,
		})
		if err != nil {
			return fmt.Errorf("transport: %w", err)
		}
		rt.tr = s
	default:
		return fmt.Errorf("transport: unknown kind %q", c.Kind)
	}
	rt.closers = append(rt.closers, rt.tr.Close)
	log.WithField("kind", c.Kind).Info("transport: ready")
	return nil
}

func needsGPIO(cfg config.Config) bool {
	in := cfg.Inputs
	return len(in.Keypad.Rows) > 0 ||
		in.GearForward.Line != "" || in.GearReverse.Line != "" ||
		(in.Joystick.Enable && in.Joystick.Button != "") ||
		cfg.Outputs.StatusLED.Line != "" || cfg.Outputs.Motor.Line != ""
}

func output(chip pinChip, c config.LineConfig, on bool) (pinLine, error) {
	name, err := gpio.LineName(c.Line)
	if err != nil {
		return nil, err
	}
	level := 0
	if on != c.Invert {
		level = 1
	}
	return chip.Output(name, level)
}

// button requests a line for input.NewButton: active-low with pull-up, or
// active-high with pull-down when inverted.
func button(chip pinChip, c config.LineConfig) (*input.Button, error) {
	name, err := gpio.LineName(c.Line)
	if err != nil {
		return nil, err
	}
	bias := gpio.BiasPullUp
	if c.Invert {
		bias = gpio.BiasPullDown
	}
	line, err := chip.Input(name, bias)
	if err != nil {
		return nil, err
	}
	return input.NewButton(line, c.Invert), nil
}

func buildInputs(c config.InputsConfig, chip pinChip) (controller.Inputs, error) {
	var in controller.Inputs

	if len(c.Keypad.Rows) > 0 {
		rows := make([]input.DigitalOutput, 0, len(c.Keypad.Rows))
		for _, r := range c.Keypad.Rows {
			line, err := output(chip, config.LineConfig{Line: r}, true)
			if err != nil {
				return in, fmt.Errorf("inputs.keypad.rows %s: %w", r, err)
			}
			rows = append(rows, line)
		}
		cols := make([]input.DigitalInput, 0, len(c.Keypad.Cols))
		for _, col := range c.Keypad.Cols {
			name, err := gpio.LineName(col)
			if err != nil {
				return in, fmt.Errorf("inputs.keypad.cols %s: %w", col, err)
			}
			line, err := chip.Input(name, gpio.BiasPullUp)
			if err != nil {
				return in, fmt.Errorf("inputs.keypad.cols %s: %w", col, err)
			}
			cols = append(cols, line)
		}
		kp, err := input.NewKeypad(rows, cols, controller.SleepTimer{}, c.Keypad.Settle)
		if err != nil {
			return in, err
		}
		in.Keypad = kp
	}

	if c.GearForward.Line != "" {
		b, err := button(chip, c.GearForward)
		if err != nil {
			return in, fmt.Errorf("inputs.gear_forward: %w", err)
		}
		in.GearForward = b
	}
	if c.GearReverse.Line != "" {
		b, err := button(chip, c.GearReverse)
		if err != nil {
			return in, fmt.Errorf("inputs.gear_reverse: %w", err)
		}
		in.GearReverse = b
	}

	if !c.Joystick.Enable && !c.Pedals.Enable {
		return in, nil
	}
	dev, err := openADC(c.ADCDevice)
	if err != nil {
		return in, fmt.Errorf("inputs.adc_device: %w", err)
	}

	if c.Joystick.Enable {
		var btn input.DigitalInput
		if c.Joystick.Button != "" {
			name, err := gpio.LineName(c.Joystick.Button)
			if err != nil {
				return in, fmt.Errorf("inputs.joystick.button: %w", err)
			}
			line, err := chip.Input(name, gpio.BiasPullUp)
			if err != nil {
				return in, fmt.Errorf("inputs.joystick.button: %w", err)
			}
			btn = line
		}
		js, err := input.NewJoystick(dev.Channel(c.Joystick.XChannel), dev.Channel(c.Joystick.YChannel), btn, input.JoystickConfig{
			Deadzone:           c.Joystick.Deadzone,
			RawMin:             c.Joystick.RawMin,
			RawMax:             c.Joystick.RawMax,
			OutMin:             c.Joystick.OutputMin,
			OutMax:             c.Joystick.OutputMax,
			CalibrationSamples: c.Joystick.CalibrationSamples,
		})
		if err != nil {
			return in, fmt.Errorf("inputs.joystick: %w", err)
		}
		x, y := js.Calibration()
		log.WithFields(log.Fields{"mid_x": x.Mid, "mid_y": y.Mid}).Info("joystick: calibrated")
		in.Joystick = js
	}

	if c.Pedals.Enable {
		p, err := input.NewPedals(dev.Channel(c.Pedals.AcceleratorChannel), dev.Channel(c.Pedals.BrakeChannel), input.PedalConfig{
			Deadzone: c.Pedals.Deadzone,
			RawMin:   c.Pedals.RawMin,
			RawMax:   c.Pedals.RawMax,
			OutMin:   c.Pedals.OutputMin,
			OutMax:   c.Pedals.OutputMax,
		})
		if err != nil {
			return in, fmt.Errorf("inputs.pedals: %w", err)
		}
		in.Pedals = p
	}
	return in, nil
}

func (rt *runtime) status() *web.Status {
	st := web.NewStatus()
	st.Controller = rt.ctl
	st.Attitude = rt.est
	st.TransportKind = rt.cfg.Transport.Kind
	if sp, ok := rt.tr.(transport.StatsProvider); ok {
		st.Transport = sp
	}
	st.Config = map[string]any{
		"imu_enabled":           rt.est.Available(),
		"mount_offset_deg":      *rt.cfg.IMU.MountOffsetDeg,
		"steering_rotation_deg": rt.cfg.Steering.RotationDeg,
		"input_period":          rt.cfg.Inputs.Period.String(),
		"transmit_period":       rt.cfg.Transport.Period.String(),
	}
	return st
}

// run starts the controller loops and the status server and blocks until ctx
// is done or the server fails. The server is only fatal when it carries the
// websocket transport.
func (rt *runtime) run(ctx context.Context, logs *web.LogBuffer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := rt.ctl.Start(ctx); err != nil {
		return err
	}

	var (
		wg     sync.WaitGroup
		webErr error
	)
	if listen := rt.cfg.Web.Listen; listen != "" {
		opts := web.Options{
			Status: rt.status(),
			Logs:   logs,
			Stream: web.NewBroadcaster(),
		}
		if rt.ws != nil {
			opts.ReportPath = rt.cfg.Transport.Path
			opts.Reports = rt.ws
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := web.Serve(ctx, listen, opts)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			log.WithError(err).Error("web: server stopped")
			if rt.ws != nil {
				webErr = fmt.Errorf("web: %w", err)
				cancel()
			}
		}()
	}

	<-ctx.Done()
	rt.ctl.Close()
	wg.Wait()
	return webErr
}

func (rt *runtime) close() {
	if rt.ctl != nil {
		rt.ctl.Close()
	}
	if rt.motor != nil {
		_ = rt.motor.Off()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			log.WithError(err).Debug("close")
		}
	}
	rt.closers = nil
}
