package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	IMU       IMUConfig       `yaml:"imu"`
	Steering  SteeringConfig  `yaml:"steering"`
	Inputs    InputsConfig    `yaml:"inputs"`
	Outputs   OutputsConfig   `yaml:"outputs"`
	Transport TransportConfig `yaml:"transport"`
	Web       WebConfig       `yaml:"web"`
	Log       LogConfig       `yaml:"log"`
}

type IMUConfig struct {
	// Enable defaults to true; set false to run without steering.
	Enable *bool  `yaml:"enable"`
	I2CBus int    `yaml:"i2c_bus"`
	Addr   uint16 `yaml:"addr"`
	// MountOffsetDeg is subtracted from the computed roll. Defaults to 90.
	MountOffsetDeg *float64 `yaml:"mount_offset_deg"`
	// CalibrationSamples stationary gyro readings are averaged at start-up.
	// Negative disables calibration.
	CalibrationSamples int     `yaml:"calibration_samples"`
	GyroMeasErrorDPS   float64 `yaml:"gyro_meas_error_dps"`
	GyroMeasDriftDPS   float64 `yaml:"gyro_meas_drift_dps"`
}

func (c IMUConfig) Enabled() bool { return c.Enable == nil || *c.Enable }

type SteeringConfig struct {
	RotationDeg float64       `yaml:"rotation_deg"`
	OutputMin   int16         `yaml:"output_min"`
	OutputMax   int16         `yaml:"output_max"`
	Period      time.Duration `yaml:"period"`
}

type InputsConfig struct {
	Period    time.Duration `yaml:"period"`
	GPIOChip  string        `yaml:"gpio_chip"`
	ADCDevice string        `yaml:"adc_device"`

	Keypad      KeypadConfig   `yaml:"keypad"`
	Joystick    JoystickConfig `yaml:"joystick"`
	Pedals      PedalsConfig   `yaml:"pedals"`
	GearForward LineConfig     `yaml:"gear_forward"`
	GearReverse LineConfig     `yaml:"gear_reverse"`
}

// KeypadConfig lists the matrix lines by GPIO name or BCM number. An empty
// list means no keypad is fitted.
type KeypadConfig struct {
	Rows   []string      `yaml:"rows"`
	Cols   []string      `yaml:"cols"`
	Settle time.Duration `yaml:"settle"`
}

type JoystickConfig struct {
	Enable             bool   `yaml:"enable"`
	XChannel           int    `yaml:"x_channel"`
	YChannel           int    `yaml:"y_channel"`
	Button             string `yaml:"button"`
	Deadzone           int    `yaml:"deadzone"`
	RawMin             int    `yaml:"raw_min"`
	RawMax             int    `yaml:"raw_max"`
	OutputMin          int16  `yaml:"output_min"`
	OutputMax          int16  `yaml:"output_max"`
	CalibrationSamples int    `yaml:"calibration_samples"`
}

type PedalsConfig struct {
	Enable             bool  `yaml:"enable"`
	AcceleratorChannel int   `yaml:"accelerator_channel"`
	BrakeChannel       int   `yaml:"brake_channel"`
	Deadzone           int   `yaml:"deadzone"`
	RawMin             int   `yaml:"raw_min"`
	RawMax             int   `yaml:"raw_max"`
	OutputMin          int16 `yaml:"output_min"`
	OutputMax          int16 `yaml:"output_max"`
}

// LineConfig is one GPIO line. An empty Line means not fitted.
type LineConfig struct {
	Line   string `yaml:"line"`
	Invert bool   `yaml:"invert"`
}

type OutputsConfig struct {
	StatusLED LineConfig `yaml:"status_led"`
	Motor     LineConfig `yaml:"motor"`
}

const (
	TransportWebSocket = "websocket"
	TransportUDP       = "udp"
	TransportSerial    = "serial"
)

type TransportConfig struct {
	Kind string `yaml:"kind"`
	// Path is where the websocket transport is mounted on the web server.
	Path            string        `yaml:"path"`
	UDPDest         string        `yaml:"udp_dest"`
	SerialDevice    string        `yaml:"serial_device"`
	SerialBaud      int           `yaml:"serial_baud"`
	SerialIgnoreDSR bool          `yaml:"serial_ignore_dsr"`
	Period          time.Duration `yaml:"period"`
	BlinkPeriod     time.Duration `yaml:"blink_period"`
}

type WebConfig struct {
	// Listen is the status server address; empty disables it unless the
	// websocket transport needs it.
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

func Parse(b []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, decodeError(err)
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeError(err error) error {
	var te *yaml.TypeError
	if !errors.As(err, &te) {
		return err
	}
	msgs := make([]string, 0, len(te.Errors))
	unknown := true
	for _, e := range te.Errors {
		// "line 3: field x not found in type y"
		if i := strings.Index(e, ": "); i >= 0 && strings.HasPrefix(e, "line ") {
			e = e[i+2:]
		}
		if !strings.HasPrefix(e, "field ") {
			unknown = false
		}
		msgs = append(msgs, e)
	}
	if unknown {
		return fmt.Errorf("config contains unknown fields: %s", strings.Join(msgs, "; "))
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	_ = DefaultAndValidate(&cfg)
	return cfg
}

func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// IMU.
	if cfg.IMU.I2CBus == 0 {
		cfg.IMU.I2CBus = 1
	}
	if cfg.IMU.Addr == 0 {
		cfg.IMU.Addr = 0x68
	}
	if cfg.IMU.Addr > 0x7F {
		return fmt.Errorf("imu.addr must be a 7-bit address")
	}
	if cfg.IMU.MountOffsetDeg == nil {
		v := 90.0
		cfg.IMU.MountOffsetDeg = &v
	}
	if cfg.IMU.CalibrationSamples == 0 {
		cfg.IMU.CalibrationSamples = 200
	}
	if cfg.IMU.GyroMeasErrorDPS == 0 {
		cfg.IMU.GyroMeasErrorDPS = 40
	}
	if cfg.IMU.GyroMeasDriftDPS == 0 {
		cfg.IMU.GyroMeasDriftDPS = 2
	}
	if cfg.IMU.GyroMeasErrorDPS < 0 || cfg.IMU.GyroMeasDriftDPS < 0 {
		return fmt.Errorf("imu.gyro_meas_error_dps and imu.gyro_meas_drift_dps must be > 0")
	}

	// Steering.
	if cfg.Steering.RotationDeg == 0 {
		cfg.Steering.RotationDeg = 900
	}
	if cfg.Steering.RotationDeg < 0 {
		return fmt.Errorf("steering.rotation_deg must be > 0")
	}
	if cfg.Steering.OutputMin == 0 && cfg.Steering.OutputMax == 0 {
		cfg.Steering.OutputMax = 32767
	}
	if cfg.Steering.OutputMax <= cfg.Steering.OutputMin {
		return fmt.Errorf("steering.output_max must be > steering.output_min")
	}
	if cfg.Steering.Period <= 0 {
		cfg.Steering.Period = 10 * time.Millisecond
	}

	// Inputs.
	in := &cfg.Inputs
	if in.Period <= 0 {
		in.Period = 5 * time.Millisecond
	}
	if in.ADCDevice == "" {
		in.ADCDevice = "iio:device0"
	}
	if len(in.Keypad.Rows) > 0 || len(in.Keypad.Cols) > 0 {
		if len(in.Keypad.Rows) == 0 || len(in.Keypad.Cols) == 0 {
			return fmt.Errorf("inputs.keypad needs both rows and cols")
		}
		if len(in.Keypad.Rows)*len(in.Keypad.Cols) > 16 {
			return fmt.Errorf("inputs.keypad.rows*cols must be <= 16")
		}
	}
	if in.Keypad.Settle <= 0 {
		in.Keypad.Settle = 5 * time.Millisecond
	}

	js := &in.Joystick
	if js.Deadzone == 0 {
		js.Deadzone = 1600
	}
	if js.RawMin == 0 && js.RawMax == 0 {
		js.RawMin, js.RawMax = 200, 3100
	}
	if js.OutputMin == 0 && js.OutputMax == 0 {
		js.OutputMin, js.OutputMax = -32767, 32767
	}
	if js.CalibrationSamples <= 0 {
		js.CalibrationSamples = 10
	}
	if js.Enable {
		if js.RawMax <= js.RawMin {
			return fmt.Errorf("inputs.joystick.raw_max must be > inputs.joystick.raw_min")
		}
		if js.OutputMax <= js.OutputMin {
			return fmt.Errorf("inputs.joystick.output_max must be > inputs.joystick.output_min")
		}
		if js.Deadzone < 0 {
			return fmt.Errorf("inputs.joystick.deadzone must be >= 0")
		}
	}

	pd := &in.Pedals
	if pd.Deadzone == 0 {
		pd.Deadzone = 2000
	}
	if pd.RawMin == 0 && pd.RawMax == 0 {
		pd.RawMin, pd.RawMax = 200, 2700
	}
	if pd.OutputMin == 0 && pd.OutputMax == 0 {
		pd.OutputMax = 32767
	}
	if pd.Enable {
		if pd.RawMax <= pd.RawMin {
			return fmt.Errorf("inputs.pedals.raw_max must be > inputs.pedals.raw_min")
		}
		if pd.OutputMax <= pd.OutputMin {
			return fmt.Errorf("inputs.pedals.output_max must be > inputs.pedals.output_min")
		}
		if pd.Deadzone < 0 {
			return fmt.Errorf("inputs.pedals.deadzone must be >= 0")
		}
	}

	// Transport.
	tr := &cfg.Transport
	if tr.Kind == "" {
		tr.Kind = TransportWebSocket
	}
	switch tr.Kind {
	case TransportWebSocket:
		if tr.Path == "" {
			tr.Path = "/ws"
		}
		if cfg.Web.Listen == "" {
			cfg.Web.Listen = ":8080"
		}
	case TransportUDP:
		if tr.UDPDest == "" {
			return fmt.Errorf("transport.udp_dest is required when transport.kind is 'udp'")
		}
	case TransportSerial:
		if tr.SerialDevice == "" {
			return fmt.Errorf("transport.serial_device is required when transport.kind is 'serial'")
		}
		if tr.SerialBaud <= 0 {
			tr.SerialBaud = 115200
		}
	default:
		return fmt.Errorf("transport.kind must be one of websocket, udp, serial")
	}
	if tr.Period <= 0 {
		tr.Period = 7 * time.Millisecond
	}
	if tr.BlinkPeriod <= 0 {
		tr.BlinkPeriod = 500 * time.Millisecond
	}

	// Logging.
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}

	return nil
}
