package mpu9250

import (
	"fmt"
	"math"
	"time"

	"gyrowheel/internal/i2c"
)

var sleep = time.Sleep

// Minimal MPU-9250 / MPU-6500 family driver.
//
// Only the accelerometer and gyroscope are used. The magnetometer behind the
// auxiliary bus is left untouched.

const (
	addrDefault = 0x68

	regSmplrtDiv    = 0x19
	regConfig       = 0x1A
	regGyroConfig   = 0x1B
	regAccelConfig  = 0x1C
	regAccelConfig2 = 0x1D
	regIntEnable    = 0x38
	regAccelXoutH   = 0x3B // accel(6) temp(2) gyro(6)
	regPwrMgmt1     = 0x6B
	regPwrMgmt2     = 0x6C
	regWhoAmI       = 0x75

	bitReset   = 0x80
	clockPLL   = 0x01
	dlpf41Hz   = 0x03
	fsGyro500  = 0x01 << 3
	fsAccel4g  = 0x01 << 3
	sampleRate = 200 // Hz, 1 kHz internal / (1+div)

	gyroFullScaleDPS = 500.0
	accelFullScaleG  = 4.0
)

var knownWhoAmI = map[byte]string{
	0x68: "MPU-6050",
	0x70: "MPU-6500",
	0x71: "MPU-9250",
	0x73: "MPU-9255",
}

// Sample is one accel/gyro reading with the start-up gyro offset removed.
type Sample struct {
	Time time.Time
	// Accel in g.
	Ax, Ay, Az float64
	// Gyro in rad/s.
	Gx, Gy, Gz float64
}

type Device struct {
	dev   regIO
	model string

	scaleAccel float64
	scaleGyro  float64

	gyroOffset [3]float64
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

func DefaultAddress() uint16 { return addrDefault }

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("mpu9250: dev is nil")
	}
	return newWithIO(dev)
}

func newWithIO(dev regIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("mpu9250: dev is nil")
	}
	who, err := dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("mpu9250: whoami read failed: %w", err)
	}
	model, ok := knownWhoAmI[who]
	if !ok {
		return nil, fmt.Errorf("mpu9250: unexpected whoami=0x%02X", who)
	}

	d := &Device{dev: dev, model: model}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) Model() string { return d.model }

func (d *Device) init() error {
	_ = d.dev.WriteReg(regIntEnable, 0x00)

	if err := d.dev.WriteReg(regPwrMgmt1, bitReset); err != nil {
		return fmt.Errorf("mpu9250: reset failed: %w", err)
	}
	sleep(100 * time.Millisecond)

	if err := d.dev.WriteReg(regPwrMgmt1, clockPLL); err != nil {
		return fmt.Errorf("mpu9250: wake failed: %w", err)
	}
	if err := d.dev.WriteReg(regPwrMgmt2, 0x00); err != nil {
		return fmt.Errorf("mpu9250: enable axes failed: %w", err)
	}
	sleep(10 * time.Millisecond)

	_ = d.dev.WriteReg(regConfig, dlpf41Hz)
	_ = d.dev.WriteReg(regSmplrtDiv, byte(1000/sampleRate-1))
	if err := d.dev.WriteReg(regGyroConfig, fsGyro500); err != nil {
		return fmt.Errorf("mpu9250: gyro config failed: %w", err)
	}
	if err := d.dev.WriteReg(regAccelConfig, fsAccel4g); err != nil {
		return fmt.Errorf("mpu9250: accel config failed: %w", err)
	}
	_ = d.dev.WriteReg(regAccelConfig2, dlpf41Hz)

	d.scaleAccel = accelFullScaleG / 32768.0
	d.scaleGyro = gyroFullScaleDPS / 32768.0 * math.Pi / 180.0
	return nil
}

// Calibrate averages n stationary gyro samples and stores the result as the
// offset subtracted from every later Read. The device must be at rest.
func (d *Device) Calibrate(n int) error {
	if d == nil {
		return fmt.Errorf("mpu9250: device is nil")
	}
	if n <= 0 {
		return nil
	}
	var sum [3]float64
	for i := 0; i < n; i++ {
		_, g, err := d.readRaw()
		if err != nil {
			return fmt.Errorf("mpu9250: calibration sample %d: %w", i, err)
		}
		sum[0] += g[0]
		sum[1] += g[1]
		sum[2] += g[2]
		sleep(time.Second / sampleRate)
	}
	d.gyroOffset = [3]float64{sum[0] / float64(n), sum[1] / float64(n), sum[2] / float64(n)}
	return nil
}

func (d *Device) GyroOffset() [3]float64 { return d.gyroOffset }

func (d *Device) Read() (Sample, error) {
	if d == nil {
		return Sample{}, fmt.Errorf("mpu9250: device is nil")
	}
	a, g, err := d.readRaw()
	if err != nil {
		return Sample{}, err
	}
	return Sample{
		Time: time.Now(),
		Ax:   a[0],
		Ay:   a[1],
		Az:   a[2],
		Gx:   g[0] - d.gyroOffset[0],
		Gy:   g[1] - d.gyroOffset[1],
		Gz:   g[2] - d.gyroOffset[2],
	}, nil
}

// ReadAccelGyro returns accel (g) and offset-corrected gyro (rad/s).
func (d *Device) ReadAccelGyro() (accel, gyro [3]float64, err error) {
	s, err := d.Read()
	if err != nil {
		return accel, gyro, err
	}
	return [3]float64{s.Ax, s.Ay, s.Az}, [3]float64{s.Gx, s.Gy, s.Gz}, nil
}

func (d *Device) readRaw() (accel, gyro [3]float64, err error) {
	buf := make([]byte, 14)
	if err := d.dev.ReadReg(regAccelXoutH, buf); err != nil {
		return accel, gyro, fmt.Errorf("mpu9250: read sensors failed: %w", err)
	}
	for i := 0; i < 3; i++ {
		accel[i] = float64(be16(buf[2*i:])) * d.scaleAccel
		gyro[i] = float64(be16(buf[8+2*i:])) * d.scaleGyro
	}
	return accel, gyro, nil
}

func be16(b []byte) int16 {
	return int16(b[0])<<8 | int16(b[1])
}
