// Package adc reads raw conversions from a Linux IIO ADC (ADS1015, MCP3008,
// the RP1 ADC, ...) through sysfs.
package adc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var iioBase = "/sys/bus/iio/devices"

// Device is one IIO device directory.
type Device struct {
	path string
}

// Open resolves dev as either an absolute sysfs directory, a directory name
// under /sys/bus/iio/devices (e.g. "iio:device0"), or the driver name found in
// that device's "name" attribute (e.g. "ads1015").
func Open(dev string) (*Device, error) {
	dev = strings.TrimSpace(dev)
	if dev == "" {
		dev = "iio:device0"
	}
	if filepath.IsAbs(dev) {
		return openDir(dev)
	}
	if d, err := openDir(filepath.Join(iioBase, dev)); err == nil {
		return d, nil
	}
	entries, err := os.ReadDir(iioBase)
	if err != nil {
		return nil, fmt.Errorf("adc: list %s: %w", iioBase, err)
	}
	for _, e := range entries {
		dir := filepath.Join(iioBase, e.Name())
		b, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(b)) == dev {
			return &Device{path: dir}, nil
		}
	}
	return nil, fmt.Errorf("adc: device %q not found under %s", dev, iioBase)
}

func openDir(dir string) (*Device, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("adc: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("adc: %s is not a directory", dir)
	}
	return &Device{path: dir}, nil
}

func (d *Device) Path() string { return d.path }

// Channel returns the n-th voltage channel. Existence is checked on first
// read.
func (d *Device) Channel(n int) *Channel {
	return &Channel{path: filepath.Join(d.path, fmt.Sprintf("in_voltage%d_raw", n))}
}

// Channel reads one in_voltageN_raw attribute.
type Channel struct {
	path string
}

func (c *Channel) Read() (int, error) {
	if c == nil {
		return 0, fmt.Errorf("adc: channel is nil")
	}
	b, err := os.ReadFile(c.path)
	if err != nil {
		return 0, fmt.Errorf("adc: read %s: %w", filepath.Base(c.path), err)
	}
	return parseRaw(string(b))
}

func parseRaw(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("adc: empty raw value")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("adc: parse raw %q: %w", s, err)
	}
	return n, nil
}
