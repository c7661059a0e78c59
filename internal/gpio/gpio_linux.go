//go:build linux

package gpio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "gyrowheel"

// Chip resolves line names on a GPIO character device and hands out requested
// lines. Closing the chip releases every line requested through it.
type Chip struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line
}

// Open opens the chip at path. An empty path probes the usual chips and
// every /dev/gpiochip* and returns the first that opens.
func Open(path string) (*Chip, error) {
	candidates := []string{path}
	if path == "" {
		candidates = append([]string(nil), defaultChips...)
		entries, _ := os.ReadDir("/dev")
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "gpiochip") {
				candidates = append(candidates, filepath.Join("/dev", e.Name()))
			}
		}
	}
	var lastErr error
	for _, p := range candidates {
		c, err := gpiocdev.NewChip(p)
		if err != nil {
			lastErr = err
			continue
		}
		return &Chip{chip: c}, nil
	}
	return nil, fmt.Errorf("gpio: no usable chip: %w", lastErr)
}

// Input requests name as an input with the given bias.
func (c *Chip) Input(name string, bias Bias) (*Line, error) {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithConsumer(consumer)}
	switch bias {
	case BiasPullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case BiasPullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	}
	return c.request(name, opts...)
}

// Output requests name as an output driven to initial.
func (c *Chip) Output(name string, initial int) (*Line, error) {
	return c.request(name, gpiocdev.AsOutput(initial), gpiocdev.WithConsumer(consumer))
}

func (c *Chip) request(name string, opts ...gpiocdev.LineReqOption) (*Line, error) {
	if c == nil {
		return nil, fmt.Errorf("gpio: chip is nil")
	}
	lineName, err := LineName(name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chip == nil {
		return nil, fmt.Errorf("gpio: chip is closed")
	}
	offset, err := c.chip.FindLine(lineName)
	if err != nil {
		return nil, fmt.Errorf("gpio: line %q not found: %w", lineName, err)
	}
	l, err := c.chip.RequestLine(offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("gpio: request %q: %w", lineName, err)
	}
	c.lines = append(c.lines, l)
	return &Line{name: lineName, line: l}, nil
}

func (c *Chip) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		_ = l.Close()
	}
	c.lines = nil
	if c.chip == nil {
		return nil
	}
	err := c.chip.Close()
	c.chip = nil
	return err
}

// Line is one requested GPIO line.
type Line struct {
	name string
	line *gpiocdev.Line
}

func (l *Line) Name() string { return l.name }

func (l *Line) Value() (int, error) {
	if l == nil || l.line == nil {
		return 0, fmt.Errorf("gpio: line not initialized")
	}
	v, err := l.line.Value()
	if err != nil {
		return 0, fmt.Errorf("gpio: read %s: %w", l.name, err)
	}
	return v, nil
}

func (l *Line) SetValue(v int) error {
	if l == nil || l.line == nil {
		return fmt.Errorf("gpio: line not initialized")
	}
	if err := l.line.SetValue(v); err != nil {
		return fmt.Errorf("gpio: write %s: %w", l.name, err)
	}
	return nil
}
