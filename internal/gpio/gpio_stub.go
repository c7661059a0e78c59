//go:build !linux

package gpio

import "fmt"

var errUnsupported = fmt.Errorf("gpio: unsupported on this platform")

type Chip struct{}

func Open(path string) (*Chip, error) { return nil, errUnsupported }

func (c *Chip) Input(name string, bias Bias) (*Line, error) { return nil, errUnsupported }

func (c *Chip) Output(name string, initial int) (*Line, error) { return nil, errUnsupported }

func (c *Chip) Close() error { return nil }

type Line struct{ name string }

func (l *Line) Name() string { return l.name }

func (l *Line) Value() (int, error) { return 0, errUnsupported }

func (l *Line) SetValue(v int) error { return errUnsupported }
