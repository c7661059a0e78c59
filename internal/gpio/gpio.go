// Package gpio exposes named GPIO character-device lines as the digital
// inputs and outputs used by the controller.
package gpio

import (
	"fmt"
	"strconv"
	"strings"
)

// Default chips probed when none is configured. Pi 5 kernels may expose the
// header on gpiochip4.
var defaultChips = []string{"/dev/gpiochip0", "/dev/gpiochip4"}

// Bias selects the internal resistor on an input line.
type Bias int

const (
	BiasNone Bias = iota
	BiasPullUp
	BiasPullDown
)

// LineName normalizes a configured line: a bare BCM number like "17" becomes
// "GPIO17"; anything else is used verbatim.
func LineName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("gpio: empty line name")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return "", fmt.Errorf("gpio: invalid line %d", n)
		}
		return fmt.Sprintf("GPIO%d", n), nil
	}
	return s, nil
}
