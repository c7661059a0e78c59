package transport

import (
	"fmt"
	"sync"

	"go.bug.st/serial"

	"gyrowheel/internal/frame"
)

type serialPort interface {
	Write(p []byte) (int, error)
	Close() error
	GetModemStatusBits() (*serial.ModemStatusBits, error)
}

var openPort = func(name string, mode *serial.Mode) (serialPort, error) {
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

type SerialConfig struct {
	Device string
	Baud   int
	// IgnoreDSR treats the link as always connected, for adapters that do
	// not wire DSR.
	IgnoreDSR bool
}

// Serial writes framed reports to a UART, typically a bridge MCU that
// presents the USB HID device to the host. The bridge raises DSR while the
// host has the device open.
type Serial struct {
	cfg     SerialConfig
	pending pending

	mu   sync.Mutex
	port serialPort
}

func NewSerial(cfg SerialConfig) (*Serial, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("transport: serial device is empty")
	}
	if cfg.Baud <= 0 {
		cfg.Baud = 115200
	}
	p, err := openPort(cfg.Device, &serial.Mode{BaudRate: cfg.Baud})
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Device, err)
	}
	return &Serial{cfg: cfg, port: p}, nil
}

func (s *Serial) SetReport(b []byte) { s.pending.set(b) }

func (s *Serial) Notify() error {
	msg := s.pending.message()
	if msg == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return s.pending.record(ErrClosed)
	}
	if _, err := s.port.Write(frame.Frame(msg)); err != nil {
		return s.pending.record(fmt.Errorf("transport: serial write: %w", err))
	}
	return s.pending.record(nil)
}

func (s *Serial) PeerConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return false
	}
	if s.cfg.IgnoreDSR {
		return true
	}
	bits, err := s.port.GetModemStatusBits()
	if err != nil || bits == nil {
		return false
	}
	return bits.DSR
}

func (s *Serial) Stats() Stats {
	st := s.pending.stats("serial")
	st.Connected = s.PeerConnected()
	if st.Connected {
		st.Peers = 1
	}
	return st
}

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
