// Package report holds the controller state shared between the input loops
// and the transmitter, and its wire encoding.
package report

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Size is the encoded length of a report in bytes.
const Size = 14

// Bit positions in Buttons above the key matrix.
const (
	BitJoystickButton = 16
	BitGearForward    = 17
	BitGearReverse    = 18
)

// State is a point-in-time copy of a Report.
type State struct {
	Buttons     uint32 `json:"buttons"`
	Steering    int16  `json:"steering"`
	Accelerator int16  `json:"accelerator"`
	Brake       int16  `json:"brake"`
	X           int16  `json:"x"`
	Y           int16  `json:"y"`
}

// Report is the latest value from each producer. Every field group has its
// own lock so producers never contend with each other, and a reader never
// observes a half-written group.
type Report struct {
	buttonsMu sync.Mutex
	buttons   uint32

	steeringMu sync.Mutex
	steering   int16

	pedalsMu    sync.Mutex
	accelerator int16
	brake       int16

	axesMu sync.Mutex
	x, y   int16
}

func New() *Report { return &Report{} }

func (r *Report) SetButtons(mask uint32) {
	r.buttonsMu.Lock()
	r.buttons = mask
	r.buttonsMu.Unlock()
}

func (r *Report) SetSteering(v int16) {
	r.steeringMu.Lock()
	r.steering = v
	r.steeringMu.Unlock()
}

func (r *Report) SetPedals(accelerator, brake int16) {
	r.pedalsMu.Lock()
	r.accelerator = accelerator
	r.brake = brake
	r.pedalsMu.Unlock()
}

func (r *Report) SetAxes(x, y int16) {
	r.axesMu.Lock()
	r.x = x
	r.y = y
	r.axesMu.Unlock()
}

// Snapshot copies every group, each under its own lock. Groups written
// concurrently may come from different producer cycles.
func (r *Report) Snapshot() State {
	var s State

	r.buttonsMu.Lock()
	s.Buttons = r.buttons
	r.buttonsMu.Unlock()

	r.steeringMu.Lock()
	s.Steering = r.steering
	r.steeringMu.Unlock()

	r.pedalsMu.Lock()
	s.Accelerator = r.accelerator
	s.Brake = r.brake
	r.pedalsMu.Unlock()

	r.axesMu.Lock()
	s.X = r.x
	s.Y = r.y
	r.axesMu.Unlock()

	return s
}

// MarshalBinary encodes the state little-endian: buttons u32, then steering,
// accelerator, brake, x, y as i16.
func (s State) MarshalBinary() ([]byte, error) {
	return s.AppendBinary(make([]byte, 0, Size))
}

func (s State) AppendBinary(b []byte) ([]byte, error) {
	b = binary.LittleEndian.AppendUint32(b, s.Buttons)
	for _, v := range [...]int16{s.Steering, s.Accelerator, s.Brake, s.X, s.Y} {
		b = binary.LittleEndian.AppendUint16(b, uint16(v))
	}
	return b, nil
}

// Encode is MarshalBinary without the error.
func (s State) Encode() []byte {
	b, _ := s.MarshalBinary()
	return b
}

// Decode parses an encoded report.
func Decode(b []byte) (State, error) {
	var s State
	if err := s.UnmarshalBinary(b); err != nil {
		return State{}, err
	}
	return s, nil
}

func (s *State) UnmarshalBinary(b []byte) error {
	if len(b) != Size {
		return fmt.Errorf("report: length %d want %d", len(b), Size)
	}
	s.Buttons = binary.LittleEndian.Uint32(b[0:])
	s.Steering = int16(binary.LittleEndian.Uint16(b[4:]))
	s.Accelerator = int16(binary.LittleEndian.Uint16(b[6:]))
	s.Brake = int16(binary.LittleEndian.Uint16(b[8:]))
	s.X = int16(binary.LittleEndian.Uint16(b[10:]))
	s.Y = int16(binary.LittleEndian.Uint16(b[12:]))
	return nil
}
