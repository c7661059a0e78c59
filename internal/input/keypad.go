package input

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// MaxKeys is the width of the key bitmap.
const MaxKeys = 16

// ScanState is the key-matrix scanner's position within a scan.
type ScanState int32

const (
	ScanIdle ScanState = iota
	ScanDrivingRow
	ScanSettling
	ScanSampling
)

func (s ScanState) String() string {
	switch s {
	case ScanIdle:
		return "idle"
	case ScanDrivingRow:
		return "driving-row"
	case ScanSettling:
		return "settling"
	case ScanSampling:
		return "sampling"
	default:
		return fmt.Sprintf("ScanState(%d)", int32(s))
	}
}

// Keypad scans a row/column switch matrix. Rows are outputs held high while
// idle; columns are pull-up inputs. Key (r, c) maps to bit r*len(cols)+c.
type Keypad struct {
	rows   []DigitalOutput
	cols   []DigitalInput
	delay  Delayer
	settle time.Duration

	state  atomic.Int32
	states atomic.Uint32
}

func NewKeypad(rows []DigitalOutput, cols []DigitalInput, delay Delayer, settle time.Duration) (*Keypad, error) {
	n := len(rows) * len(cols)
	if n == 0 {
		return nil, fmt.Errorf("input: keypad needs at least one row and one column")
	}
	if n > MaxKeys {
		return nil, fmt.Errorf("input: keypad %dx%d exceeds %d keys", len(rows), len(cols), MaxKeys)
	}
	if delay == nil {
		return nil, fmt.Errorf("input: keypad delay is nil")
	}
	k := &Keypad{rows: rows, cols: cols, delay: delay, settle: settle}
	for i, r := range rows {
		if err := r.SetValue(1); err != nil {
			return nil, fmt.Errorf("input: keypad row %d: %w", i, err)
		}
	}
	return k, nil
}

func (k *Keypad) State() ScanState { return ScanState(k.state.Load()) }

// States returns the bitmap from the last completed scan.
func (k *Keypad) States() uint16 { return uint16(k.states.Load()) }

// Scan drives each row low in turn, waits for the lines to settle and
// samples every column. The bitmap is replaced only when the whole matrix
// was scanned; on error the previous bitmap is kept.
func (k *Keypad) Scan(ctx context.Context) error {
	defer k.setState(ScanIdle)

	var cur uint16
	for r, row := range k.rows {
		k.setState(ScanDrivingRow)
		if err := row.SetValue(0); err != nil {
			return fmt.Errorf("input: keypad drive row %d: %w", r, err)
		}

		k.setState(ScanSettling)
		if err := k.delay.Delay(ctx, k.settle); err != nil {
			_ = row.SetValue(1)
			return err
		}

		k.setState(ScanSampling)
		for c, col := range k.cols {
			v, err := col.Value()
			if err != nil {
				_ = row.SetValue(1)
				return fmt.Errorf("input: keypad read col %d: %w", c, err)
			}
			if v == 0 {
				cur |= 1 << (r*len(k.cols) + c)
			}
		}

		if err := row.SetValue(1); err != nil {
			return fmt.Errorf("input: keypad release row %d: %w", r, err)
		}
	}
	k.states.Store(uint32(cur))
	return nil
}

func (k *Keypad) setState(s ScanState) { k.state.Store(int32(s)) }
