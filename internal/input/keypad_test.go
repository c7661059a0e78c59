package input

import (
	"context"
	"errors"
	"testing"
	"time"
)

// matrix wires fake row outputs to fake column inputs: a column reads low
// when a pressed key connects it to a row that is driven low.
type matrix struct {
	rows    []*fakePin
	pressed map[[2]int]bool
	colErr  map[int]error
}

type matrixCol struct {
	m   *matrix
	col int
}

func (c matrixCol) Value() (int, error) {
	if err := c.m.colErr[c.col]; err != nil {
		return 0, err
	}
	for r, row := range c.m.rows {
		if row.value == 0 && c.m.pressed[[2]int{r, c.col}] {
			return 0, nil
		}
	}
	return 1, nil
}

func newMatrix(nRows, nCols int) (*matrix, []DigitalOutput, []DigitalInput) {
	m := &matrix{pressed: map[[2]int]bool{}, colErr: map[int]error{}}
	var rows []DigitalOutput
	for i := 0; i < nRows; i++ {
		p := &fakePin{}
		m.rows = append(m.rows, p)
		rows = append(rows, p)
	}
	var cols []DigitalInput
	for i := 0; i < nCols; i++ {
		cols = append(cols, matrixCol{m: m, col: i})
	}
	return m, rows, cols
}

func TestNewKeypad_RejectsOversizedMatrix(t *testing.T) {
	_, rows, cols := newMatrix(5, 4)
	if _, err := NewKeypad(rows, cols, &recordingDelay{}, time.Millisecond); err == nil {
		t.Fatalf("expected error for 20 keys")
	}
	if _, err := NewKeypad(nil, cols, &recordingDelay{}, time.Millisecond); err == nil {
		t.Fatalf("expected error for no rows")
	}
}

func TestNewKeypad_DrivesRowsHigh(t *testing.T) {
	m, rows, cols := newMatrix(4, 4)
	if _, err := NewKeypad(rows, cols, &recordingDelay{}, 5*time.Millisecond); err != nil {
		t.Fatalf("NewKeypad: %v", err)
	}
	for i, r := range m.rows {
		if r.value != 1 {
			t.Fatalf("row %d=%d want high", i, r.value)
		}
	}
}

func TestKeypadScan_AllOpenIsZero(t *testing.T) {
	_, rows, cols := newMatrix(4, 4)
	d := &recordingDelay{}
	k, err := NewKeypad(rows, cols, d, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("NewKeypad: %v", err)
	}
	if err := k.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if k.States() != 0 {
		t.Fatalf("states=%016b want 0", k.States())
	}
	if len(d.calls) != 4 {
		t.Fatalf("delays=%d want one per row", len(d.calls))
	}
	for _, c := range d.calls {
		if c != 5*time.Millisecond {
			t.Fatalf("settle=%v want 5ms", c)
		}
	}
}

func TestKeypadScan_PressedKeySetsRowMajorBit(t *testing.T) {
	m, rows, cols := newMatrix(4, 4)
	k, err := NewKeypad(rows, cols, &recordingDelay{}, 0)
	if err != nil {
		t.Fatalf("NewKeypad: %v", err)
	}
	m.pressed[[2]int{1, 2}] = true
	m.pressed[[2]int{3, 0}] = true

	if err := k.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := uint16(1<<(1*4+2) | 1<<(3*4+0))
	if k.States() != want {
		t.Fatalf("states=%016b want %016b", k.States(), want)
	}
	for i, r := range m.rows {
		if r.value != 1 {
			t.Fatalf("row %d left at %d after scan", i, r.value)
		}
	}
	if k.State() != ScanIdle {
		t.Fatalf("state=%v want idle", k.State())
	}
}

func TestKeypadScan_NonSquareMatrix(t *testing.T) {
	m, rows, cols := newMatrix(2, 3)
	k, err := NewKeypad(rows, cols, &recordingDelay{}, 0)
	if err != nil {
		t.Fatalf("NewKeypad: %v", err)
	}
	m.pressed[[2]int{1, 1}] = true
	if err := k.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if k.States() != 1<<4 {
		t.Fatalf("states=%016b want bit 4", k.States())
	}
}

func TestKeypadScan_SettlesWithOnlyCurrentRowLow(t *testing.T) {
	m, rows, cols := newMatrix(3, 2)
	d := &recordingDelay{}
	k, err := NewKeypad(rows, cols, d, time.Millisecond)
	if err != nil {
		t.Fatalf("NewKeypad: %v", err)
	}
	var lowDuringSettle []int
	d.during = func() {
		if k.State() != ScanSettling {
			t.Errorf("state during delay=%v want settling", k.State())
		}
		for i, r := range m.rows {
			if r.value == 0 {
				lowDuringSettle = append(lowDuringSettle, i)
			}
		}
	}
	if err := k.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(lowDuringSettle) != 3 || lowDuringSettle[0] != 0 || lowDuringSettle[1] != 1 || lowDuringSettle[2] != 2 {
		t.Fatalf("rows low during settle=%v want [0 1 2]", lowDuringSettle)
	}
}

func TestKeypadScan_ErrorKeepsPreviousSnapshot(t *testing.T) {
	m, rows, cols := newMatrix(2, 2)
	k, err := NewKeypad(rows, cols, &recordingDelay{}, 0)
	if err != nil {
		t.Fatalf("NewKeypad: %v", err)
	}
	m.pressed[[2]int{0, 0}] = true
	if err := k.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	boom := errors.New("line gone")
	m.pressed = map[[2]int]bool{}
	m.colErr[1] = boom
	if err := k.Scan(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
	if k.States() != 1 {
		t.Fatalf("states=%016b want previous snapshot", k.States())
	}
	for i, r := range m.rows {
		if r.value != 1 {
			t.Fatalf("row %d left low after failed scan", i)
		}
	}
}

func TestKeypadScan_CancelledDelay(t *testing.T) {
	_, rows, cols := newMatrix(2, 2)
	d := &recordingDelay{err: context.Canceled}
	k, err := NewKeypad(rows, cols, d, time.Millisecond)
	if err != nil {
		t.Fatalf("NewKeypad: %v", err)
	}
	if err := k.Scan(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}
