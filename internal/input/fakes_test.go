package input

import (
	"context"
	"errors"
	"time"
)

type fakePin struct {
	value  int
	err    error
	writes []int
}

func (p *fakePin) Value() (int, error) { return p.value, p.err }

func (p *fakePin) SetValue(v int) error {
	if p.err != nil {
		return p.err
	}
	p.value = v
	p.writes = append(p.writes, v)
	return nil
}

type fakeAnalog struct {
	seq []int
	err error
	n   int
}

func (a *fakeAnalog) Read() (int, error) {
	if a.err != nil {
		return 0, a.err
	}
	if len(a.seq) == 0 {
		return 0, errors.New("no samples")
	}
	v := a.seq[a.n%len(a.seq)]
	a.n++
	return v, nil
}

type recordingDelay struct {
	calls  []time.Duration
	during func()
	err    error
}

func (d *recordingDelay) Delay(ctx context.Context, dur time.Duration) error {
	d.calls = append(d.calls, dur)
	if d.during != nil {
		d.during()
	}
	return d.err
}
