package controller

import (
	"context"
	"sync"
	"time"
)

type fakeTimer struct {
	mu          sync.Mutex
	calls       []time.Duration
	cancelAfter int
	cancel      context.CancelFunc
}

func (f *fakeTimer) Delay(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.calls = append(f.calls, d)
	n := len(f.calls)
	f.mu.Unlock()
	if f.cancel != nil && n >= f.cancelAfter {
		f.cancel()
	}
	return ctx.Err()
}

func (f *fakeTimer) delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.calls...)
}

type fakeKeypad struct {
	states uint16
	err    error
}

func (k *fakeKeypad) Scan(ctx context.Context) error { return k.err }
func (k *fakeKeypad) States() uint16                 { return k.states }

type fakeJoystick struct {
	x, y    int16
	pressed bool
	err     error
}

func (j *fakeJoystick) Read() (int16, int16, bool, error) { return j.x, j.y, j.pressed, j.err }

type fakePedals struct {
	acc, brake int16
	err        error
}

func (p *fakePedals) Read() (int16, int16, error) { return p.acc, p.brake, p.err }

type fakeButton struct {
	pressed bool
	err     error
}

func (b *fakeButton) Pressed() (bool, error) { return b.pressed, b.err }

type fakeRoll struct {
	roll float64
	ok   bool
	err  error
}

func (r *fakeRoll) SampleRoll() (float64, bool, error) { return r.roll, r.ok, r.err }

type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	last      []byte
	notifies  int
	notifyErr error
	events    *[]string
}

func (f *fakeTransport) SetReport(b []byte) {
	f.mu.Lock()
	f.last = append([]byte(nil), b...)
	f.mu.Unlock()
}

func (f *fakeTransport) Notify() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifies++
	if f.events != nil {
		*f.events = append(*f.events, "notify")
	}
	return f.notifyErr
}

func (f *fakeTransport) PeerConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) snapshot() ([]byte, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.last...), f.notifies
}

type fakeLED struct {
	events *[]string
	err    error
}

func (l *fakeLED) On() error {
	*l.events = append(*l.events, "on")
	return l.err
}

func (l *fakeLED) Off() error {
	*l.events = append(*l.events, "off")
	return l.err
}
