// Package transport carries encoded reports to the host.
package transport

import (
	"errors"
	"sync"

	"gyrowheel/internal/report"
)

var ErrClosed = errors.New("transport: closed")

// Transport publishes the most recent report to connected peers.
type Transport interface {
	// SetReport stores an encoded report for the next Notify. The slice is
	// copied.
	SetReport(b []byte)
	// Notify pushes the stored report to peers.
	Notify() error
	PeerConnected() bool
	Close() error
}

type Stats struct {
	Kind      string `json:"kind"`
	Connected bool   `json:"connected"`
	Peers     int    `json:"peers"`
	Notifies  uint64 `json:"notifies"`
	Errors    uint64 `json:"errors"`
	LastError string `json:"last_error,omitempty"`
}

// StatsProvider is implemented by every transport in this package.
type StatsProvider interface {
	Stats() Stats
}

// pending holds the latest report and notify counters shared by the
// implementations.
type pending struct {
	mu       sync.Mutex
	report   []byte
	notifies uint64
	errors   uint64
	lastErr  string
}

func (p *pending) set(b []byte) {
	p.mu.Lock()
	p.report = append(p.report[:0], b...)
	p.mu.Unlock()
}

// message returns the stored report prefixed with the report ID, or nil when
// nothing was stored yet.
func (p *pending) message() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.report) == 0 {
		return nil
	}
	out := make([]byte, 0, 1+len(p.report))
	out = append(out, report.ID)
	return append(out, p.report...)
}

func (p *pending) record(err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.errors++
		p.lastErr = err.Error()
		return err
	}
	p.notifies++
	return nil
}

func (p *pending) stats(kind string) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Kind: kind, Notifies: p.notifies, Errors: p.errors, LastError: p.lastErr}
}
