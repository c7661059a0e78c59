package controller

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// failureLogEvery rate-limits warnings for a source that keeps failing on a
// millisecond loop.
const failureLogEvery = 1000

type SourceHealth struct {
	OK                  bool   `json:"ok"`
	ConsecutiveFailures uint64 `json:"consecutive_failures"`
	TotalFailures       uint64 `json:"total_failures"`
	LastError           string `json:"last_error,omitempty"`
}

type health struct {
	mu      sync.Mutex
	sources map[string]*SourceHealth
}

func newHealth() *health {
	return &health{sources: make(map[string]*SourceHealth)}
}

func (h *health) get(source string) *SourceHealth {
	s, ok := h.sources[source]
	if !ok {
		s = &SourceHealth{OK: true}
		h.sources[source] = s
	}
	return s
}

func (h *health) fail(source string, err error) {
	h.mu.Lock()
	s := h.get(source)
	s.OK = false
	s.ConsecutiveFailures++
	s.TotalFailures++
	s.LastError = err.Error()
	n := s.ConsecutiveFailures
	h.mu.Unlock()

	if n == 1 || n%failureLogEvery == 0 {
		log.WithFields(log.Fields{"source": source, "failures": n}).WithError(err).Warn("read failed")
	}
}

func (h *health) ok(source string) {
	h.mu.Lock()
	s := h.get(source)
	recovered := !s.OK
	n := s.ConsecutiveFailures
	s.OK = true
	s.ConsecutiveFailures = 0
	h.mu.Unlock()

	if recovered {
		log.WithFields(log.Fields{"source": source, "failures": n}).Info("recovered")
	}
}

func (h *health) snapshot() map[string]SourceHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]SourceHealth, len(h.sources))
	for k, v := range h.sources {
		out[k] = *v
	}
	return out
}
