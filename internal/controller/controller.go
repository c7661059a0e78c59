// Package controller runs the three loops of the wheel: input aggregation,
// orientation sampling and report transmission. They share nothing but the
// report.
package controller

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"gyrowheel/internal/report"
	"gyrowheel/internal/transport"
)

type Config struct {
	InputPeriod     time.Duration
	SamplePeriod    time.Duration
	TransmitPeriod  time.Duration
	BlinkHalfPeriod time.Duration
	Steering        SteeringConfig
}

func DefaultConfig() Config {
	return Config{
		InputPeriod:     5 * time.Millisecond,
		SamplePeriod:    10 * time.Millisecond,
		TransmitPeriod:  7 * time.Millisecond,
		BlinkHalfPeriod: 500 * time.Millisecond,
		Steering:        DefaultSteeringConfig(),
	}
}

// Deps are the collaborators the loops drive. Roll and Transport are
// required.
type Deps struct {
	Report    *report.Report
	Roll      RollSource
	Inputs    Inputs
	Transport transport.Transport
	StatusLED Indicator
	Timer     Timer
}

type Snapshot struct {
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at,omitempty"`

	Report        report.State `json:"report"`
	RollDeg       float64      `json:"roll_deg"`
	RollSamples   uint64       `json:"roll_samples"`
	PeerConnected bool         `json:"peer_connected"`

	Sources map[string]SourceHealth `json:"sources"`
}

type Service struct {
	cfg    Config
	report *report.Report
	tr     transport.Transport
	health *health

	agg *aggregator
	smp *sampler
	tx  *transmitter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func New(cfg Config, deps Deps) (*Service, error) {
	def := DefaultConfig()
	if cfg.InputPeriod <= 0 {
		cfg.InputPeriod = def.InputPeriod
	}
	if cfg.SamplePeriod <= 0 {
		cfg.SamplePeriod = def.SamplePeriod
	}
	if cfg.TransmitPeriod <= 0 {
		cfg.TransmitPeriod = def.TransmitPeriod
	}
	if cfg.BlinkHalfPeriod <= 0 {
		cfg.BlinkHalfPeriod = def.BlinkHalfPeriod
	}
	if cfg.Steering.RotationDeg <= 0 {
		cfg.Steering.RotationDeg = def.Steering.RotationDeg
	}
	if cfg.Steering.OutMin == 0 && cfg.Steering.OutMax == 0 {
		cfg.Steering.OutMin, cfg.Steering.OutMax = def.Steering.OutMin, def.Steering.OutMax
	}
	if cfg.Steering.OutMax <= cfg.Steering.OutMin {
		return nil, fmt.Errorf("controller: steering output range [%d,%d] is empty", cfg.Steering.OutMin, cfg.Steering.OutMax)
	}
	if deps.Roll == nil {
		return nil, fmt.Errorf("controller: roll source is nil")
	}
	if deps.Transport == nil {
		return nil, fmt.Errorf("controller: transport is nil")
	}
	if deps.Report == nil {
		deps.Report = report.New()
	}
	if deps.Timer == nil {
		deps.Timer = SleepTimer{}
	}

	h := newHealth()
	s := &Service{cfg: cfg, report: deps.Report, tr: deps.Transport, health: h}
	s.agg = &aggregator{in: deps.Inputs, report: deps.Report, timer: deps.Timer, period: cfg.InputPeriod, health: h}
	s.smp = &sampler{source: deps.Roll, steering: cfg.Steering, report: deps.Report, timer: deps.Timer, period: cfg.SamplePeriod, health: h}
	s.tx = &transmitter{
		report:    deps.Report,
		transport: deps.Transport,
		led:       deps.StatusLED,
		timer:     deps.Timer,
		period:    cfg.TransmitPeriod,
		blinkHalf: cfg.BlinkHalfPeriod,
		health:    h,
	}
	return s, nil
}

func (s *Service) Report() *report.Report { return s.report }

// Start launches the loops. They run until ctx is cancelled or Close is
// called.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("controller: service is nil")
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("controller: already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	loops := []struct {
		name string
		run  func(context.Context) error
	}{
		{"inputs", s.agg.run},
		{"orientation", s.smp.run},
		{"transmitter", s.tx.run},
	}
	for _, l := range loops {
		s.wg.Add(1)
		go func(name string, run func(context.Context) error) {
			defer s.wg.Done()
			err := run(ctx)
			log.WithField("loop", name).WithError(err).Debug("loop stopped")
		}(l.name, l.run)
	}
	log.WithFields(log.Fields{
		"input_period":    s.cfg.InputPeriod,
		"sample_period":   s.cfg.SamplePeriod,
		"transmit_period": s.cfg.TransmitPeriod,
	}).Info("controller: started")
	return nil
}

// Wait blocks until every loop has returned.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	})
	s.wg.Wait()
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	snap := Snapshot{Running: s.running, StartedAt: s.startedAt}
	s.mu.RUnlock()

	snap.Report = s.report.Snapshot()
	snap.RollDeg = math.Float64frombits(s.smp.lastRoll.Load())
	snap.RollSamples = s.smp.samples.Load()
	snap.PeerConnected = s.tr.PeerConnected()
	snap.Sources = s.health.snapshot()
	return snap
}
