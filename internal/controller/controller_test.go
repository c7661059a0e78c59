package controller

import (
	"context"
	"testing"
	"time"

	"gyrowheel/internal/report"
)

func TestNew_RequiresRollAndTransport(t *testing.T) {
	if _, err := New(DefaultConfig(), Deps{Transport: &fakeTransport{}}); err == nil {
		t.Fatalf("expected error without roll source")
	}
	if _, err := New(DefaultConfig(), Deps{Roll: &fakeRoll{}}); err == nil {
		t.Fatalf("expected error without transport")
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	s, err := New(Config{}, Deps{Roll: &fakeRoll{}, Transport: &fakeTransport{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.cfg != DefaultConfig() {
		t.Fatalf("cfg=%+v want defaults", s.cfg)
	}
}

func TestNew_SteeringRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Steering.OutMin, cfg.Steering.OutMax = 0, 0
	s, err := New(cfg, Deps{Roll: &fakeRoll{}, Transport: &fakeTransport{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.cfg.Steering.OutMax != 32767 || s.cfg.Steering.OutMin != 0 {
		t.Fatalf("steering=%+v want default range", s.cfg.Steering)
	}

	cfg.Steering.OutMin, cfg.Steering.OutMax = 100, 10
	if _, err := New(cfg, Deps{Roll: &fakeRoll{}, Transport: &fakeTransport{}}); err == nil {
		t.Fatalf("expected error for inverted steering range")
	}
}

func TestService_RunsLoopsUntilClose(t *testing.T) {
	tr := &fakeTransport{connected: true}
	cfg := Config{
		InputPeriod:     time.Millisecond,
		SamplePeriod:    time.Millisecond,
		TransmitPeriod:  time.Millisecond,
		BlinkHalfPeriod: time.Millisecond,
		Steering:        DefaultSteeringConfig(),
	}
	s, err := New(cfg, Deps{
		Roll:      &fakeRoll{roll: -450, ok: true},
		Inputs:    Inputs{Pedals: &fakePedals{acc: 100, brake: 200}, GearForward: &fakeButton{pressed: true}},
		Transport: tr,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("second Start should fail")
	}

	want := report.State{Buttons: 1 << report.BitGearForward, Accelerator: 100, Brake: 200}
	deadline := time.Now().Add(2 * time.Second)
	for {
		last, n := tr.snapshot()
		if n > 0 && len(last) == report.Size {
			if got, _ := report.Decode(last); got == want {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("report never reached transport: last=% X", last)
		}
		time.Sleep(2 * time.Millisecond)
	}

	snap := s.Snapshot()
	if !snap.Running || !snap.PeerConnected || snap.RollSamples == 0 || snap.RollDeg != -450 {
		t.Fatalf("snapshot=%+v", snap)
	}

	s.Close()
	if s.Snapshot().Running {
		t.Fatalf("still running after Close")
	}
	_, n := tr.snapshot()
	time.Sleep(10 * time.Millisecond)
	if _, n2 := tr.snapshot(); n2 != n {
		t.Fatalf("notifies continued after Close: %d -> %d", n, n2)
	}
}

func TestSleepTimer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	if err := (SleepTimer{}).Delay(ctx, 5*time.Millisecond); err != nil {
		t.Fatalf("Delay: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("returned early")
	}
	cancel()
	if err := (SleepTimer{}).Delay(ctx, time.Hour); err != context.Canceled {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}
