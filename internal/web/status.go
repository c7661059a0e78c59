package web

import (
	"runtime"
	"runtime/debug"
	"time"

	"gyrowheel/internal/ahrs"
	"gyrowheel/internal/controller"
	"gyrowheel/internal/transport"
)

// ControllerSource is satisfied by *controller.Service.
type ControllerSource interface {
	Snapshot() controller.Snapshot
}

// AttitudeSource is satisfied by *ahrs.Estimator.
type AttitudeSource interface {
	Snapshot() ahrs.Snapshot
}

// Status gathers the live views served on /api/status. Any source may be nil.
type Status struct {
	Controller ControllerSource
	Attitude   AttitudeSource
	Transport  transport.StatsProvider

	// TransportKind and Config are static and reported verbatim.
	TransportKind string
	Config        map[string]any

	start time.Time
	build BuildInfo
}

func NewStatus() *Status {
	return &Status{start: time.Now().UTC(), build: readBuildInfo()}
}

type BuildInfo struct {
	GoVersion  string `json:"go_version"`
	ModulePath string `json:"module_path,omitempty"`
	Version    string `json:"version,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Dirty      bool   `json:"dirty,omitempty"`
}

func readBuildInfo() BuildInfo {
	info := BuildInfo{GoVersion: runtime.Version()}
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi == nil {
		return info
	}
	info.ModulePath = bi.Main.Path
	info.Version = bi.Main.Version
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// AttitudeSnapshot is the JSON view of the roll estimator. RollDeg is null
// while no estimate exists.
type AttitudeSnapshot struct {
	Available     bool       `json:"available"`
	RollDeg       *float64   `json:"roll_deg,omitempty"`
	Quaternion    [4]float64 `json:"quaternion"`
	GyroBias      [3]float64 `json:"gyro_bias"`
	Samples       uint64     `json:"samples"`
	LastError     string     `json:"last_error,omitempty"`
	LastUpdateUTC string     `json:"last_update_utc,omitempty"`
}

func attitudeView(s ahrs.Snapshot) AttitudeSnapshot {
	att := AttitudeSnapshot{
		Available:  s.Available,
		Quaternion: s.Quaternion,
		GyroBias:   s.GyroBias,
		Samples:    s.Samples,
		LastError:  s.LastError,
	}
	if s.Samples > 0 {
		v := s.RollDeg
		att.RollDeg = &v
	}
	if !s.UpdatedAt.IsZero() {
		att.LastUpdateUTC = s.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return att
}

type StatusSnapshot struct {
	Service   string    `json:"service"`
	NowUTC    string    `json:"now_utc"`
	UptimeSec int64     `json:"uptime_sec"`
	Build     BuildInfo `json:"build"`

	Controller *controller.Snapshot `json:"controller,omitempty"`
	Attitude   AttitudeSnapshot     `json:"attitude"`

	TransportKind string           `json:"transport_kind,omitempty"`
	Transport     *transport.Stats `json:"transport,omitempty"`

	Config map[string]any `json:"config,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	snap := StatusSnapshot{
		Service:       "gyrowheel",
		NowUTC:        nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:     int64(nowUTC.Sub(s.start).Seconds()),
		Build:         s.build,
		TransportKind: s.TransportKind,
		Config:        s.Config,
	}
	if s.Controller != nil {
		c := s.Controller.Snapshot()
		snap.Controller = &c
	}
	if s.Attitude != nil {
		snap.Attitude = attitudeView(s.Attitude.Snapshot())
	}
	if s.Transport != nil {
		st := s.Transport.Stats()
		snap.Transport = &st
	}
	return snap
}
