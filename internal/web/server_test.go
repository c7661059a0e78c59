package web

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gyrowheel/internal/ahrs"
	"gyrowheel/internal/controller"
	"gyrowheel/internal/report"
	"gyrowheel/internal/transport"
)

type fakeController struct{ snap controller.Snapshot }

func (f fakeController) Snapshot() controller.Snapshot { return f.snap }

type fakeAttitude struct{ snap ahrs.Snapshot }

func (f fakeAttitude) Snapshot() ahrs.Snapshot { return f.snap }

type fakeStats struct{ st transport.Stats }

func (f fakeStats) Stats() transport.Stats { return f.st }

func testStatus() *Status {
	st := NewStatus()
	st.TransportKind = "udp"
	st.Controller = fakeController{snap: controller.Snapshot{
		Running: true,
		Report:  report.State{Buttons: 1 << report.BitGearForward, Steering: 16383},
	}}
	st.Attitude = fakeAttitude{snap: ahrs.Snapshot{Available: true, RollDeg: -12.5, Samples: 3}}
	st.Transport = fakeStats{st: transport.Stats{Kind: "udp", Connected: true, Notifies: 9}}
	return st
}

func TestAPIStatus(t *testing.T) {
	ts := httptest.NewServer(Handler(Options{Status: testStatus()}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}

	var snap StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if snap.Service != "gyrowheel" || snap.TransportKind != "udp" {
		t.Fatalf("service=%q transport_kind=%q", snap.Service, snap.TransportKind)
	}
	if snap.Controller == nil || !snap.Controller.Running || snap.Controller.Report.Steering != 16383 {
		t.Fatalf("controller=%+v", snap.Controller)
	}
	if snap.Attitude.RollDeg == nil || *snap.Attitude.RollDeg != -12.5 {
		t.Fatalf("attitude=%+v", snap.Attitude)
	}
	if snap.Transport == nil || snap.Transport.Notifies != 9 {
		t.Fatalf("transport=%+v", snap.Transport)
	}
}

func TestAPIStatus_NoSamplesMeansNullRoll(t *testing.T) {
	st := NewStatus()
	st.Attitude = fakeAttitude{snap: ahrs.Snapshot{Available: false}}
	snap := st.Snapshot(time.Time{})
	if snap.Attitude.RollDeg != nil {
		t.Fatalf("roll_deg=%v want nil", *snap.Attitude.RollDeg)
	}
	if snap.Controller != nil || snap.Transport != nil {
		t.Fatalf("unexpected sources in %+v", snap)
	}
}

func TestAPIStatus_RejectsPost(t *testing.T) {
	ts := httptest.NewServer(Handler(Options{}))
	defer ts.Close()
	resp, err := http.Post(ts.URL+"/api/status", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status code=%d", resp.StatusCode)
	}
}

func TestAPIDescriptor(t *testing.T) {
	ts := httptest.NewServer(Handler(Options{}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/descriptor")
	if err != nil {
		t.Fatalf("get descriptor: %v", err)
	}
	defer resp.Body.Close()
	var out DescriptorResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.ReportID != report.ID || out.ReportSize != report.Size {
		t.Fatalf("id=%d size=%d", out.ReportID, out.ReportSize)
	}
	if out.DescriptorHex != hex.EncodeToString(report.Descriptor) {
		t.Fatalf("descriptor_hex=%s", out.DescriptorHex)
	}
	if len(out.Layout) != len(report.Layout) {
		t.Fatalf("layout=%v", out.Layout)
	}
}

func TestRootPage(t *testing.T) {
	ts := httptest.NewServer(Handler(Options{Status: testStatus()}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code=%d", resp.StatusCode)
	}

	resp2, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("get unknown: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown path status=%d want 404", resp2.StatusCode)
	}
}

func TestReportsMountedAtPath(t *testing.T) {
	reports := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	ts := httptest.NewServer(Handler(Options{ReportPath: "/ws", Reports: reports}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/ws")
	if err != nil {
		t.Fatalf("get ws: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Fatalf("status=%d want %d", resp.StatusCode, http.StatusTeapot)
	}
}

func TestStreamDeliversPublishedSnapshot(t *testing.T) {
	b := NewBroadcaster()
	ts := httptest.NewServer(Handler(Options{Stream: b}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stream")
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stream never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	b.Publish(StatusSnapshot{Service: "gyrowheel", UptimeSec: 42})

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	if !strings.HasPrefix(line, "data: ") {
		t.Fatalf("line=%q", line)
	}
	var snap StatusSnapshot
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if snap.UptimeSec != 42 {
		t.Fatalf("uptime_sec=%d want 42", snap.UptimeSec)
	}
}
