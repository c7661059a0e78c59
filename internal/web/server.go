package web

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"gyrowheel/internal/report"
)

type Options struct {
	Status *Status
	Logs   *LogBuffer
	Stream *Broadcaster

	// Reports, when set, is mounted at ReportPath. It carries the live report
	// to websocket peers.
	ReportPath string
	Reports    http.Handler
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

type DescriptorResponse struct {
	ReportID      int            `json:"report_id"`
	ReportSize    int            `json:"report_size"`
	DescriptorHex string         `json:"descriptor_hex"`
	Layout        []report.Field `json:"layout"`
}

func descriptorHandler(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, DescriptorResponse{
		ReportID:      report.ID,
		ReportSize:    report.Size,
		DescriptorHex: hex.EncodeToString(report.Descriptor),
		Layout:        report.Layout,
	})
}

func Handler(opts Options) http.Handler {
	status := opts.Status
	if status == nil {
		status = NewStatus()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})
	mux.HandleFunc("/api/descriptor", descriptorHandler)

	if opts.Logs != nil {
		mux.Handle("/api/logs", opts.Logs.Handler())
	}
	if opts.Stream != nil {
		mux.Handle("/api/stream", opts.Stream.Handler())
	}
	if opts.Reports != nil && opts.ReportPath != "" {
		mux.Handle(opts.ReportPath, opts.Reports)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>gyrowheel</title></head><body>")
		_, _ = fmt.Fprint(w, "<h1>gyrowheel</h1>")
		_, _ = fmt.Fprint(w, "<p><a href=\"/api/status\">status</a> | <a href=\"/api/logs?format=text\">logs</a> | <a href=\"/api/descriptor\">descriptor</a></p>")
		_, _ = fmt.Fprintf(w, "<pre id=\"live\">transport=%s\nuptime_sec=%d</pre>",
			html.EscapeString(snap.TransportKind), snap.UptimeSec)
		if opts.Stream != nil {
			_, _ = fmt.Fprint(w, "<script>new EventSource('/api/stream').onmessage=function(e){"+
				"document.getElementById('live').textContent=JSON.stringify(JSON.parse(e.data),null,2)};</script>")
		}
		_, _ = fmt.Fprint(w, "</body></html>")
	})

	return mux
}

// Serve runs the status server until ctx is done.
func Serve(ctx context.Context, listenAddr string, opts Options) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	if opts.Stream != nil && opts.Status != nil {
		go opts.Stream.Run(ctx, opts.Status, 100*time.Millisecond)
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("listen", listenAddr).Info("web: serving")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
