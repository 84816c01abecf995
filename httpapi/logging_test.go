package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/internal/logx"
	"pkt.systems/tabstrip/schema"
)

func logLines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSpace(buf.String()), "\n")
}

func TestRequestLoggingAttachesIdentityOnce(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := pslog.NewWithOptions(buf, pslog.Options{Mode: pslog.ModeStructured, NoColor: true, MinLevel: pslog.InfoLevel})
	const id = schema.IdentityID("anon-7f1c2d3e")
	handler := withRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logx.WithIdentity(r.Context(), id).Info("service tabs listed")
		w.WriteHeader(http.StatusInternalServerError)
	}), func(*http.Request) (schema.IdentityID, string) { return id, "sess-1" })

	req := httptest.NewRequest(http.MethodGet, "/api/tabs?width=80", nil)
	req = req.WithContext(pslog.ContextWithLogger(req.Context(), logger))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := logLines(buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "service tabs listed") || strings.Count(lines[0], string(id)) != 1 {
		t.Fatalf("expected inner log with identity once, got %s", lines[0])
	}
	if !strings.Contains(lines[0], "sess-1") {
		t.Fatalf("expected inner log to carry the http session, got %s", lines[0])
	}
	if !strings.Contains(lines[1], "http request failed") || !strings.Contains(lines[1], "anonymous") {
		t.Fatalf("expected failed request line with anonymous flag, got %s", lines[1])
	}
	if !strings.Contains(lines[1], "80") || strings.Contains(lines[1], "width=80") {
		t.Fatalf("expected width as its own field, got %s", lines[1])
	}
}

func TestRequestLoggingMarksStreams(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := pslog.NewWithOptions(buf, pslog.Options{Mode: pslog.ModeStructured, NoColor: true, MinLevel: pslog.InfoLevel})
	handler := withRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": ping\n\n"))
	}), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	req = req.WithContext(pslog.ContextWithLogger(req.Context(), logger))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	lines := logLines(buf)
	if len(lines) != 1 || !strings.Contains(lines[0], "http stream closed") {
		t.Fatalf("expected stream close line, got %s", buf.String())
	}
}
