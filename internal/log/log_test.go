package log

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "", want: slog.LevelInfo},
		{in: " INFO ", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "trace", want: slog.LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, ComponentWorker)
	l.Info("started", "queue", "q")
	assert.Contains(t, buf.String(), "component=worker")
	assert.Contains(t, buf.String(), "queue=q")

	buf.Reset()
	l.WithComponent(ComponentAMQP).With(FieldRunID, "r1").Warn("requeued")
	assert.Contains(t, buf.String(), "component=amqp")
	assert.Contains(t, buf.String(), "run_id=r1")

	assert.Equal(t, ComponentApp, New(Config{}).Component())
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithOperation(OpReconcile).
		WithObligation("loan", 3).
		WithWindow("2025-01", "2025-12").
		WithPlan(1, 2, 3, 4).
		WithError(errors.New("boom")).
		WithError(nil)

	assert.Equal(t, "boom", f[FieldError])
	assert.Equal(t, int64(3), f[FieldObligationID])
	assert.Equal(t, 4, f[FieldDeleted])
	assert.Len(t, f.ToSlice(), len(f)*2)
}

func TestFromContextFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	l := FromContext(req.Context())
	require.NotNil(t, l)
	assert.Equal(t, "unknown", l.Component())
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)

	var route string
	var status int
	observe := func(r string, s int, _ time.Duration) { route, status = r, s }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := Middleware(logger)(
		RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
			AccessLog(observe)(mux)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/7", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "GET /items/{id}", route)
	assert.Equal(t, http.StatusNotFound, status)

	line := buf.String()
	assert.Contains(t, line, "level=WARN")
	assert.Contains(t, line, "request_id=req_1")
	assert.Contains(t, line, "status_code=404")
	assert.True(t, strings.Contains(line, "path=/items/7"), line)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, "unmatched", route)
}
