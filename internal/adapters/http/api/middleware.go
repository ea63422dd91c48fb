package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/oarbit/pkg/metrics"
)

// MetricsMiddleware counts requests to endpoint and their latency. Failed
// requests are also counted under the error code they answered with.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		ms := float64(time.Since(start).Microseconds()) / 1000
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, r.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, ms)

		if rec.status >= http.StatusBadRequest {
			code := rec.code
			if code == "" {
				code = codeForStatus(rec.status)
			}
			metrics.RecordErrorByComponent("http", code)
		}
	}
}

// codeForStatus is the error code for a failure written without one.
func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusUnprocessableEntity:
		return CodeStructuralViolation
	case http.StatusTooManyRequests:
		return CodeBackpressure
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return "client_error"
}

// statusRecorder remembers the status and, for error responses written by
// writeError, the error code.
type statusRecorder struct {
	http.ResponseWriter
	status int
	code   string
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }
