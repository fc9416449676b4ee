package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/workpermit/pkg/logger"
)

// maxLoggedBody caps how much of a request or response body is captured.
const maxLoggedBody = 4 << 10

// sensitiveFields are matched as substrings of lower-cased header and JSON
// field names. Identity numbers are personal data and are masked as well.
var sensitiveFields = []string{
	"token",
	"authorization",
	"secret",
	"api_key",
	"session",
	"credential",
	"password",
	"signature",
	"national_id",
	"employee_no",
	"identifier",
}

func LoggingMiddleware(fallback *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			log := logger.FromOr(r.Context(), fallback)

			logRequest(log, r)

			ww := &responseWriter{ResponseWriter: w}
			next.ServeHTTP(ww, r)

			logResponse(r, log, ww, time.Since(start))
		})
	}
}

// responseWriter records the status and the first maxLoggedBody bytes.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
	body       bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if room := maxLoggedBody - rw.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		rw.body.Write(b[:room])
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func logRequest(log *slog.Logger, r *http.Request) {
	var body string
	if r.Body != nil && isJSON(r.Header.Get("Content-Type")) {
		raw, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
		rest := r.Body
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(raw), rest), rest}
		if len(raw) > maxLoggedBody {
			body = "[TRUNCATED]"
		} else {
			body = filterSensitiveBody(raw)
		}
	}

	log.Debug("incoming request",
		"method", r.Method,
		"path", r.URL.Path,
		"query", r.URL.RawQuery,
		"remote_addr", r.RemoteAddr,
		"user_agent", r.UserAgent(),
		"headers", filterSensitiveHeaders(r.Header),
		"body", body,
	)
}

func logResponse(r *http.Request, log *slog.Logger, rw *responseWriter, duration time.Duration) {
	statusCode := rw.statusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	level := slog.LevelInfo
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
		"response_size", rw.size,
	}
	switch {
	case statusCode >= 500:
		level = slog.LevelError
		attrs = append(attrs, "body", filterSensitiveBody(rw.body.Bytes()))
	case statusCode >= 400:
		level = slog.LevelWarn
		attrs = append(attrs, "body", filterSensitiveBody(rw.body.Bytes()))
	}

	log.Log(r.Context(), level, "response", attrs...)
}

func isJSON(contentType string) bool {
	return contentType == "" || strings.HasPrefix(contentType, "application/json")
}

func isSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	filtered := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			filtered[name] = "[FILTERED]"
			continue
		}
		filtered[name] = strings.Join(values, ", ")
	}
	return filtered
}

func filterSensitiveBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return "[NON-JSON BODY]"
	}

	filtered, err := json.Marshal(filterSensitiveJSON(data))
	if err != nil {
		return "[UNPRINTABLE BODY]"
	}
	return string(filtered)
}

func filterSensitiveJSON(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		filtered := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isSensitive(key) {
				filtered[key] = "[FILTERED]"
				continue
			}
			filtered[key] = filterSensitiveJSON(value)
		}
		return filtered
	case []interface{}:
		filtered := make([]interface{}, len(v))
		for i, item := range v {
			filtered[i] = filterSensitiveJSON(item)
		}
		return filtered
	default:
		return v
	}
}
