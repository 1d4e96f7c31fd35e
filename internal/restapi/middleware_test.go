package restapi

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erdemo.org/responder-simulator/internal/logging"
)

func TestCompressionMiddleware(t *testing.T) {
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(strings.Repeat(`{"status": "MOVING"}`, 1000)))
	})
	expected := strings.Repeat(`{"status": "MOVING"}`, 1000)

	t.Run("compresses response when gzip accepted", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		recorder := httptest.NewRecorder()

		CompressionMiddleware(testHandler).ServeHTTP(recorder, req)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "gzip", recorder.Header().Get("Content-Encoding"))

		reader, err := gzip.NewReader(bytes.NewReader(recorder.Body.Bytes()))
		require.NoError(t, err)
		defer func() { _ = reader.Close() }()

		decompressed, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, expected, string(decompressed))
		assert.Less(t, recorder.Body.Len(), len(expected))
	})

	t.Run("does not compress when gzip not accepted", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		recorder := httptest.NewRecorder()

		CompressionMiddleware(testHandler).ServeHTTP(recorder, req)

		assert.Empty(t, recorder.Header().Get("Content-Encoding"))
		assert.Equal(t, expected, recorder.Body.String())
	})

	t.Run("small responses are not compressed", func(t *testing.T) {
		small := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		req := httptest.NewRequest("GET", "/health", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		recorder := httptest.NewRecorder()

		CompressionMiddleware(small).ServeHTTP(recorder, req)

		assert.Empty(t, recorder.Header().Get("Content-Encoding"))
		assert.Equal(t, `{"status":"ok"}`, recorder.Body.String())
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("test response"))
	})
	secureHandler := securityHeaders(handler)

	t.Run("sets headers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/health", nil)
		rec := httptest.NewRecorder()
		secureHandler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "test response", rec.Body.String())

		headers := rec.Header()
		assert.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", headers.Get("X-Frame-Options"))
		assert.Equal(t, "max-age=31536000; includeSubDomains", headers.Get("Strict-Transport-Security"))
		assert.Equal(t, "strict-origin-when-cross-origin", headers.Get("Referrer-Policy"))
		assert.Equal(t, "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none';", headers.Get("Content-Security-Policy"))
		assert.Empty(t, headers.Get("Access-Control-Allow-Origin"))
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/mission", nil)
		req.Header.Set("Origin", "https://dashboard.example.com")
		rec := httptest.NewRecorder()
		secureHandler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
	})
}

func TestRequestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewStructuredLogger(&buf, slog.LevelInfo)

	handler := NewRequestLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Same(t, logger, logging.FromContext(r.Context()))
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest("POST", "/api/missions?key=secret", nil)
	req.Header.Set("User-Agent", "mission-service/1.0")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusAccepted, recorder.Code)

	output := buf.String()
	assert.Contains(t, output, `"msg":"http_request"`)
	assert.Contains(t, output, `"method":"POST"`)
	assert.Contains(t, output, `"path":"/api/missions"`)
	assert.Contains(t, output, `"status":202`)
	assert.Contains(t, output, `"user_agent":"mission-service/1.0"`)
	assert.Contains(t, output, `"duration_ms":`)
	assert.Contains(t, output, `"component":"http_server"`)
	assert.NotContains(t, output, "secret")
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		limited := NewRateLimitMiddleware(3, time.Second)(ok)

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			limited.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
			assert.Equal(t, http.StatusOK, w.Code, "Request %d should be allowed", i+1)
		}

		w := httptest.NewRecorder()
		limited.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Contains(t, w.Body.String(), `"code":429`)
	})

	t.Run("limits each client separately", func(t *testing.T) {
		limited := NewRateLimitMiddleware(1, time.Second)(ok)

		clients := []func(*http.Request){
			func(r *http.Request) { r.RemoteAddr = "10.0.0.1:1000" },
			func(r *http.Request) { r.RemoteAddr = "10.0.0.2:1000" },
			func(r *http.Request) { r.URL.RawQuery = "key=TEST" },
		}
		for _, setup := range clients {
			req := httptest.NewRequest("GET", "/health", nil)
			setup(req)
			w := httptest.NewRecorder()
			limited.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		}

		req := httptest.NewRequest("GET", "/health", nil)
		req.RemoteAddr = "10.0.0.1:2000"
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, req)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("negative rate disables limiting", func(t *testing.T) {
		limited := NewRateLimitMiddleware(-1, time.Second)(ok)
		for i := 0; i < 20; i++ {
			w := httptest.NewRecorder()
			limited.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
			assert.Equal(t, http.StatusOK, w.Code)
		}
	})

	t.Run("zero rate blocks everything", func(t *testing.T) {
		limited := NewRateLimitMiddleware(0, time.Second)(ok)
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "3600", w.Header().Get("Retry-After"))
	})
}

func TestRateLimitingIntegration(t *testing.T) {
	api := createTestApi(t, 2)
	server := newTestServer(t, api)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		resp := doRequest(t, http.MethodGet, server.URL+"/health", "", nil)
		codes = append(codes, resp.StatusCode)
		_ = resp.Body.Close()
	}
	assert.Equal(t, []int{200, 200, 429, 429}, codes)
}
