package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"techtrack/internal/event"
)

func TestRecovery(t *testing.T) {
	t.Parallel()

	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"detail":"Unexpected server error","code":"INTERNAL_ERROR"}`, rec.Body.String())
}

func TestLoggingSetsRequestID(t *testing.T) {
	t.Parallel()

	handler := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorJSON(w, http.StatusNotFound, "NOT_FOUND", "User not found")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	cases := []struct {
		name       string
		remoteAddr string
		forwarded  string
		realIP     string
		want       string
	}{
		{name: "direct peer", remoteAddr: "192.0.2.4:5123", want: "192.0.2.4"},
		{name: "untrusted peer cannot forward", remoteAddr: "192.0.2.4:5123", forwarded: "198.51.100.7", realIP: "198.51.100.8", want: "192.0.2.4"},
		{name: "trusted proxy forwards client", remoteAddr: "10.0.0.2:443", forwarded: "198.51.100.7", want: "198.51.100.7"},
		{name: "spoofed leftmost hop is skipped", remoteAddr: "10.0.0.2:443", forwarded: "203.0.113.66, 198.51.100.7, 10.0.0.9", want: "198.51.100.7"},
		{name: "trusted proxy real ip", remoteAddr: "10.0.0.2:443", realIP: "198.51.100.8", want: "198.51.100.8"},
		{name: "garbage header falls back to peer", remoteAddr: "10.0.0.2:443", forwarded: "not-an-ip", want: "10.0.0.2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			handler := ClientIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = event.ClientIP(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tc.want, seen)
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

type recordedRequest struct {
	method string
	route  string
	status int
}

type fakeObserver struct {
	seen []recordedRequest
}

func (f *fakeObserver) ObserveRequest(method string, route string, status int, _ time.Duration) {
	f.seen = append(f.seen, recordedRequest{method: method, route: route, status: status})
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	t.Parallel()

	observer := &fakeObserver{}
	r := chi.NewRouter()
	r.Use(Metrics(observer))
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/42", nil))

	assert.Equal(t, []recordedRequest{{method: http.MethodGet, route: "/users/{id}", status: http.StatusNoContent}}, observer.seen)
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	handler := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "REQUEST_TIMEOUT")
}

func TestCORSCredentialsOnlyForExplicitOrigins(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	preflight := func(origins []string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/me", nil)
		req.Header.Set("Origin", "https://app.techtrack.dev")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := httptest.NewRecorder()
		CORS(origins)(ok).ServeHTTP(rec, req)
		return rec
	}

	open := preflight(nil)
	assert.Equal(t, "*", open.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, open.Header().Get("Access-Control-Allow-Credentials"))

	strict := preflight([]string{"https://app.techtrack.dev"})
	assert.Equal(t, "https://app.techtrack.dev", strict.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", strict.Header().Get("Access-Control-Allow-Credentials"))
}
