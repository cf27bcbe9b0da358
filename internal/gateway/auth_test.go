package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arenvik/warden/internal/security"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	both := AuthConfig{BearerToken: "my-token", BasicUser: "admin", BasicPass: "pass"}

	tests := []struct {
		name    string
		cfg     AuthConfig
		prepare func(*http.Request)
		want    int
	}{
		{
			name:    "valid bearer token",
			cfg:     AuthConfig{BearerToken: "secret-token"},
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-token") },
			want:    http.StatusOK,
		},
		{
			name:    "wrong bearer token",
			cfg:     AuthConfig{BearerToken: "secret-token"},
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong-token") },
			want:    http.StatusUnauthorized,
		},
		{
			name:    "valid basic auth",
			cfg:     AuthConfig{BasicUser: "admin", BasicPass: "pass123"},
			prepare: func(r *http.Request) { r.SetBasicAuth("admin", "pass123") },
			want:    http.StatusOK,
		},
		{
			name:    "wrong basic password",
			cfg:     AuthConfig{BasicUser: "admin", BasicPass: "pass123"},
			prepare: func(r *http.Request) { r.SetBasicAuth("admin", "wrongpass") },
			want:    http.StatusUnauthorized,
		},
		{
			name:    "no credentials at all",
			cfg:     AuthConfig{BearerToken: "token"},
			prepare: func(*http.Request) {},
			want:    http.StatusUnauthorized,
		},
		{
			name:    "bearer accepted when both configured",
			cfg:     both,
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer my-token") },
			want:    http.StatusOK,
		},
		{
			name:    "basic accepted when both configured",
			cfg:     both,
			prepare: func(r *http.Request) { r.SetBasicAuth("admin", "pass") },
			want:    http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := authMiddleware(tt.cfg, nil, nil)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/api/pending", nil)
			tt.prepare(req)

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_RateLimited(t *testing.T) {
	t.Parallel()

	cfg := AuthConfig{BearerToken: "token"}
	limiter := security.NewRateLimiter(security.RateLimitConfig{AuthAttemptsPerMin: 1})
	handler := authMiddleware(cfg, limiter, testLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/pending", nil)
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first attempt: status = %d, want %d", rr.Code, http.StatusOK)
	}

	// Even a correct credential is throttled once the per-client budget is
	// spent; the limiter counts attempts, not failures.
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req)
	if rr2.Code != http.StatusTooManyRequests {
		t.Errorf("second attempt: status = %d, want %d", rr2.Code, http.StatusTooManyRequests)
	}
}

func TestAuthConfig_IsConfigured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  AuthConfig
		want bool
	}{
		{"empty", AuthConfig{}, false},
		{"bearer only", AuthConfig{BearerToken: "tok"}, true},
		{"basic complete", AuthConfig{BasicUser: "u", BasicPass: "p"}, true},
		{"basic missing pass", AuthConfig{BasicUser: "u"}, false},
		{"basic missing user", AuthConfig{BasicPass: "p"}, false},
		{"both methods", AuthConfig{BearerToken: "t", BasicUser: "u", BasicPass: "p"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.cfg.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}
