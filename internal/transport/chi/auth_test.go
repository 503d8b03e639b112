package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authHandler(t *testing.T, apiKeys []string) http.Handler {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return BearerAuthMiddleware(apiKeys)(next)
}

func TestBearerAuthDisabled(t *testing.T) {
	h := authHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/logs/search", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want pass-through with no keys", rec.Code)
	}
}

func TestBearerAuthValidKey(t *testing.T) {
	h := authHandler(t, []string{"secret-key"})

	req := httptest.NewRequest(http.MethodGet, "/logs/search", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestBearerAuthRejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic secret-key"},
		{"invalid key", "Bearer wrong-key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := authHandler(t, []string{"secret-key"})

			req := httptest.NewRequest(http.MethodGet, "/logs/search", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestBearerAuthExemptPaths(t *testing.T) {
	h := authHandler(t, []string{"secret-key"})

	for _, path := range []string{"/health", "/metrics", "/logs"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("path %s status = %d, want exempt", path, rec.Code)
		}
	}
}
