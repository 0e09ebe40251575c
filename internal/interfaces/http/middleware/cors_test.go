package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func serveCORS(cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(method, "/api/v1/predictions", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	CORS(cfg)(okHandler()).ServeHTTP(w, r)
	return w
}

func TestCORS_Preflight(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://lab.example.org"}
	cfg.MaxAge = 3600

	w := serveCORS(cfg, http.MethodOptions, "https://lab.example.org")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://lab.example.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
	assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
	assert.Empty(t, w.Body.String())
}

func TestCORS_OriginMatching(t *testing.T) {
	tests := []struct {
		name     string
		allowed  []string
		wildcard bool
		origin   string
		want     string
	}{
		{"exact", []string{"https://a.com", "https://b.com"}, false, "https://b.com", "https://b.com"},
		{"case insensitive", []string{"https://A.com"}, false, "https://a.com", "https://a.com"},
		{"disallowed", []string{"https://allowed.com"}, false, "https://evil.com", ""},
		{"any", []string{"*"}, false, "https://any.com", "*"},
		{"subdomain", []string{"*.example.com"}, true, "https://app.example.com", "https://app.example.com"},
		{"subdomain mismatch", []string{"*.example.com"}, true, "https://other.com", ""},
		{"no origin", []string{"https://a.com"}, false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCORSConfig()
			cfg.AllowedOrigins = tt.allowed
			cfg.AllowWildcard = tt.wildcard

			w := serveCORS(cfg, http.MethodGet, tt.origin)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "ok", w.Body.String())
			assert.Equal(t, tt.want, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORS_CredentialsEchoOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"*"}
	cfg.AllowCredentials = true

	w := serveCORS(cfg, http.MethodGet, "https://specific.com")

	assert.Equal(t, "https://specific.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_ExposedAndVaryHeaders(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://lab.example.org"}

	w := serveCORS(cfg, http.MethodGet, "https://lab.example.org")

	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Request-ID")
	vary := w.Header().Values("Vary")
	assert.Contains(t, vary, "Origin")
	assert.Contains(t, vary, "Access-Control-Request-Method")
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	assert.Empty(t, cfg.AllowedOrigins)
	assert.ElementsMatch(t, []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}, cfg.AllowedMethods)
	assert.Contains(t, cfg.AllowedHeaders, "Content-Type")
	assert.False(t, cfg.AllowCredentials)
	assert.Equal(t, 86400, cfg.MaxAge)
}
