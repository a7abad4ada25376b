package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newCompressedEngine() *gin.Engine {
	r := gin.New()
	r.Use(Brotli())
	big := strings.Repeat("Which of these is the SI unit of force? ", 100)
	r.GET("/api/review", func(c *gin.Context) { c.String(http.StatusOK, big) })
	r.GET("/api/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", func(c *gin.Context) { c.String(http.StatusOK, big) })
	return r
}

func get(r http.Handler, path, acceptEncoding string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	w := get(newCompressedEngine(), "/api/review", "gzip, br;q=0.9")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "br", w.Header().Get("Content-Encoding"))
	require.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))

	body, err := io.ReadAll(brotli.NewReader(w.Body))
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("Which of these is the SI unit of force? ", 100), string(body))
}

func TestBrotliPassesThrough(t *testing.T) {
	r := newCompressedEngine()

	tests := []struct {
		name, path, accept, body string
	}{
		{"small body", "/api/small", "br", "ok"},
		{"client without br", "/api/small", "gzip", "ok"},
		{"skipped path", "/metrics", "br", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.path, tt.accept)
			require.Equal(t, http.StatusOK, w.Code)
			require.Empty(t, w.Header().Get("Content-Encoding"))
			if tt.body != "" {
				require.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestAcceptsBrotli(t *testing.T) {
	for header, want := range map[string]bool{
		"br":                true,
		"gzip, deflate, BR": true,
		"br;q=1.0":          true,
		"gzip":              false,
		"":                  false,
		"brotli":            false,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", header)
		require.Equal(t, want, acceptsBrotli(req), header)
	}
}
