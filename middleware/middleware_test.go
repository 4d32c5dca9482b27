package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rentflow/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(secret []byte) *gin.Engine {
	r := gin.New()
	r.GET("/secure", JWTAuthAdminMiddleware(secret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("adminId"))
	})
	return r
}

func TestJWTAuthAdminMiddleware(t *testing.T) {
	secret := []byte("s3cret")
	r := protectedRouter(secret)

	admin, err := utils.GenerateAdminToken(secret, "ops-1", utils.RoleAdmin, time.Hour)
	require.NoError(t, err)
	viewer, err := utils.GenerateAdminToken(secret, "ops-2", "viewer", time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + viewer, http.StatusForbidden},
		{"admin", "Bearer " + admin, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusOK {
				assert.Equal(t, "ops-1", w.Body.String())
			}
		})
	}
}

func rateLimitedRouter(t *testing.T, perMin int, trusted []string) *gin.Engine {
	t.Helper()
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(trusted))
	r.Use(RateLimitMiddleware(perMin))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine, header, value string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitMiddleware(t *testing.T) {
	// httptest requests arrive from 192.0.2.1
	r := rateLimitedRouter(t, 2, []string{"192.0.2.0/24"})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, hit(r, "X-Forwarded-For", "10.0.0.1"))
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// another client behind the proxy has its own bucket
	assert.Equal(t, http.StatusOK, hit(r, "X-Real-IP", "10.0.0.2"))
}

func TestRateLimitMiddleware_IgnoresForwardingHeadersFromUntrustedHops(t *testing.T) {
	r := rateLimitedRouter(t, 2, nil)

	codes := make([]int, 0, 3)
	for _, spoofed := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		codes = append(codes, hit(r, "X-Forwarded-For", spoofed))
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
