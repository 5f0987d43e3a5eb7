package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(trusted []string, requestsPerMin, burst int) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.RemoteAddr))
	})
	return RealIP(trusted)(RateLimit(requestsPerMin, burst)(ok))
}

func TestRateLimit_IgnoresForwardedHeadersFromUntrustedPeers(t *testing.T) {
	h := limitedHandler(nil, 1, 1)

	passed := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/actions/generate-recipes", nil)
		req.RemoteAddr = "203.0.113.9:51234"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i))
		req.Header.Set("True-Client-IP", fmt.Sprintf("192.0.2.%d", i))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			passed++
		}
	}

	assert.Equal(t, 1, passed, "rotating headers must not reset the bucket")
}

func TestRealIP_TrustedProxy(t *testing.T) {
	tests := []struct {
		name   string
		peer   string
		xff    string
		realIP string
		want   string
	}{
		{"client behind proxy", "10.0.0.5:4000", "198.51.100.7", "", "198.51.100.7"},
		{"spoofed leftmost hop", "10.0.0.5:4000", "1.1.1.1, 198.51.100.7", "", "198.51.100.7"},
		{"proxy chain", "10.0.0.5:4000", "198.51.100.7, 10.0.0.9", "", "198.51.100.7"},
		{"only proxies", "10.0.0.5:4000", "10.0.0.9", "", "10.0.0.9"},
		{"x-real-ip", "10.0.0.5:4000", "", "198.51.100.8", "198.51.100.8"},
		{"untrusted peer", "203.0.113.9:4000", "198.51.100.7", "198.51.100.8", "203.0.113.9:4000"},
		{"garbage header", "10.0.0.5:4000", "not-an-ip", "", "10.0.0.5:4000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := RealIP([]string{"10.0.0.0/8"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.peer
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRateLimit_SeparateClientsBehindTrustedProxy(t *testing.T) {
	h := limitedHandler([]string{"10.0.0.5"}, 1, 1)

	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = "10.0.0.5:4000"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, client)
	}
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	limiter := newRateLimiter(30, 5, clock)

	for i := 0; i < 100; i++ {
		limiter.allow(fmt.Sprintf("198.51.100.%d", i))
	}
	require.Equal(t, 100, limiter.size())

	now = now.Add(30 * time.Second)
	assert.True(t, limiter.allow("203.0.113.1"))
	assert.Equal(t, 101, limiter.size(), "clients seen recently are kept")

	now = now.Add(limiter.idle)
	assert.True(t, limiter.allow("203.0.113.2"))
	assert.Equal(t, 1, limiter.size())
}

func TestRateLimiter_EvictionKeepsLimits(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := newRateLimiter(1, 1, func() time.Time { return now })

	assert.True(t, limiter.allow("a"))
	assert.False(t, limiter.allow("a"))

	now = now.Add(limiter.idle)
	assert.True(t, limiter.allow("a"), "an evicted client starts with a full bucket")
	assert.False(t, limiter.allow("a"))
}

func TestParseProxy(t *testing.T) {
	p, err := ParseProxy("192.168.1.7")
	require.NoError(t, err)
	assert.Equal(t, 32, p.Bits())

	p, err = ParseProxy("10.1.2.3/8")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/8", p.String())

	_, err = ParseProxy("proxy.local")
	assert.Error(t, err)
}
