package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowBurst(t *testing.T) {
	l := NewLimiter(1, time.Hour, 3)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("1.2.3.4"), "request %d within burst", i)
	}
	assert.False(t, l.Allow("1.2.3.4"), "burst exhausted")
}

func TestAllowIsPerClient(t *testing.T) {
	l := NewLimiter(1, time.Hour, 1)
	defer l.Stop()

	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("5.6.7.8"))
}

func TestMiddleware(t *testing.T) {
	l := NewLimiter(1, time.Hour, 1)
	defer l.Stop()

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "1.2.3.4:5678"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// A different client still gets through.
	other := httptest.NewRequest("GET", "/", nil)
	other.RemoteAddr = "5.6.7.8:5678"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, other)
	assert.Equal(t, http.StatusOK, w.Code)
}
