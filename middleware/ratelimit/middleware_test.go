package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/send", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	t.Run("limits per client", func(t *testing.T) {
		e := echo.New()
		e.POST("/send", func(c echo.Context) error {
			return c.String(http.StatusOK, "ok")
		}, Middleware(&Config{Store: NewMemoryStore(), Rate: 2, Period: time.Minute}))

		assert.Equal(t, http.StatusOK, serve(e, "10.0.0.1").Code)

		rec := serve(e, "10.0.0.1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

		rec = serve(e, "10.0.0.1")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))

		assert.Equal(t, http.StatusOK, serve(e, "10.0.0.2").Code, "other clients keep their own budget")
	})

	t.Run("custom limit handler", func(t *testing.T) {
		e := echo.New()
		e.POST("/send", func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		}, Middleware(&Config{
			Rate: 1,
			OnLimitReached: func(c echo.Context) error {
				return c.JSON(http.StatusTooManyRequests, map[string]string{"kind": "RateLimited"})
			},
		}))

		serve(e, "10.0.0.1")
		rec := serve(e, "10.0.0.1")

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.JSONEq(t, `{"kind":"RateLimited"}`, rec.Body.String())
	})

	t.Run("defaults applied", func(t *testing.T) {
		cfg := &Config{}
		Middleware(cfg)

		assert.NotNil(t, cfg.Store)
		assert.Equal(t, 10, cfg.Rate)
		assert.Equal(t, time.Minute, cfg.Period)
		assert.NotNil(t, cfg.KeyGenerator)
		assert.NotNil(t, cfg.OnLimitReached)
	})
}

func TestDefaultKeyGenerator(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/send", nil)
	req.Header.Set(echo.HeaderXRealIP, "192.168.1.5")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/send")

	assert.Equal(t, "rate_limit:/send:192.168.1.5", DefaultKeyGenerator(c))
}

func TestDefaultOnLimitReached(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := DefaultOnLimitReached(c)

	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
}
