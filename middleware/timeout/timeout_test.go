package timeout_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kiln-dev/kiln"
	"github.com/kiln-dev/kiln/middleware/timeout"
)

func TestHandlerFinishingWithinDeadlineIsUntouched(t *testing.T) {
	c := kiln.New()
	c.Use(timeout.New(timeout.WithDuration(50 * time.Millisecond)))
	c.GET("/fast", func(req *kiln.Request, resp *kiln.Response) {
		_ = resp.Text(200, "fast")
	})

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest("GET", "/fast", nil))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "fast", w.Body.String())
}

func TestHandlerExceedingDeadlineGetsDefault408(t *testing.T) {
	c := kiln.New()
	c.Use(timeout.New(timeout.WithDuration(5 * time.Millisecond)))
	c.GET("/slow", func(req *kiln.Request, resp *kiln.Response) {
		<-req.Context().Done()
	})

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest("GET", "/slow", nil))

	assert.Equal(t, 408, w.Code)
}

func TestHandlerThatRespondsAfterDeadlineExpiryIsNotOverwritten(t *testing.T) {
	c := kiln.New()
	c.Use(timeout.New(timeout.WithDuration(5 * time.Millisecond)))
	c.GET("/slow-but-responds", func(req *kiln.Request, resp *kiln.Response) {
		select {
		case <-req.Context().Done():
		case <-time.After(20 * time.Millisecond):
		}
		_ = resp.Text(200, "done anyway")
	})

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest("GET", "/slow-but-responds", nil))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "done anyway", w.Body.String())
}

func TestSkipPathsBypassTheDeadline(t *testing.T) {
	c := kiln.New()
	c.Use(timeout.New(timeout.WithDuration(5*time.Millisecond), timeout.WithSkipPaths("/stream")))
	c.GET("/stream", func(req *kiln.Request, resp *kiln.Response) {
		time.Sleep(15 * time.Millisecond)
		_ = resp.Text(200, "streamed")
	})

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest("GET", "/stream", nil))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "streamed", w.Body.String())
}

func TestCustomHandlerOverridesDefaultTimeoutBody(t *testing.T) {
	c := kiln.New()
	c.Use(timeout.New(
		timeout.WithDuration(5*time.Millisecond),
		timeout.WithHandler(func(req *kiln.Request, resp *kiln.Response, d time.Duration) {
			_ = resp.Text(599, "custom timeout")
		}),
	))
	c.GET("/slow", func(req *kiln.Request, resp *kiln.Response) {
		<-req.Context().Done()
	})

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest("GET", "/slow", nil))

	assert.Equal(t, 599, w.Code)
	assert.Equal(t, "custom timeout", w.Body.String())
}
