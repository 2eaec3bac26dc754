package recovery_test

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiln-dev/kiln"
	"github.com/kiln-dev/kiln/middleware/recovery"
)

type capturingLogger struct {
	calls []struct {
		msg   string
		attrs []any
	}
}

func (l *capturingLogger) Log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l.calls = append(l.calls, struct {
		msg   string
		attrs []any
	}{msg, attrs})
}

func TestRecoversPanicAndRendersDefaultJSON(t *testing.T) {
	c := kiln.New()
	c.Use(recovery.New(recovery.WithoutLogging()))
	c.GET("/boom", func(req *kiln.Request, resp *kiln.Response) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))

	assert.Equal(t, 500, w.Code)
	assert.Contains(t, w.Body.String(), "Internal Server Error")
}

func TestCustomHandlerOverridesDefaultRendering(t *testing.T) {
	c := kiln.New()
	c.Use(recovery.New(
		recovery.WithoutLogging(),
		recovery.WithHandler(func(req *kiln.Request, resp *kiln.Response, recovered any) {
			_ = resp.Text(599, "custom recovery")
		}),
	))
	c.GET("/boom", func(req *kiln.Request, resp *kiln.Response) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))

	assert.Equal(t, 599, w.Code)
	assert.Equal(t, "custom recovery", w.Body.String())
}

func TestLoggerReceivesPanicValueAndStack(t *testing.T) {
	logger := &capturingLogger{}
	c := kiln.New()
	c.Use(recovery.New(recovery.WithLogger(logger)))
	c.GET("/boom", func(req *kiln.Request, resp *kiln.Response) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))

	assert.Equal(t, 500, w.Code)
	assert.Len(t, logger.calls, 1)
	assert.Equal(t, "recovered panic", logger.calls[0].msg)
}

func TestNoPanicLeavesHandlerResponseUntouched(t *testing.T) {
	c := kiln.New()
	c.Use(recovery.New(recovery.WithoutLogging()))
	c.GET("/ok", func(req *kiln.Request, resp *kiln.Response) {
		_ = resp.Text(200, "fine")
	})

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest("GET", "/ok", nil))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "fine", w.Body.String())
}

func TestStackTraceDisabledOmitsStackAttr(t *testing.T) {
	logger := &capturingLogger{}
	c := kiln.New()
	c.Use(recovery.New(recovery.WithLogger(logger), recovery.WithStackTrace(false)))
	c.GET("/boom", func(req *kiln.Request, resp *kiln.Response) {
		panic("kaboom")
	})

	w := httptest.NewRecorder()
	c.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))

	require := logger.calls[0].attrs
	for i := 0; i < len(require); i += 2 {
		assert.NotEqual(t, "stack", require[i])
	}
}
