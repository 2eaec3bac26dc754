package kiln

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamCopiesSourceAndSetsContentType(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	err := resp.Stream(strings.NewReader("chunked payload"), "text/plain", true)
	require.NoError(t, err)

	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, "chunked payload", w.Body.String())
	assert.True(t, w.Flushed)
}

func TestStreamRejectsSecondBodyConfiguration(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	require.NoError(t, resp.Stream(strings.NewReader("a"), "", false))
	err := resp.Stream(strings.NewReader("b"), "", false)
	assert.Error(t, err)
}

func TestStreamRejectsAfterBufferedBody(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	require.NoError(t, resp.Text(200, "already buffered"))
	err := resp.Stream(strings.NewReader("x"), "", false)
	assert.Error(t, err)
}

func TestSSEWritesEventsAndComments(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	err := resp.SSE(func(sink *SSESink) {
		retry := 2 * time.Second
		_ = sink.SendEvent("line one\nline two", "update", "1", &retry)
		_ = sink.SendComment("keep-alive")
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, "text/event-stream; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "id: 1\n")
	assert.Contains(t, body, "event: update\n")
	assert.Contains(t, body, "retry: 2000\n")
	assert.Contains(t, body, "data: line one\n")
	assert.Contains(t, body, "data: line two\n")
	assert.Contains(t, body, ": keep-alive\n\n")
}

func TestSSESinkRejectsWritesAfterClose(t *testing.T) {
	sink := &SSESink{w: httptest.NewRecorder()}
	sink.Close()

	assert.Error(t, sink.SendEvent("x", "", "", nil))
	assert.Error(t, sink.SendComment("x"))
}
