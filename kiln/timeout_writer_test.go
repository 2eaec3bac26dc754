package kiln

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeoutWriterFlushesBufferedResponse(t *testing.T) {
	tw := newTimeoutWriter()
	tw.Header().Set("X-Test", "1")
	tw.WriteHeader(201)
	_, _ = tw.Write([]byte("hello"))

	dst := httptest.NewRecorder()
	tw.flushTo(dst)

	assert.Equal(t, 201, dst.Code)
	assert.Equal(t, "hello", dst.Body.String())
	assert.Equal(t, "1", dst.Header().Get("X-Test"))
}

func TestTimeoutWriterDefaultsTo200WhenNeverWritten(t *testing.T) {
	tw := newTimeoutWriter()
	dst := httptest.NewRecorder()
	tw.flushTo(dst)

	assert.Equal(t, 200, dst.Code)
}

func TestTimeoutWriterDiscardsWritesAfterMarkedTimedOut(t *testing.T) {
	tw := newTimeoutWriter()
	wasAlready := tw.markTimedOut()
	assert.False(t, wasAlready)

	n, err := tw.Write([]byte("too late"))
	assert.NoError(t, err)
	assert.Equal(t, len("too late"), n)

	dst := httptest.NewRecorder()
	tw.flushTo(dst)
	assert.Equal(t, "", dst.Body.String())
}

func TestTimeoutWriterMarkTimedOutIsIdempotent(t *testing.T) {
	tw := newTimeoutWriter()
	assert.False(t, tw.markTimedOut())
	assert.True(t, tw.markTimedOut())
}
