package kiln

import (
	"bytes"
	"net/http"
	"sync"
)

// timeoutWriter buffers a handler's response so that, if the server's
// per-request deadline fires first, the real ResponseWriter can be given
// the 408 response instead, and anything the abandoned handler goroutine
// writes afterward is silently discarded rather than racing the timeout
// write on the connection. This mirrors the net/http standard library's
// internal timeoutWriter (the unexported type backing http.TimeoutHandler)
// narrowed to kiln's 408/JSON response instead of TimeoutHandler's fixed
// 503/text-message behavior.
type timeoutWriter struct {
	mu          sync.Mutex
	header      http.Header
	buf         bytes.Buffer
	code        int
	wroteHeader bool
	timedOut    bool
}

func newTimeoutWriter() *timeoutWriter {
	return &timeoutWriter{header: make(http.Header)}
}

func (tw *timeoutWriter) Header() http.Header {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.header
}

func (tw *timeoutWriter) Write(p []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return len(p), nil
	}
	if !tw.wroteHeader {
		tw.writeHeaderLocked(http.StatusOK)
	}
	return tw.buf.Write(p)
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.wroteHeader {
		return
	}
	tw.writeHeaderLocked(code)
}

func (tw *timeoutWriter) writeHeaderLocked(code int) {
	tw.wroteHeader = true
	tw.code = code
}

// flushTo copies the buffered response into dst, called once the handler
// goroutine finishes before the deadline.
func (tw *timeoutWriter) flushTo(dst http.ResponseWriter) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	outHeader := dst.Header()
	for k, v := range tw.header {
		outHeader[k] = v
	}
	if !tw.wroteHeader {
		tw.code = http.StatusOK
	}
	dst.WriteHeader(tw.code)
	_, _ = dst.Write(tw.buf.Bytes())
}

// markTimedOut flags the writer so any later Write/WriteHeader from the
// abandoned handler goroutine is a silent no-op.
func (tw *timeoutWriter) markTimedOut() (already bool) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	already = tw.timedOut
	tw.timedOut = true
	return already
}
