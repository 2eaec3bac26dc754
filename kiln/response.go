package kiln

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kiln-dev/kiln/kerrors"
)

type bodyKind int

const (
	bodyUnset bodyKind = iota
	bodyBuffered
	bodyStream
	bodySSE
)

// Response accumulates status, headers, cookies, and body across a
// request's handling and flushes exactly once. It implements the state
// machine from spec.md §4.6: unset -> (body-like | stream-like |
// sse-like) -> sent, with only one of the body-like branches ever
// firing.
//
// Buffered body helpers (JSON/Text/HTML/XML/Bytes/File/Redirect) may be
// called repeatedly to overwrite a previously buffered body — they all
// belong to the same "body-like" branch of the state machine. Calling
// Stream or SSE after a buffered body has been set, or calling either of
// them a second time, fails with "response already configured" because
// streaming and SSE flush immediately and irreversibly commit the
// response to that branch.
type Response struct {
	w http.ResponseWriter

	status  int
	header  http.Header
	cookies []*http.Cookie

	kind     bodyKind
	buffered []byte

	isSent bool
}

func newResponse(w http.ResponseWriter) *Response {
	return &Response{
		w:      w,
		status: http.StatusOK,
		header: w.Header(),
	}
}

// Status sets the response status code. Default is 200.
func (r *Response) Status(code int) *Response {
	r.status = code
	return r
}

// StatusCode returns the status code that will be (or was) written.
func (r *Response) StatusCode() int { return r.status }

// Header returns the response's header map. Mutating it is visible
// immediately, as with net/http — callers do not need a separate
// "commit" step for headers.
func (r *Response) Header() http.Header { return r.header }

// IsSent reports whether the response has already been flushed.
func (r *Response) IsSent() bool { return r.isSent }

// IsConfigured reports whether any body-producing method (a buffered
// helper, Stream, or SSE) has run yet, even if the response has not
// been flushed. Middleware that wants to supply a fallback body only
// when the handler produced none — without racing the eventual flush —
// checks this instead of IsSent.
func (r *Response) IsConfigured() bool { return r.kind != bodyUnset }

// SetCookie queues c for the response, replacing any previously queued
// cookie with the same (Name, Path).
func (r *Response) SetCookie(c *http.Cookie) {
	for i, existing := range r.cookies {
		if existing.Name == c.Name && existing.Path == c.Path {
			r.cookies[i] = c
			return
		}
	}
	r.cookies = append(r.cookies, c)
}

// ClearCookie queues a cookie that instructs the client to delete name
// at path (default "/"): empty value, Max-Age=0, and an expiry in the
// past.
func (r *Response) ClearCookie(name string, path string) {
	if path == "" {
		path = "/"
	}
	r.SetCookie(&http.Cookie{
		Name:    name,
		Value:   "",
		Path:    path,
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	})
}

// HasCookie reports whether a cookie named name (optionally at path) is
// currently queued.
func (r *Response) HasCookie(name string, path ...string) bool {
	wantPath := ""
	if len(path) > 0 {
		wantPath = path[0]
	}
	for _, c := range r.cookies {
		if c.Name != name {
			continue
		}
		if wantPath == "" || c.Path == wantPath {
			return true
		}
	}
	return false
}

// errAlreadyConfigured is returned when a body-setting call conflicts
// with the response's current state-machine branch.
var errAlreadyConfigured = kerrors.New(kerrors.Validation, "response already configured")

func (r *Response) setBuffered(status int, contentType string, body []byte) error {
	if r.kind == bodyStream || r.kind == bodySSE {
		return errAlreadyConfigured
	}
	r.kind = bodyBuffered
	r.status = status
	if contentType != "" {
		r.header.Set("Content-Type", contentType)
	}
	r.buffered = body
	return nil
}

// JSON encodes value as UTF-8 JSON.
func (r *Response) JSON(status int, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return kerrors.Wrap(kerrors.Unexpected, "failed to encode JSON response", err)
	}
	return r.setBuffered(status, "application/json; charset=utf-8", body)
}

// Text sets a plain-text UTF-8 body.
func (r *Response) Text(status int, body string) error {
	return r.setBuffered(status, "text/plain; charset=utf-8", []byte(body))
}

// HTML sets an HTML UTF-8 body.
func (r *Response) HTML(status int, body string) error {
	return r.setBuffered(status, "text/html; charset=utf-8", []byte(body))
}

// XML encodes value as UTF-8 XML.
func (r *Response) XML(status int, value any) error {
	body, err := xml.Marshal(value)
	if err != nil {
		return kerrors.Wrap(kerrors.Unexpected, "failed to encode XML response", err)
	}
	return r.setBuffered(status, "application/xml; charset=utf-8", body)
}

// Bytes sets a raw body with the given MIME type and Content-Length.
func (r *Response) Bytes(status int, body []byte, mimeType string) error {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if err := r.setBuffered(status, mimeType, body); err != nil {
		return err
	}
	r.header.Set("Content-Length", fmt.Sprintf("%d", len(body)))
	return nil
}

// File reads path and sets it as the response body, guessing the MIME
// type from its extension. A missing file rewrites the response to 404
// with the text body "File not found".
func (r *Response) File(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return r.setBuffered(http.StatusNotFound, "text/plain; charset=utf-8", []byte("File not found"))
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return r.Bytes(http.StatusOK, data, mimeType)
}

// Redirect sets the Location header and status (default 301).
func (r *Response) Redirect(url string, status ...int) error {
	code := http.StatusMovedPermanently
	if len(status) > 0 {
		code = status[0]
	}
	if err := r.setBuffered(code, "", nil); err != nil {
		return err
	}
	r.header.Set("Location", url)
	return nil
}

// flushHeader writes queued cookies, the status line, and headers. It
// is shared by send, Stream, and SSE, and must only ever run once per
// response — callers are responsible for the isSent guard.
func (r *Response) flushHeader() {
	for _, c := range r.cookies {
		http.SetCookie(r.w, c)
	}
	r.w.WriteHeader(r.status)
}

// send is the pipeline's idempotent flush: the first call writes
// status, headers, cookies, and any buffered body to the transport.
// Subsequent calls, and calls after Stream/SSE already flushed, are
// no-ops — for those flavors the body (and headers) were already
// written progressively and must not be rewritten.
func (r *Response) send() {
	if r.isSent {
		return
	}
	r.isSent = true
	r.flushHeader()
	if len(r.buffered) > 0 {
		_, _ = r.w.Write(r.buffered)
	}
}
