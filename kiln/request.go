package kiln

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kiln-dev/kiln/kerrors"
	"github.com/kiln-dev/kiln/router"
	"github.com/kiln-dev/kiln/session"
)

// DefaultMaxBodyBytes and DefaultMaxFileBytes are the caps spec.md §4.4
// names as defaults.
const (
	DefaultMaxBodyBytes = 10 << 20  // 10 MiB
	DefaultMaxFileBytes = 100 << 20 // 100 MiB
)

// requestIDHeaders are checked, in order, before minting a fresh UUID.
var requestIDHeaders = []string{"X-Request-Id", "X-Correlation-Id"}

// Request wraps the inbound *http.Request with the caps, session handle,
// and lazily-parsed, memoized body/multipart views spec.md §4.4
// describes. A Request is constructed once per inbound request by the
// container and is not safe for concurrent use by multiple goroutines
// (the same restriction rivaas.dev/router documents for its Context).
type Request struct {
	raw *http.Request

	id string

	sessionID    string
	isNewSession bool
	sess         *session.Session

	di *DI

	maxBodyBytes int64
	maxFileBytes int64

	params router.Params

	bodyOnce sync.Once
	bodyVal  any
	bodyErr  error
	rawBody  []byte

	multipartOnce sync.Once
	multipartVal  *MultipartForm
	multipartErr  error
}

// newRequest constructs a Request from raw, resolving the session
// identifier per spec.md §4.4 step 1 (cookie scan, optional signature
// verification) and the request-id per step 2. It does not touch the
// session store — that is the container's job, once it has the id.
func newRequest(raw *http.Request, cookieName string, signer *session.Signer, maxBodyBytes, maxFileBytes int64) *Request {
	r := &Request{
		raw:          raw,
		params:       router.Params{},
		maxBodyBytes: maxBodyBytes,
		maxFileBytes: maxFileBytes,
	}

	if maxBodyBytes <= 0 {
		r.maxBodyBytes = DefaultMaxBodyBytes
	}
	if maxFileBytes <= 0 {
		r.maxFileBytes = DefaultMaxFileBytes
	}

	r.sessionID, r.isNewSession = resolveSessionID(raw, cookieName, signer)
	r.id = resolveRequestID(raw)

	return r
}

func resolveSessionID(raw *http.Request, cookieName string, signer *session.Signer) (id string, isNew bool) {
	cookie, err := raw.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return session.NewID(), true
	}
	if signer == nil {
		return cookie.Value, false
	}
	verifiedID, ok := signer.Verify(cookie.Value)
	if !ok {
		return session.NewID(), true
	}
	return verifiedID, false
}

func resolveRequestID(raw *http.Request) string {
	for _, h := range requestIDHeaders {
		if v := raw.Header.Get(h); v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// Raw returns the underlying *http.Request for access to anything this
// type does not wrap directly (method, URL, headers, remote addr, the
// request's context.Context for cancellation).
func (r *Request) Raw() *http.Request { return r.raw }

// Context returns the request's context.Context, carrying the
// per-request deadline the server installs for timeout enforcement and
// cancelled when the client disconnects.
func (r *Request) Context() context.Context { return r.raw.Context() }

// SetContext replaces the request's context.Context, mirroring
// http.Request.WithContext. Middleware uses this to attach values
// (authenticated principal, correlation id, per-request deadlines) that
// downstream middleware, the handler, or libraries taking a plain
// context.Context can read back via Context().
func (r *Request) SetContext(ctx context.Context) {
	r.raw = r.raw.WithContext(ctx)
}

// ID returns the request's correlation identifier.
func (r *Request) ID() string { return r.id }

// Method returns the HTTP method.
func (r *Request) Method() string { return r.raw.Method }

// Path returns the request's URL path.
func (r *Request) Path() string { return r.raw.URL.Path }

// Header returns the named request header.
func (r *Request) Header(name string) string { return r.raw.Header.Get(name) }

// Query returns the named query-string parameter.
func (r *Request) Query(name string) string { return r.raw.URL.Query().Get(name) }

// Cookie returns the named cookie's value, or "" if absent.
func (r *Request) Cookie(name string) string {
	c, err := r.raw.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// Param returns the named path parameter bound by the router, or "" if
// unbound.
func (r *Request) Param(name string) string { return r.params.Get(name) }

// Params returns all path parameters bound for this request.
func (r *Request) Params() router.Params { return r.params }

// setParams is called by the container once routing has matched.
func (r *Request) setParams(p router.Params) { r.params = p }

// Session returns the request's session handle. It is nil until the
// container has loaded it (step 1 of dispatch); handlers always see a
// non-nil Session because dispatch runs load before the chain executes.
func (r *Request) Session() *session.Session { return r.sess }

func (r *Request) setSession(s *session.Session) { r.sess = s }

// IsNewSession reports whether this request arrived without a valid
// session cookie (so the container must queue a fresh Set-Cookie).
func (r *Request) IsNewSession() bool { return r.isNewSession }

// DI returns the request's dependency-injection scope (the host
// container's scope, or the isolated container's own scope when the
// request was dispatched through a mount).
func (r *Request) DI() *DI { return r.di }

func (r *Request) setDI(d *DI) { r.di = d }

// SetMaxBodyBytes overrides this request's body size cap. It has effect
// only if called before Body/DecodeForm/Multipart first reads the body
// (middleware runs before the handler, so this is the intended call
// site for a per-route override of the container-wide default).
func (r *Request) SetMaxBodyBytes(n int64) { r.maxBodyBytes = n }

// SetMaxFileBytes overrides this request's per-file multipart cap, with
// the same before-first-read restriction as SetMaxBodyBytes.
func (r *Request) SetMaxFileBytes(n int64) { r.maxFileBytes = n }

// readRawBody drains the request body, accumulating bytes up to
// maxBodyBytes. If the cumulative total would exceed the cap, it fully
// drains whatever remains (to keep the connection healthy for the next
// request on a persistent connection) and returns a
// kerrors.PayloadTooLarge error.
func (r *Request) readRawBody() ([]byte, error) {
	if r.raw.Body == nil {
		return nil, nil
	}

	limited := io.LimitReader(r.raw.Body, r.maxBodyBytes+1)
	buf, err := io.ReadAll(limited)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Unexpected, "failed to read request body", err)
	}

	if int64(len(buf)) > r.maxBodyBytes {
		_, _ = io.Copy(io.Discard, r.raw.Body)
		return nil, kerrors.PayloadTooLargeErr("Payload Too Large").WithData(map[string]any{
			"limitBytes": r.maxBodyBytes,
		})
	}
	return buf, nil
}

// Body returns the request body interpreted according to its
// Content-Type, memoized after the first call:
//
//   - application/json (or any "+json" suffix): decoded into any
//     (object/array/scalar) via encoding/json.
//   - application/x-www-form-urlencoded: a map[string]string.
//   - text/*: a string.
//   - anything else: raw []byte.
//   - an empty body: nil.
func (r *Request) Body() (any, error) {
	r.bodyOnce.Do(func() {
		raw, err := r.readRawBody()
		if err != nil {
			r.bodyErr = err
			return
		}
		r.rawBody = raw
		r.bodyVal, r.bodyErr = interpretBody(r.raw.Header.Get("Content-Type"), raw)
	})
	return r.bodyVal, r.bodyErr
}

func interpretBody(contentType string, raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	base := baseContentType(contentType)
	switch {
	case base == "application/json" || strings.HasSuffix(base, "+json"):
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, kerrors.Wrap(kerrors.Validation, "invalid JSON body", err)
		}
		return v, nil

	case base == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, kerrors.Wrap(kerrors.Validation, "invalid form body", err)
		}
		out := make(map[string]string, len(values))
		for k, v := range values {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
		return out, nil

	case strings.HasPrefix(base, "text/"):
		return string(raw), nil

	default:
		return raw, nil
	}
}

func baseContentType(contentType string) string {
	base, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		if idx := strings.IndexByte(contentType, ';'); idx != -1 {
			return strings.ToLower(strings.TrimSpace(contentType[:idx]))
		}
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(base)
}

// DecodeForm decodes the already-parsed urlencoded/multipart field view
// into out via mapstructure, for handlers that want a struct instead of
// walking the merged map by hand. It does not change the parsing rules
// in Body/Multipart — it is a read-only projection of whichever view
// applies to this request's Content-Type.
func (r *Request) DecodeForm(out any) error {
	base := baseContentType(r.raw.Header.Get("Content-Type"))
	if base == "multipart/form-data" {
		form, err := r.Multipart()
		if err != nil {
			return err
		}
		return decodeMapstructure(form.fieldsAsMap(), out)
	}

	body, err := r.Body()
	if err != nil {
		return err
	}
	m, ok := body.(map[string]string)
	if !ok {
		return kerrors.ValidationErr("request body is not form-encoded")
	}
	generic := make(map[string]any, len(m))
	for k, v := range m {
		generic[k] = v
	}
	return decodeMapstructure(generic, out)
}
