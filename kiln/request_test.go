package kiln

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyDecodesJSON(t *testing.T) {
	raw := httptest.NewRequest("POST", "/", strings.NewReader(`{"a":1}`))
	raw.Header.Set("Content-Type", "application/json")
	req := newRequest(raw, DefaultCookieName, nil, 0, 0)

	body, err := req.Body()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, body)
}

func TestBodyRejectsMalformedJSON(t *testing.T) {
	raw := httptest.NewRequest("POST", "/", strings.NewReader(`{`))
	raw.Header.Set("Content-Type", "application/json")
	req := newRequest(raw, DefaultCookieName, nil, 0, 0)

	_, err := req.Body()
	assert.Error(t, err)
}

func TestBodyDecodesFormURLEncoded(t *testing.T) {
	raw := httptest.NewRequest("POST", "/", strings.NewReader("name=ada&lang=go"))
	raw.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req := newRequest(raw, DefaultCookieName, nil, 0, 0)

	body, err := req.Body()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "ada", "lang": "go"}, body)
}

func TestBodyReturnsRawTextForTextContentType(t *testing.T) {
	raw := httptest.NewRequest("POST", "/", strings.NewReader("hello there"))
	raw.Header.Set("Content-Type", "text/plain")
	req := newRequest(raw, DefaultCookieName, nil, 0, 0)

	body, err := req.Body()
	require.NoError(t, err)
	assert.Equal(t, "hello there", body)
}

func TestBodyReturnsRawBytesForUnknownContentType(t *testing.T) {
	raw := httptest.NewRequest("POST", "/", strings.NewReader("\x00\x01"))
	raw.Header.Set("Content-Type", "application/octet-stream")
	req := newRequest(raw, DefaultCookieName, nil, 0, 0)

	body, err := req.Body()
	require.NoError(t, err)
	assert.Equal(t, []byte("\x00\x01"), body)
}

func TestBodyReturnsNilForEmptyBody(t *testing.T) {
	raw := httptest.NewRequest("GET", "/", nil)
	req := newRequest(raw, DefaultCookieName, nil, 0, 0)

	body, err := req.Body()
	require.NoError(t, err)
	assert.Nil(t, body)
}

func TestBodyIsMemoizedAfterFirstCall(t *testing.T) {
	raw := httptest.NewRequest("POST", "/", strings.NewReader(`"once"`))
	raw.Header.Set("Content-Type", "application/json")
	req := newRequest(raw, DefaultCookieName, nil, 0, 0)

	first, err := req.Body()
	require.NoError(t, err)
	second, err := req.Body()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReadRawBodyRejectsOverCap(t *testing.T) {
	raw := httptest.NewRequest("POST", "/", strings.NewReader("0123456789"))
	req := newRequest(raw, DefaultCookieName, nil, 5, 0)

	_, err := req.Body()
	assert.Error(t, err)
}

func TestSetMaxBodyBytesOverridesBeforeFirstRead(t *testing.T) {
	raw := httptest.NewRequest("POST", "/", strings.NewReader("0123456789"))
	req := newRequest(raw, DefaultCookieName, nil, 5, 0)
	req.SetMaxBodyBytes(100)

	body, err := req.Body()
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), body)
}

func TestDecodeFormDecodesURLEncodedIntoStruct(t *testing.T) {
	raw := httptest.NewRequest("POST", "/", strings.NewReader("name=ada&lang=go"))
	raw.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req := newRequest(raw, DefaultCookieName, nil, 0, 0)

	var out struct {
		Name string `mapstructure:"name"`
		Lang string `mapstructure:"lang"`
	}
	require.NoError(t, req.DecodeForm(&out))
	assert.Equal(t, "ada", out.Name)
	assert.Equal(t, "go", out.Lang)
}

func TestDecodeFormRejectsNonFormBody(t *testing.T) {
	raw := httptest.NewRequest("POST", "/", strings.NewReader(`{"a":1}`))
	raw.Header.Set("Content-Type", "application/json")
	req := newRequest(raw, DefaultCookieName, nil, 0, 0)

	var out struct{}
	assert.Error(t, req.DecodeForm(&out))
}

func TestResolveRequestIDPrefersIncomingHeader(t *testing.T) {
	raw := httptest.NewRequest("GET", "/", nil)
	raw.Header.Set("X-Request-Id", "incoming-id")
	req := newRequest(raw, DefaultCookieName, nil, 0, 0)

	assert.Equal(t, "incoming-id", req.ID())
}

func TestResolveRequestIDMintsUUIDWhenAbsent(t *testing.T) {
	raw := httptest.NewRequest("GET", "/", nil)
	req := newRequest(raw, DefaultCookieName, nil, 0, 0)

	assert.NotEmpty(t, req.ID())
}

func TestResolveSessionIDMintsFreshOnMissingCookie(t *testing.T) {
	raw := httptest.NewRequest("GET", "/", nil)
	id, isNew := resolveSessionID(raw, DefaultCookieName, nil)

	assert.NotEmpty(t, id)
	assert.True(t, isNew)
}

func TestResolveSessionIDTrustsCookieWithoutSigner(t *testing.T) {
	raw := httptest.NewRequest("GET", "/", nil)
	raw.AddCookie(&fakeCookie)
	id, isNew := resolveSessionID(raw, DefaultCookieName, nil)

	assert.Equal(t, fakeCookie.Value, id)
	assert.False(t, isNew)
}

func TestResolveSessionIDRejectsTamperedSignedCookie(t *testing.T) {
	signer, err := newTestSigner()
	require.NoError(t, err)

	raw := httptest.NewRequest("GET", "/", nil)
	raw.AddCookie(&fakeCookie)
	id, isNew := resolveSessionID(raw, DefaultCookieName, signer)

	assert.NotEqual(t, fakeCookie.Value, id)
	assert.True(t, isNew)
}

func TestResolveSessionIDAcceptsValidSignedCookie(t *testing.T) {
	signer, err := newTestSigner()
	require.NoError(t, err)

	signed := signer.Sign("user-42")

	raw := httptest.NewRequest("GET", "/", nil)
	raw.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: signed})
	id, isNew := resolveSessionID(raw, DefaultCookieName, signer)

	assert.Equal(t, "user-42", id)
	assert.False(t, isNew)
}
