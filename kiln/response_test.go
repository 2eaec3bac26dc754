package kiln

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSetsContentTypeAndBody(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	require.NoError(t, resp.JSON(201, map[string]string{"ok": "yes"}))
	resp.send()

	assert.Equal(t, 201, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":"yes"}`, w.Body.String())
}

func TestTextOverwritesPreviouslyBufferedBody(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	require.NoError(t, resp.Text(200, "first"))
	require.NoError(t, resp.Text(202, "second"))
	resp.send()

	assert.Equal(t, 202, w.Code)
	assert.Equal(t, "second", w.Body.String())
}

func TestBytesSetsContentLength(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	require.NoError(t, resp.Bytes(200, []byte("abcde"), "application/octet-stream"))
	resp.send()

	assert.Equal(t, "5", w.Header().Get("Content-Length"))
}

func TestFileMissingRewritesTo404(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	require.NoError(t, resp.File("/nonexistent/path/does-not-exist"))
	resp.send()

	assert.Equal(t, 404, w.Code)
	assert.Equal(t, "File not found", w.Body.String())
}

func TestRedirectSetsLocationAndDefaultStatus(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	require.NoError(t, resp.Redirect("/elsewhere"))
	resp.send()

	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/elsewhere", w.Header().Get("Location"))
}

func TestRedirectAcceptsExplicitStatus(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	require.NoError(t, resp.Redirect("/elsewhere", http.StatusFound))
	resp.send()

	assert.Equal(t, http.StatusFound, w.Code)
}

func TestSetCookieReplacesSameNameAndPath(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	resp.SetCookie(&http.Cookie{Name: "a", Path: "/", Value: "old"})
	resp.SetCookie(&http.Cookie{Name: "a", Path: "/", Value: "new"})

	require.Len(t, resp.cookies, 1)
	assert.Equal(t, "new", resp.cookies[0].Value)
}

func TestSetCookieKeepsDistinctPathsSeparate(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	resp.SetCookie(&http.Cookie{Name: "a", Path: "/", Value: "root"})
	resp.SetCookie(&http.Cookie{Name: "a", Path: "/admin", Value: "admin"})

	assert.Len(t, resp.cookies, 2)
}

func TestClearCookieExpiresImmediately(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	resp.ClearCookie("session", "")

	require.True(t, resp.HasCookie("session", "/"))
	assert.Equal(t, -1, resp.cookies[0].MaxAge)
}

func TestHasCookieWithoutPathMatchesAny(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)
	resp.SetCookie(&http.Cookie{Name: "a", Path: "/scoped", Value: "v"})

	assert.True(t, resp.HasCookie("a"))
	assert.False(t, resp.HasCookie("b"))
}

func TestIsConfiguredFalseUntilBodySet(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	assert.False(t, resp.IsConfigured())
	require.NoError(t, resp.Text(200, "x"))
	assert.True(t, resp.IsConfigured())
}

func TestSendIsIdempotent(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)
	require.NoError(t, resp.Text(200, "once"))

	resp.send()
	resp.send()

	assert.Equal(t, "once", w.Body.String())
}

func TestXMLEncodesBody(t *testing.T) {
	w := httptest.NewRecorder()
	resp := newResponse(w)

	type payload struct {
		Name string `xml:"name"`
	}
	require.NoError(t, resp.XML(200, payload{Name: "ada"}))
	resp.send()

	assert.Contains(t, w.Body.String(), "<name>ada</name>")
	assert.Equal(t, "application/xml; charset=utf-8", w.Header().Get("Content-Type"))
}
