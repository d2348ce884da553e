package trampoline

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest_QueryHeadersCookies(t *testing.T) {
	t.Parallel()

	hr := httptest.NewRequest("GET", "/users/42?active=true&sort=name", nil)
	hr.Header.Set("X-Request-Id", "abc")
	hr.AddCookie(&http.Cookie{Name: "session", Value: "xyz"})

	req, _, ok := BuildRequest(hr, Options{})
	require.True(t, ok)

	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, []string{"users", "42"}, req.Segments)
	assert.Equal(t, "42", req.Terminal)
	assert.Equal(t, "true", req.Query["active"])
	assert.Equal(t, "name", req.Query["sort"])
	assert.Equal(t, "abc", req.Headers["x_request_id"])
	assert.Equal(t, "xyz", req.Cookies["session"])
}

func TestBuildRequest_RejectsChunkedBody(t *testing.T) {
	t.Parallel()

	hr := httptest.NewRequest("POST", "/upload", strings.NewReader("data"))
	hr.ContentLength = -1

	_, rejected, ok := BuildRequest(hr, Options{})
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rejected.Status)
}

func TestBuildRequest_RejectsOversizedBody(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("x", 100)
	hr := httptest.NewRequest("POST", "/echo", strings.NewReader(body))
	hr.ContentLength = int64(len(body))

	_, rejected, ok := BuildRequest(hr, Options{MaxBodySize: 10})
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rejected.Status)
}

func TestBuildRequest_ParsesJSONBody(t *testing.T) {
	t.Parallel()

	hr := httptest.NewRequest("POST", "/items", strings.NewReader(`{"name":"widget"}`))
	hr.Header.Set("Content-Type", "application/json")
	hr.ContentLength = int64(len(`{"name":"widget"}`))

	req, _, ok := BuildRequest(hr, Options{})
	require.True(t, ok)

	decoded, ok := req.JSON.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "widget", decoded["name"])
}

func TestBuildRequest_ParsesFormBody(t *testing.T) {
	t.Parallel()

	hr := httptest.NewRequest("POST", "/submit", strings.NewReader("name=a+b&age=9"))
	hr.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	hr.ContentLength = int64(len("name=a+b&age=9"))

	req, _, ok := BuildRequest(hr, Options{})
	require.True(t, ok)
	assert.Equal(t, "a b", req.Form["name"])
	assert.Equal(t, "9", req.Form["age"])
}

func TestChain_ShortCircuitsOnGlobalBefore(t *testing.T) {
	t.Parallel()

	handlerCalled := false
	chain := Chain{
		GlobalBefore: []BeforeFunc{
			func(r *Request) (any, error, bool) {
				return Tuple{Status: http.StatusUnauthorized, Body: "no"}, nil, true
			},
		},
		Handler: func(r *Request) (any, error) {
			handlerCalled = true
			return "yes", nil
		},
	}

	rendered := chain.Run(&Request{})
	assert.False(t, handlerCalled)
	assert.Equal(t, http.StatusUnauthorized, rendered.Status)
	assert.Equal(t, []byte("no"), rendered.Body)
}

func TestChain_AfterMiddlewareRewritesResponse(t *testing.T) {
	t.Parallel()

	chain := Chain{
		Handler: func(r *Request) (any, error) {
			return "hello", nil
		},
		GlobalAfter: []AfterFunc{
			func(r *Request, rendered Rendered) Rendered {
				rendered.Headers.Set("X-Added", "1")
				return rendered
			},
		},
	}

	rendered := chain.Run(&Request{})
	assert.Equal(t, "1", rendered.Headers.Get("X-Added"))
	assert.Equal(t, []byte("hello"), rendered.Body)
}

type recordingInline struct {
	before, after int
}

func (m *recordingInline) Before(r *Request)            { m.before++ }
func (m *recordingInline) After(r *Request, _ *Rendered) { m.after++ }

func TestChain_InlineMiddlewareRunsOutermost(t *testing.T) {
	t.Parallel()

	inline := &recordingInline{}
	shortCircuited := false
	chain := Chain{
		Inline: []InlineMiddleware{inline},
		GlobalBefore: []BeforeFunc{
			func(r *Request) (any, error, bool) {
				shortCircuited = true
				return nil, nil, true
			},
		},
		Handler: func(r *Request) (any, error) { return nil, nil },
	}

	chain.Run(&Request{})
	assert.True(t, shortCircuited)
	assert.Equal(t, 1, inline.before)
	assert.Equal(t, 1, inline.after)
}

func TestRender_HandlerError(t *testing.T) {
	t.Parallel()

	rendered := Render(nil, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rendered.Status)
	assert.Equal(t, []byte(fixed500), rendered.Body)
	assert.Equal(t, "close", rendered.Headers.Get("Connection"))
}

func TestRender_PlainValueIsJSONEncoded(t *testing.T) {
	t.Parallel()

	rendered := Render(map[string]int{"count": 3}, nil)
	assert.Equal(t, http.StatusOK, rendered.Status)
	assert.JSONEq(t, `{"count":3}`, string(rendered.Body))
	assert.Equal(t, "application/json; charset=utf-8", rendered.Headers.Get("Content-Type"))
}

func TestWriteResponse_ComputesContentLength(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteResponse(rec, Rendered{Status: http.StatusOK, Headers: http.Header{}, Body: []byte("hello")})

	assert.Equal(t, "5", rec.Header().Get("Content-Length"))
	assert.Equal(t, "hello", rec.Body.String())
}
