package specialize

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypersonic-dev/hypersonic/internal/trampoline"
)

func okHandler(msg string) trampoline.HandlerFunc {
	return func(r *trampoline.Request) (any, error) { return msg, nil }
}

func TestCompile_StaticRouteIsPrecomputed(t *testing.T) {
	t.Parallel()

	calls := 0
	handler := func(r *trampoline.Request) (any, error) {
		calls++
		return "pong", nil
	}

	s, err := Compile([]RouteDef{{Method: "GET", Pattern: "/ping", Handler: handler}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "precomputed handler should run exactly once at compile time")

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/ping", nil))
	assert.Equal(t, 1, calls, "a static route must not re-invoke the handler per request")
	assert.Equal(t, "pong", rec.Body.String())
}

func TestCompile_DynamicRouteRunsPerRequest(t *testing.T) {
	t.Parallel()

	calls := 0
	handler := func(r *trampoline.Request) (any, error) {
		calls++
		return r.Params["id"], nil
	}

	s, err := Compile([]RouteDef{{Method: "GET", Pattern: "/users/:id", Handler: handler}}, Options{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/users/42", nil))
	assert.Equal(t, "42", rec.Body.String())

	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, httptest.NewRequest("GET", "/users/7", nil))
	assert.Equal(t, "7", rec2.Body.String())
	assert.Equal(t, 2, calls)
}

func TestCompile_ForceDynamicSkipsPrecomputation(t *testing.T) {
	t.Parallel()

	calls := 0
	handler := func(r *trampoline.Request) (any, error) {
		calls++
		return calls, nil
	}

	s, err := Compile([]RouteDef{{Method: "GET", Pattern: "/count", Handler: handler, ForceDynamic: true}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/count", nil))
	assert.Equal(t, "1", rec.Body.String())

	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, httptest.NewRequest("GET", "/count", nil))
	assert.Equal(t, "2", rec2.Body.String())
}

func TestCompile_DuplicateStaticRouteFails(t *testing.T) {
	t.Parallel()

	_, err := Compile([]RouteDef{
		{Method: "GET", Pattern: "/health", Handler: okHandler("a")},
		{Method: "GET", Pattern: "/health", Handler: okHandler("b")},
	}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestCompile_BodyConsumingMethodNeverPrecomputed(t *testing.T) {
	t.Parallel()

	calls := 0
	handler := func(r *trampoline.Request) (any, error) {
		calls++
		return "created", nil
	}

	s, err := Compile([]RouteDef{{Method: "POST", Pattern: "/items", Handler: handler}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("POST", "/items", nil))
	assert.Equal(t, 1, calls)
}

func TestCompile_NotFoundForUnknownRoute(t *testing.T) {
	t.Parallel()

	s, err := Compile([]RouteDef{{Method: "GET", Pattern: "/ping", Handler: okHandler("pong")}}, Options{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompile_SecurityHeadersApplied(t *testing.T) {
	t.Parallel()

	s, err := Compile([]RouteDef{{Method: "GET", Pattern: "/ping", Handler: okHandler("pong")}}, Options{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/ping", nil))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestCompile_CacheKeyDeterministic(t *testing.T) {
	t.Parallel()

	defs := []RouteDef{{Method: "GET", Pattern: "/ping", Handler: okHandler("pong")}}
	s1, err := Compile(defs, Options{})
	require.NoError(t, err)
	s2, err := Compile(defs, Options{})
	require.NoError(t, err)

	assert.Equal(t, s1.CacheKey(), s2.CacheKey())
}

func TestCompile_PanicInHandlerYieldsFixed500(t *testing.T) {
	t.Parallel()

	s, err := Compile([]RouteDef{{
		Method:       "GET",
		Pattern:      "/boom",
		Handler:      func(r *trampoline.Request) (any, error) { panic("bad") },
		ForceDynamic: true,
	}}, Options{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", rec.Body.String())
}
