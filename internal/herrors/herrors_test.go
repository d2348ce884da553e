package herrors

import (
	"net/http/httptest"
	"testing"

	stderrors "errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigError_Error(t *testing.T) {
	t.Parallel()

	err := &ConfigError{Option: "http2", Reason: "requires tls"}
	assert.Contains(t, err.Error(), "http2")
	assert.Contains(t, err.Error(), "requires tls")
}

func TestDuplicateRouteError(t *testing.T) {
	t.Parallel()

	err := DuplicateRouteError("GET", "/health")
	assert.Contains(t, err.Error(), "GET")
	assert.Contains(t, err.Error(), "/health")
	assert.Contains(t, err.Error(), "duplicate")
}

func TestRFC9457_FormatsCompileError(t *testing.T) {
	t.Parallel()

	formatter := NewRFC9457("https://hypersonic.dev/problems")
	req := httptest.NewRequest("GET", "/admin/debug", nil)

	resp := formatter.Format(req, DuplicateRouteError("GET", "/health"))

	require.Equal(t, 500, resp.Status)
	assert.Equal(t, "application/problem+json; charset=utf-8", resp.ContentType)

	detail, ok := resp.Body.(ProblemDetail)
	require.True(t, ok)
	assert.Contains(t, detail.Detail, "duplicate")
}

func TestWithStatus(t *testing.T) {
	t.Parallel()

	base := stderrors.New("boom")
	wrapped := WithStatus(base, 404)

	var typed ErrorType
	require.True(t, stderrors.As(wrapped, &typed))
	assert.Equal(t, 404, typed.HTTPStatus())
	assert.ErrorIs(t, wrapped, base)
}
