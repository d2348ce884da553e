package recovery

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypersonic-dev/hypersonic/internal/hlog"
	"github.com/hypersonic-dev/hypersonic/internal/trampoline"
)

func TestProtect_RecoversPanicWithFixedBody(t *testing.T) {
	t.Parallel()

	rec := Build(WithoutLogging())
	req := &trampoline.Request{Method: "GET", Path: "/boom"}

	rendered := rec.Protect(req, func() trampoline.Rendered {
		panic("kaboom")
	})

	assert.Equal(t, http.StatusInternalServerError, rendered.Status)
	assert.Equal(t, []byte("Internal Server Error"), rendered.Body)
	assert.Equal(t, "close", rendered.Headers.Get("Connection"))
}

func TestProtect_PassesThroughWhenNoPanic(t *testing.T) {
	t.Parallel()

	rec := Build()
	req := &trampoline.Request{}

	rendered := rec.Protect(req, func() trampoline.Rendered {
		return trampoline.Rendered{Status: http.StatusOK, Body: []byte("fine")}
	})

	assert.Equal(t, http.StatusOK, rendered.Status)
	assert.Equal(t, []byte("fine"), rendered.Body)
}

func TestProtect_CustomHandler(t *testing.T) {
	t.Parallel()

	rec := Build(WithoutLogging(), WithHandler(func(req *trampoline.Request, err any) trampoline.Rendered {
		return trampoline.Rendered{Status: http.StatusTeapot, Body: []byte("custom")}
	}))

	rendered := rec.Protect(&trampoline.Request{}, func() trampoline.Rendered {
		panic("boom")
	})
	assert.Equal(t, http.StatusTeapot, rendered.Status)
	assert.Equal(t, []byte("custom"), rendered.Body)
}

func TestProtect_LogsStackTrace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := hlog.New("test", hlog.WithOutput(&buf))
	rec := Build(WithLogger(logger))

	rec.Protect(&trampoline.Request{Method: "GET", Path: "/x"}, func() trampoline.Rendered {
		panic("trace me")
	})

	require.Contains(t, buf.String(), "trace me")
	require.Contains(t, buf.String(), "stack")
}
