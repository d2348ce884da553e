package compression

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldCompress_EnforcesMinSize(t *testing.T) {
	t.Parallel()

	c := Build(WithMinSize(100))
	assert.False(t, c.ShouldCompress("/api", "application/json", 50))
	assert.True(t, c.ShouldCompress("/api", "application/json", 200))
}

func TestShouldCompress_ExcludesPathsAndTypes(t *testing.T) {
	t.Parallel()

	c := Build(WithMinSize(0), WithExcludePaths("/metrics"), WithExcludeContentTypes("image/png"))
	assert.False(t, c.ShouldCompress("/metrics", "text/plain", 9999))
	assert.False(t, c.ShouldCompress("/img.bin", "image/png", 9999))
	assert.True(t, c.ShouldCompress("/api", "application/json; charset=utf-8", 9999))
}

func TestNegotiate(t *testing.T) {
	t.Parallel()

	assert.True(t, Negotiate("gzip, deflate, br"))
	assert.True(t, Negotiate("*"))
	assert.False(t, Negotiate("br"))
}

func TestCompress_RoundTrips(t *testing.T) {
	t.Parallel()

	c := Build()
	body := []byte(strings.Repeat("hello world ", 100))

	compressed, encoding, ok := c.Compress(body)
	require.True(t, ok)
	assert.Equal(t, "gzip", encoding)

	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	out, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, body, out)
}
