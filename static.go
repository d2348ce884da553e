package hypersonic

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/hypersonic-dev/hypersonic/internal/trampoline"
)

// StaticOption configures a Static registration.
type StaticOption func(*staticConfig)

type staticConfig struct {
	cacheControl string
	etag         bool
}

func defaultStaticConfig() *staticConfig {
	return &staticConfig{cacheControl: "public, max-age=3600", etag: true}
}

// WithCacheControl overrides the Cache-Control header value served for every
// file under the prefix. Default: "public, max-age=3600".
func WithCacheControl(value string) StaticOption {
	return func(c *staticConfig) { c.cacheControl = value }
}

// WithETag enables or disables the ETag header (MD5 hex of file contents).
// Default: enabled.
func WithETag(enabled bool) StaticOption {
	return func(c *staticConfig) { c.etag = enabled }
}

// Static walks dir at registration time and registers one literal GET route
// per file found, each with its full response precomputed — content-type
// resolved by extension, optional Cache-Control and ETag — per spec.md
// §4.7's static(prefix, dir, opts) contract. Unlike the teacher's Static
// (which wraps http.FileServer and stats the filesystem per request),
// Hypersonic's specialize.Compile step folds each file into a frozen
// constant response the same way it does for any other static route, so
// Static must be called before Compile and the directory must not change
// afterward.
func (s *Server) Static(prefix, dir string, opts ...StaticOption) error {
	cfg := defaultStaticConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	prefix = "/" + trimSlashes(prefix)

	return filepath.WalkDir(dir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, filePath)
		if err != nil {
			return err
		}
		routePath := path.Join(prefix, filepath.ToSlash(rel))

		body, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}

		contentType := mime.TypeByExtension(filepath.Ext(filePath))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		headers := http.Header{"Content-Type": []string{contentType}}
		if cfg.cacheControl != "" {
			headers.Set("Cache-Control", cfg.cacheControl)
		}
		if cfg.etag {
			sum := md5.Sum(body)
			headers.Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
		}

		handler := staticFileHandler(body, headers)
		if err := s.registerRoute(http.MethodGet, routePath, handler, nil); err != nil {
			return fmt.Errorf("hypersonic: static file %q: %w", filePath, err)
		}
		return nil
	})
}

func staticFileHandler(body []byte, headers http.Header) trampoline.HandlerFunc {
	return func(req *trampoline.Request) (any, error) {
		return trampoline.Tuple{
			Status:  http.StatusOK,
			Headers: flattenHeader(headers),
			Body:    body,
		}, nil
	}
}

func flattenHeader(h http.Header) map[string]string {
	flat := make(map[string]string, len(h))
	for k := range h {
		flat[k] = h.Get(k)
	}
	return flat
}

func trimSlashes(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
