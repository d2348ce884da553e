package herrors

import (
	"fmt"
	"net/http"
)

// ConfigError reports an invalid option combination detected synchronously
// by the constructor (spec.md §7): e.g. h2c (cleartext HTTP/2) requested
// together with TLS, or TLS requested without both a certificate and a key
// file. Cleartext h2c on its own is accepted. No server is started when this
// is returned.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("hypersonic: invalid config for %q: %s", e.Option, e.Reason)
}

// HTTPStatus satisfies herrors.ErrorType for callers that want to render a
// ConfigError through a Formatter (e.g. an admin endpoint).
func (e *ConfigError) HTTPStatus() int { return http.StatusInternalServerError }

// CompileError reports a route-table inconsistency or specialization
// failure raised from Compile() (spec.md §7). Compile() must be called
// before Run(); a CompileError means Run() must not be called.
type CompileError struct {
	Method  string
	Pattern string
	Reason  string
}

func (e *CompileError) Error() string {
	if e.Method == "" && e.Pattern == "" {
		return fmt.Sprintf("hypersonic: compile failed: %s", e.Reason)
	}
	return fmt.Sprintf("hypersonic: compile failed for %s %s: %s", e.Method, e.Pattern, e.Reason)
}

func (e *CompileError) HTTPStatus() int { return http.StatusInternalServerError }

// DuplicateRouteError is a specific CompileError cause: two static routes
// were registered for the same exact (method, path), which spec.md §4.1
// requires be rejected at compile time.
func DuplicateRouteError(method, pattern string) *CompileError {
	return &CompileError{Method: method, Pattern: pattern, Reason: "duplicate static route"}
}

// InvalidPathError rejects a malformed route path (spec.md §4.1 "invalid
// paths → reject").
func InvalidPathError(method, pattern, reason string) *CompileError {
	return &CompileError{Method: method, Pattern: pattern, Reason: reason}
}
