package trampoline

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Rendered is the fully-resolved response the trampoline hands to the
// dispatcher (internal/specialize) for writing with WriteResponse.
// Content-Type is derived here from the body's shape unless a Tuple's
// Headers already set one; Content-Length is always computed by
// WriteResponse, replacing any value a handler supplied.
type Rendered struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Tuple lets a handler return an explicit status/headers/body triple
// instead of a bare value, mirroring spec.md §4.5's "tuple or map-shaped
// response" allowance.
type Tuple struct {
	Status  int
	Headers map[string]string
	Cookies []*http.Cookie
	Body    any
}

// statusText pins the reason phrases for the common status codes; it is
// consulted only by StatusText. Status lines on the wire are written by
// net/http (WriteResponse calls w.WriteHeader), not from this table.
var statusText = map[int]string{
	http.StatusOK:                  "OK",
	http.StatusCreated:             "Created",
	http.StatusAccepted:            "Accepted",
	http.StatusNoContent:           "No Content",
	http.StatusMovedPermanently:    "Moved Permanently",
	http.StatusFound:               "Found",
	http.StatusNotModified:         "Not Modified",
	http.StatusBadRequest:          "Bad Request",
	http.StatusUnauthorized:        "Unauthorized",
	http.StatusForbidden:           "Forbidden",
	http.StatusNotFound:            "Not Found",
	http.StatusMethodNotAllowed:    "Method Not Allowed",
	http.StatusConflict:            "Conflict",
	http.StatusUnprocessableEntity: "Unprocessable Entity",
	http.StatusTooManyRequests:     "Too Many Requests",
	http.StatusInternalServerError: "Internal Server Error",
	http.StatusBadGateway:          "Bad Gateway",
	http.StatusServiceUnavailable:  "Service Unavailable",
	http.StatusGatewayTimeout:      "Gateway Timeout",
}

// StatusText returns the reason phrase for a status code, falling back to
// net/http's full table for codes Hypersonic doesn't pin ahead of time.
func StatusText(code int) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return http.StatusText(code)
}

// fixed500 is the byte-exact 500 response body spec.md §4.5 requires for a
// handler panic or error return: a constant, never built from the error's
// message (which may leak internals).
const fixed500 = "Internal Server Error"

// fixed400 is the 400 body for a request parse failure (spec.md §4.5
// step 6, §9's chunked-body rejection); BadRequest appends ": reason" to it
// when given a non-empty reason.
const fixed400 = "Bad Request"

// Render converts a handler's return value into a Rendered response.
// Supported shapes, checked in order: error (-> fixed 500), Tuple, []byte,
// string, and anything else via json.Marshal (spec.md §4.5's "plain value
// responses are JSON-encoded unless the handler already returned a string
// or []byte").
func Render(value any, err error) Rendered {
	if err != nil {
		return Rendered{
			Status:  http.StatusInternalServerError,
			Headers: http.Header{"Connection": []string{"close"}},
			Body:    []byte(fixed500),
		}
	}

	switch v := value.(type) {
	case Tuple:
		return renderTuple(v)
	case *Tuple:
		return renderTuple(*v)
	case []byte:
		return Rendered{Status: http.StatusOK, Headers: http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}}, Body: v}
	case string:
		return Rendered{Status: http.StatusOK, Headers: http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}}, Body: []byte(v)}
	case nil:
		return Rendered{Status: http.StatusNoContent, Headers: http.Header{}, Body: nil}
	default:
		body, marshalErr := json.Marshal(v)
		if marshalErr != nil {
			return Rendered{
				Status:  http.StatusInternalServerError,
				Headers: http.Header{"Connection": []string{"close"}},
				Body:    []byte(fixed500),
			}
		}
		return Rendered{Status: http.StatusOK, Headers: http.Header{"Content-Type": []string{"application/json; charset=utf-8"}}, Body: body}
	}
}

func renderTuple(t Tuple) Rendered {
	status := t.Status
	if status == 0 {
		status = http.StatusOK
	}

	headers := make(http.Header, len(t.Headers)+1)
	for k, v := range t.Headers {
		headers.Set(k, v)
	}
	for _, c := range t.Cookies {
		headers.Add("Set-Cookie", c.String())
	}

	var body []byte
	switch b := t.Body.(type) {
	case nil:
		// no body
	case []byte:
		body = b
		if headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", "text/plain; charset=utf-8")
		}
	case string:
		body = []byte(b)
		if headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", "text/plain; charset=utf-8")
		}
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return Rendered{
				Status:  http.StatusInternalServerError,
				Headers: http.Header{"Connection": []string{"close"}},
				Body:    []byte(fixed500),
			}
		}
		body = encoded
		if headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", "application/json; charset=utf-8")
		}
	}

	return Rendered{Status: status, Headers: headers, Body: body}
}

// BadRequest builds the fixed 400 response used when request parsing fails
// (malformed query string, chunked body, oversized payload).
func BadRequest(reason string) Rendered {
	h := http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}}
	if reason == "" {
		return Rendered{Status: http.StatusBadRequest, Headers: h, Body: []byte(fixed400)}
	}
	return Rendered{Status: http.StatusBadRequest, Headers: h, Body: []byte(fmt.Sprintf("%s: %s", fixed400, reason))}
}
