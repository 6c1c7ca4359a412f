package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Error is a non-2xx response from the backend.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// StatusCode extracts the HTTP status of an *Error anywhere in err's chain,
// or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// errorFromResponse reads the backend's detail field. FastAPI validation
// failures send detail as a list of {msg} objects.
func errorFromResponse(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &Error{StatusCode: resp.StatusCode}
	if !gjson.ValidBytes(body) {
		return apiErr
	}
	detail := gjson.GetBytes(body, "detail")
	switch {
	case detail.Type == gjson.String:
		apiErr.Detail = detail.Str
	case detail.IsArray():
		var msgs []string
		for _, item := range detail.Array() {
			if msg := item.Get("msg").String(); msg != "" {
				msgs = append(msgs, msg)
			}
		}
		apiErr.Detail = strings.Join(msgs, "; ")
	}
	return apiErr
}

// ValidationError reports client-side input problems per field. It is
// returned before any request is made.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

type fieldErrors map[string]string

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}
