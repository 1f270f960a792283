package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMalformedResponse marks a 2xx response whose body does not have the expected shape.
var ErrMalformedResponse = errors.New("malformed response")

// RemoteError is a network failure or non-success response from the service.
type RemoteError struct {
	Op         string // Operation name (e.g., "add card")
	Method     string
	URL        string
	StatusCode int    // 0 for transport failures
	Detail     string // Service-provided detail, if any
	Err        error
}

// Error implements the error interface for RemoteError.
func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Detail != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Detail)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": remote error"
}

// Unwrap returns the underlying transport or decode error.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether err is or wraps a RemoteError.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

// IsNotFound returns true if err is a RemoteError for an HTTP 404.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.StatusCode == http.StatusNotFound
}

// StatusCode extracts the HTTP status of a RemoteError, or 0.
func StatusCode(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}

// parseDetail pulls a human-readable message out of an error body.
// The service answers {"detail": "..."} or, for request validation, {"detail": [{"msg": ...}]}.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return strings.TrimSpace(truncate(string(body), 200))
	}

	if len(envelope.Detail) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return envelope.Error
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
