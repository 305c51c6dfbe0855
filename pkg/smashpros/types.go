package smashpros

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultBaseURL is the users endpoint of the public API
const DefaultBaseURL = "https://smashpros.gg/api/users"

// ClientConfig holds configuration for the API client
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	UserAgent  string
}

// ErrorKind classifies a failed upstream call
type ErrorKind string

const (
	KindUnavailable     ErrorKind = "unavailable"
	KindInvalidResponse ErrorKind = "invalid_response"
)

// Error is returned when the upstream call cannot produce a JSON body
type Error struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("smashpros %s (status %d) %s: %v", e.Kind, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("smashpros %s %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Response is an upstream JSON body with its status code
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// OK reports whether the upstream answered with a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
