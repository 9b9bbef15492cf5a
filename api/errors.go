package api

import (
	"encoding/json"
	"fmt"
)

// APIError is a non-2xx response from the service, carrying the remote
// message when one was supplied.
type APIError struct {
	Status  int
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%v %v returned status %v: %v", e.Method, e.Path, e.Status, e.Message)
}

// HTTPStatus lets the retry executor classify this error by status code.
func (e *APIError) HTTPStatus() int {
	return e.Status
}

// remoteError is the error envelope the service returns.
type remoteError struct {
	Message string `json:"Message"`
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{
		Status: status,
		Method: method,
		Path:   path,
	}

	var remote remoteError
	if err := json.Unmarshal(body, &remote); err == nil && remote.Message != "" {
		e.Message = remote.Message
	} else if len(body) > 0 {
		e.Message = truncate(string(body), 512)
	} else {
		e.Message = "no response body"
	}
	return e
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ValidationError is returned when a record type is rejected before any HTTP
// request is issued.
type ValidationError struct {
	RecordType string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record type %q is not valid on this instance", e.RecordType)
}
