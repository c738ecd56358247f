package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Sentinel errors, matched with errors.Is.
var (
	// ErrAuthenticationExpired is returned when the server rejects the
	// credential and the request could not be recovered by a refresh.
	ErrAuthenticationExpired = errors.New("authentication expired")

	// ErrAuthenticationInvalid is returned when the refresh token itself was
	// rejected. The session has been cleared.
	ErrAuthenticationInvalid = errors.New("authentication invalid")

	// ErrNetworkFailure is returned when no response was received.
	ErrNetworkFailure = errors.New("network failure")

	// ErrValidationFailure is returned for non-2xx responses carrying a
	// structured error payload.
	ErrValidationFailure = errors.New("validation failure")

	// ErrUnexpectedStatus is returned for any other non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// NetworkError wraps a transport level failure.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	return []error{ErrNetworkFailure, e.Err}
}

// ResponseError is a non-2xx response from the API server.
type ResponseError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte

	// Detail is the "detail" message of the payload, if any.
	Detail string
	// Fields holds per-field messages, e.g. {"sku": ["already exists"]}.
	Fields map[string][]string
}

func newResponseError(method, path string, statusCode int, body []byte) *ResponseError {
	e := &ResponseError{
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Body:       body,
	}
	e.decodePayload()
	return e
}

func (e *ResponseError) Error() string {
	msg := e.Message()
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Unwrap classifies the error for errors.Is.
func (e *ResponseError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrAuthenticationExpired
	case e.Detail != "" || len(e.Fields) > 0:
		return ErrValidationFailure
	default:
		return ErrUnexpectedStatus
	}
}

// Message renders the most useful message from the payload: the detail if
// present, otherwise the first field error. Account fields are prefixed
// with their name, e.g. "Username: A user with that username already exists."
func (e *ResponseError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if len(e.Fields) == 0 {
		return ""
	}
	if msgs := e.Fields["non_field_errors"]; len(msgs) > 0 {
		return msgs[0]
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := keys[0]

	var msg string
	if msgs := e.Fields[key]; len(msgs) > 0 {
		msg = msgs[0]
	}

	switch key {
	case "username", "email", "password":
		return strings.ToUpper(key[:1]) + key[1:] + ": " + msg
	default:
		return key + ": " + msg
	}
}

// decodePayload extracts detail and field errors from a JSON object body.
// Field values may be a string, a list of strings or anything else, which
// is kept in its JSON form.
func (e *ResponseError) decodePayload() {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(e.Body, &payload); err != nil {
		return
	}

	for key, raw := range payload {
		if key == "detail" {
			var detail string
			if err := json.Unmarshal(raw, &detail); err == nil {
				e.Detail = detail
				continue
			}
		}

		if e.Fields == nil {
			e.Fields = make(map[string][]string)
		}

		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			e.Fields[key] = list
			continue
		}

		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			e.Fields[key] = []string{single}
			continue
		}

		e.Fields[key] = []string{string(raw)}
	}
}

// IsAuthError reports whether err means the user has to log in again.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthenticationExpired) || errors.Is(err, ErrAuthenticationInvalid)
}

// RefreshError is returned when a rejected request could not be recovered
// because the refresh itself failed. The session has been cleared.
type RefreshError struct {
	// Original is the 401 that started the refresh.
	Original error
	Err      error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("session refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() []error {
	return []error{ErrAuthenticationInvalid, e.Original, e.Err}
}
