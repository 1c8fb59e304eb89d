package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrNoResponse means the backend could not be reached at all.
	ErrNoResponse   = errors.New("no response from backend")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is a response with a non-success status.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// BackendMessage is the human readable message from the response body, if any.
func (e *Error) BackendMessage() string {
	return e.Message
}

func decodeError(resp *http.Response) *Error {
	e := &Error{StatusCode: resp.StatusCode}

	b, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(b) == 0 {
		return e
	}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil {
		e.Message = body.Message
		if e.Message == "" {
			e.Message = body.Error
		}
		return e
	}

	e.Message = strings.TrimSpace(string(b))
	return e
}
