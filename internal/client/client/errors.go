package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable = errors.New("server unavailable")
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("invalid request")
	ErrBadResponse = errors.New("unexpected response")
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Op         string
	Status     int
	StatusText string
	Detail     string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.StatusText)
	if e.Detail != "" {
		msg += " - " + e.Detail
	}
	return msg
}

// Is maps the status onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrValidation:
		return e.Status == http.StatusBadRequest
	case ErrUnavailable:
		return e.Status >= http.StatusInternalServerError
	}
	return false
}

// Message returns the text worth showing to a user: the server detail when
// there is one, otherwise the error itself.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}
