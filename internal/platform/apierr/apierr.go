package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRetrievalFailure: the search backend was unreachable, timed out, or
	// answered with something that could not be read.
	ErrRetrievalFailure = errors.New("retrieval failure")
	// ErrCacheUnavailable: the key-value cache could not be read or written,
	// or a cached value failed to decode.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrSnapshotFailure: a trend capture did not reach COMPLETED.
	ErrSnapshotFailure = errors.New("snapshot failure")
	// ErrInvalidInput: a caller supplied an unknown label, mode, or empty text.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstream: an external dependency other than search failed.
	ErrUpstream = errors.New("upstream failure")
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From maps an error chain onto an HTTP status and code.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return New(http.StatusBadRequest, "invalid_input", err)
	case errors.Is(err, ErrRetrievalFailure):
		return New(http.StatusServiceUnavailable, "retrieval_failed", err)
	case errors.Is(err, ErrSnapshotFailure):
		return New(http.StatusInternalServerError, "trend_capture_failed", err)
	case errors.Is(err, ErrUpstream):
		return New(http.StatusBadGateway, "upstream_failed", err)
	case errors.Is(err, ErrCacheUnavailable):
		return New(http.StatusServiceUnavailable, "cache_unavailable", err)
	default:
		return New(http.StatusInternalServerError, "internal", err)
	}
}
