package render

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed render. The values double as bridge error codes.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "TIMEOUT"
	KindLoad      ErrorKind = "LOAD_ERROR"
	KindCancelled ErrorKind = "CANCELLED"
)

var (
	// ErrTimeout matches renders that exceeded their budget
	ErrTimeout = errors.New("render timed out")
	// ErrLoad matches engine-reported navigation failures
	ErrLoad = errors.New("page load failed")
	// ErrCancelled matches renders abandoned by the caller
	ErrCancelled = errors.New("render cancelled")
)

// RenderError is the terminal error of a render session
type RenderError struct {
	Kind        ErrorKind
	URL         string
	Description string
	Err         error
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.sentinel().Error(), e.URL)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel for the error's kind
func (e *RenderError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func (e *RenderError) sentinel() error {
	switch e.Kind {
	case KindTimeout:
		return ErrTimeout
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrLoad
	}
}

func newTimeoutError(url string, budget fmt.Stringer) *RenderError {
	return &RenderError{Kind: KindTimeout, URL: url, Description: "no result within " + budget.String()}
}

func newLoadError(url, description string, err error) *RenderError {
	if description == "" {
		description = "browser load failed"
	}
	return &RenderError{Kind: KindLoad, URL: url, Description: description, Err: err}
}

// KindOf returns the kind of a RenderError anywhere in err's chain, or "" when there is none
func KindOf(err error) ErrorKind {
	var renderErr *RenderError
	if errors.As(err, &renderErr) {
		return renderErr.Kind
	}
	return ""
}
