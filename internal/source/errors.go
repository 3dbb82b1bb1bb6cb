package source

import (
	"errors"
	"fmt"
)

var (
	ErrBrowserUnavailable = errors.New("browser pool unavailable")
	ErrInvalidInput       = errors.New("invalid page input")
	ErrClosed             = errors.New("source closed")
)

// ErrorCode classifies source failures for callers that report or retry.
type ErrorCode string

const (
	ErrCodeFetch   ErrorCode = "FETCH"
	ErrCodeParse   ErrorCode = "PARSE"
	ErrCodeBrowser ErrorCode = "BROWSER"
	ErrCodeScript  ErrorCode = "SCRIPT"
	ErrCodeWatch   ErrorCode = "WATCH"
	ErrCodeInput   ErrorCode = "INPUT"
)

// Error wraps a failure with the source and page it came from.
type Error struct {
	Code       ErrorCode
	Source     string
	URL        string
	Underlying error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Code, e.Source)
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Underlying }

// Is matches another *Error by code, otherwise defers to the wrapped error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(code ErrorCode, src, url string, err error) *Error {
	return &Error{Code: code, Source: src, URL: url, Underlying: err}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Code, true
	}
	return "", false
}
