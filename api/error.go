package api

import (
	"fmt"
	"strings"
)

//ErrorType are APIError types
type ErrorType int

//ErrorTypes
const (
	ErrorTypeUser ErrorType = iota
	ErrorTypeServer
	ErrorTypeUpstream
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeUser:
		return "User Error"
	case ErrorTypeUpstream:
		return "Upstream Error"
	default:
		return "Server Error"
	}
}

//Error wraps errors in the API. Status is the upstream HTTP status for ErrorTypeUpstream
//errors (0 if the upstream could not be reached). Fields holds per-field validation messages
//for ErrorTypeUser errors.
type Error struct {
	Description string
	Type        ErrorType
	Status      int
	Fields      map[string][]string
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Type.String())
	b.WriteString(": ")
	b.WriteString(e.Description)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

//UpstreamError returns an *Error for a failed upstream call
func UpstreamError(description string, status int, err error) *Error {
	return &Error{Description: description, Type: ErrorTypeUpstream, Status: status, Err: err}
}
