package command

import (
	"fmt"

	"scarify.ai/internal/protocol"
)

// Error is a command failure shown to the operator. Code is one of the
// protocol error codes.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func syntaxErrorf(format string, args ...any) *Error {
	return errorf(protocol.ErrBadRequest, format, args...)
}

var errUnknown = &Error{Code: protocol.ErrUnknownCommand, Message: "Unknown or incomplete command"}
