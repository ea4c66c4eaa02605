package sender

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a send failure for the caller.
type ErrorKind string

const (
	// KindAuth means the provider rejected the credentials.
	KindAuth ErrorKind = "auth"
	// KindConnection means the provider could not be reached.
	KindConnection ErrorKind = "connection"
	// KindUnknown covers every other rejection.
	KindUnknown ErrorKind = "unknown"
)

// SendError is a provider rejection, classified so the caller can tell
// bad credentials from connectivity problems.
type SendError struct {
	Kind ErrorKind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed (%s): %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Classify returns the error's kind, or KindUnknown when err is not a
// SendError.
func Classify(err error) ErrorKind {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Kind
	}
	return KindUnknown
}
