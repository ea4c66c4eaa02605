package mailbox

import (
	"errors"
	"fmt"
)

// AuthError indicates the remote mailbox rejected the supplied
// credentials. It is returned before any session state exists, so a
// caller seeing it must not create or mutate persisted identity.
type AuthError struct {
	User    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.User, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ConnectionError indicates a transport-level failure reaching the
// remote mailbox. It is surfaced verbatim; retry policy belongs to the
// caller.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err chains to a ConnectionError.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// ProtocolError indicates the remote store rejected an operation on an
// established session (select, fetch, flag store).
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
