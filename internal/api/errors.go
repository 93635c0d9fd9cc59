package api

import "fmt"

// AuthError reports rejected or expired credentials. Any component seeing
// one collapses the session to logout.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return e.Message
}

// TransportError reports a network or socket level failure. Non-fatal: the
// event channel handles it by reconnecting, unary callers may retry.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError reports a non-2xx application response. Message carries the
// authority's error body verbatim when present, for user display.
type RemoteError struct {
	Message    string
	StatusCode int
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("remote error: http %d", e.StatusCode)
}
