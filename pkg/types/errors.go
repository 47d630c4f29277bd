package types

import "fmt"

// TransportError reports a network, TLS or timeout failure during an HTTP exchange
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError reports a response with an unexpected status code
type RemoteError struct {
	URL        string
	StatusCode int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// DecodeError reports a response body that is not valid JSON or a feed
// entry that lacks a required field
type DecodeError struct {
	Field string // empty when the body itself could not be decoded
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("failed to decode field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RegistrationError wraps any failure of the registration request
type RegistrationError struct {
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to connect to update server: %v", e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }
