package ollama

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies gateway failures.
type ErrorKind string

const (
	// KindTimeout means the call exceeded its deadline and was abandoned.
	KindTimeout ErrorKind = "timeout"
	// KindUpstream means the endpoint was unreachable or returned
	// malformed data.
	KindUpstream ErrorKind = "upstream"
	// KindConfiguration means the endpoint works but is not usable, e.g.
	// no models registered.
	KindConfiguration ErrorKind = "configuration"
)

// GatewayError is the error type returned by the Client.
type GatewayError struct {
	Kind ErrorKind
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("model gateway %s: %v", e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from an error chain, defaulting to
// KindUpstream for unrecognized errors.
func KindOf(err error) ErrorKind {
	var gw *GatewayError
	if errors.As(err, &gw) {
		return gw.Kind
	}
	return KindUpstream
}

func timeoutError(deadline time.Duration) error {
	return &GatewayError{
		Kind: KindTimeout,
		Err:  fmt.Errorf("call exceeded %s deadline", deadline),
	}
}

func upstreamError(err error) error {
	return &GatewayError{Kind: KindUpstream, Err: err}
}

func configurationError(err error) error {
	return &GatewayError{Kind: KindConfiguration, Err: err}
}
