package client

import "fmt"

// TransportError means the remote service was unreachable or answered with a non-2xx status.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("request to %s failed: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolShapeError means the response carried no recognized message field.
type ProtocolShapeError struct {
	Body string
}

func (e *ProtocolShapeError) Error() string {
	return fmt.Sprintf("unrecognized response shape: %s", e.Body)
}
