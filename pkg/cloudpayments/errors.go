package cloudpayments

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRetriable matches every error worth repeating the request for.
	ErrRetriable = errors.New("retriable")
	// ErrFatal matches every error that must abort the run.
	ErrFatal = errors.New("fatal")
)

const maxBodyInError = 512

func truncate(body []byte) string {
	if len(body) <= maxBodyInError {
		return string(body)
	}
	return string(body[:maxBodyInError]) + "..."
}

// RetriableHTTPError is a 5xx or configured extra retry status.
type RetriableHTTPError struct {
	StatusCode int
	Body       string
}

func (e *RetriableHTTPError) Error() string {
	return fmt.Sprintf("retriable HTTP status %d: %s", e.StatusCode, e.Body)
}

func (e *RetriableHTTPError) Is(target error) bool { return target == ErrRetriable }

func (e *RetriableHTTPError) Retriable() bool { return true }

// FatalHTTPError is a 4xx status that is not configured for retry.
type FatalHTTPError struct {
	StatusCode int
	Body       string
}

func (e *FatalHTTPError) Error() string {
	return fmt.Sprintf("fatal HTTP status %d: %s", e.StatusCode, e.Body)
}

func (e *FatalHTTPError) Is(target error) bool { return target == ErrFatal }

// FatalBusinessError is a 2xx response whose payload reports Success=false.
type FatalBusinessError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *FatalBusinessError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API reported failure (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API reported failure (status %d): %s", e.StatusCode, e.Body)
}

func (e *FatalBusinessError) Is(target error) bool { return target == ErrFatal }

// AttemptTimeoutError is returned when a single attempt exceeds the per-attempt timeout while
// the caller's context is still live.
type AttemptTimeoutError struct {
	Timeout time.Duration
	Err     error
}

func (e *AttemptTimeoutError) Error() string {
	return fmt.Sprintf("attempt timed out after %s: %v", e.Timeout, e.Err)
}

func (e *AttemptTimeoutError) Unwrap() error { return e.Err }

func (e *AttemptTimeoutError) Is(target error) bool { return target == ErrRetriable }

func (e *AttemptTimeoutError) Retriable() bool { return true }

// TransportError is a failure to exchange the request at all (DNS, connection reset, ...).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrRetriable }

func (e *TransportError) Retriable() bool { return true }

// DecodeError is a successful response whose body cannot be parsed.
type DecodeError struct {
	Body string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v: %s", e.Err, e.Body)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrFatal }
