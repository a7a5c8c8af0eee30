package paint

import (
	"errors"
	"fmt"
)

var (
	// ErrOwnerLimit and ErrGlobalLimit are admission denials. They are
	// informational for the caller, never retried automatically.
	ErrOwnerLimit  = errors.New("owner pending task limit reached")
	ErrGlobalLimit = errors.New("global pending task limit reached")

	// ErrInvalidRequest means the remote service rejected the request
	// content itself (HTTP 410). Resubmitting the same input will not help.
	ErrInvalidRequest = errors.New("remote rejected the request content")

	// ErrAlreadyUpscaled guards against submitting the same upscale
	// operation twice for one image index.
	ErrAlreadyUpscaled = errors.New("image index already upscaled")
)

// SubmissionError is a transient submit failure. The caller may resubmit
// manually; nothing retries it automatically.
type SubmissionError struct {
	StatusCode int
	Message    string
}

func (e *SubmissionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("submission failed: http %d", e.StatusCode)
	}
	return fmt.Sprintf("submission failed: http %d: %s", e.StatusCode, e.Message)
}

// QueryError is a retriable status-query failure. It is consumed by the
// poller's retry budget and never surfaces to the original caller.
type QueryError struct {
	StatusCode int
	Err        error
}

func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("status query failed: %v", e.Err)
	}
	return fmt.Sprintf("status query failed: http %d", e.StatusCode)
}

func (e *QueryError) Unwrap() error { return e.Err }
