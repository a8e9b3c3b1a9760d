package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ErrorClass categorizes a generative-service failure for retry decisions.
type ErrorClass string

const (
	ClassRateLimited     ErrorClass = "rate_limited"
	ClassInvalidInput    ErrorClass = "invalid_input"
	ClassTimeout         ErrorClass = "timeout"
	ClassContentRejected ErrorClass = "content_rejected"
	ClassUnknown         ErrorClass = "unknown"
)

// Transient reports whether failures of this class are worth retrying.
func (c ErrorClass) Transient() bool {
	return c == ClassRateLimited || c == ClassTimeout
}

// EnrichmentError is a classified failure from the text-enrichment service.
type EnrichmentError struct {
	Class      ErrorClass
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *EnrichmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("enrichment %s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("enrichment %s: %s", e.Class, e.Message)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// IllustrationError is a classified failure from the image-generation service.
type IllustrationError struct {
	Class      ErrorClass
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *IllustrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("illustration %s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("illustration %s: %s", e.Class, e.Message)
}

func (e *IllustrationError) Unwrap() error { return e.Err }

// ClassOf extracts the error class from a classified provider error.
// Unclassified errors report ClassUnknown.
func ClassOf(err error) ErrorClass {
	var ee *EnrichmentError
	if errors.As(err, &ee) {
		return ee.Class
	}
	var ie *IllustrationError
	if errors.As(err, &ie) {
		return ie.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	return ClassUnknown
}

// IsTransient reports whether the error should be retried with backoff.
func IsTransient(err error) bool {
	return ClassOf(err).Transient()
}

// RetryAfterOf returns the server-requested backoff, if any.
func RetryAfterOf(err error) time.Duration {
	var ee *EnrichmentError
	if errors.As(err, &ee) {
		return ee.RetryAfter
	}
	var ie *IllustrationError
	if errors.As(err, &ie) {
		return ie.RetryAfter
	}
	return 0
}

// classifyStatus maps an HTTP status code to an error class. Server errors
// count as transient.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ClassRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ClassTimeout
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity ||
		code == http.StatusRequestEntityTooLarge:
		return ClassInvalidInput
	case code >= 500:
		return ClassTimeout
	default:
		return ClassUnknown
	}
}

// parseRetryAfter parses a Retry-After header value in seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
