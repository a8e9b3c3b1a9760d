package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorClassTransient(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ClassRateLimited, true},
		{ClassTimeout, true},
		{ClassInvalidInput, false},
		{ClassContentRejected, false},
		{ClassUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			if got := tt.class.Transient(); got != tt.want {
				t.Errorf("Transient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassOf(t *testing.T) {
	t.Run("enrichment error", func(t *testing.T) {
		err := &EnrichmentError{Class: ClassRateLimited, Message: "slow down"}
		if got := ClassOf(err); got != ClassRateLimited {
			t.Errorf("ClassOf() = %v, want %v", got, ClassRateLimited)
		}
	})

	t.Run("wrapped enrichment error", func(t *testing.T) {
		err := fmt.Errorf("attempt 3: %w", &EnrichmentError{Class: ClassContentRejected, Message: "rejected"})
		if got := ClassOf(err); got != ClassContentRejected {
			t.Errorf("ClassOf() = %v, want %v", got, ClassContentRejected)
		}
	})

	t.Run("illustration error", func(t *testing.T) {
		err := &IllustrationError{Class: ClassInvalidInput, Message: "bad dims"}
		if got := ClassOf(err); got != ClassInvalidInput {
			t.Errorf("ClassOf() = %v, want %v", got, ClassInvalidInput)
		}
	})

	t.Run("deadline exceeded", func(t *testing.T) {
		if got := ClassOf(context.DeadlineExceeded); got != ClassTimeout {
			t.Errorf("ClassOf() = %v, want %v", got, ClassTimeout)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		if got := ClassOf(errors.New("boom")); got != ClassUnknown {
			t.Errorf("ClassOf() = %v, want %v", got, ClassUnknown)
		}
	})
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(&EnrichmentError{Class: ClassRateLimited}) {
		t.Error("rate-limited error should be transient")
	}
	if !IsTransient(&IllustrationError{Class: ClassTimeout}) {
		t.Error("timeout error should be transient")
	}
	if IsTransient(&EnrichmentError{Class: ClassContentRejected}) {
		t.Error("content-rejected error should not be transient")
	}
	if IsTransient(errors.New("boom")) {
		t.Error("unclassified error should not be transient")
	}
}

func TestRetryAfterOf(t *testing.T) {
	err := &EnrichmentError{Class: ClassRateLimited, RetryAfter: 7 * time.Second}
	if got := RetryAfterOf(err); got != 7*time.Second {
		t.Errorf("RetryAfterOf() = %v, want 7s", got)
	}
	if got := RetryAfterOf(errors.New("boom")); got != 0 {
		t.Errorf("RetryAfterOf() = %v, want 0", got)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorClass
	}{
		{429, ClassRateLimited},
		{408, ClassTimeout},
		{504, ClassTimeout},
		{400, ClassInvalidInput},
		{422, ClassInvalidInput},
		{413, ClassInvalidInput},
		{500, ClassTimeout},
		{503, ClassTimeout},
		{418, ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.code), func(t *testing.T) {
			if got := classifyStatus(tt.code); got != tt.want {
				t.Errorf("classifyStatus(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("30"); got != 30*time.Second {
		t.Errorf("parseRetryAfter(30) = %v", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(empty) = %v", got)
	}
	if got := parseRetryAfter("soon"); got != 0 {
		t.Errorf("parseRetryAfter(non-numeric) = %v", got)
	}
	if got := parseRetryAfter("-5"); got != 0 {
		t.Errorf("parseRetryAfter(negative) = %v", got)
	}
}
