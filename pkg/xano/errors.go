package xano

import (
	"fmt"
	"net/http"
	"strings"

	"muebles/internal/models"
)

// HTTPError is a non-2xx answer from the upstream API.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream responded %d", e.Status)
	}
	return fmt.Sprintf("upstream responded %d: %s", e.Status, e.Message)
}

// Is classifies upstream statuses onto domain errors. 404 is deliberately
// not mapped: upstream 404s mostly mean "wrong path", not "no such order".
func (e *HTTPError) Is(target error) bool {
	switch e.Status {
	case http.StatusUnauthorized:
		return target == models.ErrUnauthenticated
	case http.StatusForbidden:
		return target == models.ErrForbidden
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return target == models.ErrValidation
	}
	if e.Status >= 500 {
		return target == models.ErrUpstreamUnavailable
	}
	return false
}

// Attempt records one probed candidate and how it ended.
type Attempt struct {
	Candidate Candidate
	URL       string
	Outcome   Outcome
	Err       error
}

// ExhaustedError is returned by write operations when every candidate failed
// for endpoint-shape reasons. It unwraps to the last failure.
type ExhaustedError struct {
	Op       string
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		reason := "ok"
		if a.Err != nil {
			reason = a.Err.Error()
		}
		parts = append(parts, fmt.Sprintf("%s %s (%s)", a.Candidate.Method, a.URL, reason))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s: no upstream endpoint configured", e.Op)
	}
	return fmt.Sprintf("%s: all upstream endpoints failed: %s", e.Op, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Is(target error) bool {
	return target == models.ErrUpstreamUnavailable
}

func (e *ExhaustedError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}
