package service

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned when an upstream API responds with a non-success
// status code (after any retries have been exhausted).
type APIError struct {
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP code %d for %s", e.StatusCode, e.URL)
}

// IsNotFound reports whether err is an upstream 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// PostIDError is returned when a ballot's post reference is missing or not
// in the expected gss-prefixed form. It is recoverable at the per-ballot
// level: the orchestrator logs it, skips the ballot and carries on.
type PostIDError struct {
	BallotPaperID string
	PostID        string
}

func (e *PostIDError) Error() string {
	if e.PostID == "" {
		return fmt.Sprintf("no post ID found for ballot %s", e.BallotPaperID)
	}
	return fmt.Sprintf("post ID %s is not a GSS code - for ballot %s", e.PostID, e.BallotPaperID)
}
