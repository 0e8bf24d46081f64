package domain

import (
	"fmt"
	"strings"
)

// AuthError: the credential exchange failed. Fatal to the current operation
// for that user, recoverable on the next run.
type AuthError struct {
	Status int
	Body   string
	Msg    string
}

func (e *AuthError) Error() string {
	if e.Status == 0 {
		return "auth: " + e.Msg
	}
	return fmt.Sprintf("auth: %s (%d): %s", e.Msg, e.Status, snippet(e.Body))
}

// FetchError: a calendar read failed. Aborts that user's digest only.
type FetchError struct {
	Status int
	Body   string
	Msg    string
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return "fetch: " + e.Msg
	}
	return fmt.Sprintf("fetch: %s (%d): %s", e.Msg, e.Status, snippet(e.Body))
}

// ProviderError: an event create/update failed. Recorded per record.
type ProviderError struct {
	Status int
	Body   string
	Msg    string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s (%d)", e.Msg, e.Status)
}

// ValidationError: malformed input, rejected before any network call.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Msg
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 900 {
		return s
	}
	return s[:900] + "…"
}
