package models

import (
	"errors"
	"strings"
)

// Sentinel errors for the failure taxonomy. Call sites wrap these with
// fmt.Errorf("...: %w", err) so errors.Is keeps working across layers.
var (
	// ErrInvalidIdentifier means no canonical video identifier could be
	// extracted from the input.
	ErrInvalidIdentifier = errors.New("invalid video identifier")

	// ErrTranscriptUnavailable means the captioning source returned no
	// usable transcript after all retries.
	ErrTranscriptUnavailable = errors.New("transcript unavailable")

	// ErrVideoNotFound means the video does not exist at the source.
	ErrVideoNotFound = errors.New("video not found")

	// ErrIndexingFailed means embedding or storage failed during indexing.
	// Recovery is a full re-index, not a resume.
	ErrIndexingFailed = errors.New("indexing failed")

	// ErrQueryFailed means the namespace does not exist or the backing
	// query call errored.
	ErrQueryFailed = errors.New("query failed")

	// ErrRequestTimeout means the overall request budget was exceeded.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrAdmissionDenied means the rate limiter rejected the request.
	ErrAdmissionDenied = errors.New("rate limit exceeded")

	// ErrValidationFailed means the inbound request failed validation.
	ErrValidationFailed = errors.New("validation failed")
)

// safePatterns is the allowlist of substrings an externally visible
// error message may contain. Anything else is replaced with a generic
// message; full detail stays in server-side logs.
var safePatterns = []string{
	"rate limit",
	"validation",
	"invalid",
	"not found",
	"unavailable",
	"timeout",
	"too long",
	"too many",
}

// genericErrorMessage replaces messages that fail the allowlist.
const genericErrorMessage = "an internal error occurred while processing your request"

// SafeMessage returns an error message suitable for external callers.
func SafeMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, p := range safePatterns {
		if strings.Contains(lower, p) {
			return msg
		}
	}
	return genericErrorMessage
}
