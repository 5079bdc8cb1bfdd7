package kie

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// UnavailableError means the provider could not be reached at all
// (connection refused, timeout, DNS). The request may never have been seen.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("kie unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// ProtocolError means the provider answered with something we cannot
// interpret: a non-2xx status or a body that is not the expected JSON.
// Raw status and body are kept for diagnostics.
type ProtocolError struct {
	StatusCode int
	Body       string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("kie protocol error: status=%d body=%s", e.StatusCode, e.Body)
}

// RejectedError means the provider understood the request and refused it.
// The message is kept verbatim; callers inspect it to decide whether the
// rejection is user-correctable.
type RejectedError struct {
	Code    int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("kie rejected task: code=%d msg=%s", e.Code, e.Message)
}

// AdapterError means the request could not be shaped into a provider payload
// at all; nothing was sent anywhere.
type AdapterError struct {
	Reason string
}

func (e *AdapterError) Error() string {
	return "adapter: " + e.Reason
}

// validationMarkers are substrings the provider is known to emit for
// client-correctable rejections (bad prompt, unsupported size, too many
// references). Everything else is treated as a retry-later failure.
var validationMarkers = []string{
	"invalid",
	"unsupported",
	"prompt",
	"image_urls",
	"image size",
	"aspect",
	"parameter",
	"violate",
	"policy",
}

// IsValidationMessage reports whether a rejection message looks like a
// validation failure the end user can fix.
func IsValidationMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range validationMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return truncateRunes(s, limit) + "…"
}
