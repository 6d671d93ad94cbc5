// Package status maps vendor-specific status vocabulary onto the canonical
// states both completion-detection paths agree on.
package status

import "strings"

// Canonical is the normalized state vocabulary shared by the poller and the
// callback ingester.
type Canonical string

const (
	// CanonicalRunning indicates the job is still in progress.
	CanonicalRunning Canonical = "running"
	// CanonicalSuccess indicates the provider produced a result.
	CanonicalSuccess Canonical = "success"
	// CanonicalFailed indicates the provider reported a failure.
	CanonicalFailed Canonical = "failed"
)

// Terminal reports whether the canonical state ends the job lifecycle.
func (c Canonical) Terminal() bool {
	return c == CanonicalSuccess || c == CanonicalFailed
}

// Vendor spellings are non-exhaustive; the sets below cover the documented
// ones. Anything unrecognized normalizes to running so a new in-progress
// spelling is never mistaken for a failure.
var (
	successSpellings = map[string]struct{}{
		"succeed":   {},
		"succeeded": {},
		"success":   {},
		"done":      {},
		"completed": {},
		"complete":  {},
		"finished":  {},
	}
	failedSpellings = map[string]struct{}{
		"error":     {},
		"errored":   {},
		"fail":      {},
		"failed":    {},
		"failure":   {},
		"canceled":  {},
		"cancelled": {},
		"revoked":   {},
		"rejected":  {},
	}
)

// Normalize maps a raw provider status string to a canonical state. It is
// case-insensitive and side-effect-free.
func Normalize(raw string) Canonical {
	s := strings.ToLower(strings.TrimSpace(raw))
	if _, ok := successSpellings[s]; ok {
		return CanonicalSuccess
	}
	if _, ok := failedSpellings[s]; ok {
		return CanonicalFailed
	}
	return CanonicalRunning
}
