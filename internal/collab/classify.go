// internal/collab/classify.go
package collab

import "strings"

// Class buckets a collaborator failure. The engine never retries a
// language-generation call on the collaborator's behalf; the class tells
// the caller whether offering the same turn again is likely to help.
type Class int

const (
	// ClassTransient covers connection and timeout failures; the same
	// turn can be offered again.
	ClassTransient Class = iota
	// ClassPermanent covers auth and validation failures; retrying the
	// same input will not help.
	ClassPermanent
)

// Classify inspects an error message and buckets it. Unknown errors
// default to transient so a flaky backend never wedges a session.
func Classify(err error) Class {
	if err == nil {
		return ClassTransient
	}
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary failure") {
		return ClassTransient
	}

	if strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden") {
		return ClassPermanent
	}

	return ClassTransient
}
