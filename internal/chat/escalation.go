// Package chat implements the conversation orchestration pipeline: order
// context resolution, escalation, reply generation with fallbacks, and
// persistence of conversation turns.
package chat

import "strings"

// sensitiveMarkers are case-insensitive substrings that force a hand-off to
// a human agent.
var sensitiveMarkers = []string{"credit card", "password", "ssn"}

// ShouldEscalate decides whether a turn must be handed to a human agent:
// either the message touches a sensitive topic, or the caller named an order
// explicitly and resolution failed entirely.
func ShouldEscalate(message string, explicitRef, resolved bool) bool {
	lower := strings.ToLower(message)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return explicitRef && !resolved
}
