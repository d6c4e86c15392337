package compute

import "github.com/obsidianstack/statusroll/pkg/status"

// Damp returns the status to report for an observation, given how many red
// observations in a row (including this one) the node has produced.
//
// Red is softened to yellow until failureThreshold consecutive reds have been
// seen, so a single failed probe does not page anyone. Every other status
// passes through unchanged. A threshold of 1 or less disables damping.
func Damp(observed status.Status, consecutiveReds, failureThreshold int) status.Status {
	if observed == status.Red && consecutiveReds < failureThreshold {
		return status.Yellow
	}
	return observed
}
