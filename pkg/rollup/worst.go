package rollup

import "github.com/obsidianstack/statusroll/pkg/status"

// WorstStatus returns the most severe input.
//
// The running maximum starts at Green and is only raised by a strictly more
// severe input, so Unknown inputs never affect the result and a non-empty
// all-Unknown input yields Green.
type WorstStatus struct{}

// Name implements Rule.
func (WorstStatus) Name() string { return NameWorstStatus }

// Compute implements Rule.
func (WorstStatus) Compute(inputs []status.Status) status.Status {
	if len(inputs) == 0 {
		return status.Unknown
	}
	worst := status.Green
	for _, s := range inputs {
		if s.Worse(worst) {
			worst = s
		}
	}
	return worst
}
