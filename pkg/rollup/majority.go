package rollup

import "github.com/obsidianstack/statusroll/pkg/status"

// MajorityVote returns the colour with the most votes.
//
// Unknown votes are dropped. Buckets are scanned in the order Green, Yellow,
// Red starting from (Green, 0) and the leader is replaced only on a strictly
// higher count. Ties therefore go to the earliest colour in scan order: any
// tie involving Green yields Green, a Yellow/Red tie yields Yellow, and a
// non-empty all-Unknown input yields Green.
type MajorityVote struct{}

// Name implements Rule.
func (MajorityVote) Name() string { return NameMajorityVote }

// Compute implements Rule.
func (MajorityVote) Compute(inputs []status.Status) status.Status {
	if len(inputs) == 0 {
		return status.Unknown
	}

	var votes [3]int
	for _, s := range inputs {
		if s.Severe() {
			votes[s]++
		}
	}

	leader, most := status.Green, 0
	for _, s := range []status.Status{status.Green, status.Yellow, status.Red} {
		if votes[s] > most {
			leader, most = s, votes[s]
		}
	}
	return leader
}
