package shipper

import (
	"fmt"

	"github.com/obsidianstack/statusroll/agent/internal/compute"
	"github.com/obsidianstack/statusroll/pkg/report"
)

// toReport converts a compute.Result into the wire report. When damping
// changed the status the raw observation is noted in the detail.
func toReport(res *compute.Result, source string) *report.Report {
	detail := res.Detail
	if res.Observed != res.Status {
		detail = fmt.Sprintf("%s (observed %s, %d consecutive)", detail, res.Observed, res.ConsecutiveReds)
	}
	return &report.Report{
		Node:       res.Node,
		Status:     res.Status,
		Source:     source,
		Detail:     fmt.Sprintf("%s; uptime %.0f%%", detail, res.UptimePct),
		ObservedAt: res.Timestamp,
	}
}
