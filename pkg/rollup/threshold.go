package rollup

import (
	"fmt"

	"github.com/obsidianstack/statusroll/pkg/status"
)

// Defaults applied by New for threshold_rollup parameters that are absent.
const (
	DefaultRedThreshold   = 1
	DefaultYellowToYellow = 1
	DefaultYellowToRed    = 2
)

// ThresholdRollup escalates based on how many children are red or yellow.
//
// Checks run in a fixed order and the first match wins:
//
//	reds    >= RedThreshold    → Red
//	yellows >= YellowToRed     → Red
//	yellows >= YellowToYellow  → Yellow
//	otherwise                  → Green
//
// Green and Unknown inputs are not counted.
type ThresholdRollup struct {
	RedThreshold   int
	YellowToYellow int
	YellowToRed    int
}

func newThresholdRollup(p Params) (Rule, error) {
	var (
		r   ThresholdRollup
		err error
	)
	if r.RedThreshold, err = intParam(p, "red_threshold", DefaultRedThreshold); err != nil {
		return nil, err
	}
	if r.YellowToYellow, err = intParam(p, "yellow_to_yellow", DefaultYellowToYellow); err != nil {
		return nil, err
	}
	if r.YellowToRed, err = intParam(p, "yellow_to_red", DefaultYellowToRed); err != nil {
		return nil, err
	}
	return r, nil
}

// Name implements Rule.
func (ThresholdRollup) Name() string { return NameThresholdRollup }

// Compute implements Rule.
func (r ThresholdRollup) Compute(inputs []status.Status) status.Status {
	if len(inputs) == 0 {
		return status.Unknown
	}

	var reds, yellows int
	for _, s := range inputs {
		switch s {
		case status.Red:
			reds++
		case status.Yellow:
			yellows++
		}
	}

	switch {
	case reds >= r.RedThreshold:
		return status.Red
	case yellows >= r.YellowToRed:
		return status.Red
	case yellows >= r.YellowToYellow:
		return status.Yellow
	default:
		return status.Green
	}
}

// Params returns the effective parameters in configuration form.
func (r ThresholdRollup) Params() Params {
	return Params{
		"red_threshold":    r.RedThreshold,
		"yellow_to_yellow": r.YellowToYellow,
		"yellow_to_red":    r.YellowToRed,
	}
}

func (r ThresholdRollup) String() string {
	return fmt.Sprintf("%s(red_threshold=%d, yellow_to_yellow=%d, yellow_to_red=%d)",
		NameThresholdRollup, r.RedThreshold, r.YellowToYellow, r.YellowToRed)
}
