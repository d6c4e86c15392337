package rollup

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/obsidianstack/statusroll/pkg/status"
)

// Rule names as they appear in configuration.
const (
	NameWorstStatus     = "worst_status"
	NameThresholdRollup = "threshold_rollup"
	NameMajorityVote    = "majority_vote"
)

var (
	// ErrUnknownRule is returned by New for an unregistered rule name.
	ErrUnknownRule = errors.New("unknown rule")

	// ErrInvalidParams is returned by New when a parameter has the wrong type
	// or a negative value.
	ErrInvalidParams = errors.New("invalid rule params")
)

// Rule reduces an ordered sequence of child statuses to one status.
// Compute must be total, deterministic and free of side effects.
type Rule interface {
	Name() string
	Compute(inputs []status.Status) status.Status
}

// Params is the untyped parameter map attached to a derived node.
type Params map[string]any

type constructor func(Params) (Rule, error)

var registry = map[string]constructor{
	NameWorstStatus:     func(Params) (Rule, error) { return WorstStatus{}, nil },
	NameThresholdRollup: newThresholdRollup,
	NameMajorityVote:    func(Params) (Rule, error) { return MajorityVote{}, nil },
}

// New constructs the rule registered under name. params may be nil.
func New(name string, params Params) (Rule, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w %q: want one of %v", ErrUnknownRule, name, Names())
	}
	return ctor(params)
}

// Names returns the registered rule names in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// intParam reads a non-negative integer parameter, falling back to def when
// the key is absent.
func intParam(p Params, key string, def int) (int, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return def, nil
	}

	var v int64
	switch n := raw.(type) {
	case int:
		v = int64(n)
	case int8:
		v = int64(n)
	case int16:
		v = int64(n)
	case int32:
		v = int64(n)
	case int64:
		v = n
	case uint:
		v = int64(n)
	case uint8:
		v = int64(n)
	case uint16:
		v = int64(n)
	case uint32:
		v = int64(n)
	case uint64:
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %s=%d is too large", ErrInvalidParams, key, n)
		}
		v = int64(n)
	case float32:
		return intParam(Params{key: float64(n)}, key, def)
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, fmt.Errorf("%w: %s=%v is not an integer", ErrInvalidParams, key, n)
		}
		if n > math.MaxInt32 || n < math.MinInt32 {
			return 0, fmt.Errorf("%w: %s=%v is out of range", ErrInvalidParams, key, n)
		}
		v = int64(n)
	default:
		return 0, fmt.Errorf("%w: %s has type %T, want integer", ErrInvalidParams, key, raw)
	}

	if v < 0 {
		return 0, fmt.Errorf("%w: %s=%d must not be negative", ErrInvalidParams, key, v)
	}
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s=%d is too large", ErrInvalidParams, key, v)
	}
	return int(v), nil
}
