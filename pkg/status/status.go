package status

import "fmt"

// Status is a node's health value.
type Status uint8

// The numeric values double as the severity order for the three colours.
const (
	Green Status = iota
	Yellow
	Red
	Unknown
)

// All lists the four values in declaration order.
var All = []Status{Green, Yellow, Red, Unknown}

// Parse maps "green", "yellow" and "red" to their Status. Matching is
// case-sensitive; any other input yields Unknown.
func Parse(s string) Status {
	switch s {
	case "green":
		return Green
	case "yellow":
		return Yellow
	case "red":
		return Red
	default:
		return Unknown
	}
}

// ParseStrict is like Parse but accepts "unknown" explicitly and returns an
// error for any other unrecognised token.
func ParseStrict(s string) (Status, error) {
	if st := Parse(s); st != Unknown {
		return st, nil
	}
	if s == "unknown" {
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("status: invalid value %q: want green|yellow|red|unknown", s)
}

// String returns the lowercase name. Out-of-range values render as "unknown".
func (s Status) String() string {
	switch s {
	case Green:
		return "green"
	case Yellow:
		return "yellow"
	case Red:
		return "red"
	default:
		return "unknown"
	}
}

// Severe reports whether s takes part in severity comparisons.
func (s Status) Severe() bool {
	return s <= Red
}

// Worse reports whether s is strictly more severe than other. Unknown is never
// worse than anything, and nothing is worse than Unknown.
func (s Status) Worse(other Status) bool {
	return s.Severe() && other.Severe() && s > other
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using Parse semantics.
func (s *Status) UnmarshalText(text []byte) error {
	*s = Parse(string(text))
	return nil
}
