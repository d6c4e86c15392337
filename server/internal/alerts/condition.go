package alerts

import (
	"fmt"
	"strings"

	"github.com/obsidianstack/statusroll/pkg/status"
)

// condition is a parsed "<op> <status>" expression.
//
// Supported expressions:
//
//	== red
//	!= green
//	>= yellow
//	> green
//	<= yellow
//	< red
//	== unknown
//
// Ordering operators follow severity (green < yellow < red) and never match
// an unknown status.
type condition struct {
	op     string
	target status.Status
}

func parseCondition(expr string) (condition, error) {
	parts := strings.Fields(expr)
	if len(parts) != 2 {
		return condition{}, fmt.Errorf("condition %q: want \"<op> <status>\"", expr)
	}
	op, rhs := parts[0], parts[1]

	target, err := status.ParseStrict(rhs)
	if err != nil {
		return condition{}, fmt.Errorf("condition %q: %w", expr, err)
	}

	switch op {
	case "==", "!=":
	case ">", ">=", "<", "<=":
		if !target.Severe() {
			return condition{}, fmt.Errorf("condition %q: %s needs green, yellow or red", expr, op)
		}
	default:
		return condition{}, fmt.Errorf("condition %q: unknown operator %q", expr, op)
	}
	return condition{op: op, target: target}, nil
}

func (c condition) match(s status.Status) bool {
	switch c.op {
	case "==":
		return s == c.target
	case "!=":
		return s != c.target
	}
	if !s.Severe() {
		return false
	}
	switch c.op {
	case ">":
		return s > c.target
	case ">=":
		return s >= c.target
	case "<":
		return s < c.target
	case "<=":
		return s <= c.target
	}
	return false
}

func (c condition) String() string { return c.op + " " + c.target.String() }
