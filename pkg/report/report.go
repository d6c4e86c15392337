package report

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/obsidianstack/statusroll/pkg/status"
)

// ErrMalformed is returned by FromStruct and AckFromStruct when a payload is
// missing a required field or carries a value of the wrong type.
var ErrMalformed = errors.New("report: malformed payload")

// Report is one leaf status observation.
type Report struct {
	Node       string
	Status     status.Status
	Source     string
	Detail     string
	ObservedAt time.Time
}

// Ack is the server's answer to a Report.
type Ack struct {
	OK         bool
	Message    string
	RootStatus status.Status
}

// ToStruct encodes r as a Struct payload.
func (r *Report) ToStruct() (*structpb.Struct, error) {
	fields := map[string]any{
		"node":   r.Node,
		"status": r.Status.String(),
	}
	if r.Source != "" {
		fields["source"] = r.Source
	}
	if r.Detail != "" {
		fields["detail"] = r.Detail
	}
	if !r.ObservedAt.IsZero() {
		fields["observed_at_unix"] = float64(r.ObservedAt.UnixMilli()) / 1e3
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("report: encode: %w", err)
	}
	return s, nil
}

// FromStruct decodes a Report payload. Status tokens are matched strictly;
// anything other than green, yellow, red or unknown is rejected.
func FromStruct(s *structpb.Struct) (*Report, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	node, err := stringField(s, "node", true)
	if err != nil {
		return nil, err
	}
	token, err := stringField(s, "status", true)
	if err != nil {
		return nil, err
	}
	st, err := status.ParseStrict(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	r := &Report{Node: node, Status: st}
	if r.Source, err = stringField(s, "source", false); err != nil {
		return nil, err
	}
	if r.Detail, err = stringField(s, "detail", false); err != nil {
		return nil, err
	}
	if v, ok := s.GetFields()["observed_at_unix"]; ok {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok || math.IsNaN(n.NumberValue) || math.IsInf(n.NumberValue, 0) {
			return nil, fmt.Errorf("%w: observed_at_unix must be a number", ErrMalformed)
		}
		r.ObservedAt = time.UnixMilli(int64(math.Round(n.NumberValue * 1e3)))
	}
	return r, nil
}

// ToStruct encodes a as a Struct payload.
func (a *Ack) ToStruct() (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]any{
		"ok":          a.OK,
		"message":     a.Message,
		"root_status": a.RootStatus.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("report: encode ack: %w", err)
	}
	return s, nil
}

// AckFromStruct decodes a response payload. A missing root_status reads as
// unknown.
func AckFromStruct(s *structpb.Struct) (*Ack, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: empty ack", ErrMalformed)
	}
	a := &Ack{RootStatus: status.Unknown}
	if v, ok := s.GetFields()["ok"]; ok {
		b, ok := v.GetKind().(*structpb.Value_BoolValue)
		if !ok {
			return nil, fmt.Errorf("%w: ok must be a bool", ErrMalformed)
		}
		a.OK = b.BoolValue
	}
	var err error
	if a.Message, err = stringField(s, "message", false); err != nil {
		return nil, err
	}
	root, err := stringField(s, "root_status", false)
	if err != nil {
		return nil, err
	}
	a.RootStatus = status.Parse(root)
	return a, nil
}

func stringField(s *structpb.Struct, key string, required bool) (string, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		if required {
			return "", fmt.Errorf("%w: %s is required", ErrMalformed, key)
		}
		return "", nil
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrMalformed, key)
	}
	if required && str.StringValue == "" {
		return "", fmt.Errorf("%w: %s is required", ErrMalformed, key)
	}
	return str.StringValue, nil
}
