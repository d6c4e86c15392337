package status

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	cases := map[string]Status{
		"green":   Green,
		"yellow":  Yellow,
		"red":     Red,
		"unknown": Unknown,
		"GREEN":   Unknown,
		"Red":     Unknown,
		"":        Unknown,
		"invalid": Unknown,
	}
	for in, want := range cases {
		if got := Parse(in); got != want {
			t.Errorf("Parse(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseStrict(t *testing.T) {
	for _, s := range All {
		got, err := ParseStrict(s.String())
		if err != nil {
			t.Fatalf("ParseStrict(%q): %v", s, err)
		}
		if got != s {
			t.Errorf("ParseStrict(%q) = %v", s, got)
		}
	}

	if _, err := ParseStrict("purple"); err == nil || !strings.Contains(err.Error(), "invalid value") {
		t.Errorf("ParseStrict(purple): got %v, want invalid value error", err)
	}
	if _, err := ParseStrict("Green"); err == nil {
		t.Error("ParseStrict(Green): want error")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   Status
		want string
	}{
		{Green, "green"},
		{Yellow, "yellow"},
		{Red, "red"},
		{Unknown, "unknown"},
		{Status(42), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tc.in), got, tc.want)
		}
	}
}

func TestWorse(t *testing.T) {
	tests := []struct {
		a, b Status
		want bool
	}{
		{Red, Yellow, true},
		{Yellow, Green, true},
		{Green, Green, false},
		{Unknown, Red, false}, // unknown is excluded from severity comparisons
		{Red, Unknown, false},
	}
	for _, tc := range tests {
		if got := tc.a.Worse(tc.b); got != tc.want {
			t.Errorf("%v.Worse(%v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestTextCodecs(t *testing.T) {
	type doc struct {
		S Status `json:"s" yaml:"s"`
	}

	b, err := json.Marshal(doc{S: Yellow})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"s":"yellow"}` {
		t.Errorf("json: got %s", b)
	}

	var d doc
	if err := json.Unmarshal([]byte(`{"s":"red"}`), &d); err != nil {
		t.Fatalf("unmarshal json: %v", err)
	}
	if d.S != Red {
		t.Errorf("json decode: got %v, want red", d.S)
	}

	if err := yaml.Unmarshal([]byte("s: bogus\n"), &d); err != nil {
		t.Fatalf("unmarshal yaml: %v", err)
	}
	if d.S != Unknown {
		t.Errorf("yaml decode: got %v, want unknown", d.S)
	}
}
