package conv

import (
	"math"
	"testing"
)

func TestInt(t *testing.T) {
	cases := map[string]struct {
		v    any
		want int
		ok   bool
	}{
		"int":            {v: 4, want: 4, ok: true},
		"int64":          {v: int64(5), want: 5, ok: true},
		"uint8":          {v: uint8(6), want: 6, ok: true},
		"integral float": {v: 12.0, want: 12, ok: true},
		"float32":        {v: float32(8), want: 8, ok: true},
		"decimal string": {v: "4", want: 4, ok: true},
		"padded string":  {v: " 15 ", want: 15, ok: true},
		"hex string":     {v: "0x10", want: 16, ok: true},
		"negative str":   {v: "-3", want: -3, ok: true},
		"word":           {v: "x"},
		"fraction str":   {v: "4.5"},
		"empty string":   {v: ""},
		"bool":           {v: true},
		"fraction":       {v: 4.5},
		"nil":            {v: nil},
		"list":           {v: []any{1}},
		"huge float":     {v: 1e20},
		"huge negative":  {v: -1e20},
		"2^63 float":     {v: 9223372036854775808.0},
		"uint64 max":     {v: uint64(math.MaxUint64)},
		"huge string":    {v: "99999999999999999999"},
		"nan":            {v: math.NaN()},
		"inf":            {v: math.Inf(1)},
	}
	for name, tc := range cases {
		got, ok := Int(tc.v)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: Int(%#v) = %d, %v", name, tc.v, got, ok)
		}
	}
}

func TestFloat(t *testing.T) {
	if f, ok := Float(600); !ok || f != 600 {
		t.Fatalf("Float(600) = %v, %v", f, ok)
	}
	for _, v := range []any{"600", "0x10"} {
		if _, ok := Float(v); ok {
			t.Fatalf("Float(%q) accepted", v)
		}
	}
}

func TestTypeName(t *testing.T) {
	cases := map[string]any{
		"string":  "x",
		"int":     3,
		"float":   1.5,
		"bool":    false,
		"null":    nil,
		"mapping": map[string]any{},
	}
	for want, v := range cases {
		if got := TypeName(v); got != want {
			t.Fatalf("TypeName(%#v) = %q, want %q", v, got, want)
		}
	}
}
