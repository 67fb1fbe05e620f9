package domain

import (
	"testing"
)

func TestRRType_IsQueryable(t *testing.T) {
	cases := []struct {
		value RRType
		want  bool
	}{
		{RRTypeA, true}, {RRTypeAAAA, true},
		{RRTypeCNAME, false}, {0, false}, {255, false},
	}
	for _, tc := range cases {
		if got := tc.value.IsQueryable(); got != tc.want {
			t.Errorf("IsQueryable(%d) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestRRType_String(t *testing.T) {
	cases := []struct {
		t    RRType
		want string
	}{
		{RRTypeA, "A"}, {RRTypeCNAME, "CNAME"}, {RRTypeAAAA, "AAAA"},
		{0, "UNKNOWN(0)"}, {3, "UNKNOWN(3)"}, {9999, "UNKNOWN(9999)"},
	}
	for _, tc := range cases {
		if got := tc.t.String(); got != tc.want {
			t.Errorf("String(%d) = %v, want %v", tc.t, got, tc.want)
		}
	}
}

func TestRRTypeFromString(t *testing.T) {
	cases := []struct {
		input string
		want  RRType
	}{
		{"A", RRTypeA}, {"AAAA", RRTypeAAAA},
		{"CNAME", 0}, {"UNKNOWN", 0}, {"", 0}, {"foo", 0},
	}
	for _, tc := range cases {
		if got := RRTypeFromString(tc.input); got != tc.want {
			t.Errorf("RRTypeFromString(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
