package domain

import (
	"testing"
)

func noopCallback(Result, string, RRType) {}

func TestNewQuery_Valid(t *testing.T) {
	q, err := NewQuery("example.com", RRTypeA, noopCallback)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Name != "example.com" || q.Type != RRTypeA {
		t.Fatalf("unexpected query: %+v", q)
	}
	if q.Done() {
		t.Fatalf("new query must not start done")
	}
}

func TestNewQuery_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		qtype RRType
		cb    OnFinished
	}{
		{"", RRTypeA, noopCallback},
		{"example.com", RRTypeCNAME, noopCallback},
		{"example.com", RRTypeA, nil},
	}
	for _, tc := range cases {
		if _, err := NewQuery(tc.name, tc.qtype, tc.cb); err == nil {
			t.Errorf("NewQuery(%q, %v, cb=%v) expected error, got nil", tc.name, tc.qtype, tc.cb != nil)
		}
	}
}

func TestNewQuery_NameTooLong(t *testing.T) {
	long := make([]byte, 254)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := NewQuery(string(long), RRTypeA, noopCallback); err == nil {
		t.Fatalf("expected error for oversize name")
	}
}

func TestQuery_MarkDoneOnce(t *testing.T) {
	q, err := NewQuery("example.com", RRTypeAAAA, noopCallback)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Done() {
		t.Fatalf("expected not done")
	}
	q.MarkDone()
	if !q.Done() {
		t.Fatalf("expected done after MarkDone")
	}
}

func TestOutcome_String(t *testing.T) {
	cases := []struct {
		o    Outcome
		want string
	}{
		{Success, "SUCCESS"},
		{Timeout, "TIMEOUT"},
		{Error, "ERROR"},
		{Outcome(99), "UNKNOWN(99)"},
	}
	for _, tc := range cases {
		if got := tc.o.String(); got != tc.want {
			t.Errorf("Outcome(%d).String() = %q, want %q", tc.o, got, tc.want)
		}
	}
}
