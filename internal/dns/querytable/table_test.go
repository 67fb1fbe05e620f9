package querytable

import (
	"testing"

	"github.com/haukened/adnsq/internal/dns/domain"
)

func newTestQuery(t *testing.T) *domain.Query {
	t.Helper()
	q, err := domain.NewQuery("example.com", domain.RRTypeA, func(domain.Result, string, domain.RRType) {})
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	return q
}

func TestTable_RegisterAndLookup(t *testing.T) {
	tbl := New()
	q := newTestQuery(t)

	id, err := tbl.DrawID()
	if err != nil {
		t.Fatalf("DrawID: %v", err)
	}
	if err := tbl.Register(id, q); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len = %d, want 1", tbl.Len())
	}

	got, ok := tbl.LookupAndRemove(id)
	if !ok || got != q {
		t.Fatalf("LookupAndRemove = (%v, %v), want (%v, true)", got, ok, q)
	}
	if tbl.Len() != 0 {
		t.Fatalf("Len after remove = %d, want 0", tbl.Len())
	}
}

func TestTable_LookupAndRemove_RemovesOnce(t *testing.T) {
	tbl := New()
	q := newTestQuery(t)
	id, _ := tbl.DrawID()
	_ = tbl.Register(id, q)

	if _, ok := tbl.LookupAndRemove(id); !ok {
		t.Fatal("expected first lookup to find the query")
	}
	if _, ok := tbl.LookupAndRemove(id); ok {
		t.Fatal("expected second lookup for the same id to miss (duplicate/late reply)")
	}
}

func TestTable_Register_RejectsDuplicateID(t *testing.T) {
	tbl := New()
	q1 := newTestQuery(t)
	q2 := newTestQuery(t)

	if err := tbl.Register(7, q1); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := tbl.Register(7, q2); err == nil {
		t.Fatal("expected error registering a duplicate id (I1)")
	}
}

func TestTable_DrawID_Uniqueness(t *testing.T) {
	tbl := New()
	seen := make(map[uint16]bool)
	for i := 0; i < 256; i++ {
		id, err := tbl.DrawID()
		if err != nil {
			t.Fatalf("DrawID: %v", err)
		}
		if seen[id] {
			t.Fatalf("DrawID returned a duplicate id %d while it was still registered", id)
		}
		seen[id] = true
		if err := tbl.Register(id, newTestQuery(t)); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
}

func TestTable_DrawID_RedrawsOnCollision(t *testing.T) {
	tbl := New()
	// Register one id; DrawID must still be able to find a free one
	// even though a collision against this entry is possible on any
	// given draw.
	_ = tbl.Register(42, newTestQuery(t))
	for i := 0; i < 1000; i++ {
		id, err := tbl.DrawID()
		if err != nil {
			t.Fatalf("DrawID: %v", err)
		}
		if id == 42 {
			t.Fatal("DrawID returned an id already registered in the table")
		}
	}
}

func TestTable_DrainAbandon(t *testing.T) {
	tbl := New()
	for i := 0; i < 5; i++ {
		id, _ := tbl.DrawID()
		_ = tbl.Register(id, newTestQuery(t))
	}
	abandoned := tbl.DrainAbandon()
	if len(abandoned) != 5 {
		t.Fatalf("len(abandoned) = %d, want 5", len(abandoned))
	}
	if tbl.Len() != 0 {
		t.Fatalf("Len after DrainAbandon = %d, want 0", tbl.Len())
	}
}

func TestTable_Remove(t *testing.T) {
	tbl := New()
	q := newTestQuery(t)
	id, _ := tbl.DrawID()
	_ = tbl.Register(id, q)
	tbl.Remove(id)
	if tbl.Len() != 0 {
		t.Fatalf("Len after Remove = %d, want 0", tbl.Len())
	}
	if _, ok := tbl.LookupAndRemove(id); ok {
		t.Fatal("expected id to be gone after Remove")
	}
}
