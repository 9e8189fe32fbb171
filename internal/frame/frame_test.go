package frame

import (
	"reflect"
	"testing"
)

func sample() *Frame {
	f := New("id", "name", "city")
	f.Append([]any{int64(1), "a", "Austin"})
	f.Append([]any{int64(2), "b", "Boston"})
	f.Append([]any{int64(1), "a2", "Austin"})
	f.Append([]any{int64(3), "c", nil})
	return f
}

func TestSelectProjectsInOrder(t *testing.T) {
	f := sample()
	p, err := f.Select("city", "id")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !reflect.DeepEqual(p.Columns, []string{"city", "id"}) {
		t.Fatalf("columns = %v", p.Columns)
	}
	if got := p.Rows[0]; !reflect.DeepEqual(got, []any{"Austin", int64(1)}) {
		t.Fatalf("row 0 = %v", got)
	}
}

func TestSelectUnknownColumn(t *testing.T) {
	if _, err := sample().Select("nope"); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestDropDuplicatesWholeRow(t *testing.T) {
	f := New("a")
	f.Append([]any{"x"})
	f.Append([]any{"y"})
	f.Append([]any{"x"})

	out, err := f.DropDuplicates()
	if err != nil {
		t.Fatalf("drop duplicates: %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("len = %d, want 2", out.Len())
	}
	if out.Rows[0][0] != "x" || out.Rows[1][0] != "y" {
		t.Fatalf("order not preserved: %v", out.Rows)
	}
}

func TestDropDuplicatesByKeyKeepsFirst(t *testing.T) {
	out, err := sample().DropDuplicates("id")
	if err != nil {
		t.Fatalf("drop duplicates: %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("len = %d, want 3", out.Len())
	}
	// First occurrence of id=1 carries name "a", not "a2".
	if out.Rows[0][1] != "a" {
		t.Fatalf("first occurrence not kept: %v", out.Rows[0])
	}
}

func TestCanonicalKeyDistinguishesNilFromEmpty(t *testing.T) {
	if CanonicalKey(nil) == CanonicalKey("") {
		t.Fatal("nil and empty string must not collide")
	}
	if CanonicalKey("a", nil) == CanonicalKey("a", "") {
		t.Fatal("tuple with nil and tuple with empty must not collide")
	}
	if CanonicalKey("a", "b") != CanonicalKey("a", "b") {
		t.Fatal("canonical key must be deterministic")
	}
}

func TestRenameColumns(t *testing.T) {
	f := sample()
	f.RenameColumns(map[string]string{"city": "City", "missing": "X"})
	if !f.HasColumn("City") || f.HasColumn("city") {
		t.Fatalf("rename failed: %v", f.Columns)
	}
}
