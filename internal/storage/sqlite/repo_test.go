package sqlite

import "testing"

func TestBuildInsertSQL(t *testing.T) {
	q, args := buildInsertSQL("Dim_Date", []string{"DateKey", "Date"}, [][]any{
		{int64(0), nil},
		{int64(20161108), "2016-11-08"},
	})

	want := `INSERT INTO "Dim_Date" ("DateKey", "Date") VALUES (?, ?), (?, ?)`
	if q != want {
		t.Fatalf("sql = %q, want %q", q, want)
	}
	if len(args) != 4 {
		t.Fatalf("args = %d, want 4", len(args))
	}
	if args[1] != nil {
		t.Errorf("nil value must pass through as nil, got %v", args[1])
	}
}
