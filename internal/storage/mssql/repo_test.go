package mssql

import (
	"context"
	"database/sql"
	"testing"
)

func TestBuildInsertSQL(t *testing.T) {
	q, args := buildInsertSQL("dbo.Dim_ShipMode", []string{"ShipModeID", "Ship Mode"}, [][]any{
		{int64(1), "Second Class"},
		{int64(2), nil},
	})

	want := "INSERT INTO [dbo].[Dim_ShipMode] ([ShipModeID], [Ship Mode]) VALUES (@p1, @p2), (@p3, @p4)"
	if q != want {
		t.Fatalf("sql = %q, want %q", q, want)
	}
	if len(args) != 4 {
		t.Fatalf("args = %d, want 4", len(args))
	}
	if args[0] != int64(1) || args[1] != "Second Class" {
		t.Errorf("unexpected first row args: %v", args[:2])
	}
	if args[3] != nil {
		t.Errorf("nil value must pass through as nil, got %v", args[3])
	}
}

func TestIdentEscaping(t *testing.T) {
	if got := ident("we]ird"); got != "[we]]ird]" {
		t.Fatalf("ident = %q", got)
	}
	if got := tableIdent("dbo. Fact_Sales"); got != "[dbo].[Fact_Sales]" {
		t.Fatalf("tableIdent = %q", got)
	}
}

// fakeTx records executed statements so chunking and commit behavior can be
// verified without a database.
type fakeTx struct {
	queries   []string
	argCounts []int
	committed bool
	rolled    bool
	execErr   error
}

func (f *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	f.queries = append(f.queries, query)
	f.argCounts = append(f.argCounts, len(args))
	return fakeResult(len(args)), nil
}

func (f *fakeTx) Commit() error { f.committed = true; return nil }

func (f *fakeTx) Rollback() error { f.rolled = true; return nil }

type fakeResult int

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) {
	return int64(r), nil
}

type fakeDB struct {
	tx *fakeTx
}

func (f *fakeDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	return f.tx, nil
}
func (f *fakeDB) Close() error { return nil }

func TestInsertBatchChunksWithinParameterLimit(t *testing.T) {
	tx := &fakeTx{}
	r := &Repo{db: &fakeDB{tx: tx}}

	// 3 columns -> 666 rows per sub-statement. 700 rows needs 2 statements.
	columns := []string{"a", "b", "c"}
	rows := make([][]any, 700)
	for i := range rows {
		rows[i] = []any{int64(i), "x", nil}
	}

	if _, err := r.InsertBatch(context.Background(), "t", columns, rows); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	if len(tx.queries) != 2 {
		t.Fatalf("statements = %d, want 2", len(tx.queries))
	}
	for i, n := range tx.argCounts {
		if n > 2000 {
			t.Errorf("statement %d used %d parameters, above the safety limit", i, n)
		}
	}
	if !tx.committed {
		t.Error("batch was not committed")
	}
}

func TestInsertBatchEmptyIsNoop(t *testing.T) {
	r := &Repo{db: &fakeDB{tx: &fakeTx{}}}
	n, err := r.InsertBatch(context.Background(), "t", []string{"a"}, nil)
	if err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}
	if n != 0 {
		t.Fatalf("n = %d, want 0", n)
	}
}

func TestExecScriptRunsEachStatement(t *testing.T) {
	tx := &fakeTx{}
	r := &Repo{db: &fakeDB{tx: tx}}

	err := r.ExecScript(context.Background(), "DROP TABLE IF EXISTS a;\nCREATE TABLE a (x INT);")
	if err != nil {
		t.Fatalf("ExecScript: %v", err)
	}
	if len(tx.queries) != 2 {
		t.Fatalf("statements = %d, want 2", len(tx.queries))
	}
	if !tx.committed {
		t.Error("schema tx was not committed")
	}
}
