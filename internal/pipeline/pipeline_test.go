package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"salesdw/internal/config"
	"salesdw/internal/star"
	"salesdw/internal/storage"
)

// fakeRepo captures everything the pipeline writes so a full run can be
// verified without a database.
type fakeRepo struct {
	scripts []string
	order   []string
	inserts map[string][][]any
	columns map[string][]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		inserts: map[string][][]any{},
		columns: map[string][]string{},
	}
}

func (f *fakeRepo) Close() {}

func (f *fakeRepo) ExecScript(ctx context.Context, script string) error {
	f.scripts = append(f.scripts, script)
	return nil
}

func (f *fakeRepo) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(f.inserts[table]) == 0 {
		f.order = append(f.order, table)
	}
	f.inserts[table] = append(f.inserts[table], rows...)
	f.columns[table] = columns
	return int64(len(rows)), nil
}

const fixtureCSV = `Row ID,Order ID,Order Date,Ship Date,Ship Mode,Customer ID,Customer Name,Segment,City,State,Product ID,Category,Sub-Category,Product Name,Sales,Quantity,Discount,Profit
1,CA-2016-152156,2016-11-08,2016-11-11,Second Class,CG-12520,Claire Gute,Consumer,Austin,Texas,FUR-BO-10001798,Furniture,Bookcases,Bush Somerset Collection Bookcase,261.96,2,0,41.91
2,CA-2016-152156,2016-11-08,2016-11-11,Second Class,CG-12520,Claire Gute,Consumer,Dallas,Texas,FUR-CH-10000454,Furniture,Chairs,Hon Deluxe Fabric Upholstered Stacking Chairs,731.94,3,0,219.58
`

func writeFixture(t *testing.T) (csvPath, schemaPath string) {
	t.Helper()
	dir := t.TempDir()

	csvPath = filepath.Join(dir, "sales.csv")
	if err := os.WriteFile(csvPath, []byte(fixtureCSV), 0o600); err != nil {
		t.Fatal(err)
	}

	schemaPath = filepath.Join(dir, "schema.sql")
	ddl := "DROP TABLE IF EXISTS Fact_Sales;\nCREATE TABLE Fact_Sales (RowID INT);\n"
	if err := os.WriteFile(schemaPath, []byte(ddl), 0o600); err != nil {
		t.Fatal(err)
	}
	return csvPath, schemaPath
}

func testConfig(csvPath, schemaPath string) config.Pipeline {
	p := config.Pipeline{
		Job:     "test",
		Source:  config.Source{CSVPath: csvPath},
		Schema:  config.Schema{ScriptPath: schemaPath},
		Storage: config.Storage{Kind: "fake", DSN: "unused"},
	}
	p.ApplyDefaults()
	return p
}

func runOnce(t *testing.T, cfg config.Pipeline) *fakeRepo {
	t.Helper()

	repo := newFakeRepo()
	p := &Pipeline{
		Config: cfg,
		NewRepo: func(ctx context.Context, c storage.Config) (storage.Repository, error) {
			return repo, nil
		},
	}
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return repo
}

func TestRunLoadsStarSchema(t *testing.T) {
	csvPath, schemaPath := writeFixture(t)
	repo := runOnce(t, testConfig(csvPath, schemaPath))

	if len(repo.scripts) != 1 {
		t.Fatalf("schema scripts = %d, want 1", len(repo.scripts))
	}

	wantOrder := []string{
		star.TableDate, star.TableCustomer, star.TableProduct,
		star.TableShipMode, star.TableLocation, star.TableFact,
	}
	if !reflect.DeepEqual(repo.order, wantOrder) {
		t.Fatalf("load order = %v, want %v", repo.order, wantOrder)
	}

	// Both rows ship "Second Class": one dimension row, id 1.
	shipModes := repo.inserts[star.TableShipMode]
	if len(shipModes) != 1 {
		t.Fatalf("ship modes = %d, want 1", len(shipModes))
	}
	if shipModes[0][0] != int64(1) || shipModes[0][1] != "Second Class" {
		t.Fatalf("ship mode row = %v", shipModes[0])
	}

	facts := repo.inserts[star.TableFact]
	if len(facts) != 2 {
		t.Fatalf("fact rows = %d, want 2", len(facts))
	}
	shipModeCol := -1
	for i, c := range repo.columns[star.TableFact] {
		if c == "ShipModeID" {
			shipModeCol = i
		}
	}
	if shipModeCol < 0 {
		t.Fatalf("ShipModeID missing from fact columns %v", repo.columns[star.TableFact])
	}
	for i, row := range facts {
		if row[shipModeCol] != int64(1) {
			t.Errorf("fact row %d ShipModeID = %v, want 1", i, row[shipModeCol])
		}
	}

	// Both rows share one order date: sentinel plus a single-day range.
	dates := repo.inserts[star.TableDate]
	if len(dates) != 2 {
		t.Fatalf("date rows = %d, want 2 (sentinel + 2016-11-08)", len(dates))
	}
	if dates[0][0] != int64(0) {
		t.Fatalf("first date row key = %v, want sentinel 0", dates[0][0])
	}

	// Locations adapt to the present columns: City and State only.
	if !reflect.DeepEqual(repo.columns[star.TableLocation], []string{"LocationID", "City", "State"}) {
		t.Fatalf("location columns = %v", repo.columns[star.TableLocation])
	}
	if len(repo.inserts[star.TableLocation]) != 2 {
		t.Fatalf("location rows = %d, want 2", len(repo.inserts[star.TableLocation]))
	}

	if len(repo.inserts[star.TableCustomer]) != 1 {
		t.Fatalf("customer rows = %d, want 1", len(repo.inserts[star.TableCustomer]))
	}
	if len(repo.inserts[star.TableProduct]) != 2 {
		t.Fatalf("product rows = %d, want 2", len(repo.inserts[star.TableProduct]))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	csvPath, schemaPath := writeFixture(t)
	cfg := testConfig(csvPath, schemaPath)

	first := runOnce(t, cfg)
	second := runOnce(t, cfg)

	if !reflect.DeepEqual(first.inserts, second.inserts) {
		t.Fatal("two runs over the same source produced different inserts")
	}
	if !reflect.DeepEqual(first.order, second.order) {
		t.Fatalf("load order differs between runs: %v vs %v", first.order, second.order)
	}
}

func TestRunMissingSourceFails(t *testing.T) {
	_, schemaPath := writeFixture(t)
	cfg := testConfig(filepath.Join(t.TempDir(), "nope.csv"), schemaPath)

	p := &Pipeline{
		Config: cfg,
		NewRepo: func(ctx context.Context, c storage.Config) (storage.Repository, error) {
			return newFakeRepo(), nil
		},
	}
	err := p.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "extract") {
		t.Fatalf("err = %v, want extract failure", err)
	}
}

func TestRunSkipsSchemaWhenUnset(t *testing.T) {
	csvPath, _ := writeFixture(t)
	cfg := testConfig(csvPath, "")
	cfg.Schema.ScriptPath = ""

	repo := runOnce(t, cfg)
	if len(repo.scripts) != 0 {
		t.Fatalf("schema scripts = %d, want 0 when script path is empty", len(repo.scripts))
	}
}
