package csvfile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	return p
}

func TestReadBasic(t *testing.T) {
	p := writeTemp(t, "in.csv", []byte("Row ID,Customer ID\n1,cg-100\n2,\n"))

	f, err := Read(p, Options{TrimSpace: true})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Len() != 2 {
		t.Fatalf("rows = %d, want 2", f.Len())
	}
	if f.Columns[0] != "Row ID" {
		t.Fatalf("header = %q", f.Columns[0])
	}
	if f.Rows[1][1] != nil {
		t.Fatalf("empty field should be nil, got %v", f.Rows[1][1])
	}
}

func TestReadStripsBOM(t *testing.T) {
	p := writeTemp(t, "bom.csv", []byte("\xef\xbb\xbfrow_id,name\n1,x\n"))

	f, err := Read(p, Options{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Columns[0] != "row_id" {
		t.Fatalf("BOM not stripped: %q", f.Columns[0])
	}
}

func TestReadLatin1(t *testing.T) {
	// "Münster" in latin1: 0xFC for ü.
	p := writeTemp(t, "l1.csv", []byte("city\nM\xfcnster\n"))

	f, err := Read(p, Options{Encoding: "latin1"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := f.Rows[0][0]; got != "Münster" {
		t.Fatalf("latin1 decode: got %q", got)
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "absent.csv"), Options{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReadUnsupportedEncoding(t *testing.T) {
	p := writeTemp(t, "x.csv", []byte("a\n1\n"))
	if _, err := Read(p, Options{Encoding: "ebcdic"}); err == nil {
		t.Fatal("expected error for unsupported encoding")
	}
}

func TestShortRecordsPadWithNil(t *testing.T) {
	p := writeTemp(t, "short.csv", []byte("a,b,c\n1,2\n"))

	f, err := Read(p, Options{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Rows[0][2] != nil {
		t.Fatalf("missing trailing field should be nil, got %v", f.Rows[0][2])
	}
}
