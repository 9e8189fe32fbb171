// Package csvfile reads the delimited source file into a frame.
//
// The reader is deliberately batch-oriented: the whole file is materialized
// because every downstream stage (percentile thresholds, dimension dedup,
// natural-key joins) needs the full batch anyway.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"salesdw/internal/frame"
)

// Options control parsing of the source file.
type Options struct {
	// Encoding names the character encoding tried first. Supported:
	// "latin1"/"iso-8859-1", "windows-1252", "" or "utf8" (no decoding).
	// On a parse failure with a configured encoding, the file is re-read
	// without decoding as a fallback before giving up.
	Encoding string

	// Comma is the field delimiter; ',' when zero.
	Comma rune

	// TrimSpace trims leading/trailing whitespace from every field.
	TrimSpace bool
}

// Read parses the file at path into a frame whose columns are the raw header
// names (BOM stripped, trimmed). Empty fields become nil. Short records are
// padded with nil; long records are truncated to the header width.
func Read(path string, opt Options) (*frame.Frame, error) {
	enc, err := lookupEncoding(opt.Encoding)
	if err != nil {
		return nil, err
	}

	f, err := readOnce(path, enc, opt)
	if err == nil {
		return f, nil
	}
	if enc == nil {
		return nil, err
	}

	// One fallback attempt without decoding, mirroring the original loader's
	// latin1-then-default behavior.
	f, ferr := readOnce(path, nil, opt)
	if ferr != nil {
		return nil, fmt.Errorf("decode with %s failed (%v); utf-8 fallback: %w", opt.Encoding, err, ferr)
	}
	return f, nil
}

func readOnce(path string, enc encoding.Encoding, opt Options) (*frame.Frame, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	var r io.Reader = src
	if enc != nil {
		r = transform.NewReader(src, enc.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.Comma = ','
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make([]string, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		columns[i] = h
	}

	out := frame.New(columns...)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}

		row := make([]any, len(columns))
		for i := range columns {
			if i >= len(rec) {
				continue
			}
			v := rec[i]
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			if v == "" {
				continue
			}
			row[i] = v
		}
		out.Append(row)
	}
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf8", "utf-8":
		return nil, nil
	case "latin1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}
