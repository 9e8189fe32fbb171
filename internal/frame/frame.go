// Package frame provides the in-memory table used between pipeline stages:
// an ordered column list plus positional rows. It is deliberately small;
// stages index columns once and then work on row slices directly to avoid
// per-row map allocations.
package frame

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frame is an ordered set of columns and positional rows.
//
// Values are nil, string, int64, float64, bool, or time.Time. Row slices are
// always len(Columns); a missing value is nil.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// New returns an empty frame with the given column order.
func New(columns ...string) *Frame {
	return &Frame{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Rows) }

// Append adds a row. The row must have len(f.Columns) values.
func (f *Frame) Append(row []any) {
	f.Rows = append(f.Rows, row)
}

// ColumnIndex returns the position of a column and whether it exists.
func (f *Frame) ColumnIndex(name string) (int, bool) {
	for i, c := range f.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// HasColumn reports whether the frame has the named column.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.ColumnIndex(name)
	return ok
}

// Indexer returns a column name -> index map for hot loops.
func (f *Frame) Indexer() map[string]int {
	m := make(map[string]int, len(f.Columns))
	for i, c := range f.Columns {
		m[c] = i
	}
	return m
}

// Value returns the value at (row, column), or nil when the column is absent.
func (f *Frame) Value(row int, column string) any {
	i, ok := f.ColumnIndex(column)
	if !ok {
		return nil
	}
	return f.Rows[row][i]
}

// Select projects the named columns into a new frame, preserving row order.
// Rows are copied so mutations of the projection do not leak back.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, ok := f.ColumnIndex(c)
		if !ok {
			return nil, fmt.Errorf("frame: select: unknown column %q", c)
		}
		idx[i] = j
	}

	out := New(columns...)
	out.Rows = make([][]any, 0, len(f.Rows))
	for _, r := range f.Rows {
		row := make([]any, len(idx))
		for i, j := range idx {
			row[i] = r[j]
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// RenameColumns renames columns in place per the given old->new mapping.
// Unknown keys are ignored.
func (f *Frame) RenameColumns(m map[string]string) {
	for i, c := range f.Columns {
		if n, ok := m[c]; ok {
			f.Columns[i] = n
		}
	}
}

// DropDuplicates returns a new frame keeping the first occurrence of each
// distinct key tuple. With no columns given, the whole row is the key.
//
// Iteration is strictly first-observed input order so downstream surrogate
// key assignment stays reproducible across runs.
func (f *Frame) DropDuplicates(columns ...string) (*Frame, error) {
	idx := make([]int, 0, len(columns))
	if len(columns) == 0 {
		for i := range f.Columns {
			idx = append(idx, i)
		}
	} else {
		for _, c := range columns {
			j, ok := f.ColumnIndex(c)
			if !ok {
				return nil, fmt.Errorf("frame: drop duplicates: unknown column %q", c)
			}
			idx = append(idx, j)
		}
	}

	out := New(f.Columns...)
	out.Rows = make([][]any, 0, len(f.Rows))
	seen := make(map[string]struct{}, len(f.Rows))

	key := make([]any, len(idx))
	for _, r := range f.Rows {
		for i, j := range idx {
			key[i] = r[j]
		}
		k := CanonicalKey(key...)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

// CanonicalKey builds a stable string form of a value tuple, used for dedup
// and dimension lookup keys. Values are joined with the ASCII unit separator;
// nil encodes as a single NUL byte so missing differs from empty string.
func CanonicalKey(values ...any) string {
	var b strings.Builder
	b.Grow(len(values) * 16)
	for i, v := range values {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		appendCanonical(&b, v)
	}
	return b.String()
}

// appendCanonical writes one value in canonical form. It avoids fmt.Sprint
// for the common scalar types.
func appendCanonical(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')
	case string:
		b.WriteString(t)
	case []byte:
		b.Write(t)
	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case int:
		b.WriteString(strconv.Itoa(t))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case time.Time:
		b.WriteString(t.UTC().Format(time.RFC3339Nano))
	default:
		fmt.Fprint(b, t)
	}
}
