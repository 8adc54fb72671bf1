package table

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/transform"

	"github.com/graphtab/gtab/internal/convert"
)

// Table is a parsed table file.
type Table struct {
	Name   string
	Header []string
	Rows   []*Row

	index map[string]int
}

// Row is one data record.
type Row struct {
	// Line is the 1-based physical line the record starts on.
	Line  int
	Cells []string

	table *Table
}

// Get returns the cell under column, or "" when the column is absent.
func (r *Row) Get(column string) string {
	i, ok := r.table.index[column]
	if !ok || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// Has reports whether the table has the column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Columns returns the header columns that are not bookkeeping columns.
func (t *Table) Columns() []string {
	var out []string
	for _, c := range t.Header {
		if !IsBookkeeping(c) {
			out = append(out, c)
		}
	}
	return out
}

// ReadFile parses the table at path. The error is a *convert.Error of kind
// KindIO or KindParse carrying the file name.
func ReadFile(path string, f *Format) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, convert.Wrap(convert.KindIO, fmt.Errorf("failed to open table: %w", err)).At(filepath.Base(path), 0)
	}
	defer file.Close()

	t, err := Read(file, f)
	if err != nil {
		return nil, convert.Wrap(convert.KindParse, err).At(filepath.Base(path), 0)
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// Read parses a table from r. The first non-empty record is the header.
func Read(r io.Reader, f *Format) (*Table, error) {
	if f.enc != nil {
		r = transform.NewReader(r, f.enc.NewDecoder())
	}
	p := &parser{r: bufio.NewReader(r), delim: f.opts.Delimiter, quote: f.opts.Quote, line: 1}

	t := &Table{index: make(map[string]int)}
	for {
		start, cells, err := p.record()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if cells == nil {
			continue
		}
		if t.Header == nil {
			t.Header = cells
			for i, c := range cells {
				if _, dup := t.index[c]; dup {
					return nil, &convert.Error{Kind: convert.KindParse, Line: start, Column: c, Err: errors.New("duplicate column")}
				}
				t.index[c] = i
			}
			continue
		}
		if len(cells) > len(t.Header) {
			return nil, &convert.Error{Kind: convert.KindParse, Line: start,
				Err: fmt.Errorf("record has %d cells but the header has %d columns", len(cells), len(t.Header))}
		}
		t.Rows = append(t.Rows, &Row{Line: start, Cells: cells, table: t})
	}
	return t, nil
}

type parser struct {
	r     *bufio.Reader
	delim rune
	quote rune
	line  int
	first bool
}

// record reads the next record. Blank lines yield nil cells. At end of input
// it returns io.EOF.
func (p *parser) record() (int, []string, error) {
	start := p.line
	var (
		cells  []string
		field  strings.Builder
		quoted bool // inside quotes
		closed bool // quotes of the current field were closed
		seen   bool // anything read on this record
	)

	for {
		c, _, err := p.r.ReadRune()
		if err == io.EOF {
			if quoted {
				return 0, nil, &convert.Error{Kind: convert.KindParse, Line: start, Err: errors.New("unterminated quoted field")}
			}
			if !seen {
				return 0, nil, io.EOF
			}
			return start, append(cells, field.String()), nil
		}
		if err != nil {
			return 0, nil, convert.Wrap(convert.KindIO, fmt.Errorf("failed to read table: %w", err))
		}
		if !p.first {
			p.first = true
			if c == '\uFEFF' {
				continue
			}
		}

		if quoted {
			switch {
			case c == p.quote:
				next, _, err := p.r.ReadRune()
				if err == nil && next == p.quote {
					field.WriteRune(p.quote)
					continue
				}
				if err == nil {
					_ = p.r.UnreadRune()
				}
				quoted = false
				closed = true
			case c == '\n':
				p.line++
				field.WriteRune(c)
			default:
				field.WriteRune(c)
			}
			continue
		}

		switch {
		case c == '\r':
			if next, _, err := p.r.ReadRune(); err == nil && next != '\n' {
				_ = p.r.UnreadRune()
			}
			fallthrough
		case c == '\n':
			p.line++
			if !seen {
				return start, nil, nil
			}
			return start, append(cells, field.String()), nil
		case c == p.delim:
			seen = true
			cells = append(cells, field.String())
			field.Reset()
			closed = false
		case closed:
			return 0, nil, &convert.Error{Kind: convert.KindParse, Line: p.line,
				Err: fmt.Errorf("invalid character %q after closing text delimiter", c)}
		case p.quote != 0 && c == p.quote && field.Len() == 0:
			seen = true
			quoted = true
		default:
			seen = true
			field.WriteRune(c)
		}
	}
}
