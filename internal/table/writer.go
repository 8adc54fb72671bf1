package table

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/transform"

	"github.com/graphtab/gtab/internal/convert"
)

// FormatRecord renders one record including the line separator.
func (f *Format) FormatRecord(cells []string) (string, error) {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteRune(f.opts.Delimiter)
		}
		if err := f.writeCell(&b, cell); err != nil {
			return "", err
		}
	}
	b.WriteString(f.opts.LineSeparator)
	return b.String(), nil
}

func (f *Format) writeCell(b *strings.Builder, cell string) error {
	if cell == "" {
		return nil
	}
	special := strings.ContainsRune(cell, f.opts.Delimiter) || strings.ContainsAny(cell, "\r\n") ||
		f.opts.Quote != 0 && strings.ContainsRune(cell, f.opts.Quote) ||
		strings.HasPrefix(cell, "\uFEFF")
	if f.opts.Quote == 0 {
		if special {
			return convert.Errorf(convert.KindConfig, "value %q contains the field delimiter or a line break and no text delimiter is configured", cell)
		}
		b.WriteString(cell)
		return nil
	}
	if !special && !f.opts.QuoteAll {
		b.WriteString(cell)
		return nil
	}
	q := string(f.opts.Quote)
	b.WriteString(q)
	b.WriteString(strings.ReplaceAll(cell, q, q+q))
	b.WriteString(q)
	return nil
}

// Encode renders records in the format's charset.
func (f *Format) Encode(records ...[]string) ([]byte, error) {
	var b strings.Builder
	for _, rec := range records {
		line, err := f.FormatRecord(rec)
		if err != nil {
			return nil, err
		}
		b.WriteString(line)
	}
	if f.enc == nil {
		return []byte(b.String()), nil
	}
	data, _, err := transform.String(f.enc.NewEncoder(), b.String())
	if err != nil {
		return nil, convert.Errorf(convert.KindIO, "value cannot be encoded in %s: %w", f.opts.Charset, err)
	}
	return []byte(data), nil
}

// Write renders records to w in the format's charset.
func (f *Format) Write(w io.Writer, records ...[]string) error {
	data, err := f.Encode(records...)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return convert.Wrap(convert.KindIO, fmt.Errorf("failed to write table: %w", err))
	}
	return nil
}

// AppendRecord appends one record to the table at path. The header is written
// first when the file does not exist yet.
func AppendRecord(path string, f *Format, header, cells []string) error {
	_, err := os.Stat(path)
	fresh := errors.Is(err, os.ErrNotExist)
	if err != nil && !fresh {
		return convert.Wrap(convert.KindIO, fmt.Errorf("failed to stat table: %w", err)).At(filepath.Base(path), 0)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return convert.Wrap(convert.KindIO, fmt.Errorf("failed to open table for writing: %w", err)).At(filepath.Base(path), 0)
	}

	records := [][]string{cells}
	if fresh {
		records = [][]string{header, cells}
	}
	werr := f.Write(file, records...)
	cerr := file.Close()
	if werr != nil {
		return convert.Wrap(convert.KindIO, werr).At(filepath.Base(path), 0)
	}
	if cerr != nil {
		return convert.Wrap(convert.KindIO, fmt.Errorf("failed to close table: %w", cerr)).At(filepath.Base(path), 0)
	}
	return nil
}

// WriteFile replaces the table at path with header and rows, writing
// atomically via a temp file.
func WriteFile(path string, f *Format, header []string, rows [][]string) error {
	data, err := f.Encode(append([][]string{header}, rows...)...)
	if err != nil {
		return convert.Wrap(convert.KindIO, err).At(filepath.Base(path), 0)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return convert.Wrap(convert.KindIO, fmt.Errorf("failed to write temp file: %w", err))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return convert.Wrap(convert.KindIO, fmt.Errorf("failed to rename temp file: %w", err))
	}
	return nil
}
