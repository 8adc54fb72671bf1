package table

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	xunicode "golang.org/x/text/encoding/unicode"

	"github.com/graphtab/gtab/internal/convert"
)

// Line separators.
const (
	CRLF = "\r\n"
	LF   = "\n"
)

// Options describes the table dialect.
type Options struct {
	// Delimiter separates fields. It must be a single visible character.
	Delimiter rune
	// Quote encloses fields containing special characters. 0 disables quoting.
	Quote rune
	// QuoteAll quotes every non-null cell.
	QuoteAll bool
	// Charset is an IANA character set name.
	Charset string
	// LineSeparator is CRLF or LF.
	LineSeparator string
}

// Format is a validated table dialect.
type Format struct {
	opts Options
	enc  encoding.Encoding
}

// charsetAliases covers common names the IANA index does not register.
var charsetAliases = map[string]encoding.Encoding{
	"latin1": charmap.ISO8859_1,
	"cp1252": charmap.Windows1252,
	"cp850":  charmap.CodePage850,
}

// NewFormat validates opts. Any problem is a KindConfig error.
func NewFormat(opts Options) (*Format, error) {
	if !visible(opts.Delimiter) && opts.Delimiter != '\t' {
		return nil, convert.Errorf(convert.KindConfig, "field delimiter %q must be a single visible character", opts.Delimiter)
	}
	if opts.Quote != 0 {
		if opts.Quote == opts.Delimiter {
			return nil, convert.Errorf(convert.KindConfig, "text delimiter %q cannot equal the field delimiter", opts.Quote)
		}
		if !visible(opts.Quote) {
			return nil, convert.Errorf(convert.KindConfig, "text delimiter %q must be a single visible character", opts.Quote)
		}
	}
	if opts.QuoteAll && opts.Quote == 0 {
		return nil, convert.Errorf(convert.KindConfig, "quoting all values requires a text delimiter")
	}
	switch opts.LineSeparator {
	case CRLF, LF:
	default:
		return nil, convert.Errorf(convert.KindConfig, "line separator %q must be CRLF or LF", opts.LineSeparator)
	}

	enc, err := lookupCharset(opts.Charset)
	if err != nil {
		return nil, err
	}
	return &Format{opts: opts, enc: enc}, nil
}

func visible(r rune) bool {
	return r != 0 && unicode.IsPrint(r) && !unicode.IsSpace(r)
}

func lookupCharset(name string) (encoding.Encoding, error) {
	if name == "" {
		return nil, convert.Errorf(convert.KindConfig, "character set is required")
	}
	if enc, ok := charsetAliases[strings.ToLower(name)]; ok {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, convert.Errorf(convert.KindConfig, "unsupported character set %q", name)
	}
	// Tables are appended row by row, so the charset must encode ASCII as
	// itself and carry no byte-order mark.
	encoded, err := enc.NewEncoder().Bytes([]byte("a;,\"\r\n"))
	if err != nil || !bytes.Equal(encoded, []byte("a;,\"\r\n")) {
		return nil, convert.Errorf(convert.KindConfig, "character set %q is not ASCII-compatible", name)
	}
	if enc == xunicode.UTF8 {
		return nil, nil
	}
	return enc, nil
}

// Delimiter returns the field delimiter.
func (f *Format) Delimiter() rune { return f.opts.Delimiter }

// Quote returns the text delimiter, or 0 when quoting is disabled.
func (f *Format) Quote() rune { return f.opts.Quote }

// LineSeparator returns the line terminator written after each record.
func (f *Format) LineSeparator() string { return f.opts.LineSeparator }

// Options returns the options the format was built from.
func (f *Format) Options() Options { return f.opts }
