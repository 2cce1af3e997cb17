package companyimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrMalformedFile marks structural failures: the file as a whole cannot be read.
	ErrMalformedFile = errors.New("malformed file")
	ErrTooManyRows   = errors.New("too many rows")
)

// IsStructural reports whether err must fail the whole request.
func IsStructural(err error) bool {
	return errors.Is(err, ErrMalformedFile) || errors.Is(err, ErrTooManyRows)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const (
	sniffLen = 3072
	xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Parser turns an uploaded CSV or XLSX file into RawRows.
type Parser struct {
	MaxRows int
}

// Each calls fn for every non-blank data row in file order and returns the header.
// An error from fn stops parsing and is returned as is.
func (p Parser) Each(r io.Reader, fn func(RawRow) error) ([]string, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	sample, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, errors.Wrapf(ErrMalformedFile, "read upload: %v", err)
	}

	mt := mimetype.Detect(sample)
	switch {
	case mt.Is(xlsxMIME), mt.Is("application/zip"):
		return p.eachXLSX(br, fn)
	case isText(mt):
		return p.eachCSV(br, sample, fn)
	default:
		return nil, errors.Wrapf(ErrMalformedFile, "unsupported content type %s", mt.String())
	}
}

func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func (p Parser) eachCSV(br *bufio.Reader, sample []byte, fn func(RawRow) error) ([]string, error) {
	// A UTF-8 BOM or a clean sample passes bytes through; stray Windows-1252
	// bytes further down are repaired per field by the row emitter.
	var fallback encoding.Encoding = encoding.Nop
	hasBOM := bytes.HasPrefix(sample, utf8BOM)
	if hasBOM {
		_, _ = br.Discard(len(utf8BOM))
	} else if !validUTF8Prefix(sample) {
		fallback = charmap.Windows1252
	}
	decoded := bufio.NewReader(transform.NewReader(br, unicode.BOMOverride(fallback.NewDecoder())))

	head, _ := decoded.Peek(sniffLen)
	reader := csv.NewReader(decoded)
	reader.Comma = sniffDelimiter(head)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.Wrap(ErrMalformedFile, "file is empty")
	}
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedFile, "cannot read header: %v", err)
	}

	rows := rowEmitter{parser: p, fn: fn}
	if err := rows.setHeader(header); err != nil {
		return nil, err
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedFile, "%v", err)
		}
		if err := rows.emit(record); err != nil {
			return nil, err
		}
	}
	return rows.header, nil
}

func (p Parser) eachXLSX(r io.Reader, fn func(RawRow) error) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedFile, "open workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Wrap(ErrMalformedFile, "workbook has no sheets")
	}
	it, err := f.Rows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedFile, "read sheet %s: %v", sheets[0], err)
	}
	defer it.Close()

	rows := rowEmitter{parser: p, fn: fn}
	for it.Next() {
		cols, err := it.Columns()
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedFile, "read row: %v", err)
		}
		if rows.header == nil {
			if err := rows.setHeader(cols); err != nil {
				return nil, err
			}
			continue
		}
		if err := rows.emit(cols); err != nil {
			return nil, err
		}
	}
	if rows.header == nil {
		return nil, errors.Wrap(ErrMalformedFile, "file is empty")
	}
	return rows.header, nil
}

type rowEmitter struct {
	parser   Parser
	fn       func(RawRow) error
	header   []string
	position int
}

func (e *rowEmitter) setHeader(header []string) error {
	e.header = make([]string, len(header))
	known := make(map[string]bool)
	for i, h := range header {
		h = strings.TrimSpace(repairField(h))
		if h == "" {
			h = fmt.Sprintf("Column_%d", i+1)
		}
		e.header[i] = h
		known[canonicalColumn(h)] = true
	}
	for _, required := range []string{ColumnCIN, ColumnName} {
		if !known[required] {
			return errors.Wrapf(ErrMalformedFile, "missing required column %q (check the delimiter and header row)", required)
		}
	}
	return nil
}

func (e *rowEmitter) emit(record []string) error {
	if isBlank(record) {
		return nil
	}
	e.position++
	if e.parser.MaxRows > 0 && e.position > e.parser.MaxRows {
		return errors.Wrapf(ErrTooManyRows, "file has more than %d rows", e.parser.MaxRows)
	}

	values := make(map[string]string, len(e.header))
	for i, h := range e.header {
		if i < len(record) {
			values[h] = repairField(record[i])
		} else {
			values[h] = ""
		}
	}
	return e.fn(RawRow{Position: e.position, Headers: e.header, Values: values})
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// repairField reads a field that is not valid UTF-8 as Windows-1252.
func repairField(v string) string {
	if utf8.ValidString(v) {
		return v
	}
	fixed, err := charmap.Windows1252.NewDecoder().String(v)
	if err != nil {
		return strings.ToValidUTF8(v, "\uFFFD")
	}
	return fixed
}

// validUTF8Prefix ignores a rune cut off at the end of the sample.
func validUTF8Prefix(b []byte) bool {
	for i := 0; i < utf8.UTFMax && len(b) > 0 && !utf8.Valid(b); i++ {
		b = b[:len(b)-1]
	}
	return utf8.Valid(b)
}

// sniffDelimiter picks the most frequent candidate in the header line.
func sniffDelimiter(head []byte) rune {
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestCount := ',', 0
	for _, c := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(head, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
