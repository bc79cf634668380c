// Package statement reads credit-card statement exports into typed rows.
//
// A statement starts with a fixed number of metadata lines, followed by the
// column header row and the transactions. The reader skips the metadata,
// validates that every required column is present and only then returns
// rows, so a wrong offset surfaces as a SchemaError instead of garbage.
package statement

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"

	"cardspend/internal/core"
)

// DefaultHeaderSkip is the number of metadata lines preceding the header row.
const DefaultHeaderSkip = 3

const (
	EncodingUTF8 = "utf-8"
	EncodingBig5 = "big5"
)

// Format is a supported statement file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Schema names the required columns exactly as they appear in the header.
// Amount names the column amounts are read from, whatever it is called.
type Schema struct {
	Date        string
	Description string
	Amount      string
}

// Options configures a Reader.
type Options struct {
	HeaderSkip int
	Columns    Schema
	Encoding   string
}

// DefaultOptions returns the layout of the bank export the service was built for.
func DefaultOptions() Options {
	return Options{
		HeaderSkip: DefaultHeaderSkip,
		Columns: Schema{
			Date:        "消費日期",
			Description: "交易說明",
			Amount:      "臺幣金額",
		},
		Encoding: EncodingUTF8,
	}
}

// RawRow is one data line with the required columns extracted as text.
type RawRow struct {
	Line        int // 1-based line (or sheet row) in the source
	Date        string
	Description string
	Amount      string
}

// Table is a schema-validated statement.
type Table struct {
	Format Format
	Header []string
	Rows   []RawRow
}

// Reader parses statement uploads. It holds no mutable state and is safe
// for concurrent use.
type Reader struct {
	opts Options
}

// NewReader validates opts and returns a Reader.
func NewReader(opts Options) (*Reader, error) {
	if opts.HeaderSkip < 0 {
		return nil, fmt.Errorf("header skip must not be negative, got %d", opts.HeaderSkip)
	}
	if opts.Columns.Date == "" || opts.Columns.Description == "" || opts.Columns.Amount == "" {
		return nil, errors.New("date, description and amount column names are required")
	}
	switch strings.ToLower(opts.Encoding) {
	case "", EncodingUTF8:
		opts.Encoding = EncodingUTF8
	case EncodingBig5:
		opts.Encoding = EncodingBig5
	default:
		return nil, fmt.Errorf("unsupported encoding %q", opts.Encoding)
	}
	return &Reader{opts: opts}, nil
}

// Options returns the reader configuration.
func (r *Reader) Options() Options {
	return r.opts
}

// DetectFormat maps a file name to a supported format.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", core.NewError(core.KindUnsupportedFormat, "file %q is not a CSV or XLSX statement", name)
	}
}

// Read parses body, named name, into a validated Table.
func (r *Reader) Read(name string, body io.Reader) (Table, error) {
	if body == nil {
		return Table{}, core.NewError(core.KindMissingInput, "no statement file supplied")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return Table{}, core.WrapError(core.KindInternal, err, "read statement")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Table{}, core.NewError(core.KindMissingInput, "statement file is empty")
	}

	format, err := DetectFormat(name)
	if err != nil {
		return Table{}, err
	}

	var records [][]string
	var lines []int
	switch format {
	case FormatXLSX:
		records, lines, err = r.readXLSX(data)
	default:
		records, lines, err = r.readCSV(data)
	}
	if err != nil {
		return Table{}, err
	}
	return r.buildTable(format, records, lines)
}

func (r *Reader) readCSV(data []byte) ([][]string, []int, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, nil, core.NewError(core.KindUnsupportedFormat, "statement contains binary data")
	}
	if r.opts.Encoding == EncodingBig5 {
		decoded, _, err := transform.Bytes(traditionalchinese.Big5.NewDecoder(), data)
		if err != nil {
			return nil, nil, core.WrapError(core.KindUnsupportedFormat, err, "decode big5 statement")
		}
		data = decoded
	} else if !utf8.Valid(data) {
		return nil, nil, core.NewError(core.KindUnsupportedFormat, "statement is not valid UTF-8 text")
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	rest, skipped := skipLines(data, r.opts.HeaderSkip)
	if skipped < r.opts.HeaderSkip {
		return nil, nil, core.NewError(core.KindSchemaError,
			"statement has %d lines, expected %d metadata lines before the header", skipped, r.opts.HeaderSkip)
	}

	cr := csv.NewReader(bytes.NewReader(rest))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var records [][]string
	var lines []int
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, core.WrapError(core.KindUnsupportedFormat, err, "parse csv")
		}
		line, _ := cr.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line+skipped)
	}
	return records, lines, nil
}

func (r *Reader) readXLSX(data []byte) ([][]string, []int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, core.WrapError(core.KindUnsupportedFormat, err, "open xlsx statement")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, core.NewError(core.KindMissingInput, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, core.WrapError(core.KindUnsupportedFormat, err, "read sheet %q", sheets[0])
	}
	if len(rows) < r.opts.HeaderSkip {
		return nil, nil, core.NewError(core.KindSchemaError,
			"sheet has %d rows, expected %d metadata rows before the header", len(rows), r.opts.HeaderSkip)
	}

	records := rows[r.opts.HeaderSkip:]
	lines := make([]int, len(records))
	for i := range records {
		lines[i] = r.opts.HeaderSkip + i + 1
	}
	return records, lines, nil
}

// buildTable validates the header record and extracts the required columns.
func (r *Reader) buildTable(format Format, records [][]string, lines []int) (Table, error) {
	cols := r.opts.Columns
	if len(records) == 0 {
		return Table{}, core.NewError(core.KindSchemaError,
			"no header row after skipping %d lines", r.opts.HeaderSkip)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = cleanHeader(h)
	}
	colDate := indexOf(header, cols.Date)
	colDesc := indexOf(header, cols.Description)
	colAmount := indexOf(header, cols.Amount)
	if colDate == -1 || colDesc == -1 || colAmount == -1 {
		missing := make([]string, 0, 3)
		if colDate == -1 {
			missing = append(missing, cols.Date)
		}
		if colDesc == -1 {
			missing = append(missing, cols.Description)
		}
		if colAmount == -1 {
			missing = append(missing, cols.Amount)
		}
		return Table{}, core.NewError(core.KindSchemaError,
			"missing required columns %s; got headers=%v", strings.Join(missing, ","), header)
	}

	table := Table{Format: format, Header: header, Rows: make([]RawRow, 0, len(records)-1)}
	for i := 1; i < len(records); i++ {
		rec := records[i]
		if isBlank(rec) {
			continue
		}
		table.Rows = append(table.Rows, RawRow{
			Line:        lines[i],
			Date:        safeGet(rec, colDate),
			Description: strings.TrimSpace(safeGet(rec, colDesc)),
			Amount:      safeGet(rec, colAmount),
		})
	}
	return table, nil
}

// skipLines drops up to n physical lines and reports how many were dropped.
func skipLines(data []byte, n int) ([]byte, int) {
	skipped := 0
	for skipped < n {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			if len(data) > 0 {
				skipped++
			}
			return nil, skipped
		}
		data = data[i+1:]
		skipped++
	}
	return data, skipped
}

// cleanHeader tolerates the noise bank exports put around column names.
func cleanHeader(s string) string {
	return strings.Trim(s, " \t\r\n\"'\ufeff\u3000")
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}

func safeGet(row []string, i int) string {
	if i >= 0 && i < len(row) {
		return row[i]
	}
	return ""
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
