package statement

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/traditionalchinese"

	"cardspend/internal/core"
)

const sampleCSV = `信用卡帳單明細
卡號: ****-1234
帳單週期: 2024/01
消費日期,入帳日期,交易說明,臺幣金額
2024-01-05,2024-01-07,星巴克-信義店,"1,234.50"
2024-01-06,2024-01-08,GOOGLE*YOUTUBE,150

2024-01-07,2024-01-09,自動扣繳,-3000
`

func newTestReader(t *testing.T) *Reader {
	t.Helper()
	r, err := NewReader(DefaultOptions())
	require.NoError(t, err)
	return r
}

func TestReadCSV(t *testing.T) {
	table, err := newTestReader(t).Read("statement.csv", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, table.Format)
	assert.Equal(t, []string{"消費日期", "入帳日期", "交易說明", "臺幣金額"}, table.Header)
	assert.Equal(t, []RawRow{
		{Line: 5, Date: "2024-01-05", Description: "星巴克-信義店", Amount: "1,234.50"},
		{Line: 6, Date: "2024-01-06", Description: "GOOGLE*YOUTUBE", Amount: "150"},
		{Line: 8, Date: "2024-01-07", Description: "自動扣繳", Amount: "-3000"},
	}, table.Rows)
}

func TestReadCSVHeaderTolerance(t *testing.T) {
	input := "\ufeffmeta\nmeta\nmeta\n\"消費日期\",交易說明 , '臺幣金額' \r\n2024-01-05,Coffee,150\r\n"
	table, err := newTestReader(t).Read("statement.CSV", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "150", table.Rows[0].Amount)
	assert.Equal(t, 5, table.Rows[0].Line)
}

func TestReadSchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		opts    func(*Options)
		input   string
		wantMsg string
	}{
		{
			name:    "missing description column",
			input:   "a\nb\nc\n消費日期,臺幣金額\n2024-01-05,150\n",
			wantMsg: "交易說明",
		},
		{
			name:    "wrong header offset",
			opts:    func(o *Options) { o.HeaderSkip = 2 },
			input:   sampleCSV,
			wantMsg: "missing required columns",
		},
		{
			name:    "too few lines for metadata",
			input:   "only one line",
			wantMsg: "metadata lines",
		},
		{
			name:    "no header after metadata",
			input:   "a\nb\nc\n",
			wantMsg: "no header row",
		},
		{
			name:    "renamed amount column",
			opts:    func(o *Options) { o.Columns.Amount = "外幣折算日" },
			input:   sampleCSV,
			wantMsg: "外幣折算日",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			r, err := NewReader(opts)
			require.NoError(t, err)

			table, err := r.Read("s.csv", strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Equal(t, core.KindSchemaError, core.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Empty(t, table.Rows)
		})
	}
}

func TestReadInputErrors(t *testing.T) {
	r := newTestReader(t)

	_, err := r.Read("s.csv", strings.NewReader(""))
	assert.Equal(t, core.KindMissingInput, core.KindOf(err))

	_, err = r.Read("s.csv", strings.NewReader(" \n\t\n"))
	assert.Equal(t, core.KindMissingInput, core.KindOf(err))

	_, err = r.Read("s.csv", nil)
	assert.Equal(t, core.KindMissingInput, core.KindOf(err))

	_, err = r.Read("statement.pdf", strings.NewReader("%PDF-1.4"))
	assert.Equal(t, core.KindUnsupportedFormat, core.KindOf(err))

	_, err = r.Read("statement", strings.NewReader("a,b"))
	assert.Equal(t, core.KindUnsupportedFormat, core.KindOf(err))

	_, err = r.Read("s.csv", bytes.NewReader([]byte{'a', 0, 'b'}))
	assert.Equal(t, core.KindUnsupportedFormat, core.KindOf(err))

	_, err = r.Read("s.csv", bytes.NewReader([]byte{0xff, 0xfe, 'a', '\n'}))
	assert.Equal(t, core.KindUnsupportedFormat, core.KindOf(err))

	_, err = r.Read("s.xlsx", strings.NewReader("not a zip"))
	assert.Equal(t, core.KindUnsupportedFormat, core.KindOf(err))
}

func TestReadBig5(t *testing.T) {
	encoded, err := traditionalchinese.Big5.NewEncoder().String(sampleCSV)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Encoding = EncodingBig5
	r, err := NewReader(opts)
	require.NoError(t, err)

	table, err := r.Read("big5.csv", strings.NewReader(encoded))
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "星巴克-信義店", table.Rows[0].Description)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"信用卡帳單明細"},
		{"卡號: ****-1234"},
		{},
		{"消費日期", "交易說明", "臺幣金額"},
		{"2024-01-05", "UBER *TRIP", "320"},
		{"2024-01-06", "全家超商", "1,000"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, err := newTestReader(t).Read("statement.xlsx", buf)
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, table.Format)
	assert.Equal(t, []RawRow{
		{Line: 5, Date: "2024-01-05", Description: "UBER *TRIP", Amount: "320"},
		{Line: 6, Date: "2024-01-06", Description: "全家超商", Amount: "1,000"},
	}, table.Rows)
}

func TestNewReaderValidation(t *testing.T) {
	opts := DefaultOptions()
	opts.HeaderSkip = -1
	_, err := NewReader(opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.Columns.Description = ""
	_, err = NewReader(opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.Encoding = "shift-jis"
	_, err = NewReader(opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.Encoding = ""
	r, err := NewReader(opts)
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8, r.Options().Encoding)
}
