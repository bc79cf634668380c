package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardspend/internal/amqp"
	"cardspend/internal/cache"
	"cardspend/internal/chart"
	"cardspend/internal/core"
	"cardspend/internal/pipeline"
	"cardspend/internal/statement"
)

const statementCSV = "信用卡帳單\n卡號\n期間\n消費日期,交易說明,臺幣金額\n" +
	"2024-01-05,星巴克-信義店,\"1,234.50\"\n" +
	"2024-01-06,GOOGLE*YOUTUBE,199\n" +
	"2024-01-07,Starbucks Coffee,150\n" +
	"2024-01-08,自動扣繳,-3000\n"

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*amqp.AnalysisCompletedMessage
	err  error
}

func (p *fakePublisher) PublishAnalysisCompleted(_ context.Context, msg *amqp.AnalysisCompletedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func newService(t *testing.T, pub Publisher) *AnalysisService {
	t.Helper()
	reader, err := statement.NewReader(statement.DefaultOptions())
	require.NoError(t, err)
	rules := core.MustCategorySet(
		core.CategoryRule{Label: "生活開銷", Keywords: []string{"星巴克"}},
		core.CategoryRule{Label: "軟體訂閱", Keywords: []string{"GOOGL"}},
	)
	return NewAnalysisService(reader, rules, pipeline.DefaultOptions(), chart.Style{Width: 400, Height: 300}, pub)
}

func TestAnalyze(t *testing.T) {
	pub := &fakePublisher{}
	svc := newService(t, pub)

	report, err := svc.Analyze(context.Background(), Upload{Filename: "jan.csv", Body: strings.NewReader(statementCSV)})
	require.NoError(t, err)

	_, err = uuid.Parse(report.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, report.RowCount)
	assert.Equal(t, 1, report.Excluded)
	assert.Equal(t, "1583.50", report.Total.StringFixed(2))
	require.Len(t, report.Categories, 3)
	assert.Equal(t, "生活開銷", report.Categories[0].Label)
	assert.Equal(t, core.Uncategorized, report.Categories[2].Label)
	assert.True(t, report.HasChart())
	assert.True(t, bytes.HasPrefix(report.Chart, []byte("\x89PNG")))

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, report.ID, pub.msgs[0].ID)
	assert.Equal(t, "jan.csv", pub.msgs[0].Filename)
	assert.Equal(t, 1583.5, pub.msgs[0].Total)
}

func TestAnalyzePublishFailureIsNotFatal(t *testing.T) {
	svc := newService(t, &fakePublisher{err: errors.New("broker down")})

	report, err := svc.Analyze(context.Background(), Upload{Filename: "jan.csv", Body: strings.NewReader(statementCSV)})
	require.NoError(t, err)
	assert.Equal(t, 3, report.RowCount)
}

func TestAnalyzeWithoutSpending(t *testing.T) {
	pub := &fakePublisher{}
	svc := newService(t, pub)
	input := "a\nb\nc\n消費日期,交易說明,臺幣金額\n2024-01-05,refund,-10\n"

	report, err := svc.Analyze(context.Background(), Upload{Filename: "r.csv", Body: strings.NewReader(input)})
	require.NoError(t, err)
	assert.False(t, report.HasChart())
	assert.Equal(t, 0, report.RowCount)
	assert.Equal(t, 1, report.Excluded)
	assert.Empty(t, report.Summary)
	assert.Len(t, pub.msgs, 1)
}

func TestAnalyzeErrors(t *testing.T) {
	svc := newService(t, nil)

	tests := []struct {
		name   string
		upload Upload
		kind   core.ErrorKind
	}{
		{"missing body", Upload{Filename: "x.csv"}, core.KindMissingInput},
		{"empty file", Upload{Filename: "x.csv", Body: strings.NewReader("")}, core.KindMissingInput},
		{"unsupported format", Upload{Filename: "x.pdf", Body: strings.NewReader("%PDF")}, core.KindUnsupportedFormat},
		{"schema error", Upload{Filename: "x.csv", Body: strings.NewReader("a\nb\nc\ndate,desc,amount\n1,2,3\n")}, core.KindSchemaError},
		{
			"malformed amount",
			Upload{Filename: "x.csv", Body: strings.NewReader("a\nb\nc\n消費日期,交易說明,臺幣金額\n2024-01-05,x,12a\n")},
			core.KindMalformedAmount,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := svc.Analyze(context.Background(), tt.upload)
			require.Error(t, err)
			assert.Equal(t, tt.kind, core.KindOf(err))
			assert.Empty(t, report.ID)
		})
	}
}

func TestReportCache(t *testing.T) {
	svc := newService(t, nil)
	_, ok := svc.Report("anything")
	assert.False(t, ok, "no cache configured")

	svc.WithReportCache(cache.NewLRUCache[Report](4, time.Hour))
	report, err := svc.Analyze(context.Background(), Upload{Filename: "jan.csv", Body: strings.NewReader(statementCSV)})
	require.NoError(t, err)

	cached, ok := svc.Report(report.ID)
	require.True(t, ok)
	assert.Equal(t, report.Chart, cached.Chart)
	assert.Equal(t, "jan.csv", cached.Filename)

	_, ok = svc.Report("missing")
	assert.False(t, ok)
}
