package services

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cardspend/internal/amqp"
	"cardspend/internal/cache"
	"cardspend/internal/chart"
	"cardspend/internal/core"
	"cardspend/internal/log"
	"cardspend/internal/pipeline"
	"cardspend/internal/statement"
)

// Publisher announces completed analyses. *amqp.Client implements it.
type Publisher interface {
	PublishAnalysisCompleted(ctx context.Context, msg *amqp.AnalysisCompletedMessage) error
}

// Upload is one statement file submitted for analysis.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Report is the outcome of a successful analysis.
type Report struct {
	ID         string
	Filename   string
	RowCount   int
	Excluded   int
	Total      decimal.Decimal
	Categories []core.CategoryTotal
	Summary    map[string]decimal.Decimal
	Chart      []byte // PNG, nil when no row contributed spend
}

// HasChart reports whether a chart was rendered.
func (r Report) HasChart() bool {
	return len(r.Chart) > 0
}

// AnalysisService runs the read, aggregate, render and publish steps for
// one upload. It holds only read-only configuration and is safe for
// concurrent use.
type AnalysisService struct {
	reader    *statement.Reader
	rules     core.CategorySet
	pipeline  pipeline.Options
	style     chart.Style
	publisher Publisher
	reports   cache.Cache[Report]
}

// NewAnalysisService wires the service. publisher may be nil to disable events.
func NewAnalysisService(reader *statement.Reader, rules core.CategorySet, opts pipeline.Options, style chart.Style, publisher Publisher) *AnalysisService {
	return &AnalysisService{
		reader:    reader,
		rules:     rules,
		pipeline:  opts,
		style:     style,
		publisher: publisher,
	}
}

// WithReportCache keeps successful reports in c so Report can find them by ID.
func (s *AnalysisService) WithReportCache(c cache.Cache[Report]) *AnalysisService {
	s.reports = c
	return s
}

// Report returns a recent report by ID. It is always a miss without a report cache.
func (s *AnalysisService) Report(id string) (Report, bool) {
	if s.reports == nil {
		return Report{}, false
	}
	return s.reports.Get(id)
}

// Rules returns the active rule set.
func (s *AnalysisService) Rules() core.CategorySet {
	return s.rules
}

// Analyze processes upload. Errors are *core.Error values; no partial
// report is returned with an error.
func (s *AnalysisService) Analyze(ctx context.Context, upload Upload) (Report, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentAnalysis)

	if upload.Body == nil {
		return Report{}, core.NewError(core.KindMissingInput, "no statement file supplied")
	}

	table, err := s.reader.Read(upload.Filename, upload.Body)
	if err != nil {
		return Report{}, err
	}

	agg, err := pipeline.Run(table, s.rules, s.pipeline)
	if err != nil {
		return Report{}, err
	}

	png, err := chart.Render(agg, s.style)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		ID:         uuid.NewString(),
		Filename:   upload.Filename,
		RowCount:   agg.RowCount,
		Excluded:   agg.Excluded,
		Total:      agg.RoundedTotal(),
		Categories: agg.Categories,
		Summary:    agg.Summary(),
		Chart:      png,
	}

	logger.InfoContext(ctx, "Statement analyzed", log.NewFields().
		WithOperation(log.OpAnalyze).
		WithAnalysis(report.ID, report.Filename, report.RowCount, report.Excluded, len(report.Categories), report.Total.StringFixed(2)).
		ToSlice()...)

	if s.reports != nil {
		s.reports.Set(report.ID, report)
	}

	if err := s.publish(ctx, report.ID, upload.Filename, agg); err != nil {
		// Event delivery never fails the analysis
		logger.ErrorContext(ctx, "Failed to publish analysis completed message",
			log.FieldAnalysisID, report.ID, log.FieldError, err)
	}

	return report, nil
}

func (s *AnalysisService) publish(ctx context.Context, id, filename string, agg core.Aggregation) error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishAnalysisCompleted(ctx, amqp.NewAnalysisCompletedMessage(id, filename, agg)); err != nil {
		return fmt.Errorf("publish analysis %s: %w", id, err)
	}
	return nil
}
