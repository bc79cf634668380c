// Package http provides the HTTP server and handlers.
//
// This file implements a small builder for JSON responses so every handler
// writes the same envelope and status mapping.

package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"cardspend/internal/core"
	"cardspend/internal/services"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// CategoryJSON is one category in an analysis response.
type CategoryJSON struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// AnalysisResponse is the body of a successful POST /api/analyze. Chart
// holds a base64 PNG and is empty when no row contributed spend.
type AnalysisResponse struct {
	Status     string             `json:"status"`
	Message    string             `json:"message"`
	ID         string             `json:"id"`
	Filename   string             `json:"filename"`
	RowCount   int                `json:"row_count"`
	Total      float64            `json:"total"`
	Excluded   int                `json:"excluded"`
	Summary    map[string]float64 `json:"summary"`
	Categories []CategoryJSON     `json:"categories"`
	Chart      string             `json:"chart"`
}

// ErrorResponseBody is the body of every failed API call.
type ErrorResponseBody struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ErrorKind string `json:"error_kind,omitempty"`
	Line      int    `json:"line,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		if err := json.NewEncoder(w).Encode(b.body); err != nil {
			slog.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// AnalysisSuccess builds the response for a report.
func AnalysisSuccess(report services.Report) *JSONResponseBuilder {
	body := AnalysisResponse{
		Status:     StatusSuccess,
		Message:    "Statement analyzed",
		ID:         report.ID,
		Filename:   report.Filename,
		RowCount:   report.RowCount,
		Total:      toFloat(report.Total),
		Excluded:   report.Excluded,
		Summary:    make(map[string]float64, len(report.Summary)),
		Categories: make([]CategoryJSON, 0, len(report.Categories)),
	}
	for label, amount := range report.Summary {
		body.Summary[label] = toFloat(amount)
	}
	for _, c := range report.Categories {
		body.Categories = append(body.Categories, CategoryJSON{
			Label:  c.Label,
			Amount: toFloat(core.Round2(c.Amount)),
			Count:  c.Count,
		})
	}
	if report.HasChart() {
		body.Chart = base64.StdEncoding.EncodeToString(report.Chart)
	} else {
		body.Message = "No spending rows found; nothing to chart"
	}
	return NewJSONResponse().Body(body)
}

// ErrorResponse maps err to its status code and error body.
func ErrorResponse(err error, requestID string) *JSONResponseBuilder {
	body := ErrorResponseBody{
		Status:    StatusError,
		Message:   "internal error",
		RequestID: requestID,
	}

	var e *core.Error
	if errors.As(err, &e) {
		body.ErrorKind = string(e.Kind)
		body.Line = e.Line
		if e.Kind != core.KindInternal {
			body.Message = e.Error()
		}
	}
	return NewJSONResponse().Status(StatusForError(err)).Body(body)
}

// MessageResponse builds an error body without an analysis error kind.
func MessageResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(ErrorResponseBody{Status: StatusError, Message: message})
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return MessageResponse(http.StatusMethodNotAllowed, "method not allowed").Header("Allow", allowedMethods)
}

// StatusForError returns the HTTP status for an analysis error.
func StatusForError(err error) int {
	switch core.KindOf(err) {
	case core.KindMissingInput, core.KindUnsupportedFormat, core.KindSchemaError:
		return http.StatusBadRequest
	case core.KindMalformedAmount:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func toFloat(d decimal.Decimal) float64 {
	return core.Round2(d).InexactFloat64()
}
