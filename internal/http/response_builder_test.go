package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardspend/internal/core"
	"cardspend/internal/services"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		kind core.ErrorKind
		want int
	}{
		{core.KindMissingInput, http.StatusBadRequest},
		{core.KindUnsupportedFormat, http.StatusBadRequest},
		{core.KindSchemaError, http.StatusBadRequest},
		{core.KindMalformedAmount, http.StatusUnprocessableEntity},
		{core.KindRenderingFailure, http.StatusInternalServerError},
		{core.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusForError(core.NewError(tt.kind, "x")))
		})
	}
	assert.Equal(t, http.StatusInternalServerError, StatusForError(errors.New("plain")))
}

func TestErrorResponseHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrorResponse(core.WrapError(core.KindInternal, errors.New("disk /var/x failed"), "read statement"), "req-1").Write(rec)

	var body ErrorResponseBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Message)
	assert.Equal(t, "req-1", body.RequestID)
	assert.NotContains(t, rec.Body.String(), "/var/x")
}

func TestAnalysisSuccessRoundsAmounts(t *testing.T) {
	report := services.Report{
		ID:       "id",
		RowCount: 2,
		Total:    decimal.RequireFromString("10.01"),
		Categories: []core.CategoryTotal{
			{Label: "A", Amount: decimal.RequireFromString("10.005"), Count: 2},
		},
		Summary: map[string]decimal.Decimal{"A": decimal.RequireFromString("10.01")},
		Chart:   []byte{1, 2, 3},
	}

	rec := httptest.NewRecorder()
	AnalysisSuccess(report).Write(rec)

	var body AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 10.01, body.Categories[0].Amount)
	assert.Equal(t, 10.01, body.Summary["A"])
	assert.Equal(t, "AQID", body.Chart)
}

func TestJSONResponseBuilder(t *testing.T) {
	rec := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusAccepted).Header("X-Test", "1").Body(map[string]int{"n": 1}).Write(rec)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Test"))
	assert.JSONEq(t, `{"n":1}`, rec.Body.String())
}
