package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"cardspend/internal/core"
	"cardspend/internal/log"
)

type indexData struct {
	Title       string
	Labels      []string
	MaxUploadMB int64
}

// handleIndex renders the upload page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		MethodNotAllowedError("GET, HEAD").Write(w)
		return
	}
	if s.templates == nil {
		http.Error(w, "templates unavailable", http.StatusInternalServerError)
		return
	}

	data := indexData{
		Title:       "Statement analyzer",
		Labels:      s.analyzer.Rules().Labels(),
		MaxUploadMB: s.maxUpload >> 20,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to render template",
			log.FieldOperation, log.OpRender, log.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// handleAnalyze accepts a multipart statement upload and returns the analysis.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx)

	upload, closeUpload, err := ParseUpload(w, r, s.maxUpload)
	defer closeUpload()
	if errors.Is(err, errUploadTooLarge) {
		logger.WarnContext(ctx, "Upload rejected", log.FieldError, err)
		MessageResponse(http.StatusRequestEntityTooLarge, "statement file is too large").Write(w)
		return
	}
	if err != nil {
		logger.WarnContext(ctx, "Invalid upload", log.FieldError, err)
		ErrorResponse(err, requestID(r)).Write(w)
		return
	}

	report, err := s.analyzer.Analyze(ctx, upload)
	if err != nil {
		kind := core.KindOf(err)
		fields := log.NewFields().
			WithOperation(log.OpAnalyze).
			WithError(err).
			ToSlice()
		fields = append(fields, log.FieldErrorKind, string(kind), log.FieldFilename, upload.Filename)
		if kind == core.KindRenderingFailure || kind == core.KindInternal {
			logger.ErrorContext(ctx, "Analysis failed", fields...)
		} else {
			logger.WarnContext(ctx, "Statement rejected", fields...)
		}
		ErrorResponse(err, requestID(r)).Write(w)
		return
	}

	AnalysisSuccess(report).Header("Cache-Control", "no-store").Write(w)
}

// handleChart serves the PNG of a recent analysis.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	report, ok := s.analyzer.Report(id)
	if !ok || !report.HasChart() {
		MessageResponse(http.StatusNotFound, "chart not found").Write(w)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", id+".png"))
	w.Header().Set("Content-Length", strconv.Itoa(len(report.Chart)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Chart)
}

// handleCategories lists the active rules in matching order.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		MethodNotAllowedError("GET").Write(w)
		return
	}
	set := s.analyzer.Rules()
	NewJSONResponse().Body(map[string]any{
		"status":   StatusSuccess,
		"rules":    set.Rules(),
		"fallback": core.Uncategorized,
	}).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the server is accepting work and not shutting down.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	handleHealth(w, r)
}
