// Package http provides the HTTP server and handlers.
//
// This file extracts statement uploads from multipart requests.

package http

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"cardspend/internal/core"
	"cardspend/internal/services"
)

const (
	uploadField      = "file"
	multipartMemory  = 8 << 20
	maxFilenameBytes = 255
)

// errUploadTooLarge marks a request body over the configured limit.
var errUploadTooLarge = errors.New("upload exceeds size limit")

// ParseUpload reads the statement file from the "file" multipart field.
// The body is capped at maxBytes. The returned close func releases the
// multipart file and its temporary storage.
func ParseUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (services.Upload, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.Upload{}, noop, errUploadTooLarge
		}
		return services.Upload{}, noop, core.WrapError(core.KindMissingInput, err,
			"expected a multipart upload with a %q field", uploadField)
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		cleanupForm(r)
		if errors.Is(err, http.ErrMissingFile) {
			return services.Upload{}, noop, core.NewError(core.KindMissingInput, "no file in field %q", uploadField)
		}
		return services.Upload{}, noop, core.WrapError(core.KindMissingInput, err, "read uploaded file")
	}

	closeFn := func() {
		file.Close()
		cleanupForm(r)
	}
	return services.Upload{Filename: sanitizeFilename(header), Body: file}, closeFn, nil
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

// sanitizeFilename keeps only the base name; format detection needs the extension.
func sanitizeFilename(h *multipart.FileHeader) string {
	name := filepath.Base(sanitizeInput(h.Filename))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	if len(name) > maxFilenameBytes {
		name = name[len(name)-maxFilenameBytes:]
	}
	return name
}
