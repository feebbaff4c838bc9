package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jjudge-oj/palette/internal/services"
)

const (
	maxMultipartMemory = 32 << 20
	formFieldFile      = "file"
	formFieldName      = "name"
	formFieldWidth     = "w"
	formFieldHeight    = "h"

	uploadsCSP = "default-src 'none'; sandbox"
)

// inlineImageTypes are served inline. Anything else, SVG included, can carry
// script and is sent as an attachment.
var inlineImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/avif": true,
	"image/bmp":  true,
}

// PaletteHandler serves the caller's palette and accepts uploads.
type PaletteHandler struct {
	palette *services.PaletteService
	log     *slog.Logger
}

func NewPaletteHandler(palette *services.PaletteService, log *slog.Logger) *PaletteHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PaletteHandler{palette: palette, log: log}
}

// PaletteRouter registers palette routes. Every route requires authMiddleware.
func PaletteRouter(r chi.Router, palette *services.PaletteService, authMiddleware func(http.Handler) http.Handler, log *slog.Logger) {
	handler := NewPaletteHandler(palette, log)

	r.Use(authMiddleware)
	r.Get("/", handler.List)
	r.Post("/upload", handler.Upload)
}

// UploadsRouter serves stored images. It is public.
func UploadsRouter(r chi.Router, palette *services.PaletteService, log *slog.Logger) {
	handler := NewPaletteHandler(palette, log)
	r.Get("/{name}", handler.ServeUpload)
}

func (h *PaletteHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.palette.List(r.Context(), identity)
	if err != nil {
		h.log.Error("list palette failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list palette")
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *PaletteHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	width, err := parseOptionalInt(r.FormValue(formFieldWidth))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid width")
		return
	}
	height, err := parseOptionalInt(r.FormValue(formFieldHeight))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height")
		return
	}

	fileHeader, err := uploadedFile(r.MultipartForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	defer file.Close()

	item, err := h.palette.Upload(r.Context(), identity, services.UploadInput{
		Filename:    fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Body:        file,
		Name:        r.FormValue(formFieldName),
		Width:       width,
		Height:      height,
	})
	if err != nil {
		if errors.Is(err, services.ErrEmptyFile) {
			writeError(w, http.StatusBadRequest, "file is required")
			return
		}
		h.log.Error("upload failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to upload file")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// ServeUpload streams a stored image by its generated name.
func (h *PaletteHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	rc, err := h.palette.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		h.log.Error("open upload failed", slog.String("name", name), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", uploadsCSP)
	if mediaType, _, _ := mime.ParseMediaType(contentType); !inlineImageTypes[mediaType] {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func uploadedFile(form *multipart.Form) (*multipart.FileHeader, error) {
	if form == nil {
		return nil, errors.New("missing form data")
	}
	files := form.File[formFieldFile]
	if len(files) == 0 {
		return nil, errors.New("file is required")
	}
	if len(files) > 1 {
		return nil, errors.New("only one file is allowed")
	}
	return files[0], nil
}

// parseOptionalInt parses a dimension field. Values must fit the INTEGER
// columns they are stored in.
func parseOptionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
