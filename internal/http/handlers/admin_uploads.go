package handlers

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"
)

const maxUploadBytes = 10 << 20

var uploadFolders = map[string]struct{}{
	"sponsors": {},
	"speakers": {},
	"banners":  {},
	"team":     {},
	"misc":     {},
}

// AdminUploadImage resizes a multipart image and stores it, returning its public URL.
func (h *Handler) AdminUploadImage(w http.ResponseWriter, r *http.Request) {
	logger := h.loggerForRequest(r)
	if h.media == nil {
		writeError(w, http.StatusInternalServerError, "media not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("action", "action", "upload_image", "status", "invalid_form", "error", err)
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()
	if header.Size > maxUploadBytes {
		writeError(w, http.StatusBadRequest, "file too large")
		return
	}
	folder := strings.ToLower(strings.TrimSpace(r.FormValue("folder")))
	if folder == "" {
		folder = "misc"
	}
	if _, ok := uploadFolders[folder]; !ok {
		writeError(w, http.StatusBadRequest, "invalid folder")
		return
	}

	processed, err := h.images.Process(file, header.Filename)
	if err != nil {
		writeServiceError(w, logger, "upload_image", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	url, err := h.media.UploadObject(ctx, folder, processed.FileName, processed.ContentType, bytes.NewReader(processed.Data), int64(len(processed.Data)))
	if err != nil {
		logger.Error("action", "action", "upload_image", "status", "upload_failed", "error", err)
		writeErrorDetail(w, http.StatusInternalServerError, "upload failed", err.Error())
		return
	}
	logger.Info("action", "action", "upload_image", "status", "success", "folder", folder, "bytes", len(processed.Data))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"url":    url,
		"width":  processed.Width,
		"height": processed.Height,
	})
}
