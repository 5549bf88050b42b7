package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// ArchiveHandler serves the trade and audit history exports that the
// retention job has moved to object storage.
type ArchiveHandler struct {
	reader domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler over the given blob reader.
func NewArchiveHandler(reader domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{reader: reader, logger: logger}
}

// archiveResponse is the JSON shape of one stored export.
type archiveResponse struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ListArchives returns the stored exports, optionally narrowed to one kind.
// GET /api/archives?kind=trades
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prefix := "archive/"
	if kind := r.URL.Query().Get("kind"); kind != "" {
		if !validArchiveKind(kind) {
			writeError(w, http.StatusBadRequest, "kind must be trades or audit")
			return
		}
		prefix += kind + "/"
	}

	infos, err := h.reader.List(ctx, prefix)
	if err != nil {
		logHandler(h.logger, "archive").ErrorContext(ctx, "list archives failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}

	out := make([]archiveResponse, 0, len(infos))
	for _, info := range infos {
		out = append(out, archiveResponse{
			Path:         info.Path,
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"archives": out})
}

// DownloadArchive streams one month's export as newline-delimited JSON.
// GET /api/archives/{kind}/{month}
func (h *ArchiveHandler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind := r.PathValue("kind")
	if !validArchiveKind(kind) {
		writeError(w, http.StatusBadRequest, "kind must be trades or audit")
		return
	}
	month := r.PathValue("month")
	if _, err := time.Parse("2006-01", month); err != nil {
		writeError(w, http.StatusBadRequest, "month must look like 2026-08")
		return
	}

	path := fmt.Sprintf("archive/%s/%s.jsonl", kind, month)
	body, err := h.reader.Get(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no archive for that month")
			return
		}
		logHandler(h.logger, "archive").ErrorContext(ctx, "download archive failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read archive")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		logHandler(h.logger, "archive").ErrorContext(ctx, "stream archive failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func validArchiveKind(kind string) bool {
	return kind == "trades" || kind == "audit"
}
