package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	importitems "lotting_ledger/internal/repository/imports"
	"lotting_ledger/internal/services/importer"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultImportTimeout = 15 * time.Minute

type importRequest struct {
	Type           string `json:"type"`
	FilePath       string `json:"file_path"`
	BatchSize      int    `json:"batch_size"`
	TimeoutMin     int    `json:"timeout_minutes,omitempty"`
	ImportRecordID string `json:"import_record_id"`
}

// Import starts a background import of a deposit sheet and answers 202 at once.
// Progress is published under import_record_id, generated when not supplied.
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decode(w, r, &req); err != nil {
		h.Error(w, r, err)
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		h.Error(w, r, errors.Join(errBadRequest, errors.New("file_path is required")))
		return
	}
	if req.Type == "" {
		req.Type = "deposits"
	}
	if _, ok := h.Registry[req.Type]; !ok {
		h.Error(w, r, errors.Join(errBadRequest, errors.New("unknown import type: "+req.Type)))
		return
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 1000
	}
	tracked := req.ImportRecordID != ""
	if !tracked {
		req.ImportRecordID = uuid.NewString()
	}

	svc := importer.NewService(h.opener(), h.Registry, req.BatchSize, h.Logger)
	svc.Progress = h.Progress
	if tracked {
		svc.MG = h.Mongo
		h.markProcessing(r.Context(), req.ImportRecordID)
	}
	svc.Metrics = h.Metrics

	timeout := defaultImportTimeout
	if req.TimeoutMin > 0 {
		timeout = time.Duration(req.TimeoutMin) * time.Minute
	}

	h.imports.Add(1)
	go func(req importRequest) {
		defer h.imports.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		res, err := svc.Import(ctx, importer.Request{
			Type:           req.Type,
			FilePath:       req.FilePath,
			BatchSize:      req.BatchSize,
			ImportRecordID: req.ImportRecordID,
		})
		if err != nil {
			h.Logger.Error("[IMPORT][ERR][BG]", zap.String("type", req.Type), zap.String("path", req.FilePath), zap.Error(err))
			return
		}
		h.Logger.Info("[IMPORT][OK][BG]",
			zap.String("type", req.Type), zap.String("src", res.Source), zap.String("fmt", res.Format),
			zap.Int("rows", res.RowsProcessed), zap.Int("applied", res.Applied), zap.Int("skipped", res.Skipped),
			zap.String("bucket", res.Bucket), zap.String("key", res.Key), zap.Int64("size", res.SizeBytes))
	}(req)

	h.JSON(w, http.StatusAccepted, map[string]any{
		"status":           "started",
		"type":             req.Type,
		"file_path":        req.FilePath,
		"batch_size":       req.BatchSize,
		"import_record_id": req.ImportRecordID,
	})
}

func (h *Handlers) markProcessing(ctx context.Context, id string) {
	if h.Mongo == nil {
		return
	}
	if err := importitems.UpdateImportRecordStatus(ctx, h.Mongo, id, importitems.StatusProcessing); err != nil {
		h.Logger.Warn("[IMPORT][MONGO][WARN] mark processing", zap.String("import_record_id", id), zap.Error(err))
	}
}

// ImportRecords lists recent import records, optionally of one ?type=.
func (h *Handlers) ImportRecords(w http.ResponseWriter, r *http.Request) {
	if !h.requireMongo(w, r) {
		return
	}
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if limit <= 0 {
		limit = 50
	}
	recs, err := importitems.ListImportRecords(r.Context(), h.Mongo, r.URL.Query().Get("type"), limit)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, recs)
}

// ImportRecord returns one import record together with its per-row items.
func (h *Handlers) ImportRecord(w http.ResponseWriter, r *http.Request) {
	if !h.requireMongo(w, r) {
		return
	}
	id := r.PathValue("id")
	rec, err := importitems.FindImportRecordByID(r.Context(), h.Mongo, id)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	items, err := importitems.ListItems(r.Context(), h.Mongo, id)
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"record": rec, "items": items})
}

func (h *Handlers) requireMongo(w http.ResponseWriter, _ *http.Request) bool {
	if h.Mongo == nil || h.Mongo.Client == nil {
		h.JSON(w, http.StatusServiceUnavailable, map[string]string{"error": "mongo is not configured"})
		return false
	}
	return true
}
