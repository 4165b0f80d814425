package handlers

import (
	"fmt"
	"net/http"
	"path"

	importitems "lotting_ledger/internal/repository/imports"
	auth "lotting_ledger/internal/transport/auth"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Upload accepts multipart/form-data with `file` and `type` fields, stores the
// file in S3 and creates an import record in Mongo. The returned id is the
// import_record_id to pass to /import and /import/progress.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if h.S3 == nil || h.S3.Client == nil {
		h.JSON(w, http.StatusServiceUnavailable, map[string]any{"error": "s3 is not configured"})
		return
	}
	if !h.requireMongo(w, r) {
		return
	}

	if err := r.ParseMultipartForm(128 << 20); err != nil {
		h.Logger.Warn("[UPLOAD][ERR] parse multipart", zap.Error(err))
		h.JSON(w, http.StatusBadRequest, map[string]any{"error": "bad multipart: " + err.Error()})
		return
	}

	typ := r.FormValue("type")
	if typ == "" {
		typ = r.FormValue("action")
	}
	if typ == "" {
		typ = "deposits"
	}
	if _, ok := importitems.ModelTypeFor(typ); !ok {
		h.JSON(w, http.StatusBadRequest, map[string]any{"error": "unknown import type: " + typ})
		return
	}

	f, fh, err := r.FormFile("file")
	if err != nil {
		h.Logger.Warn("[UPLOAD][ERR] missing file", zap.Error(err))
		h.JSON(w, http.StatusBadRequest, map[string]any{"error": "file is required"})
		return
	}
	defer f.Close()

	key := fmt.Sprintf("imports/%s/%s-%s", typ, uuid.NewString(), path.Base(fh.Filename))
	size := fh.Size
	if size <= 0 {
		size = -1
	}

	info, err := h.S3.Client.PutObject(r.Context(), h.S3.Bucket, key, f, size, minio.PutObjectOptions{ContentType: fh.Header.Get("Content-Type")})
	if err != nil {
		h.Logger.Error("[UPLOAD][ERR] s3 put", zap.String("key", key), zap.Error(err))
		h.JSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to store file: " + err.Error()})
		return
	}

	s3path := h.S3.Path(key)
	rec := importitems.Record{
		Status:    importitems.StatusParsed,
		Type:      typ,
		Path:      &s3path,
		Bucket:    &h.S3.Bucket,
		Key:       &key,
		SizeBytes: &info.Size,
	}
	if userID, errGet := auth.GetUserID(r.Context()); errGet == nil {
		rec.UserID = &userID
	}

	ins, err := importitems.InsertImportRecord(r.Context(), h.Mongo, rec)
	if err != nil {
		h.Logger.Error("[UPLOAD][ERR] db insert", zap.Error(err))
		h.JSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	h.Logger.Info("[UPLOAD][OK]", zap.String("type", typ), zap.String("path", s3path), zap.Int64("size", info.Size))
	h.JSON(w, http.StatusCreated, map[string]any{"id": ins.InsertedID, "path": s3path})
}
