package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"lotting_ledger/internal/adapters/export"
	"lotting_ledger/internal/services/ledger"

	"go.uber.org/zap"
)

// LateFees reports arrears as of ?as_of=YYYY-MM-DD, today by default.
func (h *Handlers) LateFees(w http.ResponseWriter, r *http.Request) {
	reports, ok := h.lateFees(w, r)
	if !ok {
		return
	}
	h.JSON(w, http.StatusOK, reports)
}

func (h *Handlers) ExportLateFees(w http.ResponseWriter, r *http.Request) {
	reports, ok := h.lateFees(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteLateFees(&buf, reports); err != nil {
		h.Error(w, r, err)
		return
	}
	h.sendWorkbook(w, r, "late-fees", buf.Bytes())
}

func (h *Handlers) lateFees(w http.ResponseWriter, r *http.Request) ([]ledger.ArrearsReport, bool) {
	q := r.URL.Query()
	ref, err := parseDate("as_of", q.Get("as_of"))
	if err != nil {
		h.Error(w, r, err)
		return nil, false
	}
	if ref == nil {
		now := h.Ledger.Now()
		ref = &now
	}
	reports, err := h.Ledger.LateFees(r.Context(), q.Get("name"), q.Get("number"), *ref)
	if err != nil {
		h.Error(w, r, err)
		return nil, false
	}
	return reports, true
}

func (h *Handlers) DepositSummaries(w http.ResponseWriter, r *http.Request) {
	out, err := h.Ledger.DepositSummaries(r.Context())
	if err != nil {
		h.Error(w, r, err)
		return
	}
	h.JSON(w, http.StatusOK, out)
}

func (h *Handlers) ExportDeposits(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Deposits.List(r.Context())
	if err != nil {
		h.Error(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteDeposits(&buf, recs); err != nil {
		h.Error(w, r, err)
		return
	}
	h.sendWorkbook(w, r, "deposits", buf.Bytes())
}

// sendWorkbook streams the workbook back, or with ?store=s3 uploads it under
// exports/<name>/ and returns the object location instead.
func (h *Handlers) sendWorkbook(w http.ResponseWriter, r *http.Request, name string, data []byte) {
	if r.URL.Query().Get("store") == "s3" {
		if h.S3 == nil || h.S3.Client == nil {
			h.Error(w, r, errors.Join(errBadRequest, errors.New("s3 storage is not configured")))
			return
		}
		key, err := export.Upload(r.Context(), h.S3.Client, h.S3.Bucket, "exports/"+name, data)
		if err != nil {
			h.Error(w, r, err)
			return
		}
		h.Logger.Info("[EXPORT][S3]", zap.String("bucket", h.S3.Bucket), zap.String("key", key), zap.Int("bytes", len(data)))
		h.JSON(w, http.StatusCreated, map[string]string{"bucket": h.S3.Bucket, "key": key, "path": h.S3.Path(key)})
		return
	}

	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
