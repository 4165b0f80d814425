package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"lotting_ledger/internal/adapters/opener"
	"lotting_ledger/internal/config/connections/mongo"
	"lotting_ledger/internal/config/connections/postgres"
	"lotting_ledger/internal/config/connections/redis"
	"lotting_ledger/internal/config/connections/s3"
	"lotting_ledger/internal/logger"
	"lotting_ledger/internal/metrics"
	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"
	"lotting_ledger/internal/services/ledger"

	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type Handlers struct {
	Postgres *postgres.Postgres
	Mongo    *mongo.Mongo
	S3       *s3.S3
	Redis    *redis.Redis
	HTTP     *http.Client

	Registry map[string]ports.Processor
	Ledger   *ledger.Service
	Deposits ports.DepositRepository
	Progress ports.ProgressNotifier
	// Subscribe streams progress events of one import; nil disables the SSE endpoint.
	Subscribe func(ctx context.Context, importRecordID string) (<-chan models.ProgressEvent, error)

	LocalRoot string
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	imports sync.WaitGroup
}

func New(led *ledger.Service, deposits ports.DepositRepository, registry map[string]ports.Processor, log *zap.Logger) *Handlers {
	return &Handlers{
		HTTP:     &http.Client{Timeout: 5 * time.Minute},
		Registry: registry,
		Ledger:   led,
		Deposits: deposits,
		Logger:   logger.OrNop(log),
	}
}

// Wait blocks until every background import started by Import has finished.
func (h *Handlers) Wait() {
	h.imports.Wait()
}

func (h *Handlers) opener() *opener.CompoundOpener {
	var (
		s3Op   *opener.S3Opener
		bucket string
	)
	if h.S3 != nil && h.S3.Client != nil {
		s3Op, bucket = opener.NewS3Opener(h.S3.Client, h.Logger), h.S3.Bucket
	}
	c := opener.NewCompoundOpener(opener.NewHTTPOpener(h.HTTP, h.Logger), s3Op, bucket)
	if h.LocalRoot != "" {
		c.Local = opener.NewLocalOpener(h.LocalRoot)
	}
	return c
}

func (h *Handlers) JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Error maps domain errors onto status codes. Anything unknown is a 500 and is logged.
func (h *Handlers) Error(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, ports.ErrNotFound), errors.Is(err, ledger.ErrPhaseNotFound), errors.Is(err, mongodrv.ErrNoDocuments):
		code = http.StatusNotFound
	case errors.Is(err, ports.ErrDuplicate):
		code = http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidBuyer), errors.Is(err, ledger.ErrInvalidPhase), errors.Is(err, errBadRequest):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		h.Logger.Error("[HTTP][ERR]", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	h.JSON(w, code, map[string]string{"error": err.Error()})
}

var errBadRequest = errors.New("bad request")

func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, errors.Join(errBadRequest, errors.New(name+" must be a number"))
	}
	return n, nil
}

func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return nil, errors.Join(errBadRequest, errors.New(field+" must be YYYY-MM-DD"))
	}
	return &t, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, errors.New("bad JSON: "+err.Error()))
	}
	return nil
}
