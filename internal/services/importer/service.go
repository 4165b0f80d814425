package importer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	mg "lotting_ledger/internal/config/connections/mongo"
	"lotting_ledger/internal/logger"
	"lotting_ledger/internal/metrics"
	"lotting_ledger/internal/models"
	"lotting_ledger/internal/ports"
	importitems "lotting_ledger/internal/repository/imports"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const CompleteMessage = "Deposit excel processing complete."

type Request struct {
	Type           string
	FilePath       string
	BatchSize      int
	ImportRecordID string
}

type Result struct {
	Source        string
	FilePath      string
	Format        string
	RowsProcessed int
	Applied       int
	Skipped       int
	Warnings      int
	SHA256        string
	ContentType   string
	Bucket        string
	Key           string
	SizeBytes     int64
}

type Service struct {
	Opener     ports.FileOpener
	Processors map[string]ports.Processor
	DefaultBS  int

	Progress ports.ProgressNotifier
	MG       *mg.Mongo
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

func NewService(opener ports.FileOpener, registry map[string]ports.Processor, defaultBatch int, log *zap.Logger) *Service {
	if defaultBatch <= 0 {
		defaultBatch = 1000
	}
	return &Service{Opener: opener, Processors: registry, DefaultBS: defaultBatch, Log: logger.OrNop(log)}
}

// Import reads the whole sheet, hands its data rows to the processor in
// batches and finishes with a complete event, or an error event when the
// file cannot be read or a batch fails.
func (s *Service) Import(ctx context.Context, req Request) (res Result, err error) {
	t0 := time.Now()
	tally := &ports.Tally{}
	ctx = context.WithValue(ctx, ports.CtxImportRecordID, req.ImportRecordID)
	ctx = context.WithValue(ctx, ports.CtxTally, tally)
	log := s.Log.With(zap.String("type", req.Type), zap.String("import_record_id", req.ImportRecordID))
	log.Info("[IMP][START]", zap.String("path", req.FilePath), zap.Int("batch_size", req.BatchSize))

	defer func() {
		s.Metrics.ObserveImport(req.Type, err, time.Since(t0))
		s.finish(ctx, req.ImportRecordID, res, err)
		if err != nil {
			s.notify(ctx, models.ProgressEvent{Stage: models.StageError, Message: err.Error()})
			log.Error("[IMP][ERR]", zap.Error(err), zap.Duration("took", time.Since(t0)))
		}
	}()

	proc, ok := s.Processors[req.Type]
	if !ok {
		return Result{}, errors.New("no processor for type: " + req.Type)
	}

	rc, meta, err := s.Opener.Open(ctx, req.FilePath)
	if err != nil {
		return Result{}, fmt.Errorf("open: %w", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return Result{}, fmt.Errorf("read: %w", err)
	}

	sum := sha256.Sum256(data)
	res = Result{
		Source:      meta.Source,
		FilePath:    req.FilePath,
		SHA256:      hex.EncodeToString(sum[:]),
		ContentType: meta.ContentType,
		Bucket:      meta.Bucket,
		Key:         meta.Key,
		SizeBytes:   meta.Size,
	}

	format := detectFormat(req.FilePath, meta.ContentType)
	log.Info("[IMP] opened", zap.String("source", meta.Source), zap.String("content_type", meta.ContentType),
		zap.Int("bytes", len(data)), zap.String("detected_format", format))

	rows, format, err := s.readRows(data, format)
	if err != nil {
		return res, fmt.Errorf("read sheet: %w", err)
	}
	res.Format = format

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.DefaultBS
	}

	total := len(rows)
	for off := 0; off < total; off += batchSize {
		end := min(off+batchSize, total)
		bctx := context.WithValue(ctx, ports.CtxBatchWindow, ports.BatchWindow{Offset: off, Total: total})
		log.Debug("[IMP] send batch", zap.Int("from", off+1), zap.Int("to", end), zap.Int("total", total))
		if err := proc.ProcessBatch(bctx, rows[off:end]); err != nil {
			res.RowsProcessed = off
			return res, fmt.Errorf("batch at row %d: %w", off+1, err)
		}
	}

	res.RowsProcessed = total
	res.Applied, res.Skipped, res.Warnings = tally.Totals()
	s.notify(ctx, models.ProgressEvent{Stage: models.StageComplete, Current: total, Total: total, Message: CompleteMessage})
	log.Info("[IMP][DONE]", zap.String("fmt", format), zap.Int("rows", total),
		zap.Int("applied", res.Applied), zap.Int("skipped", res.Skipped), zap.Int("warnings", res.Warnings),
		zap.String("sha256", res.SHA256), zap.Duration("took", time.Since(t0)))
	return res, nil
}

// readRows tries the detected format first and falls back to the other one.
func (s *Service) readRows(data []byte, format string) ([]ports.Row, string, error) {
	readers := map[string]func([]byte) ([]ports.Row, error){
		"xlsx": readXLSXFirstSheet,
		"csv":  readCSV,
	}
	order := []string{"xlsx", "csv"}
	if format == "csv" {
		order = []string{"csv", "xlsx"}
	}

	var errs []error
	for _, f := range order {
		rows, err := readers[f](data)
		if err == nil {
			return rows, f, nil
		}
		s.Log.Warn("[IMP][WARN] reader failed, trying next", zap.String("fmt", f), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", f, err))
	}
	return nil, "", errors.Join(errs...)
}

func (s *Service) finish(ctx context.Context, importRecordID string, res Result, err error) {
	if importRecordID == "" || s.MG == nil {
		return
	}
	status, t := importitems.StatusDone, importitems.Totals{
		Count:    res.RowsProcessed,
		Applied:  res.Applied,
		Skipped:  res.Skipped,
		Warnings: res.Warnings,
	}
	if err != nil {
		status, t.Errors = importitems.StatusFailed, err.Error()
	}
	if uErr := importitems.FinishImportRecord(context.WithoutCancel(ctx), s.MG, importRecordID, status, t); uErr != nil {
		s.Log.Warn("[IMP][MONGO][ERR] finish import record", zap.String("import_record_id", importRecordID), zap.Error(uErr))
	}
}

func (s *Service) notify(ctx context.Context, ev models.ProgressEvent) {
	if s.Progress == nil {
		return
	}
	ev.ImportRecordID = ports.ImportRecordIDFrom(ctx)
	if err := s.Progress.Notify(ctx, ev); err != nil {
		s.Metrics.ProgressDropped()
		s.Log.Warn("[IMP][WARN] progress not delivered", zap.String("stage", string(ev.Stage)), zap.Error(err))
	}
}

func readCSV(data []byte) ([]ports.Row, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	var rows []ports.Row
	for n := 1; ; n++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		if blank(record) {
			continue
		}
		rows = append(rows, ports.Row{Number: n, Cells: record})
	}
	return rows, nil
}

func readXLSXFirstSheet(data []byte) ([]ports.Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx has no sheets")
	}

	it, err := f.Rows(sheets[0])
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var rows []ports.Row
	for n := 0; it.Next(); n++ {
		cols, err := it.Columns()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n, err)
		}
		if n == 0 || blank(cols) {
			continue
		}
		rows = append(rows, ports.Row{Number: n, Cells: cols})
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	return rows, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func detectFormat(filePath, contentType string) string {
	p := filePath
	if u, err := url.Parse(filePath); err == nil && u != nil && u.Path != "" {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	switch ext {
	case "xlsx":
		return "xlsx"
	case "csv":
		return "csv"
	}
	med, _, _ := mime.ParseMediaType(contentType)
	switch med {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case "text/csv", "application/csv", "text/plain":
		return "csv"
	}
	return ""
}
