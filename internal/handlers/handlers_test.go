package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotting_ledger/internal/models"
	"lotting_ledger/internal/repository/memory"
	"lotting_ledger/internal/services/importer"
	"lotting_ledger/internal/services/importer/processors"
	"lotting_ledger/internal/services/ledger"
	"lotting_ledger/internal/services/reconcile"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev models.ProgressEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) last() models.ProgressEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[len(n.events)-1]
}

func newImportHandlers(t *testing.T) (*Handlers, *memory.Store, *recordingNotifier) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Create(context.Background(), &models.Buyer{ID: 1, Name: "홍길동", Status: models.BuyerActive}))

	n := &recordingNotifier{}
	engine := reconcile.NewEngine(store, store, ledger.NewAggregator(nil), 1, nil)
	engine.Progress = n
	reg := processors.Register(processors.DefaultRegistry(),
		processors.NewDepositsProcessor(processors.NewBaseProcessor(nil, nil), engine))

	h := New(ledger.NewService(store, store, ledger.Options{}), store, reg, nil)
	h.Progress = n
	h.LocalRoot = t.TempDir()
	return h, store, n
}

func TestImportRunsInBackground(t *testing.T) {
	h, store, n := newImportHandlers(t)

	var b strings.Builder
	b.WriteString("id,time,desc,details,contractor,out,in,balance\n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&b, "%d,2024.02.01 10:00:00,,,홍길동,,100,\n", i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(h.LocalRoot, "deposits.csv"), []byte(b.String()), 0o600))

	rr := httptest.NewRecorder()
	h.Import(rr, httptest.NewRequest(http.MethodPost, "/import", strings.NewReader(`{"file_path":"file://deposits.csv"}`)))
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "deposits", resp["type"])
	id, _ := resp["import_record_id"].(string)
	require.NotEmpty(t, id)

	h.Wait()

	deps, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, deps, 3)

	last := n.last()
	assert.Equal(t, models.StageComplete, last.Stage)
	assert.Equal(t, importer.CompleteMessage, last.Message)
	assert.Equal(t, id, last.ImportRecordID)
}

func TestImportRejectsBadRequests(t *testing.T) {
	h, _, _ := newImportHandlers(t)

	for name, body := range map[string]string{
		"missing path": `{"type":"deposits"}`,
		"unknown type": `{"type":"debtors","file_path":"file://x.csv"}`,
		"bad json":     `{`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Import(rr, httptest.NewRequest(http.MethodPost, "/import", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestImportReportsMissingFileAsErrorEvent(t *testing.T) {
	h, _, n := newImportHandlers(t)

	rr := httptest.NewRecorder()
	h.Import(rr, httptest.NewRequest(http.MethodPost, "/import",
		strings.NewReader(`{"file_path":"file://absent.xlsx","import_record_id":"imp-9"}`)))
	require.Equal(t, http.StatusAccepted, rr.Code)
	h.Wait()

	last := n.last()
	assert.Equal(t, models.StageError, last.Stage)
	assert.Equal(t, "imp-9", last.ImportRecordID)
}

func TestImportProgressStreamsEvents(t *testing.T) {
	h := New(nil, nil, nil, nil)
	var subscribed string
	h.Subscribe = func(_ context.Context, id string) (<-chan models.ProgressEvent, error) {
		subscribed = id
		ch := make(chan models.ProgressEvent, 3)
		ch <- models.ProgressEvent{Stage: models.StageProgress, Current: 10, Total: 25}
		ch <- models.ProgressEvent{Stage: models.StageComplete, Current: 25, Total: 25, Message: importer.CompleteMessage}
		ch <- models.ProgressEvent{Stage: models.StageProgress, Current: 99, Total: 99}
		return ch, nil
	}

	rr := httptest.NewRecorder()
	h.ImportProgress(rr, httptest.NewRequest(http.MethodGet, "/import/progress?import_record_id=imp-1", nil))

	assert.Equal(t, "imp-1", subscribed)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t,
		"event: progress\ndata: 10/25\n\nevent: complete\ndata: "+importer.CompleteMessage+"\n\n",
		rr.Body.String())
}

func TestImportProgressRequiresRecordAndSubscriber(t *testing.T) {
	h := New(nil, nil, nil, nil)

	rr := httptest.NewRecorder()
	h.ImportProgress(rr, httptest.NewRequest(http.MethodGet, "/import/progress", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.ImportProgress(rr, httptest.NewRequest(http.MethodGet, "/import/progress?import_record_id=x", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestUploadAndImportRecordsNeedBackends(t *testing.T) {
	h := New(nil, nil, nil, nil)

	rr := httptest.NewRecorder()
	h.Upload(rr, httptest.NewRequest(http.MethodPost, "/upload", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	h.ImportRecords(rr, httptest.NewRequest(http.MethodGet, "/imports", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
