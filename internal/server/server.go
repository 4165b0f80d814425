package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"lotting_ledger/internal/handlers"
	"lotting_ledger/internal/logger"

	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// Routes mounts the API. Everything except health and metrics goes through auth.
func Routes(h *handlers.Handlers, auth func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	if h == nil {
		return mux
	}

	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", h.Metrics.Handler())

	api := http.NewServeMux()
	api.HandleFunc("POST /buyers", h.CreateBuyer)
	api.HandleFunc("GET /buyers", h.SearchBuyers)
	api.HandleFunc("GET /buyers/next-id", h.NextBuyerID)
	api.HandleFunc("GET /buyers/stats", h.BuyerStats)
	api.HandleFunc("GET /buyers/{id}", h.GetBuyer)
	api.HandleFunc("DELETE /buyers/{id}", h.DeleteBuyer)
	api.HandleFunc("POST /buyers/{id}/cancel", h.CancelBuyer)
	api.HandleFunc("GET /buyers/{id}/phases", h.BuyerPhases)
	api.HandleFunc("PATCH /buyers/{id}/phases/{number}", h.EditPhase)

	api.HandleFunc("GET /late-fees", h.LateFees)
	api.HandleFunc("GET /late-fees/export", h.ExportLateFees)
	api.HandleFunc("GET /deposits/summaries", h.DepositSummaries)
	api.HandleFunc("GET /deposits/export", h.ExportDeposits)

	api.HandleFunc("POST /upload", h.Upload)
	api.HandleFunc("POST /import", h.Import)
	api.HandleFunc("GET /import/progress", h.ImportProgress)
	api.HandleFunc("GET /imports", h.ImportRecords)
	api.HandleFunc("GET /imports/{id}", h.ImportRecord)

	var protected http.Handler = api
	if auth != nil {
		protected = auth(api)
	}
	mux.Handle("/", protected)
	return mux
}

func NewServer(port string, handler http.Handler, log *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%s", port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: logger.OrNop(log),
	}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("[HTTP] listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("[HTTP] shutting down")
		return s.httpServer.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
