// Package server hosts the daemon's admin HTTP surface: health probes, a
// read-only balances snapshot, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payledger/internal/ledger"
	"payledger/internal/observability"
)

// AdminServer serves the read side of the daemon.
type AdminServer struct {
	httpServer *http.Server
	ledger     *ledger.Ledger
	health     *observability.HealthChecker
}

func NewAdminServer(addr string, l *ledger.Ledger, health *observability.HealthChecker) *AdminServer {
	s := &AdminServer{
		ledger: l,
		health: health,
	}

	r := chi.NewRouter()
	r.Get("/healthz", health.LivenessHandler)
	r.Get("/readyz", health.ReadinessHandler)
	r.Get("/balances", s.balancesHandler)
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *AdminServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// balanceJSON is one client's row in the /balances response.
type balanceJSON struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

// balancesHandler returns the current ledger snapshot. Readers never observe
// a partially applied commit: Snapshot copies under the ledger's read lock.
func (s *AdminServer) balancesHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := s.ledger.Snapshot()

	rows := make([]balanceJSON, 0, len(snapshot))
	for client, b := range snapshot {
		rows = append(rows, balanceJSON{
			Client:    uint16(client),
			Available: ledger.AmountString(b.Available),
			Held:      ledger.AmountString(b.Held),
			Total:     ledger.AmountString(b.Total()),
			Locked:    b.Locked,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"clients":  len(rows),
		"balances": rows,
	})
}
