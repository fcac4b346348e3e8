package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"billing_cycle_bot/internal/infra/metrics"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

// pinger is satisfied by *sql.DB.
type pinger interface {
	PingContext(ctx context.Context) error
}

func newOpsRouter(registry *prometheus.Registry, db pinger, rdb redis.Cmdable) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler(registry)).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthHandler(db, rdb)).Methods(http.MethodGet)
	return r
}

func healthHandler(db pinger, rdb redis.Cmdable) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(checks)
	}
}
