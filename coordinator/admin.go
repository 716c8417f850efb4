package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bashar404/poet/coordinator/history"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// newAdminServer builds the HTTP observability surface: Prometheus
// metrics, health, SGX table and history snapshots, and the WebSocket
// event stream. It is separate from the wire protocol endpoint and
// entirely read-only with respect to scheduler state.
func newAdminServer(cfg *Config, co *Coordinator, hub *EventHub, mem *history.MemoryStore) *http.Server {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/sgx", func(w http.ResponseWriter, _ *http.Request) {
		snapshot := co.table.SnapshotActive(co.sched.Clock())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"clock": co.sched.Clock(),
			"nodes": snapshot,
		})
	})

	mux.HandleFunc("/history", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var events []history.Event
		if mem != nil {
			events = mem.Events()
		}
		json.NewEncoder(w).Encode(events)
	})

	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[WS] upgrade failed: %v", err)
			return
		}
		hub.Register(conn)
		// Read pump: discard client frames, unregister on close.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					hub.Unregister(conn)
					return
				}
			}
		}()
	})

	return &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// runAdminServer serves until the context ends, then shuts down.
func runAdminServer(ctx context.Context, srv *http.Server) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[ADMIN] serving metrics and events on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("[ADMIN] server failed: %v", err)
	}
}
