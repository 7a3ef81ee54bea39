package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"subspace.dev/internal/sim/world"
	"subspace.dev/internal/transport/ws"
)

type muxOptions struct {
	EnableAdmin bool
	EnablePprof bool
	Logger      *log.Logger
}

func newMux(w *world.World, idx runtimeIndex, opts muxOptions) *http.ServeMux {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, w, idx)
	})

	if opts.EnableAdmin {
		// Loopback only.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			resp := struct {
				WorldID      string             `json:"world_id"`
				Tick         uint64             `json:"tick"`
				TuningDigest string             `json:"tuning_digest"`
				Metrics      world.WorldMetrics `json:"metrics"`
			}{
				WorldID:      w.ID(),
				Tick:         w.CurrentTick(),
				TuningDigest: w.Config().TuningDigest,
				Metrics:      w.Metrics(),
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			tick, err := w.RequestSnapshot(ctx)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
		})
	} else {
		logger.Printf("admin endpoints disabled (SS_ENABLE_ADMIN_HTTP=false)")
	}
	if opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())
	return mux
}

// writeMetrics renders the Prometheus text exposition format.
func writeMetrics(out io.Writer, w *world.World, idx runtimeIndex) {
	id := w.ID()
	m := w.Metrics()
	tick := w.CurrentTick()
	if m.Tick != 0 {
		tick = m.Tick
	}

	gauge := func(name, help string, v any) {
		fmt.Fprintf(out, "# HELP %s %s\n# TYPE %s gauge\n", name, help, name)
		fmt.Fprintf(out, "%s{world=%q} %v\n", name, id, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(out, "# HELP %s %s\n# TYPE %s counter\n", name, help, name)
		fmt.Fprintf(out, "%s{world=%q} %d\n", name, id, v)
	}

	gauge("subspace_world_tick", "Current world tick.", tick)
	gauge("subspace_world_bodies", "Rigid bodies in the world.", m.Entities)
	gauge("subspace_world_blocks", "Voxel blocks across all structures.", m.Blocks)
	gauge("subspace_world_clients", "Connected clients.", m.Clients)
	gauge("subspace_world_contacts", "Contacts resolved in the last tick.", m.Contacts)
	gauge("subspace_world_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))

	fmt.Fprintf(out, "# HELP subspace_world_queue_depth Channel backlog depth.\n# TYPE subspace_world_queue_depth gauge\n")
	fmt.Fprintf(out, "subspace_world_queue_depth{world=%q,queue=%q} %d\n", id, "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(out, "subspace_world_queue_depth{world=%q,queue=%q} %d\n", id, "join", m.QueueDepths.Join)
	fmt.Fprintf(out, "subspace_world_queue_depth{world=%q,queue=%q} %d\n", id, "leave", m.QueueDepths.Leave)

	counter("subspace_collisions_total", "Resolved collision pairs.", m.CollisionsTotal)
	counter("subspace_blocks_destroyed_total", "Blocks destroyed by damage.", m.DestroyedTotal)
	counter("subspace_commands_total", "Commands applied.", m.CommandsTotal)
	counter("subspace_commands_rejected_total", "Commands rejected.", m.RejectsTotal)

	if idx == nil {
		return
	}
	s := idx.Stats()
	gauge("subspace_index_queue_depth", "Index writer queue depth.", s.QueueDepth)
	gauge("subspace_index_queue_capacity", "Index writer queue capacity.", s.QueueCapacity)
	fmt.Fprintf(out, "# HELP subspace_index_dropped_total Index entries dropped because the queue was full.\n# TYPE subspace_index_dropped_total counter\n")
	fmt.Fprintf(out, "subspace_index_dropped_total{world=%q,kind=%q} %d\n", id, "tick", s.DropTickTotal)
	fmt.Fprintf(out, "subspace_index_dropped_total{world=%q,kind=%q} %d\n", id, "collision", s.DropCollisionTotal)
	fmt.Fprintf(out, "subspace_index_dropped_total{world=%q,kind=%q} %d\n", id, "snapshot", s.DropSnapshotTotal)
	counter("subspace_index_write_errors_total", "Failed index transactions.", s.WriteErrorTotal)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
