// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package daemon serves the memory engine to multiple local agent
// processes over loopback HTTP/1.1 (spec §4.8): six JSON endpoints, a pid
// file lifecycle that refuses a second instance on the same port, a bounded
// worker pool, idle auto-shutdown, and cooperative shutdown on signal.
// Grounded on the teacher's cmd/cie/serve.go (`cieServer`'s mux wiring,
// mutex-guarded shared state, and signal.Notify + Server.Shutdown pattern).
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heAdz0r/rtk-sub001/internal/config"
	"github.com/heAdz0r/rtk-sub001/internal/engine"
	"github.com/heAdz0r/rtk-sub001/internal/freshness"
)

// DefaultIdleTimeout is the silent period after which the Daemon
// self-shuts-down (spec §4.8: "default 300 s").
const DefaultIdleTimeout = 300 * time.Second

// DefaultWorkerCap bounds concurrent in-flight requests (spec §4.8:
// "bounded pool of worker threads, cap default 32").
const DefaultWorkerCap = 32

// Options configures one Server.
type Options struct {
	Port        int
	DataDir     string // defaults to config.DefaultDataDir()
	IdleTimeout time.Duration
	WorkerCap   int
	Logger      *slog.Logger
}

// Server is the loopback HTTP daemon wrapping an Engine.
type Server struct {
	engine  *engine.Engine
	opts    Options
	logger  *slog.Logger
	metrics *metrics

	pidPath  string
	listener net.Listener
	http     *http.Server

	workers      chan struct{}
	shuttingDown atomic.Bool
	lastActivity atomic.Int64 // unix nanos

	mu        sync.Mutex
	idleTimer *time.Timer
}

// New builds a Server. Call Serve to start listening.
func New(eng *engine.Engine, opts Options) (*Server, error) {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.WorkerCap <= 0 {
		opts.WorkerCap = DefaultWorkerCap
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DataDir == "" {
		dir, err := config.DefaultDataDir()
		if err != nil {
			return nil, err
		}
		opts.DataDir = dir
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Server{
		engine:  eng,
		opts:    opts,
		logger:  opts.Logger,
		metrics: newMetrics(),
		pidPath: config.PidFilePath(opts.DataDir, opts.Port),
		workers: make(chan struct{}, opts.WorkerCap),
	}
	s.lastActivity.Store(time.Now().UnixNano())
	return s, nil
}

// mux builds the endpoint routing table (spec §4.8). Exposed separately
// from Serve so tests can exercise handlers via httptest without binding a
// real socket or touching the pid file.
func (s *Server) mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handleHealth)
	mux.HandleFunc("/v1/explore", s.wrap("explore", s.handleExplore))
	mux.HandleFunc("/v1/delta", s.wrap("delta", s.handleDelta))
	mux.HandleFunc("/v1/refresh", s.wrap("refresh", s.handleRefresh))
	mux.HandleFunc("/v1/context", s.wrap("context", s.handleExplore))
	mux.HandleFunc("/v1/plan-context", s.wrap("plan-context", s.handlePlanContext))
	mux.Handle("/metrics", s.metrics.handler())
	return mux
}

// Serve acquires the pid file, binds the port, and blocks until ctx is
// canceled, a shutdown signal fires, or the idle timeout elapses. It always
// releases the pid file before returning.
func (s *Server) Serve(ctx context.Context) error {
	if err := acquirePidFile(s.pidPath); err != nil {
		return err
	}
	defer func() { _ = releasePidFile(s.pidPath) }()

	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.opts.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln

	s.http = &http.Server{
		Handler:           s.mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	// Connection: close, no keep-alive (spec §4.8).
	s.http.SetKeepAlivesEnabled(false)

	serveErr := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	idleCh := s.watchIdle(ctx)

	var reason error
	select {
	case <-ctx.Done():
		reason = ctx.Err()
	case <-idleCh:
		reason = fmt.Errorf("idle timeout after %s", s.opts.IdleTimeout)
	case err := <-serveErr:
		if err != nil {
			return err
		}
		return nil
	}

	s.logger.Info("daemon shutting down", "reason", reason)
	s.shuttingDown.Store(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// watchIdle returns a channel that fires once the server has gone
// opts.IdleTimeout without a request (spec §4.8 "idle shutdown").
func (s *Server) watchIdle(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.opts.IdleTimeout / 4)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				last := time.Unix(0, s.lastActivity.Load())
				if time.Since(last) >= s.opts.IdleTimeout {
					close(out)
					return
				}
			}
		}
	}()
	return out
}

func (s *Server) markActive() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// wrap applies the bounded worker pool, shutdown rejection, activity
// tracking, and metrics to a handler (spec §4.8/§5: "accept loop spawns a
// bounded pool of worker threads ... new connections rejected" during
// shutdown).
func (s *Server) wrap(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if s.shuttingDown.Load() {
			writeError(w, http.StatusServiceUnavailable, "daemon is shutting down")
			s.metrics.observe(endpoint, http.StatusServiceUnavailable, start)
			return
		}

		select {
		case s.workers <- struct{}{}:
		default:
			writeError(w, http.StatusServiceUnavailable, "worker pool exhausted, retry")
			s.metrics.observe(endpoint, http.StatusServiceUnavailable, start)
			return
		}
		defer func() { <-s.workers }()

		s.markActive()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.metrics.observe(endpoint, rec.status, start)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusBadRequest, "method not allowed")
		return
	}
	s.markActive()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"idle_for": time.Since(time.Unix(0, s.lastActivity.Load())).String(),
	})
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.Explore(r.Context(), req.toEngineRequest())
	s.respond(w, req, res, nil, err)
}

func (s *Server) handleDelta(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.Delta(r.Context(), req.toEngineRequest())
	s.respond(w, req, res, nil, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.engine.Refresh(r.Context(), req.toEngineRequest())
	s.respond(w, req, res, nil, err)
}

func (s *Server) handlePlanContext(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	plan, err := s.engine.PlanContext(r.Context(), req.toPlanRequest())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponseEnvelope(plan.Result, plan, req.Format))
}

func (s *Server) respond(w http.ResponseWriter, req *requestEnvelope, res *engine.Result, plan *engine.PlanResult, err error) {
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponseEnvelope(res, plan, req.Format))
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	var strictErr *freshness.StrictnessError
	if errors.As(err, &strictErr) {
		writeError(w, http.StatusConflict, strictErr.Error())
		return
	}
	if errors.Is(err, engine.ErrPlannerUnavailable) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("engine operation failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Connection", "close")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
