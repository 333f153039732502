package novaquerywire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tuannm99/novaquery"
	"github.com/tuannm99/novaquery/internal/metrics"
	"github.com/tuannm99/novaquery/internal/sql/sqlerr"
)

type ServerConfig struct {
	Addr string
	// MetricsAddr serves /metrics over HTTP; empty disables it.
	MetricsAddr string
}

// Server speaks the framed protocol. Every session shares one DB, which
// serializes their statements.
type Server struct {
	db  *novaquery.DB
	log *slog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(db *novaquery.DB, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{db: db, log: log, conns: make(map[net.Conn]struct{})}
}

// Run listens on sc.Addr, plus sc.MetricsAddr when set, until ctx is done.
func Run(ctx context.Context, sc ServerConfig, db *novaquery.DB, log *slog.Logger) error {
	ln, err := net.Listen("tcp", sc.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s := NewServer(db, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Serve(ctx, ln) })

	if sc.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		hs := &http.Server{Addr: sc.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			s.log.Info("metrics listening", "addr", sc.MetricsAddr)
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

// Serve accepts sessions on ln until ctx is done, then closes open sessions
// and waits for them to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("novaquery tcp server listening", "addr", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.closeAll()
	})
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.log.Warn("accept", "err", err)
			continue
		}
		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) track(conn net.Conn, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		s.conns[conn] = struct{}{}
		metrics.Sessions.Inc()
		return
	}
	delete(s.conns, conn)
	metrics.Sessions.Dec()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	session := uuid.NewString()
	log := s.log.With("session", session, "remote", conn.RemoteAddr().String())
	log.Info("session opened")
	defer log.Info("session closed")

	codec := NewCodec(conn)
	for ctx.Err() == nil {
		var req ExecuteRequest
		if err := codec.Read(&req); err != nil {
			// client closed or bad frame
			return
		}

		resp := s.execute(req)
		resp.Session = session
		if resp.Error != "" {
			log.Warn("statement failed", "id", req.ID, "kind", resp.Kind, "err", resp.Error)
		}
		if err := codec.Write(resp); err != nil {
			log.Warn("write response", "err", err)
			return
		}
	}
}

func (s *Server) execute(req ExecuteRequest) ExecuteResponse {
	resp := ExecuteResponse{ID: req.ID}
	if req.Explain {
		plan, err := s.db.Explain(req.SQL, req.Params...)
		if err != nil {
			resp.Error, resp.Kind = err.Error(), sqlerr.Kind(err)
			return resp
		}
		resp.Plan = plan
		return resp
	}

	res, err := s.db.Query(req.SQL, req.Bindings, novaquery.Options{WithTable: req.WithTable}, req.Params...)
	if err != nil {
		resp.Error, resp.Kind = err.Error(), sqlerr.Kind(err)
		return resp
	}
	resp.Result = res
	return resp
}
