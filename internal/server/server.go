// Package server implements the bridge HTTP API the admin bot talks to,
// its middleware, and the worker pool that relays jobs to Metabans.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/mbrelay/internal/bot"
	"github.com/woozymasta/mbrelay/internal/config"
	"github.com/woozymasta/mbrelay/internal/metabans"
)

// New creates a new Server relaying to relay.
func New(relay Relay, roster *bot.Roster, mb *metabans.Client, cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	jobTimeout := 2 * cfg.Metabans.Timeout
	if jobTimeout <= 0 {
		jobTimeout = time.Minute
	}

	s := &Server{
		relay:          relay,
		roster:         roster,
		metabans:       mb,
		authToken:      cfg.Server.AuthToken,
		maxBody:        cfg.Server.MaxBodySize,
		trustProxy:     cfg.Server.TrustProxy,
		workers:        cfg.Server.Workers,
		jobTimeout:     jobTimeout,
		syncTimeout:    cfg.Plugin.SyncTimeout,
		hardLimitCount: cfg.RateLimit.HardLimitCount,
		hardLimitWin:   cfg.RateLimit.HardLimitWin,

		queue:    make(chan job, cfg.Server.QueueSize),
		shutdown: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.metrics = newMetrics(s)

	return s
}

// StartWorkers initializes the background worker pool.
func (s *Server) StartWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// StopWorkers lets the workers drain the queue and waits for them.
// Jobs arriving afterwards are rejected as if the queue were full.
func (s *Server) StopWorkers() {
	s.queueMu.Lock()
	if s.queueClosed {
		s.queueMu.Unlock()
		return
	}
	s.queueClosed = true
	close(s.shutdown)
	close(s.queue)
	s.queueMu.Unlock()

	s.wg.Wait()
	s.cancel()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/events",
		s.RateLimitMiddleware(AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleEvent))))
	mux.Handle("POST /api/commands", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleCommand)))
	mux.Handle("GET /api/status", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleStatus)))
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))
	mux.Handle("GET /metrics", s.metrics.handler())

	return s.LoggingMiddleware(mux)
}

// enqueue hands j to the workers without blocking. It reports false when
// the queue is full or the workers were stopped.
func (s *Server) enqueue(j job) bool {
	s.queueMu.RLock()
	defer s.queueMu.RUnlock()

	if s.queueClosed {
		return false
	}

	select {
	case s.queue <- j:
		return true
	default:
		s.metrics.dropped.Inc()
		return false
	}
}

// worker is a background goroutine that processes jobs from the queue.
func (s *Server) worker() {
	defer s.wg.Done()

	for j := range s.queue {
		s.processJob(j)
	}
}

// jobContext bounds j by the job timeout, or by the sync timeout for
// commands that run many Metabans calls.
func (s *Server) jobContext(j job) (context.Context, context.CancelFunc) {
	if !j.isCommand() || !s.relay.LongRunning(j.command) {
		return context.WithTimeout(s.ctx, s.jobTimeout)
	}
	if s.syncTimeout <= 0 {
		return context.WithCancel(s.ctx)
	}

	return context.WithTimeout(s.ctx, s.syncTimeout)
}

func (s *Server) processJob(j job) {
	ctx, cancel := s.jobContext(j)
	defer cancel()

	start := time.Now()

	if j.isCommand() {
		err := s.relay.Dispatch(ctx, j.admin, j.command, j.args)
		s.metrics.observeJob("command", err)
		log.Debug().
			Err(err).
			Str("admin", j.admin.Name()).
			Str("command", j.command).
			Dur("duration", time.Since(start)).
			Msg("Command processed")
		return
	}

	err := s.relay.HandleEvent(ctx, j.event)
	s.metrics.observeJob(string(j.event.Type), err)
	log.Debug().
		Err(err).
		Str("event", string(j.event.Type)).
		Str("player", j.event.Client.Name()).
		Dur("duration", time.Since(start)).
		Msg("Event processed")
}
