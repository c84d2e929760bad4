// Package server exposes the tutoring, transcript, catalog and report
// operations over HTTP with gin.
package server

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dasida/tutor/internal/logger"
	"github.com/dasida/tutor/internal/patterns"
	"github.com/dasida/tutor/internal/report"
	"github.com/dasida/tutor/internal/store"
	"github.com/dasida/tutor/internal/tutor"
	"github.com/dasida/tutor/internal/turnlock"
)

// Deps are the services the handlers call.
type Deps struct {
	Store     *store.Store
	Tutor     *tutor.Controller
	Reports   *report.Synthesizer
	Locker    turnlock.Locker
	Extractor patterns.Extractor
	Provider  string
	Model     string
	Log       *logger.Logger
}

// Options tune the HTTP surface.
type Options struct {
	// Mode is the gin mode; empty keeps the current one.
	Mode         string
	AllowOrigins []string
	// AuthKey enables bearer verification on every route but /health.
	AuthKey      *rsa.PublicKey
	AuthIssuer   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wires handlers onto a gin engine.
type Server struct {
	deps   Deps
	opts   Options
	log    *logger.Logger
	engine *gin.Engine
}

// New builds the server and its routes.
func New(deps Deps, opts Options) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	if deps.Locker == nil {
		deps.Locker = turnlock.NewLocal()
	}
	if deps.Extractor == nil {
		deps.Extractor = patterns.NewExtractor(patterns.DefaultTable)
	}
	s := &Server{deps: deps, opts: opts, log: log.With("service", "http")}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log))
	r.Use(corsMiddleware(s.opts.AllowOrigins))

	r.GET("/health", s.health)

	api := r.Group("/")
	if s.opts.AuthKey != nil {
		api.Use(newTokenVerifier(s.opts.AuthKey, s.opts.AuthIssuer).middleware())
	}

	api.POST("/ai/step-by-step-solution", s.stepByStep)

	api.POST("/conversation/create", s.createConversation)
	api.POST("/chat/save", s.saveMessage)
	api.GET("/conversation/:conversation_id/messages", s.listMessages)
	api.GET("/conversation/:conversation_id/full-chat-log", s.fullChatLog)
	api.POST("/conversation/:conversation_id/complete", s.completeConversation)
	api.GET("/user/:user_id/conversations", s.userConversations)

	api.GET("/problems", s.searchProblems)
	api.GET("/problems/search", s.problemByLocator)
	api.GET("/problems/:p_id", s.getProblem)
	api.GET("/similar-problems/:p_id", s.similarProblems)

	api.POST("/incorrect-answer-report/:conversation_id", s.synthesizeReport)
	api.POST("/reports/save", s.saveReport)
	api.GET("/reports/:conversation_id", s.latestReport)

	api.GET("/usage", s.usage)
	return r
}
