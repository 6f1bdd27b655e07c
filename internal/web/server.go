package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nbd-wtf/go-nostr"

	"github.com/tideline/tideline/internal/aggregates"
	"github.com/tideline/tideline/internal/config"
	nostrclient "github.com/tideline/tideline/internal/nostr"
	"github.com/tideline/tideline/internal/ops"
	"github.com/tideline/tideline/internal/profiles"
	"github.com/tideline/tideline/internal/relays"
)

// RelayClient is the relay access the server needs
type RelayClient interface {
	nostrclient.Querier
	nostrclient.Publisher
	FetchEvent(ctx context.Context, eventID string) (*nostr.Event, error)
}

// Server is the HTTP presentation boundary over the aggregation pipeline
type Server struct {
	cfg      *config.Config
	log      *ops.Logger
	relays   *relays.Store
	client   RelayClient
	agg      *aggregates.Manager
	profiles *profiles.Service

	httpServer *http.Server
}

// New creates the web server and mounts its routes
func New(cfg *config.Config, log *ops.Logger, store *relays.Store, client RelayClient, agg *aggregates.Manager, prof *profiles.Service) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log.WithComponent("web"),
		relays:   store,
		client:   client,
		agg:      agg,
		profiles: prof,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/feed", s.handleFeed)
		r.Get("/tag/{tag}", s.handleTagFeed)
		r.Get("/author/{code}", s.handleAuthorFeed)
		r.Get("/thread/{code}", s.handleThread)
		r.Get("/resolve/{code}", s.handleResolve)

		r.Get("/relays", s.handleRelayList)
		r.Post("/relays", s.handleRelayAdd)
		r.Post("/relays/remove", s.handleRelayRemove)
		r.Post("/relays/toggle", s.handleRelayToggle)
		r.Post("/relays/refresh", s.handleRelayRefresh)

		r.Post("/posts", s.handleCreatePost)
		r.Post("/publish", s.handlePublish)
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving in the background
func (s *Server) Start() error {
	ln := s.httpServer.Addr
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server stopped", "error", err)
		}
	}()
	s.log.Info("web server listening", "addr", ln)
	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
