// Package server exposes the bounded contexts over HTTP.
//
// Each context keeps the path prefix it had as a separate service:
//
//	/api/v1/catalog       items, copies, serials
//	/api/v1/circulation   loans, holds, fines (staff only)
//	/api/v1/acquisitions  purchase orders (staff only)
//	/api/v1/members       patrons, staff, branches, login
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"libraryflow/internal/acquisitions"
	"libraryflow/internal/auth"
	"libraryflow/internal/catalog"
	"libraryflow/internal/circulation"
	"libraryflow/internal/membership"
	"libraryflow/internal/respond"
)

// Services are the use cases the router dispatches to.
type Services struct {
	Catalog      catalog.Service
	Circulation  circulation.Service
	Acquisitions acquisitions.Service
	Membership   membership.Service
}

type Options struct {
	JWTSecret string
	TokenTTL  time.Duration
	Logger    *log.Logger
}

// NewRouter builds the HTTP handler for every context.
func NewRouter(svc Services, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	catalogH := catalog.NewHandler(svc.Catalog)
	circulationH := circulation.NewHandler(svc.Circulation)
	acquisitionsH := acquisitions.NewHandler(svc.Acquisitions)
	membershipH := membership.NewHandler(svc.Membership, opts.JWTSecret, opts.TokenTTL)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Tracing)
	r.Use(Logging(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	staffOnly := auth.Middleware(opts.JWTSecret)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			catalogH.PublicRoutes(r)
			r.With(staffOnly).Group(catalogH.StaffRoutes)
		})
		r.Route("/circulation", func(r chi.Router) {
			r.Use(staffOnly)
			circulationH.StaffRoutes(r)
		})
		r.Route("/acquisitions", func(r chi.Router) {
			r.Use(staffOnly)
			acquisitionsH.StaffRoutes(r)
		})
		r.Route("/members", func(r chi.Router) {
			membershipH.PublicRoutes(r)
			r.With(staffOnly).Group(membershipH.StaffRoutes)
		})
	})

	return r
}

// Server is the librarian HTTP listener.
type Server struct {
	http   *http.Server
	logger *log.Logger
}

type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func New(handler http.Handler, cfg Config, logger *log.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then drains open requests for at most
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}
