package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/c2c/pkg/c2c"
	"github.com/raterudder/c2c/pkg/log"
	"github.com/raterudder/c2c/pkg/metrics"
	"github.com/raterudder/c2c/pkg/storage"
)

type contextKey string

const userIDContextKey contextKey = "userID"

// tokenVerifier validates an OIDC ID token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// Server exposes the integration operations over HTTP.
type Server struct {
	manager *c2c.Manager
	storage storage.Database
	metrics *metrics.Registry

	listenAddr string
	httpServer *http.Server

	oidcVerifier tokenVerifier
	bypassAuth   bool
	bypassUserID int64
	showHidden   bool
	serverName   string
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(m *c2c.Manager, s storage.Database, reg *metrics.Registry) *Server {
	srv := &Server{
		manager:    m,
		storage:    s,
		metrics:    reg,
		serverName: "c2c",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	oidcIssuer := lflag.String("oidc-issuer", "https://accounts.google.com", "Issuer of the ID tokens accepted by the API")
	oidcAudience := lflag.String("oidc-audience", "", "Audience (client ID) of the ID tokens accepted by the API")
	bypassAuth := lflag.Bool("bypass-auth", false, "Disable authentication and act as bypass-user-id (development only)")
	bypassUserID := lflag.String("bypass-user-id", "1", "User ID used when bypass-auth is set")
	showHidden := lflag.Bool("show-hidden", false, "Expose hidden providers in lists via the API")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.bypassAuth = *bypassAuth
		if srv.bypassAuth {
			id, err := strconv.ParseInt(*bypassUserID, 10, 64)
			if err != nil || id <= 0 {
				log.Ctx(context.Background()).Error("bypass-user-id must be a positive integer", slog.String("value", *bypassUserID))
				os.Exit(1)
			}
			srv.bypassUserID = id
		}
		srv.showHidden = *showHidden
		if *oidcAudience != "" {
			provider, err := oidc.NewProvider(context.Background(), *oidcIssuer)
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize OIDC provider", slog.String("issuer", *oidcIssuer), slog.Any("error", err))
				os.Exit(1)
			}
			srv.oidcVerifier = provider.Verifier(&oidc.Config{ClientID: *oidcAudience}).Verify
		} else if !srv.bypassAuth {
			log.Ctx(context.Background()).Error("oidc-audience is required unless bypass-auth is set")
			os.Exit(1)
		}
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/services", s.handleListServices)
	apiMux.HandleFunc("GET /api/integrations", s.handleListIntegrations)
	apiMux.HandleFunc("POST /api/integrations/validate", s.handleValidateIntegration)
	apiMux.HandleFunc("GET /api/integrations/{id}/data-values", s.handleDataValues)
	apiMux.HandleFunc("GET /api/streams/{id}/datum", s.handleDatum)
	apiMux.HandleFunc("POST /api/controls/{controlId}/instructions", s.handleExecuteInstruction)
	apiMux.HandleFunc("GET /api/events", s.handleListEvents)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.authMiddleware(apiMux))
	mux.HandleFunc("/healthz", s.handleHealthz)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

func (s *Server) getUserID(r *http.Request) int64 {
	if userID, ok := r.Context().Value(userIDContextKey).(int64); ok {
		return userID
	}
	// we want to have a stack trace when this happens
	panic("no userID in context")
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  15 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

// writeOperationError maps errors from the integration manager to a status.
func writeOperationError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrIntegrationNotFound):
		writeJSONError(w, "integration not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrDatumStreamNotFound):
		writeJSONError(w, "datum stream not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrControlNotFound):
		writeJSONError(w, "control not found", http.StatusNotFound)
	case errors.Is(err, c2c.ErrUnknownService):
		writeJSONError(w, "unknown integration service", http.StatusUnprocessableEntity)
	case errors.Is(err, c2c.ErrTransport):
		log.Ctx(ctx).WarnContext(ctx, "provider request failed", slog.Any("error", err))
		writeJSONError(w, "communication with the service failed", http.StatusBadGateway)
	default:
		log.Ctx(ctx).ErrorContext(ctx, "operation failed", slog.Any("error", err))
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
