package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/raterudder/c2c/pkg/log"
)

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))

		var userID int64
		if s.bypassAuth {
			userID = s.bypassUserID
		} else {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Ctx(ctx).WarnContext(ctx, "unauthenticated request")
				writeJSONError(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				log.Ctx(ctx).WarnContext(ctx, "invalid auth header")
				writeJSONError(w, "invalid auth header", http.StatusBadRequest)
				return
			}
			var err error
			userID, err = s.authenticateToken(ctx, token)
			if err != nil {
				log.Ctx(ctx).WarnContext(ctx, "auth token validation failed", slog.Any("error", err))
				writeJSONError(w, "invalid auth token", http.StatusUnauthorized)
				return
			}
		}

		ctx = log.With(ctx, log.Ctx(ctx).With(slog.Int64("authUserID", userID)))
		log.Ctx(ctx).DebugContext(ctx, "authenticated request")

		ctx = context.WithValue(ctx, userIDContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticateToken verifies an ID token and returns its subject, which must
// be a positive numeric user ID.
func (s *Server) authenticateToken(ctx context.Context, token string) (int64, error) {
	if s.oidcVerifier == nil {
		return 0, errors.New("no token verifier configured")
	}
	idToken, err := s.oidcVerifier(ctx, token)
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(idToken.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("invalid subject %q", idToken.Subject)
	}
	return userID, nil
}
