package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aashishaacharya/IMUdb-web/internal/domain"
	"github.com/aashishaacharya/IMUdb-web/internal/repository"
)

// publicPaths are endpoints that do not require authentication.
var publicPaths = []string{
	"/healthz",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// NewMiddleware creates bearer-token auth middleware. Each authenticated
// request gets its own Session in the context. A nil validator rejects every
// non-public request.
func NewMiddleware(validator *TokenValidator, profiles repository.ProfileRepository, opts SessionOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "Missing Authorization header")
				return
			}
			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenStr) == "" {
				writeUnauthorized(w, "Invalid Authorization header format (expected 'Bearer <token>')")
				return
			}
			tokenStr = strings.TrimSpace(tokenStr)

			if validator == nil {
				writeUnauthorized(w, "Authentication not configured")
				return
			}
			claims, err := validator.Validate(tokenStr)
			if err != nil {
				logger.Debug("rejected access token", zap.Error(err))
				writeUnauthorized(w, "Invalid or expired token")
				return
			}
			userID, err := claims.UserID()
			if err != nil {
				writeUnauthorized(w, "Token subject is required")
				return
			}

			sessionOpts := opts
			sessionOpts.Logger = logger
			sessionOpts.OnSignOut = func(context.Context) error {
				until := time.Now().Add(time.Hour)
				if claims.ExpiresAt != nil {
					until = claims.ExpiresAt.Time
				}
				validator.Revoke(tokenStr, until)
				return nil
			}
			session := NewSession(userID, claims.Email, profiles, sessionOpts)
			unsubscribe := session.OnIdentityChange(func(identity *domain.Identity) {
				if identity == nil {
					logger.Info("session signed out", zap.String("user_id", userID.String()))
					return
				}
				logger.Debug("identity resolved",
					zap.String("user_id", identity.ID.String()),
					zap.String("role", string(identity.Role)),
				)
			})
			defer unsubscribe()

			next.ServeHTTP(w, r.WithContext(ContextWithProvider(r.Context(), session)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"kind":  string(domain.KindUnauthenticated),
	})
}
