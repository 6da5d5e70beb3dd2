package middleware

import (
	"context"
	"net/http"

	"github.com/aashishaacharya/IMUdb-web/internal/profileloader"
	"github.com/aashishaacharya/IMUdb-web/internal/repository"
)

type ctxKey string

const profileLoaderKey ctxKey = "profileLoader"

// DataLoaderMiddleware attaches a request-scoped profile loader to the context
func DataLoaderMiddleware(repo repository.ProfileRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := profileloader.NewProfileLoader(repo)
			ctx := context.WithValue(r.Context(), profileLoaderKey, loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProfileLoaderFromContext retrieves the profile loader from context
func ProfileLoaderFromContext(ctx context.Context) *profileloader.ProfileLoader {
	if l, ok := ctx.Value(profileLoaderKey).(*profileloader.ProfileLoader); ok {
		return l
	}
	return nil
}
