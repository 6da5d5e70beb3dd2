package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aashishaacharya/IMUdb-web/internal/domain"
	"github.com/aashishaacharya/IMUdb-web/internal/repository"
)

func setupMiddleware(t *testing.T) (*TokenValidator, *repository.MemoryStore, func(http.Handler) http.Handler) {
	t.Helper()
	v, err := NewTokenValidator(testSecret, "", "")
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}
	store := repository.NewMemoryStore()
	return v, store, NewMiddleware(v, store.Profiles(), SessionOptions{})
}

func TestMiddleware_ValidTokenAttachesProvider(t *testing.T) {
	v, store, middleware := setupMiddleware(t)
	userID := uuid.New()
	store.PutProfile(repository.Profile{UserID: userID, Email: "editor@ntc.net.np", Role: domain.RoleEditor})

	var captured *domain.Identity
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provider, ok := ProviderFromContext(r.Context())
		if !ok {
			t.Error("expected provider in context")
			return
		}
		identity, err := provider.CurrentIdentity(r.Context())
		if err != nil {
			t.Errorf("unexpected identity error: %v", err)
		}
		captured = identity
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, v, userID.String(), time.Now().Add(time.Hour)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if captured == nil || captured.ID != userID || captured.Role != domain.RoleEditor {
		t.Fatalf("unexpected identity: %+v", captured)
	}
}

func TestMiddleware_RejectsMissingAndMalformedHeaders(t *testing.T) {
	_, _, middleware := setupMiddleware(t)
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/api/pending-edits", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestMiddleware_PublicPathAndPreflightBypassAuth(t *testing.T) {
	_, _, middleware := setupMiddleware(t)
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/healthz", nil),
		httptest.NewRequest(http.MethodOptions, "/api/pending-edits", nil),
	} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Errorf("%s %s: expected 204, got %d", req.Method, req.URL.Path, w.Code)
		}
	}
}

func TestMiddleware_SignOutRevokesToken(t *testing.T) {
	v, _, middleware := setupMiddleware(t)
	token := signTestToken(t, v, uuid.NewString(), time.Now().Add(time.Hour))

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provider, _ := ProviderFromContext(r.Context())
		if err := provider.SignOut(r.Context()); err != nil {
			t.Errorf("sign out failed: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to get 401, got %d", w.Code)
	}
}

func TestMiddleware_NilValidatorFailsClosed(t *testing.T) {
	middleware := NewMiddleware(nil, repository.NewMemoryStore().Profiles(), SessionOptions{})
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer something")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
