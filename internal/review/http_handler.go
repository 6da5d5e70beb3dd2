package review

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aashishaacharya/IMUdb-web/internal/access"
	"github.com/aashishaacharya/IMUdb-web/internal/auth"
	"github.com/aashishaacharya/IMUdb-web/internal/domain"
	"github.com/aashishaacharya/IMUdb-web/internal/export"
	"github.com/aashishaacharya/IMUdb-web/internal/middleware"
	"github.com/aashishaacharya/IMUdb-web/internal/workflow"
)

const editsPath = "/api/pending-edits"

// maxBodyBytes caps submit and review payloads.
const maxBodyBytes = 1 << 20

type Handler struct {
	service *workflow.Service
	logger  *zap.Logger
}

func NewHTTPHandler(service *workflow.Service, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && path == "/healthz":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case r.Method == http.MethodGet && path == "/api/me":
		h.handleMe(w, r)
	case r.Method == http.MethodPost && path == "/api/logout":
		h.handleLogout(w, r)
	case r.Method == http.MethodGet && path == editsPath:
		h.handleList(w, r)
	case r.Method == http.MethodPost && path == editsPath:
		h.handleSubmit(w, r)
	case r.Method == http.MethodGet && path == editsPath+"/export":
		h.handleExport(w, r)
	case r.Method == http.MethodPost && strings.HasPrefix(path, editsPath+"/") && strings.HasSuffix(path, "/review"):
		h.handleReview(w, r, strings.TrimSuffix(strings.TrimPrefix(path, editsPath+"/"), "/review"))
	case r.Method == http.MethodGet && strings.HasPrefix(path, editsPath+"/"):
		h.handleGet(w, r, strings.TrimPrefix(path, editsPath+"/"))
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type meResponse struct {
	Identity    domain.Identity    `json:"identity"`
	DisplayName string             `json:"display_name"`
	Permissions access.Permissions `json:"permissions"`
}

type submitPayload struct {
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	Updated    map[string]any `json:"updated"`
	Comment    string         `json:"comment"`
}

type reviewPayload struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

// editView decorates a pending edit with the labels the review page shows.
type editView struct {
	domain.PendingEdit
	RequesterName string `json:"requester_name"`
	ReviewerName  string `json:"reviewer_name,omitempty"`
	Summary       string `json:"summary"`
}

type errorResponse struct {
	Error   string           `json:"error"`
	Kind    domain.ErrorKind `json:"kind"`
	Refresh bool             `json:"refresh,omitempty"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, err := h.currentIdentity(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Identity:    identity,
		DisplayName: identity.DisplayName(),
		Permissions: access.For(identity),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	provider, ok := auth.ProviderFromContext(r.Context())
	if !ok {
		h.writeError(w, domain.NewError(domain.KindUnauthenticated, "logout", nil))
		return
	}
	if err := provider.SignOut(r.Context()); err != nil {
		h.writeError(w, domain.NewError(domain.KindPersistence, "logout", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	edits, ok := h.listForPage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.decorate(r.Context(), edits))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	edits, ok := h.listForPage(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteReviewLog(&buf, edits, h.displayNames(r.Context(), edits)); err != nil {
		h.logger.Error("failed to render review log", zap.Error(err))
		http.Error(w, "failed to render export", http.StatusInternalServerError)
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" {
		status = string(domain.StatusPending)
	}
	filename := fmt.Sprintf("pending-edits-%s-%s.xlsx", status, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// listForPage authorises the review page and loads edits for the status
// query parameter. It writes the error response itself.
func (h *Handler) listForPage(w http.ResponseWriter, r *http.Request) ([]domain.PendingEdit, bool) {
	const op = "list edits"

	identity, err := h.currentIdentity(r.Context())
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	if !access.CanAccessPage(identity.Role, access.PagePendingEdits) {
		h.writeError(w, domain.NewError(domain.KindForbidden, op, nil))
		return nil, false
	}
	filter, err := domain.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, domain.NewError(domain.KindInvalidInput, op, err))
		return nil, false
	}
	edits, err := h.service.ListEdits(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return edits, true
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, rawID string) {
	const op = "get edit"

	identity, err := h.currentIdentity(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !access.CanAccessPage(identity.Role, access.PagePendingEdits) {
		h.writeError(w, domain.NewError(domain.KindForbidden, op, nil))
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		h.writeError(w, domain.NewError(domain.KindInvalidInput, op, fmt.Errorf("invalid edit id: %w", err)))
		return
	}
	edit, err := h.service.GetEdit(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.decorate(r.Context(), []domain.PendingEdit{edit})[0])
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "submit edit"

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	identity, err := h.currentIdentity(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, domain.NewError(domain.KindInvalidInput, op, fmt.Errorf("invalid payload: %w", err)))
		return
	}
	targetType := strings.TrimSpace(payload.TargetType)
	if targetType == "" {
		targetType = domain.TargetTypeSite
	}
	if targetType != domain.TargetTypeSite {
		h.writeError(w, domain.NewError(domain.KindInvalidInput, op, fmt.Errorf("unsupported target type %q", payload.TargetType)))
		return
	}
	if payload.Updated == nil {
		h.writeError(w, domain.NewError(domain.KindInvalidInput, op, fmt.Errorf("updated record is required")))
		return
	}

	edit, err := h.service.SubmitSiteEdit(r.Context(), identity, payload.TargetID, domain.RecordFromMap(payload.Updated), payload.Comment)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.decorate(r.Context(), []domain.PendingEdit{edit})[0])
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request, rawID string) {
	const op = "review edit"

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()
	identity, err := h.currentIdentity(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		h.writeError(w, domain.NewError(domain.KindInvalidInput, op, fmt.Errorf("invalid edit id: %w", err)))
		return
	}

	var payload reviewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, domain.NewError(domain.KindInvalidInput, op, fmt.Errorf("invalid payload: %w", err)))
		return
	}
	action, err := domain.ParseReviewAction(payload.Action)
	if err != nil {
		h.writeError(w, domain.NewError(domain.KindInvalidInput, op, err))
		return
	}

	edit, err := h.service.ReviewEdit(r.Context(), id, action, identity, payload.Comment)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.decorate(r.Context(), []domain.PendingEdit{edit})[0])
}

func (h *Handler) currentIdentity(ctx context.Context) (domain.Identity, error) {
	const op = "resolve identity"

	provider, ok := auth.ProviderFromContext(ctx)
	if !ok {
		return domain.Identity{}, domain.NewError(domain.KindUnauthenticated, op, nil)
	}
	identity, err := provider.CurrentIdentity(ctx)
	if err != nil {
		if domain.KindOf(err) != "" {
			return domain.Identity{}, err
		}
		return domain.Identity{}, domain.NewError(domain.KindPersistence, op, err)
	}
	if identity == nil || identity.ID == uuid.Nil {
		return domain.Identity{}, domain.NewError(domain.KindUnauthenticated, op, nil)
	}
	return *identity, nil
}

func (h *Handler) decorate(ctx context.Context, edits []domain.PendingEdit) []editView {
	names := h.displayNames(ctx, edits)
	views := make([]editView, len(edits))
	for i, edit := range edits {
		view := editView{
			PendingEdit:   edit,
			RequesterName: nameOr(names, edit.RequestedBy),
			Summary:       domain.ChangeSummary(edit.Changes),
		}
		if edit.ReviewedBy != nil {
			view.ReviewerName = nameOr(names, *edit.ReviewedBy)
		}
		views[i] = view
	}
	return views
}

// displayNames batches requester and reviewer lookups through the request's
// profile loader. Lookup failures degrade to "Unknown" labels.
func (h *Handler) displayNames(ctx context.Context, edits []domain.PendingEdit) map[uuid.UUID]string {
	loader := middleware.ProfileLoaderFromContext(ctx)
	if loader == nil || len(edits) == 0 {
		return map[uuid.UUID]string{}
	}
	ids := make([]uuid.UUID, 0, len(edits)*2)
	for _, edit := range edits {
		ids = append(ids, edit.RequestedBy)
		if edit.ReviewedBy != nil {
			ids = append(ids, *edit.ReviewedBy)
		}
	}
	names, err := loader.DisplayNames(ctx, ids)
	if err != nil {
		h.logger.Warn("failed to load profile names", zap.Error(err))
		return map[uuid.UUID]string{}
	}
	return names
}

func nameOr(names map[uuid.UUID]string, id uuid.UUID) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return "Unknown"
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindNoChanges:       http.StatusUnprocessableEntity,
	domain.KindCommentRequired: http.StatusUnprocessableEntity,
	domain.KindInvalidInput:    http.StatusBadRequest,
	domain.KindUnauthenticated: http.StatusUnauthorized,
	domain.KindForbidden:       http.StatusForbidden,
	domain.KindNotFound:        http.StatusNotFound,
	domain.KindAlreadyReviewed: http.StatusConflict,
	domain.KindTimeout:         http.StatusGatewayTimeout,
	domain.KindPersistence:     http.StatusBadGateway,
	domain.KindApply:           http.StatusBadGateway,
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{
		Error:   err.Error(),
		Kind:    kind,
		Refresh: kind == domain.KindAlreadyReviewed,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
