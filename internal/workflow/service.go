package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aashishaacharya/IMUdb-web/internal/access"
	"github.com/aashishaacharya/IMUdb-web/internal/domain"
	"github.com/aashishaacharya/IMUdb-web/internal/repository"
)

const defaultCallTimeout = 10 * time.Second

// Service runs the submit and review workflow for pending edits. Every
// failure it returns is a *domain.WorkflowError.
type Service struct {
	edits   repository.PendingEditRepository
	applier repository.EditApplier
	sites   repository.SiteRepository

	logger      *zap.Logger
	callTimeout time.Duration
	now         func() time.Time
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCallTimeout bounds every store and apply call.
func WithCallTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.callTimeout = timeout
		}
	}
}

// WithSiteRepository enables SubmitSiteEdit, which loads the original record
// server-side.
func WithSiteRepository(sites repository.SiteRepository) Option {
	return func(s *Service) {
		s.sites = sites
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(edits repository.PendingEditRepository, applier repository.EditApplier, opts ...Option) *Service {
	service := &Service{
		edits:       edits,
		applier:     applier,
		logger:      zap.NewNop(),
		callTimeout: defaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// SubmitRequest carries an edited copy of a record alongside the original it
// was derived from.
type SubmitRequest struct {
	TargetType string
	TargetID   string
	// TargetName is stored as a display snapshot; optional.
	TargetName *string
	Original   domain.Record
	Updated    domain.Record
	// SectionKeys lists nested sections to diff; nil means all site sections.
	SectionKeys []domain.SectionKey
	Comment     string
}

// SubmitEdit diffs the request and persists a pending edit.
func (s *Service) SubmitEdit(ctx context.Context, actor domain.Identity, req SubmitRequest) (domain.PendingEdit, error) {
	const op = "submit edit"

	if actor.ID == uuid.Nil {
		return domain.PendingEdit{}, domain.NewError(domain.KindUnauthenticated, op, nil)
	}
	if !access.CanSubmitEdit(actor.Role) {
		return domain.PendingEdit{}, domain.NewError(domain.KindForbidden, op, fmt.Errorf("role %q cannot submit edits", actor.Role))
	}

	keys := req.SectionKeys
	if keys == nil {
		keys = domain.SiteSectionKeys()
	}
	changes := domain.ComputeChangeSet(req.Original, req.Updated, keys)
	changes.Comment = req.Comment

	submission, err := domain.BuildSubmission(req.TargetType, req.TargetID, changes, actor.ID, req.TargetName)
	if err != nil {
		return domain.PendingEdit{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	edit, err := s.edits.Create(callCtx, submission)
	if err != nil {
		s.logger.Error("failed to persist pending edit",
			zap.String("target_id", req.TargetID),
			zap.String("requested_by", actor.ID.String()),
			zap.Error(err),
		)
		return domain.PendingEdit{}, classify(op, err, domain.KindPersistence)
	}

	s.logger.Info("pending edit submitted",
		zap.String("edit_id", edit.ID.String()),
		zap.String("target_id", edit.TargetID),
		zap.Int("fields", edit.Changes.FieldCount()),
		zap.String("requested_by", actor.ID.String()),
	)
	return edit, nil
}

// SubmitSiteEdit loads the current site, diffs it against updated and
// submits the result.
func (s *Service) SubmitSiteEdit(ctx context.Context, actor domain.Identity, siteID string, updated domain.Record, comment string) (domain.PendingEdit, error) {
	const op = "submit site edit"

	if s.sites == nil {
		return domain.PendingEdit{}, domain.NewError(domain.KindInvalidInput, op, errors.New("site lookups are not configured"))
	}
	if actor.ID == uuid.Nil {
		return domain.PendingEdit{}, domain.NewError(domain.KindUnauthenticated, op, nil)
	}
	if !access.CanSubmitEdit(actor.Role) {
		return domain.PendingEdit{}, domain.NewError(domain.KindForbidden, op, fmt.Errorf("role %q cannot submit edits", actor.Role))
	}
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return domain.PendingEdit{}, domain.NewError(domain.KindInvalidInput, op, errors.New("site id is required"))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	original, err := s.sites.GetRecord(callCtx, siteID)
	cancel()
	if err != nil {
		return domain.PendingEdit{}, classify(op, err, domain.KindPersistence)
	}

	return s.SubmitEdit(ctx, actor, SubmitRequest{
		TargetType: domain.TargetTypeSite,
		TargetID:   siteID,
		TargetName: siteName(updated, original),
		Original:   original,
		Updated:    updated,
		Comment:    comment,
	})
}

// ListEdits returns pending edits matching filter, newest first.
func (s *Service) ListEdits(ctx context.Context, filter domain.StatusFilter) ([]domain.PendingEdit, error) {
	const op = "list edits"

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	edits, err := s.edits.ListByStatus(callCtx, filter)
	if err != nil {
		return nil, classify(op, err, domain.KindPersistence)
	}
	return edits, nil
}

// GetEdit fetches one pending edit, for example to re-read its status after
// a Timeout.
func (s *Service) GetEdit(ctx context.Context, id uuid.UUID) (domain.PendingEdit, error) {
	const op = "get edit"

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	edit, err := s.edits.GetByID(callCtx, id)
	if err != nil {
		return domain.PendingEdit{}, classify(op, err, domain.KindPersistence)
	}
	return edit, nil
}

// ReviewEdit loads the edit and applies action to it.
func (s *Service) ReviewEdit(ctx context.Context, id uuid.UUID, action domain.ReviewAction, actor domain.Identity, comment string) (domain.PendingEdit, error) {
	if actor.ID == uuid.Nil {
		return domain.PendingEdit{}, domain.NewError(domain.KindUnauthenticated, "review edit", nil)
	}
	edit, err := s.GetEdit(ctx, id)
	if err != nil {
		return domain.PendingEdit{}, err
	}
	return s.Transition(ctx, edit, action, actor, comment)
}

// Transition moves a pending edit into the terminal status for action. The
// returned edit is re-read from the store so its review timestamp matches
// the persisted one. Conditional updates at the store
// guarantee that only one concurrent reviewer wins; the others get
// AlreadyReviewed. A Timeout means the outcome is unknown and is never
// retried here.
func (s *Service) Transition(ctx context.Context, edit domain.PendingEdit, action domain.ReviewAction, actor domain.Identity, comment string) (domain.PendingEdit, error) {
	const op = "review edit"

	if edit.Status.IsTerminal() {
		return domain.PendingEdit{}, domain.NewError(domain.KindAlreadyReviewed, op, fmt.Errorf("edit is %s", edit.Status))
	}

	comment = strings.TrimSpace(comment)
	switch action {
	case domain.ActionApprove, domain.ActionReject, domain.ActionDelete:
	default:
		return domain.PendingEdit{}, domain.NewError(domain.KindInvalidInput, op, fmt.Errorf("unknown action %q", action))
	}
	if action == domain.ActionReject && comment == "" {
		return domain.PendingEdit{}, domain.NewError(domain.KindCommentRequired, op, nil)
	}
	if err := authorize(action, actor, edit); err != nil {
		return domain.PendingEdit{}, domain.NewError(domain.KindForbidden, op, err)
	}

	var reviewComment *string
	if comment != "" {
		reviewComment = &comment
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	var err error
	if action == domain.ActionApprove {
		err = s.applier.ApplyApprovedEdit(callCtx, edit.ID, actor.ID, reviewComment)
		if err != nil {
			err = classifyApply(op, err)
		}
	} else {
		err = s.edits.UpdateStatus(callCtx, edit.ID, action.TargetStatus(), actor.ID, reviewComment)
		if err != nil {
			err = classify(op, err, domain.KindPersistence)
		}
	}
	if err != nil {
		s.logger.Warn("review transition failed",
			zap.String("edit_id", edit.ID.String()),
			zap.String("action", string(action)),
			zap.String("reviewer", actor.ID.String()),
			zap.String("kind", string(domain.KindOf(err))),
			zap.Error(err),
		)
		return domain.PendingEdit{}, err
	}

	if stored, readErr := s.edits.GetByID(callCtx, edit.ID); readErr == nil {
		edit = stored
	} else {
		// The store's review timestamp is unavailable; the service clock
		// stands in for it.
		s.logger.Debug("could not re-read reviewed edit", zap.String("edit_id", edit.ID.String()), zap.Error(readErr))
		reviewedAt := s.now().UTC()
		reviewer := actor.ID
		edit.Status = action.TargetStatus()
		edit.ReviewedBy = &reviewer
		edit.ReviewedAt = &reviewedAt
		edit.ReviewComment = reviewComment
	}

	s.logger.Info("pending edit reviewed",
		zap.String("edit_id", edit.ID.String()),
		zap.String("status", string(edit.Status)),
		zap.String("reviewer", actor.ID.String()),
	)
	return edit, nil
}

func authorize(action domain.ReviewAction, actor domain.Identity, edit domain.PendingEdit) error {
	switch action {
	case domain.ActionDelete:
		if !access.CanDelete(actor.Role, actor.ID, edit.RequestedBy) {
			return fmt.Errorf("only the requester or an admin may delete")
		}
	default:
		if !access.CanReview(actor.Role) {
			return fmt.Errorf("role %q cannot review edits", actor.Role)
		}
	}
	return nil
}

// classify converts a store or apply failure into exactly one workflow kind.
func classify(op string, err error, fallback domain.ErrorKind) error {
	if kind := domain.KindOf(err); kind != "" {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotPending):
		return domain.NewError(domain.KindAlreadyReviewed, op, err)
	case errors.Is(err, repository.ErrNotFound):
		return domain.NewError(domain.KindNotFound, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewError(domain.KindTimeout, op, err)
	default:
		return domain.NewError(fallback, op, err)
	}
}

// classifyApply is classify for the approve path. The edit was already
// loaded, so a missing row here is the target record and counts as an apply
// failure.
func classifyApply(op string, err error) error {
	if kind := domain.KindOf(err); kind != "" {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotPending):
		return domain.NewError(domain.KindAlreadyReviewed, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewError(domain.KindTimeout, op, err)
	default:
		return domain.NewError(domain.KindApply, op, err)
	}
}

func siteName(records ...domain.Record) *string {
	for _, record := range records {
		value, ok := record.Root.Get("site_name")
		if !ok {
			continue
		}
		if name, ok := value.(string); ok && strings.TrimSpace(name) != "" {
			return &name
		}
	}
	return nil
}
