package repository

import (
	"context"
	"errors"

	"github.com/aashishaacharya/IMUdb-web/internal/domain"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrNotPending is returned by conditional status updates when the edit
	// has already left the pending state.
	ErrNotPending = errors.New("pending edit is no longer pending")
)

// PendingEditRepository defines the persistence boundary for pending edits.
type PendingEditRepository interface {
	Create(ctx context.Context, submission domain.Submission) (domain.PendingEdit, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.PendingEdit, error)
	// ListByStatus returns edits most recent first.
	ListByStatus(ctx context.Context, filter domain.StatusFilter) ([]domain.PendingEdit, error)
	// UpdateStatus moves a pending edit into a terminal status. It only
	// matches rows still in pending and returns ErrNotPending otherwise.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EditStatus, reviewerID uuid.UUID, comment *string) error
}

// EditApplier writes an approved edit's new values onto the target record
// and marks the edit approved, atomically.
type EditApplier interface {
	ApplyApprovedEdit(ctx context.Context, id uuid.UUID, reviewerID uuid.UUID, comment *string) error
}

// SiteRepository loads the editable form of a site.
type SiteRepository interface {
	GetRecord(ctx context.Context, siteID string) (domain.Record, error)
}

// Profile is a stored user profile.
type Profile struct {
	UserID    uuid.UUID
	Email     string
	Name      string
	Role      domain.Role
	AvatarURL string
}

// Identity projects the profile onto the workflow identity.
func (p Profile) Identity() domain.Identity {
	return domain.Identity{ID: p.UserID, Email: p.Email, Name: p.Name, Role: p.Role}
}

// ProfileRepository resolves user profiles.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Profile, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Profile, error)
}
