package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EditStatus is the lifecycle state of a pending edit.
type EditStatus string

const (
	StatusPending  EditStatus = "pending"
	StatusApproved EditStatus = "approved"
	StatusRejected EditStatus = "rejected"
	StatusDeleted  EditStatus = "deleted"
)

// IsTerminal reports whether no further transition is allowed.
func (s EditStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusDeleted
}

// ParseEditStatus validates a stored status value.
func ParseEditStatus(raw string) (EditStatus, error) {
	switch status := EditStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case StatusPending, StatusApproved, StatusRejected, StatusDeleted:
		return status, nil
	default:
		return "", fmt.Errorf("unknown edit status %q", raw)
	}
}

// StatusFilter selects pending edits by status; StatusFilterAll matches any.
type StatusFilter string

const StatusFilterAll StatusFilter = "all"

// ParseStatusFilter accepts a status name or "all"; blank means pending.
func ParseStatusFilter(raw string) (StatusFilter, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return StatusFilter(StatusPending), nil
	}
	if raw == string(StatusFilterAll) {
		return StatusFilterAll, nil
	}
	status, err := ParseEditStatus(raw)
	if err != nil {
		return "", err
	}
	return StatusFilter(status), nil
}

// Matches reports whether status passes the filter.
func (f StatusFilter) Matches(status EditStatus) bool {
	return f == StatusFilterAll || EditStatus(f) == status
}

// PendingEdit is a queued proposal to change a target record.
type PendingEdit struct {
	ID            uuid.UUID  `json:"id"`
	TargetType    string     `json:"target_table"`
	TargetID      string     `json:"target_record_id"`
	TargetName    *string    `json:"site_name,omitempty"`
	Changes       ChangeSet  `json:"proposed_changes"`
	Status        EditStatus `json:"status"`
	RequestedBy   uuid.UUID  `json:"requested_by_user_id"`
	RequestedAt   time.Time  `json:"requested_at"`
	ReviewedBy    *uuid.UUID `json:"reviewed_by_user_id,omitempty"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty"`
	ReviewComment *string    `json:"review_comments,omitempty"`
}

// Submission is the persistence payload for a new pending edit.
type Submission struct {
	TargetType  string
	TargetID    string
	TargetName  *string
	Changes     ChangeSet
	Status      EditStatus
	RequestedBy uuid.UUID
}

// BuildSubmission packages a ChangeSet for persistence. It fails with
// ErrNoChanges when there is nothing to review, before any store call.
func BuildSubmission(targetType, targetID string, changes ChangeSet, requesterID uuid.UUID, displayName *string) (Submission, error) {
	const op = "build submission"

	changes.Comment = strings.TrimSpace(changes.Comment)
	if changes.IsEmpty() {
		return Submission{}, NewError(KindNoChanges, op, nil)
	}
	if strings.TrimSpace(targetType) == "" || strings.TrimSpace(targetID) == "" {
		return Submission{}, NewError(KindInvalidInput, op, fmt.Errorf("target type and id are required"))
	}
	if requesterID == uuid.Nil {
		return Submission{}, NewError(KindInvalidInput, op, fmt.Errorf("requester id is required"))
	}

	var name *string
	if displayName != nil {
		if trimmed := strings.TrimSpace(*displayName); trimmed != "" {
			name = &trimmed
		}
	}

	return Submission{
		TargetType:  targetType,
		TargetID:    targetID,
		TargetName:  name,
		Changes:     changes,
		Status:      StatusPending,
		RequestedBy: requesterID,
	}, nil
}

// ReviewAction is a reviewer's decision on a pending edit.
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
	ActionDelete  ReviewAction = "delete"
)

// ParseReviewAction accepts both verb ("approve") and status ("approved")
// spellings.
func ParseReviewAction(raw string) (ReviewAction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approve", "approved":
		return ActionApprove, nil
	case "reject", "rejected":
		return ActionReject, nil
	case "delete", "deleted":
		return ActionDelete, nil
	default:
		return "", fmt.Errorf("unknown review action %q", raw)
	}
}

// TargetStatus is the terminal status an action moves an edit into.
func (a ReviewAction) TargetStatus() EditStatus {
	switch a {
	case ActionApprove:
		return StatusApproved
	case ActionReject:
		return StatusRejected
	case ActionDelete:
		return StatusDeleted
	default:
		return ""
	}
}
