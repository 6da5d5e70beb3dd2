package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aashishaacharya/IMUdb-web/internal/db"
	"github.com/aashishaacharya/IMUdb-web/internal/domain"
)

const pendingEditColumns = `id, target_table, target_record_id, site_name, proposed_changes, status,
	requested_by_user_id, requested_at, reviewed_by_user_id, reviewed_at, review_comments`

// pendingEditRepository implements PendingEditRepository on Postgres
type pendingEditRepository struct {
	conn db.DBTX
}

// NewPendingEditRepository creates a new pending edit repository
func NewPendingEditRepository(conn db.DBTX) PendingEditRepository {
	return &pendingEditRepository{conn: conn}
}

// Create inserts a new pending edit
func (r *pendingEditRepository) Create(ctx context.Context, submission domain.Submission) (domain.PendingEdit, error) {
	changesJSON, err := json.Marshal(submission.Changes)
	if err != nil {
		return domain.PendingEdit{}, fmt.Errorf("failed to marshal proposed changes: %w", err)
	}

	status := submission.Status
	if status == "" {
		status = domain.StatusPending
	}

	row := r.conn.QueryRow(ctx, `
		INSERT INTO pending_edits (target_table, target_record_id, site_name, proposed_changes, status, requested_by_user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+pendingEditColumns,
		submission.TargetType,
		submission.TargetID,
		submission.TargetName,
		changesJSON,
		string(status),
		submission.RequestedBy,
	)

	edit, err := scanPendingEdit(row)
	if err != nil {
		return domain.PendingEdit{}, fmt.Errorf("failed to create pending edit: %w", err)
	}
	return edit, nil
}

// GetByID retrieves a pending edit by ID
func (r *pendingEditRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.PendingEdit, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+pendingEditColumns+` FROM pending_edits WHERE id = $1`, id)
	edit, err := scanPendingEdit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PendingEdit{}, fmt.Errorf("failed to get pending edit %s: %w", id, ErrNotFound)
		}
		return domain.PendingEdit{}, fmt.Errorf("failed to get pending edit: %w", err)
	}
	return edit, nil
}

// ListByStatus lists edits matching the filter, most recent first
func (r *pendingEditRepository) ListByStatus(ctx context.Context, filter domain.StatusFilter) ([]domain.PendingEdit, error) {
	query := `SELECT ` + pendingEditColumns + ` FROM pending_edits`
	args := []any{}
	if filter != domain.StatusFilterAll {
		query += ` WHERE status = $1`
		args = append(args, string(filter))
	}
	query += ` ORDER BY requested_at DESC, id DESC`

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending edits: %w", err)
	}
	defer rows.Close()

	edits := []domain.PendingEdit{}
	for rows.Next() {
		edit, err := scanPendingEdit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending edit: %w", err)
		}
		edits = append(edits, edit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending edits: %w", err)
	}
	return edits, nil
}

// UpdateStatus conditionally moves a pending edit into a terminal status
func (r *pendingEditRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.EditStatus, reviewerID uuid.UUID, comment *string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %q is not a review outcome", status)
	}

	tag, err := r.conn.Exec(ctx, `
		UPDATE pending_edits
		SET status = $2, reviewed_by_user_id = $3, reviewed_at = now(), review_comments = $4
		WHERE id = $1 AND status = 'pending'`,
		id, string(status), reviewerID, comment,
	)
	if err != nil {
		return fmt.Errorf("failed to update pending edit status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id)
	}
	return nil
}

// classifyMiss tells a missing row apart from one that was already reviewed.
func (r *pendingEditRepository) classifyMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pending_edits WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check pending edit: %w", err)
	}
	if !exists {
		return fmt.Errorf("pending edit %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("pending edit %s: %w", id, ErrNotPending)
}

func scanPendingEdit(row pgx.Row) (domain.PendingEdit, error) {
	var (
		edit          domain.PendingEdit
		targetName    *string
		changesJSON   []byte
		status        string
		reviewedBy    *uuid.UUID
		reviewedAt    *time.Time
		reviewComment *string
	)

	if err := row.Scan(
		&edit.ID,
		&edit.TargetType,
		&edit.TargetID,
		&targetName,
		&changesJSON,
		&status,
		&edit.RequestedBy,
		&edit.RequestedAt,
		&reviewedBy,
		&reviewedAt,
		&reviewComment,
	); err != nil {
		return domain.PendingEdit{}, err
	}

	parsedStatus, err := domain.ParseEditStatus(status)
	if err != nil {
		return domain.PendingEdit{}, err
	}
	if err := json.Unmarshal(changesJSON, &edit.Changes); err != nil {
		return domain.PendingEdit{}, fmt.Errorf("failed to decode proposed changes: %w", err)
	}

	edit.TargetName = targetName
	edit.Status = parsedStatus
	edit.ReviewedBy = reviewedBy
	edit.ReviewedAt = reviewedAt
	edit.ReviewComment = reviewComment
	return edit, nil
}
