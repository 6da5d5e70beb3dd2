package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aashishaacharya/IMUdb-web/internal/db"
	"github.com/aashishaacharya/IMUdb-web/internal/domain"
)

// sqlEditApplier applies approved edits inside one database transaction.
type sqlEditApplier struct {
	conn *db.Connection
}

// NewSQLEditApplier creates an applier that writes through the given connection.
func NewSQLEditApplier(conn *db.Connection) EditApplier {
	return &sqlEditApplier{conn: conn}
}

// ApplyApprovedEdit locks the pending edit, writes every changed section onto
// the target tables and marks the edit approved. Nothing is written unless
// the edit is still pending when the lock is taken.
func (a *sqlEditApplier) ApplyApprovedEdit(ctx context.Context, id uuid.UUID, reviewerID uuid.UUID, comment *string) error {
	return a.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var (
			status      string
			targetType  string
			targetID    string
			changesJSON []byte
		)
		err := tx.QueryRow(ctx, `
			SELECT status, target_table, target_record_id, proposed_changes
			FROM pending_edits WHERE id = $1 FOR UPDATE`, id,
		).Scan(&status, &targetType, &targetID, &changesJSON)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("pending edit %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("failed to lock pending edit: %w", err)
		}
		if domain.EditStatus(status) != domain.StatusPending {
			return fmt.Errorf("pending edit %s is %s: %w", id, status, ErrNotPending)
		}
		if targetType != domain.TargetTypeSite {
			return fmt.Errorf("unsupported target table %q", targetType)
		}

		var changes domain.ChangeSet
		if err := json.Unmarshal(changesJSON, &changes); err != nil {
			return fmt.Errorf("failed to decode proposed changes: %w", err)
		}

		for _, section := range changes.Sections {
			if err := applySection(ctx, tx, targetID, section); err != nil {
				return err
			}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE pending_edits
			SET status = 'approved', reviewed_by_user_id = $2, reviewed_at = now(), review_comments = $3
			WHERE id = $1 AND status = 'pending'`,
			id, reviewerID, comment,
		)
		if err != nil {
			return fmt.Errorf("failed to mark pending edit approved: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("pending edit %s: %w", id, ErrNotPending)
		}
		return nil
	})
}

func applySection(ctx context.Context, tx pgx.Tx, targetID string, section domain.SectionChanges) error {
	spec, ok := domain.LookupSection(section.Key)
	if !ok {
		return fmt.Errorf("unknown section %q", section.Key)
	}
	if len(section.Diff) == 0 {
		return nil
	}

	columns := make([]string, 0, len(section.Diff))
	args := make([]any, 0, len(section.Diff)+1)
	args = append(args, targetID)
	for _, entry := range section.Diff {
		if !spec.HasColumn(entry.Field) {
			return fmt.Errorf("field %q is not editable in %s", entry.Field, spec.Table)
		}
		columns = append(columns, pgx.Identifier{entry.Field}.Sanitize())
		args = append(args, entry.Change.New)
	}

	table := pgx.Identifier{spec.Table}.Sanitize()
	keyColumn := pgx.Identifier{spec.KeyColumn}.Sanitize()

	if spec.Key == domain.SectionSite {
		assignments := make([]string, len(columns))
		for i, column := range columns {
			assignments[i] = fmt.Sprintf("%s = $%d", column, i+2)
		}
		query := fmt.Sprintf("UPDATE %s SET %s, updated_at = now() WHERE %s = $1",
			table, strings.Join(assignments, ", "), keyColumn)
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", spec.Table, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("site %s: %w", targetID, ErrNotFound)
		}
		return nil
	}

	// Sub-records may not exist yet; upsert on the one-to-one key.
	placeholders := make([]string, len(columns))
	updates := make([]string, len(columns))
	for i, column := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		updates[i] = fmt.Sprintf("%s = EXCLUDED.%s", column, column)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES ($1, %s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, keyColumn, strings.Join(columns, ", "), strings.Join(placeholders, ", "),
		keyColumn, strings.Join(updates, ", "))
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", spec.Table, err)
	}
	return nil
}
