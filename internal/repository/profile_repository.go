package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aashishaacharya/IMUdb-web/internal/db"
	"github.com/aashishaacharya/IMUdb-web/internal/domain"
)

type profileRepository struct {
	conn db.DBTX
}

// NewProfileRepository creates a user profile repository
func NewProfileRepository(conn db.DBTX) ProfileRepository {
	return &profileRepository{conn: conn}
}

// GetByID retrieves a profile by user ID
func (r *profileRepository) GetByID(ctx context.Context, id uuid.UUID) (Profile, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT user_id, email, COALESCE(name, ''), role, COALESCE(avatar_url, '')
		FROM user_profiles WHERE user_id = $1`, id)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
		}
		return Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// GetByIDs retrieves the profiles that exist among ids
func (r *profileRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Profile, error) {
	if len(ids) == 0 {
		return []Profile{}, nil
	}

	rows, err := r.conn.Query(ctx, `
		SELECT user_id, email, COALESCE(name, ''), role, COALESCE(avatar_url, '')
		FROM user_profiles WHERE user_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get profiles by IDs: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0, len(ids))
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var (
		profile Profile
		role    string
	)
	if err := row.Scan(&profile.UserID, &profile.Email, &profile.Name, &role, &profile.AvatarURL); err != nil {
		return Profile{}, err
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return Profile{}, err
	}
	profile.Role = parsed
	return profile, nil
}
