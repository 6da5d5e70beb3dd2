package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aashishaacharya/IMUdb-web/internal/db"
	"github.com/aashishaacharya/IMUdb-web/internal/domain"
)

type siteRepository struct {
	conn db.DBTX
}

// NewSiteRepository creates a site loader backed by Postgres
func NewSiteRepository(conn db.DBTX) SiteRepository {
	return &siteRepository{conn: conn}
}

// GetRecord loads a site with its sub-records. Each relation comes back as a
// JSON array, which RecordFromMap collapses to a single object or nil.
func (r *siteRepository) GetRecord(ctx context.Context, siteID string) (domain.Record, error) {
	var (
		siteJSON []byte
		related  = make([][]byte, len(domain.SiteSectionKeys()))
	)

	dest := []any{&siteJSON}
	for i := range related {
		dest = append(dest, &related[i])
	}

	err := r.conn.QueryRow(ctx, `
		SELECT to_jsonb(s),
			(SELECT jsonb_agg(to_jsonb(c)) FROM site_configuration c WHERE c.site_id = s.site_id),
			(SELECT jsonb_agg(to_jsonb(l)) FROM site_landowner l WHERE l.site_id = s.site_id),
			(SELECT jsonb_agg(to_jsonb(p)) FROM site_power p WHERE p.site_id = s.site_id),
			(SELECT jsonb_agg(to_jsonb(n)) FROM site_nea n WHERE n.site_id = s.site_id),
			(SELECT jsonb_agg(to_jsonb(t)) FROM site_transmission t WHERE t.site_id = s.site_id)
		FROM site s
		WHERE s.site_id = $1`, siteID,
	).Scan(dest...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, fmt.Errorf("site %s: %w", siteID, ErrNotFound)
		}
		return domain.Record{}, fmt.Errorf("failed to load site: %w", err)
	}

	document := map[string]any{}
	if err := json.Unmarshal(siteJSON, &document); err != nil {
		return domain.Record{}, fmt.Errorf("failed to decode site: %w", err)
	}
	for i, key := range domain.SiteSectionKeys() {
		if related[i] == nil {
			document[string(key)] = nil
			continue
		}
		var rows []any
		if err := json.Unmarshal(related[i], &rows); err != nil {
			return domain.Record{}, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		document[string(key)] = rows
	}

	return domain.RecordFromMap(document), nil
}
