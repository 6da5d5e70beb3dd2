package profileloader

import (
	"context"
	"fmt"
	"time"

	"github.com/aashishaacharya/IMUdb-web/internal/domain"
	"github.com/aashishaacharya/IMUdb-web/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// ProfileLoader batches requester and reviewer lookups for one request.
type ProfileLoader struct {
	Loader *dataloader.Loader
}

func NewProfileLoader(repo repository.ProfileRepository) *ProfileLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				results := make([]*dataloader.Result, len(keys))
				for j := range results {
					results[j] = &dataloader.Result{Error: fmt.Errorf("invalid UUID: %w", err)}
				}
				return results
			}
			ids[i] = id
		}

		profiles, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		profileMap := make(map[uuid.UUID]repository.Profile, len(profiles))
		for _, p := range profiles {
			profileMap[p.UserID] = p
		}

		// Missing profiles resolve to nil data, not an error.
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if p, ok := profileMap[id]; ok {
				results[i] = &dataloader.Result{Data: p}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))
	return &ProfileLoader{Loader: loader}
}

// DisplayNames resolves a short label for every id. Unknown ids map to
// "Unknown"; a failed batch is returned as an error.
func (l *ProfileLoader) DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	thunks := make([]dataloader.Thunk, len(unique))
	for i, id := range unique {
		thunks[i] = l.Loader.Load(ctx, dataloader.StringKey(id.String()))
	}

	names := make(map[uuid.UUID]string, len(unique))
	for i, thunk := range thunks {
		data, err := thunk()
		if err != nil {
			return nil, fmt.Errorf("failed to load profile %s: %w", unique[i], err)
		}
		profile, ok := data.(repository.Profile)
		if !ok {
			names[unique[i]] = domain.DisplayName("", "")
			continue
		}
		names[unique[i]] = domain.DisplayName(profile.Name, profile.Email)
	}
	return names, nil
}
