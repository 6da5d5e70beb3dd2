package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aashishaacharya/IMUdb-web/internal/domain"
)

// MemoryStore backs the workflow when no database is configured. It
// implements the pending edit, site and applier interfaces directly and
// serves profiles through Profiles. All writes are serialised so
// conditional status updates behave like the SQL versions.
type MemoryStore struct {
	mu       sync.RWMutex
	edits    map[uuid.UUID]domain.PendingEdit
	sites    map[string]domain.Record
	profiles map[uuid.UUID]Profile
	now      func() time.Time
}

var (
	_ PendingEditRepository = (*MemoryStore)(nil)
	_ EditApplier           = (*MemoryStore)(nil)
	_ SiteRepository        = (*MemoryStore)(nil)
	_ ProfileRepository     = memoryProfiles{}
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		edits:    map[uuid.UUID]domain.PendingEdit{},
		sites:    map[string]domain.Record{},
		profiles: map[uuid.UUID]Profile{},
		now:      time.Now,
	}
}

// PutSite stores or replaces a site record.
func (s *MemoryStore) PutSite(siteID string, record domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[siteID] = cloneRecord(record)
}

// PutProfile stores or replaces a user profile.
func (s *MemoryStore) PutProfile(profile Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
}

func (s *MemoryStore) Create(_ context.Context, submission domain.Submission) (domain.PendingEdit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := submission.Status
	if status == "" {
		status = domain.StatusPending
	}
	edit := domain.PendingEdit{
		ID:          uuid.New(),
		TargetType:  submission.TargetType,
		TargetID:    submission.TargetID,
		TargetName:  submission.TargetName,
		Changes:     submission.Changes,
		Status:      status,
		RequestedBy: submission.RequestedBy,
		RequestedAt: s.now().UTC(),
	}
	s.edits[edit.ID] = edit
	return edit, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (domain.PendingEdit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edit, ok := s.edits[id]
	if !ok {
		return domain.PendingEdit{}, fmt.Errorf("pending edit %s: %w", id, ErrNotFound)
	}
	return edit, nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, filter domain.StatusFilter) ([]domain.PendingEdit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PendingEdit, 0, len(s.edits))
	for _, edit := range s.edits {
		if filter.Matches(edit.Status) {
			out = append(out, edit)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].RequestedAt.After(out[j].RequestedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.EditStatus, reviewerID uuid.UUID, comment *string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %q is not a review outcome", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	edit, err := s.pendingLocked(id)
	if err != nil {
		return err
	}
	s.markReviewedLocked(edit, status, reviewerID, comment)
	return nil
}

// ApplyApprovedEdit merges the edit's new values into the stored site and
// marks the edit approved under one lock.
func (s *MemoryStore) ApplyApprovedEdit(_ context.Context, id uuid.UUID, reviewerID uuid.UUID, comment *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	edit, err := s.pendingLocked(id)
	if err != nil {
		return err
	}
	if edit.TargetType != domain.TargetTypeSite {
		return fmt.Errorf("unsupported target table %q", edit.TargetType)
	}
	record, ok := s.sites[edit.TargetID]
	if !ok {
		return fmt.Errorf("site %s: %w", edit.TargetID, ErrNotFound)
	}

	record = cloneRecord(record)
	for _, section := range edit.Changes.Sections {
		spec, ok := domain.LookupSection(section.Key)
		if !ok {
			return fmt.Errorf("unknown section %q", section.Key)
		}
		fields := record.Root
		if section.Key != domain.SectionSite {
			fields = record.Section(section.Key)
			if fields == nil {
				fields = domain.Fields{}
			}
		}
		for _, entry := range section.Diff {
			if !spec.HasColumn(entry.Field) {
				return fmt.Errorf("field %q is not editable in %s", entry.Field, spec.Table)
			}
			fields = fields.Set(entry.Field, entry.Change.New)
		}
		if section.Key == domain.SectionSite {
			record.Root = fields
		} else {
			record.Sections[section.Key] = fields
		}
	}

	s.sites[edit.TargetID] = record
	s.markReviewedLocked(edit, domain.StatusApproved, reviewerID, comment)
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, siteID string) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.sites[siteID]
	if !ok {
		return domain.Record{}, fmt.Errorf("site %s: %w", siteID, ErrNotFound)
	}
	return cloneRecord(record), nil
}

// Profiles exposes the stored user profiles as a ProfileRepository.
func (s *MemoryStore) Profiles() ProfileRepository {
	return memoryProfiles{store: s}
}

type memoryProfiles struct {
	store *MemoryStore
}

func (p memoryProfiles) GetByID(_ context.Context, id uuid.UUID) (Profile, error) {
	p.store.mu.RLock()
	defer p.store.mu.RUnlock()
	profile, ok := p.store.profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return profile, nil
}

func (p memoryProfiles) GetByIDs(_ context.Context, ids []uuid.UUID) ([]Profile, error) {
	p.store.mu.RLock()
	defer p.store.mu.RUnlock()
	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		if profile, ok := p.store.profiles[id]; ok {
			out = append(out, profile)
		}
	}
	return out, nil
}

func (s *MemoryStore) pendingLocked(id uuid.UUID) (domain.PendingEdit, error) {
	edit, ok := s.edits[id]
	if !ok {
		return domain.PendingEdit{}, fmt.Errorf("pending edit %s: %w", id, ErrNotFound)
	}
	if edit.Status != domain.StatusPending {
		return domain.PendingEdit{}, fmt.Errorf("pending edit %s is %s: %w", id, edit.Status, ErrNotPending)
	}
	return edit, nil
}

func (s *MemoryStore) markReviewedLocked(edit domain.PendingEdit, status domain.EditStatus, reviewerID uuid.UUID, comment *string) {
	reviewedAt := s.now().UTC()
	reviewer := reviewerID
	edit.Status = status
	edit.ReviewedBy = &reviewer
	edit.ReviewedAt = &reviewedAt
	if comment != nil {
		value := *comment
		edit.ReviewComment = &value
	}
	s.edits[edit.ID] = edit
}

func cloneRecord(record domain.Record) domain.Record {
	out := domain.Record{Sections: make(map[domain.SectionKey]domain.Fields, len(record.Sections))}
	if record.Root != nil {
		out.Root = append(domain.Fields{}, record.Root...)
	}
	for key, fields := range record.Sections {
		if fields == nil {
			out.Sections[key] = nil
			continue
		}
		out.Sections[key] = append(domain.Fields{}, fields...)
	}
	return out
}
