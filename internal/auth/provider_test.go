package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aashishaacharya/IMUdb-web/internal/domain"
	"github.com/aashishaacharya/IMUdb-web/internal/repository"
)

// stubProfiles fails the first `misses` lookups with err before answering.
type stubProfiles struct {
	mu      sync.Mutex
	profile repository.Profile
	misses  int
	err     error
	calls   int
}

var _ repository.ProfileRepository = (*stubProfiles)(nil)

func (s *stubProfiles) GetByID(_ context.Context, id uuid.UUID) (repository.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.misses {
		return repository.Profile{}, s.err
	}
	return s.profile, nil
}

func (s *stubProfiles) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]repository.Profile, error) {
	return nil, errors.New("not implemented")
}

func recordSleeps(session *Session) *[]time.Duration {
	var delays []time.Duration
	session.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return &delays
}

func TestSession_ResolvesProfileOnce(t *testing.T) {
	userID := uuid.New()
	profiles := &stubProfiles{profile: repository.Profile{UserID: userID, Email: "reviewer@ntc.net.np", Role: domain.RoleAdmin}}
	session := NewSession(userID, "reviewer@ntc.net.np", profiles, SessionOptions{ProfileRetries: 3, ProfileBackoff: 10 * time.Millisecond})

	var notified []*domain.Identity
	session.OnIdentityChange(func(identity *domain.Identity) { notified = append(notified, identity) })

	for i := 0; i < 3; i++ {
		identity, err := session.CurrentIdentity(context.Background())
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, domain.RoleAdmin, identity.Role)
	}
	assert.Equal(t, 1, profiles.calls)
	require.Len(t, notified, 1)
	assert.Equal(t, userID, notified[0].ID)
}

func TestSession_RetriesWithExponentialBackoff(t *testing.T) {
	userID := uuid.New()
	profiles := &stubProfiles{
		profile: repository.Profile{UserID: userID, Role: domain.RoleEditor},
		misses:  3,
		err:     repository.ErrNotFound,
	}
	session := NewSession(userID, "new.user@ntc.net.np", profiles, SessionOptions{
		ProfileRetries: 5,
		ProfileBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
	})
	delays := recordSleeps(session)

	identity, err := session.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEditor, identity.Role)
	assert.Equal(t, "new.user@ntc.net.np", identity.Email, "email falls back to token claim")
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}, *delays)
	assert.Equal(t, 4, profiles.calls)
}

func TestSession_MissingProfileFallsBackToPendingApproval(t *testing.T) {
	userID := uuid.New()
	profiles := &stubProfiles{misses: 100, err: repository.ErrNotFound}
	session := NewSession(userID, "someone@ntc.net.np", profiles, SessionOptions{ProfileRetries: 2, ProfileBackoff: time.Millisecond})
	recordSleeps(session)

	identity, err := session.CurrentIdentity(context.Background())
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, domain.RolePendingApproval, identity.Role)
	assert.Equal(t, userID, identity.ID)
	assert.Equal(t, 3, profiles.calls)
}

func TestSession_StoreErrorSurfacesAfterRetries(t *testing.T) {
	profiles := &stubProfiles{misses: 100, err: errors.New("connection refused")}
	session := NewSession(uuid.New(), "", profiles, SessionOptions{ProfileRetries: 1, ProfileBackoff: time.Millisecond})
	recordSleeps(session)

	_, err := session.CurrentIdentity(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 2, profiles.calls)
}

func TestSession_SignOutClearsIdentityAndNotifies(t *testing.T) {
	userID := uuid.New()
	profiles := &stubProfiles{profile: repository.Profile{UserID: userID, Role: domain.RoleViewer}}
	hookCalls := 0
	session := NewSession(userID, "", profiles, SessionOptions{
		OnSignOut: func(context.Context) error {
			hookCalls++
			return nil
		},
	})

	var events []*domain.Identity
	unsubscribe := session.OnIdentityChange(func(identity *domain.Identity) { events = append(events, identity) })

	_, err := session.CurrentIdentity(context.Background())
	require.NoError(t, err)
	require.NoError(t, session.SignOut(context.Background()))
	require.NoError(t, session.SignOut(context.Background()))

	identity, err := session.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.Nil(t, identity)
	assert.Equal(t, 1, hookCalls)
	require.Len(t, events, 2)
	assert.NotNil(t, events[0])
	assert.Nil(t, events[1])

	unsubscribe()
	unsubscribe()
}

func TestSession_UnsubscribeStopsNotifications(t *testing.T) {
	profiles := &stubProfiles{profile: repository.Profile{UserID: uuid.New(), Role: domain.RoleViewer}}
	session := NewSession(uuid.New(), "", profiles, SessionOptions{})

	called := false
	unsubscribe := session.OnIdentityChange(func(*domain.Identity) { called = true })
	unsubscribe()

	_, err := session.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.False(t, called)
}

func TestSleepContext_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepContext(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
