package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aashishaacharya/IMUdb-web/internal/domain"
	"github.com/aashishaacharya/IMUdb-web/internal/repository"
)

// Provider supplies the authenticated identity to the workflow.
type Provider interface {
	// CurrentIdentity returns nil when nobody is signed in.
	CurrentIdentity(ctx context.Context) (*domain.Identity, error)
	// OnIdentityChange registers listener and returns a function removing it.
	OnIdentityChange(listener func(*domain.Identity)) (unsubscribe func())
	SignOut(ctx context.Context) error
}

// SessionOptions bound the profile lookup performed on first use.
type SessionOptions struct {
	// ProfileRetries is the number of extra lookups after the first miss.
	ProfileRetries int
	// ProfileBackoff is the delay before the first retry; it doubles after
	// each attempt.
	ProfileBackoff time.Duration
	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration
	// OnSignOut runs once when the session is signed out.
	OnSignOut func(ctx context.Context) error
	Logger    *zap.Logger
}

// Session is a Provider for one authenticated token. The profile row is
// created asynchronously after sign-up, so a missing profile is retried
// with bounded exponential backoff before falling back to a
// pending_approval identity.
type Session struct {
	userID   uuid.UUID
	email    string
	profiles repository.ProfileRepository
	opts     SessionOptions
	sleep    func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	identity  *domain.Identity
	resolved  bool
	signedOut bool
	listeners map[int]func(*domain.Identity)
	nextID    int
}

var _ Provider = (*Session)(nil)

// NewSession creates a provider for the token holder.
func NewSession(userID uuid.UUID, email string, profiles repository.ProfileRepository, opts SessionOptions) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ProfileRetries < 0 {
		opts.ProfileRetries = 0
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 2 * time.Second
	}
	return &Session{
		userID:    userID,
		email:     email,
		profiles:  profiles,
		opts:      opts,
		sleep:     sleepContext,
		listeners: map[int]func(*domain.Identity){},
	}
}

func (s *Session) CurrentIdentity(ctx context.Context) (*domain.Identity, error) {
	s.mu.Lock()
	if s.signedOut {
		s.mu.Unlock()
		return nil, nil
	}
	if s.resolved {
		identity := copyIdentity(s.identity)
		s.mu.Unlock()
		return identity, nil
	}
	s.mu.Unlock()

	identity, err := s.resolve(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.signedOut {
		s.mu.Unlock()
		return nil, nil
	}
	first := !s.resolved
	if first {
		s.identity = identity
		s.resolved = true
	}
	current := copyIdentity(s.identity)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if first {
		notify(listeners, current)
	}
	return current, nil
}

func (s *Session) OnIdentityChange(listener func(*domain.Identity)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
		})
	}
}

func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if s.signedOut {
		s.mu.Unlock()
		return nil
	}
	s.signedOut = true
	s.identity = nil
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	var err error
	if s.opts.OnSignOut != nil {
		err = s.opts.OnSignOut(ctx)
	}
	notify(listeners, nil)
	return err
}

func (s *Session) resolve(ctx context.Context) (*domain.Identity, error) {
	delay := s.opts.ProfileBackoff
	for attempt := 0; ; attempt++ {
		profile, err := s.profiles.GetByID(ctx, s.userID)
		if err == nil {
			identity := profile.Identity()
			if identity.Email == "" {
				identity.Email = s.email
			}
			return &identity, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= s.opts.ProfileRetries {
			if errors.Is(err, repository.ErrNotFound) {
				s.opts.Logger.Warn("no profile for authenticated user",
					zap.String("user_id", s.userID.String()),
					zap.Int("attempts", attempt+1),
				)
				return &domain.Identity{ID: s.userID, Email: s.email, Role: domain.RolePendingApproval}, nil
			}
			return nil, fmt.Errorf("failed to resolve profile: %w", err)
		}

		s.opts.Logger.Debug("profile lookup failed, retrying",
			zap.String("user_id", s.userID.String()),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
		if delay > s.opts.MaxBackoff {
			delay = s.opts.MaxBackoff
		}
	}
}

func (s *Session) snapshotListeners() []func(*domain.Identity) {
	out := make([]func(*domain.Identity), 0, len(s.listeners))
	for _, listener := range s.listeners {
		out = append(out, listener)
	}
	return out
}

func notify(listeners []func(*domain.Identity), identity *domain.Identity) {
	for _, listener := range listeners {
		listener(copyIdentity(identity))
	}
}

func copyIdentity(identity *domain.Identity) *domain.Identity {
	if identity == nil {
		return nil
	}
	out := *identity
	return &out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
