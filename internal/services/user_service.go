// Package services – UserService
//
// UserService maps identity-provider subjects to internal user ids. Lookups
// are served from an in-process ristretto cache; misses fall through to the
// database, where a user row is created lazily on first sight.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"gorm.io/gorm"

	"github.com/tbourn/genai-studio/internal/auth"
	"github.com/tbourn/genai-studio/internal/repo"
)

// userCacheItemCost approximates the bytes held per cached subject.
const userCacheItemCost = 64

// UserService resolves identities to user ids.
type UserService struct {
	DB *gorm.DB

	cache *ristretto.Cache[string, uint]
	ttl   time.Duration
}

// NewUserService creates a UserService. maxBytes <= 0 disables the cache.
func NewUserService(db *gorm.DB, maxBytes int64, ttl time.Duration) (*UserService, error) {
	s := &UserService{DB: db, ttl: ttl}
	if maxBytes <= 0 {
		return s, nil
	}
	// ~10x expected items; budgets smaller than one entry still get counters.
	counters := max(maxBytes/userCacheItemCost*10, 10)
	c, err := ristretto.NewCache(&ristretto.Config[string, uint]{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	s.cache = c
	return s, nil
}

// Resolve returns the user id for id.Subject, creating the row if needed.
func (s *UserService) Resolve(ctx context.Context, id auth.Identity) (uint, error) {
	if id.Subject == "" {
		return 0, ErrUnauthorized
	}
	if uid, ok := s.cached(id.Subject); ok {
		return uid, nil
	}
	u, err := repo.GetOrCreateUser(ctx, s.DB, id.Subject, id.Email)
	if err != nil {
		return 0, err
	}
	s.remember(id.Subject, u.ID)
	return u.ID, nil
}

// Find returns the user id for subject without creating it. Returns
// ErrUserNotFound when the subject has never been seen.
func (s *UserService) Find(ctx context.Context, subject string) (uint, error) {
	if subject == "" {
		return 0, ErrUnauthorized
	}
	if uid, ok := s.cached(subject); ok {
		return uid, nil
	}
	u, err := repo.FindUserBySubject(ctx, s.DB, subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	s.remember(subject, u.ID)
	return u.ID, nil
}

// Close releases the cache goroutines.
func (s *UserService) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

func (s *UserService) cached(subject string) (uint, bool) {
	if s.cache == nil {
		return 0, false
	}
	return s.cache.Get(subject)
}

func (s *UserService) remember(subject string, uid uint) {
	if s.cache == nil {
		return
	}
	s.cache.SetWithTTL(subject, uid, userCacheItemCost, s.ttl)
}
