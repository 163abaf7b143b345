// Package directory serves profile snapshots to edit sessions from a memory cache,
// the local replica and finally the remote directory.
package directory

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"profiledir/internal/domain"
	"profiledir/internal/storage"
)

const defaultCacheSize = 256

// Fetcher loads a profile from the authoritative directory.
type Fetcher interface {
	FetchProfile(ctx context.Context, id string) (domain.Profile, error)
}

// Service is a read-through cache of profiles.
type Service struct {
	cache   *lru.Cache[string, domain.Profile]
	size    int
	repo    storage.Repository
	fetcher Fetcher
	log     logrus.FieldLogger
}

// NewService creates a Service. cacheSize <= 0 uses a default size.
func NewService(repo storage.Repository, fetcher Fetcher, cacheSize int, logger logrus.FieldLogger) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New[string, domain.Profile](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile cache: %w", err)
	}
	return &Service{
		cache:   cache,
		size:    cacheSize,
		repo:    repo,
		fetcher: fetcher,
		log:     logger.WithField("component", "directory"),
	}, nil
}

// Get returns the profile for id. Callers receive their own copy.
func (s *Service) Get(ctx context.Context, id string) (domain.Profile, error) {
	log := s.log.WithField("profile_id", id)

	if p, ok := s.cache.Get(id); ok {
		return p.Clone(), nil
	}

	p, err := s.repo.GetProfile(ctx, id)
	switch {
	case err == nil:
		log.Debug("Profile served from replica")
		s.cache.Add(id, p)
		return p.Clone(), nil
	case !errors.Is(err, storage.ErrNotFound):
		log.WithError(err).Warn("Replica read failed, falling back to directory")
	}

	return s.refresh(ctx, id)
}

// Warm loads the most recently fetched replicas into the cache and returns how many
// were loaded.
func (s *Service) Warm(ctx context.Context) (int, error) {
	profiles, err := s.repo.ListProfiles(ctx)
	if err != nil {
		return 0, err
	}
	n := min(len(profiles), s.size)
	// Oldest first so the newest end up most recently used.
	for i := n - 1; i >= 0; i-- {
		s.cache.Add(profiles[i].ID, profiles[i])
	}
	s.log.WithField("count", n).Info("Profile cache warmed from replica")
	return n, nil
}

// Invalidate drops every local copy of id so the next Get refetches it.
func (s *Service) Invalidate(ctx context.Context, id string) error {
	s.cache.Remove(id)
	if err := s.repo.DeleteProfile(ctx, id); err != nil {
		return err
	}
	s.log.WithField("profile_id", id).Info("Profile invalidated")
	return nil
}

// Refresh invalidates id and fetches it again.
func (s *Service) Refresh(ctx context.Context, id string) (domain.Profile, error) {
	if err := s.Invalidate(ctx, id); err != nil {
		return domain.Profile{}, err
	}
	return s.refresh(ctx, id)
}

func (s *Service) refresh(ctx context.Context, id string) (domain.Profile, error) {
	p, err := s.fetcher.FetchProfile(ctx, id)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("failed to fetch profile %s: %w", id, err)
	}
	if err := s.repo.SaveProfile(ctx, p); err != nil {
		s.log.WithError(err).WithField("profile_id", id).Warn("Failed to store profile replica")
	}
	s.cache.Add(id, p)
	return p.Clone(), nil
}
