package storage

import (
	"context"
	"errors"

	"profiledir/internal/domain"
)

// ErrNotFound is returned when no replica exists for a profile id.
var ErrNotFound = errors.New("storage: profile not found")

// Repository is the local replica of profiles fetched from the directory.
// Profiles are stored together with their links as a single snapshot.
type Repository interface {
	// SaveProfile stores or replaces the snapshot of a profile.
	SaveProfile(ctx context.Context, p domain.Profile) error

	// GetProfile returns the snapshot for id, or ErrNotFound.
	GetProfile(ctx context.Context, id string) (domain.Profile, error)

	// ListProfiles returns all stored snapshots, most recently fetched first.
	ListProfiles(ctx context.Context) ([]domain.Profile, error)

	// DeleteProfile removes the snapshot for id. Deleting a missing id is not an error.
	DeleteProfile(ctx context.Context, id string) error

	// Close gracefully shuts down the repository connection.
	Close() error
}
