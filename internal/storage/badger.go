package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"profiledir/internal/domain"
)

const profilePrefix = "profile:"

// BadgerRepository implements the Repository interface using BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerRepository opens the database at dbPath. An empty path opens an
// in-memory database.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	// Tests and throwaway runs keep everything in memory.
	if dbPath == "" {
		opts = opts.WithInMemory(true)
	}
	// Route Badger's internal logging through logrus
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", dbPath)

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "repository"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	err := r.db.Close()
	if err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// generateProfileKey creates the key of a profile snapshot.
// Format: profile:{id}
func generateProfileKey(id string) []byte {
	return []byte(profilePrefix + id)
}

// SaveProfile stores or replaces a profile snapshot.
func (r *BadgerRepository) SaveProfile(ctx context.Context, p domain.Profile) error {
	log := r.log.WithFields(logrus.Fields{
		"profile_id": p.ID,
		"link_count": len(p.Links),
	})

	if p.ID == "" {
		return fmt.Errorf("failed to save profile: empty id")
	}
	if p.FetchedAt.IsZero() {
		p.FetchedAt = time.Now()
	}

	// Links travel inside the profile value, so one key holds the whole snapshot.
	buf, err := json.Marshal(p)
	if err != nil {
		log.WithError(err).Error("Failed to marshal profile to JSON")
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(generateProfileKey(p.ID), buf))
	})
	if err != nil {
		log.WithError(err).Error("Failed to save profile to BadgerDB")
		return fmt.Errorf("failed to save profile: %w", err)
	}

	log.Debug("Profile saved")
	return nil
}

// GetProfile returns the snapshot stored for id.
func (r *BadgerRepository) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	var p domain.Profile

	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(generateProfileKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Profile{}, ErrNotFound
	}
	if err != nil {
		r.log.WithError(err).WithField("profile_id", id).Error("Failed to read profile from BadgerDB")
		return domain.Profile{}, fmt.Errorf("failed to get profile %s: %w", id, err)
	}
	return p, nil
}

// ListProfiles returns every snapshot, most recently fetched first.
func (r *BadgerRepository) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	var profiles []domain.Profile

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		// Iterate over all keys with the profile prefix
		prefix := []byte(profilePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var p domain.Profile
				if err := json.Unmarshal(val, &p); err != nil {
					return fmt.Errorf("failed to unmarshal profile for key %s: %w", string(item.Key()), err)
				}
				profiles = append(profiles, p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to list profiles from BadgerDB")
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	// Sort by fetch time, newest first
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].FetchedAt.After(profiles[j].FetchedAt)
	})
	return profiles, nil
}

// DeleteProfile removes the snapshot for id.
func (r *BadgerRepository) DeleteProfile(ctx context.Context, id string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(generateProfileKey(id))
	})
	if err != nil {
		r.log.WithError(err).WithField("profile_id", id).Error("Failed to delete profile from BadgerDB")
		return fmt.Errorf("failed to delete profile %s: %w", id, err)
	}
	r.log.WithField("profile_id", id).Debug("Profile deleted")
	return nil
}

// RunGC reclaims value log space every interval until ctx is done.
func (r *BadgerRepository) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Rewrite value log files that are at least 70% garbage.
			err := r.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				r.log.Debug("BadgerDB GC completed")
			case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
				// Nothing to collect.
			case errors.Is(err, badger.ErrDBClosed):
				return
			default:
				r.log.WithError(err).Error("BadgerDB GC failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}
