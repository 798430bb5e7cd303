package store

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier receives a payload-less signal after every committed write to
// the locations collection. It backs the change feed the device directory
// subscribes to.
type Notifier interface {
	LocationsChanged(ctx context.Context)
}

// RecordStore is the contract the tracking core depends on: fetch-all
// reads, single-record ingest writes, and the atomic multi-path rename
// batch.
type RecordStore interface {
	FetchAll(ctx context.Context) ([]LocationRecord, error)
	Insert(ctx context.Context, rec *LocationRecord) error
	ApplyBatch(ctx context.Context, b Batch) error
}

// Store is the PostgreSQL-backed RecordStore.
type Store struct {
	logger   *slog.Logger
	db       *gorm.DB
	notifier Notifier // optional
}

var _ RecordStore = (*Store)(nil)

// New creates a Store. The notifier may be nil when no change feed is
// wanted (tests, one-shot tools).
func New(logger *slog.Logger, db *gorm.DB, notifier Notifier) (*Store, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if db == nil {
		return nil, errors.New("database cannot be nil")
	}

	return &Store{logger: logger, db: db, notifier: notifier}, nil
}

// FetchAll returns every location record in original store order. Either
// the full set loads or an error is returned; there is no partial result.
func (s *Store) FetchAll(ctx context.Context) ([]LocationRecord, error) {
	var records []LocationRecord
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&records).Error; err != nil {
		return nil, classify("fetch locations", err)
	}
	return records, nil
}

// Insert persists one ingested fix and signals the change feed.
func (s *Store) Insert(ctx context.Context, rec *LocationRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return classify("insert location", err)
	}
	s.notifyChanged(ctx)
	return nil
}

// ApplyBatch applies a rename batch in a single transaction: the new
// display name on every listed record key plus the denormalized device
// summary. All-or-nothing; partially applied batches cannot be observed.
func (s *Store) ApplyBatch(ctx context.Context, b Batch) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(b.RecordKeys) > 0 {
			res := tx.Model(&LocationRecord{}).
				Where("id IN ?", b.RecordKeys).
				Update("device_name", b.NewName)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != int64(len(b.RecordKeys)) {
				// A key listed in the batch vanished between the read and
				// the write. Roll back rather than report a partial rename.
				return gorm.ErrRecordNotFound
			}
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "last_seen"}),
		}).Create(&b.Summary).Error
	})
	if err != nil {
		return classify("apply rename batch", err)
	}

	s.logger.Info("rename batch committed",
		"device_id", b.Summary.DeviceID,
		"records", len(b.RecordKeys),
	)
	s.notifyChanged(ctx)
	return nil
}

func (s *Store) notifyChanged(ctx context.Context) {
	if s.notifier != nil {
		s.notifier.LocationsChanged(ctx)
	}
}
