package repository

import (
	"context"
	"fmt"

	"github.com/prospectiq/donorsync-worker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordRepository merges normalized records by their
// (account_id, provider, external_id) key. A failure inside one call fails
// the whole batch; callers do their accounting at batch granularity.
type RecordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

var mergeKey = []clause.Column{
	{Name: "account_id"},
	{Name: "provider"},
	{Name: "external_id"},
}

// UpsertConstituents merges a batch of constituents. Re-syncing the same
// records overwrites the normalized fields and leaves the key untouched.
func (r *RecordRepository) UpsertConstituents(ctx context.Context, records []models.Constituent) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: mergeKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"full_name", "email", "phone", "city", "state", "postal_code",
			"raw_payload", "synced_at", "updated_at",
		}),
	}).Create(&records)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to upsert constituents: %w", result.Error)
	}

	return len(records), nil
}

// UpsertDonations merges a batch of donations by the same key.
func (r *RecordRepository) UpsertDonations(ctx context.Context, records []models.Donation) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: mergeKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"constituent_external_id", "amount", "currency", "donated_at",
			"category", "campaign", "raw_payload", "synced_at", "updated_at",
		}),
	}).Create(&records)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to upsert donations: %w", result.Error)
	}

	return len(records), nil
}
