package models

import "time"

// Constituent is a normalized donor/prospect record pulled from an external
// provider. Identity is the (account_id, provider, external_id) merge key;
// re-syncs overwrite the normalized fields but never the key.
type Constituent struct {
	ID         string     `gorm:"column:id;primaryKey"`
	AccountID  string     `gorm:"column:account_id;uniqueIndex:idx_constituent_merge_key"`
	Provider   string     `gorm:"column:provider;uniqueIndex:idx_constituent_merge_key"`
	ExternalID string     `gorm:"column:external_id;uniqueIndex:idx_constituent_merge_key"`
	FullName   string     `gorm:"column:full_name"`
	Email      *string    `gorm:"column:email"`
	Phone      *string    `gorm:"column:phone"`
	City       *string    `gorm:"column:city"`
	State      *string    `gorm:"column:state"`
	PostalCode *string    `gorm:"column:postal_code"`
	RawPayload JSONB      `gorm:"column:raw_payload;type:jsonb"`
	SyncedAt   time.Time  `gorm:"column:synced_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Constituent) TableName() string {
	return "constituent"
}
