package models

import "time"

// Donation categories seen across providers after normalization.
const (
	DonationCategoryOneTime   = "one_time"
	DonationCategoryRecurring = "recurring"
	DonationCategoryPledge    = "pledge"
	DonationCategoryInKind    = "in_kind"
	DonationCategoryGrant     = "grant"
)

// Donation is a normalized gift/transaction record. It optionally references
// the donor it belongs to by that donor's provider-side external ID.
type Donation struct {
	ID                      string    `gorm:"column:id;primaryKey"`
	AccountID               string    `gorm:"column:account_id;uniqueIndex:idx_donation_merge_key"`
	Provider                string    `gorm:"column:provider;uniqueIndex:idx_donation_merge_key"`
	ExternalID              string    `gorm:"column:external_id;uniqueIndex:idx_donation_merge_key"`
	ConstituentExternalID   *string   `gorm:"column:constituent_external_id;index"`
	Amount                  float64   `gorm:"column:amount"`
	Currency                string    `gorm:"column:currency"`
	DonatedAt               time.Time `gorm:"column:donated_at;index"`
	Category                *string   `gorm:"column:category"`
	Campaign                *string   `gorm:"column:campaign"`
	RawPayload              JSONB     `gorm:"column:raw_payload;type:jsonb"`
	SyncedAt                time.Time `gorm:"column:synced_at"`
	CreatedAt               time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Donation) TableName() string {
	return "donation"
}
