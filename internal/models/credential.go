package models

import "time"

// ProviderCredential holds the opaque secret for one (account, provider)
// connection. The secret is written (and encrypted) by the API layer; the
// worker only reads it and hands it to the provider adapter.
type ProviderCredential struct {
	ID        string    `gorm:"column:id;primaryKey"`
	AccountID string    `gorm:"column:account_id;uniqueIndex:idx_credential_key"`
	Provider  string    `gorm:"column:provider;uniqueIndex:idx_credential_key"`
	Secret    string    `gorm:"column:secret"`
	AutoSync  bool      `gorm:"column:auto_sync"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (ProviderCredential) TableName() string {
	return "provider_credential"
}
