package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/prospectiq/donorsync-worker/internal/models"
	"gorm.io/gorm"
)

var ErrCredentialNotFound = errors.New("credential not found")

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Resolve returns the opaque secret stored for the key.
func (r *CredentialRepository) Resolve(ctx context.Context, accountID, provider string) (string, error) {
	var cred models.ProviderCredential
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND provider = ?", accountID, provider).
		First(&cred)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrCredentialNotFound
		}
		return "", fmt.Errorf("failed to resolve credential: %w", result.Error)
	}
	return cred.Secret, nil
}

// ListAutoSync returns all credentials whose accounts opted into scheduled syncs.
func (r *CredentialRepository) ListAutoSync(ctx context.Context) ([]models.ProviderCredential, error) {
	var creds []models.ProviderCredential
	result := r.db.WithContext(ctx).
		Where("auto_sync = ?", true).
		Order("account_id ASC, provider ASC").
		Find(&creds)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list auto-sync credentials: %w", result.Error)
	}
	return creds, nil
}
