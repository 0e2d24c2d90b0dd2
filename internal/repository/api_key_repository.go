package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lobechat-go/internal/model"
)

type APIKeyRepository struct {
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(key *model.APIKey) error {
	if err := r.db.Create(key).Error; err != nil {
		return fmt.Errorf("create api key failed: %w", err)
	}
	return nil
}

func (r *APIKeyRepository) ListByUserID(userID string) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("list api keys failed: %w", err)
	}
	return keys, nil
}

func (r *APIKeyRepository) GetByIDAndUserID(id, userID string) (*model.APIKey, error) {
	return r.first("id = ? AND user_id = ?", id, userID)
}

func (r *APIKeyRepository) GetByHash(hash string) (*model.APIKey, error) {
	return r.first("key_hash = ?", hash)
}

func (r *APIKeyRepository) UpdateFields(id, userID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.db.Model(&model.APIKey{}).Where("id = ? AND user_id = ?", id, userID).Updates(fields).Error; err != nil {
		return fmt.Errorf("update api key failed: %w", err)
	}
	return nil
}

func (r *APIKeyRepository) TouchLastUsed(id string, at time.Time) error {
	if err := r.db.Model(&model.APIKey{}).Where("id = ?", id).Update("last_used_at", at).Error; err != nil {
		return fmt.Errorf("touch api key failed: %w", err)
	}
	return nil
}

func (r *APIKeyRepository) DeleteByIDAndUserID(id, userID string) error {
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.APIKey{}).Error; err != nil {
		return fmt.Errorf("delete api key failed: %w", err)
	}
	return nil
}

func (r *APIKeyRepository) first(query string, args ...interface{}) (*model.APIKey, error) {
	var key model.APIKey
	if err := r.db.Where(query, args...).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get api key failed: %w", err)
	}
	return &key, nil
}
