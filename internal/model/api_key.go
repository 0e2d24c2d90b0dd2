package model

import (
	"time"

	"gorm.io/gorm"

	"lobechat-go/internal/pkg/idgen"
)

// APIKey is a user-issued key for programmatic access. Only the sha256 hash of
// the key is stored.
type APIKey struct {
	ID         string     `gorm:"primaryKey;size:64" json:"id"`
	UserID     string     `gorm:"size:64;not null;index" json:"user_id"`
	Name       string     `gorm:"size:128;not null" json:"name"`
	KeyPrefix  string     `gorm:"size:16;not null" json:"key_prefix"`
	KeyHash    string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	Enabled    bool       `gorm:"not null;default:true" json:"enabled"`
	ExpiresAt  *time.Time `json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (k *APIKey) BeforeCreate(*gorm.DB) error {
	if k.ID == "" {
		k.ID = idgen.New(idgen.PrefixAPIKey)
	}
	return nil
}
