package model

import (
	"time"

	"gorm.io/gorm"

	"lobechat-go/internal/pkg/idgen"
)

type KnowledgeBase struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	UserID      string    `gorm:"size:64;not null;index" json:"user_id"`
	Name        string    `gorm:"size:256;not null" json:"name"`
	Description string    `gorm:"size:1024" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (k *KnowledgeBase) BeforeCreate(*gorm.DB) error {
	if k.ID == "" {
		k.ID = idgen.New(idgen.PrefixKnowledgeBase)
	}
	return nil
}

type KnowledgeBaseFile struct {
	KnowledgeBaseID string    `gorm:"primaryKey;size:64" json:"knowledge_base_id"`
	FileID          string    `gorm:"primaryKey;size:64;index" json:"file_id"`
	UserID          string    `gorm:"size:64;not null;index" json:"user_id"`
	CreatedAt       time.Time `json:"created_at"`
}
