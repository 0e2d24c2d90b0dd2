package model

import (
	"time"

	"gorm.io/gorm"

	"lobechat-go/internal/pkg/idgen"
)

type Topic struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    string    `gorm:"size:64;not null;index" json:"user_id"`
	SessionID string    `gorm:"size:64;not null;index" json:"session_id"`
	Title     string    `gorm:"size:256;not null" json:"title"`
	Favorite  bool      `gorm:"not null;default:false" json:"favorite"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

func (t *Topic) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = idgen.New(idgen.PrefixTopic)
	}
	return nil
}
