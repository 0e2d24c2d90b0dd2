package model

import (
	"time"

	"gorm.io/gorm"

	"lobechat-go/internal/pkg/idgen"
)

type Session struct {
	ID              string    `gorm:"primaryKey;size:64" json:"id"`
	UserID          string    `gorm:"size:64;not null;index" json:"user_id"`
	AgentID         string    `gorm:"size:64;not null;index" json:"agent_id"`
	Title           string    `gorm:"size:128;not null" json:"title"`
	Description     string    `gorm:"size:512" json:"description"`
	Avatar          string    `gorm:"size:512" json:"avatar"`
	BackgroundColor string    `gorm:"size:32" json:"background_color"`
	Pinned          bool      `gorm:"not null;default:false" json:"pinned"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `gorm:"index" json:"updated_at"`
}

func (s *Session) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = idgen.New(idgen.PrefixSession)
	}
	return nil
}

// SessionWithAgent is a session joined with its agent config.
type SessionWithAgent struct {
	Session
	Agent Agent `json:"agent"`
}
