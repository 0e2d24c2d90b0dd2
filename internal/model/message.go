package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lobechat-go/internal/pkg/idgen"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageError is stored on assistant messages whose generation failed.
type MessageError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Message struct {
	ID               string                            `gorm:"primaryKey;size:64" json:"id"`
	UserID           string                            `gorm:"size:64;not null;index" json:"user_id"`
	SessionID        string                            `gorm:"size:64;not null;index" json:"session_id"`
	TopicID          *string                           `gorm:"size:64;index" json:"topic_id"`
	ParentID         string                            `gorm:"size:64" json:"parent_id,omitempty"`
	Role             string                            `gorm:"size:16;not null;index" json:"role"`
	Content          string                            `gorm:"type:text;not null" json:"content"`
	Provider         string                            `gorm:"size:64" json:"provider,omitempty"`
	Model            string                            `gorm:"size:128" json:"model,omitempty"`
	Error            datatypes.JSONType[*MessageError] `json:"error"`
	PromptTokens     int                               `json:"prompt_tokens"`
	CompletionTokens int                               `json:"completion_tokens"`
	CreatedAt        time.Time                         `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time                         `json:"updated_at"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = idgen.New(idgen.PrefixMessage)
	}
	return nil
}
