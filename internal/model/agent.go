package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lobechat-go/internal/pkg/idgen"
)

// AgentParams are the sampling parameters forwarded to the model runtime.
// Nil fields are left to the provider default.
type AgentParams struct {
	Temperature      *float32 `json:"temperature,omitempty"`
	TopP             *float32 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	PresencePenalty  *float32 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float32 `json:"frequency_penalty,omitempty"`
}

// ChatConfig controls how much history is sent and when topics are created.
type ChatConfig struct {
	EnableHistoryCount       bool `json:"enable_history_count"`
	HistoryCount             int  `json:"history_count"`
	EnableAutoCreateTopic    bool `json:"enable_auto_create_topic"`
	AutoCreateTopicThreshold int  `json:"auto_create_topic_threshold"`
}

func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		EnableHistoryCount:       true,
		HistoryCount:             8,
		EnableAutoCreateTopic:    true,
		AutoCreateTopicThreshold: 2,
	}
}

type Agent struct {
	ID               string                          `gorm:"primaryKey;size:64" json:"id"`
	UserID           string                          `gorm:"size:64;not null;index" json:"user_id"`
	SystemRole       string                          `gorm:"type:text" json:"system_role"`
	Provider         string                          `gorm:"size:64" json:"provider"`
	Model            string                          `gorm:"size:128" json:"model"`
	Params           datatypes.JSONType[AgentParams] `json:"params"`
	ChatConfig       datatypes.JSONType[ChatConfig]  `json:"chat_config"`
	KnowledgeBaseIDs datatypes.JSONSlice[string]     `json:"knowledge_base_ids"`
	CreatedAt        time.Time                       `json:"created_at"`
	UpdatedAt        time.Time                       `json:"updated_at"`
}

func (a *Agent) BeforeCreate(*gorm.DB) error {
	if a.ID == "" {
		a.ID = idgen.New(idgen.PrefixAgent)
	}
	return nil
}
