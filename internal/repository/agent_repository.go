package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lobechat-go/internal/model"
)

type AgentRepository struct {
	db *gorm.DB
}

func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

func (r *AgentRepository) Create(agent *model.Agent) error {
	if err := r.db.Create(agent).Error; err != nil {
		return fmt.Errorf("create agent failed: %w", err)
	}
	return nil
}

func (r *AgentRepository) GetByIDAndUserID(agentID, userID string) (*model.Agent, error) {
	var agent model.Agent
	if err := r.db.Where("id = ? AND user_id = ?", agentID, userID).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get agent failed: %w", err)
	}
	return &agent, nil
}

// Save writes every column of an existing agent.
func (r *AgentRepository) Save(agent *model.Agent) error {
	if err := r.db.Save(agent).Error; err != nil {
		return fmt.Errorf("save agent failed: %w", err)
	}
	return nil
}
