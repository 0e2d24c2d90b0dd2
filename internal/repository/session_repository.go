package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lobechat-go/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(session *model.Session) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

// CreateWithAgent inserts the agent and the session that owns it together.
func (r *SessionRepository) CreateWithAgent(session *model.Session, agent *model.Agent) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(agent).Error; err != nil {
			return err
		}
		session.AgentID = agent.ID
		return tx.Create(session).Error
	})
	if err != nil {
		return fmt.Errorf("create session with agent failed: %w", err)
	}
	return nil
}

// ListByUserID returns pinned sessions first, then the most recently updated.
func (r *SessionRepository) ListByUserID(userID string) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.Where("user_id = ?", userID).Order("pinned DESC").Order("updated_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) Search(userID, keyword string) ([]model.Session, error) {
	like := "%" + keyword + "%"
	var sessions []model.Session
	if err := r.db.Where("user_id = ?", userID).
		Where("title LIKE ? OR description LIKE ?", like, like).
		Order("updated_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("search sessions failed: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) GetByIDAndUserID(sessionID, userID string) (*model.Session, error) {
	var session model.Session
	if err := r.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

// UpdateFields applies a partial update and always bumps updated_at.
func (r *SessionRepository) UpdateFields(sessionID, userID string, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = time.Now()
	if err := r.db.Model(&model.Session{}).Where("id = ? AND user_id = ?", sessionID, userID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) Touch(sessionID, userID string, at time.Time) error {
	if err := r.db.Model(&model.Session{}).Where("id = ? AND user_id = ?", sessionID, userID).Update("updated_at", at).Error; err != nil {
		return fmt.Errorf("touch session failed: %w", err)
	}
	return nil
}

// DeleteCascade removes the session with its messages, topics and agent.
func (r *SessionRepository) DeleteCascade(sessionID, userID string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var session model.Session
		if err := tx.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ? AND user_id = ?", sessionID, userID).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ? AND user_id = ?", sessionID, userID).Delete(&model.Topic{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ? AND user_id = ?", session.AgentID, userID).Delete(&model.Agent{}).Error; err != nil {
			return err
		}
		return tx.Delete(&session).Error
	})
	if err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}
