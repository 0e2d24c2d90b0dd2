package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lobechat-go/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create ignores a message whose id already exists, so queue redeliveries
// are harmless.
func (r *MessageRepository) Create(message *model.Message) error {
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// ListByTopic returns the latest limit messages of a session, oldest first.
// A nil topicID selects the session's default topic.
func (r *MessageRepository) ListByTopic(userID, sessionID string, topicID *string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	messages, err := r.latest(userID, sessionID, topicID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// ListRecent returns the latest n messages of a topic, oldest first.
func (r *MessageRepository) ListRecent(userID, sessionID string, topicID *string, n int) ([]model.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	messages, err := r.latest(userID, sessionID, topicID, n)
	if err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) latest(userID, sessionID string, topicID *string, n int) ([]model.Message, error) {
	var messages []model.Message
	q := scopeTopic(r.db.Where("user_id = ? AND session_id = ?", userID, sessionID), topicID)
	if err := q.Order("created_at DESC").Limit(n).Find(&messages).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *MessageRepository) CountByTopic(userID, sessionID string, topicID *string) (int64, error) {
	var count int64
	q := scopeTopic(r.db.Model(&model.Message{}).Where("user_id = ? AND session_id = ?", userID, sessionID), topicID)
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages failed: %w", err)
	}
	return count, nil
}

func (r *MessageRepository) GetByIDAndUserID(messageID, userID string) (*model.Message, error) {
	var message model.Message
	if err := r.db.Where("id = ? AND user_id = ?", messageID, userID).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	return &message, nil
}

func (r *MessageRepository) UpdateContent(messageID, userID, content string) error {
	if err := r.db.Model(&model.Message{}).Where("id = ? AND user_id = ?", messageID, userID).Update("content", content).Error; err != nil {
		return fmt.Errorf("update message failed: %w", err)
	}
	return nil
}

// MoveDefaultToTopic assigns every default-topic message of a session to topicID.
func (r *MessageRepository) MoveDefaultToTopic(userID, sessionID, topicID string) error {
	if err := r.db.Model(&model.Message{}).
		Where("user_id = ? AND session_id = ? AND topic_id IS NULL", userID, sessionID).
		Update("topic_id", topicID).Error; err != nil {
		return fmt.Errorf("move messages to topic failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) DeleteByIDAndUserID(messageID, userID string) error {
	if err := r.db.Where("id = ? AND user_id = ?", messageID, userID).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	return nil
}

func scopeTopic(q *gorm.DB, topicID *string) *gorm.DB {
	if topicID == nil {
		return q.Where("topic_id IS NULL")
	}
	return q.Where("topic_id = ?", *topicID)
}
