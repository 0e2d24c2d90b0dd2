package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lobechat-go/internal/model"
)

type TopicRepository struct {
	db *gorm.DB
}

func NewTopicRepository(db *gorm.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

func (r *TopicRepository) Create(topic *model.Topic) error {
	if err := r.db.Create(topic).Error; err != nil {
		return fmt.Errorf("create topic failed: %w", err)
	}
	return nil
}

// ListBySessionID returns favorite topics first, then the most recently updated.
func (r *TopicRepository) ListBySessionID(userID, sessionID string) ([]model.Topic, error) {
	var topics []model.Topic
	if err := r.db.Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("favorite DESC").Order("updated_at DESC").
		Find(&topics).Error; err != nil {
		return nil, fmt.Errorf("list topics failed: %w", err)
	}
	return topics, nil
}

func (r *TopicRepository) Search(userID, keyword, sessionID string) ([]model.Topic, error) {
	q := r.db.Where("user_id = ? AND title LIKE ?", userID, "%"+keyword+"%")
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	var topics []model.Topic
	if err := q.Order("updated_at DESC").Find(&topics).Error; err != nil {
		return nil, fmt.Errorf("search topics failed: %w", err)
	}
	return topics, nil
}

func (r *TopicRepository) GetByIDAndUserID(topicID, userID string) (*model.Topic, error) {
	var topic model.Topic
	if err := r.db.Where("id = ? AND user_id = ?", topicID, userID).First(&topic).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get topic failed: %w", err)
	}
	return &topic, nil
}

func (r *TopicRepository) UpdateFields(topicID, userID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.db.Model(&model.Topic{}).Where("id = ? AND user_id = ?", topicID, userID).Updates(fields).Error; err != nil {
		return fmt.Errorf("update topic failed: %w", err)
	}
	return nil
}

func (r *TopicRepository) Touch(topicID, userID string, at time.Time) error {
	if err := r.db.Model(&model.Topic{}).Where("id = ? AND user_id = ?", topicID, userID).Update("updated_at", at).Error; err != nil {
		return fmt.Errorf("touch topic failed: %w", err)
	}
	return nil
}

// DeleteCascade removes the given topics of the user and their messages.
// It returns the number of topics deleted.
func (r *TopicRepository) DeleteCascade(userID string, topicIDs []string) (int64, error) {
	if len(topicIDs) == 0 {
		return 0, nil
	}
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND topic_id IN ?", userID, topicIDs).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		res := tx.Where("user_id = ? AND id IN ?", userID, topicIDs).Delete(&model.Topic{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("delete topics failed: %w", err)
	}
	return deleted, nil
}
