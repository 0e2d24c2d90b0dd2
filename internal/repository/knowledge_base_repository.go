package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lobechat-go/internal/model"
)

type KnowledgeBaseRepository struct {
	db *gorm.DB
}

func NewKnowledgeBaseRepository(db *gorm.DB) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: db}
}

func (r *KnowledgeBaseRepository) Create(kb *model.KnowledgeBase) error {
	if err := r.db.Create(kb).Error; err != nil {
		return fmt.Errorf("create knowledge base failed: %w", err)
	}
	return nil
}

func (r *KnowledgeBaseRepository) ListByUserID(userID string) ([]model.KnowledgeBase, error) {
	var list []model.KnowledgeBase
	if err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list knowledge bases failed: %w", err)
	}
	return list, nil
}

func (r *KnowledgeBaseRepository) GetByIDAndUserID(id, userID string) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&kb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get knowledge base failed: %w", err)
	}
	return &kb, nil
}

// AddFiles links files to a knowledge base; existing links are kept.
func (r *KnowledgeBaseRepository) AddFiles(kbID, userID string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	now := time.Now()
	links := make([]model.KnowledgeBaseFile, 0, len(fileIDs))
	for _, id := range fileIDs {
		links = append(links, model.KnowledgeBaseFile{
			KnowledgeBaseID: kbID,
			FileID:          id,
			UserID:          userID,
			CreatedAt:       now,
		})
	}
	if err := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
		return fmt.Errorf("add knowledge base files failed: %w", err)
	}
	return nil
}

func (r *KnowledgeBaseRepository) RemoveFile(kbID, userID, fileID string) error {
	if err := r.db.Where("knowledge_base_id = ? AND user_id = ? AND file_id = ?", kbID, userID, fileID).
		Delete(&model.KnowledgeBaseFile{}).Error; err != nil {
		return fmt.Errorf("remove knowledge base file failed: %w", err)
	}
	return nil
}

// ListFileIDs returns the distinct file ids linked to any of the knowledge bases.
func (r *KnowledgeBaseRepository) ListFileIDs(userID string, kbIDs []string) ([]string, error) {
	if len(kbIDs) == 0 {
		return nil, nil
	}
	var ids []string
	if err := r.db.Model(&model.KnowledgeBaseFile{}).
		Where("user_id = ? AND knowledge_base_id IN ?", userID, kbIDs).
		Distinct("file_id").
		Pluck("file_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list knowledge base file ids failed: %w", err)
	}
	return ids, nil
}

// DeleteCascade removes the knowledge base and its links; files stay.
func (r *KnowledgeBaseRepository) DeleteCascade(id, userID string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("knowledge_base_id = ? AND user_id = ?", id, userID).Delete(&model.KnowledgeBaseFile{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.KnowledgeBase{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete knowledge base failed: %w", err)
	}
	return nil
}
