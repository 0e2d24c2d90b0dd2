package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lobechat-go/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(file *model.File) error {
	if err := r.db.Create(file).Error; err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}
	return nil
}

func (r *FileRepository) ListByUserID(userID string) ([]model.File, error) {
	var files []model.File
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("list files failed: %w", err)
	}
	return files, nil
}

func (r *FileRepository) GetByIDAndUserID(id, userID string) (*model.File, error) {
	return r.first("id = ? AND user_id = ?", id, userID)
}

// GetByID is not user scoped; only the public file proxy may call it.
func (r *FileRepository) GetByID(id string) (*model.File, error) {
	return r.first("id = ?", id)
}

func (r *FileRepository) GetByHash(userID, hash string) (*model.File, error) {
	return r.first("user_id = ? AND hash = ?", userID, hash)
}

// CountByStorageKey reports how many records still reference an object.
func (r *FileRepository) CountByStorageKey(key string) (int64, error) {
	var count int64
	if err := r.db.Model(&model.File{}).Where("storage_key = ?", key).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count files by key failed: %w", err)
	}
	return count, nil
}

func (r *FileRepository) UpdateChunkStatus(id, status string, count int, errMsg string) error {
	if err := r.db.Model(&model.File{}).Where("id = ?", id).Updates(map[string]interface{}{
		"chunk_status": status,
		"chunk_count":  count,
		"chunk_error":  errMsg,
	}).Error; err != nil {
		return fmt.Errorf("update file chunk status failed: %w", err)
	}
	return nil
}

// ListIDsByUserID filters ids down to files the user owns.
func (r *FileRepository) ListIDsByUserID(userID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var owned []string
	if err := r.db.Model(&model.File{}).Where("user_id = ? AND id IN ?", userID, ids).Pluck("id", &owned).Error; err != nil {
		return nil, fmt.Errorf("list owned file ids failed: %w", err)
	}
	return owned, nil
}

// DeleteCascade removes the file with its chunks and knowledge base links.
func (r *FileRepository) DeleteCascade(id, userID string) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ? AND user_id = ?", id, userID).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		if err := tx.Where("file_id = ? AND user_id = ?", id, userID).Delete(&model.KnowledgeBaseFile{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.File{}).Error
	})
	if err != nil {
		return fmt.Errorf("delete file failed: %w", err)
	}
	return nil
}

func (r *FileRepository) first(query string, args ...interface{}) (*model.File, error) {
	var file model.File
	if err := r.db.Where(query, args...).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file failed: %w", err)
	}
	return &file, nil
}
