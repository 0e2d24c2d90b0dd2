package repository

import (
	"fmt"

	"gorm.io/gorm"

	"lobechat-go/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceForFile swaps every chunk of a file for the given ones.
func (r *ChunkRepository) ReplaceForFile(fileID string, chunks []model.Chunk) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(&chunks, 100).Error
	})
	if err != nil {
		return fmt.Errorf("replace chunks failed: %w", err)
	}
	return nil
}

// ListByFileIDs returns all chunks for the given file ids.
// Caller should filter file ids by user ownership.
func (r *ChunkRepository) ListByFileIDs(fileIDs []string) ([]model.Chunk, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	var chunks []model.Chunk
	if err := r.db.Where("file_id IN ?", fileIDs).Order("chunk_index ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by file ids failed: %w", err)
	}
	return chunks, nil
}
