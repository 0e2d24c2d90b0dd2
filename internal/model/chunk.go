package model

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"lobechat-go/internal/pkg/idgen"
)

// Chunk stores a text slice of a file and its embedding.
// Embedding is stored as JSON array of float32 for portability.
type Chunk struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    string    `gorm:"size:64;not null;index" json:"user_id"`
	FileID    string    `gorm:"size:64;not null;index" json:"file_id"`
	Index     int       `gorm:"column:chunk_index;not null" json:"index"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Embedding string    `gorm:"type:text" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Chunk) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = idgen.New(idgen.PrefixChunk)
	}
	return nil
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *Chunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *Chunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
