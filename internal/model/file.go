package model

import (
	"time"

	"gorm.io/gorm"

	"lobechat-go/internal/pkg/idgen"
)

const (
	ChunkStatusPending    = "pending"
	ChunkStatusProcessing = "processing"
	ChunkStatusSuccess    = "success"
	ChunkStatusError      = "error"
)

type File struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	UserID      string    `gorm:"size:64;not null;index" json:"user_id"`
	Name        string    `gorm:"size:256;not null" json:"name"`
	Size        int64     `gorm:"not null" json:"size"`
	MimeType    string    `gorm:"size:128" json:"mime_type"`
	Hash        string    `gorm:"size:64;index" json:"hash"`
	StorageKey  string    `gorm:"size:512;not null" json:"-"`
	ChunkStatus string    `gorm:"size:16" json:"chunk_status,omitempty"`
	ChunkCount  int       `json:"chunk_count"`
	ChunkError  string    `gorm:"type:text" json:"chunk_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (f *File) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = idgen.New(idgen.PrefixFile)
	}
	return nil
}
