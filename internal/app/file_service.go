package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"lobechat-go/internal/fileparse"
	"lobechat-go/internal/model"
	"lobechat-go/internal/pkg/idgen"
	"lobechat-go/internal/repository"
	"lobechat-go/internal/worker"
)

const maxUploadBytes = 50 << 20

var (
	ErrFileTooLarge = errors.New("file is too large")
	ErrChunkEnqueue = errors.New("chunk job enqueue failed")
)

type FileService struct {
	fileRepo  *repository.FileRepository
	store     ObjectStore
	chunkJobs Publisher
}

func NewFileService(fileRepo *repository.FileRepository, store ObjectStore, chunkJobs Publisher) *FileService {
	return &FileService{fileRepo: fileRepo, store: store, chunkJobs: chunkJobs}
}

type UploadFileInput struct {
	UserID string
	Name   string
	Body   io.Reader
}

// FileView is a file row with a URL the client can fetch it from.
type FileView struct {
	model.File
	URL string `json:"url"`
}

// Upload stores the object and its row. Re-uploading identical bytes returns
// the existing file.
func (s *FileService) Upload(ctx context.Context, input UploadFileInput) (*FileView, error) {
	name := path.Base(strings.TrimSpace(input.Name))
	if input.UserID == "" || name == "" || name == "." || name == "/" || input.Body == nil {
		return nil, ErrInvalidInput
	}

	data, err := io.ReadAll(io.LimitReader(input.Body, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload failed: %w", err)
	}
	if len(data) > maxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, ErrInvalidInput
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	existing, err := s.fileRepo.GetByHash(input.UserID, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.view(ctx, existing)
	}

	file := &model.File{
		ID:       idgen.New(idgen.PrefixFile),
		UserID:   input.UserID,
		Name:     name,
		Size:     int64(len(data)),
		MimeType: fileparse.DetectMIME(data),
		Hash:     hash,
	}
	file.StorageKey = fmt.Sprintf("files/%s/%s/%s", input.UserID, file.ID, name)

	if err := s.store.Upload(ctx, file.StorageKey, bytes.NewReader(data), file.Size, file.MimeType); err != nil {
		return nil, err
	}
	if err := s.fileRepo.Create(file); err != nil {
		_ = s.store.Delete(ctx, file.StorageKey)
		return nil, err
	}
	return s.view(ctx, file)
}

func (s *FileService) List(userID string) ([]model.File, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.fileRepo.ListByUserID(userID)
}

func (s *FileService) Get(ctx context.Context, userID, fileID string) (*FileView, error) {
	file, err := s.mustGet(userID, fileID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, file)
}

// Delete removes the row and its chunks. The object goes too unless another
// row still points at it.
func (s *FileService) Delete(ctx context.Context, userID, fileID string) error {
	file, err := s.mustGet(userID, fileID)
	if err != nil {
		return err
	}
	refs, err := s.fileRepo.CountByStorageKey(file.StorageKey)
	if err != nil {
		return err
	}
	if err := s.fileRepo.DeleteCascade(file.ID, userID); err != nil {
		return err
	}
	if refs <= 1 {
		if err := s.store.Delete(ctx, file.StorageKey); err != nil {
			return fmt.Errorf("delete object failed: %w", err)
		}
	}
	return nil
}

// GetProxyURL resolves the short /f/:id link. It is not scoped to a user so the
// link can be shared.
func (s *FileService) GetProxyURL(ctx context.Context, fileID string) (string, error) {
	if fileID == "" {
		return "", ErrInvalidInput
	}
	file, err := s.fileRepo.GetByID(fileID)
	if err != nil {
		return "", err
	}
	if file == nil {
		return "", ErrFileNotFound
	}
	return s.store.PresignedURL(ctx, file.StorageKey)
}

// EnqueueChunking marks the file pending and hands it to the chunk worker.
func (s *FileService) EnqueueChunking(ctx context.Context, userID, fileID string) (*model.File, error) {
	file, err := s.mustGet(userID, fileID)
	if err != nil {
		return nil, err
	}
	if s.chunkJobs == nil {
		return nil, ErrChunkEnqueue
	}
	if err := s.fileRepo.UpdateChunkStatus(file.ID, model.ChunkStatusPending, 0, ""); err != nil {
		return nil, err
	}
	if err := s.chunkJobs.Publish(ctx, worker.FileChunkJob{FileID: file.ID, UserID: userID}); err != nil {
		_ = s.fileRepo.UpdateChunkStatus(file.ID, model.ChunkStatusError, 0, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrChunkEnqueue, err)
	}
	file.ChunkStatus = model.ChunkStatusPending
	file.ChunkCount = 0
	file.ChunkError = ""
	return file, nil
}

func (s *FileService) mustGet(userID, fileID string) (*model.File, error) {
	if userID == "" || fileID == "" {
		return nil, ErrInvalidInput
	}
	file, err := s.fileRepo.GetByIDAndUserID(fileID, userID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrFileNotFound
	}
	return file, nil
}

func (s *FileService) view(ctx context.Context, file *model.File) (*FileView, error) {
	url, err := s.store.PresignedURL(ctx, file.StorageKey)
	if err != nil {
		return nil, err
	}
	return &FileView{File: *file, URL: url}, nil
}
