package app

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"lobechat-go/internal/model"
	"lobechat-go/internal/repository"
)

const (
	apiKeyPrefix    = "lb-"
	apiKeyRandBytes = 24
	apiKeyShownLen  = 8
)

var (
	ErrAPIKeyNotFound = errors.New("api key not found")
	ErrAPIKeyInvalid  = errors.New("api key is invalid or expired")
)

type APIKeyService struct {
	repo *repository.APIKeyRepository
	now  func() time.Time
}

func NewAPIKeyService(repo *repository.APIKeyRepository) *APIKeyService {
	return &APIKeyService{repo: repo, now: time.Now}
}

type CreateAPIKeyInput struct {
	UserID    string
	Name      string
	ExpiresAt *time.Time
}

type UpdateAPIKeyInput struct {
	UserID    string
	ID        string
	Name      *string
	Enabled   *bool
	ExpiresAt *time.Time
}

// CreatedAPIKey carries the plaintext key, which is only returned once.
type CreatedAPIKey struct {
	model.APIKey
	Key string `json:"key"`
}

func (s *APIKeyService) Create(input CreateAPIKeyInput) (*CreatedAPIKey, error) {
	name := strings.TrimSpace(input.Name)
	if input.UserID == "" || name == "" {
		return nil, ErrInvalidInput
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(s.now()) {
		return nil, ErrInvalidInput
	}

	raw, err := generateAPIKey()
	if err != nil {
		return nil, err
	}
	key := model.APIKey{
		UserID:    input.UserID,
		Name:      name,
		KeyPrefix: raw[:apiKeyShownLen],
		KeyHash:   hashAPIKey(raw),
		Enabled:   true,
		ExpiresAt: input.ExpiresAt,
	}
	if err := s.repo.Create(&key); err != nil {
		return nil, err
	}
	return &CreatedAPIKey{APIKey: key, Key: raw}, nil
}

func (s *APIKeyService) List(userID string) ([]model.APIKey, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByUserID(userID)
}

func (s *APIKeyService) Update(input UpdateAPIKeyInput) (*model.APIKey, error) {
	if _, err := s.mustGet(input.UserID, input.ID); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrInvalidInput
		}
		fields["name"] = name
	}
	if input.Enabled != nil {
		fields["enabled"] = *input.Enabled
	}
	if input.ExpiresAt != nil {
		fields["expires_at"] = *input.ExpiresAt
	}
	if err := s.repo.UpdateFields(input.ID, input.UserID, fields); err != nil {
		return nil, err
	}
	return s.mustGet(input.UserID, input.ID)
}

func (s *APIKeyService) Delete(userID, id string) error {
	if _, err := s.mustGet(userID, id); err != nil {
		return err
	}
	return s.repo.DeleteByIDAndUserID(id, userID)
}

// Validate resolves a plaintext key to its owner and records the use.
func (s *APIKeyService) Validate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, apiKeyPrefix) {
		return "", ErrAPIKeyInvalid
	}
	key, err := s.repo.GetByHash(hashAPIKey(raw))
	if err != nil {
		return "", err
	}
	now := s.now()
	if key == nil || !key.Enabled || (key.ExpiresAt != nil && !key.ExpiresAt.After(now)) {
		return "", ErrAPIKeyInvalid
	}
	_ = s.repo.TouchLastUsed(key.ID, now)
	return key.UserID, nil
}

func (s *APIKeyService) mustGet(userID, id string) (*model.APIKey, error) {
	if userID == "" || id == "" {
		return nil, ErrInvalidInput
	}
	key, err := s.repo.GetByIDAndUserID(id, userID)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrAPIKeyNotFound
	}
	return key, nil
}

func generateAPIKey() (string, error) {
	buf := make([]byte, apiKeyRandBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}

func hashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
