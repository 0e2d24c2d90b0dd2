package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"lobechat-go/internal/logger"
	"lobechat-go/internal/repository"
)

const logtoUserUpdated = "User.Data.Updated"

var ErrInvalidSignature = errors.New("invalid webhook signature")

type WebhookService struct {
	userRepo        *repository.UserRepository
	logtoSigningKey string
}

func NewWebhookService(userRepo *repository.UserRepository, logtoSigningKey string) *WebhookService {
	return &WebhookService{userRepo: userRepo, logtoSigningKey: logtoSigningKey}
}

// LogtoEvent is the subset of a Logto webhook body that is acted on.
type LogtoEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID           string `json:"id"`
		Username     string `json:"username"`
		PrimaryEmail string `json:"primaryEmail"`
		Name         string `json:"name"`
		Avatar       string `json:"avatar"`
	} `json:"data"`
}

// ValidateLogto checks the hex HMAC-SHA256 of body against signature.
func (s *WebhookService) ValidateLogto(body []byte, signature string) error {
	if s.logtoSigningKey == "" || signature == "" {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(s.logtoSigningKey))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// HandleLogto applies a verified event. Unknown events and users are ignored.
func (s *WebhookService) HandleLogto(body []byte) error {
	var event LogtoEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return ErrInvalidInput
	}
	log := logger.WithComponent("webhook").WithField("event", event.Event)
	if event.Event != logtoUserUpdated {
		log.Debug("ignore logto event")
		return nil
	}
	if event.Data.ID == "" {
		return ErrInvalidInput
	}

	user, err := s.userRepo.GetByExternalID(event.Data.ID)
	if err != nil {
		return err
	}
	if user == nil {
		log.WithField("external_id", event.Data.ID).Info("no user for logto id")
		return nil
	}

	fields := map[string]interface{}{}
	if v := strings.TrimSpace(event.Data.Username); v != "" {
		fields["username"] = v
	}
	if v := strings.ToLower(strings.TrimSpace(event.Data.PrimaryEmail)); v != "" {
		fields["email"] = v
	}
	if v := strings.TrimSpace(event.Data.Name); v != "" {
		fields["full_name"] = v
	}
	if v := strings.TrimSpace(event.Data.Avatar); v != "" {
		fields["avatar"] = v
	}
	return s.userRepo.UpdateFields(user.ID, fields)
}
