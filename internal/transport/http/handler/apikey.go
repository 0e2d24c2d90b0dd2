package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"lobechat-go/internal/app"
	"lobechat-go/internal/transport/http/response"
)

type APIKeyHandler struct {
	apiKeyService *app.APIKeyService
}

type CreateAPIKeyRequest struct {
	Name      string     `json:"name" binding:"required,max=128"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type UpdateAPIKeyRequest struct {
	Name      *string    `json:"name" binding:"omitempty,max=128"`
	Enabled   *bool      `json:"enabled"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func NewAPIKeyHandler(apiKeyService *app.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{apiKeyService: apiKeyService}
}

func (h *APIKeyHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	key, err := h.apiKeyService.Create(app.CreateAPIKeyInput{UserID: userID, Name: req.Name, ExpiresAt: req.ExpiresAt})
	if err != nil {
		writeError(c, err, "create api key failed")
		return
	}
	response.OK(c, key)
}

func (h *APIKeyHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	keys, err := h.apiKeyService.List(userID)
	if err != nil {
		writeError(c, err, "list api keys failed")
		return
	}
	response.OK(c, keys)
}

func (h *APIKeyHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req UpdateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	key, err := h.apiKeyService.Update(app.UpdateAPIKeyInput{
		UserID:    userID,
		ID:        c.Param("id"),
		Name:      req.Name,
		Enabled:   req.Enabled,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		writeError(c, err, "update api key failed")
		return
	}
	response.OK(c, key)
}

func (h *APIKeyHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.apiKeyService.Delete(userID, id); err != nil {
		writeError(c, err, "delete api key failed")
		return
	}
	response.OK(c, gin.H{"deleted_api_key_id": id})
}
