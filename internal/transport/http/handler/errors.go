package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lobechat-go/internal/ai"
	"lobechat-go/internal/app"
	"lobechat-go/internal/logger"
	"lobechat-go/internal/transport/http/middleware"
	"lobechat-go/internal/transport/http/response"
)

// runtimeErrorBody is sent as data when a provider call fails.
type runtimeErrorBody struct {
	ErrorType ai.AgentRuntimeErrorType `json:"error_type"`
	Provider  string                   `json:"provider"`
	Message   string                   `json:"message"`
}

// writeError maps service errors to the response envelope. Anything unknown
// is logged and reported as fallback.
func writeError(c *gin.Context, err error, fallback string) {
	var rtErr *ai.AgentRuntimeError
	if errors.As(err, &rtErr) {
		status, code := runtimeStatus(rtErr.Type)
		response.ErrorWithData(c, status, code, string(rtErr.Type), runtimeErrorBody{
			ErrorType: rtErr.Type,
			Provider:  rtErr.Provider,
			Message:   rtErr.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrMessageEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeMessageEmpty, err.Error())
	case errors.Is(err, app.ErrUsernameExists):
		response.Error(c, http.StatusBadRequest, response.CodeUsernameExists, err.Error())
	case errors.Is(err, app.ErrEmailExists):
		response.Error(c, http.StatusBadRequest, response.CodeEmailExists, err.Error())
	case errors.Is(err, app.ErrInvalidCredential):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidCredentials, err.Error())
	case errors.Is(err, app.ErrInvalidSignature):
		response.Error(c, http.StatusUnauthorized, response.CodeInvalidSignature, err.Error())
	case errors.Is(err, app.ErrProviderDisabled):
		response.Error(c, http.StatusForbidden, response.CodeProviderDisabled, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
	case errors.Is(err, app.ErrTopicNotFound):
		response.Error(c, http.StatusNotFound, response.CodeTopicNotFound, err.Error())
	case errors.Is(err, app.ErrMessageNotFound):
		response.Error(c, http.StatusNotFound, response.CodeMessageNotFound, err.Error())
	case errors.Is(err, app.ErrFileNotFound):
		response.Error(c, http.StatusNotFound, response.CodeFileNotFound, err.Error())
	case errors.Is(err, app.ErrKnowledgeBaseNotFound):
		response.Error(c, http.StatusNotFound, response.CodeKnowledgeBaseNotFound, err.Error())
	case errors.Is(err, app.ErrAPIKeyNotFound):
		response.Error(c, http.StatusNotFound, response.CodeAPIKeyNotFound, err.Error())
	case errors.Is(err, app.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.CodeUserNotFound, err.Error())
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, app.ErrMessageEnqueue), errors.Is(err, app.ErrChunkEnqueue), errors.Is(err, app.ErrEmbeddingUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		response.Error(c, http.StatusGatewayTimeout, response.CodeProviderError, "upstream timeout")
	default:
		logger.WithComponent("http").WithError(err).WithField("path", c.FullPath()).Error(fallback)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func runtimeStatus(t ai.AgentRuntimeErrorType) (int, int) {
	switch t {
	case ai.ErrorTypeInvalidProviderAPIKey:
		return http.StatusUnauthorized, response.CodeInvalidProviderKey
	case ai.ErrorTypePermissionDenied:
		return http.StatusForbidden, response.CodeForbidden
	case ai.ErrorTypeLocationNotSupport:
		return http.StatusForbidden, response.CodeLocationNotSupported
	case ai.ErrorTypeModelNotFound:
		return http.StatusNotFound, response.CodeModelNotFound
	case ai.ErrorTypeQuotaLimitReached, ai.ErrorTypeInsufficientQuota:
		return http.StatusTooManyRequests, response.CodeQuotaExceeded
	case ai.ErrorTypeExceededContextWindow:
		return http.StatusBadRequest, response.CodeContextWindowExceeded
	case ai.ErrorTypeProviderNotSupported:
		return http.StatusBadRequest, response.CodeBadRequest
	case ai.ErrorTypeOllamaServiceUnavailable:
		return http.StatusServiceUnavailable, response.CodeServiceUnavailable
	default:
		return http.StatusBadGateway, response.CodeProviderError
	}
}

func requireUser(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return "", false
	}
	return userID, true
}

func badRequest(c *gin.Context, message string) {
	response.Error(c, http.StatusBadRequest, response.CodeBadRequest, message)
}

// keyOverride prefers credentials from the request body and falls back to the
// X-Provider-* headers.
func keyOverride(c *gin.Context, apiKey, baseURL string) ai.KeyOverride {
	if strings.TrimSpace(apiKey) == "" {
		apiKey = c.GetHeader("X-Provider-API-Key")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = c.GetHeader("X-Provider-Base-URL")
	}
	return ai.KeyOverride{APIKey: strings.TrimSpace(apiKey), BaseURL: strings.TrimSpace(baseURL)}
}

// optionalID turns an empty query or body value into nil.
func optionalID(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return &raw
}
