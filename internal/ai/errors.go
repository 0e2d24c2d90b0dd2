package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// AgentRuntimeErrorType classifies provider failures for the client.
type AgentRuntimeErrorType string

const (
	ErrorTypeAgentRuntime             AgentRuntimeErrorType = "AgentRuntimeError"
	ErrorTypeInvalidProviderAPIKey    AgentRuntimeErrorType = "InvalidProviderAPIKey"
	ErrorTypeProviderBizError         AgentRuntimeErrorType = "ProviderBizError"
	ErrorTypePermissionDenied         AgentRuntimeErrorType = "PermissionDenied"
	ErrorTypeLocationNotSupport       AgentRuntimeErrorType = "LocationNotSupportError"
	ErrorTypeQuotaLimitReached        AgentRuntimeErrorType = "QuotaLimitReached"
	ErrorTypeInsufficientQuota        AgentRuntimeErrorType = "InsufficientQuota"
	ErrorTypeExceededContextWindow    AgentRuntimeErrorType = "ExceededContextWindow"
	ErrorTypeModelNotFound            AgentRuntimeErrorType = "ModelNotFound"
	ErrorTypeOllamaBizError           AgentRuntimeErrorType = "OllamaBizError"
	ErrorTypeOllamaServiceUnavailable AgentRuntimeErrorType = "OllamaServiceUnavailable"
	ErrorTypeProviderNotSupported     AgentRuntimeErrorType = "ProviderNotSupported"
)

// ErrProviderDisabled is returned for unknown providers and providers without
// server credentials when the caller supplied none either.
var ErrProviderDisabled = errors.New("provider is not enabled")

type AgentRuntimeError struct {
	Type     AgentRuntimeErrorType `json:"type"`
	Provider string                `json:"provider"`
	Status   int                   `json:"status,omitempty"`
	Err      error                 `json:"-"`
}

func NewRuntimeError(errType AgentRuntimeErrorType, provider string, status int, err error) *AgentRuntimeError {
	return &AgentRuntimeError{Type: errType, Provider: provider, Status: status, Err: err}
}

func (e *AgentRuntimeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Type)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Type, e.Err)
}

func (e *AgentRuntimeError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient: timeouts, rate limits,
// upstream 5xx and transport errors without a status.
func (e *AgentRuntimeError) Retryable() bool {
	switch e.Type {
	case ErrorTypeInvalidProviderAPIKey, ErrorTypeInsufficientQuota, ErrorTypeExceededContextWindow,
		ErrorTypeModelNotFound, ErrorTypePermissionDenied, ErrorTypeLocationNotSupport,
		ErrorTypeProviderNotSupported:
		return false
	}
	if e.Err != nil && (errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded)) {
		return false
	}
	switch {
	case e.Status == 0:
		return true
	case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	}
	return false
}

// typeForStatus is the fallback classification when the vendor sent no code.
func typeForStatus(status int) AgentRuntimeErrorType {
	switch status {
	case http.StatusUnauthorized:
		return ErrorTypeInvalidProviderAPIKey
	case http.StatusForbidden:
		return ErrorTypePermissionDenied
	case http.StatusNotFound:
		return ErrorTypeModelNotFound
	case http.StatusTooManyRequests:
		return ErrorTypeQuotaLimitReached
	}
	return ErrorTypeProviderBizError
}
