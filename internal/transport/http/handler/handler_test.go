package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"lobechat-go/internal/ai"
	"lobechat-go/internal/app"
	"lobechat-go/internal/config"
	"lobechat-go/internal/repository"
	"lobechat-go/internal/testutil"
	"lobechat-go/internal/transport/http/middleware"
	"lobechat-go/internal/transport/http/response"
)

const testSigningKey = "whsec"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	userRepo := repository.NewUserRepository(db)

	authService := app.NewAuthService(userRepo, "test-secret", time.Hour)
	apiKeyService := app.NewAPIKeyService(repository.NewAPIKeyRepository(db))
	modelService := app.NewModelService(ai.NewRegistry(&config.Config{}))

	authHandler := NewAuthHandler(authService)
	apiKeyHandler := NewAPIKeyHandler(apiKeyService)
	providerHandler := NewProviderHandler(modelService)
	webhookHandler := NewWebhookHandler(app.NewWebhookService(userRepo, testSigningKey))

	r := gin.New()
	r.POST("/api/webhooks/logto", webhookHandler.Logto)
	r.POST("/auth/register", authHandler.Register)
	r.POST("/auth/login", authHandler.Login)

	api := r.Group("", middleware.Auth(authService, apiKeyService))
	api.GET("/auth/me", authHandler.Me)
	api.POST("/api-keys", apiKeyHandler.Create)
	api.GET("/api-keys", apiKeyHandler.List)
	api.GET("/providers", providerHandler.List)
	api.GET("/providers/:provider/models", providerHandler.Models)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, path, w.Body.String(), err)
	}
	return w, env
}

func register(t *testing.T, r http.Handler) string {
	t.Helper()
	w, env := doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"username": "alice", "email": "alice@example.com", "password": "password123",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("register status = %d, body = %s", w.Code, w.Body.String())
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Token == "" {
		t.Fatalf("register data = %s, err = %v", env.Data, err)
	}
	return data.Token
}

func TestAuthHandler_RegisterLoginMe(t *testing.T) {
	r := newTestRouter(t)
	token := register(t, r)

	w, env := doJSON(t, r, http.MethodPost, "/auth/register", gin.H{
		"username": "alice", "email": "other@example.com", "password": "password123",
	}, nil)
	if w.Code != http.StatusBadRequest || env.Code != response.CodeUsernameExists {
		t.Errorf("duplicate register = (%d, %d), want (400, %d)", w.Code, env.Code, response.CodeUsernameExists)
	}

	w, env = doJSON(t, r, http.MethodPost, "/auth/login", gin.H{"username": "alice", "password": "wrongpass1"}, nil)
	if w.Code != http.StatusUnauthorized || env.Code != response.CodeInvalidCredentials {
		t.Errorf("bad login = (%d, %d), want (401, %d)", w.Code, env.Code, response.CodeInvalidCredentials)
	}

	w, env = doJSON(t, r, http.MethodGet, "/auth/me", nil, map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d, body = %s", w.Code, w.Body.String())
	}
	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(env.Data, &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.Username != "alice" {
		t.Errorf("username = %q, want alice", me.Username)
	}
}

func TestAPIKeyHandler_KeyAuthenticatesRequests(t *testing.T) {
	r := newTestRouter(t)
	token := register(t, r)

	w, env := doJSON(t, r, http.MethodPost, "/api-keys", gin.H{"name": "ci"}, map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Fatalf("create key status = %d, body = %s", w.Code, w.Body.String())
	}
	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(env.Data, &created); err != nil || created.Key == "" {
		t.Fatalf("created = %s, err = %v", env.Data, err)
	}

	w, _ = doJSON(t, r, http.MethodGet, "/auth/me", nil, map[string]string{middleware.APIKeyHeader: created.Key})
	if w.Code != http.StatusOK {
		t.Errorf("me via api key status = %d, want 200", w.Code)
	}

	w, env = doJSON(t, r, http.MethodGet, "/api-keys", nil, map[string]string{middleware.APIKeyHeader: created.Key})
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	if bytes.Contains(env.Data, []byte(created.Key)) {
		t.Error("list must not expose the plaintext key")
	}
}

func TestProviderHandler(t *testing.T) {
	r := newTestRouter(t)
	auth := map[string]string{"Authorization": "Bearer " + register(t, r)}

	w, env := doJSON(t, r, http.MethodGet, "/providers", nil, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("providers status = %d", w.Code)
	}
	var providers []ai.ProviderStatus
	if err := json.Unmarshal(env.Data, &providers); err != nil {
		t.Fatalf("decode providers: %v", err)
	}
	if len(providers) != len(config.KnownProviders) {
		t.Errorf("len(providers) = %d, want %d", len(providers), len(config.KnownProviders))
	}

	w, env = doJSON(t, r, http.MethodGet, "/providers/openai/models", nil, auth)
	if w.Code != http.StatusForbidden || env.Code != response.CodeProviderDisabled {
		t.Errorf("disabled provider = (%d, %d), want (403, %d)", w.Code, env.Code, response.CodeProviderDisabled)
	}
}

func TestWebhookHandler_Signature(t *testing.T) {
	r := newTestRouter(t)
	body := []byte(`{"event":"User.Created","data":{}}`)

	post := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/logto", bytes.NewReader(body))
		req.Header.Set(logtoSignatureHeader, sig)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := post("deadbeef"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad signature status = %d, want 401", w.Code)
	}

	mac := hmac.New(sha256.New, []byte(testSigningKey))
	mac.Write(body)
	if w := post(hex.EncodeToString(mac.Sum(nil))); w.Code != http.StatusOK {
		t.Errorf("good signature status = %d, want 200, body = %s", w.Code, w.Body.String())
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   int
	}{
		{app.ErrSessionNotFound, http.StatusNotFound, response.CodeSessionNotFound},
		{fmt.Errorf("wrap: %w", app.ErrTopicNotFound), http.StatusNotFound, response.CodeTopicNotFound},
		{app.ErrMessageEmpty, http.StatusBadRequest, response.CodeMessageEmpty},
		{app.ErrFileTooLarge, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge},
		{app.ErrMessageEnqueue, http.StatusServiceUnavailable, response.CodeServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, response.CodeProviderError},
		{ai.NewRuntimeError(ai.ErrorTypeInvalidProviderAPIKey, "openai", 401, errors.New("bad key")), http.StatusUnauthorized, response.CodeInvalidProviderKey},
		{ai.NewRuntimeError(ai.ErrorTypeQuotaLimitReached, "openai", 429, errors.New("slow down")), http.StatusTooManyRequests, response.CodeQuotaExceeded},
		{ai.NewRuntimeError(ai.ErrorTypeProviderBizError, "openai", 500, errors.New("boom")), http.StatusBadGateway, response.CodeProviderError},
		{errors.New("unexpected"), http.StatusInternalServerError, response.CodeInternalServer},
	}

	gin.SetMode(gin.TestMode)
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		writeError(c, tt.err, "fallback")

		var env envelope
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if w.Code != tt.wantStatus || env.Code != tt.wantCode {
			t.Errorf("writeError(%v) = (%d, %d), want (%d, %d)", tt.err, w.Code, env.Code, tt.wantStatus, tt.wantCode)
		}
	}
}

func TestWriteError_RuntimeBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(c, ai.NewRuntimeError(ai.ErrorTypeModelNotFound, "deepseek", 404, errors.New("no such model")), "fallback")

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var body runtimeErrorBody
	if err := json.Unmarshal(env.Data, &body); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if body.ErrorType != ai.ErrorTypeModelNotFound || body.Provider != "deepseek" {
		t.Errorf("body = %+v", body)
	}
}

func TestKeyOverride(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("X-Provider-API-Key", "header-key")
	c.Request.Header.Set("X-Provider-Base-URL", "http://proxy")

	if got := keyOverride(c, "", ""); got.APIKey != "header-key" || got.BaseURL != "http://proxy" {
		t.Errorf("header fallback = %+v", got)
	}
	if got := keyOverride(c, " body-key ", ""); got.APIKey != "body-key" {
		t.Errorf("body key = %q, want body-key", got.APIKey)
	}
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ok := DependencyCheck{Name: "mysql", Ping: func(context.Context) error { return nil }}
	down := DependencyCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("refused") }}

	tests := []struct {
		name   string
		checks []DependencyCheck
		want   int
	}{
		{"all up", []DependencyCheck{ok}, http.StatusOK},
		{"one down", []DependencyCheck{ok, down}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/healthz", NewHealthHandler("lobechat", "test", time.Now(), tt.checks...).Check)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
