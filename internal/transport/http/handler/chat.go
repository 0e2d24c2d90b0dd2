package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lobechat-go/internal/ai"
	"lobechat-go/internal/app"
	"lobechat-go/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type SendMessageRequest struct {
	SessionID   string     `json:"session_id" binding:"required"`
	TopicID     string     `json:"topic_id"`
	Content     string     `json:"content" binding:"required"`
	CreateTopic bool       `json:"create_topic"`
	LLM         LLMRequest `json:"llm"`
}

// LLMRequest overrides the agent's provider settings for one request.
type LLMRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	APIKey   string `json:"api_key"`
}

type UpdateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), h.input(c, userID, req))
	if err != nil {
		writeError(c, err, "send message failed")
		return
	}
	response.OK(c, result)
}

// StreamMessage answers with server-sent events. Errors raised before the
// first chunk are returned as a normal JSON envelope.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}
	stream := &sseStream{c: c, flusher: flusher}

	result, err := h.chatService.StreamMessage(c.Request.Context(), h.input(c, userID, req), func(chunk string) error {
		return stream.send("", chunk)
	})
	if err != nil {
		if !stream.started {
			writeError(c, err, "stream message failed")
			return
		}
		_ = stream.send("error", streamError(err))
		return
	}
	_ = stream.send("done", result)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	sessionID := c.Query("session_id")
	if sessionID == "" {
		badRequest(c, "invalid session_id")
		return
	}

	history, err := h.chatService.GetHistory(c.Request.Context(), userID, sessionID, optionalID(c.Query("topic_id")), queryLimit(c, 100))
	if err != nil {
		writeError(c, err, "get history failed")
		return
	}
	response.OK(c, history)
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	sessionID := c.Query("session_id")
	if sessionID == "" {
		badRequest(c, "invalid session_id")
		return
	}

	messages, err := h.chatService.ListMessages(userID, sessionID, optionalID(c.Query("topic_id")), queryLimit(c, 100))
	if err != nil {
		writeError(c, err, "list messages failed")
		return
	}
	response.OK(c, messages)
}

func (h *ChatHandler) UpdateMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	msg, err := h.chatService.UpdateMessage(c.Request.Context(), userID, c.Param("id"), req.Content)
	if err != nil {
		writeError(c, err, "update message failed")
		return
	}
	response.OK(c, msg)
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	messageID := c.Param("id")
	if err := h.chatService.DeleteMessage(c.Request.Context(), userID, messageID); err != nil {
		writeError(c, err, "delete message failed")
		return
	}
	response.OK(c, gin.H{"deleted_message_id": messageID})
}

func (h *ChatHandler) input(c *gin.Context, userID string, req SendMessageRequest) app.SendMessageInput {
	return app.SendMessageInput{
		UserID:      userID,
		SessionID:   req.SessionID,
		TopicID:     optionalID(req.TopicID),
		Content:     req.Content,
		CreateTopic: req.CreateTopic,
		Provider:    req.LLM.Provider,
		Model:       req.LLM.Model,
		Override:    keyOverride(c, req.LLM.APIKey, req.LLM.BaseURL),
	}
}

// sseStream writes JSON encoded events and sends the stream headers on first
// use.
type sseStream struct {
	c       *gin.Context
	flusher http.Flusher
	started bool
}

func (s *sseStream) send(event string, v any) error {
	if !s.started {
		s.c.Header("Content-Type", "text/event-stream")
		s.c.Header("Cache-Control", "no-cache")
		s.c.Header("Connection", "keep-alive")
		s.c.Header("X-Accel-Buffering", "no")
		s.c.Status(http.StatusOK)
		s.started = true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	frame := "data: " + string(data) + "\n\n"
	if event != "" {
		frame = "event: " + event + "\n" + frame
	}
	if _, err := s.c.Writer.Write([]byte(frame)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func streamError(err error) runtimeErrorBody {
	var rtErr *ai.AgentRuntimeError
	if errors.As(err, &rtErr) {
		return runtimeErrorBody{ErrorType: rtErr.Type, Provider: rtErr.Provider, Message: rtErr.Error()}
	}
	return runtimeErrorBody{ErrorType: ai.ErrorTypeAgentRuntime, Message: "stream interrupted"}
}

func queryLimit(c *gin.Context, fallback int) int {
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
