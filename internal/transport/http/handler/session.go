package handler

import (
	"github.com/gin-gonic/gin"

	"lobechat-go/internal/app"
	"lobechat-go/internal/model"
	"lobechat-go/internal/transport/http/response"
)

type SessionHandler struct {
	sessionService *app.SessionService
}

type AgentConfigRequest struct {
	SystemRole       *string            `json:"system_role"`
	Provider         *string            `json:"provider"`
	Model            *string            `json:"model"`
	Params           *model.AgentParams `json:"params"`
	ChatConfig       *model.ChatConfig  `json:"chat_config"`
	KnowledgeBaseIDs *[]string          `json:"knowledge_base_ids"`
}

type CreateSessionRequest struct {
	Title           string              `json:"title" binding:"max=128"`
	Description     string              `json:"description" binding:"max=512"`
	Avatar          string              `json:"avatar" binding:"max=512"`
	BackgroundColor string              `json:"background_color" binding:"max=32"`
	Agent           *AgentConfigRequest `json:"agent"`
}

type UpdateSessionRequest struct {
	Title           *string `json:"title" binding:"omitempty,max=128"`
	Description     *string `json:"description" binding:"omitempty,max=512"`
	Avatar          *string `json:"avatar" binding:"omitempty,max=512"`
	BackgroundColor *string `json:"background_color" binding:"omitempty,max=32"`
	Pinned          *bool   `json:"pinned"`
}

func NewSessionHandler(sessionService *app.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func (h *SessionHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	session, err := h.sessionService.Create(app.CreateSessionInput{
		UserID:          userID,
		Title:           req.Title,
		Description:     req.Description,
		Avatar:          req.Avatar,
		BackgroundColor: req.BackgroundColor,
		Agent:           req.Agent.toInput(),
	})
	if err != nil {
		writeError(c, err, "create session failed")
		return
	}
	response.OK(c, session)
}

func (h *SessionHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	sessions, err := h.sessionService.List(userID)
	if err != nil {
		writeError(c, err, "list sessions failed")
		return
	}
	response.OK(c, sessions)
}

func (h *SessionHandler) Search(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	sessions, err := h.sessionService.Search(userID, c.Query("keyword"))
	if err != nil {
		writeError(c, err, "search sessions failed")
		return
	}
	response.OK(c, sessions)
}

func (h *SessionHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	session, err := h.sessionService.Get(userID, c.Param("id"))
	if err != nil {
		writeError(c, err, "get session failed")
		return
	}
	response.OK(c, session)
}

func (h *SessionHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	session, err := h.sessionService.UpdateMeta(app.UpdateSessionInput{
		UserID:          userID,
		SessionID:       c.Param("id"),
		Title:           req.Title,
		Description:     req.Description,
		Avatar:          req.Avatar,
		BackgroundColor: req.BackgroundColor,
		Pinned:          req.Pinned,
	})
	if err != nil {
		writeError(c, err, "update session failed")
		return
	}
	response.OK(c, session)
}

func (h *SessionHandler) UpdateAgent(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req AgentConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	agent, err := h.sessionService.UpdateAgentConfig(userID, c.Param("id"), req.toInput())
	if err != nil {
		writeError(c, err, "update agent failed")
		return
	}
	response.OK(c, agent)
}

func (h *SessionHandler) Clone(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	session, err := h.sessionService.Clone(userID, c.Param("id"))
	if err != nil {
		writeError(c, err, "clone session failed")
		return
	}
	response.OK(c, session)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	sessionID := c.Param("id")
	if err := h.sessionService.Delete(c.Request.Context(), userID, sessionID); err != nil {
		writeError(c, err, "delete session failed")
		return
	}
	response.OK(c, gin.H{"deleted_session_id": sessionID})
}

func (r *AgentConfigRequest) toInput() app.AgentConfigInput {
	if r == nil {
		return app.AgentConfigInput{}
	}
	return app.AgentConfigInput{
		SystemRole:       r.SystemRole,
		Provider:         r.Provider,
		Model:            r.Model,
		Params:           r.Params,
		ChatConfig:       r.ChatConfig,
		KnowledgeBaseIDs: r.KnowledgeBaseIDs,
	}
}
