package handler

import (
	"github.com/gin-gonic/gin"

	"lobechat-go/internal/app"
	"lobechat-go/internal/transport/http/response"
)

type TopicHandler struct {
	topicService *app.TopicService
}

type CreateTopicRequest struct {
	Title string `json:"title" binding:"max=256"`
	// MoveDefaultMessages moves the session's unfiled messages into the topic.
	MoveDefaultMessages bool `json:"move_default_messages"`
}

type UpdateTopicRequest struct {
	Title    *string `json:"title" binding:"omitempty,max=256"`
	Favorite *bool   `json:"favorite"`
}

type BatchDeleteTopicsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

type SummarizeTopicRequest struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

func NewTopicHandler(topicService *app.TopicService) *TopicHandler {
	return &TopicHandler{topicService: topicService}
}

func (h *TopicHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}

	topic, err := h.topicService.Create(c.Request.Context(), app.CreateTopicInput{
		UserID:              userID,
		SessionID:           c.Param("id"),
		Title:               req.Title,
		MoveDefaultMessages: req.MoveDefaultMessages,
	})
	if err != nil {
		writeError(c, err, "create topic failed")
		return
	}
	response.OK(c, topic)
}

func (h *TopicHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	topics, err := h.topicService.List(userID, c.Param("id"))
	if err != nil {
		writeError(c, err, "list topics failed")
		return
	}
	response.OK(c, topics)
}

func (h *TopicHandler) Search(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	topics, err := h.topicService.Search(userID, c.Query("keyword"), c.Query("session_id"))
	if err != nil {
		writeError(c, err, "search topics failed")
		return
	}
	response.OK(c, topics)
}

func (h *TopicHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req UpdateTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	topic, err := h.topicService.Update(app.UpdateTopicInput{
		UserID:   userID,
		TopicID:  c.Param("id"),
		Title:    req.Title,
		Favorite: req.Favorite,
	})
	if err != nil {
		writeError(c, err, "update topic failed")
		return
	}
	response.OK(c, topic)
}

func (h *TopicHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	topicID := c.Param("id")
	if err := h.topicService.Delete(c.Request.Context(), userID, topicID); err != nil {
		writeError(c, err, "delete topic failed")
		return
	}
	response.OK(c, gin.H{"deleted_topic_id": topicID})
}

func (h *TopicHandler) BatchDelete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req BatchDeleteTopicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	deleted, err := h.topicService.BatchDelete(c.Request.Context(), userID, req.IDs)
	if err != nil {
		writeError(c, err, "delete topics failed")
		return
	}
	response.OK(c, gin.H{"deleted": deleted})
}

func (h *TopicHandler) Summarize(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req SummarizeTopicRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}
	}
	topic, err := h.topicService.Summarize(c.Request.Context(), userID, c.Param("id"), keyOverride(c, req.APIKey, req.BaseURL))
	if err != nil {
		writeError(c, err, "summarize topic failed")
		return
	}
	response.OK(c, topic)
}
