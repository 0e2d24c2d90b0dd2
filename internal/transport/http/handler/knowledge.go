package handler

import (
	"github.com/gin-gonic/gin"

	"lobechat-go/internal/app"
	"lobechat-go/internal/transport/http/response"
)

type KnowledgeHandler struct {
	knowledgeService *app.KnowledgeService
}

type CreateKnowledgeBaseRequest struct {
	Name        string `json:"name" binding:"required,max=256"`
	Description string `json:"description" binding:"max=1024"`
}

type AddKnowledgeFilesRequest struct {
	FileIDs []string `json:"file_ids" binding:"required,min=1"`
}

// KnowledgeSearchRequest needs at least one knowledge base or file id.
type KnowledgeSearchRequest struct {
	KnowledgeBaseIDs []string `json:"knowledge_base_ids"`
	FileIDs          []string `json:"file_ids"`
	Query            string   `json:"query" binding:"required"`
	TopK             int      `json:"top_k" binding:"omitempty,min=1,max=50"`
}

func NewKnowledgeHandler(knowledgeService *app.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{knowledgeService: knowledgeService}
}

func (h *KnowledgeHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req CreateKnowledgeBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	kb, err := h.knowledgeService.Create(app.CreateKnowledgeBaseInput{UserID: userID, Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(c, err, "create knowledge base failed")
		return
	}
	response.OK(c, kb)
}

func (h *KnowledgeHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	kbs, err := h.knowledgeService.List(userID)
	if err != nil {
		writeError(c, err, "list knowledge bases failed")
		return
	}
	response.OK(c, kbs)
}

func (h *KnowledgeHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	kbID := c.Param("id")
	if err := h.knowledgeService.Delete(userID, kbID); err != nil {
		writeError(c, err, "delete knowledge base failed")
		return
	}
	response.OK(c, gin.H{"deleted_knowledge_base_id": kbID})
}

func (h *KnowledgeHandler) AddFiles(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req AddKnowledgeFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	if err := h.knowledgeService.AddFiles(userID, c.Param("id"), req.FileIDs); err != nil {
		writeError(c, err, "add files failed")
		return
	}
	response.OK(c, gin.H{"added": len(req.FileIDs)})
}

func (h *KnowledgeHandler) RemoveFile(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID := c.Param("fileId")
	if err := h.knowledgeService.RemoveFile(userID, c.Param("id"), fileID); err != nil {
		writeError(c, err, "remove file failed")
		return
	}
	response.OK(c, gin.H{"removed_file_id": fileID})
}

func (h *KnowledgeHandler) Search(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	var req KnowledgeSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	if len(req.KnowledgeBaseIDs) == 0 && len(req.FileIDs) == 0 {
		badRequest(c, "knowledge_base_ids or file_ids is required")
		return
	}
	results, err := h.knowledgeService.SemanticSearch(c.Request.Context(), app.SemanticSearchInput{
		UserID:           userID,
		KnowledgeBaseIDs: req.KnowledgeBaseIDs,
		FileIDs:          req.FileIDs,
		Query:            req.Query,
		TopK:             req.TopK,
	})
	if err != nil {
		writeError(c, err, "knowledge search failed")
		return
	}
	response.OK(c, results)
}
