package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lobechat-go/internal/app"
	"lobechat-go/internal/transport/http/response"
)

const maxUploadSize = 50 << 20

type FileHandler struct {
	fileService *app.FileService
}

func NewFileHandler(fileService *app.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// Upload takes a multipart form with a "file" field.
func (h *FileHandler) Upload(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	if header.Size > maxUploadSize {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, "file exceeds 50MB limit")
		return
	}
	f, err := header.Open()
	if err != nil {
		badRequest(c, "cannot read uploaded file")
		return
	}
	defer f.Close()

	file, err := h.fileService.Upload(c.Request.Context(), app.UploadFileInput{
		UserID: userID,
		Name:   header.Filename,
		Body:   f,
	})
	if err != nil {
		writeError(c, err, "upload file failed")
		return
	}
	response.OK(c, file)
}

func (h *FileHandler) List(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	files, err := h.fileService.List(userID)
	if err != nil {
		writeError(c, err, "list files failed")
		return
	}
	response.OK(c, files)
}

func (h *FileHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	file, err := h.fileService.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err, "get file failed")
		return
	}
	response.OK(c, file)
}

func (h *FileHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	fileID := c.Param("id")
	if err := h.fileService.Delete(c.Request.Context(), userID, fileID); err != nil {
		writeError(c, err, "delete file failed")
		return
	}
	response.OK(c, gin.H{"deleted_file_id": fileID})
}

func (h *FileHandler) Chunk(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	file, err := h.fileService.EnqueueChunking(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err, "enqueue chunking failed")
		return
	}
	response.OK(c, file)
}

// Proxy redirects the short link /f/:id to the object URL.
func (h *FileHandler) Proxy(c *gin.Context) {
	url, err := h.fileService.GetProxyURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "resolve file failed")
		return
	}
	c.Redirect(http.StatusFound, url)
}
