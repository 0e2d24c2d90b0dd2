package handler

import (
	"github.com/gin-gonic/gin"

	"lobechat-go/internal/app"
	"lobechat-go/internal/transport/http/response"
)

type ProviderHandler struct {
	modelService *app.ModelService
}

func NewProviderHandler(modelService *app.ModelService) *ProviderHandler {
	return &ProviderHandler{modelService: modelService}
}

func (h *ProviderHandler) List(c *gin.Context) {
	response.OK(c, h.modelService.Providers())
}

// Models lists the provider's models. A user key may be passed in the
// X-Provider-API-Key header.
func (h *ProviderHandler) Models(c *gin.Context) {
	models, err := h.modelService.Models(c.Request.Context(), c.Param("provider"), keyOverride(c, "", ""))
	if err != nil {
		writeError(c, err, "list models failed")
		return
	}
	response.OK(c, models)
}
