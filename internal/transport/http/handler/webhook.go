package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"lobechat-go/internal/app"
	"lobechat-go/internal/transport/http/response"
)

const (
	logtoSignatureHeader = "logto-signature-sha-256"
	maxWebhookBody       = 1 << 20
)

type WebhookHandler struct {
	webhookService *app.WebhookService
}

func NewWebhookHandler(webhookService *app.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

// Logto verifies the signature over the raw body before decoding it.
func (h *WebhookHandler) Logto(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "cannot read body")
		return
	}
	if err := h.webhookService.ValidateLogto(body, c.GetHeader(logtoSignatureHeader)); err != nil {
		writeError(c, err, "invalid signature")
		return
	}
	if err := h.webhookService.HandleLogto(body); err != nil {
		writeError(c, err, "handle webhook failed")
		return
	}
	response.OK(c, nil)
}
