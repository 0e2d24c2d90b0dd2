package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                    = 0
	CodeBadRequest            = 40000
	CodeUsernameExists        = 40001
	CodeEmailExists           = 40002
	CodeMessageEmpty          = 40003
	CodeContextWindowExceeded = 40004
	CodeUnauthorized          = 40100
	CodeInvalidCredentials    = 40101
	CodeInvalidAPIKey         = 40102
	CodeInvalidProviderKey    = 40103
	CodeInvalidSignature      = 40104
	CodeForbidden             = 40300
	CodeProviderDisabled      = 40301
	CodeLocationNotSupported  = 40302
	CodeNotFound              = 40400
	CodeSessionNotFound       = 40401
	CodeTopicNotFound         = 40402
	CodeMessageNotFound       = 40403
	CodeFileNotFound          = 40404
	CodeKnowledgeBaseNotFound = 40405
	CodeAPIKeyNotFound        = 40406
	CodeUserNotFound          = 40407
	CodeModelNotFound         = 40408
	CodeFileTooLarge          = 41300
	CodeQuotaExceeded         = 42900
	CodeInternalServer        = 50000
	CodeProviderError         = 50200
	CodeServiceUnavailable    = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// ErrorWithData is Error with a payload, used for provider failures that carry
// a typed error body.
func ErrorWithData(c *gin.Context, httpStatus, code int, message string, data interface{}) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}
