package http

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"lobechat-go/internal/bootstrap"
	"lobechat-go/internal/logger"
	"lobechat-go/internal/transport/http/handler"
	"lobechat-go/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	log := logger.WithComponent("http")
	router.Use(middleware.Recovery(log), middleware.RequestLogger(log))

	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt,
		handler.DependencyCheck{Name: "mysql", Ping: func(ctx context.Context) error {
			sqlDB, err := app.MySQL.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		handler.DependencyCheck{Name: "redis", Ping: func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}},
		handler.DependencyCheck{Name: "rabbitmq", Ping: func(context.Context) error {
			if app.MQConn == nil || app.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		}},
		handler.DependencyCheck{Name: "s3", Ping: app.Storage.Ping},
	)
	router.GET("/healthz", healthHandler.Check)

	Mount(router, app.Services)
	return router
}

// Mount registers every API route on router.
func Mount(router *gin.Engine, svc *bootstrap.Services) {
	authHandler := handler.NewAuthHandler(svc.Auth)
	sessionHandler := handler.NewSessionHandler(svc.Session)
	topicHandler := handler.NewTopicHandler(svc.Topic)
	chatHandler := handler.NewChatHandler(svc.Chat)
	providerHandler := handler.NewProviderHandler(svc.Model)
	fileHandler := handler.NewFileHandler(svc.File)
	knowledgeHandler := handler.NewKnowledgeHandler(svc.Knowledge)
	apiKeyHandler := handler.NewAPIKeyHandler(svc.APIKey)
	webhookHandler := handler.NewWebhookHandler(svc.Webhook)

	router.GET("/f/:id", fileHandler.Proxy)
	router.POST("/api/webhooks/logto", webhookHandler.Logto)

	requireAuth := middleware.Auth(svc.Auth, svc.APIKey)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	api := v1.Group("")
	api.Use(requireAuth)

	api.POST("/sessions", sessionHandler.Create)
	api.GET("/sessions", sessionHandler.List)
	api.GET("/sessions/search", sessionHandler.Search)
	api.GET("/sessions/:id", sessionHandler.Get)
	api.PATCH("/sessions/:id", sessionHandler.Update)
	api.DELETE("/sessions/:id", sessionHandler.Delete)
	api.PUT("/sessions/:id/agent", sessionHandler.UpdateAgent)
	api.POST("/sessions/:id/clone", sessionHandler.Clone)
	api.POST("/sessions/:id/topics", topicHandler.Create)
	api.GET("/sessions/:id/topics", topicHandler.List)

	api.GET("/topics/search", topicHandler.Search)
	api.POST("/topics/batch-delete", topicHandler.BatchDelete)
	api.PATCH("/topics/:id", topicHandler.Update)
	api.DELETE("/topics/:id", topicHandler.Delete)
	api.POST("/topics/:id/summarize", topicHandler.Summarize)

	api.GET("/messages", chatHandler.ListMessages)
	api.PATCH("/messages/:id", chatHandler.UpdateMessage)
	api.DELETE("/messages/:id", chatHandler.DeleteMessage)

	api.POST("/chat/messages", chatHandler.SendMessage)
	api.POST("/chat/stream", chatHandler.StreamMessage)
	api.GET("/chat/history", chatHandler.GetHistory)

	api.GET("/providers", providerHandler.List)
	api.GET("/providers/:provider/models", providerHandler.Models)

	api.POST("/files", fileHandler.Upload)
	api.GET("/files", fileHandler.List)
	api.GET("/files/:id", fileHandler.Get)
	api.DELETE("/files/:id", fileHandler.Delete)
	api.POST("/files/:id/chunk", fileHandler.Chunk)

	api.POST("/knowledge-bases", knowledgeHandler.Create)
	api.GET("/knowledge-bases", knowledgeHandler.List)
	api.DELETE("/knowledge-bases/:id", knowledgeHandler.Delete)
	api.POST("/knowledge-bases/:id/files", knowledgeHandler.AddFiles)
	api.DELETE("/knowledge-bases/:id/files/:fileId", knowledgeHandler.RemoveFile)
	api.POST("/knowledge/search", knowledgeHandler.Search)

	api.POST("/api-keys", apiKeyHandler.Create)
	api.GET("/api-keys", apiKeyHandler.List)
	api.PATCH("/api-keys/:id", apiKeyHandler.Update)
	api.DELETE("/api-keys/:id", apiKeyHandler.Delete)
}
