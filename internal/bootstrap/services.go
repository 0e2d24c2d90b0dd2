package bootstrap

import (
	"time"

	"gorm.io/gorm"

	"lobechat-go/internal/app"
	"lobechat-go/internal/config"
	"lobechat-go/internal/repository"
)

// Services is every application service the transport layer and the workers
// use.
type Services struct {
	Auth      *app.AuthService
	Session   *app.SessionService
	Topic     *app.TopicService
	Chat      *app.ChatService
	File      *app.FileService
	Knowledge *app.KnowledgeService
	APIKey    *app.APIKeyService
	Webhook   *app.WebhookService
	Model     *app.ModelService
}

type ServiceDeps struct {
	Config       *config.Config
	DB           *gorm.DB
	HistoryCache app.HistoryCache
	Store        app.ObjectStore
	Runtimes     app.ProviderLister
	Messages     app.Publisher
	ChunkJobs    app.Publisher
}

func NewServices(deps ServiceDeps) *Services {
	cfg := deps.Config
	userRepo := repository.NewUserRepository(deps.DB)
	agentRepo := repository.NewAgentRepository(deps.DB)
	sessionRepo := repository.NewSessionRepository(deps.DB)
	topicRepo := repository.NewTopicRepository(deps.DB)
	messageRepo := repository.NewMessageRepository(deps.DB)
	fileRepo := repository.NewFileRepository(deps.DB)
	chunkRepo := repository.NewChunkRepository(deps.DB)
	kbRepo := repository.NewKnowledgeBaseRepository(deps.DB)
	apiKeyRepo := repository.NewAPIKeyRepository(deps.DB)

	knowledge := app.NewKnowledgeService(kbRepo, fileRepo, chunkRepo, deps.Store, deps.Runtimes, app.KnowledgeOptions{
		EmbeddingProvider: cfg.Knowledge.EmbeddingProvider,
		EmbeddingModel:    cfg.Knowledge.EmbeddingModel,
		ChunkSize:         cfg.Knowledge.ChunkSize,
		ChunkOverlap:      cfg.Knowledge.ChunkOverlap,
		TopK:              cfg.Knowledge.TopK,
	})

	return &Services{
		Auth:    app.NewAuthService(userRepo, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute),
		Session: app.NewSessionService(sessionRepo, agentRepo, kbRepo, deps.HistoryCache, deps.Runtimes),
		Topic:   app.NewTopicService(topicRepo, sessionRepo, agentRepo, messageRepo, deps.HistoryCache, deps.Runtimes),
		Chat: app.NewChatService(app.ChatServiceDeps{
			SessionRepo:  sessionRepo,
			AgentRepo:    agentRepo,
			TopicRepo:    topicRepo,
			MessageRepo:  messageRepo,
			Publisher:    deps.Messages,
			HistoryCache: deps.HistoryCache,
			Runtimes:     deps.Runtimes,
			Knowledge:    knowledge,
			MaxContext:   cfg.LLM.MaxContextMessage,
		}),
		File:      app.NewFileService(fileRepo, deps.Store, deps.ChunkJobs),
		Knowledge: knowledge,
		APIKey:    app.NewAPIKeyService(apiKeyRepo),
		Webhook:   app.NewWebhookService(userRepo, cfg.Webhook.LogtoSigningKey),
		Model:     app.NewModelService(deps.Runtimes),
	}
}
