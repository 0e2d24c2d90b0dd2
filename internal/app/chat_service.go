package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lobechat-go/internal/ai"
	"lobechat-go/internal/logger"
	"lobechat-go/internal/model"
	"lobechat-go/internal/pkg/idgen"
	"lobechat-go/internal/repository"
)

var (
	ErrMessageEmpty    = errors.New("message content is empty")
	ErrMessageNotFound = errors.New("message not found")
	ErrMessageEnqueue  = errors.New("message enqueue failed")
)

// historyCacheWindow is how many of the newest messages GetHistory loads and caches.
const historyCacheWindow = 200

type KnowledgeSearcher interface {
	SearchKnowledgeBases(ctx context.Context, userID string, kbIDs []string, query string, topK int) ([]SearchResult, error)
}

type ChatService struct {
	sessionRepo  *repository.SessionRepository
	agentRepo    *repository.AgentRepository
	topicRepo    *repository.TopicRepository
	messageRepo  *repository.MessageRepository
	publisher    Publisher
	historyCache HistoryCache
	runtimes     RuntimeProvider
	knowledge    KnowledgeSearcher
	maxContext   int
}

type ChatServiceDeps struct {
	SessionRepo  *repository.SessionRepository
	AgentRepo    *repository.AgentRepository
	TopicRepo    *repository.TopicRepository
	MessageRepo  *repository.MessageRepository
	Publisher    Publisher
	HistoryCache HistoryCache
	Runtimes     RuntimeProvider
	Knowledge    KnowledgeSearcher
	MaxContext   int
}

func NewChatService(deps ChatServiceDeps) *ChatService {
	if deps.MaxContext <= 0 {
		deps.MaxContext = 20
	}
	return &ChatService{
		sessionRepo:  deps.SessionRepo,
		agentRepo:    deps.AgentRepo,
		topicRepo:    deps.TopicRepo,
		messageRepo:  deps.MessageRepo,
		publisher:    deps.Publisher,
		historyCache: deps.HistoryCache,
		runtimes:     deps.Runtimes,
		knowledge:    deps.Knowledge,
		maxContext:   deps.MaxContext,
	}
}

type SendMessageInput struct {
	UserID    string
	SessionID string
	// TopicID nil means the session's default topic.
	TopicID     *string
	Content     string
	CreateTopic bool
	// Provider and Model override the agent for this request only.
	Provider string
	Model    string
	Override ai.KeyOverride
}

type SendMessageResult struct {
	// Topic is set when the request created a topic.
	Topic            *model.Topic  `json:"topic,omitempty"`
	UserMessage      model.Message `json:"user_message"`
	AssistantMessage model.Message `json:"assistant_message"`
	Usage            ai.Usage      `json:"usage"`
}

// chatTurn is a prepared request: the user message is already enqueued.
type chatTurn struct {
	runtime   ai.Runtime
	payload   ai.ChatPayload
	provider  string
	topic     *model.Topic
	user      model.Message
	assistant model.Message
}

func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	turn, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	result, runErr := turn.runtime.Chat(ctx, turn.payload)
	return s.finish(ctx, turn, result, "", runErr)
}

// StreamMessage forwards every delta to onChunk. When generation fails part
// way, the partial text is kept on the assistant message with the error.
func (s *ChatService) StreamMessage(ctx context.Context, input SendMessageInput, onChunk func(string) error) (*SendMessageResult, error) {
	turn, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	var partial strings.Builder
	result, runErr := turn.runtime.ChatStream(ctx, turn.payload, func(chunk string) error {
		partial.WriteString(chunk)
		return onChunk(chunk)
	})
	return s.finish(ctx, turn, result, partial.String(), runErr)
}

func (s *ChatService) prepare(ctx context.Context, input SendMessageInput) (*chatTurn, error) {
	if input.UserID == "" || input.SessionID == "" {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if s.publisher == nil {
		return nil, ErrMessageEnqueue
	}

	session, err := s.sessionRepo.GetByIDAndUserID(input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	agent, err := s.agentRepo.GetByIDAndUserID(session.AgentID, input.UserID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		agent = &model.Agent{ChatConfig: datatypesJSON(model.DefaultChatConfig())}
	}

	topicID := input.TopicID
	if topicID != nil && *topicID == "" {
		topicID = nil
	}
	if topicID != nil {
		topic, err := s.topicRepo.GetByIDAndUserID(*topicID, input.UserID)
		if err != nil {
			return nil, err
		}
		if topic == nil || topic.SessionID != session.ID {
			return nil, ErrTopicNotFound
		}
	}

	provider, modelID := s.resolveModel(agent, input)
	rt, err := s.runtimes.Runtime(provider, input.Override)
	if err != nil {
		return nil, mapRuntimeLookupErr(err)
	}

	chatCfg := agent.ChatConfig.Data()
	history, err := s.messageRepo.ListRecent(input.UserID, session.ID, topicID, s.historySize(chatCfg))
	if err != nil {
		return nil, err
	}

	turn := &chatTurn{runtime: rt, provider: provider}
	if topicID == nil && s.shouldCreateTopic(input.CreateTopic, chatCfg, input.UserID, session.ID) {
		topic := &model.Topic{UserID: input.UserID, SessionID: session.ID, Title: truncateRunes(content, topicTitleMaxRunes)}
		if err := s.topicRepo.Create(topic); err != nil {
			return nil, err
		}
		if err := s.messageRepo.MoveDefaultToTopic(input.UserID, session.ID, topic.ID); err != nil {
			return nil, err
		}
		s.invalidate(ctx, session.ID, nil)
		turn.topic = topic
		topicID = &topic.ID
	}

	systemRole := agent.SystemRole
	if kbContext := s.knowledgeContext(ctx, input.UserID, agent.KnowledgeBaseIDs, content); kbContext != "" {
		systemRole = strings.TrimSpace(systemRole + "\n\n" + kbContext)
	}
	params := agent.Params.Data()
	turn.payload = ai.ChatPayload{
		Model:            modelID,
		Messages:         buildPrompt(systemRole, history, content),
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		MaxTokens:        params.MaxTokens,
		PresencePenalty:  params.PresencePenalty,
		FrequencyPenalty: params.FrequencyPenalty,
	}

	now := time.Now()
	turn.user = model.Message{
		ID:        idgen.New(idgen.PrefixMessage),
		UserID:    input.UserID,
		SessionID: session.ID,
		TopicID:   topicID,
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	turn.assistant = model.Message{
		ID:        idgen.New(idgen.PrefixMessage),
		UserID:    input.UserID,
		SessionID: session.ID,
		TopicID:   topicID,
		ParentID:  turn.user.ID,
		Role:      model.RoleAssistant,
		Provider:  provider,
		Model:     modelID,
	}

	s.invalidate(ctx, session.ID, topicID)
	if err := s.publisher.Publish(ctx, turn.user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageEnqueue, err)
	}
	return turn, nil
}

// finish records the assistant message. A runtime failure is stored on the
// message and also returned.
func (s *ChatService) finish(ctx context.Context, turn *chatTurn, result *ai.ChatResult, partial string, runErr error) (*SendMessageResult, error) {
	// The reply is persisted even if the client went away mid-stream.
	ctx = context.WithoutCancel(ctx)

	msg := turn.assistant
	now := time.Now()
	msg.CreatedAt, msg.UpdatedAt = now, now
	out := &SendMessageResult{Topic: turn.topic, UserMessage: turn.user}

	if runErr != nil {
		msg.Content = partial
		msg.Error = datatypesJSON(toMessageError(runErr))
	} else if result != nil {
		msg.Content = strings.TrimSpace(result.Content)
		msg.PromptTokens = result.Usage.PromptTokens
		msg.CompletionTokens = result.Usage.CompletionTokens
		out.Usage = result.Usage
	}
	out.AssistantMessage = msg

	s.invalidate(ctx, msg.SessionID, msg.TopicID)
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageEnqueue, err)
	}
	log := logger.WithComponent("chat").WithField("session_id", msg.SessionID)
	if err := s.sessionRepo.Touch(msg.SessionID, msg.UserID, now); err != nil {
		log.WithError(err).Warn("touch session failed")
	}
	if msg.TopicID != nil {
		if err := s.topicRepo.Touch(*msg.TopicID, msg.UserID, now); err != nil {
			log.WithError(err).WithField("topic_id", *msg.TopicID).Warn("touch topic failed")
		}
	}

	if runErr != nil {
		return out, runErr
	}
	return out, nil
}

func (s *ChatService) ListMessages(userID, sessionID string, topicID *string, limit int) ([]model.Message, error) {
	if err := s.checkSession(userID, sessionID); err != nil {
		return nil, err
	}
	return s.messageRepo.ListByTopic(userID, sessionID, topicID, limit)
}

// GetHistory serves the topic's messages from the cache unless a write is in
// flight.
func (s *ChatService) GetHistory(ctx context.Context, userID, sessionID string, topicID *string, limit int) ([]model.Message, error) {
	if err := s.checkSession(userID, sessionID); err != nil {
		return nil, err
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID, topicID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID, topicID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListByTopic(userID, sessionID, topicID, historyCacheWindow)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID, topicID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, topicID, messages)
		}
	}
	return trimMessages(messages, limit), nil
}

func (s *ChatService) UpdateMessage(ctx context.Context, userID, messageID, content string) (*model.Message, error) {
	msg, err := s.mustGetMessage(userID, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.messageRepo.UpdateContent(messageID, userID, content); err != nil {
		return nil, err
	}
	s.invalidate(ctx, msg.SessionID, msg.TopicID)
	msg.Content = content
	return msg, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, userID, messageID string) error {
	msg, err := s.mustGetMessage(userID, messageID)
	if err != nil {
		return err
	}
	if err := s.messageRepo.DeleteByIDAndUserID(messageID, userID); err != nil {
		return err
	}
	s.invalidate(ctx, msg.SessionID, msg.TopicID)
	return nil
}

func (s *ChatService) checkSession(userID, sessionID string) error {
	if userID == "" || sessionID == "" {
		return ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	return nil
}

func (s *ChatService) mustGetMessage(userID, messageID string) (*model.Message, error) {
	if userID == "" || messageID == "" {
		return nil, ErrInvalidInput
	}
	msg, err := s.messageRepo.GetByIDAndUserID(messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

func (s *ChatService) resolveModel(agent *model.Agent, input SendMessageInput) (string, string) {
	provider, modelID := s.runtimes.Defaults()
	if agent.Provider != "" {
		provider = agent.Provider
	}
	if agent.Model != "" {
		modelID = agent.Model
	}
	if p := strings.TrimSpace(input.Provider); p != "" {
		provider = p
	}
	if m := strings.TrimSpace(input.Model); m != "" {
		modelID = m
	}
	return provider, modelID
}

func (s *ChatService) historySize(cfg model.ChatConfig) int {
	if cfg.EnableHistoryCount && cfg.HistoryCount < s.maxContext {
		return cfg.HistoryCount
	}
	return s.maxContext
}

// shouldCreateTopic is true when asked explicitly, or when auto topics are on
// and the default topic already holds threshold messages.
func (s *ChatService) shouldCreateTopic(explicit bool, cfg model.ChatConfig, userID, sessionID string) bool {
	if explicit {
		return true
	}
	if !cfg.EnableAutoCreateTopic || cfg.AutoCreateTopicThreshold <= 0 {
		return false
	}
	count, err := s.messageRepo.CountByTopic(userID, sessionID, nil)
	if err != nil {
		return false
	}
	return count >= int64(cfg.AutoCreateTopicThreshold)
}

func (s *ChatService) knowledgeContext(ctx context.Context, userID string, kbIDs []string, query string) string {
	if s.knowledge == nil || len(kbIDs) == 0 {
		return ""
	}
	results, err := s.knowledge.SearchKnowledgeBases(ctx, userID, kbIDs, query, 0)
	if err != nil {
		logger.WithComponent("chat").WithError(err).WithField("knowledge_base_ids", kbIDs).
			Warn("knowledge search failed, answering without context")
		return ""
	}
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Use the following knowledge to answer. If it does not help, answer normally.\n<knowledge>")
	for _, r := range results {
		b.WriteString("\n---\n")
		b.WriteString(r.Chunk.Text)
	}
	b.WriteString("\n---\n</knowledge>")
	return b.String()
}

func (s *ChatService) invalidate(ctx context.Context, sessionID string, topicID *string) {
	if s.historyCache != nil {
		_ = s.historyCache.Invalidate(ctx, sessionID, topicID)
	}
}

func buildPrompt(systemRole string, history []model.Message, input string) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(history)+2)
	if strings.TrimSpace(systemRole) != "" {
		messages = append(messages, ai.ChatMessage{Role: model.RoleSystem, Content: systemRole})
	}
	for _, m := range history {
		// Failed replies carry no useful content for the model.
		if m.Role == model.RoleAssistant && m.Error.Data() != nil && m.Content == "" {
			continue
		}
		role := m.Role
		if role == "" {
			role = model.RoleUser
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: m.Content})
	}
	return append(messages, ai.ChatMessage{Role: model.RoleUser, Content: input})
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

func toMessageError(err error) *model.MessageError {
	var rtErr *ai.AgentRuntimeError
	if errors.As(err, &rtErr) {
		return &model.MessageError{Type: string(rtErr.Type), Message: rtErr.Error()}
	}
	if errors.Is(err, context.Canceled) {
		return &model.MessageError{Type: "Canceled", Message: "generation was canceled"}
	}
	return &model.MessageError{Type: string(ai.ErrorTypeAgentRuntime), Message: err.Error()}
}

func mapRuntimeLookupErr(err error) error {
	if errors.Is(err, ai.ErrProviderDisabled) {
		return fmt.Errorf("%w: %v", ErrProviderDisabled, err)
	}
	return err
}
