package app

import (
	"context"
	"errors"
	"strings"

	"lobechat-go/internal/ai"
	"lobechat-go/internal/logger"
	"lobechat-go/internal/model"
	"lobechat-go/internal/repository"
)

const (
	defaultTopicTitle   = "New Topic"
	topicTitleMaxRunes  = 20
	summaryHistoryLimit = 10
)

var ErrTopicNotFound = errors.New("topic not found")

type TopicService struct {
	topicRepo    *repository.TopicRepository
	sessionRepo  *repository.SessionRepository
	agentRepo    *repository.AgentRepository
	messageRepo  *repository.MessageRepository
	historyCache HistoryCache
	runtimes     RuntimeProvider
}

func NewTopicService(
	topicRepo *repository.TopicRepository,
	sessionRepo *repository.SessionRepository,
	agentRepo *repository.AgentRepository,
	messageRepo *repository.MessageRepository,
	historyCache HistoryCache,
	runtimes RuntimeProvider,
) *TopicService {
	return &TopicService{
		topicRepo:    topicRepo,
		sessionRepo:  sessionRepo,
		agentRepo:    agentRepo,
		messageRepo:  messageRepo,
		historyCache: historyCache,
		runtimes:     runtimes,
	}
}

type CreateTopicInput struct {
	UserID    string
	SessionID string
	Title     string
	// MoveDefaultMessages moves the session's unfiled messages into the new topic.
	MoveDefaultMessages bool
}

type UpdateTopicInput struct {
	UserID   string
	TopicID  string
	Title    *string
	Favorite *bool
}

func (s *TopicService) Create(ctx context.Context, input CreateTopicInput) (*model.Topic, error) {
	if input.UserID == "" || input.SessionID == "" {
		return nil, ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByIDAndUserID(input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultTopicTitle
	}
	topic := &model.Topic{UserID: input.UserID, SessionID: input.SessionID, Title: title}
	if err := s.topicRepo.Create(topic); err != nil {
		return nil, err
	}
	if input.MoveDefaultMessages {
		if err := s.messageRepo.MoveDefaultToTopic(input.UserID, input.SessionID, topic.ID); err != nil {
			return nil, err
		}
		s.invalidate(ctx, input.SessionID, nil)
	}
	if err := s.sessionRepo.Touch(input.SessionID, input.UserID, topic.CreatedAt); err != nil {
		logger.WithComponent("topic").WithError(err).WithField("session_id", input.SessionID).Warn("touch session failed")
	}
	return topic, nil
}

func (s *TopicService) List(userID, sessionID string) ([]model.Topic, error) {
	if userID == "" || sessionID == "" {
		return nil, ErrInvalidInput
	}
	return s.topicRepo.ListBySessionID(userID, sessionID)
}

func (s *TopicService) Search(userID, keyword, sessionID string) ([]model.Topic, error) {
	keyword = strings.TrimSpace(keyword)
	if userID == "" || keyword == "" {
		return nil, ErrInvalidInput
	}
	return s.topicRepo.Search(userID, keyword, sessionID)
}

func (s *TopicService) Update(input UpdateTopicInput) (*model.Topic, error) {
	if _, err := s.mustGet(input.UserID, input.TopicID); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrInvalidInput
		}
		fields["title"] = title
	}
	if input.Favorite != nil {
		fields["favorite"] = *input.Favorite
	}
	if err := s.topicRepo.UpdateFields(input.TopicID, input.UserID, fields); err != nil {
		return nil, err
	}
	return s.mustGet(input.UserID, input.TopicID)
}

func (s *TopicService) Delete(ctx context.Context, userID, topicID string) error {
	topic, err := s.mustGet(userID, topicID)
	if err != nil {
		return err
	}
	if _, err := s.topicRepo.DeleteCascade(userID, []string{topicID}); err != nil {
		return err
	}
	s.invalidate(ctx, topic.SessionID, &topic.ID)
	return nil
}

// BatchDelete deletes the user's topics among ids and returns how many were removed.
func (s *TopicService) BatchDelete(ctx context.Context, userID string, ids []string) (int64, error) {
	ids = dedupe(ids)
	if userID == "" || len(ids) == 0 {
		return 0, ErrInvalidInput
	}
	topics := make([]*model.Topic, 0, len(ids))
	for _, id := range ids {
		topic, err := s.topicRepo.GetByIDAndUserID(id, userID)
		if err != nil {
			return 0, err
		}
		if topic != nil {
			topics = append(topics, topic)
		}
	}
	deleted, err := s.topicRepo.DeleteCascade(userID, ids)
	if err != nil {
		return 0, err
	}
	for _, t := range topics {
		s.invalidate(ctx, t.SessionID, &t.ID)
	}
	return deleted, nil
}

// Summarize asks the session's model for a short title built from the latest
// messages of the topic and stores it.
func (s *TopicService) Summarize(ctx context.Context, userID, topicID string, override ai.KeyOverride) (*model.Topic, error) {
	topic, err := s.mustGet(userID, topicID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.ListRecent(userID, topic.SessionID, &topic.ID, summaryHistoryLimit)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, ErrMessageEmpty
	}

	provider, modelID := s.runtimes.Defaults()
	if session, err := s.sessionRepo.GetByIDAndUserID(topic.SessionID, userID); err == nil && session != nil {
		if agent, err := s.agentRepo.GetByIDAndUserID(session.AgentID, userID); err == nil && agent != nil {
			if agent.Provider != "" {
				provider = agent.Provider
			}
			if agent.Model != "" {
				modelID = agent.Model
			}
		}
	}

	rt, err := s.runtimes.Runtime(provider, override)
	if err != nil {
		return nil, mapRuntimeLookupErr(err)
	}
	temp := float32(0.2)
	result, err := rt.Chat(ctx, ai.ChatPayload{
		Model:       modelID,
		Messages:    buildSummaryPrompt(messages),
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	title := cleanTitle(result.Content)
	if title == "" {
		title = defaultTopicTitle
	}
	if err := s.topicRepo.UpdateFields(topic.ID, userID, map[string]interface{}{"title": title}); err != nil {
		return nil, err
	}
	topic.Title = title
	return topic, nil
}

func (s *TopicService) mustGet(userID, topicID string) (*model.Topic, error) {
	if userID == "" || topicID == "" {
		return nil, ErrInvalidInput
	}
	topic, err := s.topicRepo.GetByIDAndUserID(topicID, userID)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, ErrTopicNotFound
	}
	return topic, nil
}

func (s *TopicService) invalidate(ctx context.Context, sessionID string, topicID *string) {
	if s.historyCache != nil {
		_ = s.historyCache.Invalidate(ctx, sessionID, topicID)
	}
}

func buildSummaryPrompt(messages []model.Message) []ai.ChatMessage {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return []ai.ChatMessage{
		{
			Role: model.RoleSystem,
			Content: "You name conversations. Reply with a title of at most 10 words that " +
				"summarizes the conversation, in the conversation's language. " +
				"No quotes, no punctuation at the end, no explanation.",
		},
		{Role: model.RoleUser, Content: b.String()},
	}
}

// cleanTitle keeps the first line, strips quoting and trailing punctuation and
// caps the result at topicTitleMaxRunes.
func cleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.Trim(title, " \"'`“”‘’《》「」*#")
	title = strings.TrimRight(title, ".。!！?？,，;；:：")
	return strings.TrimSpace(truncateRunes(title, topicTitleMaxRunes))
}
