package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lobechat-go/internal/ai"
	"lobechat-go/internal/model"
	"lobechat-go/internal/repository"
)

const defaultSessionTitle = "New Session"

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrProviderDisabled = errors.New("provider is not enabled")
)

type SessionService struct {
	sessionRepo  *repository.SessionRepository
	agentRepo    *repository.AgentRepository
	kbRepo       *repository.KnowledgeBaseRepository
	historyCache HistoryCache
	runtimes     RuntimeProvider
}

func NewSessionService(
	sessionRepo *repository.SessionRepository,
	agentRepo *repository.AgentRepository,
	kbRepo *repository.KnowledgeBaseRepository,
	historyCache HistoryCache,
	runtimes RuntimeProvider,
) *SessionService {
	return &SessionService{
		sessionRepo:  sessionRepo,
		agentRepo:    agentRepo,
		kbRepo:       kbRepo,
		historyCache: historyCache,
		runtimes:     runtimes,
	}
}

// AgentConfigInput is a partial agent update; nil fields are left untouched.
type AgentConfigInput struct {
	SystemRole       *string
	Provider         *string
	Model            *string
	Params           *model.AgentParams
	ChatConfig       *model.ChatConfig
	KnowledgeBaseIDs *[]string
}

type CreateSessionInput struct {
	UserID          string
	Title           string
	Description     string
	Avatar          string
	BackgroundColor string
	Agent           AgentConfigInput
}

type UpdateSessionInput struct {
	UserID          string
	SessionID       string
	Title           *string
	Description     *string
	Avatar          *string
	BackgroundColor *string
	Pinned          *bool
}

func (s *SessionService) Create(input CreateSessionInput) (*model.SessionWithAgent, error) {
	if input.UserID == "" {
		return nil, ErrInvalidInput
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultSessionTitle
	}

	provider, modelID := s.runtimes.Defaults()
	agent := &model.Agent{
		UserID:     input.UserID,
		Provider:   provider,
		Model:      modelID,
		ChatConfig: datatypesJSON(model.DefaultChatConfig()),
	}
	if err := s.applyAgentConfig(input.UserID, agent, input.Agent); err != nil {
		return nil, err
	}

	session := &model.Session{
		UserID:          input.UserID,
		Title:           title,
		Description:     strings.TrimSpace(input.Description),
		Avatar:          strings.TrimSpace(input.Avatar),
		BackgroundColor: strings.TrimSpace(input.BackgroundColor),
	}
	if err := s.sessionRepo.CreateWithAgent(session, agent); err != nil {
		return nil, err
	}
	return &model.SessionWithAgent{Session: *session, Agent: *agent}, nil
}

func (s *SessionService) List(userID string) ([]model.Session, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListByUserID(userID)
}

func (s *SessionService) Search(userID, keyword string) ([]model.Session, error) {
	keyword = strings.TrimSpace(keyword)
	if userID == "" || keyword == "" {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.Search(userID, keyword)
}

func (s *SessionService) Get(userID, sessionID string) (*model.SessionWithAgent, error) {
	session, err := s.mustGet(userID, sessionID)
	if err != nil {
		return nil, err
	}
	agent, err := s.agentRepo.GetByIDAndUserID(session.AgentID, userID)
	if err != nil {
		return nil, err
	}
	out := &model.SessionWithAgent{Session: *session}
	if agent != nil {
		out.Agent = *agent
	}
	return out, nil
}

func (s *SessionService) UpdateMeta(input UpdateSessionInput) (*model.Session, error) {
	if _, err := s.mustGet(input.UserID, input.SessionID); err != nil {
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
	if input.Description != nil {
		fields["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Avatar != nil {
		fields["avatar"] = strings.TrimSpace(*input.Avatar)
	}
	if input.BackgroundColor != nil {
		fields["background_color"] = strings.TrimSpace(*input.BackgroundColor)
	}
	if input.Pinned != nil {
		fields["pinned"] = *input.Pinned
	}
	if err := s.sessionRepo.UpdateFields(input.SessionID, input.UserID, fields); err != nil {
		return nil, err
	}
	return s.mustGet(input.UserID, input.SessionID)
}

// UpdateAgentConfig changes the session's agent and bumps the session.
func (s *SessionService) UpdateAgentConfig(userID, sessionID string, input AgentConfigInput) (*model.Agent, error) {
	session, err := s.mustGet(userID, sessionID)
	if err != nil {
		return nil, err
	}
	agent, err := s.agentRepo.GetByIDAndUserID(session.AgentID, userID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, ErrSessionNotFound
	}
	if err := s.applyAgentConfig(userID, agent, input); err != nil {
		return nil, err
	}
	if err := s.agentRepo.Save(agent); err != nil {
		return nil, err
	}
	if err := s.sessionRepo.UpdateFields(sessionID, userID, nil); err != nil {
		return nil, err
	}
	return agent, nil
}

// Clone copies the session and its agent. Topics and messages are not copied.
func (s *SessionService) Clone(userID, sessionID string) (*model.SessionWithAgent, error) {
	src, err := s.Get(userID, sessionID)
	if err != nil {
		return nil, err
	}

	agent := model.Agent{
		UserID:           userID,
		SystemRole:       src.Agent.SystemRole,
		Provider:         src.Agent.Provider,
		Model:            src.Agent.Model,
		Params:           src.Agent.Params,
		ChatConfig:       src.Agent.ChatConfig,
		KnowledgeBaseIDs: src.Agent.KnowledgeBaseIDs,
	}
	session := model.Session{
		UserID:          userID,
		Title:           src.Title + " (Copy)",
		Description:     src.Description,
		Avatar:          src.Avatar,
		BackgroundColor: src.BackgroundColor,
	}

	if err := s.sessionRepo.CreateWithAgent(&session, &agent); err != nil {
		return nil, err
	}
	return &model.SessionWithAgent{Session: session, Agent: agent}, nil
}

func (s *SessionService) Delete(ctx context.Context, userID, sessionID string) error {
	if _, err := s.mustGet(userID, sessionID); err != nil {
		return err
	}
	if err := s.sessionRepo.DeleteCascade(sessionID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteSession(ctx, sessionID)
	}
	return nil
}

func (s *SessionService) mustGet(userID, sessionID string) (*model.Session, error) {
	if userID == "" || sessionID == "" {
		return nil, ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionService) applyAgentConfig(userID string, agent *model.Agent, input AgentConfigInput) error {
	if input.SystemRole != nil {
		agent.SystemRole = *input.SystemRole
	}
	if input.Provider != nil {
		provider := strings.TrimSpace(*input.Provider)
		if !ai.Supported(provider) {
			return fmt.Errorf("%w: %s", ErrProviderDisabled, provider)
		}
		agent.Provider = provider
	}
	if input.Model != nil {
		modelID := strings.TrimSpace(*input.Model)
		if modelID == "" {
			return ErrInvalidInput
		}
		agent.Model = modelID
	}
	if input.Params != nil {
		agent.Params = datatypesJSON(*input.Params)
	}
	if input.ChatConfig != nil {
		cfg := *input.ChatConfig
		if cfg.HistoryCount < 0 || cfg.AutoCreateTopicThreshold < 0 {
			return ErrInvalidInput
		}
		agent.ChatConfig = datatypesJSON(cfg)
	}
	if input.KnowledgeBaseIDs != nil {
		ids := dedupe(*input.KnowledgeBaseIDs)
		for _, id := range ids {
			kb, err := s.kbRepo.GetByIDAndUserID(id, userID)
			if err != nil {
				return err
			}
			if kb == nil {
				return fmt.Errorf("%w: %s", ErrKnowledgeBaseNotFound, id)
			}
		}
		agent.KnowledgeBaseIDs = ids
	}
	return nil
}
