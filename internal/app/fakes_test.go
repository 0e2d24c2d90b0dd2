package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"lobechat-go/internal/ai"
	"lobechat-go/internal/model"
	"lobechat-go/internal/repository"
	"lobechat-go/internal/testutil"
)

type fakeRuntime struct {
	reply    string
	chunks   []string
	err      error
	embed    func(text string) []float32
	models   []ai.ModelCard
	payloads []ai.ChatPayload
	embedded int
}

func (f *fakeRuntime) Chat(_ context.Context, payload ai.ChatPayload) (*ai.ChatResult, error) {
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return nil, f.err
	}
	return &ai.ChatResult{Content: f.reply, Usage: ai.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}}, nil
}

func (f *fakeRuntime) ChatStream(_ context.Context, payload ai.ChatPayload, onChunk func(string) error) (*ai.ChatResult, error) {
	f.payloads = append(f.payloads, payload)
	var full strings.Builder
	for _, c := range f.chunks {
		full.WriteString(c)
		if err := onChunk(c); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ai.ChatResult{Content: full.String()}, nil
}

func (f *fakeRuntime) Embeddings(_ context.Context, payload ai.EmbeddingsPayload) ([][]float32, error) {
	out := make([][]float32, len(payload.Input))
	for i, text := range payload.Input {
		out[i] = f.embed(text)
	}
	f.embedded += len(payload.Input)
	return out, nil
}

func (f *fakeRuntime) Models(context.Context) ([]ai.ModelCard, error) {
	return f.models, nil
}

type fakeRuntimes struct {
	rt        *fakeRuntime
	err       error
	requested []string
	overrides []ai.KeyOverride
}

func (f *fakeRuntimes) Runtime(provider string, override ai.KeyOverride) (ai.Runtime, error) {
	f.requested = append(f.requested, provider)
	f.overrides = append(f.overrides, override)
	if f.err != nil {
		return nil, f.err
	}
	return f.rt, nil
}

func (f *fakeRuntimes) Defaults() (string, string) { return "openai", "gpt-4o-mini" }

func (f *fakeRuntimes) Providers() []ai.ProviderStatus {
	return []ai.ProviderStatus{{ID: "openai", Enabled: true}, {ID: "ollama", Enabled: false}}
}

// syncPublisher writes messages straight to the repository, standing in for
// the persist worker. Other jobs are recorded.
type syncPublisher struct {
	messages *repository.MessageRepository
	jobs     []any
	err      error
}

func (p *syncPublisher) Publish(_ context.Context, v any) error {
	if p.err != nil {
		return p.err
	}
	if m, ok := v.(model.Message); ok && p.messages != nil {
		return p.messages.Create(&m)
	}
	p.jobs = append(p.jobs, v)
	return nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStore) PresignedURL(_ context.Context, key string) (string, error) {
	return "https://files.test/" + key, nil
}

type fixture struct {
	sessionRepo *repository.SessionRepository
	agentRepo   *repository.AgentRepository
	topicRepo   *repository.TopicRepository
	messageRepo *repository.MessageRepository
	fileRepo    *repository.FileRepository
	chunkRepo   *repository.ChunkRepository
	kbRepo      *repository.KnowledgeBaseRepository
	userRepo    *repository.UserRepository
	apiKeyRepo  *repository.APIKeyRepository
	runtime     *fakeRuntime
	runtimes    *fakeRuntimes
	publisher   *syncPublisher
	store       *memStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	rt := &fakeRuntime{reply: "hi there"}
	f := &fixture{
		sessionRepo: repository.NewSessionRepository(db),
		agentRepo:   repository.NewAgentRepository(db),
		topicRepo:   repository.NewTopicRepository(db),
		messageRepo: repository.NewMessageRepository(db),
		fileRepo:    repository.NewFileRepository(db),
		chunkRepo:   repository.NewChunkRepository(db),
		kbRepo:      repository.NewKnowledgeBaseRepository(db),
		userRepo:    repository.NewUserRepository(db),
		apiKeyRepo:  repository.NewAPIKeyRepository(db),
		runtime:     rt,
		runtimes:    &fakeRuntimes{rt: rt},
		store:       newMemStore(),
	}
	f.publisher = &syncPublisher{messages: f.messageRepo}
	return f
}

func (f *fixture) sessions() *SessionService {
	return NewSessionService(f.sessionRepo, f.agentRepo, f.kbRepo, nil, f.runtimes)
}

func (f *fixture) topics() *TopicService {
	return NewTopicService(f.topicRepo, f.sessionRepo, f.agentRepo, f.messageRepo, nil, f.runtimes)
}

func (f *fixture) knowledge() *KnowledgeService {
	return NewKnowledgeService(f.kbRepo, f.fileRepo, f.chunkRepo, f.store, f.runtimes, KnowledgeOptions{
		EmbeddingProvider: "openai",
		EmbeddingModel:    "text-embedding-3-small",
		ChunkSize:         40,
		ChunkOverlap:      0,
		TopK:              2,
	})
}

func (f *fixture) chat(knowledge KnowledgeSearcher) *ChatService {
	return NewChatService(ChatServiceDeps{
		SessionRepo: f.sessionRepo,
		AgentRepo:   f.agentRepo,
		TopicRepo:   f.topicRepo,
		MessageRepo: f.messageRepo,
		Publisher:   f.publisher,
		Runtimes:    f.runtimes,
		Knowledge:   knowledge,
		MaxContext:  20,
	})
}

func (f *fixture) newSession(t *testing.T, userID string, agent AgentConfigInput) *model.SessionWithAgent {
	t.Helper()
	s, err := f.sessions().Create(CreateSessionInput{UserID: userID, Title: "chat", Agent: agent})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}
