package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"lobechat-go/internal/ai"
	"lobechat-go/internal/fileparse"
	"lobechat-go/internal/model"
	"lobechat-go/internal/repository"
)

const embeddingBatchSize = 10

var (
	ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")
	ErrFileNotFound          = errors.New("file not found")
	ErrEmbeddingUnavailable  = errors.New("embedding provider unavailable")
)

type KnowledgeOptions struct {
	EmbeddingProvider string
	EmbeddingModel    string
	ChunkSize         int
	ChunkOverlap      int
	TopK              int
}

type KnowledgeService struct {
	kbRepo    *repository.KnowledgeBaseRepository
	fileRepo  *repository.FileRepository
	chunkRepo *repository.ChunkRepository
	store     ObjectStore
	parser    *fileparse.Parser
	runtimes  RuntimeProvider
	opts      KnowledgeOptions
}

func NewKnowledgeService(
	kbRepo *repository.KnowledgeBaseRepository,
	fileRepo *repository.FileRepository,
	chunkRepo *repository.ChunkRepository,
	store ObjectStore,
	runtimes RuntimeProvider,
	opts KnowledgeOptions,
) *KnowledgeService {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 512
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = 0
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	return &KnowledgeService{
		kbRepo:    kbRepo,
		fileRepo:  fileRepo,
		chunkRepo: chunkRepo,
		store:     store,
		parser:    fileparse.New(),
		runtimes:  runtimes,
		opts:      opts,
	}
}

type CreateKnowledgeBaseInput struct {
	UserID      string
	Name        string
	Description string
}

// SearchResult is a chunk ranked by cosine similarity to the query.
type SearchResult struct {
	Chunk model.Chunk `json:"chunk"`
	Score float64     `json:"score"`
}

func (s *KnowledgeService) Create(input CreateKnowledgeBaseInput) (*model.KnowledgeBase, error) {
	name := strings.TrimSpace(input.Name)
	if input.UserID == "" || name == "" {
		return nil, ErrInvalidInput
	}
	kb := &model.KnowledgeBase{UserID: input.UserID, Name: name, Description: strings.TrimSpace(input.Description)}
	if err := s.kbRepo.Create(kb); err != nil {
		return nil, err
	}
	return kb, nil
}

func (s *KnowledgeService) List(userID string) ([]model.KnowledgeBase, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.kbRepo.ListByUserID(userID)
}

func (s *KnowledgeService) Delete(userID, kbID string) error {
	if _, err := s.mustGet(userID, kbID); err != nil {
		return err
	}
	return s.kbRepo.DeleteCascade(kbID, userID)
}

// AddFiles links files to a knowledge base. Every file must belong to the user.
func (s *KnowledgeService) AddFiles(userID, kbID string, fileIDs []string) error {
	if _, err := s.mustGet(userID, kbID); err != nil {
		return err
	}
	fileIDs = dedupe(fileIDs)
	if len(fileIDs) == 0 {
		return ErrInvalidInput
	}
	owned, err := s.fileRepo.ListIDsByUserID(userID, fileIDs)
	if err != nil {
		return err
	}
	if len(owned) != len(fileIDs) {
		return ErrFileNotFound
	}
	return s.kbRepo.AddFiles(kbID, userID, fileIDs)
}

func (s *KnowledgeService) RemoveFile(userID, kbID, fileID string) error {
	if _, err := s.mustGet(userID, kbID); err != nil {
		return err
	}
	return s.kbRepo.RemoveFile(kbID, userID, fileID)
}

// ProcessFile extracts, chunks and embeds a stored file. The file's chunk
// status records the outcome either way.
func (s *KnowledgeService) ProcessFile(ctx context.Context, userID, fileID string) error {
	file, err := s.fileRepo.GetByIDAndUserID(fileID, userID)
	if err != nil {
		return err
	}
	if file == nil {
		return ErrFileNotFound
	}
	if err := s.fileRepo.UpdateChunkStatus(file.ID, model.ChunkStatusProcessing, 0, ""); err != nil {
		return err
	}

	count, procErr := s.process(ctx, file)
	if procErr != nil {
		if err := s.fileRepo.UpdateChunkStatus(file.ID, model.ChunkStatusError, 0, procErr.Error()); err != nil {
			return errors.Join(procErr, err)
		}
		return procErr
	}
	return s.fileRepo.UpdateChunkStatus(file.ID, model.ChunkStatusSuccess, count, "")
}

func (s *KnowledgeService) process(ctx context.Context, file *model.File) (int, error) {
	rc, err := s.store.Download(ctx, file.StorageKey)
	if err != nil {
		return 0, fmt.Errorf("download file failed: %w", err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return 0, fmt.Errorf("read file failed: %w", err)
	}

	text, _, err := s.parser.Extract(data)
	if err != nil {
		return 0, err
	}
	pieces := chunkText(text, s.opts.ChunkSize, s.opts.ChunkOverlap)
	if len(pieces) == 0 {
		return 0, s.chunkRepo.ReplaceForFile(file.ID, nil)
	}

	vectors, err := s.embed(ctx, pieces)
	if err != nil {
		return 0, err
	}
	chunks := make([]model.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = model.Chunk{UserID: file.UserID, FileID: file.ID, Index: i, Text: piece}
		chunks[i].SetEmbedding(vectors[i])
	}
	if err := s.chunkRepo.ReplaceForFile(file.ID, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (s *KnowledgeService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	rt, err := s.runtimes.Runtime(s.opts.EmbeddingProvider, ai.KeyOverride{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embeddingBatchSize {
		end := min(start+embeddingBatchSize, len(texts))
		vecs, err := rt.Embeddings(ctx, ai.EmbeddingsPayload{Model: s.opts.EmbeddingModel, Input: texts[start:end]})
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// SearchKnowledgeBases ranks the chunks of every file in kbIDs against query.
// topK <= 0 uses the configured default.
func (s *KnowledgeService) SearchKnowledgeBases(ctx context.Context, userID string, kbIDs []string, query string, topK int) ([]SearchResult, error) {
	kbIDs = dedupe(kbIDs)
	if userID == "" || strings.TrimSpace(query) == "" {
		return nil, ErrInvalidInput
	}
	if len(kbIDs) == 0 {
		return nil, nil
	}
	fileIDs, err := s.kbRepo.ListFileIDs(userID, kbIDs)
	if err != nil {
		return nil, err
	}
	return s.searchFiles(ctx, fileIDs, query, topK)
}

type SemanticSearchInput struct {
	UserID           string
	KnowledgeBaseIDs []string
	FileIDs          []string
	Query            string
	TopK             int
}

// SemanticSearch ranks the chunks of the given files and of the files in the
// given knowledge bases. Every id must belong to the user.
func (s *KnowledgeService) SemanticSearch(ctx context.Context, input SemanticSearchInput) ([]SearchResult, error) {
	kbIDs := dedupe(input.KnowledgeBaseIDs)
	fileIDs := dedupe(input.FileIDs)
	if input.UserID == "" || strings.TrimSpace(input.Query) == "" || len(kbIDs)+len(fileIDs) == 0 {
		return nil, ErrInvalidInput
	}
	for _, id := range kbIDs {
		if _, err := s.mustGet(input.UserID, id); err != nil {
			return nil, err
		}
	}
	if len(fileIDs) > 0 {
		owned, err := s.fileRepo.ListIDsByUserID(input.UserID, fileIDs)
		if err != nil {
			return nil, err
		}
		if len(owned) != len(fileIDs) {
			return nil, ErrFileNotFound
		}
	}
	if len(kbIDs) > 0 {
		kbFiles, err := s.kbRepo.ListFileIDs(input.UserID, kbIDs)
		if err != nil {
			return nil, err
		}
		fileIDs = dedupe(append(fileIDs, kbFiles...))
	}
	return s.searchFiles(ctx, fileIDs, input.Query, input.TopK)
}

func (s *KnowledgeService) searchFiles(ctx context.Context, fileIDs []string, query string, topK int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if topK <= 0 {
		topK = s.opts.TopK
	}
	if len(fileIDs) == 0 {
		return nil, nil
	}
	chunks, err := s.chunkRepo.ListByFileIDs(fileIDs)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	vecs, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return rankChunks(vecs[0], chunks, topK), nil
}

func (s *KnowledgeService) mustGet(userID, kbID string) (*model.KnowledgeBase, error) {
	if userID == "" || kbID == "" {
		return nil, ErrInvalidInput
	}
	kb, err := s.kbRepo.GetByIDAndUserID(kbID, userID)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, ErrKnowledgeBaseNotFound
	}
	return kb, nil
}

func rankChunks(query []float32, chunks []model.Chunk, topK int) []SearchResult {
	results := make([]SearchResult, 0, len(chunks))
	for _, c := range chunks {
		vec := c.EmbeddingVector()
		if len(vec) != len(query) {
			continue
		}
		results = append(results, SearchResult{Chunk: c, Score: cosine(query, vec)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// chunkText splits text into windows of size runes that overlap by overlap
// runes. Blank windows are dropped.
func chunkText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	step := size - overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
