package repository

import (
	"fmt"
	"testing"
	"time"

	"lobechat-go/internal/model"
	"lobechat-go/internal/testutil"
)

func TestSessionRepository_ListOrdersPinnedThenRecent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewSessionRepository(db)

	base := time.Now().Add(-time.Hour)
	sessions := []model.Session{
		{UserID: "u1", AgentID: "a", Title: "old", UpdatedAt: base},
		{UserID: "u1", AgentID: "a", Title: "new", UpdatedAt: base.Add(10 * time.Minute)},
		{UserID: "u1", AgentID: "a", Title: "pinned", Pinned: true, UpdatedAt: base.Add(-time.Hour)},
		{UserID: "u2", AgentID: "a", Title: "other user"},
	}
	for i := range sessions {
		if err := repo.Create(&sessions[i]); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := repo.ListByUserID("u1")
	if err != nil {
		t.Fatalf("ListByUserID: %v", err)
	}
	var titles []string
	for _, s := range got {
		titles = append(titles, s.Title)
	}
	want := []string{"pinned", "new", "old"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("titles[%d] = %s, want %s", i, titles[i], want[i])
		}
	}
}

func TestSessionRepository_UpdateFieldsBumpsUpdatedAt(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewSessionRepository(db)

	session := model.Session{UserID: "u1", AgentID: "a", Title: "t", UpdatedAt: time.Now().Add(-time.Hour)}
	if err := repo.Create(&session); err != nil {
		t.Fatalf("Create: %v", err)
	}
	before := session.UpdatedAt

	if err := repo.UpdateFields(session.ID, "u1", map[string]interface{}{"title": "renamed"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, err := repo.GetByIDAndUserID(session.ID, "u1")
	if err != nil || got == nil {
		t.Fatalf("GetByIDAndUserID: %v %v", got, err)
	}
	if got.Title != "renamed" {
		t.Errorf("Title = %s, want renamed", got.Title)
	}
	if !got.UpdatedAt.After(before) {
		t.Errorf("UpdatedAt %v not after %v", got.UpdatedAt, before)
	}

	other, err := repo.GetByIDAndUserID(session.ID, "u2")
	if err != nil || other != nil {
		t.Errorf("foreign user lookup = %v, %v; want nil, nil", other, err)
	}
}

func TestSessionRepository_DeleteCascade(t *testing.T) {
	db := testutil.NewDB(t)
	sessions := NewSessionRepository(db)
	topics := NewTopicRepository(db)
	messages := NewMessageRepository(db)
	agents := NewAgentRepository(db)

	session := &model.Session{UserID: "u1", Title: "s"}
	agent := &model.Agent{UserID: "u1", Model: "gpt-4o"}
	if err := sessions.CreateWithAgent(session, agent); err != nil {
		t.Fatalf("CreateWithAgent: %v", err)
	}
	topic := &model.Topic{UserID: "u1", SessionID: session.ID, Title: "topic"}
	if err := topics.Create(topic); err != nil {
		t.Fatalf("Create topic: %v", err)
	}
	for _, tid := range []*string{nil, &topic.ID} {
		if err := messages.Create(&model.Message{UserID: "u1", SessionID: session.ID, TopicID: tid, Role: model.RoleUser, Content: "hi"}); err != nil {
			t.Fatalf("Create message: %v", err)
		}
	}

	if err := sessions.DeleteCascade(session.ID, "u1"); err != nil {
		t.Fatalf("DeleteCascade: %v", err)
	}

	var count int64
	db.Model(&model.Message{}).Count(&count)
	if count != 0 {
		t.Errorf("messages left = %d, want 0", count)
	}
	db.Model(&model.Topic{}).Count(&count)
	if count != 0 {
		t.Errorf("topics left = %d, want 0", count)
	}
	if a, _ := agents.GetByIDAndUserID(agent.ID, "u1"); a != nil {
		t.Error("agent should be deleted with its session")
	}
}

func TestMessageRepository_ListRecentAndTopicScope(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewMessageRepository(db)
	topicID := "tpc_1"

	base := time.Now()
	for i, content := range []string{"m1", "m2", "m3", "m4"} {
		msg := &model.Message{
			UserID:    "u1",
			SessionID: "s1",
			Role:      model.RoleUser,
			Content:   content,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(msg); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := repo.Create(&model.Message{UserID: "u1", SessionID: "s1", TopicID: &topicID, Role: model.RoleUser, Content: "in topic"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	recent, err := repo.ListRecent("u1", "s1", nil, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 2 || recent[0].Content != "m3" || recent[1].Content != "m4" {
		t.Errorf("ListRecent = %+v, want m3, m4", recent)
	}

	count, err := repo.CountByTopic("u1", "s1", &topicID)
	if err != nil || count != 1 {
		t.Errorf("CountByTopic = %d, %v; want 1", count, err)
	}

	if err := repo.MoveDefaultToTopic("u1", "s1", topicID); err != nil {
		t.Fatalf("MoveDefaultToTopic: %v", err)
	}
	count, _ = repo.CountByTopic("u1", "s1", nil)
	if count != 0 {
		t.Errorf("default topic count = %d, want 0", count)
	}
	listed, err := repo.ListByTopic("u1", "s1", &topicID, 0)
	if err != nil || len(listed) != 5 {
		t.Errorf("ListByTopic = %d messages, %v; want 5", len(listed), err)
	}
}

func TestMessageRepository_ListByTopicReturnsNewestWindow(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewMessageRepository(db)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 150; i++ {
		msg := &model.Message{
			UserID:    "u1",
			SessionID: "s1",
			Role:      model.RoleUser,
			Content:   fmt.Sprintf("m%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(msg); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	listed, err := repo.ListByTopic("u1", "s1", nil, 0)
	if err != nil {
		t.Fatalf("ListByTopic: %v", err)
	}
	if len(listed) != 100 {
		t.Fatalf("len = %d, want 100", len(listed))
	}
	if listed[0].Content != "m50" || listed[99].Content != "m149" {
		t.Errorf("window = %s..%s, want m50..m149", listed[0].Content, listed[99].Content)
	}

	recent, err := repo.ListRecent("u1", "s1", nil, 5)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 5 || recent[4].Content != "m149" {
		t.Errorf("ListRecent last = %+v, want m149", recent)
	}
}

func TestMessageRepository_ScopedToUser(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewMessageRepository(db)
	sessions := NewSessionRepository(db)

	if err := repo.Create(&model.Message{UserID: "u1", SessionID: "s1", Role: model.RoleUser, Content: "x"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if n, _ := repo.CountByTopic("u2", "s1", nil); n != 0 {
		t.Errorf("CountByTopic for other user = %d, want 0", n)
	}
	if got, _ := repo.ListRecent("u2", "s1", nil, 10); len(got) != 0 {
		t.Errorf("ListRecent for other user = %d messages, want 0", len(got))
	}
	if err := repo.MoveDefaultToTopic("u2", "s1", "tpc_x"); err != nil {
		t.Fatalf("MoveDefaultToTopic: %v", err)
	}
	if n, _ := repo.CountByTopic("u1", "s1", nil); n != 1 {
		t.Errorf("default topic count after other user's move = %d, want 1", n)
	}

	session := &model.Session{UserID: "u1", AgentID: "agt_1", Title: "s"}
	if err := sessions.Create(session); err != nil {
		t.Fatalf("Create session: %v", err)
	}
	later := time.Now().Add(time.Hour)
	if err := sessions.Touch(session.ID, "u2", later); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	got, _ := sessions.GetByIDAndUserID(session.ID, "u1")
	if got == nil || got.UpdatedAt.Equal(later) {
		t.Errorf("session touched by other user: %+v", got)
	}
}

func TestTopicRepository_DeleteCascadeScopedToUser(t *testing.T) {
	db := testutil.NewDB(t)
	topics := NewTopicRepository(db)
	messages := NewMessageRepository(db)

	mine := &model.Topic{UserID: "u1", SessionID: "s1", Title: "mine"}
	theirs := &model.Topic{UserID: "u2", SessionID: "s2", Title: "theirs"}
	for _, tp := range []*model.Topic{mine, theirs} {
		if err := topics.Create(tp); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := messages.Create(&model.Message{UserID: "u1", SessionID: "s1", TopicID: &mine.ID, Role: model.RoleUser, Content: "x"}); err != nil {
		t.Fatalf("Create message: %v", err)
	}

	deleted, err := topics.DeleteCascade("u1", []string{mine.ID, theirs.ID})
	if err != nil {
		t.Fatalf("DeleteCascade: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if got, _ := topics.GetByIDAndUserID(theirs.ID, "u2"); got == nil {
		t.Error("other user's topic must survive")
	}
	if n, _ := messages.CountByTopic("u1", "s1", &mine.ID); n != 0 {
		t.Errorf("messages left in deleted topic = %d", n)
	}
}

func TestKnowledgeBaseRepository_Links(t *testing.T) {
	db := testutil.NewDB(t)
	kbs := NewKnowledgeBaseRepository(db)
	files := NewFileRepository(db)
	chunks := NewChunkRepository(db)

	kb := &model.KnowledgeBase{UserID: "u1", Name: "docs"}
	if err := kbs.Create(kb); err != nil {
		t.Fatalf("Create kb: %v", err)
	}
	file := &model.File{UserID: "u1", Name: "a.txt", Size: 3, StorageKey: "k"}
	if err := files.Create(file); err != nil {
		t.Fatalf("Create file: %v", err)
	}
	if err := kbs.AddFiles(kb.ID, "u1", []string{file.ID}); err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	if err := kbs.AddFiles(kb.ID, "u1", []string{file.ID}); err != nil {
		t.Fatalf("AddFiles twice should be idempotent: %v", err)
	}
	ids, err := kbs.ListFileIDs("u1", []string{kb.ID})
	if err != nil || len(ids) != 1 || ids[0] != file.ID {
		t.Fatalf("ListFileIDs = %v, %v", ids, err)
	}

	if err := chunks.ReplaceForFile(file.ID, []model.Chunk{{UserID: "u1", FileID: file.ID, Index: 0, Text: "abc"}}); err != nil {
		t.Fatalf("ReplaceForFile: %v", err)
	}
	if err := files.DeleteCascade(file.ID, "u1"); err != nil {
		t.Fatalf("DeleteCascade file: %v", err)
	}
	ids, _ = kbs.ListFileIDs("u1", []string{kb.ID})
	if len(ids) != 0 {
		t.Errorf("links left after file delete = %v", ids)
	}
	left, _ := chunks.ListByFileIDs([]string{file.ID})
	if len(left) != 0 {
		t.Errorf("chunks left after file delete = %d", len(left))
	}
}

func TestAPIKeyRepository_GetByHash(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAPIKeyRepository(db)

	key := &model.APIKey{UserID: "u1", Name: "ci", KeyPrefix: "lb-abcd", KeyHash: "h1", Enabled: true}
	if err := repo.Create(key); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByHash("h1")
	if err != nil || got == nil || got.ID != key.ID {
		t.Fatalf("GetByHash = %v, %v", got, err)
	}
	if err := repo.UpdateFields(key.ID, "u1", map[string]interface{}{"enabled": false}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, _ = repo.GetByHash("h1")
	if got.Enabled {
		t.Error("key should be disabled")
	}
	missing, err := repo.GetByHash("nope")
	if err != nil || missing != nil {
		t.Errorf("GetByHash(nope) = %v, %v; want nil, nil", missing, err)
	}
}
