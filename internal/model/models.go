package model

// Models lists every table for auto migration.
func Models() []interface{} {
	return []interface{}{
		&User{}, &Agent{}, &Session{}, &Topic{}, &Message{},
		&File{}, &Chunk{}, &KnowledgeBase{}, &KnowledgeBaseFile{}, &APIKey{},
	}
}
