package models

import (
	"time"

	"github.com/google/uuid"
)

const taskSnippetLen = 10

type Task struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Content   string
	IsDone    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snippet returns first runes of the content, used in task lists
func (t Task) Snippet() string {
	runes := []rune(t.Content)
	if len(runes) <= taskSnippetLen {
		return t.Content
	}
	return string(runes[:taskSnippetLen])
}
