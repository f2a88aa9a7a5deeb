package model

import "time"

// DefaultNoteCategory is applied when a note is logged without a category.
const DefaultNoteCategory = "Note"

// Note is a free-text log entry.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}
