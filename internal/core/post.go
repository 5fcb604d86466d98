package core

import (
	"time"

	"github.com/book-expert/events"
)

// Status is the lifecycle marker of a post.
type Status string

// Post lifecycle states. PROCESSING is the only non-terminal state.
const (
	StatusProcessing Status = "PROCESSING"
	StatusUpdated    Status = "UPDATED"
	StatusFailed     Status = "FAILED"
)

// Post is a user-submitted text tracked through its conversion to audio.
type Post struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Text      string    `json:"text"`
	Voice     string    `json:"voice"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Converted reports whether the post already carries a published audio URL.
func (p *Post) Converted() bool {
	return p.Status == StatusUpdated && p.URL != ""
}

// PostCreatedEvent is published on the notification subject after a post is saved.
type PostCreatedEvent struct {
	Header events.EventHeader `json:"header"`
	PostID string             `json:"post_id"`
}
