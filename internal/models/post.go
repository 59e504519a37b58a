package models

import (
	"strings"
	"time"
)

// Comment is one of the existing top comments on a post.
type Comment struct {
	ID       string `json:"id"`
	FullName string `json:"fullname"`
	Author   string `json:"author"`
	Body     string `json:"body"`
}

// CandidatePost is a post fetched during a run. It is never persisted.
type CandidatePost struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullname"`
	Subreddit   string    `json:"subreddit"`
	Title       string    `json:"title"`
	Body        string    `json:"selftext"`
	Author      string    `json:"author"`
	URL         string    `json:"url"`
	TopComments []Comment `json:"top_comments"`
	CreatedAt   time.Time `json:"created_at"`
}

// Text is the title and body joined, the input for topicality matching.
func (p CandidatePost) Text() string {
	return strings.TrimSpace(p.Title + "\n" + p.Body)
}

// Validate reports a ValidationError for posts the bot cannot act on.
func (p CandidatePost) Validate() error {
	if p.ID == "" {
		return &ValidationError{Field: "id", Msg: "post has no identifier"}
	}
	if strings.TrimSpace(p.Title) == "" && strings.TrimSpace(p.Body) == "" {
		return &ValidationError{Field: "text", Msg: "post has neither title nor body"}
	}
	return nil
}
