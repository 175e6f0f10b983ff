// Package models holds the wire types shared by the API server and the client.
// JSON names follow the backend's snake_case contract.
package models

import (
	"fmt"
	"time"
)

type Guru struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ThreadsHandle string    `json:"threads_handle"`
	AvatarURL     *string   `json:"avatar_url,omitempty"`
	Bio           *string   `json:"bio,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type GuruPost struct {
	ID         string    `json:"id"`
	GuruID     string    `json:"guru_id"`
	Guru       *Guru     `json:"guru,omitempty"`
	Content    string    `json:"content"`
	ThreadsURL *string   `json:"threads_url,omitempty"`
	PostedAt   time.Time `json:"posted_at"`
	CreatedAt  time.Time `json:"created_at"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	GoogleID  string    `json:"google_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Role tags a chat message. It has exactly two variants.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

func (r *Role) UnmarshalText(text []byte) error {
	role := Role(text)
	if !role.Valid() {
		return fmt.Errorf("invalid chat role %q", string(text))
	}
	*r = role
	return nil
}

type SourceType string

const (
	SourceArxiv       SourceType = "arxiv"
	SourceHuggingFace SourceType = "huggingface"
	SourceCache       SourceType = "cache"
)

// ChatSource is a piece of retrieved evidence. A nil RelevanceScore means the
// source was not ranked; it is not the same as a score of zero.
type ChatSource struct {
	Title          string     `json:"title"`
	URL            *string    `json:"url,omitempty"`
	Type           SourceType `json:"type"`
	RelevanceScore *float64   `json:"relevance_score,omitempty"`
}

type ChatMessage struct {
	ID        string       `json:"id"`
	Role      Role         `json:"role"`
	Content   string       `json:"content"`
	Sources   []ChatSource `json:"sources,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

type ChatRequest struct {
	Query  string  `json:"query"`
	UserID *string `json:"user_id,omitempty"`
}

type ChatResponse struct {
	Message ChatMessage `json:"message"`
	Cached  bool        `json:"cached"`
}

const (
	StatsReady       = "ready"
	StatsNoDocuments = "no_documents"
)

type ChatStats struct {
	DocumentCount int    `json:"document_count"`
	Status        string `json:"status,omitempty"`
}

// FeedRequest leaves zero values out of the query string.
type FeedRequest struct {
	UserID  string
	GuruIDs []string
	Limit   int
	Offset  int
}

type FeedResponse struct {
	Posts   []GuruPost `json:"posts"`
	Total   int        `json:"total"`
	HasMore bool       `json:"has_more"`
}

type SyncUserRequest struct {
	GoogleID  string  `json:"google_id"`
	Email     string  `json:"email"`
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

type UpdateGurusRequest struct {
	GuruIDs []string `json:"guru_ids"`
}

// ErrorBody is the machine-readable error envelope returned by the API.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
