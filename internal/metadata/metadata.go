package metadata

import (
	"errors"
	"fmt"
)

const (
	EntityCampaign = "campaign"
	EntityGroup    = "group"
)

var ErrHashMismatch = errors.New("content hash mismatch")

// Metadata is the off-chain JSON document a campaign or group URI points to.
type Metadata struct {
	Title       string   `json:"title,omitempty"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
	Link        string   `json:"link,omitempty"`
	ActionType  string   `json:"actionType,omitempty"`
	CommentText string   `json:"commentText,omitempty"`
	QuoteText   string   `json:"quoteText,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`

	// Set by the resolver, never read from the document.
	Placeholder bool `json:"placeholder,omitempty"`
	Verified    bool `json:"verified,omitempty"`
}

// DisplayTitle prefers title over name.
func (m *Metadata) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Name
}

func placeholder(entityType string, id uint64) *Metadata {
	return &Metadata{
		Title:       fmt.Sprintf("%s #%d", entityType, id),
		Placeholder: true,
	}
}

// FetchError describes why a URI could not be resolved.
type FetchError struct {
	URI    string
	Status int // 0 when no HTTP response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %v", e.URI, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URI, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether a retry may succeed.
func (e *FetchError) Temporary() bool {
	if errors.Is(e.Err, ErrHashMismatch) {
		return false
	}
	return e.Status == 0 || e.Status == 429 || e.Status >= 500
}
