package model

import "time"

// Source type constants
const (
	SourceText = "text"
	SourceURL  = "url"
)

// Document represents an ingested text document. The raw content itself
// lives in the blob store at ContentAddress; the row here carries
// ownership and addressing only. A document is immutable once created.
type Document struct {
	ID             string `json:"id"`
	OwnerID        string `json:"owner_id"`
	SourceType     string `json:"source_type"`
	SourceURL      string `json:"source_url,omitempty"`
	Title          string `json:"title,omitempty"`
	ContentAddress string `json:"content_address"`
	Fingerprint    string `json:"fingerprint"`
	WordCount      int    `json:"word_count"`
	CreatedAt      string `json:"created_at"`
}

// NewDocument creates a Document owned by ownerID.
func NewDocument(id, ownerID, sourceType, sourceURL, title, contentAddress, fingerprint string, wordCount int) Document {
	return Document{
		ID:             id,
		OwnerID:        ownerID,
		SourceType:     sourceType,
		SourceURL:      sourceURL,
		Title:          title,
		ContentAddress: contentAddress,
		Fingerprint:    fingerprint,
		WordCount:      wordCount,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
}
