package model

import "time"

// Artifact is the committed output of a successful job. The payload
// itself lives in the blob store at ContentAddress (addressed by the
// artifact's own ID), so an unreferenced blob is orphaned, never
// dangling the other way around. Artifacts are immutable; reprocessing
// creates a new version and moves the document's current pointer.
type Artifact struct {
	ID             string  `json:"id"`
	DocumentID     string  `json:"document_id"`
	Operation      string  `json:"operation"`
	Version        int     `json:"version"`
	ContentAddress string  `json:"content_address"`
	Tier           string  `json:"tier"`
	Confidence     float64 `json:"confidence"`
	CreatedAt      string  `json:"created_at"`
}

// ArtifactAddress returns the blob-store address for an artifact ID.
func ArtifactAddress(artifactID string) string {
	return "artifacts/" + artifactID
}

// DocumentAddress returns the blob-store address for a document's
// normalized content, keyed by its fingerprint so identical content
// shares one blob.
func DocumentAddress(fingerprint string) string {
	return "documents/" + fingerprint
}

// NewArtifact creates an artifact produced by tier with the given provenance.
func NewArtifact(id, documentID, operation string, version int, tier string, confidence float64) Artifact {
	return Artifact{
		ID:             id,
		DocumentID:     documentID,
		Operation:      operation,
		Version:        version,
		ContentAddress: ArtifactAddress(id),
		Tier:           tier,
		Confidence:     confidence,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
}

// SummaryPayload is the payload schema for summarize artifacts.
type SummaryPayload struct {
	Summary string `json:"summary"`
}

// TagPayload is the payload schema for tag artifacts.
type TagPayload struct {
	Entities []string `json:"entities"`
	Topics   []string `json:"topics"`
}

// GroupPayload is the payload schema for group artifacts.
type GroupPayload struct {
	Group      string  `json:"group"`
	Similarity float64 `json:"similarity"`
}
