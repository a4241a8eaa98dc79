// Package extract normalizes raw input (pasted text or a URL) into
// plain text. Normalization is deterministic: the job identifier is
// derived from a fingerprint of this output, so re-extracting the same
// input must produce the same bytes.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	nurl "net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

const (
	// minTextLength is the minimum content length to accept as a valid
	// extraction. Pages returning less are likely login walls or empty.
	minTextLength = 100
	// maxBodySize is the maximum HTTP response body size (5MB).
	maxBodySize = 5 * 1024 * 1024
)

// Extraction is normalized plain text plus addressing metadata.
type Extraction struct {
	Text        string
	Title       string
	Fingerprint string
	WordCount   int
}

// Extractor turns raw text or a fetched URL into an Extraction.
type Extractor struct {
	client        *http.Client
	maxTextLength int
}

// New creates an Extractor. maxTextLength caps kept runes; longer
// content is truncated deterministically.
func New(maxTextLength int) *Extractor {
	return &Extractor{
		client:        &http.Client{Timeout: 30 * time.Second},
		maxTextLength: maxTextLength,
	}
}

// FromText normalizes caller-supplied raw text.
func (e *Extractor) FromText(text, title string) (*Extraction, error) {
	if strings.ContainsRune(text, '\x00') {
		return nil, &model.ExtractionError{Reason: "binary content"}
	}
	if !utf8.ValidString(text) {
		return nil, &model.ExtractionError{Reason: "content is not valid UTF-8"}
	}
	normalized := e.truncate(normalizeText(text))
	if normalized == "" {
		return nil, &model.ExtractionError{Reason: "empty content"}
	}
	return e.build(normalized, title), nil
}

// FromURL fetches the URL and extracts the main readable content.
func (e *Extractor) FromURL(ctx context.Context, rawURL string) (*Extraction, error) {
	u, err := nurl.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &model.ExtractionError{Reason: "invalid url", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &model.ExtractionError{Reason: "create request", Err: err}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &model.ExtractionError{Reason: "unreachable url", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.ExtractionError{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &model.ExtractionError{Reason: "read body", Err: err}
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), u)
	if err != nil {
		return nil, &model.ExtractionError{Reason: "readability", Err: err}
	}

	text := e.truncate(normalizeText(article.TextContent))
	if utf8.RuneCountInString(text) < minTextLength {
		return nil, &model.ExtractionError{
			Reason: fmt.Sprintf("extracted content too short (%d chars), possibly blocked or empty page", utf8.RuneCountInString(text)),
		}
	}
	return e.build(text, article.Title), nil
}

func (e *Extractor) build(text, title string) *Extraction {
	return &Extraction{
		Text:        text,
		Title:       title,
		Fingerprint: Fingerprint(text),
		WordCount:   len(strings.Fields(text)),
	}
}

func (e *Extractor) truncate(text string) string {
	if e.maxTextLength > 0 && utf8.RuneCountInString(text) > e.maxTextLength {
		runes := []rune(text)
		return string(runes[:e.maxTextLength])
	}
	return text
}

// Fingerprint returns the hex sha256 of normalized text. Job identity
// depends on it, so it must be stable for stable input.
func Fingerprint(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

var (
	multiSpace   = regexp.MustCompile(`[ \t]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimSpace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return s
}
