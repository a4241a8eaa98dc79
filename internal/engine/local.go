package engine

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

// LocalAdapter is the low-cost/fast tier. It runs entirely in process:
// frequency-ranked extractive summaries, token-frequency tagging, and a
// dominant-topic group label. Quality is below the remote tier, which
// the reported confidence reflects.
type LocalAdapter struct {
	name         string
	tokenPattern *regexp.Regexp
	entPattern   *regexp.Regexp
	stopwords    map[string]struct{}
}

var _ Adapter = (*LocalAdapter)(nil)

// NewLocalAdapter creates the local extractive tier.
func NewLocalAdapter(name string) *LocalAdapter {
	return &LocalAdapter{
		name:         name,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		entPattern:   regexp.MustCompile(`\p{Lu}\p{Ll}+(?: \p{Lu}\p{Ll}+){0,2}`),
		stopwords:    defaultStopwords(),
	}
}

func (a *LocalAdapter) Name() string { return a.name }

// Ping always reports healthy: the tier has no external dependency.
func (a *LocalAdapter) Ping(_ context.Context) Health { return Healthy }

// Produce generates a draft for the given operation kind.
func (a *LocalAdapter) Produce(ctx context.Context, kind, text string, opts Options) (*Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, &model.ModelTimeoutError{Tier: a.name, Err: err}
	}

	var payload any
	var confidence float64
	switch kind {
	case model.OpSummarize:
		maxSentences := opts.MaxSummarySentences
		if maxSentences <= 0 {
			maxSentences = 5
		}
		summary := a.summarize(text, maxSentences)
		payload = model.SummaryPayload{Summary: summary}
		confidence = 0.55
	case model.OpTag:
		maxTags := opts.MaxTags
		if maxTags <= 0 {
			maxTags = 5
		}
		payload = model.TagPayload{
			Entities: a.entities(text, maxTags),
			Topics:   a.topics(text, maxTags),
		}
		confidence = 0.6
	case model.OpGroup:
		group, similarity := a.group(text)
		payload = model.GroupPayload{Group: group, Similarity: similarity}
		confidence = 0.5
	default:
		return nil, &model.ModelError{Tier: a.name, Err: errUnknownKind(kind)}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, &model.ModelError{Tier: a.name, Err: err}
	}
	if err := ValidateDraft(kind, b); err != nil {
		return nil, &model.ModelError{Tier: a.name, Err: err}
	}
	return &Draft{Payload: b, Confidence: confidence, CostEstimate: 0}, nil
}

// summarize ranks sentences by normalized token frequency and keeps the
// top maxSentences in their original order.
func (a *LocalAdapter) summarize(text string, maxSentences int) string {
	sentences := regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`).FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range a.tokens(sent) {
			if _, ok := a.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		if v > maxF {
			maxF = v
		}
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		score := 0.0
		toks := a.tokens(sent)
		for _, tok := range toks {
			if v, ok := freq[tok]; ok {
				score += v
			}
		}
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	selected := make([]int, maxSentences)
	for i := 0; i < maxSentences; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, strings.TrimSpace(sentences[idx]))
	}
	return strings.Join(out, " ")
}

// topics returns the most frequent non-stopword tokens.
func (a *LocalAdapter) topics(text string, max int) []string {
	freq := map[string]int{}
	for _, tok := range a.tokens(text) {
		if _, ok := a.stopwords[tok]; ok {
			continue
		}
		if len(tok) < 3 {
			continue
		}
		freq[tok]++
	}
	return topKeys(freq, max)
}

// entities returns the most frequent capitalized phrases, skipping
// sentence-initial words that are merely capitalized by position.
func (a *LocalAdapter) entities(text string, max int) []string {
	freq := map[string]int{}
	for _, m := range a.entPattern.FindAllStringIndex(text, -1) {
		phrase := text[m[0]:m[1]]
		if m[0] == 0 || isSentenceStart(text, m[0]) {
			// A single capitalized word at sentence start is positional;
			// multiword phrases still count.
			if !strings.Contains(phrase, " ") {
				continue
			}
		}
		if _, ok := a.stopwords[strings.ToLower(phrase)]; ok {
			continue
		}
		freq[phrase]++
	}
	out := topKeys(freq, max)
	if out == nil {
		out = []string{}
	}
	return out
}

// group assigns a topic-cluster label from the dominant token and
// reports how dominant it is as the similarity score.
func (a *LocalAdapter) group(text string) (string, float64) {
	freq := map[string]int{}
	total := 0
	for _, tok := range a.tokens(text) {
		if _, ok := a.stopwords[tok]; ok {
			continue
		}
		if len(tok) < 3 {
			continue
		}
		freq[tok]++
		total++
	}
	if total == 0 {
		return "misc", 0
	}
	top := topKeys(freq, 1)[0]
	dominance := float64(freq[top]) / float64(total)
	// Dominance of a single term is tiny in natural text; rescale into a
	// usable similarity range and clamp.
	similarity := math.Min(1, dominance*10)
	return "topic:" + top, similarity
}

func (a *LocalAdapter) tokens(text string) []string {
	return a.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func isSentenceStart(text string, pos int) bool {
	for i := pos - 1; i >= 0; i-- {
		switch text[i] {
		case ' ', '\t':
			continue
		case '.', '!', '?', '\n':
			return true
		default:
			return false
		}
	}
	return true
}

func topKeys(freq map[string]int, max int) []string {
	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if max > len(keys) {
		max = len(keys)
	}
	return keys[:max]
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by",
		"with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about",
		"between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same",
		"too", "very", "can", "will", "just", "not", "no", "nor", "only", "have", "has", "had", "do", "does",
		"did", "he", "she", "they", "we", "you", "i", "his", "her", "their", "our", "your", "its", "there",
		"what", "which", "who", "when", "where", "why", "how", "all", "any", "both", "each", "few", "more",
		"most", "other", "some", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
