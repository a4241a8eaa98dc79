package engine

import (
	"fmt"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

// buildPrompt renders the instruction for one operation kind. Every
// prompt demands raw JSON matching the operation's payload schema so the
// response can be validated structurally.
func buildPrompt(kind, text string, opts Options) (string, error) {
	switch kind {
	case model.OpSummarize:
		maxSentences := opts.MaxSummarySentences
		if maxSentences <= 0 {
			maxSentences = 5
		}
		return fmt.Sprintf(`You are a document summarizer. Write an abstractive summary of the document below in at most %d sentences.

Respond with raw JSON only, no markdown fence, in exactly this shape:
{"summary": "..."}

Document:
%s`, maxSentences, text), nil

	case model.OpTag:
		maxTags := opts.MaxTags
		if maxTags <= 0 {
			maxTags = 5
		}
		return fmt.Sprintf(`You are a semantic tagger. Extract up to %d named entities and up to %d topical keywords from the document below.

Respond with raw JSON only, no markdown fence, in exactly this shape:
{"entities": ["..."], "topics": ["..."]}

Document:
%s`, maxTags, maxTags, text), nil

	case model.OpGroup:
		return fmt.Sprintf(`You are a topic classifier. Assign the document below to a short topic-cluster label (2-4 words, lowercase, prefixed with "topic:") and estimate how well it fits on a 0.0-1.0 scale.

Respond with raw JSON only, no markdown fence, in exactly this shape:
{"group": "topic:...", "similarity": 0.0}

Document:
%s`, text), nil

	default:
		return "", errUnknownKind(kind)
	}
}
