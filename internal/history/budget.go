// Package history prepares stored conversation turns for the model runtime:
// projecting them into the chat wire shape and trimming them to a token budget.
package history

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultTokenBudget bounds the approximate token count of the history window
// handed to the model runtime.
const DefaultTokenBudget = 512

// Entry is one role-tagged turn in the shape the model runtime consumes.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenCounter estimates the token cost of a piece of content.
type TokenCounter func(content string) int

// WordCount approximates token count as the number of whitespace-delimited
// words. Cheap and model-agnostic; it intentionally over- or under-counts
// relative to any real tokenizer.
func WordCount(content string) int {
	return len(strings.Fields(content))
}

// NewTiktokenCounter returns a counter backed by the named tiktoken encoding
// (e.g. "cl100k_base") for callers that want real subword counts.
func NewTiktokenCounter(encoding string) (TokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return func(content string) int {
		return len(enc.Encode(content, nil, nil))
	}, nil
}

// TrimToBudget removes entries from the front of msgs, oldest first, until the
// summed token count fits maxTokens or the slice is empty. The result is
// always a suffix of the input; a single entry that alone exceeds the budget
// is kept once it is the last one standing. A nil counter means WordCount.
func TrimToBudget(msgs []Entry, maxTokens int, count TokenCounter) []Entry {
	if count == nil {
		count = WordCount
	}

	total := 0
	for _, msg := range msgs {
		total += count(msg.Content)
	}

	for total > maxTokens && len(msgs) > 1 {
		total -= count(msgs[0].Content)
		msgs = msgs[1:]
	}
	return msgs
}
