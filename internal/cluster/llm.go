package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/aqxion/keyword-cli/pkg/anthropic"
)

// labelModel is the small model used for cluster naming; labels are short
// and latency matters more than depth here.
const labelModel = "claude-haiku-4-5-20251001"

// labelSampleSize caps how many member keywords go into the prompt.
const labelSampleSize = 12

// LLMLabeler names clusters with a single small-model call. Use it behind
// FallbackLabeler so an API failure degrades to bigram labels.
type LLMLabeler struct {
	client anthropic.Client
	model  string
}

// NewLLMLabeler returns a labeler backed by the given Anthropic client.
func NewLLMLabeler(client anthropic.Client) *LLMLabeler {
	return &LLMLabeler{client: client, model: labelModel}
}

func (l *LLMLabeler) Label(ctx context.Context, members []string) (string, error) {
	if len(members) == 0 {
		return "", eris.New("cluster: no members to label")
	}

	sample := members
	if len(sample) > labelSampleSize {
		sample = sample[:labelSampleSize]
	}

	prompt := fmt.Sprintf(
		"These search keywords belong to one topical group:\n%s\n\n"+
			"Reply with a short topic label for the group (2-4 words, same language as the keywords, no punctuation, nothing else).",
		"- "+strings.Join(sample, "\n- "))

	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     l.model,
		MaxTokens: 32,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "cluster: label request")
	}
	resp.Usage.LogCost(l.model, "labeling")

	for _, block := range resp.Content {
		if block.Type == "text" {
			label := strings.ToLower(strings.TrimSpace(block.Text))
			if label != "" {
				return label, nil
			}
		}
	}
	return "", eris.New("cluster: empty label response")
}
