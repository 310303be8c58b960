package handlers

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/cosmos-ai/cosmos-host/pkg/llm"
)

// InboundMessage is one history entry as clients send it. Two shapes are
// accepted: flat `{role, content}` and part-segmented `{role, parts: [...]}`
// as emitted by AI-SDK style frontends. Both normalize to flat content
// before anything is forwarded upstream.
type InboundMessage struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []InboundPart `json:"parts,omitempty"`
}

// InboundPart is one segment of a part-segmented message.
type InboundPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// NormalizeMessages validates and flattens an inbound history. Entries
// missing a role, or carrying neither content nor a text part, are rejected;
// text-bearing parts are concatenated with a separating space in their
// original order.
func NormalizeMessages(inbound []InboundMessage) ([]llm.Message, error) {
	normalized := make([]llm.Message, 0, len(inbound))
	for i, msg := range inbound {
		if msg.Role == "" {
			return nil, errors.Errorf("message %d is missing a role", i)
		}

		content := msg.Content
		if content == "" && len(msg.Parts) > 0 {
			var texts []string
			for _, part := range msg.Parts {
				if part.Type == "text" && part.Text != "" {
					texts = append(texts, part.Text)
				}
			}
			content = strings.Join(texts, " ")
		}
		if content == "" {
			return nil, errors.Errorf("message %d has no content", i)
		}

		normalized = append(normalized, llm.Message{
			Role:    msg.Role,
			Content: content,
		})
	}
	return normalized, nil
}
