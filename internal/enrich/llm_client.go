package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/RamfiAogusto/competitor-tracker/pkg/llm"
)

// LLMClient enriches a change packet by prompting an LLM provider
// directly, skipping a separate enrichment service.
type LLMClient struct {
	client llm.Client
}

// NewLLMClient wraps an already-configured llm.Client.
func NewLLMClient(client llm.Client) *LLMClient {
	return &LLMClient{client: client}
}

// Enrich asks the LLM to narrate packet and returns the parsed Result.
func (c *LLMClient) Enrich(ctx context.Context, packet Packet) (Result, error) {
	resp, err := c.client.Generate(ctx, &llm.Request{
		System:      enrichSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: buildPrompt(packet)}},
		MaxTokens:   1024,
		Temperature: 0.3,
		JSONMode:    true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("llm enrich: %w", err)
	}
	return decodeResult(resp.Content), nil
}

func buildPrompt(packet Packet) string {
	prompt := fmt.Sprintf("Target: %s (%s)\nChange type: %s\nSeverity: %s\nDetected at: %s\n",
		packet.TargetName, packet.URL, packet.ChangeType, packet.Severity, packet.Timestamp.Format(time.RFC3339))
	for _, s := range packet.Sections {
		prompt += fmt.Sprintf("\nSection %s (%s):\nBefore: %s\nAfter: %s\n", s.Selector, s.SectionType, s.Before, s.After)
	}
	return prompt
}

const enrichSystemPrompt = `You analyze detected changes to a competitor's web page and explain
their business significance.

Respond with a JSON object only, no surrounding text:
{
  "summary": "one paragraph explaining what changed and why it matters",
  "impact": ["bullet point describing one business implication", "..."],
  "recommendations": ["bullet point suggesting one action to take", "..."],
  "urgency": "low|medium|high",
  "insights": "any additional context worth flagging"
}`
