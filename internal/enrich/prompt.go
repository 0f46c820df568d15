package enrich

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/toolradar/toolradar/internal/radar"
)

const systemPrompt = "You are a software-tool trend analyst. " +
	"You always respond with valid JSON and nothing else."

const promptTemplate = `You receive a batch of recently discovered software tools,
each with a name, description and vote count.

For every tool:
1. Pick its category. It must be one of: %s.
2. Distill the user pain point the tool addresses. Be concrete.
3. Derive 1-3 product ideas an independent developer could build from that
   pain point.
4. Judge the trend signal. It must be one of: %s.

Input data:
%s

Respond with exactly this JSON shape:
{
  "analyzed_tools": [
    {
      "tool_name": "...",
      "category": "...",
      "trend_signal": "...",
      "pain_point": "...",
      "micro_saas_ideas": ["...", "..."]
    }
  ]
}`

type promptTool struct {
	ToolName    string `json:"tool_name"`
	Description string `json:"description"`
	Votes       int    `json:"votes"`
}

func buildPrompt(batch []radar.NormalizedCandidate) (string, error) {
	tools := make([]promptTool, 0, len(batch))
	for _, c := range batch {
		tools = append(tools, promptTool{
			ToolName:    c.Name,
			Description: c.Description,
			Votes:       c.Votes,
		})
	}

	data, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal batch: %w", err)
	}

	return fmt.Sprintf(promptTemplate,
		joinCategories(), joinTrends(), string(data)), nil
}

func joinCategories() string {
	names := make([]string, 0, len(radar.Categories()))
	for _, c := range radar.Categories() {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func joinTrends() string {
	names := make([]string, 0, len(radar.TrendSignals()))
	for _, s := range radar.TrendSignals() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
