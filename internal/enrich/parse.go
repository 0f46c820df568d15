package enrich

import (
	"encoding/json"
	"fmt"
	"strings"
)

// remoteTool is one entry of the provider's analyzed_tools array.
type remoteTool struct {
	ToolName  string     `json:"tool_name"`
	Category  string     `json:"category"`
	Trend     string     `json:"trend_signal"`
	PainPoint string     `json:"pain_point"`
	Ideas     stringList `json:"micro_saas_ideas"`
}

type analyzedEnvelope struct {
	AnalyzedTools []remoteTool `json:"analyzed_tools"`
}

// stringList tolerates providers returning a bare string where a list
// was asked for.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*l = items
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = stringList{single}
		return nil
	}
	return fmt.Errorf("micro_saas_ideas is neither list nor string")
}

// parseAnalyzedTools decodes the provider response, tolerating a fenced
// code-block wrapper around the JSON.
func parseAnalyzedTools(content string) ([]remoteTool, error) {
	content = stripFence(content)

	var envelope analyzedEnvelope
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		return nil, fmt.Errorf("decode enrichment response: %w", err)
	}
	return envelope.AnalyzedTools, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
