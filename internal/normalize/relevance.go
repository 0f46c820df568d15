package normalize

import "strings"

// relevanceKeywords is the vocabulary of tool/AI/SaaS/automation concepts a
// candidate must touch to be carried forward. Connectors use the same
// vocabulary to pre-filter at the source.
var relevanceKeywords = []string{
	"ai", "artificial intelligence", "machine learning", "ml",
	"saas", "tool", "app", "platform", "service", "software",
	"startup", "launch", "product", "api", "sdk",
	"automation", "productivity", "b2b", "workflow",
	"openai", "gpt", "claude", "gemini", "llm",
	"chatbot", "assistant", "copilot", "bot",
}

// Relevant reports whether the candidate's name or description mentions at
// least one relevance keyword.
func Relevant(name, description string) bool {
	text := strings.ToLower(name + " " + description)
	for _, keyword := range relevanceKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// sourceBases maps connector names to the base URL relative links resolve
// against.
var sourceBases = map[string]string{
	"producthunt": "https://www.producthunt.com",
	"futurepedia": "https://www.futurepedia.io",
	"hackernews":  "https://news.ycombinator.com",
}

// SourceBaseURL returns the base URL for a known source, or empty.
func SourceBaseURL(source string) string {
	return sourceBases[source]
}
