// Package knowledge provides protocol notes that are injected into advisor
// prompts to ground the model's recommendations.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider is the retrieval interface consulted before an advisor call.
type Provider interface {
	Query(tokens ...string) []Snippet
}

// Snippet is one note about a protocol, token or strategy.
type Snippet struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Keywords []string `json:"keywords"`
}

// StaticProvider serves snippets loaded from a JSON file.
type StaticProvider struct {
	items      []Snippet
	maxResults int
}

// NewStaticProvider creates a provider over a fixed snippet set.
func NewStaticProvider(items []Snippet, maxResults int) *StaticProvider {
	if maxResults <= 0 {
		maxResults = 3
	}
	return &StaticProvider{items: items, maxResults: maxResults}
}

// LoadStaticProvider reads snippet entries from a JSON file.
func LoadStaticProvider(path string, maxResults int) (*StaticProvider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("knowledge file path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve knowledge path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open knowledge file: %w", err)
	}
	defer file.Close()

	var entries []Snippet
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("parse knowledge file: %w", err)
	}
	return NewStaticProvider(entries, maxResults), nil
}

// Query returns up to maxResults snippets whose keywords appear in any of
// the given terms. Snippets without keywords always match.
func (p *StaticProvider) Query(terms ...string) []Snippet {
	if p == nil {
		return nil
	}

	normalized := make([]string, 0, len(terms))
	for _, term := range terms {
		if trimmed := strings.ToLower(strings.TrimSpace(term)); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}

	results := make([]Snippet, 0, p.maxResults)
	for _, item := range p.items {
		if matches(item, normalized) {
			results = append(results, item)
			if len(results) >= p.maxResults {
				break
			}
		}
	}
	return results
}

func matches(snippet Snippet, terms []string) bool {
	if len(snippet.Keywords) == 0 {
		return true
	}
	for _, keyword := range snippet.Keywords {
		needle := strings.ToLower(strings.TrimSpace(keyword))
		if needle == "" {
			continue
		}
		for _, term := range terms {
			if strings.Contains(term, needle) {
				return true
			}
		}
	}
	return false
}

var _ Provider = (*StaticProvider)(nil)
