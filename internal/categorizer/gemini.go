package categorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/rumor-ml/commons.systems/finledger/internal/domain"
)

// DefaultModel is the Gemini model used when the config does not name one.
const DefaultModel = "gemini-2.0-flash"

// Gemini categorizes descriptions with a Gemini model. Responses are
// cached per normalized description so repeated imports of the same
// merchants skip the API.
type Gemini struct {
	client *genai.Client
	model  string

	mu    sync.Mutex
	cache map[string]string
}

// NewGemini creates a Gemini-backed categorizer. The API key is read by
// the genai client from the environment (GEMINI_API_KEY / GOOGLE_API_KEY).
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{client: client, model: model, cache: make(map[string]string)}, nil
}

// CategorizeBatch asks the model to classify every uncached description in
// one call. The result is sanitized against the catalog before caching, so
// the cache never holds an off-catalog or protected name.
func (g *Gemini) CategorizeBatch(ctx context.Context, descriptions []string) ([]string, error) {
	out := make([]string, len(descriptions))
	var misses []string
	missIdx := make(map[string][]int)

	g.mu.Lock()
	for i, d := range descriptions {
		key := cacheKey(d)
		if name, ok := g.cache[key]; ok {
			out[i] = name
			continue
		}
		if len(missIdx[key]) == 0 {
			misses = append(misses, d)
		}
		missIdx[key] = append(missIdx[key], i)
	}
	g.mu.Unlock()

	if len(misses) == 0 {
		return out, nil
	}

	names, err := g.classify(ctx, misses)
	if err != nil {
		return nil, err
	}
	names = Sanitize(misses, names)

	g.mu.Lock()
	for j, d := range misses {
		key := cacheKey(d)
		g.cache[key] = names[j]
		for _, i := range missIdx[key] {
			out[i] = names[j]
		}
	}
	g.mu.Unlock()
	return out, nil
}

func (g *Gemini) classify(ctx context.Context, descriptions []string) ([]string, error) {
	prompt := buildPrompt(descriptions)
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("categorizer call failed: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("categorizer returned an empty response")
	}

	var names []string
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &names); err != nil {
		return nil, fmt.Errorf("categorizer returned malformed JSON: %w", err)
	}
	return names, nil
}

func buildPrompt(descriptions []string) string {
	var b strings.Builder
	b.WriteString("You classify Brazilian personal-finance transaction descriptions.\n\n")
	b.WriteString("Allowed categories (answer with these exact strings):\n")
	for _, c := range domain.CategoryCatalog {
		if c == domain.SubscriptionsCategoryName {
			// Reserved for explicitly linked subscriptions; the model
			// must never assign it.
			continue
		}
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nClassify each description below. Output STRICT JSON only: ")
	b.WriteString("a JSON array of strings, one category per description, same order. ")
	b.WriteString("Do NOT wrap the response in code fences.\n\nDescriptions:\n")
	for i, d := range descriptions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, d)
	}
	return b.String()
}

// cleanModelJSON strips Markdown fences and surrounding junk when the
// model ignores the strict-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

func cacheKey(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}
