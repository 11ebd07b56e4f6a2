package paraphrase

import (
	"strings"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/config"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/models"
)

// Prompts picks a column-specific template, falling back to the generic one.
type Prompts struct {
	byColumn map[string]string
	fallback string
}

func NewPrompts(cfg *config.PromptsConfig) *Prompts {
	fallback := cfg.Default
	if strings.TrimSpace(fallback) == "" {
		fallback = models.DefaultPromptTemplate
	}
	return &Prompts{byColumn: cfg.ByColumn, fallback: fallback}
}

// Render substitutes text into the template for column. A template without the placeholder
// gets the text appended after a blank line.
func (p *Prompts) Render(column, text string) string {
	tmpl, ok := p.byColumn[column]
	if !ok || strings.TrimSpace(tmpl) == "" {
		tmpl = p.fallback
	}
	if !strings.Contains(tmpl, models.TextPlaceholder) {
		return tmpl + "\n\n" + text
	}
	return strings.ReplaceAll(tmpl, models.TextPlaceholder, text)
}
