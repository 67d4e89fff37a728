package pipeline

import (
	"fmt"
	"strings"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/pipeline/prompts"
)

// Prompts contains the pipeline prompts loaded from embedded files.
type Prompts struct {
	Translate string // Prompt for natural-language-to-SQL translation
	Summarize string // Prompt for table summarization
}

// LoadPrompts loads all prompts from the embedded filesystem.
func LoadPrompts() (*Prompts, error) {
	p := &Prompts{}

	var err error
	if p.Translate, err = loadPrompt("TRANSLATE.md"); err != nil {
		return nil, fmt.Errorf("failed to load TRANSLATE: %w", err)
	}
	if p.Summarize, err = loadPrompt("SUMMARIZE.md"); err != nil {
		return nil, fmt.Errorf("failed to load SUMMARIZE: %w", err)
	}

	return p, nil
}

func loadPrompt(path string) (string, error) {
	data, err := prompts.PromptsFS.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
