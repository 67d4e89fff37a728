package pipeline

import (
	"context"
	"fmt"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/catalog"
)

// Translate turns the request's question into one candidate statement. It
// calls the language backend exactly once; retry policy lives in the
// orchestrator. Feedback, when non-empty, is appended as corrective context
// from a prior failed attempt.
func (p *Pipeline) Translate(ctx context.Context, req Request, desc catalog.Descriptor, feedback string) (CandidateStatement, error) {
	systemPrompt := buildTranslatePrompt(p.cfg.Prompts.Translate, desc, req.Scope)
	userPrompt := buildTranslateUserPrompt(req, feedback)

	response, err := p.cfg.LLM.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return CandidateStatement{}, fmt.Errorf("LLM completion failed: %w", err)
	}

	sqlText := ExtractStatement(response)
	if sqlText == "" {
		return CandidateStatement{}, &KindError{
			Kind:   KindNoStatementProduced,
			Detail: "no statement-shaped content in model output",
		}
	}

	return CandidateStatement{SQL: sqlText, Request: req}, nil
}

// buildTranslatePrompt combines the static prompt with the schema restricted
// to the request's scope.
func buildTranslatePrompt(staticPrompt string, desc catalog.Descriptor, scope Scope) string {
	var include []string
	if !scope.All() {
		include = []string{scope.Table}
	}
	schema := catalog.Format(desc, include)
	return staticPrompt + "\n\n## Database Schema\n\n```\n" + schema + "```"
}

func buildTranslateUserPrompt(req Request, feedback string) string {
	prompt := fmt.Sprintf("Question: %s\n\nReturn exactly one read-only SQL statement.", req.Question)
	if !req.Scope.All() {
		prompt += fmt.Sprintf(" Query only the table %q.", req.Scope.Table)
	}
	if feedback != "" {
		prompt += fmt.Sprintf("\n\nThe previous attempt failed: %s\nProduce a corrected statement.", feedback)
	}
	return prompt
}
