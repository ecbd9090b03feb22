package evaluation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/scholarlabs/scholar/pkg/llms"
	"github.com/scholarlabs/scholar/pkg/prompts"
	"github.com/scholarlabs/scholar/pkg/protocol"
)

// Verdict is the LLM judge's scoring of one answer. Scores are in [0,1].
type Verdict struct {
	AnswerQuality      float64 `json:"answer_quality"`
	FactualCorrectness float64 `json:"factual_correctness"`
	Completeness       float64 `json:"completeness"`
	Reasoning          string  `json:"reasoning"`
}

// Judge scores answers against free-form criteria using an LLM.
type Judge struct {
	provider   llms.Provider
	prompts    prompts.Service
	promptName string
	label      string
}

func NewJudge(provider llms.Provider, promptService prompts.Service, promptName, label string) *Judge {
	return &Judge{
		provider:   provider,
		prompts:    promptService,
		promptName: promptName,
		label:      label,
	}
}

// Score asks the judge model to rate the answer. The template instructs the
// model to reply with exactly four "key: value" lines.
func (j *Judge) Score(ctx context.Context, query, answer, criteria string) (*Verdict, error) {
	template, err := j.prompts.Fetch(ctx, j.promptName, j.label)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch judge prompt: %w", err)
	}
	prompt, err := template.Compile(map[string]string{
		"query":    query,
		"answer":   answer,
		"criteria": criteria,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to compile judge prompt: %w", err)
	}

	resp, err := j.provider.Generate(ctx, &llms.Request{
		Messages:    []*protocol.Message{protocol.NewSystemMessage(prompt)},
		Temperature: 0.0,
	})
	if err != nil {
		return nil, fmt.Errorf("judge call failed: %w", err)
	}

	return parseVerdict(resp.Text)
}

// parseVerdict extracts the four expected lines. Unknown lines are ignored
// so minor judge chatter does not break the run; missing scores do.
func parseVerdict(text string) (*Verdict, error) {
	verdict := &Verdict{}
	seen := map[string]bool{}

	for _, line := range strings.Split(text, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "answer_quality", "factual_correctness", "completeness":
			score, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("judge returned non-numeric %s: %q", key, value)
			}
			if score < 0 || score > 1 {
				return nil, fmt.Errorf("judge returned out-of-range %s: %v", key, score)
			}
			switch key {
			case "answer_quality":
				verdict.AnswerQuality = score
			case "factual_correctness":
				verdict.FactualCorrectness = score
			case "completeness":
				verdict.Completeness = score
			}
			seen[key] = true
		case "reasoning":
			verdict.Reasoning = value
			seen[key] = true
		}
	}

	for _, required := range []string{"answer_quality", "factual_correctness", "completeness"} {
		if !seen[required] {
			return nil, fmt.Errorf("judge output missing %s: %q", required, text)
		}
	}
	return verdict, nil
}
