package coverage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/planora-ai/planora/internal/llm"
	"github.com/planora-ai/planora/internal/telemetry"
	"github.com/planora-ai/planora/models"
)

// MaxUnitsPerArticle caps extractor output so over-generation cannot pollute
// the coverage store. Articles are expected to yield 3-7 units.
const MaxUnitsPerArticle = 7

// ExtractedUnit is one validated (question, role, strength) triple before it
// acquires an owner and merge key.
type ExtractedUnit struct {
	Question      string               `json:"question"`
	IntentRole    models.IntentRole    `json:"intent_role"`
	CoverageState models.CoverageState `json:"coverage_strength"`
}

// Extractor turns finished article text into answer units via a
// structured-generation call. Generation output is duck-typed JSON and is
// validated entry by entry; malformed entries are dropped, not propagated.
type Extractor struct {
	provider llm.Provider
	logger   *log.Logger
}

func NewExtractor(provider llm.Provider, logger *log.Logger) *Extractor {
	if logger == nil {
		logger = log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags)
	}
	return &Extractor{provider: provider, logger: logger}
}

const extractorSystemPrompt = `You are a content coverage analyst. Given a published article, identify the distinct reader questions the article answers.

For each question report:
- "question": a full natural-language question (a complete interrogative sentence ending in "?", never a keyword fragment)
- "intent_role": one of core_answer, decision, comparison, problem_specific, emotional_use_case, authority_edge
- "coverage_strength": one of partial, strong, dominant (how thoroughly the article answers it)

Report between 3 and 7 questions. Respond ONLY with valid JSON:
{"units": [{"question": "...", "intent_role": "...", "coverage_strength": "..."}]}
Do not include any other text or explanation.`

// Extract analyzes one article's text. A failed generation call aborts this
// article's coverage contribution only; callers must not let it abort their
// broader workflow.
func (e *Extractor) Extract(ctx context.Context, articleText, keyword, cluster string) ([]ExtractedUnit, error) {
	user := fmt.Sprintf("PRIMARY KEYWORD: %s\nTOPIC CLUSTER: %s\n\nARTICLE:\n%s", keyword, cluster, truncate(articleText, 12000))

	raw, err := e.provider.GenerateJSON(ctx, extractorSystemPrompt, user)
	if err != nil {
		telemetry.ExtractionFailures.Inc()
		return nil, fmt.Errorf("extract answer units: %w", err)
	}
	jsonStr, err := llm.ExtractJSONObject(raw)
	if err != nil {
		telemetry.ExtractionFailures.Inc()
		return nil, fmt.Errorf("extract answer units: %w", err)
	}

	var parsed struct {
		Units []struct {
			Question         string `json:"question"`
			IntentRole       string `json:"intent_role"`
			CoverageStrength string `json:"coverage_strength"`
		} `json:"units"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		telemetry.ExtractionFailures.Inc()
		return nil, fmt.Errorf("%w: %v", llm.ErrGenerationMalformed, err)
	}

	var units []ExtractedUnit
	for _, u := range parsed.Units {
		if !IsFullQuestion(u.Question) {
			e.logger.Printf("skip non-interrogative extractor output: %q", u.Question)
			continue
		}
		role, err := models.ParseIntentRole(u.IntentRole)
		if err != nil {
			e.logger.Printf("skip unit %q: %v", u.Question, err)
			continue
		}
		state, err := models.ParseCoverageState(u.CoverageStrength)
		if err != nil {
			e.logger.Printf("skip unit %q: %v", u.Question, err)
			continue
		}
		units = append(units, ExtractedUnit{Question: u.Question, IntentRole: role, CoverageState: state})
		if len(units) == MaxUnitsPerArticle {
			break
		}
	}
	return units, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
