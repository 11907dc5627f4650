// Copyright 2025 AltAuthor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package translator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/artechne/altauthor/internal/log"
	"github.com/artechne/altauthor/llm"
)

// FeedbackNone is the sentinel the evaluator emits when both scores pass.
// Feedback is advisory only; it is never a failure signal on its own.
const FeedbackNone = "None"

// Evaluation is the evaluator's structured response. The jsonschema tags
// drive the strict response format of the evaluation model.
type Evaluation struct {
	AccessibilityScore int    `json:"accessibility_score" jsonschema:"description=The score for accessibility fidelity on a 1-5 scale,minimum=1,maximum=5"`
	CulturalScore      int    `json:"cultural_score" jsonschema:"description=The score for cultural appropriateness on a 1-5 scale,minimum=1,maximum=5"`
	Feedback           string `json:"feedback" jsonschema:"description=Concrete feedback when either score is below the passing threshold; otherwise the literal string None"`
}

// QualityEvaluator scores a candidate along accessibility fidelity and
// cultural appropriateness via a schema-constrained model response.
type QualityEvaluator struct {
	store  *Store
	caller llm.Generator
}

func NewQualityEvaluator(store *Store, caller llm.Generator) *QualityEvaluator {
	return &QualityEvaluator{store: store, caller: caller}
}

// Evaluate implements Evaluator.
func (e *QualityEvaluator) Evaluate(ctx context.Context, st *State) (*Evaluation, error) {
	prof := e.store.Profile()
	sys, err := prof.EvaluatorSystem()
	if err != nil {
		return nil, err
	}
	user, err := prof.EvaluatorUser(st.CandidateText, st.ImageType, st.LanguageName)
	if err != nil {
		return nil, err
	}
	out, err := e.caller.Generate(ctx, []*schema.Message{
		schema.SystemMessage(sys),
		llm.UserMessageWithImage(user, st.ImageURL),
	})
	if err != nil {
		return nil, err
	}
	ev, err := parseEvaluation(out)
	if err != nil {
		return nil, err
	}
	log.Info("evaluation - accessibility: %d, cultural: %d", ev.AccessibilityScore, ev.CulturalScore)
	return ev, nil
}

// parseEvaluation decodes and validates the structured response. With a
// strict json_schema response format the content is pure JSON; for providers
// without that support we fall back to the first brace-delimited span.
func parseEvaluation(content string) (*Evaluation, error) {
	var ev Evaluation
	if err := json.Unmarshal([]byte(content), &ev); err != nil {
		span, ok := firstBraceSpan(content)
		if !ok {
			return nil, fmt.Errorf("evaluation response is not valid JSON: %v", err)
		}
		if err := json.Unmarshal([]byte(span), &ev); err != nil {
			return nil, fmt.Errorf("evaluation payload is not valid JSON: %v", err)
		}
	}
	if err := validateScore("accessibility_score", ev.AccessibilityScore); err != nil {
		return nil, err
	}
	if err := validateScore("cultural_score", ev.CulturalScore); err != nil {
		return nil, err
	}
	if ev.Feedback == "" {
		ev.Feedback = FeedbackNone
	}
	return &ev, nil
}

func validateScore(name string, score int) error {
	if score < 1 || score > 5 {
		return fmt.Errorf("evaluation %s out of range: %d", name, score)
	}
	return nil
}
