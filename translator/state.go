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

import "time"

// State is the single mutable record threaded through every pipeline stage.
// One State per translation request; never shared or pooled across requests.
type State struct {
	// Immutable inputs.
	OriginalText string
	LanguageCode string
	LanguageName string
	ImageURL     string // resolved embeddable reference
	ImageType    string // "informative" or "decorative/control"

	// Written once by the synthesizer, read by all downstream stages.
	Guidelines []string

	// Latest candidate; overwritten each generation iteration, never merged.
	CandidateText string

	// Evaluation outputs. Nil means "not evaluated yet", not "empty".
	Feedback           *string
	AccessibilityScore *int
	CulturalScore      *int

	// Terminal-failure marker. Once set, the state machine short-circuits.
	Err error

	// Why the run reached a terminal state.
	Reason TerminalReason

	// Ordered log of node executions for this run.
	History []StepRecord
}

// NewState builds the per-request state from already-validated inputs.
func NewState(originalText, languageCode, languageName, imageURL, imageType string) *State {
	return &State{
		OriginalText: originalText,
		LanguageCode: languageCode,
		LanguageName: languageName,
		ImageURL:     imageURL,
		ImageType:    imageType,
	}
}

// TerminalReason distinguishes why a run ended. A stage transport error and
// an evaluator that silently produced no scores are reported separately.
type TerminalReason string

const (
	ReasonPassed        TerminalReason = "passed"
	ReasonStageError    TerminalReason = "stage_error"
	ReasonMissingScores TerminalReason = "missing_scores"
	ReasonStepCeiling   TerminalReason = "step_ceiling"
)

// StepRecord is an immutable log entry for one node execution.
type StepRecord struct {
	Node      NodeID    `json:"node"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Status    string    `json:"status"` // "ok" or "failed"
	Err       string    `json:"error,omitempty"`
}

const (
	stepOK     = "ok"
	stepFailed = "failed"
)

func (s *State) record(node NodeID, started time.Time, err error) {
	rec := StepRecord{
		Node:      node,
		StartedAt: started,
		EndedAt:   time.Now(),
		Status:    stepOK,
	}
	if err != nil {
		rec.Status = stepFailed
		rec.Err = err.Error()
	}
	s.History = append(s.History, rec)
}

// Iterations counts completed generation cycles.
func (s *State) Iterations() int {
	n := 0
	for _, rec := range s.History {
		if rec.Node == NodeGeneration && rec.Status == stepOK {
			n++
		}
	}
	return n
}
