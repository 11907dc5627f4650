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
	"fmt"
	"testing"
)

// mockSynth returns fixed guidelines or an error, counting invocations.
type mockSynth struct {
	guidelines []string
	err        error
	calls      int
}

func (m *mockSynth) Synthesize(ctx context.Context, st *State) ([]string, error) {
	m.calls++
	return m.guidelines, m.err
}

// mockGen returns a distinct candidate per iteration.
type mockGen struct {
	err   error
	calls int
}

func (m *mockGen) Generate(ctx context.Context, st *State) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return fmt.Sprintf("candidate-%d", m.calls), nil
}

// mockEval replays a scripted sequence of evaluations; the last one repeats.
type mockEval struct {
	evals []Evaluation
	err   error
	calls int
	// seenCandidates records the candidate text scored at each call.
	seenCandidates []string
}

func (m *mockEval) Evaluate(ctx context.Context, st *State) (*Evaluation, error) {
	m.calls++
	m.seenCandidates = append(m.seenCandidates, st.CandidateText)
	if m.err != nil {
		return nil, m.err
	}
	i := m.calls - 1
	if i >= len(m.evals) {
		i = len(m.evals) - 1
	}
	ev := m.evals[i]
	return &ev, nil
}

func testProfile(t *testing.T, maxSteps int) *Profile {
	t.Helper()
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	if maxSteps > 0 {
		cfg.MaxSteps = maxSteps
	}
	prof, err := cfg.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return prof
}

func newTestState() *State {
	return NewState("USCIS logo", "ko", "Korean", "https://example.com/logo.png", "informative")
}

func TestPipeline_PassOnFirstIteration(t *testing.T) {
	synth := &mockSynth{guidelines: []string{"g1", "g2"}}
	gen := &mockGen{}
	eval := &mockEval{evals: []Evaluation{{AccessibilityScore: 5, CulturalScore: 5, Feedback: FeedbackNone}}}

	st := newTestState()
	NewPipeline(synth, gen, eval, testProfile(t, 0)).Run(context.Background(), st)

	if st.Err != nil {
		t.Fatalf("unexpected error: %v", st.Err)
	}
	if st.Reason != ReasonPassed {
		t.Errorf("reason: got %s", st.Reason)
	}
	if gen.calls != 1 {
		t.Errorf("expected exactly one generation cycle, got %d", gen.calls)
	}
	if st.CandidateText != "candidate-1" {
		t.Errorf("candidate: got %q", st.CandidateText)
	}
	if synth.calls != 1 {
		t.Errorf("synthesizer must run exactly once, got %d", synth.calls)
	}
}

func TestPipeline_LoopsUntilThresholdPasses(t *testing.T) {
	synth := &mockSynth{guidelines: []string{"g1"}}
	gen := &mockGen{}
	eval := &mockEval{evals: []Evaluation{
		{AccessibilityScore: 3, CulturalScore: 5, Feedback: "feedback A"},
		{AccessibilityScore: 4, CulturalScore: 4, Feedback: FeedbackNone},
	}}

	st := newTestState()
	NewPipeline(synth, gen, eval, testProfile(t, 0)).Run(context.Background(), st)

	if st.Err != nil {
		t.Fatalf("unexpected error: %v", st.Err)
	}
	if gen.calls != 2 {
		t.Fatalf("expected exactly two generation cycles, got %d", gen.calls)
	}
	if st.CandidateText != "candidate-2" {
		t.Errorf("final candidate: got %q", st.CandidateText)
	}
	// The evaluator always scores the most recent candidate.
	if eval.seenCandidates[0] != "candidate-1" || eval.seenCandidates[1] != "candidate-2" {
		t.Errorf("evaluated candidates: %v", eval.seenCandidates)
	}
	// Guidelines are produced once and identical across iterations.
	if synth.calls != 1 || len(st.Guidelines) != 1 || st.Guidelines[0] != "g1" {
		t.Errorf("guidelines changed across iterations: calls=%d %v", synth.calls, st.Guidelines)
	}
	if st.Reason != ReasonPassed {
		t.Errorf("reason: got %s", st.Reason)
	}
}

func TestPipeline_FeedbackCarriedForward(t *testing.T) {
	synth := &mockSynth{guidelines: []string{"g1"}}
	eval := &mockEval{evals: []Evaluation{
		{AccessibilityScore: 2, CulturalScore: 5, Feedback: "be more formal"},
		{AccessibilityScore: 5, CulturalScore: 5, Feedback: FeedbackNone},
	}}
	// Capture what the generator sees on its second iteration.
	var secondIterFeedback, secondIterPrevious string
	gen := &genFunc{fn: func(ctx context.Context, st *State) (string, error) {
		if st.Feedback != nil {
			secondIterFeedback = *st.Feedback
			secondIterPrevious = st.CandidateText
			return "second", nil
		}
		return "first", nil
	}}

	st := newTestState()
	NewPipeline(synth, gen, eval, testProfile(t, 0)).Run(context.Background(), st)

	if secondIterFeedback != "be more formal" {
		t.Errorf("feedback not carried forward: %q", secondIterFeedback)
	}
	if secondIterPrevious != "first" {
		t.Errorf("previous candidate not carried forward: %q", secondIterPrevious)
	}
	if st.CandidateText != "second" {
		t.Errorf("final candidate: %q", st.CandidateText)
	}
}

type genFunc struct {
	fn func(ctx context.Context, st *State) (string, error)
}

func (g *genFunc) Generate(ctx context.Context, st *State) (string, error) { return g.fn(ctx, st) }

func TestPipeline_SynthesisErrorTerminatesImmediately(t *testing.T) {
	synth := &mockSynth{err: ErrNoPayload}
	gen := &mockGen{}
	eval := &mockEval{}

	st := newTestState()
	NewPipeline(synth, gen, eval, testProfile(t, 0)).Run(context.Background(), st)

	if st.Err == nil {
		t.Fatal("expected captured error")
	}
	if st.Reason != ReasonStageError {
		t.Errorf("reason: got %s", st.Reason)
	}
	if gen.calls != 0 || eval.calls != 0 {
		t.Errorf("downstream stages must not run: gen=%d eval=%d", gen.calls, eval.calls)
	}
}

func TestPipeline_EvaluatorErrorTerminates(t *testing.T) {
	synth := &mockSynth{guidelines: []string{"g1"}}
	gen := &mockGen{}
	eval := &mockEval{err: fmt.Errorf("transport: connection reset")}

	st := newTestState()
	NewPipeline(synth, gen, eval, testProfile(t, 0)).Run(context.Background(), st)

	if st.Err == nil {
		t.Fatal("expected captured error")
	}
	if st.Reason != ReasonStageError {
		t.Errorf("reason: got %s", st.Reason)
	}
	if gen.calls != 1 {
		t.Errorf("generation must not be retried after evaluator error, got %d calls", gen.calls)
	}
}

func TestPipeline_StepCeiling(t *testing.T) {
	synth := &mockSynth{guidelines: []string{"g1"}}
	gen := &mockGen{}
	// Scores never pass: the ceiling must stop the cycle.
	eval := &mockEval{evals: []Evaluation{{AccessibilityScore: 1, CulturalScore: 1, Feedback: "bad"}}}

	st := newTestState()
	NewPipeline(synth, gen, eval, testProfile(t, 7)).Run(context.Background(), st)

	if st.Err == nil {
		t.Fatal("expected step-ceiling error")
	}
	if st.Reason != ReasonStepCeiling {
		t.Errorf("reason: got %s", st.Reason)
	}
	if len(st.History) > 7 {
		t.Errorf("history exceeds ceiling: %d records", len(st.History))
	}
	if synth.calls != 1 {
		t.Errorf("synthesizer re-entered: %d calls", synth.calls)
	}
}

func TestDecideAfterEvaluation(t *testing.T) {
	prof := testProfile(t, 0)
	score := func(n int) *int { return &n }

	t.Run("error has highest precedence", func(t *testing.T) {
		st := newTestState()
		st.Err = fmt.Errorf("boom")
		st.AccessibilityScore, st.CulturalScore = score(5), score(5)
		next, reason, err := DecideAfterEvaluation(st, prof.Pass)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next != NodeTerminal || reason != ReasonStageError {
			t.Errorf("got (%s, %s)", next, reason)
		}
	})

	t.Run("missing scores terminate defensively", func(t *testing.T) {
		for _, tc := range []struct {
			name string
			a, c *int
		}{
			{"both absent", nil, nil},
			{"accessibility absent", nil, score(5)},
			{"cultural absent", score(5), nil},
		} {
			t.Run(tc.name, func(t *testing.T) {
				st := newTestState()
				st.AccessibilityScore, st.CulturalScore = tc.a, tc.c
				next, reason, err := DecideAfterEvaluation(st, prof.Pass)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if next != NodeTerminal || reason != ReasonMissingScores {
					t.Errorf("got (%s, %s)", next, reason)
				}
			})
		}
	})

	t.Run("either failing score loops back", func(t *testing.T) {
		for _, pair := range [][2]int{{3, 5}, {5, 3}, {1, 1}, {3, 3}} {
			st := newTestState()
			st.AccessibilityScore, st.CulturalScore = score(pair[0]), score(pair[1])
			next, _, err := DecideAfterEvaluation(st, prof.Pass)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if next != NodeGeneration {
				t.Errorf("scores %v: got %s, want generation", pair, next)
			}
		}
	})

	t.Run("both passing scores terminate", func(t *testing.T) {
		for _, pair := range [][2]int{{4, 4}, {5, 4}, {4, 5}, {5, 5}} {
			st := newTestState()
			st.AccessibilityScore, st.CulturalScore = score(pair[0]), score(pair[1])
			next, reason, err := DecideAfterEvaluation(st, prof.Pass)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if next != NodeTerminal || reason != ReasonPassed {
				t.Errorf("scores %v: got (%s, %s)", pair, next, reason)
			}
		}
	})
}
