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

// Package translator implements the culturally-aware alt-text translation
// pipeline: a cyclic state machine of guideline synthesis, candidate
// generation and dual-axis quality evaluation, looping until the quality bar
// is met or the step ceiling is exhausted, and degrading to the original
// text on any irrecoverable failure.
package translator

import (
	"context"
	"fmt"
	"time"

	"github.com/artechne/altauthor/internal/log"
)

// NodeID names one state of the pipeline state machine.
type NodeID string

const (
	NodeSynthesis  NodeID = "guideline_synthesis"
	NodeGeneration NodeID = "generation"
	NodeEvaluation NodeID = "evaluation"
	NodeTerminal   NodeID = "terminal"
)

// Synthesizer produces the per-run cultural guidelines. Invoked exactly once.
type Synthesizer interface {
	Synthesize(ctx context.Context, st *State) ([]string, error)
}

// Generator produces one alt-text candidate per iteration.
type Generator interface {
	Generate(ctx context.Context, st *State) (string, error)
}

// Evaluator scores the latest candidate along both quality axes.
type Evaluator interface {
	Evaluate(ctx context.Context, st *State) (*Evaluation, error)
}

// Pipeline wires the three stages into a directed cyclic graph with one
// conditional edge out of evaluation. A Pipeline instance drives exactly one
// State to a terminal node; create one per run.
type Pipeline struct {
	synthesizer Synthesizer
	generator   Generator
	evaluator   Evaluator
	profile     *Profile
}

func NewPipeline(synth Synthesizer, gen Generator, eval Evaluator, profile *Profile) *Pipeline {
	return &Pipeline{
		synthesizer: synth,
		generator:   gen,
		evaluator:   eval,
		profile:     profile,
	}
}

// Run drives the state machine to a terminal node. Stage failures are
// captured into st.Err and resolved at the decision point; Run itself never
// returns an error. The step ceiling guarantees termination even if the
// decision function were miswired into an unconditional loop.
func (p *Pipeline) Run(ctx context.Context, st *State) {
	maxSteps := p.profile.MaxSteps()
	node := NodeSynthesis
	for steps := 0; node != NodeTerminal; steps++ {
		if steps >= maxSteps {
			st.Err = fmt.Errorf("step ceiling of %d transitions exceeded", maxSteps)
			st.Reason = ReasonStepCeiling
			log.Error("pipeline: %v", st.Err)
			return
		}
		p.runNode(ctx, node, st)
		node = p.next(node, st)
	}
}

func (p *Pipeline) runNode(ctx context.Context, node NodeID, st *State) {
	started := time.Now()
	var err error
	switch node {
	case NodeSynthesis:
		var guidelines []string
		if guidelines, err = p.synthesizer.Synthesize(ctx, st); err == nil {
			st.Guidelines = guidelines
		}
	case NodeGeneration:
		var candidate string
		if candidate, err = p.generator.Generate(ctx, st); err == nil {
			st.CandidateText = candidate
		}
	case NodeEvaluation:
		var ev *Evaluation
		if ev, err = p.evaluator.Evaluate(ctx, st); err == nil {
			st.AccessibilityScore = &ev.AccessibilityScore
			st.CulturalScore = &ev.CulturalScore
			st.Feedback = &ev.Feedback
		}
	default:
		err = fmt.Errorf("unknown pipeline node %q", node)
	}
	if err != nil {
		log.Error("pipeline node %s failed: %v", node, err)
		st.Err = err
	}
	st.record(node, started, err)
}

// next is the transition function. Any captured error short-circuits to the
// terminal node; the conditional edge out of evaluation applies the decision
// precedence of DecideAfterEvaluation.
func (p *Pipeline) next(node NodeID, st *State) NodeID {
	if st.Err != nil {
		st.Reason = ReasonStageError
		return NodeTerminal
	}
	switch node {
	case NodeSynthesis:
		return NodeGeneration
	case NodeGeneration:
		return NodeEvaluation
	case NodeEvaluation:
		next, reason, err := DecideAfterEvaluation(st, p.profile.Pass)
		if err != nil {
			st.Err = err
		}
		if next == NodeTerminal {
			st.Reason = reason
		}
		return next
	default:
		return NodeTerminal
	}
}

// DecideAfterEvaluation is the pure decision function for the conditional
// edge, with this exact precedence:
//  1. error set -> terminal;
//  2. either score absent -> terminal (prevents an unbounded cycle when the
//     evaluator silently produced no scores);
//  3. either score below the bar -> back to generation, carrying the
//     candidate and feedback forward;
//  4. otherwise -> terminal.
func DecideAfterEvaluation(st *State, pass func(accessibility, cultural int) (bool, error)) (NodeID, TerminalReason, error) {
	if st.Err != nil {
		return NodeTerminal, ReasonStageError, nil
	}
	if st.AccessibilityScore == nil || st.CulturalScore == nil {
		log.Warn("pipeline: scores absent after evaluation, terminating to prevent a loop")
		return NodeTerminal, ReasonMissingScores, nil
	}
	ok, err := pass(*st.AccessibilityScore, *st.CulturalScore)
	if err != nil {
		return NodeTerminal, ReasonStageError, err
	}
	if !ok {
		log.Info("pipeline: threshold failed (accessibility: %d, cultural: %d), looping back",
			*st.AccessibilityScore, *st.CulturalScore)
		return NodeGeneration, "", nil
	}
	log.Info("pipeline: threshold passed (accessibility: %d, cultural: %d)",
		*st.AccessibilityScore, *st.CulturalScore)
	return NodeTerminal, ReasonPassed, nil
}
