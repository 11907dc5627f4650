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

	"github.com/cloudwego/eino/schema"

	"github.com/artechne/altauthor/internal/log"
	"github.com/artechne/altauthor/llm"
)

// GuidelineSynthesizer runs a tool-augmented agent over the image and target
// culture to produce 2-3 situational adaptation guidelines, grounded by live
// web search when the model decides it needs it.
type GuidelineSynthesizer struct {
	store *Store
	agent llm.Generator
}

func NewGuidelineSynthesizer(store *Store, agent llm.Generator) *GuidelineSynthesizer {
	return &GuidelineSynthesizer{store: store, agent: agent}
}

// Synthesize implements Synthesizer. Runs once per pipeline run.
func (g *GuidelineSynthesizer) Synthesize(ctx context.Context, st *State) ([]string, error) {
	prof := g.store.Profile()
	user, err := prof.SynthesizerUser(st.OriginalText, st.LanguageName)
	if err != nil {
		return nil, err
	}
	out, err := g.agent.Generate(ctx, []*schema.Message{
		llm.UserMessageWithImage(user, st.ImageURL),
	})
	if err != nil {
		return nil, err
	}
	guidelines, err := ExtractGuidelines(out)
	if err != nil {
		return nil, err
	}
	log.Info("synthesized %d cultural guidelines for %s", len(guidelines), st.LanguageCode)
	return guidelines, nil
}

// SynthesizerMessageModifier prepends the synthesizer system prompt (read
// from the active profile so config reloads take effect) and, near the tool
// budget, tells the model to answer without further tool calls.
func SynthesizerMessageModifier(store *Store, maxStep int) func(ctx context.Context, input []*schema.Message) []*schema.Message {
	return func(ctx context.Context, input []*schema.Message) []*schema.Message {
		sys, err := store.Profile().SynthesizerSystem()
		if err != nil {
			log.Error("render synthesizer system prompt: %v", err)
		}
		if maxStep > 0 && len(input) >= maxStep-1 {
			input = append(input, schema.UserMessage("The tool-call budget is exhausted. Output the final JSON guidelines object now and do not call any more tools."))
		}
		res := make([]*schema.Message, 0, len(input)+1)
		res = append(res, schema.SystemMessage(sys))
		res = append(res, input...)
		return res
	}
}
