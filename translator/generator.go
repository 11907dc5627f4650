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
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/artechne/altauthor/internal/log"
	"github.com/artechne/altauthor/llm"
)

// notApplicable is interpolated for the previous attempt and feedback on the
// first iteration, before any correction signal exists.
const notApplicable = "N/A"

// AltTextGenerator produces one candidate per pipeline iteration, conditioned
// on the source text, the image, the accumulated guidelines and, after the
// first iteration, the previous candidate plus the evaluator's critique.
type AltTextGenerator struct {
	store  *Store
	caller llm.Generator
}

func NewAltTextGenerator(store *Store, caller llm.Generator) *AltTextGenerator {
	return &AltTextGenerator{store: store, caller: caller}
}

// Generate implements Generator.
func (g *AltTextGenerator) Generate(ctx context.Context, st *State) (string, error) {
	prof := g.store.Profile()

	previous := notApplicable
	if st.CandidateText != "" {
		previous = st.CandidateText
	}
	feedback := notApplicable
	if st.Feedback != nil && *st.Feedback != "" {
		feedback = *st.Feedback
	}

	sys, err := prof.GeneratorSystem(st.Guidelines)
	if err != nil {
		return "", err
	}
	user, err := prof.GeneratorUser(st.OriginalText, st.LanguageName, st.ImageType, previous, feedback)
	if err != nil {
		return "", err
	}

	out, err := g.caller.Generate(ctx, []*schema.Message{
		schema.SystemMessage(sys),
		llm.UserMessageWithImage(user, st.ImageURL),
	})
	if err != nil {
		return "", err
	}
	candidate := strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
	log.Info("generated candidate (iteration %d): %q", st.Iterations()+1, candidate)
	return candidate, nil
}
