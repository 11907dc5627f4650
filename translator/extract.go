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
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// The synthesizer agent answers in free text with an embedded JSON object
// holding one list-valued field. Extraction failures are recoverable per
// request: callers capture them into state instead of raising.
var (
	ErrNoPayload        = errors.New("no brace-delimited payload in output")
	ErrMalformedPayload = errors.New("malformed guideline payload")
	ErrMissingField     = errors.New("guideline payload missing \"guidelines\" field")
	ErrEmptyGuidelines  = errors.New("guideline payload contains no guidelines")
)

type guidelinePayload struct {
	Guidelines []string `json:"guidelines"`
}

// ExtractGuidelines pulls the first top-level brace-delimited span out of the
// agent's final answer and validates it against the expected shape.
func ExtractGuidelines(output string) ([]string, error) {
	span, ok := firstBraceSpan(output)
	if !ok {
		return nil, ErrNoPayload
	}
	var payload guidelinePayload
	if err := json.Unmarshal([]byte(span), &payload); err != nil {
		return nil, errors.Wrap(ErrMalformedPayload, err.Error())
	}
	if payload.Guidelines == nil {
		return nil, ErrMissingField
	}
	out := make([]string, 0, len(payload.Guidelines))
	for _, g := range payload.Guidelines {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyGuidelines
	}
	return out, nil
}

// firstBraceSpan returns the first balanced top-level {...} span in s,
// skipping braces inside JSON string literals.
func firstBraceSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
