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

import "testing"

func TestParseEvaluation(t *testing.T) {
	t.Run("pure json", func(t *testing.T) {
		ev, err := parseEvaluation(`{"accessibility_score": 5, "cultural_score": 4, "feedback": "None"}`)
		if err != nil {
			t.Fatalf("parseEvaluation: %v", err)
		}
		if ev.AccessibilityScore != 5 || ev.CulturalScore != 4 {
			t.Errorf("scores: got (%d, %d)", ev.AccessibilityScore, ev.CulturalScore)
		}
		if ev.Feedback != FeedbackNone {
			t.Errorf("feedback: got %q", ev.Feedback)
		}
	})

	t.Run("json wrapped in prose", func(t *testing.T) {
		ev, err := parseEvaluation("Here is my verdict: {\"accessibility_score\": 3, \"cultural_score\": 5, \"feedback\": \"too literal\"}")
		if err != nil {
			t.Fatalf("parseEvaluation: %v", err)
		}
		if ev.AccessibilityScore != 3 || ev.Feedback != "too literal" {
			t.Errorf("got %+v", ev)
		}
	})

	t.Run("empty feedback becomes sentinel", func(t *testing.T) {
		ev, err := parseEvaluation(`{"accessibility_score": 4, "cultural_score": 4, "feedback": ""}`)
		if err != nil {
			t.Fatalf("parseEvaluation: %v", err)
		}
		if ev.Feedback != FeedbackNone {
			t.Errorf("feedback: got %q", ev.Feedback)
		}
	})

	t.Run("score out of range", func(t *testing.T) {
		if _, err := parseEvaluation(`{"accessibility_score": 0, "cultural_score": 4, "feedback": "x"}`); err == nil {
			t.Fatal("expected error for score 0")
		}
		if _, err := parseEvaluation(`{"accessibility_score": 4, "cultural_score": 6, "feedback": "x"}`); err == nil {
			t.Fatal("expected error for score 6")
		}
	})

	t.Run("not json at all", func(t *testing.T) {
		if _, err := parseEvaluation("the candidate looks fine to me"); err == nil {
			t.Fatal("expected error")
		}
	})
}
