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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigCompiles(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MaxSteps)
	assert.NotEmpty(t, cfg.AltTextGuidelines)
	assert.NotEmpty(t, cfg.CultureGuidelines)

	prof, err := cfg.Compile()
	require.NoError(t, err)
	assert.Equal(t, 50, prof.MaxSteps())

	sys, err := prof.SynthesizerSystem()
	require.NoError(t, err)
	assert.NotEmpty(t, sys)
}

func TestProfilePass(t *testing.T) {
	prof := testProfile(t, 0)

	for _, tc := range []struct {
		a, c int
		want bool
	}{
		{4, 4, true},
		{5, 5, true},
		{3, 5, false},
		{5, 3, false},
		{1, 1, false},
	} {
		got, err := prof.Pass(tc.a, tc.c)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "scores (%d, %d)", tc.a, tc.c)
	}
}

func TestCustomPassCondition(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	cfg.PassCondition = "accessibility + cultural >= 9"
	prof, err := cfg.Compile()
	require.NoError(t, err)

	ok, err := prof.Pass(5, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = prof.Pass(4, 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNonBooleanPassConditionErrors(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	cfg.PassCondition = "accessibility + cultural"
	prof, err := cfg.Compile()
	require.NoError(t, err)

	_, err = prof.Pass(4, 4)
	assert.Error(t, err)
}

func TestPromptRendering(t *testing.T) {
	prof := testProfile(t, 0)

	t.Run("synthesizer user carries inputs", func(t *testing.T) {
		out, err := prof.SynthesizerUser("Photo of a family at dinner", "Korean")
		require.NoError(t, err)
		assert.Contains(t, out, "Photo of a family at dinner")
		assert.Contains(t, out, "Korean")
	})

	t.Run("generator system interpolates guidelines", func(t *testing.T) {
		out, err := prof.GeneratorSystem([]string{"use honorifics", "keep it short"})
		require.NoError(t, err)
		assert.Contains(t, out, "- use honorifics")
		assert.Contains(t, out, "- keep it short")
	})

	t.Run("generator user carries revision context", func(t *testing.T) {
		out, err := prof.GeneratorUser("original", "Spanish", "informative", "prev attempt", "too literal")
		require.NoError(t, err)
		assert.Contains(t, out, "original")
		assert.Contains(t, out, "Spanish")
		assert.Contains(t, out, "prev attempt")
		assert.Contains(t, out, "too literal")
	})

	t.Run("evaluator user carries candidate", func(t *testing.T) {
		out, err := prof.EvaluatorUser("후보 텍스트", "informative", "Korean")
		require.NoError(t, err)
		assert.Contains(t, out, "후보 텍스트")
	})
}

func TestBulletList(t *testing.T) {
	assert.Equal(t, "- (none)", BulletList(nil))
	assert.Equal(t, "- a", BulletList([]string{"a"}))
	assert.Equal(t, "- a\n- b", BulletList([]string{"a", "b"}))
}

func TestLoadConfigOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "translator.yaml")
	override := strings.Join([]string{
		"max_steps: 12",
		`pass_condition: "accessibility >= 3 && cultural >= 3"`,
		"guideline_synthesizer:",
		`  system: "sys"`,
		`  user: "text {{.OriginalText}} lang {{.LanguageName}}"`,
		"generator:",
		`  system: "{{.GuidelineBlock}}"`,
		`  user: "{{.OriginalText}}"`,
		"evaluator:",
		`  system: "judge"`,
		`  user: "{{.CandidateText}}"`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(override), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	prof, err := cfg.Compile()
	require.NoError(t, err)

	assert.Equal(t, 12, prof.MaxSteps())
	ok, err := prof.Pass(3, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := prof.SynthesizerUser("hello", "Chinese")
	require.NoError(t, err)
	assert.Equal(t, "text hello lang Chinese", out)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestBrokenTemplateFailsCompile(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)
	cfg.Generator.User = "{{.Unclosed"
	_, err = cfg.Compile()
	assert.Error(t, err)
}
