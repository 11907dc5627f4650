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
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"text/template"

	"github.com/Knetic/govaluate"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/artechne/altauthor/internal/log"
	"github.com/artechne/altauthor/internal/utils"
)

//go:embed translator.yaml
var embeddedConfig []byte

// Config is the raw, serializable pipeline configuration. It is parsed and
// compiled into a Profile once; stages never re-read it per call.
type Config struct {
	MaxSteps          int          `yaml:"max_steps"`
	PassCondition     string       `yaml:"pass_condition"`
	AltTextGuidelines string       `yaml:"alt_text_guidelines"`
	CultureGuidelines string       `yaml:"culture_guidelines"`
	Synthesizer       StagePrompts `yaml:"guideline_synthesizer"`
	Generator         StagePrompts `yaml:"generator"`
	Evaluator         StagePrompts `yaml:"evaluator"`
}

type StagePrompts struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// DefaultConfig parses the embedded translator.yaml.
func DefaultConfig() (*Config, error) {
	return parseConfig(embeddedConfig)
}

// LoadConfig parses an on-disk override of the embedded configuration.
func LoadConfig(path string) (*Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, utils.WrapError(err, "load translator config")
	}
	return parseConfig(bs)
}

func parseConfig(bs []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(bs, &c); err != nil {
		return nil, utils.WrapError(err, "parse translator config")
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = 50
	}
	if c.PassCondition == "" {
		c.PassCondition = "accessibility >= 4 && cultural >= 4"
	}
	return &c, nil
}

// promptData carries every field a stage template may reference. Stages fill
// only the fields their prompts use.
type promptData struct {
	AltTextGuidelines string
	CultureGuidelines string
	OriginalText      string
	LanguageName      string
	ImageType         string
	GuidelineBlock    string
	PreviousAttempt   string
	Feedback          string
	CandidateText     string
}

// Profile is the compiled form of a Config: parsed templates plus the
// compiled pass-condition expression. Immutable once built.
type Profile struct {
	cfg  Config
	pass *govaluate.EvaluableExpression

	synthSystem *template.Template
	synthUser   *template.Template
	genSystem   *template.Template
	genUser     *template.Template
	evalSystem  *template.Template
	evalUser    *template.Template
}

// Compile parses every stage template and the pass condition.
func (c *Config) Compile() (*Profile, error) {
	p := &Profile{cfg: *c}
	var err error
	if p.pass, err = govaluate.NewEvaluableExpression(c.PassCondition); err != nil {
		return nil, utils.WrapError(err, "compile pass condition")
	}
	for _, t := range []struct {
		name string
		src  string
		dst  **template.Template
	}{
		{"synthesizer.system", c.Synthesizer.System, &p.synthSystem},
		{"synthesizer.user", c.Synthesizer.User, &p.synthUser},
		{"generator.system", c.Generator.System, &p.genSystem},
		{"generator.user", c.Generator.User, &p.genUser},
		{"evaluator.system", c.Evaluator.System, &p.evalSystem},
		{"evaluator.user", c.Evaluator.User, &p.evalUser},
	} {
		tpl, err := template.New(t.name).Parse(t.src)
		if err != nil {
			return nil, utils.WrapError(err, "parse template "+t.name)
		}
		*t.dst = tpl
	}
	return p, nil
}

// MaxSteps is the hard ceiling on state-machine transitions per run.
func (p *Profile) MaxSteps() int { return p.cfg.MaxSteps }

// Pass evaluates the pass condition against a score pair.
func (p *Profile) Pass(accessibility, cultural int) (bool, error) {
	out, err := p.pass.Evaluate(map[string]interface{}{
		"accessibility": accessibility,
		"cultural":      cultural,
	})
	if err != nil {
		return false, utils.WrapError(err, "evaluate pass condition")
	}
	ok, is := out.(bool)
	if !is {
		return false, fmt.Errorf("pass condition %q did not evaluate to a bool", p.cfg.PassCondition)
	}
	return ok, nil
}

func (p *Profile) render(tpl *template.Template, data promptData) (string, error) {
	data.AltTextGuidelines = strings.TrimSpace(p.cfg.AltTextGuidelines)
	data.CultureGuidelines = strings.TrimSpace(p.cfg.CultureGuidelines)
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", utils.WrapError(err, "render "+tpl.Name())
	}
	return strings.TrimSpace(buf.String()), nil
}

func (p *Profile) SynthesizerSystem() (string, error) {
	return p.render(p.synthSystem, promptData{})
}

func (p *Profile) SynthesizerUser(originalText, languageName string) (string, error) {
	return p.render(p.synthUser, promptData{OriginalText: originalText, LanguageName: languageName})
}

func (p *Profile) GeneratorSystem(guidelines []string) (string, error) {
	return p.render(p.genSystem, promptData{GuidelineBlock: BulletList(guidelines)})
}

func (p *Profile) GeneratorUser(originalText, languageName, imageType, previousAttempt, feedback string) (string, error) {
	return p.render(p.genUser, promptData{
		OriginalText:    originalText,
		LanguageName:    languageName,
		ImageType:       imageType,
		PreviousAttempt: previousAttempt,
		Feedback:        feedback,
	})
}

func (p *Profile) EvaluatorSystem() (string, error) {
	return p.render(p.evalSystem, promptData{})
}

func (p *Profile) EvaluatorUser(candidateText, imageType, languageName string) (string, error) {
	return p.render(p.evalUser, promptData{
		CandidateText: candidateText,
		ImageType:     imageType,
		LanguageName:  languageName,
	})
}

// BulletList flattens guidelines into the bulleted block interpolated into
// the generator's system prompt.
func BulletList(items []string) string {
	if len(items) == 0 {
		return "- (none)"
	}
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(it)
	}
	return b.String()
}

// Store holds the active Profile and swaps it atomically on reload.
type Store struct {
	p atomic.Pointer[Profile]
}

func NewStore(p *Profile) *Store {
	s := &Store{}
	s.p.Store(p)
	return s
}

// Profile returns the active compiled configuration.
func (s *Store) Profile() *Profile {
	return s.p.Load()
}

// WatchFile hot-reloads the profile whenever the override file is rewritten.
// A broken rewrite keeps the previous profile active.
func (s *Store) WatchFile(path string) error {
	return utils.WatchFile(path, func(op fsnotify.Op, file string) {
		if op&fsnotify.Write == 0 && op&fsnotify.Create == 0 {
			return
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			log.Error("reload translator config %s: %v", path, err)
			return
		}
		prof, err := cfg.Compile()
		if err != nil {
			log.Error("recompile translator config %s: %v", path, err)
			return
		}
		s.p.Store(prof)
		log.Info("translator config reloaded from %s", path)
	})
}
