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

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/time/rate"

	"github.com/artechne/altauthor/internal/image"
	"github.com/artechne/altauthor/internal/log"
	"github.com/artechne/altauthor/llm"
	"github.com/artechne/altauthor/llm/tool"
)

// supportedLanguages is the fixed target set of the reference deployment.
var supportedLanguages = map[string]language.Tag{
	"ko": language.Korean,
	"es": language.Spanish,
	"zh": language.Chinese,
}

// LanguageName resolves a supported code to its English display name.
func LanguageName(code string) (string, bool) {
	tag, ok := supportedLanguages[code]
	if !ok {
		return "", false
	}
	return display.English.Languages().Name(tag), true
}

// Request is one translation job.
type Request struct {
	OriginalText   string `json:"original_text"`
	TargetLanguage string `json:"target_language"` // "ko", "es" or "zh"
	ImageURL       string `json:"image_url"`
	ImageType      string `json:"image_type"` // default "informative"
}

// EvaluationSummary mirrors the last evaluation of a run. Nil fields mean
// the evaluator never ran.
type EvaluationSummary struct {
	AccessibilityScore *int    `json:"accessibility_score"`
	CulturalScore      *int    `json:"cultural_score"`
	Feedback           *string `json:"feedback"`
}

// Result is the always-well-formed response contract. Degraded operation is
// signaled via Success=false (with TranslatedText falling back to the
// original), never via a transport failure.
type Result struct {
	OriginalText       string            `json:"original_text"`
	TranslatedText     string            `json:"translated_text"`
	TargetLanguage     string            `json:"target_language"`
	TargetLanguageName string            `json:"target_language_name"`
	Guidelines         []string          `json:"guidelines"`
	Evaluation         EvaluationSummary `json:"evaluation"`
	Success            bool              `json:"success"`
	Reason             TerminalReason    `json:"reason,omitempty"`
	Error              string            `json:"error,omitempty"`
	Iterations         int               `json:"iterations"`
	History            []StepRecord      `json:"history,omitempty"`
}

// Options configures a Service.
type Options struct {
	Model      llm.ModelConfig  // generator + evaluator model
	AgentModel *llm.ModelConfig // synthesizer agent model; defaults to Model

	SearchAPIKey  string // native web-search tool key
	SearchBaseURL string // override for tests
	UseMCPSearch  bool   // additionally attach tools from a Tavily MCP server

	ConfigPath    string // optional on-disk override of the embedded config, hot-reloaded
	CacheDir      string // transient SVG rasterization directory
	AgentMaxSteps int    // synthesizer tool-loop bound, default 8
	QPS           float64
}

// Service owns the long-lived stage handles and creates one pipeline
// instance per request. Safe for concurrent use; concurrent runs share no
// mutable state.
type Service struct {
	store    *Store
	resolver *image.Resolver

	synthesizer Synthesizer
	generator   Generator
	evaluator   Evaluator
}

func NewService(ctx context.Context, opts Options) (*Service, error) {
	cfg, err := DefaultConfig()
	if opts.ConfigPath != "" {
		cfg, err = LoadConfig(opts.ConfigPath)
	}
	if err != nil {
		return nil, err
	}
	profile, err := cfg.Compile()
	if err != nil {
		return nil, err
	}
	store := NewStore(profile)
	if opts.ConfigPath != "" {
		if err := store.WatchFile(opts.ConfigPath); err != nil {
			log.Warn("config watch disabled: %v", err)
		}
	}

	if opts.QPS == 0 {
		opts.QPS = 4
	}
	limiter := rate.NewLimiter(rate.Limit(opts.QPS), 1)

	chatModel := llm.NewChatModel(opts.Model)
	generatorCaller := llm.NewChat(chatModel, llm.ChatOptions{
		Retries: opts.Model.Retries,
		Timeout: opts.Model.Timeout,
		Limiter: limiter,
	})

	evalModel := chatModel
	switch opts.Model.APIType {
	case llm.ModelTypeOpenAI, llm.ModelTypeDeepSeek:
		evalModel = llm.NewStructuredChatModel(opts.Model, "alt_text_evaluation", Evaluation{})
	default:
		// parseEvaluation falls back to span extraction for providers
		// without strict response formats.
		log.Warn("model type %q lacks strict structured output; evaluator will parse JSON from free text", opts.Model.APIType)
	}
	evaluatorCaller := llm.NewChat(evalModel, llm.ChatOptions{
		Retries: opts.Model.Retries,
		Timeout: opts.Model.Timeout,
		Limiter: limiter,
	})

	agentModelCfg := opts.Model
	if opts.AgentModel != nil {
		agentModelCfg = *opts.AgentModel
	}
	maxSteps := opts.AgentMaxSteps
	if maxSteps == 0 {
		maxSteps = 8
	}
	tcfg := compose.ToolsNodeConfig{}
	search := tool.NewWebSearchTools(tool.WebSearchOptions{
		APIKey:  opts.SearchAPIKey,
		BaseURL: opts.SearchBaseURL,
	})
	tcfg.Tools = append(tcfg.Tools, search.GetTools()...)
	if opts.UseMCPSearch {
		mcpTools, err := tool.GetSearchMCPTools(ctx)
		if err != nil {
			return nil, err
		}
		tcfg.Tools = append(tcfg.Tools, mcpTools...)
	}
	agent := llm.NewReactAgent("guideline-synthesizer", llm.ReactAgentOptions{
		AgentConfig: &react.AgentConfig{
			ToolCallingModel: llm.NewChatModel(agentModelCfg),
			ToolsConfig:      tcfg,
			MaxStep:          maxSteps,
			MessageModifier:  SynthesizerMessageModifier(store, maxSteps),
		},
		Retries: agentModelCfg.Retries,
		Timeout: agentModelCfg.Timeout,
	})

	return &Service{
		store:       store,
		resolver:    image.NewResolver(image.ResolverOptions{CacheDir: opts.CacheDir}),
		synthesizer: NewGuidelineSynthesizer(store, agent),
		generator:   NewAltTextGenerator(store, generatorCaller),
		evaluator:   NewQualityEvaluator(store, evaluatorCaller),
	}, nil
}

// NewServiceWithStages wires externally-built stages; used by tests and by
// callers embedding the pipeline behind their own model plumbing.
func NewServiceWithStages(store *Store, resolver *image.Resolver, synth Synthesizer, gen Generator, eval Evaluator) *Service {
	return &Service{
		store:       store,
		resolver:    resolver,
		synthesizer: synth,
		generator:   gen,
		evaluator:   eval,
	}
}

// Translate runs one pipeline. It returns an error only for fatal/input
// failures detected before the state machine runs (unsupported language,
// unresolvable image); every pipeline-level failure degrades into a
// well-formed Result with Success=false.
func (s *Service) Translate(ctx context.Context, req Request) (*Result, error) {
	languageName, ok := LanguageName(req.TargetLanguage)
	if !ok {
		return nil, fmt.Errorf("unsupported target language %q", req.TargetLanguage)
	}
	imageType := req.ImageType
	if imageType == "" {
		imageType = "informative"
	}
	embeddable, err := s.resolver.Resolve(ctx, req.ImageURL)
	if err != nil {
		return nil, err
	}

	log.Info("starting translation pipeline: %q -> %s", req.OriginalText, languageName)
	st := NewState(req.OriginalText, req.TargetLanguage, languageName, embeddable, imageType)
	return s.run(ctx, st), nil
}

// run executes the state machine with a recovery boundary: a panic escaping
// a stage is converted into the degraded identity translation.
func (s *Service) run(ctx context.Context, st *State) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("translation pipeline panic: %v", r)
			st.Err = fmt.Errorf("pipeline panic: %v", r)
			st.Reason = ReasonStageError
			res = packageResult(st)
		}
	}()
	NewPipeline(s.synthesizer, s.generator, s.evaluator, s.store.Profile()).Run(ctx, st)
	return packageResult(st)
}

// packageResult extracts the final artifact from a terminal state.
func packageResult(st *State) *Result {
	res := &Result{
		OriginalText:       st.OriginalText,
		TranslatedText:     st.OriginalText,
		TargetLanguage:     st.LanguageCode,
		TargetLanguageName: st.LanguageName,
		Guidelines:         []string{},
		Evaluation: EvaluationSummary{
			AccessibilityScore: st.AccessibilityScore,
			CulturalScore:      st.CulturalScore,
			Feedback:           st.Feedback,
		},
		Success:    st.Err == nil,
		Reason:     st.Reason,
		Iterations: st.Iterations(),
		History:    st.History,
	}
	if len(st.Guidelines) > 0 {
		res.Guidelines = append(res.Guidelines, st.Guidelines...)
	}
	if st.Err != nil {
		res.Error = st.Err.Error()
		return res
	}
	if st.CandidateText != "" {
		res.TranslatedText = st.CandidateText
	}
	return res
}

// BatchItem is one entry of a batch translation. Input-class failures are
// carried per entry so one bad request never fails the whole batch.
type BatchItem struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// TranslateBatch runs independent pipelines concurrently, one per request,
// bounded by concurrency. Each run gets its own State and pipeline instance.
func (s *Service) TranslateBatch(ctx context.Context, reqs []Request, concurrency int) []BatchItem {
	if concurrency <= 0 {
		concurrency = 4
	}
	items := make([]BatchItem, len(reqs))
	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, err := s.Translate(ctx, req)
			items[i] = BatchItem{Index: i, Result: res}
			if err != nil {
				items[i].Error = err.Error()
			}
			return nil
		})
	}
	g.Wait()
	return items
}
