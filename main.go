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

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/artechne/altauthor/internal/log"
	"github.com/artechne/altauthor/internal/utils"
	"github.com/artechne/altauthor/llm"
	"github.com/artechne/altauthor/translator"
	"github.com/artechne/altauthor/version"
)

const Usage = `altauthor <Action> [Flags]
Action:
   translate    culturally adapt one alt text for a target language
   batch        run a JSON file of translation requests concurrently
   version      print the version of altauthor
Flags of translate:
   -text        the original alt text (required)
   -lang        target language code: ko, es or zh (required)
   -image       the image url, data uri or svg url (required)
   -image-type  "informative" (default) or "decorative/control"
Flags of batch:
   -file        path of a JSON array of {original_text,target_language,image_url,image_type}
   -concurrency max concurrent pipelines (default 4)
Common flags:
   -model       model endpoint name (default gpt-4o-mini)
   -type        model api type: openai, claude, ollama, ark, qwen, deepseek (default openai)
   -base-url    model api base url
   -config      on-disk translator.yaml override (hot-reloaded)
   -cache-dir   transient svg rasterization directory
   -mcp-search  also attach tools from a tavily MCP server
   -verbose     debug logging
Environment:
   LLM_API_KEY      model api key (OPENAI_API_KEY is honored for openai)
   TAVILY_API_KEY   web-search tool key
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, Usage)
		os.Exit(2)
	}
	action := os.Args[1]
	args := os.Args[2:]

	switch action {
	case "version":
		fmt.Println(version.Version)
		return
	case "translate":
		runTranslate(args)
	case "batch":
		runBatch(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n%s", action, Usage)
		os.Exit(2)
	}
}

type commonFlags struct {
	model     *string
	apiType   *string
	baseURL   *string
	config    *string
	cacheDir  *string
	mcpSearch *bool
	verbose   *bool
}

func registerCommon(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		model:     fs.String("model", "gpt-4o-mini", "model endpoint name"),
		apiType:   fs.String("type", "openai", "model api type"),
		baseURL:   fs.String("base-url", "", "model api base url"),
		config:    fs.String("config", "", "translator.yaml override path"),
		cacheDir:  fs.String("cache-dir", "", "transient svg rasterization directory"),
		mcpSearch: fs.Bool("mcp-search", false, "attach tools from a tavily MCP server"),
		verbose:   fs.Bool("verbose", false, "debug logging"),
	}
}

func (c *commonFlags) service(ctx context.Context) *translator.Service {
	if *c.verbose {
		log.SetLogLevel(log.DebugLevel)
	}
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	svc, err := translator.NewService(ctx, translator.Options{
		Model: llm.ModelConfig{
			APIType:   llm.NewModelType(*c.apiType),
			BaseURL:   *c.baseURL,
			APIKey:    apiKey,
			ModelName: *c.model,
			Timeout:   60 * time.Second,
		},
		SearchAPIKey: os.Getenv("TAVILY_API_KEY"),
		UseMCPSearch: *c.mcpSearch,
		ConfigPath:   *c.config,
		CacheDir:     *c.cacheDir,
	})
	if err != nil {
		fatal("init service: %v", err)
	}
	return svc
}

func runTranslate(args []string) {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	text := fs.String("text", "", "the original alt text")
	lang := fs.String("lang", "", "target language code")
	imageURL := fs.String("image", "", "the image reference")
	imageType := fs.String("image-type", "informative", "image content type")
	common := registerCommon(fs)
	fs.Parse(args)
	if *text == "" || *lang == "" || *imageURL == "" {
		fatal("translate requires -text, -lang and -image")
	}

	ctx := context.Background()
	svc := common.service(ctx)
	res, err := svc.Translate(ctx, translator.Request{
		OriginalText:   *text,
		TargetLanguage: *lang,
		ImageURL:       *imageURL,
		ImageType:      *imageType,
	})
	if err != nil {
		fatal("translate: %v", err)
	}
	printJSON(res)
}

func runBatch(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	file := fs.String("file", "", "JSON array of translation requests")
	concurrency := fs.Int("concurrency", 4, "max concurrent pipelines")
	common := registerCommon(fs)
	fs.Parse(args)
	if *file == "" {
		fatal("batch requires -file")
	}

	bs, err := os.ReadFile(*file)
	if err != nil {
		fatal("read %s: %v", *file, err)
	}
	var reqs []translator.Request
	if err := json.Unmarshal(bs, &reqs); err != nil {
		fatal("parse %s: %v", *file, err)
	}

	ctx := context.Background()
	svc := common.service(ctx)
	printJSON(svc.TranslateBatch(ctx, reqs, *concurrency))
}

func printJSON(v interface{}) {
	out, err := utils.MarshalJSONIndent(v)
	if err != nil {
		fatal("marshal result: %v", err)
	}
	fmt.Println(out)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
