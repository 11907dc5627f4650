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

package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"

	abutil "github.com/artechne/altauthor/internal/utils"
)

// Tool is any eino-compatible tool usable by an agent.
type Tool = tool.BaseTool

const (
	ToolWebSearch = "web_search"
	DescWebSearch = "search the live web for current information about a subject. Input: query. Output: top results with title, url and content snippet"

	defaultSearchBaseURL = "https://api.tavily.com"
	defaultMaxResults    = 3
)

type SearchRequest struct {
	Query string `json:"query" jsonschema:"description=the web search query"`
}

type SearchResult struct {
	Title   string `json:"title" jsonschema:"description=the result title"`
	URL     string `json:"url" jsonschema:"description=the result url"`
	Content string `json:"content" jsonschema:"description=a content snippet of the result"`
}

type SearchResponse struct {
	Answer  string         `json:"answer,omitempty" jsonschema:"description=a short synthesized answer when available"`
	Results []SearchResult `json:"results" jsonschema:"description=the top search results"`
}

type WebSearchOptions struct {
	APIKey     string
	BaseURL    string // default: the Tavily endpoint
	MaxResults int    // default: 3
	HTTPClient *http.Client
}

// WebSearchTools exposes a Tavily-compatible search API as an agent tool.
type WebSearchTools struct {
	opts  WebSearchOptions
	tools map[string]tool.InvokableTool
}

func NewWebSearchTools(opts WebSearchOptions) *WebSearchTools {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultSearchBaseURL
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	ret := &WebSearchTools{
		opts:  opts,
		tools: map[string]tool.InvokableTool{},
	}
	tt, err := utils.InferTool(ToolWebSearch,
		DescWebSearch,
		ret.Search, utils.WithMarshalOutput(func(ctx context.Context, output interface{}) (string, error) {
			return abutil.MarshalJSONIndent(output)
		}))
	if err != nil {
		panic(err)
	}
	ret.tools[ToolWebSearch] = tt
	return ret
}

func (w *WebSearchTools) GetTools() []Tool {
	ts := make([]Tool, 0, len(w.tools))
	for _, t := range w.tools {
		ts = append(ts, t)
	}
	return ts
}

type searchAPIRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// Search performs one search API round trip.
func (w *WebSearchTools) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	if req == nil || req.Query == "" {
		return nil, fmt.Errorf("web search: empty query")
	}
	body, err := json.Marshal(searchAPIRequest{Query: req.Query, MaxResults: w.opts.MaxResults})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.opts.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+w.opts.APIKey)

	resp, err := w.opts.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, abutil.WrapError(err, "web search request")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, abutil.WrapError(err, "web search read body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search: status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	var out SearchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, abutil.WrapError(err, "web search decode body")
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
