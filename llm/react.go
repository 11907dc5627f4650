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

package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/artechne/altauthor/internal/log"
	"github.com/artechne/altauthor/internal/utils"
)

var _ Generator = (*ReactAgent)(nil)

// ReactAgent wraps an eino ReAct agent with a bounded tool-call loop,
// retry with backoff, and per-attempt timeouts.
type ReactAgent struct {
	opts ReactAgentOptions
	*react.Agent
	retries int
	timeout time.Duration
}

type ReactAgentOptions struct {
	SysPrompt string `json:"-"`
	*react.AgentConfig
	Retries int           `json:"retries"` // Number of retries, default: 3
	Timeout time.Duration `json:"timeout"` // Request timeout, default: 120s
}

func NewReactAgent(name string, opts ReactAgentOptions) *ReactAgent {
	if opts.AgentConfig.MessageModifier == nil {
		opts.AgentConfig.MessageModifier = newMessageModifier(opts.SysPrompt, name, opts.AgentConfig.MaxStep)
	}
	ag, err := react.NewAgent(context.Background(), opts.AgentConfig)
	if err != nil {
		panic(err)
	}
	retries := opts.Retries
	if retries == 0 {
		retries = 3
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &ReactAgent{
		opts:    opts,
		Agent:   ag,
		retries: retries,
		timeout: timeout,
	}
}

// newMessageModifier prepends the system prompt and, near the step limit,
// instructs the model to answer without further tool calls.
func newMessageModifier(sysPrompt string, name string, limit int) func(ctx context.Context, input []*schema.Message) []*schema.Message {
	return func(ctx context.Context, input []*schema.Message) []*schema.Message {
		log.Debug("messageModifier, agent: %v, limit: %d, input: %v", name, limit, len(input))
		if limit > 0 && len(input) >= limit-1 {
			input = append(input, schema.UserMessage("The tool-call budget is exhausted. Answer now with your final response and do not call any more tools."))
		}
		res := make([]*schema.Message, 0, len(input)+1)
		res = append(res, schema.SystemMessage(sysPrompt))
		res = append(res, input...)
		return res
	}
}

// Generate implements Generator. Messages may carry multimodal content such
// as image parts.
func (p *ReactAgent) Generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			log.Info("retrying agent call (attempt %d/%d)...", attempt+1, p.retries+1)
			sleepBackoff(attempt)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		out, err := p.Agent.Generate(attemptCtx, msgs, agent.WithComposeOptions(compose.WithCallbacks(CallbackHandler{})))
		cancel()
		if err == nil {
			return out.Content, nil
		}

		lastErr = err
		if !isRetryable(err) {
			log.Error("non-retryable agent error: %v", err)
			return "", utils.WrapError(err, "react agent call")
		}
		log.Info("retryable agent error (attempt %d/%d): %v", attempt+1, p.retries+1, err)
	}
	return "", utils.WrapError(fmt.Errorf("failed after %d attempts: %w", p.retries+1, lastErr), "react agent call")
}

type CallbackHandler struct{}

var _ callbacks.Handler = (*CallbackHandler)(nil)

func (h CallbackHandler) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	log.Debug("<OnStart> %+v", info)
	return ctx
}

func (h CallbackHandler) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	log.Debug("<OnEnd> %+v output: %v", info, output)
	return ctx
}

func (h CallbackHandler) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	log.Error("<OnError> %+v err: %v", info, err)
	return ctx
}

func (h CallbackHandler) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	return ctx
}

func (h CallbackHandler) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	return ctx
}
