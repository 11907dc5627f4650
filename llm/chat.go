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
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/artechne/altauthor/internal/log"
	"github.com/artechne/altauthor/internal/utils"
)

var _ Generator = (*Chat)(nil)

// Chat is a plain (non-agentic) chat caller with bounded retry, exponential
// backoff and optional process-wide rate limiting in front of the model.
type Chat struct {
	model   ChatModel
	retries int
	timeout time.Duration
	limiter *rate.Limiter
}

type ChatOptions struct {
	Retries int           // default: 3
	Timeout time.Duration // per-attempt timeout, default: 60s
	Limiter *rate.Limiter // shared across callers; nil disables limiting
}

func NewChat(model ChatModel, opts ChatOptions) *Chat {
	if opts.Retries == 0 {
		opts.Retries = 3
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Chat{
		model:   model,
		retries: opts.Retries,
		timeout: opts.Timeout,
		limiter: opts.Limiter,
	}
}

// Generate implements Generator. It retries transient transport failures and
// gives up immediately on anything else.
func (c *Chat) Generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			log.Info("retrying chat call (attempt %d/%d)...", attempt+1, c.retries+1)
			sleepBackoff(attempt)
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", utils.WrapError(err, "chat rate limit wait")
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		out, err := c.model.Generate(attemptCtx, msgs)
		cancel()
		if err == nil {
			return out.Content, nil
		}

		lastErr = err
		if !isRetryable(err) {
			log.Error("non-retryable chat error: %v", err)
			return "", utils.WrapError(err, "chat call")
		}
		log.Info("retryable chat error (attempt %d/%d): %v", attempt+1, c.retries+1, err)
	}
	return "", utils.WrapError(fmt.Errorf("failed after %d attempts: %w", c.retries+1, lastErr), "chat call")
}

// sleepBackoff waits 1s, 2s, 4s... capped at 10s.
func sleepBackoff(attempt int) {
	wait := time.Duration(1<<uint(attempt-1)) * time.Second
	if wait > 10*time.Second {
		wait = 10 * time.Second
	}
	time.Sleep(wait)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "operation timed out") ||
		strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "read tcp") ||
		strings.Contains(errStr, "write tcp") ||
		strings.Contains(errStr, "429")
}

// UserMessageWithImage builds a multimodal user message: prompt text plus an
// embeddable image reference (remote URL or data URI).
func UserMessageWithImage(text, imageURL string) *schema.Message {
	return &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{
				Type: schema.ChatMessagePartTypeText,
				Text: text,
			},
			{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:    imageURL,
					Detail: schema.ImageURLDetailAuto,
				},
			},
		},
	}
}
