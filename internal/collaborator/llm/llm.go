// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package llm provides the turn pipeline's reply collaborator: a bearer-
// token JSON endpoint per the external-interfaces contract, plus
// openai-go and anthropic-sdk-go backed alternates selectable by
// configuration.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-resty/resty/v2"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
)

const requestTimeout = 30 * time.Second

// Client produces a reply to a transcript.
type Client interface {
	Reply(ctx context.Context, transcript string) (string, error)
}

// HTTPClient implements the spec's generic LLM collaborator interface:
// POST JSON {model, input} with a bearer token and an opaque session
// header; response output[0].content[0].text.
type HTTPClient struct {
	Endpoint     string
	APIKey       string
	Model        string
	SessionKey   string
	SessionValue string
	client       *resty.Client
}

// NewHTTPClient builds an HTTPClient over a shared resty client.
func NewHTTPClient(endpoint, apiKey, model, sessionKey, sessionValue string) *HTTPClient {
	return &HTTPClient{
		Endpoint: endpoint, APIKey: apiKey, Model: model,
		SessionKey: sessionKey, SessionValue: sessionValue, client: resty.New(),
	}
}

type httpRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type httpContent struct {
	Text string `json:"text"`
}

type httpOutput struct {
	Content []httpContent `json:"content"`
}

type httpResponse struct {
	Output []httpOutput `json:"output"`
}

func (c *HTTPClient) Reply(ctx context.Context, transcript string) (string, error) {
	if c.Endpoint == "" {
		return "", fmt.Errorf("llm: no endpoint configured")
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var result httpResponse
	req := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.APIKey).
		SetBody(httpRequest{Model: c.Model, Input: transcript}).
		SetResult(&result)
	if c.SessionKey != "" {
		req.SetHeader(c.SessionKey, c.SessionValue)
	}

	resp, err := req.Post(c.Endpoint)
	if err != nil {
		return "", fmt.Errorf("llm: request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("llm: status %d", resp.StatusCode())
	}
	if len(result.Output) == 0 || len(result.Output[0].Content) == 0 {
		return "", fmt.Errorf("llm: empty response shape")
	}
	return result.Output[0].Content[0].Text, nil
}

// OpenAIClient is an alternate backend using the chat-completions API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient builds an OpenAIClient for the given model.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(openaioption.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *OpenAIClient) Reply(ctx context.Context, transcript string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(transcript),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: openai request: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("llm: openai returned no choices")
	}
	return completion.Choices[0].Message.Content, nil
}

// AnthropicClient is an alternate backend using the Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClient builds an AnthropicClient for the given model.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

func (c *AnthropicClient) Reply(ctx context.Context, transcript string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(transcript)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: anthropic request: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("llm: anthropic returned no content")
	}
	return message.Content[0].Text, nil
}

// FallbackReply is the literal substitute used when every LLM attempt
// fails, per the turn pipeline contract.
const FallbackReply = "Comms degraded. Retry in a moment."
