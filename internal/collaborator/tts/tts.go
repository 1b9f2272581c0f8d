// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package tts provides the text-to-speech collaborator chain: a local
// binary runner tried first, falling back to a remote JSON synthesis
// service, mirroring the STT chain's fallback discipline.
package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fridayvoice/bridge/internal/normalizers"
)

const (
	primaryTimeout = 30 * time.Second
	remoteTimeout  = 30 * time.Second
)

// Result is a synthesised audio blob plus its container format tag
// (e.g. "ogg", "mp3"), ready for the media-decoder collaborator.
type Result struct {
	Audio  []byte
	Format string
}

// Synthesizer turns reply text into speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Result, error)
}

// LocalRunner invokes a local TTS binary with text and an output path,
// reading back the container file it writes.
type LocalRunner struct {
	BinaryPath string
	Format     string // default "ogg" per the collaborator contract
}

func (r LocalRunner) Synthesize(ctx context.Context, text string) (Result, error) {
	if r.BinaryPath == "" {
		return Result{}, fmt.Errorf("tts: no local binary configured")
	}

	format := r.Format
	if format == "" {
		format = "ogg"
	}

	ctx, cancel := context.WithTimeout(ctx, primaryTimeout)
	defer cancel()

	outFile, err := os.CreateTemp("", "friday-tts-*."+format)
	if err != nil {
		return Result{}, fmt.Errorf("tts: creating temp output: %w", err)
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, r.BinaryPath, normalizers.ForSpeech(text), outPath)
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("tts: local binary: %w", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return Result{}, fmt.Errorf("tts: reading local output: %w", err)
	}
	return Result{Audio: data, Format: format}, nil
}

// RemoteClient POSTs JSON {model, voice, input, response_format} to a
// remote synthesis endpoint and returns the raw audio bytes.
type RemoteClient struct {
	BaseURL        string
	APIKey         string
	Model          string
	Voice          string
	ResponseFormat string
	client         *resty.Client
}

// NewRemoteClient builds a RemoteClient over a shared resty client.
func NewRemoteClient(baseURL, apiKey, model, voice, responseFormat string) *RemoteClient {
	return &RemoteClient{
		BaseURL: baseURL, APIKey: apiKey, Model: model, Voice: voice,
		ResponseFormat: responseFormat, client: resty.New(),
	}
}

type remoteSynthesisRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

func (r *RemoteClient) Synthesize(ctx context.Context, text string) (Result, error) {
	if r.BaseURL == "" {
		return Result{}, fmt.Errorf("tts: no remote endpoint configured")
	}

	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(r.APIKey).
		SetBody(remoteSynthesisRequest{
			Model:          r.Model,
			Voice:          r.Voice,
			Input:          normalizers.ForSpeech(text),
			ResponseFormat: r.ResponseFormat,
		}).
		Post(r.BaseURL)
	if err != nil {
		return Result{}, fmt.Errorf("tts: remote request: %w", err)
	}
	if resp.IsError() {
		return Result{}, fmt.Errorf("tts: remote status %d", resp.StatusCode())
	}

	format := r.ResponseFormat
	if format == "" {
		format = "mp3"
	}
	return Result{Audio: bytes.Clone(resp.Body()), Format: format}, nil
}

// Chain tries the local binary first, falling back to the remote
// service.
type Chain struct {
	Primary Synthesizer
	Remote  Synthesizer
}

func (c Chain) Synthesize(ctx context.Context, text string) (Result, error) {
	if c.Primary != nil {
		if result, err := c.Primary.Synthesize(ctx, text); err == nil && len(result.Audio) > 0 {
			return result, nil
		}
	}
	if c.Remote != nil {
		if result, err := c.Remote.Synthesize(ctx, text); err == nil && len(result.Audio) > 0 {
			return result, nil
		}
	}
	return Result{}, fmt.Errorf("tts: all synthesis attempts failed")
}
