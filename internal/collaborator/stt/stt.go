// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package stt provides the speech-to-text collaborator chain: a local
// binary runner tried first, falling back to a remote multipart-upload
// service tried across each configured model, matching the transcription
// fallback discipline of the turn pipeline.
package stt

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	primaryTimeout = 30 * time.Second
	remoteTimeout  = 30 * time.Second
)

// Transcriber turns a WAV buffer into text. An empty transcript may come
// back with or without an error (RemoteClient reports one when every model
// yields nothing); callers treat "" as failure to try the next fallback.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// LocalRunner invokes a local STT binary with the path to a container
// file, reading the transcript from standard output.
type LocalRunner struct {
	BinaryPath string
}

func (r LocalRunner) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if r.BinaryPath == "" {
		return "", fmt.Errorf("stt: no local binary configured")
	}

	ctx, cancel := context.WithTimeout(ctx, primaryTimeout)
	defer cancel()

	path, cleanup, err := writeTempFile("friday-stt-*.wav", wav)
	if err != nil {
		return "", fmt.Errorf("stt: writing temp input: %w", err)
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, r.BinaryPath, path)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("stt: local binary: %w", err)
	}
	return string(bytes.TrimSpace(out)), nil
}

// RemoteClient multipart-uploads audio to a remote transcription
// endpoint, trying each configured model until one yields non-empty
// text.
type RemoteClient struct {
	BaseURL string
	APIKey  string
	Models  []string
	client  *resty.Client
}

// NewRemoteClient builds a RemoteClient over a shared resty client.
func NewRemoteClient(baseURL, apiKey string, models []string) *RemoteClient {
	return &RemoteClient{BaseURL: baseURL, APIKey: apiKey, Models: models, client: resty.New()}
}

type remoteTranscriptResponse struct {
	Text string `json:"text"`
}

func (r *RemoteClient) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if r.BaseURL == "" {
		return "", fmt.Errorf("stt: no remote endpoint configured")
	}

	for _, model := range r.Models {
		text, err := r.transcribeWithModel(ctx, wav, model)
		if err != nil {
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("stt: all remote models yielded no transcript")
}

func (r *RemoteClient) transcribeWithModel(ctx context.Context, wav []byte, model string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	var result remoteTranscriptResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(r.APIKey).
		SetFileReader("audio", "utterance.wav", bytes.NewReader(wav)).
		SetFormData(map[string]string{"model": model}).
		SetResult(&result).
		Post(r.BaseURL)
	if err != nil {
		return "", fmt.Errorf("stt: remote request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("stt: remote status %d", resp.StatusCode())
	}
	return result.Text, nil
}

// Chain tries primary first, then remote, returning the first non-empty
// transcript.
type Chain struct {
	Primary Transcriber
	Remote  Transcriber
}

func (c Chain) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if c.Primary != nil {
		if text, err := c.Primary.Transcribe(ctx, wav); err == nil && text != "" {
			return text, nil
		}
	}
	if c.Remote != nil {
		if text, err := c.Remote.Transcribe(ctx, wav); err == nil && text != "" {
			return text, nil
		}
	}
	return "", nil
}

func writeTempFile(pattern string, data []byte) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, err
	}
	path = f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", nil, err
	}
	return path, func() { os.Remove(path) }, nil
}
