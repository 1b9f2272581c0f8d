// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package stt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	return s.text, s.err
}

func TestChainPrefersPrimaryWhenNonEmpty(t *testing.T) {
	c := Chain{
		Primary: stubTranscriber{text: "hello"},
		Remote:  stubTranscriber{text: "world"},
	}
	text, err := c.Transcribe(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestChainFallsBackToRemoteOnEmptyPrimary(t *testing.T) {
	c := Chain{
		Primary: stubTranscriber{text: ""},
		Remote:  stubTranscriber{text: "world"},
	}
	text, err := c.Transcribe(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, "world", text)
}

func TestChainFallsBackToRemoteOnPrimaryError(t *testing.T) {
	c := Chain{
		Primary: stubTranscriber{err: errors.New("boom")},
		Remote:  stubTranscriber{text: "world"},
	}
	text, err := c.Transcribe(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, "world", text)
}

func TestChainReturnsEmptyWhenAllAttemptsFail(t *testing.T) {
	c := Chain{
		Primary: stubTranscriber{err: errors.New("boom")},
		Remote:  stubTranscriber{err: errors.New("boom")},
	}
	text, err := c.Transcribe(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, text)
}
