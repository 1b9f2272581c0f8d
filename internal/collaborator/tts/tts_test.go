// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package tts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubSynth struct {
	result Result
	err    error
}

func (s stubSynth) Synthesize(ctx context.Context, text string) (Result, error) {
	return s.result, s.err
}

func TestChainPrefersPrimaryWhenNonEmpty(t *testing.T) {
	c := Chain{
		Primary: stubSynth{result: Result{Audio: []byte("a"), Format: "ogg"}},
		Remote:  stubSynth{result: Result{Audio: []byte("b"), Format: "mp3"}},
	}
	result, err := c.Synthesize(context.Background(), "hi")
	assert.NoError(t, err)
	assert.Equal(t, []byte("a"), result.Audio)
}

func TestChainFallsBackToRemoteOnPrimaryFailure(t *testing.T) {
	c := Chain{
		Primary: stubSynth{err: errors.New("boom")},
		Remote:  stubSynth{result: Result{Audio: []byte("b"), Format: "mp3"}},
	}
	result, err := c.Synthesize(context.Background(), "hi")
	assert.NoError(t, err)
	assert.Equal(t, []byte("b"), result.Audio)
}

func TestChainErrorsWhenAllAttemptsFail(t *testing.T) {
	c := Chain{
		Primary: stubSynth{err: errors.New("boom")},
		Remote:  stubSynth{err: errors.New("boom")},
	}
	_, err := c.Synthesize(context.Background(), "hi")
	assert.Error(t, err)
}
