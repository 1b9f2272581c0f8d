// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package turnpipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridayvoice/bridge/internal/chatlog"
	"github.com/fridayvoice/bridge/internal/collaborator/tts"
	"github.com/fridayvoice/bridge/internal/logging"
	"github.com/fridayvoice/bridge/internal/signaling"
)

type fakeSTT struct{ text string }

func (f fakeSTT) Transcribe(ctx context.Context, wav []byte) (string, error) { return f.text, nil }

type fakeLLM struct {
	reply string
	err   error
}

func (f fakeLLM) Reply(ctx context.Context, transcript string) (string, error) { return f.reply, f.err }

type fakeTTS struct{}

func (fakeTTS) Synthesize(ctx context.Context, text string) (tts.Result, error) {
	return tts.Result{Audio: []byte("fake-audio"), Format: "ogg"}, nil
}

type fakeDecoder struct{}

func (fakeDecoder) Decode(ctx context.Context, blob []byte, format string) ([]byte, error) {
	return []byte{1, 0, 2, 0}, nil
}

type fakePacer struct {
	enqueued [][]int16
}

func (p *fakePacer) Enqueue(samples []int16) { p.enqueued = append(p.enqueued, samples) }

func waitForQueueEmpty(t *testing.T, w *Worker) {
	t.Helper()
	require.Eventually(t, func() bool { return w.QueueLen() == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond) // let processTurn finish its side effects
}

func newTestDeps(sttText, llmReply string) (Deps, *chatlog.Log, *signaling.Hub, *fakePacer) {
	log := chatlog.New()
	hub := signaling.New("friday-voice-bot-", nil)
	pacer := &fakePacer{}
	deps := Deps{
		STT:        fakeSTT{text: sttText},
		LLM:        fakeLLM{reply: llmReply},
		TTS:        fakeTTS{},
		Decoder:    fakeDecoder{},
		Pacer:      pacer,
		ChatLog:    log,
		Hub:        hub,
		Logger:     logging.NewNop(),
		RoomID:     "room-1",
		UserPeerID: "user-1",
		BotPeerID:  "friday-voice-bot-1",
	}
	return deps, log, hub, pacer
}

func TestWorkerAppendsUserAndAssistantEntriesAndPaces(t *testing.T) {
	deps, log, _, pacer := newTestDeps("hello there", "hi back")
	w := New(deps)
	defer w.Stop()

	w.Enqueue(Turn{Samples: make([]int16, 480), SampleRate: 48000})
	waitForQueueEmpty(t, w)

	history := log.History("room-1")
	require.Len(t, history, 2)
	assert.Equal(t, chatlog.RoleUser, history[0].Role)
	assert.Equal(t, "hello there", history[0].Message)
	assert.Equal(t, chatlog.RoleAssistant, history[1].Role)
	assert.Equal(t, "hi back", history[1].Message)

	require.Len(t, pacer.enqueued, 1)
}

func TestWorkerDropsEmptyTranscript(t *testing.T) {
	deps, log, _, pacer := newTestDeps("", "unused")
	w := New(deps)
	defer w.Stop()

	w.Enqueue(Turn{Samples: make([]int16, 480), SampleRate: 48000})
	waitForQueueEmpty(t, w)

	assert.Empty(t, log.History("room-1"))
	assert.Empty(t, pacer.enqueued)
}

func TestWorkerDedupDropsIdenticalTranscriptWithinWindow(t *testing.T) {
	deps, log, _, _ := newTestDeps("hello", "hi")
	w := New(deps)
	defer w.Stop()

	w.Enqueue(Turn{Samples: make([]int16, 480), SampleRate: 48000})
	waitForQueueEmpty(t, w)
	w.Enqueue(Turn{Samples: make([]int16, 480), SampleRate: 48000})
	waitForQueueEmpty(t, w)

	// Exactly one user+assistant pair should have been appended; the
	// second identical turn is dropped as a duplicate.
	assert.Len(t, log.History("room-1"), 2)
}

func TestWorkerUsesFallbackReplyOnLLMFailure(t *testing.T) {
	deps, log, _, _ := newTestDeps("hello", "")
	deps.LLM = fakeLLM{err: assert.AnError}
	w := New(deps)
	defer w.Stop()

	w.Enqueue(Turn{Samples: make([]int16, 480), SampleRate: 48000})
	waitForQueueEmpty(t, w)

	history := log.History("room-1")
	require.Len(t, history, 2)
	assert.Equal(t, "Comms degraded. Retry in a moment.", history[1].Message)
}

func TestEnqueueEvictsOldestBeyondBound(t *testing.T) {
	deps, _, _, _ := newTestDeps("", "")
	w := &Worker{deps: deps, wake: make(chan struct{}, 1), stopCh: make(chan struct{})}
	for i := 0; i < 5; i++ {
		w.Enqueue(Turn{SampleRate: 48000})
	}
	assert.Equal(t, maxQueue, w.QueueLen())
}
