// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package turnpipeline implements the per-session serial turn worker:
// STT -> dedup -> LLM -> TTS -> decode -> pacer -> publish, single-flight
// per session because one drain goroutine processes every turn.
package turnpipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fridayvoice/bridge/internal/audio"
	"github.com/fridayvoice/bridge/internal/chatlog"
	"github.com/fridayvoice/bridge/internal/collaborator/decoder"
	"github.com/fridayvoice/bridge/internal/collaborator/llm"
	"github.com/fridayvoice/bridge/internal/collaborator/stt"
	"github.com/fridayvoice/bridge/internal/collaborator/tts"
	"github.com/fridayvoice/bridge/internal/logging"
	"github.com/fridayvoice/bridge/internal/metrics"
	"github.com/fridayvoice/bridge/internal/signaling"
)

// maxQueue is the turn queue bound; the oldest turn is evicted on
// overflow.
const maxQueue = 3

// dedupWindow is how long an identical consecutive transcript is
// suppressed.
const dedupWindow = 2500 * time.Millisecond

// Turn is one finalised utterance awaiting the pipeline.
type Turn struct {
	Samples    []int16
	SampleRate int
}

// PlaybackSink receives decoded PCM for the outbound playback pacer.
type PlaybackSink interface {
	Enqueue(samples []int16)
}

// AssistantEventPayload is the metadata-only payload published alongside
// a turn's reply; audio travels over the media track, not this event.
type AssistantEventPayload struct {
	TurnID         string         `json:"turnId"`
	UserEntry      chatlog.Entry  `json:"userEntry"`
	Reply          chatlog.Entry  `json:"reply"`
	AudioBase64    *string        `json:"audioBase64"`
	AudioMimeType  *string        `json:"audioMimeType"`
}

// Deps bundles the collaborators and shared resources one session's
// worker needs.
type Deps struct {
	STT     stt.Transcriber
	LLM     llm.Client
	TTS     tts.Synthesizer
	Decoder decoder.Decoder
	Pacer   PlaybackSink
	ChatLog *chatlog.Log
	Hub     *signaling.Hub
	Logger  logging.Logger
	Metrics *metrics.Counters

	RoomID     string
	UserPeerID string
	BotPeerID  string

	Clock func() time.Time
}

// Worker drains one session's turn queue on a dedicated goroutine,
// reentrance-guarded by construction (only this goroutine ever calls
// processTurn).
type Worker struct {
	deps Deps

	queueMu sync.Mutex
	queue   []Turn

	wake   chan struct{}
	stopCh chan struct{}

	lastTranscript   string
	lastTranscriptAt time.Time
}

// New constructs a Worker and starts its drain goroutine.
func New(deps Deps) *Worker {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	w := &Worker{deps: deps, wake: make(chan struct{}, 1), stopCh: make(chan struct{})}
	go w.run()
	return w
}

// Enqueue appends a turn, evicting the oldest on overflow, and wakes the
// drain loop.
func (w *Worker) Enqueue(t Turn) {
	w.queueMu.Lock()
	w.queue = append(w.queue, t)
	if len(w.queue) > maxQueue {
		w.queue = w.queue[len(w.queue)-maxQueue:]
	}
	w.queueMu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// QueueLen reports the current queue depth, for tests and invariants.
func (w *Worker) QueueLen() int {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()
	return len(w.queue)
}

// Stop halts the drain goroutine. Idempotent via closed-channel panic
// avoidance is the caller's responsibility: call once per session
// teardown.
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) run() {
	for {
		select {
		case <-w.stopCh:
			return
		case <-w.wake:
			w.drain()
		}
	}
}

func (w *Worker) drain() {
	for {
		turn, ok := w.dequeue()
		if !ok {
			return
		}
		w.processTurn(context.Background(), turn)
	}
}

func (w *Worker) dequeue() (Turn, bool) {
	w.queueMu.Lock()
	defer w.queueMu.Unlock()
	if len(w.queue) == 0 {
		return Turn{}, false
	}
	t := w.queue[0]
	w.queue = w.queue[1:]
	return t, true
}

func (w *Worker) processTurn(ctx context.Context, turn Turn) {
	pcmBytes := audio.SamplesToBytes(turn.Samples)
	wav, err := audio.PackWAV(pcmBytes, turn.SampleRate)
	if err != nil {
		w.deps.Logger.Warnw("turnpipeline: failed to package WAV", "error", err)
		return
	}

	transcript, err := w.deps.STT.Transcribe(ctx, wav)
	if err != nil {
		w.deps.Logger.Warnw("turnpipeline: stt chain error", "error", err)
	}
	if transcript == "" {
		w.bumpDropped(ctx)
		w.deps.Hub.PublishSystem(w.deps.RoomID, w.deps.UserPeerID, signaling.SystemTranscriptionEmpty)
		return
	}

	now := w.deps.Clock()
	if transcript == w.lastTranscript && now.Sub(w.lastTranscriptAt) < dedupWindow {
		w.bumpDropped(ctx)
		return
	}
	w.lastTranscript = transcript
	w.lastTranscriptAt = now

	userEntry := chatlog.Entry{Role: chatlog.RoleUser, Message: transcript, Timestamp: now}
	w.deps.ChatLog.Add(w.deps.RoomID, userEntry)

	reply, err := w.deps.LLM.Reply(ctx, transcript)
	if err != nil {
		w.deps.Logger.Warnw("turnpipeline: llm error, using fallback reply", "error", err)
		reply = llm.FallbackReply
		if w.deps.Metrics != nil {
			w.deps.Metrics.FallbackLLM.Add(ctx, 1)
		}
	}

	assistantEntry := chatlog.Entry{Role: chatlog.RoleAssistant, Message: reply, Timestamp: w.deps.Clock()}
	w.deps.ChatLog.Add(w.deps.RoomID, assistantEntry)

	w.synthesizeAndPace(ctx, reply)

	if w.deps.Metrics != nil {
		w.deps.Metrics.TurnsProcessed.Add(ctx, 1)
	}

	w.deps.Hub.Publish(signaling.SignalEvent{
		Type:   signaling.EventAssistant,
		From:   w.deps.BotPeerID,
		To:     w.deps.UserPeerID,
		RoomID: w.deps.RoomID,
		Payload: AssistantEventPayload{
			TurnID:    uuid.NewString(),
			UserEntry: userEntry,
			Reply:     assistantEntry,
		},
	})
}

func (w *Worker) bumpDropped(ctx context.Context) {
	if w.deps.Metrics != nil {
		w.deps.Metrics.TurnsDropped.Add(ctx, 1)
	}
}

func (w *Worker) synthesizeAndPace(ctx context.Context, reply string) {
	result, err := w.deps.TTS.Synthesize(ctx, reply)
	if err != nil {
		w.deps.Logger.Warnw("turnpipeline: tts chain failed, skipping playback", "error", err)
		if w.deps.Metrics != nil {
			w.deps.Metrics.FallbackTTS.Add(ctx, 1)
		}
		return
	}

	pcm, err := w.deps.Decoder.Decode(ctx, result.Audio, result.Format)
	if err != nil {
		w.deps.Logger.Warnw("turnpipeline: decode failed, skipping playback", "error", err)
		return
	}

	w.deps.Pacer.Enqueue(audio.BytesToSamples(pcm))
}
