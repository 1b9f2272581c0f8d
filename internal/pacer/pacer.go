// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package pacer implements the per-session playback pacer: a steady
// wall-clock ticker that drains queued PCM into fixed-duration frames for
// the outbound WebRTC audio source, adapted from the teacher's Opus/20ms
// ticker-paced output writer to raw PCM at 10ms/480 samples.
package pacer

import (
	"sync"
	"time"

	"github.com/fridayvoice/bridge/internal/logging"
)

const (
	// SampleRate is the fixed outbound playback sample rate.
	SampleRate = 48000
	// FrameDuration is the wall-clock cadence of one emitted frame.
	FrameDuration = 10 * time.Millisecond
	// FrameSamples is the sample count of each emitted frame.
	FrameSamples = 480
)

// Sink receives one paced PCM-16 mono frame. Implementations are expected
// to push the frame into the WebRTC audio source.
type Sink interface {
	PushFrame(samples []int16) error
}

type queueItem struct {
	samples []int16
	cursor  int
}

// Pacer owns the outbound playback queue for one session. It is
// single-flight: at most one ticker goroutine runs at a time.
type Pacer struct {
	mu      sync.Mutex
	queue   []*queueItem
	running bool
	stopCh  chan struct{}

	sink   Sink
	logger logging.Logger
}

// New creates a Pacer that pushes paced frames to sink.
func New(sink Sink, logger logging.Logger) *Pacer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pacer{sink: sink, logger: logger}
}

// Enqueue appends a queued item of arbitrary length PCM-16 mono samples at
// SampleRate. Enqueuing non-empty audio auto-starts the pacer if it is
// idle.
func (p *Pacer) Enqueue(samples []int16) {
	if len(samples) == 0 {
		return
	}

	p.mu.Lock()
	p.queue = append(p.queue, &queueItem{samples: samples})
	shouldStart := !p.running
	if shouldStart {
		p.running = true
		p.stopCh = make(chan struct{})
	}
	stopCh := p.stopCh
	p.mu.Unlock()

	if shouldStart {
		go p.run(stopCh)
	}
}

// Stop halts the ticker and clears the queue, idempotently.
func (p *Pacer) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.queue = nil
	stopCh := p.stopCh
	p.mu.Unlock()
	close(stopCh)
}

func (p *Pacer) run(stopCh chan struct{}) {
	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			frame, empty := p.nextFrame()
			if empty {
				p.finishIfDrained(stopCh)
				return
			}
			if err := p.sink.PushFrame(frame); err != nil {
				p.logger.Warnw("pacer: audio source rejected frame, stopping", "error", err)
				p.clearAndStop(stopCh)
				return
			}
		}
	}
}

// nextFrame advances the queue by exactly one FrameSamples worth of audio,
// zero-padding short tails. empty is true when the queue has nothing left.
func (p *Pacer) nextFrame() (frame []int16, empty bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return nil, true
	}

	out := make([]int16, FrameSamples)
	item := p.queue[0]
	remaining := len(item.samples) - item.cursor
	take := remaining
	if take > FrameSamples {
		take = FrameSamples
	}
	copy(out[:take], item.samples[item.cursor:item.cursor+take])
	item.cursor += take

	if item.cursor >= len(item.samples) {
		p.queue = p.queue[1:]
	}
	// A short tail is zero-padded by make() rather than topped up from the
	// next queued item: the next item always starts on the following tick.
	return out, false
}

func (p *Pacer) finishIfDrained(stopCh chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh != stopCh {
		return // a concurrent Stop/restart already replaced this run
	}
	p.running = false
}

func (p *Pacer) clearAndStop(stopCh chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopCh == stopCh {
		p.running = false
		p.queue = nil
	}
}
