// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package pacer

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	frames [][]int16
	failAt int // fail on the Nth PushFrame call (1-indexed); 0 = never
	calls  int
}

func (r *recordingSink) PushFrame(samples []int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAt != 0 && r.calls == r.failAt {
		return errors.New("sink rejected frame")
	}
	cp := make([]int16, len(samples))
	copy(cp, samples)
	r.frames = append(r.frames, cp)
	return nil
}

func (r *recordingSink) snapshot() [][]int16 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]int16, len(r.frames))
	copy(out, r.frames)
	return out
}

func TestPacerEmitsFixedSizeFrames(t *testing.T) {
	sink := &recordingSink{}
	p := New(sink, nil)

	samples := make([]int16, 1000)
	for i := range samples {
		samples[i] = int16(i)
	}
	p.Enqueue(samples)

	require.Eventually(t, func() bool { return len(sink.snapshot()) >= 3 }, time.Second, 5*time.Millisecond)

	for _, f := range sink.snapshot() {
		assert.Len(t, f, FrameSamples)
	}
}

func TestPacerZeroPadsShortTail(t *testing.T) {
	sink := &recordingSink{}
	p := New(sink, nil)

	p.Enqueue([]int16{1, 2, 3})

	require.Eventually(t, func() bool { return len(sink.snapshot()) >= 1 }, time.Second, 5*time.Millisecond)

	frame := sink.snapshot()[0]
	require.Len(t, frame, FrameSamples)
	assert.Equal(t, int16(1), frame[0])
	assert.Equal(t, int16(2), frame[1])
	assert.Equal(t, int16(3), frame[2])
	for _, s := range frame[3:] {
		assert.Equal(t, int16(0), s)
	}
}

func TestPacerStopsOnSinkFailure(t *testing.T) {
	sink := &recordingSink{failAt: 1}
	p := New(sink, nil)

	p.Enqueue(make([]int16, FrameSamples*3))

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return !p.running
	}, time.Second, 5*time.Millisecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Empty(t, p.queue)
}

func TestPacerStopIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	p := New(sink, nil)
	p.Enqueue(make([]int16, FrameSamples))

	assert.NotPanics(t, func() {
		p.Stop()
		p.Stop()
	})
}
