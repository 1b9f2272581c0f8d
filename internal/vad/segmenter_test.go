// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package vad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 48000
const frameSamples = 480 // 10ms at 48kHz

func frameAt(rms float64) []int16 {
	// A square wave alternating +/- amplitude yields RMS == amplitude/32768.
	amp := int16(rms * 32768)
	out := make([]int16, frameSamples)
	for i := range out {
		if i%2 == 0 {
			out[i] = amp
		} else {
			out[i] = -amp
		}
	}
	return out
}

func newClockAt(start time.Time) (Clock, *time.Time) {
	cur := start
	return func() time.Time { return cur }, &cur
}

func feedFrames(t *testing.T, s *Segmenter, cur *time.Time, rms float64, duration time.Duration) (Utterance, bool) {
	t.Helper()
	frameDur := 10 * time.Millisecond
	var last Utterance
	var ok bool
	for d := time.Duration(0); d < duration; d += frameDur {
		*cur = cur.Add(frameDur)
		u, got := s.Push(Frame{Samples: frameAt(rms), SampleRate: testSampleRate, ChannelCount: 1})
		if got {
			last, ok = u, true
		}
	}
	return last, ok
}

func TestVADMinimumUtteranceBelowThresholdIsDropped(t *testing.T) {
	start := time.Now()
	clock, cur := newClockAt(start)
	s := New(clock)

	feedFrames(t, s, cur, 0.020, 400*time.Millisecond)
	_, finalised := feedFrames(t, s, cur, 0.0, 3*time.Second)

	assert.False(t, finalised, "utterance shorter than the 500ms minimum must never be emitted")
}

func TestVADSilenceFinalisesUtterance(t *testing.T) {
	start := time.Now()
	clock, cur := newClockAt(start)
	s := New(clock)

	feedFrames(t, s, cur, 0.020, 800*time.Millisecond)
	u, finalised := feedFrames(t, s, cur, 0.001, 2100*time.Millisecond)

	require.True(t, finalised)
	assert.Equal(t, testSampleRate, u.SampleRate)

	gotMs := float64(len(u.Samples)) / float64(u.SampleRate) * 1000
	assert.GreaterOrEqual(t, gotMs, 800.0)
	// pre-roll adds up to 22 frames * 10ms = 220ms of extra context.
	assert.LessOrEqual(t, gotMs, 800.0+220.0+20.0)
}

func TestVADHardCapFinalisesAtEighteenSeconds(t *testing.T) {
	start := time.Now()
	clock, cur := newClockAt(start)
	s := New(clock)

	u, finalised := feedFrames(t, s, cur, 0.020, 18500*time.Millisecond)

	require.True(t, finalised)
	gotMs := float64(len(u.Samples)) / float64(u.SampleRate) * 1000
	assert.LessOrEqual(t, gotMs, 18000.0+20.0)
}

func TestVADRejectsOutOfRangeSampleRate(t *testing.T) {
	s := New(nil)
	_, finalised := s.Push(Frame{Samples: frameAt(0.02), SampleRate: 4000, ChannelCount: 1})
	assert.False(t, finalised)
}
