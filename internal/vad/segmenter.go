// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package vad implements the per-session voice-activity-detection and
// turn-segmentation engine: a dual-threshold RMS detector with silence
// hangover and a pre-roll ring, adapted from the frame-count hysteresis
// pattern used by boundary detectors in streaming VAD services to the
// RMS + wall-clock hysteresis this bridge's collaborators require.
package vad

import (
	"time"

	"github.com/fridayvoice/bridge/internal/audio"
)

const (
	// StartThreshold is the RMS level (normalised, full scale = 1.0) that
	// transitions an idle segmenter into speech.
	StartThreshold = 0.015
	// HoldThreshold is the lower RMS level that refreshes lastVoiceAt once
	// already in speech, giving the detector hysteresis against dropouts.
	HoldThreshold = 0.008

	// SilenceHangover is how long RMS must stay below HoldThreshold before
	// an utterance at or above MinUtterance finalises.
	SilenceHangover = 2000 * time.Millisecond
	// MinUtterance is the shortest speech span that is ever emitted.
	MinUtterance = 500 * time.Millisecond
	// MaxUtterance forces finalisation regardless of continued speech.
	MaxUtterance = 18000 * time.Millisecond

	// PreRollFrames is the number of frames retained from just before
	// speech is detected, so word onsets are not clipped. The duration
	// depends on the inbound frame size: 220 ms at 10 ms frames.
	PreRollFrames = 22

	minSampleRate = 8000
	maxSampleRate = 96000
)

// Frame is one inbound chunk of audio delivered by the WebRTC audio sink.
type Frame struct {
	Samples      []int16
	SampleRate   int
	ChannelCount int
}

// Utterance is a finalised, contiguous span of speech ready for the turn
// pipeline.
type Utterance struct {
	Samples    []int16
	SampleRate int
}

// Clock abstracts time.Now so tests can drive the segmenter with synthetic
// timestamps instead of real wall-clock time.
type Clock func() time.Time

// Segmenter holds the VAD state for exactly one session. It is not safe
// for concurrent use; callers serialise frames through a single audio
// callback per session, per the ownership model.
type Segmenter struct {
	clock Clock

	inSpeech           bool
	lastVoiceAt        time.Time
	utteranceStartedAt time.Time
	utteranceSampleRate int

	preRoll          [][]int16
	utteranceBuf     [][]int16
	utteranceSamples int
	// speechEndSamples is utteranceSamples as of the last frame that held
	// rms at or above HoldThreshold. Frames buffered after this point are
	// trailing silence kept only to measure the hangover, and are trimmed
	// off the utterance at finalisation.
	speechEndSamples int
}

// New creates an idle Segmenter. A nil clock defaults to time.Now.
func New(clock Clock) *Segmenter {
	if clock == nil {
		clock = time.Now
	}
	return &Segmenter{clock: clock}
}

// Reset returns the segmenter to its idle state, discarding any in-flight
// utterance. It does not clear the pre-roll ring, matching the source
// behaviour of preserving recent context across utterance boundaries.
func (s *Segmenter) Reset() {
	s.inSpeech = false
	s.utteranceBuf = nil
	s.utteranceSamples = 0
	s.utteranceSampleRate = 0
	s.speechEndSamples = 0
}

// Push feeds one inbound frame to the segmenter. It returns a finalised
// Utterance when this frame completes one, or ok=false otherwise.
func (s *Segmenter) Push(f Frame) (Utterance, bool) {
	if f.SampleRate < minSampleRate || f.SampleRate > maxSampleRate {
		return Utterance{}, false
	}

	channels := f.ChannelCount
	if channels <= 0 {
		channels = 1
	}
	mono := audio.Downmix(f.Samples, channels)

	s.pushPreRoll(mono)

	rms := audio.RMS(mono)
	now := s.clock()

	if !s.inSpeech && rms >= StartThreshold {
		s.startUtterance(f.SampleRate, now)
	}

	if !s.inSpeech {
		return Utterance{}, false
	}

	s.appendUtteranceFrame(mono)
	if rms >= HoldThreshold {
		s.lastVoiceAt = now
		s.speechEndSamples = s.utteranceSamples
	}

	return s.evaluateFinalisation(now)
}

func (s *Segmenter) startUtterance(sampleRate int, now time.Time) {
	s.inSpeech = true
	s.utteranceSampleRate = sampleRate
	s.utteranceStartedAt = now
	s.lastVoiceAt = now

	s.utteranceBuf = make([][]int16, 0, len(s.preRoll)+1)
	for _, frame := range s.preRoll {
		cp := make([]int16, len(frame))
		copy(cp, frame)
		s.utteranceBuf = append(s.utteranceBuf, cp)
		s.utteranceSamples += len(cp)
	}
	s.speechEndSamples = s.utteranceSamples
}

func (s *Segmenter) appendUtteranceFrame(mono []int16) {
	cp := make([]int16, len(mono))
	copy(cp, mono)
	s.utteranceBuf = append(s.utteranceBuf, cp)
	s.utteranceSamples += len(cp)
}

func (s *Segmenter) pushPreRoll(mono []int16) {
	cp := make([]int16, len(mono))
	copy(cp, mono)
	s.preRoll = append(s.preRoll, cp)
	if len(s.preRoll) > PreRollFrames {
		s.preRoll = s.preRoll[len(s.preRoll)-PreRollFrames:]
	}
}

func (s *Segmenter) evaluateFinalisation(now time.Time) (Utterance, bool) {
	elapsed := now.Sub(s.utteranceStartedAt)
	speechMs := s.lastVoiceAt.Sub(s.utteranceStartedAt)
	silence := now.Sub(s.lastVoiceAt)

	// The utterance always resets once it times out, even if too short to
	// enqueue: a too-short blip followed by lingering silence must return
	// the segmenter to idle rather than keep buffering toward MaxUtterance.
	if elapsed < MaxUtterance && silence < SilenceHangover {
		return Utterance{}, false
	}

	enqueue := speechMs >= MinUtterance
	var samples []int16
	var sampleRate int
	if enqueue {
		samples = s.trimmedSamples()
		sampleRate = s.utteranceSampleRate
	}

	s.Reset()
	if !enqueue {
		return Utterance{}, false
	}
	return Utterance{Samples: samples, SampleRate: sampleRate}, true
}

// trimmedSamples returns the buffered utterance cut off at speechEndSamples,
// dropping the trailing silence accumulated while waiting out the hangover.
func (s *Segmenter) trimmedSamples() []int16 {
	out := make([]int16, 0, s.speechEndSamples)
	for _, frame := range s.utteranceBuf {
		remaining := s.speechEndSamples - len(out)
		if remaining <= 0 {
			break
		}
		if remaining >= len(frame) {
			out = append(out, frame...)
		} else {
			out = append(out, frame[:remaining]...)
		}
	}
	return out
}
