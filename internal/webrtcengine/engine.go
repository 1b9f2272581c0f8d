// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package webrtcengine abstracts the underlying WebRTC engine behind a
// capability interface, so the session manager can report
// wrtc_unavailable instead of panicking when the native engine cannot be
// loaded, per the dynamic-runtime-loading design note.
package webrtcengine

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by Load when the WebRTC engine cannot be
// initialised (missing native dependency, unsupported platform, ...).
var ErrUnavailable = errors.New("webrtcengine: engine unavailable")

// AudioSink pulls captured PCM frames from the remote peer's inbound
// audio track. FrameCallback is invoked off the network thread's critical
// path; implementations must hand audio off via a bounded channel rather
// than doing STT/LLM/TTS work inline.
type AudioSink interface {
	// OnFrame registers the callback invoked for every inbound frame.
	// samples are PCM-16, sampleRate and channelCount describe the frame.
	OnFrame(callback func(samples []int16, sampleRate int, channelCount int))
	// Stop detaches the sink. Idempotent.
	Stop()
}

// AudioSource accepts synthesised PCM frames pushed by the playback
// pacer and forwards them to the outbound track.
type AudioSource interface {
	// PushFrame writes one fixed-duration PCM-16 mono frame. An error
	// indicates the source has rejected further data (e.g. track closed).
	PushFrame(samples []int16) error
	// Close releases the outbound track. Idempotent.
	Close()
}

// ConnectionState mirrors the subset of RTCPeerConnectionState this
// bridge reacts to.
type ConnectionState string

const (
	StateNew          ConnectionState = "new"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateFailed       ConnectionState = "failed"
	StateClosed       ConnectionState = "closed"
)

// PeerConnection is the capability surface the session manager needs
// from one browser peer connection.
type PeerConnection interface {
	// SetRemoteOffer applies the remote SDP offer.
	SetRemoteOffer(ctx context.Context, sdp string) error
	// CreateAnswer creates and sets the local SDP answer, returning it.
	CreateAnswer(ctx context.Context) (sdp string, err error)
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(candidate string, sdpMid *string, sdpMLineIndex *uint16) error

	// OnICECandidate registers the local-candidate callback.
	OnICECandidate(callback func(candidate string, sdpMid *string, sdpMLineIndex *uint16))
	// OnConnectionStateChange registers the connection-state callback.
	OnConnectionStateChange(callback func(state ConnectionState))
	// OnAudioTrack registers the callback invoked each time a remote audio
	// track arrives. It is not invoked when a track ends: that sink's
	// frames simply stop arriving.
	OnAudioTrack(callback func(sink AudioSink))

	// OutboundSource returns the outbound audio source attached at
	// creation time.
	OutboundSource() AudioSource

	// Close tears the peer connection down. Idempotent.
	Close() error
}

// Engine is the capability interface the session manager resolves once
// at startup. A failed Load yields no Engine; the session manager then
// answers every offer with wrtc_unavailable.
type Engine interface {
	// CreatePeerConnection builds a fresh PeerConnection with the outbound
	// audio track already attached. The track is added with AddTrack, so
	// its transceiver is send-receive, not send-only.
	CreatePeerConnection(ctx context.Context) (PeerConnection, error)
}

// Load resolves the concrete engine implementation. On any failure to
// initialise the native dependency, it returns ErrUnavailable (wrapped)
// rather than panicking, so callers can report wrtc_unavailable.
func Load() (Engine, error) {
	engine, err := newPionEngine()
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	return engine, nil
}
