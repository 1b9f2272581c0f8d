// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fridayvoice/bridge/internal/chatlog"
	"github.com/fridayvoice/bridge/internal/signaling"
	"github.com/fridayvoice/bridge/internal/webrtcengine"
)

type fakeSource struct{ closed bool }

func (f *fakeSource) PushFrame(samples []int16) error { return nil }
func (f *fakeSource) Close()                          { f.closed = true }

type fakePC struct {
	closeCalls   int
	candidatesAdded []string
	onICE        func(string, *string, *uint16)
	onState      func(webrtcengine.ConnectionState)
	onTrack      func(webrtcengine.AudioSink)
	source       *fakeSource
	failAnswer   bool
	failOffer    bool
}

func (f *fakePC) SetRemoteOffer(ctx context.Context, sdp string) error {
	if f.failOffer {
		return assert.AnError
	}
	return nil
}
func (f *fakePC) CreateAnswer(ctx context.Context) (string, error) {
	if f.failAnswer {
		return "", assert.AnError
	}
	return "answer-sdp", nil
}
func (f *fakePC) AddICECandidate(candidate string, sdpMid *string, sdpMLineIndex *uint16) error {
	f.candidatesAdded = append(f.candidatesAdded, candidate)
	return nil
}
func (f *fakePC) OnICECandidate(cb func(string, *string, *uint16))         { f.onICE = cb }
func (f *fakePC) OnConnectionStateChange(cb func(webrtcengine.ConnectionState)) { f.onState = cb }
func (f *fakePC) OnAudioTrack(cb func(webrtcengine.AudioSink))             { f.onTrack = cb }
func (f *fakePC) OutboundSource() webrtcengine.AudioSource                 { return f.source }
func (f *fakePC) Close() error                                             { f.closeCalls++; return nil }

type fakeEngine struct {
	pcs      []*fakePC
	failNext bool
}

func (e *fakeEngine) CreatePeerConnection(ctx context.Context) (webrtcengine.PeerConnection, error) {
	if e.failNext {
		return nil, assert.AnError
	}
	pc := &fakePC{source: &fakeSource{}}
	e.pcs = append(e.pcs, pc)
	return pc, nil
}

func newTestManager() (*Manager, *signaling.Hub, *fakeEngine) {
	hub := signaling.New("friday-voice-bot-", nil)
	engine := &fakeEngine{}
	mgr := New(hub, chatlog.New(), engine, Collaborators{}, ProbeTargets{}, nil, nil)
	hub.SetBotDispatcher(mgr)
	return mgr, hub, engine
}

func openUserStream(t *testing.T, hub *signaling.Hub, peerID, roomID string) <-chan []byte {
	t.Helper()
	stream := hub.OpenEventStream(peerID, roomID)
	// drain ready + signaling_connected
	for i := 0; i < 2; i++ {
		select {
		case <-stream.Events:
		case <-time.After(time.Second):
			t.Fatal("timed out draining ready frames")
		}
	}
	return stream.Events
}

func TestOfferHandlingCreatesSessionAndEmitsAnswer(t *testing.T) {
	mgr, hub, _ := newTestManager()
	events := openUserStream(t, hub, "user-1", "room-1")

	hub.RelaySignal(signaling.SignalEvent{
		Type: signaling.EventOffer, From: "user-1", To: "friday-voice-bot-1", RoomID: "room-1",
		Payload: signaling.SessionDescription{Type: "offer", SDP: "offer-sdp"},
	})

	// The asynchronous tool probe may publish *_missing system notices
	// before the answer; skip those and check the first other frame.
	var frame string
	deadline := time.After(time.Second)
	for frame == "" {
		select {
		case f := <-events:
			if !strings.Contains(string(f), `"type":"system"`) {
				frame = string(f)
			}
		case <-deadline:
			t.Fatal("expected an answer event")
		}
	}
	assert.Contains(t, frame, `"answer"`)

	mgr.mu.Lock()
	assert.Len(t, mgr.sessions, 1)
	mgr.mu.Unlock()
}

func TestInvalidOfferPayloadEmitsSystemEvent(t *testing.T) {
	_, hub, _ := newTestManager()
	events := openUserStream(t, hub, "user-1", "room-1")

	hub.RelaySignal(signaling.SignalEvent{
		Type: signaling.EventOffer, From: "user-1", To: "friday-voice-bot-1", RoomID: "room-1",
		Payload: map[string]string{"type": "answer", "sdp": "x"},
	})

	select {
	case frame := <-events:
		assert.Contains(t, string(frame), "invalid_offer_payload")
	case <-time.After(time.Second):
		t.Fatal("expected invalid_offer_payload")
	}
}

func TestWRTCUnavailableWhenEngineMissing(t *testing.T) {
	hub := signaling.New("friday-voice-bot-", nil)
	mgr := New(hub, chatlog.New(), nil, Collaborators{}, ProbeTargets{}, nil, nil)
	hub.SetBotDispatcher(mgr)
	events := openUserStream(t, hub, "user-1", "room-1")

	hub.RelaySignal(signaling.SignalEvent{
		Type: signaling.EventOffer, From: "user-1", To: "friday-voice-bot-1", RoomID: "room-1",
		Payload: signaling.SessionDescription{Type: "offer", SDP: "offer-sdp"},
	})

	select {
	case frame := <-events:
		assert.Contains(t, string(frame), "wrtc_unavailable")
	case <-time.After(time.Second):
		t.Fatal("expected wrtc_unavailable")
	}
}

func TestCandidateBeforeOfferIsBufferedThenDrained(t *testing.T) {
	mgr, hub, engine := newTestManager()
	openUserStream(t, hub, "user-1", "room-1")

	hub.RelaySignal(signaling.SignalEvent{
		Type: signaling.EventCandidate, From: "user-1", To: "friday-voice-bot-1", RoomID: "room-1",
		Payload: signaling.IceCandidate{Candidate: "cand-1"},
	})

	mgr.pendingMu.Lock()
	assert.Len(t, mgr.pending[sessionKey{"room-1", "user-1"}], 1)
	mgr.pendingMu.Unlock()

	hub.RelaySignal(signaling.SignalEvent{
		Type: signaling.EventOffer, From: "user-1", To: "friday-voice-bot-1", RoomID: "room-1",
		Payload: signaling.SessionDescription{Type: "offer", SDP: "offer-sdp"},
	})

	require.Len(t, engine.pcs, 1)
	assert.Equal(t, []string{"cand-1"}, engine.pcs[0].candidatesAdded)

	mgr.pendingMu.Lock()
	assert.Empty(t, mgr.pending[sessionKey{"room-1", "user-1"}])
	mgr.pendingMu.Unlock()
}

func TestPendingCandidateBufferBoundedAtEighty(t *testing.T) {
	mgr, hub, _ := newTestManager()
	openUserStream(t, hub, "user-1", "room-1")

	for i := 0; i < 90; i++ {
		hub.RelaySignal(signaling.SignalEvent{
			Type: signaling.EventCandidate, From: "user-1", To: "friday-voice-bot-1", RoomID: "room-1",
			Payload: signaling.IceCandidate{Candidate: "c"},
		})
	}

	mgr.pendingMu.Lock()
	defer mgr.pendingMu.Unlock()
	assert.Len(t, mgr.pending[sessionKey{"room-1", "user-1"}], maxPendingCandidates)
}

func TestOfferRestartClosesPriorSessionAndOpensFresh(t *testing.T) {
	mgr, hub, engine := newTestManager()
	openUserStream(t, hub, "user-1", "room-1")

	offer := signaling.SignalEvent{
		Type: signaling.EventOffer, From: "user-1", To: "friday-voice-bot-1", RoomID: "room-1",
		Payload: signaling.SessionDescription{Type: "offer", SDP: "offer-sdp"},
	}
	hub.RelaySignal(offer)
	hub.RelaySignal(offer)

	require.Len(t, engine.pcs, 2)
	assert.Equal(t, 1, engine.pcs[0].closeCalls, "first session's peer connection must be closed on restart")

	mgr.mu.Lock()
	assert.Len(t, mgr.sessions, 1)
	mgr.mu.Unlock()
}

func TestCloseSessionIsIdempotent(t *testing.T) {
	mgr, hub, engine := newTestManager()
	openUserStream(t, hub, "user-1", "room-1")

	hub.RelaySignal(signaling.SignalEvent{
		Type: signaling.EventOffer, From: "user-1", To: "friday-voice-bot-1", RoomID: "room-1",
		Payload: signaling.SessionDescription{Type: "offer", SDP: "offer-sdp"},
	})
	require.Len(t, engine.pcs, 1)

	mgr.CloseSession("room-1", "user-1")
	mgr.CloseSession("room-1", "user-1")

	assert.Equal(t, 1, engine.pcs[0].closeCalls)
	mgr.mu.Lock()
	assert.Empty(t, mgr.sessions)
	mgr.mu.Unlock()
}
