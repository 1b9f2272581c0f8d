// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fridayvoice/bridge/internal/chatlog"
	"github.com/fridayvoice/bridge/internal/collaborator/decoder"
	"github.com/fridayvoice/bridge/internal/collaborator/llm"
	"github.com/fridayvoice/bridge/internal/collaborator/probe"
	"github.com/fridayvoice/bridge/internal/collaborator/stt"
	"github.com/fridayvoice/bridge/internal/collaborator/tts"
	"github.com/fridayvoice/bridge/internal/logging"
	"github.com/fridayvoice/bridge/internal/metrics"
	"github.com/fridayvoice/bridge/internal/pacer"
	"github.com/fridayvoice/bridge/internal/signaling"
	"github.com/fridayvoice/bridge/internal/turnpipeline"
	"github.com/fridayvoice/bridge/internal/vad"
	"github.com/fridayvoice/bridge/internal/webrtcengine"
)

// maxPendingCandidates bounds the pre-offer ICE candidate buffer.
const maxPendingCandidates = 80

// Collaborators bundles the shared, stateless collaborator chains used
// by every session's turn pipeline.
type Collaborators struct {
	STT     stt.Transcriber
	LLM     llm.Client
	TTS     tts.Synthesizer
	Decoder decoder.Decoder
}

// ProbeTargets describes the tool-verification probe's binaries, built
// from configuration once at startup.
type ProbeTargets struct {
	STTBinaryPath        string
	STTRemoteConfigured   bool
	TTSBinaryPath         string
	TTSRemoteConfigured   bool
	DecoderBinaryPath     string
}

// Manager is the process-wide session table: creation, lookup, and
// teardown of ServerCallSessions, and the server-bot signal dispatch
// target wired into the signaling hub.
type Manager struct {
	hub           *signaling.Hub
	chatLog       *chatlog.Log
	engine        webrtcengine.Engine
	collaborators Collaborators
	probeTargets  ProbeTargets
	logger        logging.Logger
	metrics       *metrics.Counters

	mu       sync.Mutex
	sessions map[sessionKey]*Session

	pendingMu sync.Mutex
	pending   map[sessionKey][]signaling.IceCandidate
}

// New constructs a Manager. engine may be nil when the WebRTC runtime
// could not be loaded; offers are then refused with wrtc_unavailable.
// counters may be nil to disable metrics recording (e.g. in tests).
func New(hub *signaling.Hub, chatLog *chatlog.Log, engine webrtcengine.Engine, collaborators Collaborators, probeTargets ProbeTargets, counters *metrics.Counters, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		hub:           hub,
		chatLog:       chatLog,
		engine:        engine,
		collaborators: collaborators,
		probeTargets:  probeTargets,
		metrics:       counters,
		logger:        logger,
		sessions:      make(map[sessionKey]*Session),
		pending:       make(map[sessionKey][]signaling.IceCandidate),
	}
}

// HandleBotSignal implements signaling.BotDispatcher for signals whose
// `to` is a server-bot peer.
func (m *Manager) HandleBotSignal(event signaling.SignalEvent) {
	switch event.Type {
	case signaling.EventOffer:
		m.handleOffer(event)
	case signaling.EventCandidate:
		m.handleCandidate(event)
	case signaling.EventBye:
		m.CloseSession(event.RoomID, event.From)
	default:
		m.logger.Warnw("session: unexpected bot-addressed signal", "type", event.Type)
	}
}

func (m *Manager) handleOffer(event signaling.SignalEvent) {
	var sd signaling.SessionDescription
	if !decodePayload(event.Payload, &sd) || sd.Type != "offer" {
		m.hub.PublishSystem(event.RoomID, event.From, signaling.SystemInvalidOfferPayload)
		return
	}

	key := sessionKey{roomID: event.RoomID, userPeerID: event.From}
	m.closeByKey(key)

	if m.engine == nil {
		m.hub.PublishSystem(event.RoomID, event.From, signaling.SystemWRTCUnavailable)
		return
	}

	ctx := context.Background()
	pc, err := m.engine.CreatePeerConnection(ctx)
	if err != nil {
		m.hub.PublishSystem(event.RoomID, event.From, signaling.SystemWRTCUnavailable)
		return
	}

	s := &Session{
		roomID:     event.RoomID,
		userPeerID: event.From,
		botPeerID:  event.To,
		pc:         pc,
		vadSeg:     vad.New(nil),
	}
	s.pacer = pacer.New(pc.OutboundSource(), m.logger)
	s.worker = turnpipeline.New(turnpipeline.Deps{
		STT: m.collaborators.STT, LLM: m.collaborators.LLM,
		TTS: m.collaborators.TTS, Decoder: m.collaborators.Decoder,
		Pacer: s.pacer, ChatLog: m.chatLog, Hub: m.hub, Logger: m.logger, Metrics: m.metrics,
		RoomID: event.RoomID, UserPeerID: event.From, BotPeerID: event.To,
	})

	m.mu.Lock()
	m.sessions[key] = s
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.SessionsCreated.Add(ctx, 1)
	}

	m.wireCallbacks(s)
	go m.runToolProbe(s)

	if err := pc.SetRemoteOffer(ctx, sd.SDP); err != nil {
		m.hub.PublishSystem(event.RoomID, event.From, signaling.SystemOfferHandlingFailed)
		m.teardown(s)
		return
	}

	m.drainPending(key, s)

	answerSDP, err := pc.CreateAnswer(ctx)
	if err != nil {
		m.hub.PublishSystem(event.RoomID, event.From, signaling.SystemOfferHandlingFailed)
		m.teardown(s)
		return
	}

	m.hub.Publish(signaling.SignalEvent{
		Type:    signaling.EventAnswer,
		From:    event.To,
		To:      event.From,
		RoomID:  event.RoomID,
		Payload: signaling.SessionDescription{Type: "answer", SDP: answerSDP},
	})
}

func (m *Manager) wireCallbacks(s *Session) {
	s.pc.OnICECandidate(func(candidate string, sdpMid *string, sdpMLineIndex *uint16) {
		m.hub.Publish(signaling.SignalEvent{
			Type:   signaling.EventCandidate,
			From:   s.botPeerID,
			To:     s.userPeerID,
			RoomID: s.roomID,
			Payload: signaling.IceCandidate{
				Candidate: candidate, SDPMid: sdpMid, SDPMLineIndex: sdpMLineIndex,
			},
		})
	})

	s.pc.OnConnectionStateChange(func(state webrtcengine.ConnectionState) {
		switch state {
		case webrtcengine.StateFailed, webrtcengine.StateClosed:
			m.teardown(s)
		case webrtcengine.StateDisconnected:
			m.hub.PublishSystem(s.roomID, s.userPeerID, signaling.SystemConnectionDisconnected)
		}
	})

	s.pc.OnAudioTrack(func(sink webrtcengine.AudioSink) {
		s.mu.Lock()
		if s.sink != nil {
			s.sink.Stop()
		}
		s.sink = sink
		s.mu.Unlock()

		if sink == nil {
			return
		}
		sink.OnFrame(func(samples []int16, sampleRate int, channelCount int) {
			m.handleFrame(s, samples, sampleRate, channelCount)
		})
	})
}

func (m *Manager) handleFrame(s *Session, samples []int16, sampleRate int, channelCount int) {
	u, ok := s.vadSeg.Push(vad.Frame{Samples: samples, SampleRate: sampleRate, ChannelCount: channelCount})
	if !ok {
		return
	}
	s.worker.Enqueue(turnpipeline.Turn{Samples: u.Samples, SampleRate: u.SampleRate})
	m.hub.PublishSystem(s.roomID, s.userPeerID, signaling.SystemVoiceTurnDetected)
}

func (m *Manager) handleCandidate(event signaling.SignalEvent) {
	var candidate signaling.IceCandidate
	if !decodePayload(event.Payload, &candidate) {
		return
	}

	key := sessionKey{roomID: event.RoomID, userPeerID: event.From}

	m.mu.Lock()
	s, exists := m.sessions[key]
	m.mu.Unlock()

	if exists {
		if err := s.pc.AddICECandidate(candidate.Candidate, candidate.SDPMid, candidate.SDPMLineIndex); err != nil {
			m.logger.Warnw("session: failed to add ICE candidate", "error", err)
		}
		return
	}

	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	buf := append(m.pending[key], candidate)
	if len(buf) > maxPendingCandidates {
		buf = buf[len(buf)-maxPendingCandidates:]
	}
	m.pending[key] = buf
}

func (m *Manager) drainPending(key sessionKey, s *Session) {
	m.pendingMu.Lock()
	candidates := m.pending[key]
	delete(m.pending, key)
	m.pendingMu.Unlock()

	for _, c := range candidates {
		if err := s.pc.AddICECandidate(c.Candidate, c.SDPMid, c.SDPMLineIndex); err != nil {
			m.logger.Warnw("session: failed to apply buffered ICE candidate", "error", err)
		}
	}
}

func (m *Manager) runToolProbe(s *Session) {
	targets := []probe.Target{
		{Name: "stt", BinaryPath: m.probeTargets.STTBinaryPath, RemoteConfigured: m.probeTargets.STTRemoteConfigured, MissingEvent: string(signaling.SystemSTTBinaryMissing)},
		{Name: "tts", BinaryPath: m.probeTargets.TTSBinaryPath, RemoteConfigured: m.probeTargets.TTSRemoteConfigured, MissingEvent: string(signaling.SystemTTSBinaryMissing)},
		{Name: "decoder", BinaryPath: m.probeTargets.DecoderBinaryPath, RemoteConfigured: false, MissingEvent: string(signaling.SystemFFmpegMissing)},
	}
	for _, code := range probe.Missing(context.Background(), targets) {
		m.hub.PublishSystem(s.roomID, s.userPeerID, signaling.SystemMessage(code))
	}
}

// CloseSession tears down the session owning peerID, whether peerID is
// the user side or the bot side of the (room, user) pair. Idempotent:
// closing an already-closed or nonexistent session is a no-op.
func (m *Manager) CloseSession(roomID, peerID string) {
	m.mu.Lock()
	var target *Session
	var key sessionKey
	for k, s := range m.sessions {
		if k.roomID != roomID {
			continue
		}
		if k.userPeerID == peerID || s.botPeerID == peerID {
			target, key = s, k
			break
		}
	}
	m.mu.Unlock()

	if target == nil {
		return
	}
	m.removeKey(key)
	m.teardown(target)
}

func (m *Manager) closeByKey(key sessionKey) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	m.mu.Unlock()
	if !ok {
		return
	}
	m.removeKey(key)
	m.teardown(s)
}

func (m *Manager) removeKey(key sessionKey) {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()

	m.pendingMu.Lock()
	delete(m.pending, key)
	m.pendingMu.Unlock()
}

// teardown releases every resource owned by s. Each step swallows its
// own error so a partial failure never blocks the rest of teardown.
func (m *Manager) teardown(s *Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sink := s.sink
	s.sink = nil
	s.mu.Unlock()

	if sink != nil {
		sink.Stop()
	}
	s.pacer.Stop()
	s.worker.Stop()
	s.vadSeg.Reset()
	if err := s.pc.Close(); err != nil {
		m.logger.Warnw("session: error closing peer connection", "error", err)
	}
	if m.metrics != nil {
		m.metrics.SessionsClosed.Add(context.Background(), 1)
	}
}

func decodePayload(payload interface{}, out interface{}) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false
	}
	return true
}
