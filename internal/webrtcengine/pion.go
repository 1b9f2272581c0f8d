// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package webrtcengine

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// audioMimeType, audioClockRate, and audioPayloadType fix the session to
// linear PCM (L16) mono rather than Opus: the WebRTC engine itself is an
// out-of-scope external collaborator per this bridge's contract, and the
// rest of the pipeline already operates on raw PCM-16 frames, so the
// engine is registered with a raw codec rather than adding an Opus
// codec dependency purely to immediately decode it back to PCM.
const (
	audioMimeType    = "audio/L16"
	audioClockRate   = 48000
	audioPayloadType = 111
)

type pionEngine struct {
	api *webrtc.API
}

func newPionEngine() (Engine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  audioMimeType,
			ClockRate: audioClockRate,
			Channels:  1,
		},
		PayloadType: audioPayloadType,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("webrtcengine: register codec: %w", err)
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("webrtcengine: register interceptors: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i))
	return &pionEngine{api: api}, nil
}

func (e *pionEngine) CreatePeerConnection(ctx context.Context) (PeerConnection, error) {
	pc, err := e.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("webrtcengine: new peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  audioMimeType,
		ClockRate: audioClockRate,
		Channels:  1,
	}, "audio", "friday-voice-bridge")
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("webrtcengine: new local track: %w", err)
	}

	sender, err := pc.AddTrack(track)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("webrtcengine: add track: %w", err)
	}
	go drainRTCP(sender)

	return &pionPeerConnection{pc: pc, outbound: &pionAudioSource{track: track}}, nil
}

// drainRTCP reads and discards incoming RTCP packets so the sender's
// buffers do not fill, matching pion's standard sender usage.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

type pionPeerConnection struct {
	mu       sync.Mutex
	pc       *webrtc.PeerConnection
	outbound *pionAudioSource
	closed   bool
}

func (p *pionPeerConnection) SetRemoteOffer(ctx context.Context, sdp string) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp})
}

func (p *pionPeerConnection) CreateAnswer(ctx context.Context) (string, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("webrtcengine: create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("webrtcengine: set local description: %w", err)
	}
	return answer.SDP, nil
}

func (p *pionPeerConnection) AddICECandidate(candidate string, sdpMid *string, sdpMLineIndex *uint16) error {
	return p.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     candidate,
		SDPMid:        sdpMid,
		SDPMLineIndex: sdpMLineIndex,
	})
}

func (p *pionPeerConnection) OnICECandidate(callback func(candidate string, sdpMid *string, sdpMLineIndex *uint16)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		callback(init.Candidate, init.SDPMid, init.SDPMLineIndex)
	})
}

func (p *pionPeerConnection) OnConnectionStateChange(callback func(state ConnectionState)) {
	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		callback(ConnectionState(s.String()))
	})
}

func (p *pionPeerConnection) OnAudioTrack(callback func(sink AudioSink)) {
	p.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		sink := newPionAudioSink(track)
		callback(sink)
	})
}

func (p *pionPeerConnection) OutboundSource() AudioSource {
	return p.outbound
}

func (p *pionPeerConnection) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.outbound.Close()
	return p.pc.Close()
}

// pionAudioSource pushes paced PCM-16 mono frames onto the outbound
// TrackLocalStaticSample, each wrapped as one media.Sample of
// pacer.FrameDuration length.
type pionAudioSource struct {
	mu     sync.Mutex
	track  *webrtc.TrackLocalStaticSample
	closed bool
}

func (s *pionAudioSource) PushFrame(samples []int16) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("webrtcengine: audio source closed")
	}

	data := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.BigEndian.PutUint16(data[i*2:], uint16(v))
	}
	return s.track.WriteSample(media.Sample{Data: data, Duration: 10 * time.Millisecond})
}

func (s *pionAudioSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// pionAudioSink reads RTP packets off the remote track and converts the
// L16 big-endian payload into PCM-16 frames for the VAD, handing off via
// a bounded channel so the read loop is never blocked by downstream work.
type pionAudioSink struct {
	track   *webrtc.TrackRemote
	frames  chan frame
	stopped chan struct{}
	once    sync.Once
}

type frame struct {
	samples      []int16
	sampleRate   int
	channelCount int
}

func newPionAudioSink(track *webrtc.TrackRemote) *pionAudioSink {
	s := &pionAudioSink{
		track:   track,
		frames:  make(chan frame, 64),
		stopped: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *pionAudioSink) readLoop() {
	defer close(s.frames)
	for {
		packet, _, err := s.track.ReadRTP()
		if err != nil {
			if err != io.EOF {
				// Read failure: stop quietly. No end-of-track notice is
				// sent; the frame stream just closes.
			}
			return
		}

		payload := packet.Payload
		if len(payload) < 2 {
			continue
		}
		samples := make([]int16, len(payload)/2)
		for i := range samples {
			samples[i] = int16(binary.BigEndian.Uint16(payload[i*2:]))
		}

		select {
		case s.frames <- frame{samples: samples, sampleRate: audioClockRate, channelCount: 1}:
		case <-s.stopped:
			return
		default:
			// Drop the frame rather than block the network read thread.
		}
	}
}

func (s *pionAudioSink) OnFrame(callback func(samples []int16, sampleRate int, channelCount int)) {
	go func() {
		for f := range s.frames {
			select {
			case <-s.stopped:
				return
			default:
			}
			callback(f.samples, f.sampleRate, f.channelCount)
		}
	}()
}

func (s *pionAudioSink) Stop() {
	s.once.Do(func() { close(s.stopped) })
}
