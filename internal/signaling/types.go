// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package signaling implements the server-sent-events signaling hub:
// subscriber fan-out keyed by (room, peer), dispatch of server-bot
// addressed signals, and the wire framing for the event stream.
package signaling

import "time"

// EventType enumerates the SignalEvent.Type values recognised by the hub.
type EventType string

const (
	EventOffer     EventType = "offer"
	EventAnswer    EventType = "answer"
	EventCandidate EventType = "candidate"
	EventBye       EventType = "bye"
	EventChat      EventType = "chat"
	EventSystem    EventType = "system"
	EventAssistant EventType = "assistant"
)

// SystemMessage is one of the recognised system{...} payload codes.
type SystemMessage string

const (
	SystemSignalingConnected    SystemMessage = "signaling_connected"
	SystemConnectionDisconnected SystemMessage = "connection_disconnected"
	SystemInvalidOfferPayload   SystemMessage = "invalid_offer_payload"
	SystemOfferHandlingFailed   SystemMessage = "offer_handling_failed"
	SystemWRTCUnavailable       SystemMessage = "wrtc_unavailable"
	SystemSTTBinaryMissing      SystemMessage = "stt_binary_missing"
	SystemTTSBinaryMissing      SystemMessage = "tts_binary_missing"
	SystemFFmpegMissing         SystemMessage = "ffmpeg_missing"
	SystemVoiceTurnDetected     SystemMessage = "voice_turn_detected"
	SystemTranscriptionEmpty    SystemMessage = "transcription_empty"
)

// SignalEvent is a message on the signaling bus.
type SignalEvent struct {
	Type    EventType   `json:"type"`
	From    string      `json:"from"`
	To      string      `json:"to,omitempty"`
	RoomID  string      `json:"roomId"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// SystemPayload is the payload shape used for EventSystem events.
type SystemPayload struct {
	Message SystemMessage `json:"message"`
}

// SessionDescription is the validated shape of an offer/answer payload.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// IceCandidate is the validated shape of a candidate payload.
type IceCandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}
