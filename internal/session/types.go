// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package session implements the session manager / server-bot signal
// handler: the per-(room, user) call state machine, offer/candidate
// handling, peer-connection callback wiring, and teardown, grounded on
// the teacher's webrtcStreamer handshake and event-callback discipline.
package session

import (
	"sync"

	"github.com/fridayvoice/bridge/internal/pacer"
	"github.com/fridayvoice/bridge/internal/turnpipeline"
	"github.com/fridayvoice/bridge/internal/vad"
	"github.com/fridayvoice/bridge/internal/webrtcengine"
)

type sessionKey struct {
	roomID     string
	userPeerID string
}

// Session is one ServerCallSession: the session manager exclusively owns
// it, per the ownership discipline. Other components are only ever
// handed a borrowed reference for the duration of one call.
type Session struct {
	roomID     string
	userPeerID string
	botPeerID  string

	mu     sync.Mutex
	pc     webrtcengine.PeerConnection
	sink   webrtcengine.AudioSink
	closed bool

	vadSeg *vad.Segmenter
	pacer  *pacer.Pacer
	worker *turnpipeline.Worker
}
