// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package signaling

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/fridayvoice/bridge/internal/logging"
)

// subscriberChannelSize bounds the per-stream outbound queue; a slow or
// dead subscriber drops frames rather than blocking the relay path.
const subscriberChannelSize = 64

// BotDispatcher receives signals addressed to a server-bot peer instead of
// being fanned out to subscribers, and is told to tear down sessions when
// a `bye` arrives for either side of a (room, peer) pair. The session
// manager implements this.
type BotDispatcher interface {
	HandleBotSignal(event SignalEvent)
	CloseSession(roomID, peerID string)
}

type subscriberKey struct {
	roomID string
	peerID string
}

type subscriber struct {
	ch     chan []byte
	cancel func()
}

// Hub is the process-wide signaling registry: the subscriber table keyed
// by (room, peer), relay policy, and server-bot dispatch.
type Hub struct {
	mu            sync.Mutex
	subscribers   map[subscriberKey]map[*subscriber]struct{}
	botPeerPrefix string
	dispatcher    BotDispatcher
	logger        logging.Logger
}

// New constructs a Hub. botPeerPrefix identifies server-bot peer ids
// (e.g. "friday-voice-bot-").
func New(botPeerPrefix string, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Hub{
		subscribers:   make(map[subscriberKey]map[*subscriber]struct{}),
		botPeerPrefix: botPeerPrefix,
		logger:        logger,
	}
}

// SetBotDispatcher wires the session manager that handles bot-addressed
// signals. Must be called once during startup, before traffic arrives.
func (h *Hub) SetBotDispatcher(d BotDispatcher) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dispatcher = d
}

// Stream is a live handle returned by OpenEventStream. Callers read Events
// until it is closed (by Cancel or the hub itself), then stop.
type Stream struct {
	Events <-chan []byte
	cancel func()
}

// Cancel deregisters the stream. Safe to call more than once.
func (s *Stream) Cancel() { s.cancel() }

// OpenEventStream registers a new subscriber for (roomID, peerID) and
// returns a stream whose first framed payload is the synthetic `ready`
// event, per the wire framing contract.
func (h *Hub) OpenEventStream(peerID, roomID string) *Stream {
	key := subscriberKey{roomID: roomID, peerID: peerID}
	sub := &subscriber{ch: make(chan []byte, subscriberChannelSize)}

	h.mu.Lock()
	if h.subscribers[key] == nil {
		h.subscribers[key] = make(map[*subscriber]struct{})
	}
	h.subscribers[key][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	sub.cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subscribers[key]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.subscribers, key)
				}
			}
			close(sub.ch)
		})
	}

	h.emitReady(sub, peerID, roomID)

	return &Stream{Events: sub.ch, cancel: sub.cancel}
}

func (h *Hub) emitReady(sub *subscriber, peerID, roomID string) {
	payload := map[string]string{"peerId": peerID, "roomId": roomID}
	body, _ := json.Marshal(payload)
	frame := append([]byte("event: ready\ndata: "), append(body, []byte("\n\n")...)...)
	nonBlockingSend(sub.ch, frame)

	h.publishRaw(sub, SignalEvent{
		Type:    EventSystem,
		From:    "server",
		To:      peerID,
		RoomID:  roomID,
		Payload: SystemPayload{Message: SystemSignalingConnected},
		At:      time.Now().UTC(),
	})
}

func (h *Hub) publishRaw(sub *subscriber, event SignalEvent) {
	frame, err := frameEvent(event)
	if err != nil {
		h.logger.Warnw("signaling: failed to marshal event", "error", err)
		return
	}
	nonBlockingSend(sub.ch, frame)
}

func frameEvent(event SignalEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	frame := append([]byte("data: "), append(body, []byte("\n\n")...)...)
	return frame, nil
}

func nonBlockingSend(ch chan []byte, frame []byte) {
	select {
	case ch <- frame:
	default:
		// Dead/slow subscriber: drop silently. A full queue must never
		// block the relay path or kill sibling subscribers.
	}
}

// IsBotPeer reports whether peerID is a server-bot peer per the prefix
// convention.
func (h *Hub) IsBotPeer(peerID string) bool {
	return strings.HasPrefix(peerID, h.botPeerPrefix)
}

// RelaySignal applies the relay policy described by the signaling hub
// component: bye closes sessions and falls through to routing; bot-
// addressed signals dispatch to the session manager; everything else
// fans out to subscribers registered under (roomId, to), or is dropped
// when To is empty.
func (h *Hub) RelaySignal(event SignalEvent) {
	if event.Type == EventBye {
		h.closeSessions(event)
	}

	if event.To == "" {
		return
	}

	if h.IsBotPeer(event.To) {
		h.dispatchToBot(event)
		return
	}

	h.fanOut(event)
}

func (h *Hub) dispatchToBot(event SignalEvent) {
	h.mu.Lock()
	dispatcher := h.dispatcher
	h.mu.Unlock()

	if dispatcher == nil {
		h.logger.Warnw("signaling: no bot dispatcher registered", "to", event.To)
		return
	}
	dispatcher.HandleBotSignal(event)
}

func (h *Hub) fanOut(event SignalEvent) {
	key := subscriberKey{roomID: event.RoomID, peerID: event.To}

	frame, err := frameEvent(event)
	if err != nil {
		h.logger.Warnw("signaling: failed to marshal event", "error", err)
		return
	}

	// Sends are non-blocking, so holding the lock here is brief; it keeps a
	// concurrent Cancel from closing a channel mid-send.
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers[key] {
		nonBlockingSend(sub.ch, frame)
	}
}

func (h *Hub) closeSessions(event SignalEvent) {
	h.mu.Lock()
	dispatcher := h.dispatcher
	h.mu.Unlock()
	if dispatcher == nil {
		return
	}
	dispatcher.CloseSession(event.RoomID, event.From)
	if event.To != "" {
		dispatcher.CloseSession(event.RoomID, event.To)
	}
}

// PublishSystem is a convenience used by the session manager and turn
// pipeline to emit a system{...} notice to a specific peer.
func (h *Hub) PublishSystem(roomID, to string, message SystemMessage) {
	h.RelaySignal(SignalEvent{
		Type:    EventSystem,
		From:    "server",
		To:      to,
		RoomID:  roomID,
		Payload: SystemPayload{Message: message},
		At:      time.Now().UTC(),
	})
}

// Publish is a convenience for emitting any fully-formed event (answer,
// candidate, assistant, chat) through the same relay path.
func (h *Hub) Publish(event SignalEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	h.RelaySignal(event)
}
