// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// events streams one peer's signaling events over SSE: a synthetic
// `ready` frame (emitted by the hub on subscribe), followed by every
// event relayed to this (roomId, peerId) pair until the client
// disconnects.
func (h *Handlers) events(c *gin.Context) {
	peerID := c.Query("peerId")
	if peerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "peerId is required"})
		return
	}
	roomID := h.roomOrDefault(c.Query("roomId"))

	stream := h.Hub.OpenEventStream(peerID, roomID)
	defer stream.Cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case frame, ok := <-stream.Events:
			if !ok {
				return false
			}
			if _, err := w.Write(frame); err != nil {
				return false
			}
			return true
		}
	})
}
