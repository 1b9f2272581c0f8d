// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package httpapi wires the HTTP/SSE request surface onto a gin engine:
// the signaling event stream, the signal relay, the chat log, and the
// text-in/audio-out assistant endpoint, grounded on the teacher's
// router-package/gin.Engine wiring convention.
package httpapi

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fridayvoice/bridge/internal/chatlog"
	"github.com/fridayvoice/bridge/internal/collaborator/llm"
	"github.com/fridayvoice/bridge/internal/collaborator/stt"
	"github.com/fridayvoice/bridge/internal/collaborator/tts"
	"github.com/fridayvoice/bridge/internal/logging"
	"github.com/fridayvoice/bridge/internal/metrics"
	"github.com/fridayvoice/bridge/internal/signaling"
)

// Handlers holds the shared dependencies behind the /api/webrtc surface.
type Handlers struct {
	Hub           *signaling.Hub
	ChatLog       *chatlog.Log
	STT           stt.Transcriber
	LLM           llm.Client
	TTS           tts.Synthesizer
	DefaultRoomID string
	Logger        logging.Logger
	Metrics       *metrics.Counters
}

// New constructs a Handlers. logger may be nil, and counters may be nil to
// disable metrics recording (e.g. in tests).
func New(hub *signaling.Hub, chatLog *chatlog.Log, sttChain stt.Transcriber, llmClient llm.Client, ttsChain tts.Synthesizer, defaultRoomID string, counters *metrics.Counters, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		Hub: hub, ChatLog: chatLog, STT: sttChain, LLM: llmClient, TTS: ttsChain,
		DefaultRoomID: defaultRoomID, Metrics: counters, Logger: logger,
	}
}

// Register mounts every /api/webrtc route on engine.
func (h *Handlers) Register(engine *gin.Engine) {
	group := engine.Group("/api/webrtc")
	group.GET("/events", h.events)
	group.POST("/signal", h.signal)
	group.GET("/chat", h.getChat)
	group.POST("/chat", h.postChat)
	group.POST("/assistant", h.assistant)
}

func (h *Handlers) roomOrDefault(roomID string) string {
	if roomID == "" {
		return h.DefaultRoomID
	}
	return roomID
}

type signalRequest struct {
	Type    signaling.EventType `json:"type" binding:"required"`
	From    string              `json:"from" binding:"required"`
	To      string              `json:"to"`
	RoomID  string              `json:"roomId"`
	Payload interface{}         `json:"payload"`
}

func (h *Handlers) signal(c *gin.Context) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "malformed signal body"})
		return
	}

	switch req.Type {
	case signaling.EventOffer, signaling.EventAnswer, signaling.EventCandidate, signaling.EventBye:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unsupported signal type"})
		return
	}

	h.Hub.RelaySignal(signaling.SignalEvent{
		Type: req.Type, From: req.From, To: req.To,
		RoomID: h.roomOrDefault(req.RoomID), Payload: req.Payload,
	})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) getChat(c *gin.Context) {
	roomID := h.roomOrDefault(c.Query("roomId"))
	c.JSON(http.StatusOK, gin.H{"history": h.ChatLog.History(roomID)})
}

type postChatRequest struct {
	RoomID  string       `json:"roomId"`
	Role    chatlog.Role `json:"role" binding:"required"`
	Message string       `json:"message" binding:"required"`
}

func (h *Handlers) postChat(c *gin.Context) {
	var req postChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "malformed chat entry"})
		return
	}
	switch req.Role {
	case chatlog.RoleUser, chatlog.RoleAssistant, chatlog.RoleSystem:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "unrecognised role"})
		return
	}

	entry := chatlog.Entry{Role: req.Role, Message: req.Message, Timestamp: time.Now().UTC()}
	roomID := h.roomOrDefault(req.RoomID)
	h.ChatLog.Add(roomID, entry)
	c.JSON(http.StatusOK, gin.H{"ok": true, "entry": entry})
}

type assistantRequest struct {
	RoomID             string `json:"roomId"`
	Transcript         string `json:"transcript"`
	FallbackTranscript string `json:"fallbackTranscript"`
	InputAudioBase64   string `json:"inputAudioBase64"`
	InputAudioMimeType string `json:"inputAudioMimeType"`
}

// assistant runs STT (when audio is given and no transcript was supplied),
// then LLM, then TTS, returning the synthesised audio inline. Unlike the
// media-track `assistant` signaling event, this endpoint's audio fields
// are populated rather than null; see the design notes on the two
// divergent conventions this spec preserves.
func (h *Handlers) assistant(c *gin.Context) {
	var req assistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "malformed assistant request"})
		return
	}

	ctx := c.Request.Context()
	transcript := req.Transcript
	if transcript == "" && req.InputAudioBase64 != "" && h.STT != nil {
		audio, err := base64.StdEncoding.DecodeString(req.InputAudioBase64)
		if err == nil {
			if text, err := h.STT.Transcribe(ctx, audio); err == nil {
				transcript = text
			}
		}
	}
	if transcript == "" && req.FallbackTranscript != "" {
		transcript = req.FallbackTranscript
		if h.Metrics != nil {
			h.Metrics.FallbackSTT.Add(ctx, 1)
		}
	}
	if transcript == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "no usable transcript"})
		return
	}

	roomID := h.roomOrDefault(req.RoomID)
	h.ChatLog.Add(roomID, chatlog.Entry{Role: chatlog.RoleUser, Message: transcript, Timestamp: time.Now().UTC()})

	reply, err := h.LLM.Reply(ctx, transcript)
	if err != nil {
		h.Logger.Warnw("httpapi: llm error, using fallback reply", "error", err)
		reply = llm.FallbackReply
		if h.Metrics != nil {
			h.Metrics.FallbackLLM.Add(ctx, 1)
		}
	}
	replyEntry := chatlog.Entry{Role: chatlog.RoleAssistant, Message: reply, Timestamp: time.Now().UTC()}
	h.ChatLog.Add(roomID, replyEntry)

	resp := gin.H{"ok": true, "transcript": transcript, "reply": replyEntry, "audioBase64": nil, "audioMimeType": nil}
	if h.TTS != nil {
		if result, err := h.TTS.Synthesize(ctx, reply); err == nil {
			resp["audioBase64"] = base64.StdEncoding.EncodeToString(result.Audio)
			resp["audioMimeType"] = "audio/" + result.Format
		} else {
			h.Logger.Warnw("httpapi: tts chain failed for assistant endpoint", "error", err)
			if h.Metrics != nil {
				h.Metrics.FallbackTTS.Add(ctx, 1)
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}
