// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fridayvoice/bridge/internal/chatlog"
	"github.com/fridayvoice/bridge/internal/collaborator/decoder"
	"github.com/fridayvoice/bridge/internal/collaborator/llm"
	"github.com/fridayvoice/bridge/internal/collaborator/stt"
	"github.com/fridayvoice/bridge/internal/collaborator/tts"
	"github.com/fridayvoice/bridge/internal/config"
	"github.com/fridayvoice/bridge/internal/httpapi"
	"github.com/fridayvoice/bridge/internal/logging"
	"github.com/fridayvoice/bridge/internal/metrics"
	"github.com/fridayvoice/bridge/internal/session"
	"github.com/fridayvoice/bridge/internal/signaling"
	"github.com/fridayvoice/bridge/internal/webrtcengine"
)

func main() {
	v, err := config.InitConfig()
	if err != nil {
		fatal("loading config", err)
	}
	cfg, err := config.GetApplicationConfig(v)
	if err != nil {
		fatal("validating config", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, JSON: true, FilePath: "friday-voice-bridge.log"})
	if err != nil {
		fatal("building logger", err)
	}
	defer logger.Sync()

	metricsProvider, err := metrics.NewProvider()
	if err != nil {
		logger.Errorw("failed to start metrics provider", "error", err)
		os.Exit(1)
	}
	defer metricsProvider.Shutdown(context.Background())

	chatLog := chatlog.New()
	hub := signaling.New(cfg.BotPeerPrefix, logger)

	engine, err := webrtcengine.Load()
	if err != nil {
		logger.Warnw("webrtc engine unavailable, offers will be refused", "error", err)
		engine = nil
	}

	collaborators := buildCollaborators(cfg)
	probeTargets := session.ProbeTargets{
		STTBinaryPath: cfg.STTBinaryPath, STTRemoteConfigured: cfg.STTRemoteURL != "",
		TTSBinaryPath: cfg.TTSBinaryPath, TTSRemoteConfigured: cfg.TTSRemoteURL != "",
		DecoderBinaryPath: cfg.DecoderPath,
	}

	manager := session.New(hub, chatLog, engine, collaborators, probeTargets, &metricsProvider.Counters, logger)
	hub.SetBotDispatcher(manager)

	handlers := httpapi.New(hub, chatLog, collaborators.STT, collaborators.LLM, collaborators.TTS, cfg.DefaultRoomID, &metricsProvider.Counters, logger)
	router := httpapi.NewEngine(handlers)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Infow("voice bridge listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("server stopped unexpectedly", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorw("graceful shutdown failed", "error", err)
	}
}

func buildCollaborators(cfg *config.AppConfig) session.Collaborators {
	sttChain := stt.Chain{
		Primary: stt.LocalRunner{BinaryPath: cfg.STTBinaryPath},
		Remote:  stt.NewRemoteClient(cfg.STTRemoteURL, cfg.STTAPIKey, []string{cfg.STTModelID}),
	}
	ttsChain := tts.Chain{
		Primary: tts.LocalRunner{BinaryPath: cfg.TTSBinaryPath, Format: cfg.TTSFormat},
		Remote:  tts.NewRemoteClient(cfg.TTSRemoteURL, cfg.TTSAPIKey, cfg.TTSModelID, cfg.TTSVoice, cfg.TTSFormat),
	}

	return session.Collaborators{
		STT:     sttChain,
		LLM:     buildLLMClient(cfg),
		TTS:     ttsChain,
		Decoder: decoder.FFmpegDecoder{BinaryPath: cfg.DecoderPath},
	}
}

func buildLLMClient(cfg *config.AppConfig) llm.Client {
	switch cfg.LLMBackend {
	case "openai":
		return llm.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMModelID)
	case "anthropic":
		return llm.NewAnthropicClient(cfg.LLMAPIKey, cfg.LLMModelID)
	default:
		return llm.NewHTTPClient(cfg.LLMEndpointURL, cfg.LLMAPIKey, cfg.LLMModelID, cfg.SessionKey, cfg.GatewayToken)
	}
}

func fatal(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
