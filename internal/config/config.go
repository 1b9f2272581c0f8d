// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package config loads the voice bridge's environment configuration,
// mirroring the viper + validator loading discipline used across the
// teacher's services.
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AppConfig is the environment-driven configuration surface for the voice
// bridge. Every field corresponds to one of the "recognised options" in
// the external-interfaces table: binary paths, endpoint URLs, credentials.
type AppConfig struct {
	Name     string `mapstructure:"SERVICE_NAME" validate:"required"`
	Host     string `mapstructure:"HOST" validate:"required"`
	Port     string `mapstructure:"PORT" validate:"required"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DefaultRoomID string `mapstructure:"DEFAULT_ROOM_ID" validate:"required"`
	BotPeerPrefix string `mapstructure:"BOT_PEER_PREFIX" validate:"required"`

	STTBinaryPath string `mapstructure:"STT_BINARY_PATH"`
	TTSBinaryPath string `mapstructure:"TTS_BINARY_PATH"`
	DecoderPath   string `mapstructure:"DECODER_BINARY_PATH"`

	LLMEndpointURL string `mapstructure:"LLM_ENDPOINT_URL"`
	LLMAPIKey      string `mapstructure:"LLM_API_KEY"`
	LLMModelID     string `mapstructure:"LLM_MODEL_ID"`
	LLMBackend     string `mapstructure:"LLM_BACKEND"` // "openai" | "anthropic" | "http"

	STTRemoteURL string `mapstructure:"STT_REMOTE_URL"`
	STTModelID   string `mapstructure:"STT_MODEL_ID"`
	STTAPIKey    string `mapstructure:"STT_API_KEY"`

	TTSRemoteURL string `mapstructure:"TTS_REMOTE_URL"`
	TTSModelID   string `mapstructure:"TTS_MODEL_ID"`
	TTSVoice     string `mapstructure:"TTS_VOICE"`
	TTSFormat    string `mapstructure:"TTS_FORMAT"`
	TTSAPIKey    string `mapstructure:"TTS_API_KEY"`

	GatewayToken string `mapstructure:"GATEWAY_TOKEN"`
	SessionKey   string `mapstructure:"SESSION_KEY"`

	MetricsAddr string `mapstructure:"METRICS_ADDR"`
}

// InitConfig builds a viper instance that reads a .env-style file (if
// present) and overlays process environment variables on top of it.
func InitConfig() (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if path := os.Getenv("ENV_PATH"); path != "" {
		v.SetConfigFile(path)
	}

	setDefault(v)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}
	return v, nil
}

func setDefault(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "friday-voice-bridge")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DEFAULT_ROOM_ID", "friday-default-room")
	v.SetDefault("BOT_PEER_PREFIX", "friday-voice-bot-")

	v.SetDefault("STT_BINARY_PATH", "friday-stt")
	v.SetDefault("TTS_BINARY_PATH", "friday-tts")
	v.SetDefault("DECODER_BINARY_PATH", "ffmpeg")

	v.SetDefault("LLM_BACKEND", "http")
	v.SetDefault("LLM_MODEL_ID", "gpt-4o-mini")
	v.SetDefault("STT_MODEL_ID", "whisper-1")
	v.SetDefault("TTS_MODEL_ID", "sonic")
	v.SetDefault("TTS_VOICE", "default")
	v.SetDefault("TTS_FORMAT", "ogg")

	v.SetDefault("METRICS_ADDR", ":9464")
}

// GetApplicationConfig unmarshals and validates the AppConfig.
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
