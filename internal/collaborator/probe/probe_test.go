// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingSkipsTargetsWithRemoteConfigured(t *testing.T) {
	targets := []Target{
		{Name: "stt", BinaryPath: "", RemoteConfigured: true, MissingEvent: "stt_binary_missing"},
	}
	assert.Empty(t, Missing(context.Background(), targets))
}

func TestMissingReportsAbsentBinaryWithNoRemoteFallback(t *testing.T) {
	targets := []Target{
		{Name: "tts", BinaryPath: "definitely-not-a-real-binary-xyz", RemoteConfigured: false, MissingEvent: "tts_binary_missing"},
	}
	missing := Missing(context.Background(), targets)
	assert.Equal(t, []string{"tts_binary_missing"}, missing)
}

func TestMissingFindsBinaryOnPath(t *testing.T) {
	targets := []Target{
		{Name: "shell", BinaryPath: "sh", RemoteConfigured: false, MissingEvent: "sh_missing"},
	}
	assert.Empty(t, Missing(context.Background(), targets))
}
