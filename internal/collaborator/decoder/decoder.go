// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package decoder implements the media-decoder collaborator: it reads a
// container file (the TTS chain's output) and writes raw signed-16-bit
// little-endian mono PCM at the playback sample rate, via an exec.Command
// invocation of the configured decoder binary (ffmpeg by default).
package decoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

const decodeTimeout = 25 * time.Second

// PlaybackSampleRate is the fixed output rate the turn pipeline feeds
// into the playback pacer.
const PlaybackSampleRate = 48000

// Decoder converts a compressed audio blob into raw PCM-16 mono samples
// at PlaybackSampleRate.
type Decoder interface {
	Decode(ctx context.Context, blob []byte, format string) (pcm []byte, err error)
}

// FFmpegDecoder shells out to a binary supporting ffmpeg's argument
// conventions.
type FFmpegDecoder struct {
	BinaryPath string
}

func (d FFmpegDecoder) Decode(ctx context.Context, blob []byte, format string) ([]byte, error) {
	if d.BinaryPath == "" {
		return nil, fmt.Errorf("decoder: no binary configured")
	}

	ctx, cancel := context.WithTimeout(ctx, decodeTimeout)
	defer cancel()

	inFile, err := os.CreateTemp("", "friday-decode-in-*."+safeExt(format))
	if err != nil {
		return nil, fmt.Errorf("decoder: creating temp input: %w", err)
	}
	inPath := inFile.Name()
	defer os.Remove(inPath)
	if _, err := inFile.Write(blob); err != nil {
		inFile.Close()
		return nil, fmt.Errorf("decoder: writing temp input: %w", err)
	}
	inFile.Close()

	outFile, err := os.CreateTemp("", "friday-decode-out-*.pcm")
	if err != nil {
		return nil, fmt.Errorf("decoder: creating temp output: %w", err)
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	cmd := exec.CommandContext(ctx, d.BinaryPath,
		"-y", "-i", inPath,
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", "1", "-ar", strconv.Itoa(PlaybackSampleRate),
		outPath,
	)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("decoder: invocation: %w", err)
	}

	pcm, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("decoder: reading output: %w", err)
	}
	return pcm, nil
}

func safeExt(format string) string {
	if format == "" {
		return "bin"
	}
	return format
}
