// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package audio provides the PCM/WAV format helpers shared by the VAD,
// turn pipeline, and playback pacer: WAV packaging, multi-channel
// downmix, and RMS level computation.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	bitsPerSample = 16
	audioFormatPCM = 1
)

// ErrNotWAV is returned by ParseWAV when the input lacks a valid RIFF/WAVE
// header.
var ErrNotWAV = errors.New("audio: not a valid RIFF/WAVE stream")

// PackWAV wraps mono PCM-16 little-endian samples in a standard RIFF/WAVE
// header at the given sample rate. The field order and layout mirror the
// canonical single-channel 16-bit PCM WAV container.
func PackWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}

	var buf bytes.Buffer
	numChannels := uint16(1)
	byteRate := uint32(sampleRate * int(numChannels) * bitsPerSample / 8)
	blockAlign := uint16(int(numChannels) * bitsPerSample / 8)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(&buf, binary.LittleEndian, numChannels)
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// ParseWAV extracts mono PCM-16 samples and the sample rate from a
// RIFF/WAVE buffer produced by PackWAV (or any standard 16-bit PCM WAV).
func ParseWAV(wav []byte) (pcm []byte, sampleRate int, err error) {
	if len(wav) < 44 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, ErrNotWAV
	}

	offset := 12
	var rate uint32
	var channels uint16
	var bits uint16
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := binary.LittleEndian.Uint32(wav[offset+4 : offset+8])
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(wav) {
				return nil, 0, ErrNotWAV
			}
			channels = binary.LittleEndian.Uint16(wav[body+2 : body+4])
			rate = binary.LittleEndian.Uint32(wav[body+4 : body+8])
			bits = binary.LittleEndian.Uint16(wav[body+14 : body+16])
		case "data":
			if body+int(chunkSize) > len(wav) {
				return nil, 0, ErrNotWAV
			}
			pcm = wav[body : body+int(chunkSize)]
		}

		offset = body + int(chunkSize)
		if chunkSize%2 == 1 {
			offset++ // chunks are word-aligned
		}
	}

	if rate == 0 || pcm == nil {
		return nil, 0, ErrNotWAV
	}
	if channels != 1 || bits != bitsPerSample {
		return nil, 0, fmt.Errorf("audio: unsupported wav layout channels=%d bits=%d", channels, bits)
	}
	return pcm, int(rate), nil
}

// Downmix averages interleaved multi-channel PCM-16 samples into mono,
// clipping each accumulated value to the int16 range. channelCount <= 1
// returns the input unchanged.
func Downmix(samples []int16, channelCount int) []int16 {
	if channelCount <= 1 || len(samples) == 0 {
		return samples
	}
	frameCount := len(samples) / channelCount
	out := make([]int16, frameCount)
	for i := 0; i < frameCount; i++ {
		var sum int32
		for c := 0; c < channelCount; c++ {
			sum += int32(samples[i*channelCount+c])
		}
		avg := sum / int32(channelCount)
		out[i] = clipInt16(avg)
	}
	return out
}

func clipInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// RMS computes the root-mean-square level of mono PCM-16 samples,
// normalised so full-scale equals 1.0.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		n := float64(s) / 32768.0
		sumSquares += n * n
	}
	mean := sumSquares / float64(len(samples))
	return math.Sqrt(mean)
}

// SamplesToBytes encodes PCM-16 samples as little-endian bytes, the
// layout WAV and the media-decoder collaborator both use.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToSamples decodes little-endian PCM-16 bytes into samples. A
// trailing odd byte is ignored.
func BytesToSamples(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
