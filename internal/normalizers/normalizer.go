// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package normalizers implements the text-preprocessing pipeline applied
// before TTS synthesis: markdown stripping and number-to-words expansion,
// adapted from the teacher's Cartesia normalizer (which strips markdown
// because Cartesia accepts plain text only) and its number-to-word
// normalizer.
package normalizers

import (
	"regexp"
	"strconv"
	"strings"

	numbertowords "moul.io/number-to-words"
)

var (
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	emphasisRe   = regexp.MustCompile(`\*{1,2}([^*]+?)\*{1,2}|_{1,2}([^_]+?)_{1,2}`)
	inlineCodeRe = regexp.MustCompile("`([^`]+)`")
	codeBlockRe  = regexp.MustCompile("(?s)```[^`]*```")
	blockquoteRe = regexp.MustCompile(`(?m)^>\s?`)
	linkRe       = regexp.MustCompile(`\[(.*?)\]\(.*?\)`)
	imageRe      = regexp.MustCompile(`!\[(.*?)\]\(.*?\)`)
	hruleRe      = regexp.MustCompile(`(?m)^(-{3,}|\*{3,}|_{3,})$`)
	strayMarkRe  = regexp.MustCompile(`[*_]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	integerRe    = regexp.MustCompile(`-?\d+`)
)

// StripMarkdown removes markdown formatting, leaving plain text suitable
// for TTS engines (like Cartesia) that do not accept any markup.
func StripMarkdown(input string) string {
	out := headingRe.ReplaceAllString(input, "")
	out = emphasisRe.ReplaceAllString(out, "$1$2")
	out = inlineCodeRe.ReplaceAllString(out, "$1")
	out = codeBlockRe.ReplaceAllString(out, "")
	out = blockquoteRe.ReplaceAllString(out, "")
	out = linkRe.ReplaceAllString(out, "$1")
	out = imageRe.ReplaceAllString(out, "$1")
	out = hruleRe.ReplaceAllString(out, "")
	out = strayMarkRe.ReplaceAllString(out, "")
	return out
}

// NormalizeWhitespace collapses runs of whitespace to a single space and
// trims the result.
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// ExpandNumbers rewrites standalone integers as words (e.g. "42" becomes
// "forty-two"), so TTS engines do not read digits literally.
func ExpandNumbers(text string) string {
	return integerRe.ReplaceAllStringFunc(text, func(match string) string {
		n, err := strconv.Atoi(match)
		if err != nil {
			return match
		}
		return numbertowords.IntegerToString(n)
	})
}

// ForSpeech runs the full pipeline a TTS collaborator applies before
// synthesis: markdown stripping, number expansion, whitespace collapse.
func ForSpeech(text string) string {
	text = StripMarkdown(text)
	text = ExpandNumbers(text)
	return NormalizeWhitespace(text)
}
