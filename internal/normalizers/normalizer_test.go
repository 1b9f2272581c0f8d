// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkdownRemovesCommonFormatting(t *testing.T) {
	input := "# Title\n**bold** and _italic_ and `code` and [link](http://x)"
	got := StripMarkdown(input)
	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "*")
	assert.NotContains(t, got, "`")
	assert.Contains(t, got, "bold")
	assert.Contains(t, got, "link")
}

func TestNormalizeWhitespaceCollapsesAndTrims(t *testing.T) {
	got := NormalizeWhitespace("  a   b\n\tc  ")
	assert.Equal(t, "a b c", got)
}

func TestForSpeechPipeline(t *testing.T) {
	got := ForSpeech("# Hello   **world**")
	assert.Equal(t, "Hello world", got)
}
