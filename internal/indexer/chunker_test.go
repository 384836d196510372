package indexer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowChunker_SmallContentSingleChunk(t *testing.T) {
	c := NewSlidingWindowChunker()
	content := "package main\n\nfunc main() {}\n"

	chunks, err := c.Chunk(context.Background(), content, ChunkOptions{ChunkSizeTokens: 256, OverlapTokens: 32})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Content)
	assert.Equal(t, 0, chunks[0].ByteStart)
	assert.Equal(t, len(content), chunks[0].ByteEnd)
	assert.Equal(t, 1, chunks[0].LineStart)
}

func TestSlidingWindowChunker_SplitsLargeContentWithOverlap(t *testing.T) {
	c := NewSlidingWindowChunker()
	line := strings.Repeat("x", 40) + "\n"
	content := strings.Repeat(line, 100) // well over the 1024-char default budget

	chunks, err := c.Chunk(context.Background(), content, ChunkOptions{ChunkSizeTokens: 256, OverlapTokens: 32})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, ch.ByteStart, ch.ByteEnd)
		assert.GreaterOrEqual(t, ch.LineStart, 1)
		assert.GreaterOrEqual(t, ch.LineEnd, ch.LineStart)
		if i > 0 {
			// consecutive windows overlap: next start is before previous end
			assert.Less(t, ch.ByteStart, chunks[i-1].ByteEnd)
		}
	}

	data := []byte(content)
	for _, ch := range chunks {
		assert.Equal(t, string(data[ch.ByteStart:ch.ByteEnd]), ch.Content)
	}
}

func TestSlidingWindowChunker_AlignsToNewlineAtStartPlus200Floor(t *testing.T) {
	c := NewSlidingWindowChunker()
	// Default budget is maxChars=1024 (chunkSizeTokens=256 * 4). The only
	// newline sits at byte 300, well past the start+200 floor but short of
	// start+maxChars/2 (512) — pinning that the window aligns to it rather
	// than the old, wrong half-budget floor.
	content := strings.Repeat("a", 300) + "\n" + strings.Repeat("b", 1699)

	chunks, err := c.Chunk(context.Background(), content, ChunkOptions{ChunkSizeTokens: 256, OverlapTokens: 0})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, 301, chunks[0].ByteEnd)
}

func TestSlidingWindowChunker_NeverSplitsMultibyteRune(t *testing.T) {
	c := NewSlidingWindowChunker()
	content := strings.Repeat("日本語のテキストです。", 80)

	chunks, err := c.Chunk(context.Background(), content, ChunkOptions{ChunkSizeTokens: 256, OverlapTokens: 32})
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.True(t, len(ch.Content) > 0)
		assert.NotContains(t, ch.Content, "�")
	}
}

func TestSlidingWindowChunker_EmptyContent(t *testing.T) {
	c := NewSlidingWindowChunker()
	chunks, err := c.Chunk(context.Background(), "", ChunkOptions{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSlidingWindowChunker_CancelledContext(t *testing.T) {
	c := NewSlidingWindowChunker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	content := strings.Repeat("x\n", 10000)
	_, err := c.Chunk(ctx, content, ChunkOptions{ChunkSizeTokens: 256, OverlapTokens: 32})
	assert.ErrorIs(t, err, context.Canceled)
}
