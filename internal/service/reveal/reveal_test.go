package reveal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChunksConcatenateToOriginal(t *testing.T) {
	texts := []string{
		"",
		"a",
		"Attention weighs tokens.",
		"注意力机制是一种加权求和。",
		"mixed 中文 and emoji 🙂 text",
	}
	for _, text := range texts {
		for size := 0; size <= 7; size++ {
			chunks := Chunks(text, size)
			require.Equal(t, text, strings.Join(chunks, ""), "size=%d", size)
		}
	}
}

func TestChunksRespectRuneBoundaries(t *testing.T) {
	chunks := Chunks("你好世界", 3)
	require.Equal(t, []string{"你好世", "界"}, chunks)

	chunks = Chunks("abcd", 2)
	require.Equal(t, []string{"ab", "cd"}, chunks)
}

func TestPlayEmitsInOrder(t *testing.T) {
	var got []string
	err := Pacer{ChunkSize: 4, Delay: time.Millisecond}.Play(context.Background(), "Hello, 世界!", func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Hell", "o, 世", "界!"}, got)
}

func TestPlayStopsOnEmitError(t *testing.T) {
	calls := 0
	boom := errors.New("client gone")
	err := Pacer{ChunkSize: 1}.Play(context.Background(), "abc", func(string) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestPlayStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Pacer{ChunkSize: 1, Delay: time.Hour}.Play(ctx, "abc", func(string) error {
		calls++
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}
