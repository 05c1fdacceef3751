// Package reveal 把已完成的回复切成小段逐步推送，只影响展示节奏。
package reveal

import (
	"context"
	"time"
	"unicode/utf8"
)

// Chunks splits text into pieces of at most size runes. Concatenating the result
// yields text exactly.
func Chunks(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size < 1 {
		size = 1
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, count := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}

// Pacer emits chunks with a fixed delay between them.
type Pacer struct {
	ChunkSize int
	Delay     time.Duration
}

// Play emits every chunk of text in order. It stops early when ctx is done or emit fails.
func (p Pacer) Play(ctx context.Context, text string, emit func(chunk string) error) error {
	chunks := Chunks(text, p.ChunkSize)
	for i, chunk := range chunks {
		if err := emit(chunk); err != nil {
			return err
		}
		if i == len(chunks)-1 || p.Delay <= 0 {
			continue
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
