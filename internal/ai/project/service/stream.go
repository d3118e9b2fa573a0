package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const defaultChunkSize = 4096

// StreamConsumer turns a chunked text response into one growing message.
type StreamConsumer struct {
	chunkSize int
}

func NewStreamConsumer() *StreamConsumer {
	return &StreamConsumer{chunkSize: defaultChunkSize}
}

// Consume reads r until EOF, calling onChunk with the accumulated content after
// every decoded chunk, strictly in arrival order. It returns the trimmed content.
// Bytes of a UTF-8 sequence split across reads are held until the sequence completes.
func (c *StreamConsumer) Consume(ctx context.Context, r io.Reader, onChunk func(content string)) (string, error) {
	var (
		content strings.Builder
		pending []byte
		buf     = make([]byte, c.chunkSize)
	)

	apply := func(chunk string) {
		if chunk == "" {
			return
		}
		content.WriteString(chunk)
		onChunk(content.String())
	}

	for {
		if err := ctx.Err(); err != nil {
			return strings.TrimSpace(content.String()), err
		}

		n, err := r.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			var complete []byte
			complete, pending = splitComplete(pending)
			apply(strings.ToValidUTF8(string(complete), string(utf8.RuneError)))
		}

		if errors.Is(err, io.EOF) {
			apply(strings.ToValidUTF8(string(pending), string(utf8.RuneError)))
			return strings.TrimSpace(content.String()), nil
		}
		if err != nil {
			return strings.TrimSpace(content.String()), fmt.Errorf("read stream: %w", err)
		}
	}
}

// splitComplete separates b into a prefix of whole UTF-8 sequences and a
// trailing incomplete sequence that needs more bytes.
func splitComplete(b []byte) (complete, rest []byte) {
	// a rune is at most utf8.UTFMax bytes, so only the tail can be incomplete
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return b, nil
		}
		return b[:i], append([]byte(nil), b[i:]...)
	}
	return b, nil
}
