package media

import (
	"errors"
	"io"
	"time"

	"live-translator/internal/audio"
	"live-translator/internal/progress"
)

// ChunkReader splits a PCM stream into fixed-duration buffers and tracks how
// much of the expected length has been consumed.
type ChunkReader struct {
	r         io.Reader
	chunkSize int
	expected  int64
	consumed  int64
	offset    time.Duration
}

// NewChunkReader reads 16 kHz mono s16le PCM in chunks of chunk duration.
// expected is the media duration used for progress, zero if unknown.
func NewChunkReader(r io.Reader, chunk, expected time.Duration) *ChunkReader {
	size := audio.BytesFor(chunk, audio.SampleRate, audio.Channels)
	if size <= 0 {
		size = audio.BytesFor(time.Second, audio.SampleRate, audio.Channels)
	}
	return &ChunkReader{
		r:         r,
		chunkSize: size,
		expected:  int64(audio.BytesFor(expected, audio.SampleRate, audio.Channels)),
	}
}

// Next returns the next buffer, or io.EOF once the stream is exhausted. The
// final buffer may be shorter than a full chunk.
func (c *ChunkReader) Next() (audio.Buffer, error) {
	data := make([]byte, c.chunkSize)
	n, err := io.ReadFull(c.r, data)
	if n == 0 {
		if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return audio.Buffer{}, err
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return audio.Buffer{}, err
	}

	// Keep whole samples only.
	n -= n % audio.BytesPerSample
	buf := audio.Buffer{
		Data:       data[:n],
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
		Timestamp:  c.offset,
	}
	c.consumed += int64(n)
	c.offset += buf.Duration()
	return buf, nil
}

// Progress returns the consumed fraction of the expected length.
func (c *ChunkReader) Progress() float64 {
	return progress.Ratio(c.consumed, c.expected)
}

// Consumed returns the number of PCM bytes read so far.
func (c *ChunkReader) Consumed() int64 {
	return c.consumed
}
