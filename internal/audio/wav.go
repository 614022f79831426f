package audio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteWAV writes a canonical 44-byte RIFF header followed by s16le data.
func WriteWAV(w io.Writer, data []byte, sampleRate, channels int) error {
	if err := WriteWAVHeader(w, int64(len(data)), sampleRate, channels); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}

// WriteWAVHeader writes the RIFF header for dataLen bytes of s16le PCM.
func WriteWAVHeader(w io.Writer, dataLen int64, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid wav format: rate=%d channels=%d", sampleRate, channels)
	}

	byteRate := sampleRate * channels * BytesPerSample
	header := struct {
		ChunkID       [4]byte
		ChunkSize     uint32
		Format        [4]byte
		Subchunk1ID   [4]byte
		Subchunk1Size uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Subchunk2ID   [4]byte
		Subchunk2Size uint32
	}{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataLen),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(byteRate),
		BlockAlign:    uint16(channels * BytesPerSample),
		BitsPerSample: 8 * BytesPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataLen),
	}

	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	return nil
}

// DownmixToMono averages interleaved s16le channels into one.
func DownmixToMono(data []byte, channels int) []byte {
	if channels <= 1 {
		return data
	}
	frameSize := channels * BytesPerSample
	frames := len(data) / frameSize
	out := make([]byte, frames*BytesPerSample)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < channels; c++ {
			off := i*frameSize + c*BytesPerSample
			sum += int(int16(binary.LittleEndian.Uint16(data[off:])))
		}
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(int16(sum/channels)))
	}
	return out
}
