package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// RIFF/WAVE layout.
const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	minFmtSize      = 16
	riffID          = "RIFF"
	waveID          = "WAVE"
	fmtChunkID      = "fmt "
	dataChunkID     = "data"
)

// Error messages.
const (
	errFmtWAVPart     = "part %d: %w"
	errFmtWAVTooLarge = "%w: joined data exceeds %d bytes"
)

// WAV errors.
var (
	ErrNotWAV        = errors.New("not a RIFF/WAVE file")
	ErrWAVNoFormat   = errors.New("WAV has no fmt chunk")
	ErrWAVNoData     = errors.New("WAV has no data chunk")
	ErrWAVMismatch   = errors.New("WAV parts use different sample formats")
	ErrNothingToJoin = errors.New("no WAV parts to join")
	ErrWAVTooLarge   = errors.New("WAV too large")
)

// WAV is the format and sample data of a parsed WAV file.
type WAV struct {
	Format []byte
	Data   []byte
}

// SampleRate returns the sample rate from the fmt chunk.
func (w WAV) SampleRate() int {
	return int(binary.LittleEndian.Uint32(w.Format[4:8]))
}

// Channels returns the channel count from the fmt chunk.
func (w WAV) Channels() int {
	return int(binary.LittleEndian.Uint16(w.Format[2:4]))
}

// ParseWAV walks the RIFF chunks of data and returns the fmt chunk body and
// the sample data. Unknown chunks are skipped.
func ParseWAV(data []byte) (WAV, error) {
	if len(data) < riffHeaderSize || string(data[0:4]) != riffID || string(data[8:12]) != waveID {
		return WAV{}, ErrNotWAV
	}

	var parsed WAV

	offset := riffHeaderSize
	for offset+chunkHeaderSize <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderSize
		end := min(body+chunkSize, len(data))

		switch chunkID {
		case fmtChunkID:
			if chunkSize >= minFmtSize && end-body >= minFmtSize {
				parsed.Format = data[body:end]
			}
		case dataChunkID:
			if parsed.Format == nil {
				return WAV{}, ErrWAVNoFormat
			}

			parsed.Data = data[body:end]

			return parsed, nil
		}

		offset = body + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}

	if parsed.Format == nil {
		return WAV{}, ErrWAVNoFormat
	}

	return WAV{}, ErrWAVNoData
}

// JoinWAV concatenates the sample data of parts, which must share one sample
// format, into a single WAV file.
func JoinWAV(parts [][]byte) ([]byte, error) {
	if len(parts) == 0 {
		return nil, ErrNothingToJoin
	}

	var (
		format []byte
		total  int
		waves  = make([]WAV, len(parts))
	)

	for i, part := range parts {
		parsed, err := ParseWAV(part)
		if err != nil {
			return nil, fmt.Errorf(errFmtWAVPart, i+1, err)
		}

		if format == nil {
			format = parsed.Format
		} else if !bytes.Equal(format, parsed.Format) {
			return nil, fmt.Errorf(errFmtWAVPart, i+1, ErrWAVMismatch)
		}

		waves[i] = parsed
		total += len(parsed.Data)
	}

	riffSize := 4 + chunkHeaderSize + len(format) + len(format)%2 + chunkHeaderSize + total + total%2
	if int64(riffSize) > math.MaxUint32 {
		return nil, fmt.Errorf(errFmtWAVTooLarge, ErrWAVTooLarge, uint64(math.MaxUint32))
	}

	var out bytes.Buffer

	out.Grow(chunkHeaderSize + riffSize)
	out.WriteString(riffID)
	writeUint32(&out, riffSize)
	out.WriteString(waveID)

	out.WriteString(fmtChunkID)
	writeUint32(&out, len(format))
	out.Write(format)

	if len(format)%2 != 0 {
		out.WriteByte(0)
	}

	out.WriteString(dataChunkID)
	writeUint32(&out, total)

	for _, wave := range waves {
		out.Write(wave.Data)
	}

	if total%2 != 0 {
		out.WriteByte(0)
	}

	return out.Bytes(), nil
}

func writeUint32(buf *bytes.Buffer, value int) {
	var scratch [4]byte

	binary.LittleEndian.PutUint32(scratch[:], uint32(value))
	buf.Write(scratch[:])
}
