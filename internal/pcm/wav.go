package pcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrNotWAV = errors.New("not a RIFF/WAVE file")

// EncodeWAV wraps mono 16-bit samples in a canonical 44-byte WAV header.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	var buf bytes.Buffer

	dataSize := len(samples) * 2
	buf.Grow(44 + dataSize)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(Bytes(samples))

	return buf.Bytes()
}

// IsWAV reports whether data starts with a RIFF/WAVE header.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV extracts mono 16-bit PCM from a WAV file. Stereo input is
// downmixed by averaging the two channels.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if !IsWAV(data) {
		return nil, 0, ErrNotWAV
	}

	var (
		channels   uint16
		sampleRate uint32
		bitDepth   uint16
		haveFormat bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			format := binary.LittleEndian.Uint16(data[body:])
			if format != 1 {
				return nil, 0, fmt.Errorf("unsupported wav format %d", format)
			}
			channels = binary.LittleEndian.Uint16(data[body+2:])
			sampleRate = binary.LittleEndian.Uint32(data[body+4:])
			bitDepth = binary.LittleEndian.Uint16(data[body+14:])
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, 0, errors.New("data chunk before fmt chunk")
			}
			if bitDepth != 16 {
				return nil, 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
			}
			samples := FromBytes(data[body : body+size])
			switch channels {
			case 1:
				return samples, int(sampleRate), nil
			case 2:
				mono := make([]int16, len(samples)/2)
				for i := range mono {
					mono[i] = int16((int32(samples[2*i]) + int32(samples[2*i+1])) / 2)
				}
				return mono, int(sampleRate), nil
			default:
				return nil, 0, fmt.Errorf("unsupported channel count %d", channels)
			}
		}

		pos = body + size + size%2
	}

	return nil, 0, errors.New("missing data chunk")
}
