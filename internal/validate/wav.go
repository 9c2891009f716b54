package validate

import (
	"encoding/binary"
	"fmt"
	"math"
)

// wavInfo holds the decoded properties of a PCM WAV artifact.
type wavInfo struct {
	Channels      int
	SampleRateHz  int
	BitsPerSample int
	ByteRate      int

	DurationSeconds float64
	MeanDBFS        float64
	// ChunkDBFS is the loudness of each 1-second chunk in order.
	ChunkDBFS []float64
}

// dbfsFloor clamps pure silence, which would otherwise be -Inf.
const dbfsFloor = -120.0

// parseWAV decodes a RIFF/WAVE container with PCM samples and measures
// loudness per 1-second chunk.
func parseWAV(data []byte) (*wavInfo, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var info wavInfo
	var sampleData []byte

	// Walk chunks after the 12-byte RIFF header.
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short")
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			if audioFormat != 1 {
				return nil, fmt.Errorf("unsupported WAV encoding %d (PCM only)", audioFormat)
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRateHz = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			info.ByteRate = int(binary.LittleEndian.Uint32(data[body+8 : body+12]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			sampleData = data[body : body+size]
		}

		if size%2 == 1 {
			size++ // chunks are word-aligned
		}
		offset = body + size
	}

	if info.SampleRateHz == 0 || info.Channels == 0 || info.BitsPerSample == 0 {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if len(sampleData) == 0 {
		return nil, fmt.Errorf("missing data chunk")
	}

	bytesPerSample := info.BitsPerSample / 8
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("unsupported bit depth %d", info.BitsPerSample)
	}

	frameSize := bytesPerSample * info.Channels
	frames := len(sampleData) / frameSize
	info.DurationSeconds = float64(frames) / float64(info.SampleRateHz)

	// Mean loudness over the whole file and per 1-second chunk.
	framesPerChunk := info.SampleRateHz
	var totalSq float64
	var totalCount int
	for start := 0; start < frames; start += framesPerChunk {
		end := start + framesPerChunk
		if end > frames {
			end = frames
		}
		var sq float64
		var count int
		for f := start; f < end; f++ {
			for ch := 0; ch < info.Channels; ch++ {
				pos := (f*info.Channels + ch) * bytesPerSample
				v, err := sampleValue(sampleData[pos:pos+bytesPerSample], info.BitsPerSample)
				if err != nil {
					return nil, err
				}
				sq += v * v
				count++
			}
		}
		totalSq += sq
		totalCount += count
		info.ChunkDBFS = append(info.ChunkDBFS, rmsToDBFS(sq, count))
	}
	info.MeanDBFS = rmsToDBFS(totalSq, totalCount)

	return &info, nil
}

// sampleValue normalizes one PCM sample to [-1, 1].
func sampleValue(b []byte, bits int) (float64, error) {
	switch bits {
	case 8:
		// 8-bit WAV is unsigned.
		return (float64(b[0]) - 128) / 128, nil
	case 16:
		v := int16(binary.LittleEndian.Uint16(b))
		return float64(v) / 32768, nil
	case 32:
		v := int32(binary.LittleEndian.Uint32(b))
		return float64(v) / 2147483648, nil
	default:
		return 0, fmt.Errorf("unsupported bit depth %d", bits)
	}
}

func rmsToDBFS(sumSquares float64, count int) float64 {
	if count == 0 {
		return dbfsFloor
	}
	rms := math.Sqrt(sumSquares / float64(count))
	if rms <= 0 {
		return dbfsFloor
	}
	db := 20 * math.Log10(rms)
	if db < dbfsFloor {
		return dbfsFloor
	}
	return db
}
