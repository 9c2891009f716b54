package validate

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// mp3Info holds properties derived from walking MPEG audio frame headers.
type mp3Info struct {
	Channels        int
	SampleRateHz    int
	DurationSeconds float64
	BitrateKbps     int
	Frames          int
}

var (
	mpeg1L3Bitrates = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320}
	mpeg2L3Bitrates = [16]int{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160}

	mpeg1Rates  = [4]int{44100, 48000, 32000, 0}
	mpeg2Rates  = [4]int{22050, 24000, 16000, 0}
	mpeg25Rates = [4]int{11025, 12000, 8000, 0}
)

// parseMP3 walks Layer III frame headers, accumulating duration and
// averaging the per-frame bitrate. A leading ID3v2 tag is skipped.
func parseMP3(data []byte) (*mp3Info, error) {
	pos := 0
	if len(data) >= 10 && string(data[0:3]) == "ID3" {
		size := int(data[6]&0x7F)<<21 | int(data[7]&0x7F)<<14 | int(data[8]&0x7F)<<7 | int(data[9]&0x7F)
		pos = 10 + size
	}

	var info mp3Info
	var bitrateSum int

	for pos+4 <= len(data) {
		if data[pos] != 0xFF || data[pos+1]&0xE0 != 0xE0 {
			pos++
			continue
		}

		versionBits := (data[pos+1] >> 3) & 0x3
		layerBits := (data[pos+1] >> 1) & 0x3
		bitrateIdx := data[pos+2] >> 4
		rateIdx := (data[pos+2] >> 2) & 0x3
		padding := int((data[pos+2] >> 1) & 0x1)
		channelMode := data[pos+3] >> 6

		// Layer III only; reserved values mean a false sync.
		if layerBits != 0x1 || versionBits == 0x1 || bitrateIdx == 0 || bitrateIdx == 0xF || rateIdx == 0x3 {
			pos++
			continue
		}

		var bitrate, sampleRate, samplesPerFrame int
		switch versionBits {
		case 0x3: // MPEG1
			bitrate = mpeg1L3Bitrates[bitrateIdx]
			sampleRate = mpeg1Rates[rateIdx]
			samplesPerFrame = 1152
		case 0x2: // MPEG2
			bitrate = mpeg2L3Bitrates[bitrateIdx]
			sampleRate = mpeg2Rates[rateIdx]
			samplesPerFrame = 576
		default: // MPEG2.5
			bitrate = mpeg2L3Bitrates[bitrateIdx]
			sampleRate = mpeg25Rates[rateIdx]
			samplesPerFrame = 576
		}
		if bitrate == 0 || sampleRate == 0 {
			pos++
			continue
		}

		frameLen := samplesPerFrame/8*bitrate*1000/sampleRate + padding
		if frameLen <= 4 || pos+frameLen > len(data) {
			break
		}

		if info.Frames == 0 {
			info.SampleRateHz = sampleRate
			if channelMode == 0x3 {
				info.Channels = 1
			} else {
				info.Channels = 2
			}
		}
		info.Frames++
		info.DurationSeconds += float64(samplesPerFrame) / float64(sampleRate)
		bitrateSum += bitrate

		pos += frameLen
	}

	if info.Frames == 0 {
		return nil, fmt.Errorf("no MPEG audio frames found")
	}
	info.BitrateKbps = bitrateSum / info.Frames
	return &info, nil
}

// decodeMP3Loudness decodes the stream to PCM and measures loudness the
// same way the WAV path does: mean dBFS plus dBFS per 1-second chunk.
func decodeMP3Loudness(data []byte) (mean float64, chunks []float64, err error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}

	// Decoded output is always 16-bit little-endian stereo.
	buf := make([]byte, dec.SampleRate()*4)
	var totalSq float64
	var totalCount int
	for {
		n, readErr := io.ReadFull(dec, buf)
		if n > 0 {
			var sq float64
			count := n / 2
			for i := 0; i+1 < n; i += 2 {
				v := float64(int16(binary.LittleEndian.Uint16(buf[i:i+2]))) / 32768
				sq += v * v
			}
			totalSq += sq
			totalCount += count
			chunks = append(chunks, rmsToDBFS(sq, count))
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return 0, nil, readErr
		}
	}

	if totalCount == 0 {
		return 0, nil, fmt.Errorf("no decodable samples")
	}
	return rmsToDBFS(totalSq, totalCount), chunks, nil
}
