package validate

import "bytes"

// Format is a coarse audio container classification.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatMP3
	FormatOgg
	FormatMP4
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatMP3:
		return "mp3"
	case FormatOgg:
		return "ogg"
	case FormatMP4:
		return "mp4"
	default:
		return "unknown"
	}
}

// DetectFormat classifies an artifact by its magic bytes.
func DetectFormat(data []byte) Format {
	if len(data) < 12 {
		return FormatUnknown
	}
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOgg
	case bytes.Contains(data[:12], []byte("ftyp")):
		return FormatMP4
	}
	return FormatUnknown
}

// LooksLikeAudio reports whether the data carries any recognized audio
// signature, scanning deeper for a raw MPEG sync word when the prefix does
// not match.
func LooksLikeAudio(data []byte) bool {
	if DetectFormat(data) != FormatUnknown {
		return true
	}
	limit := len(data)
	if limit > 4096 {
		limit = 4096
	}
	for i := 0; i+1 < limit; i++ {
		if data[i] == 0xFF && data[i+1]&0xE0 == 0xE0 {
			return true
		}
	}
	return false
}
