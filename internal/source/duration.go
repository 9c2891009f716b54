package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var freeTextMinutes = regexp.MustCompile(`(\d+)\s*min`)

// ParsedDuration is a duration extracted from free-form metadata text.
type ParsedDuration struct {
	Seconds  int
	HasHours bool
}

// ParseDurationText parses duration strings as they appear in search
// results: "10:30", "1:10:00", "9 min", "10 minutes". The hours flag is
// kept separately because any value with a non-zero hours component is
// unsuitable regardless of the configured window.
func ParseDurationText(text string) (ParsedDuration, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ParsedDuration{}, fmt.Errorf("empty duration text")
	}

	if strings.Contains(text, ":") {
		parts := strings.Split(text, ":")
		switch len(parts) {
		case 2:
			m, errM := strconv.Atoi(strings.TrimSpace(parts[0]))
			s, errS := strconv.Atoi(strings.TrimSpace(parts[1]))
			if errM != nil || errS != nil || m < 0 || s < 0 || s >= 60 {
				return ParsedDuration{}, fmt.Errorf("malformed duration %q", text)
			}
			return ParsedDuration{Seconds: m*60 + s}, nil
		case 3:
			h, errH := strconv.Atoi(strings.TrimSpace(parts[0]))
			m, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
			s, errS := strconv.Atoi(strings.TrimSpace(parts[2]))
			if errH != nil || errM != nil || errS != nil || h < 0 || m < 0 || s < 0 || m >= 60 || s >= 60 {
				return ParsedDuration{}, fmt.Errorf("malformed duration %q", text)
			}
			return ParsedDuration{Seconds: h*3600 + m*60 + s, HasHours: h > 0}, nil
		default:
			return ParsedDuration{}, fmt.Errorf("malformed duration %q", text)
		}
	}

	if m := freeTextMinutes.FindStringSubmatch(strings.ToLower(text)); m != nil {
		minutes, err := strconv.Atoi(m[1])
		if err != nil {
			return ParsedDuration{}, fmt.Errorf("malformed duration %q", text)
		}
		return ParsedDuration{Seconds: minutes * 60}, nil
	}

	return ParsedDuration{}, fmt.Errorf("unrecognized duration %q", text)
}

// DurationWindow is the metadata-level suitability range in seconds.
type DurationWindow struct {
	MinSeconds int
	MaxSeconds int
}

// SuitableText reports whether a duration string falls inside the window.
// Unparseable values and values with an hours component are unsuitable.
func (w DurationWindow) SuitableText(text string) bool {
	d, err := ParseDurationText(text)
	if err != nil {
		return false
	}
	return w.Suitable(d)
}

// Suitable reports whether a parsed duration falls inside the window.
func (w DurationWindow) Suitable(d ParsedDuration) bool {
	if d.HasHours {
		return false
	}
	return d.Seconds >= w.MinSeconds && d.Seconds <= w.MaxSeconds
}

// SuitableSeconds reports whether a scalar seconds count falls inside the
// window.
func (w DurationWindow) SuitableSeconds(seconds float64) bool {
	return seconds >= float64(w.MinSeconds) && seconds <= float64(w.MaxSeconds)
}
