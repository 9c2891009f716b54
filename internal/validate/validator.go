// Package validate measures fetched audio artifacts against acceptance
// thresholds: duration windows, bitrate and sample-rate minimums, loudness
// and leading/trailing silence.
package validate

import (
	"fmt"
	"os"

	"github.com/calmstack/mantra/internal/domain"
)

// Issue codes for artifacts that cannot be measured at all.
const (
	IssueMissingFile  = "file does not exist"
	IssueEmptyFile    = "empty file"
	IssueFileTooSmall = "file too small"
	IssueUnreadable   = "unreadable file"
	IssueNotAudio     = "not a recognized audio format"
)

// minArtifactBytes rejects obviously-truncated downloads before decoding.
const minArtifactBytes = 1024

// Config holds the acceptance thresholds. Duration windows are a pair: the
// ideal window, and a wider fallback window inside which a duration miss is
// a minor issue instead of a rejection.
type Config struct {
	IdealMinSeconds    int
	IdealMaxSeconds    int
	FallbackMinSeconds int
	FallbackMaxSeconds int

	MinBitrateKbps  int
	MinSampleRateHz int

	// QuietThresholdDBFS rejects artifacts whose mean loudness is below it.
	QuietThresholdDBFS float64
	// SilenceThresholdDB marks a 1-second chunk as silent.
	SilenceThresholdDB float64
	MaxIntroSilenceSec int
	MaxOutroSilenceSec int

	// SoftPass accepts an artifact with exactly one minor issue.
	SoftPass bool
}

// DefaultConfig mirrors the thresholds used for ~10-minute sessions.
func DefaultConfig() Config {
	return Config{
		IdealMinSeconds:    8 * 60,
		IdealMaxSeconds:    12 * 60,
		FallbackMinSeconds: 5 * 60,
		FallbackMaxSeconds: 15 * 60,
		MinBitrateKbps:     64,
		MinSampleRateHz:    22050,
		QuietThresholdDBFS: -45,
		SilenceThresholdDB: -40,
		MaxIntroSilenceSec: 15,
		MaxOutroSilenceSec: 5,
		SoftPass:           true,
	}
}

// introScanSeconds and outroScanSeconds bound the silence scans.
const (
	introScanSeconds = 30
	outroScanSeconds = 10
)

// Validator checks artifacts against a Config.
type Validator struct {
	cfg Config
}

func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

type issue struct {
	text  string
	minor bool
}

// Validate measures the artifact at path and returns a report. It never
// returns an error: unreadable input is a rejection with a specific issue.
func (v *Validator) Validate(path string) domain.ValidationReport {
	stat, err := os.Stat(path)
	if err != nil {
		return rejectWith(IssueMissingFile)
	}
	if stat.Size() == 0 {
		return rejectWith(IssueEmptyFile)
	}
	if stat.Size() < minArtifactBytes {
		return rejectWith(IssueFileTooSmall)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rejectWith(IssueUnreadable)
	}
	return v.ValidateBytes(data)
}

// ValidateBytes measures an in-memory artifact.
func (v *Validator) ValidateBytes(data []byte) domain.ValidationReport {
	if len(data) == 0 {
		return rejectWith(IssueEmptyFile)
	}

	measurements := map[string]float64{
		"file_size_bytes": float64(len(data)),
	}

	var issues []issue

	switch DetectFormat(data) {
	case FormatWAV:
		info, err := parseWAV(data)
		if err != nil {
			return rejectWith(fmt.Sprintf("failed to analyze audio: %v", err))
		}
		measurements["duration_seconds"] = info.DurationSeconds
		measurements["channels"] = float64(info.Channels)
		measurements["sample_rate_hz"] = float64(info.SampleRateHz)
		measurements["bit_depth"] = float64(info.BitsPerSample)
		measurements["bitrate_kbps"] = deriveBitrateKbps(len(data), info.DurationSeconds)
		measurements["mean_dbfs"] = info.MeanDBFS

		issues = v.durationIssues(info.DurationSeconds, issues)
		issues = v.signalIssues(measurements, issues)
		if info.MeanDBFS < v.cfg.QuietThresholdDBFS {
			issues = append(issues, issue{text: fmt.Sprintf("audio too quiet: %.2f dBFS", info.MeanDBFS)})
		}
		issues = v.silenceIssues(info.ChunkDBFS, measurements, issues)

	case FormatMP3:
		info, err := parseMP3(data)
		if err != nil {
			return rejectWith(fmt.Sprintf("failed to analyze audio: %v", err))
		}
		measurements["duration_seconds"] = info.DurationSeconds
		measurements["channels"] = float64(info.Channels)
		measurements["sample_rate_hz"] = float64(info.SampleRateHz)
		if info.BitrateKbps > 0 {
			measurements["bitrate_kbps"] = float64(info.BitrateKbps)
		} else {
			measurements["bitrate_kbps"] = deriveBitrateKbps(len(data), info.DurationSeconds)
		}

		mean, chunkDBFS, err := decodeMP3Loudness(data)
		if err != nil {
			return rejectWith(fmt.Sprintf("failed to analyze audio: %v", err))
		}
		measurements["mean_dbfs"] = mean

		issues = v.durationIssues(info.DurationSeconds, issues)
		issues = v.signalIssues(measurements, issues)
		if mean < v.cfg.QuietThresholdDBFS {
			issues = append(issues, issue{text: fmt.Sprintf("audio too quiet: %.2f dBFS", mean)})
		}
		issues = v.silenceIssues(chunkDBFS, measurements, issues)

	default:
		return rejectWith(IssueNotAudio)
	}

	report := domain.ValidationReport{Measurements: measurements}
	minor := 0
	for _, is := range issues {
		report.Issues = append(report.Issues, is.text)
		if is.minor {
			minor++
		}
	}
	report.Accepted = len(issues) == 0 ||
		(v.cfg.SoftPass && len(issues) == 1 && minor == 1)
	return report
}

func (v *Validator) durationIssues(seconds float64, issues []issue) []issue {
	minutes := seconds / 60
	if seconds < float64(v.cfg.FallbackMinSeconds) || seconds > float64(v.cfg.FallbackMaxSeconds) {
		return append(issues, issue{
			text: fmt.Sprintf("duration %.1f min outside acceptable range (%d-%d min)",
				minutes, v.cfg.FallbackMinSeconds/60, v.cfg.FallbackMaxSeconds/60),
		})
	}
	if seconds < float64(v.cfg.IdealMinSeconds) || seconds > float64(v.cfg.IdealMaxSeconds) {
		return append(issues, issue{
			text: fmt.Sprintf("duration %.1f min outside ideal range (%d-%d min)",
				minutes, v.cfg.IdealMinSeconds/60, v.cfg.IdealMaxSeconds/60),
			minor: true,
		})
	}
	return issues
}

func (v *Validator) signalIssues(m map[string]float64, issues []issue) []issue {
	if kbps := m["bitrate_kbps"]; kbps < float64(v.cfg.MinBitrateKbps) {
		issues = append(issues, issue{
			text: fmt.Sprintf("bitrate too low: %.0f kbps (min: %d kbps)", kbps, v.cfg.MinBitrateKbps),
		})
	}
	if hz := m["sample_rate_hz"]; hz < float64(v.cfg.MinSampleRateHz) {
		issues = append(issues, issue{
			text: fmt.Sprintf("sample rate too low: %.0f Hz (min: %d Hz)", hz, v.cfg.MinSampleRateHz),
		})
	}
	return issues
}

// silenceIssues scans 1-second chunks from both ends. The leading scan
// stops at the first non-silent chunk; the trailing counter resets on any
// non-silent chunk inside the scan window.
func (v *Validator) silenceIssues(chunks []float64, m map[string]float64, issues []issue) []issue {
	intro := 0
	for i := 0; i < len(chunks) && i < introScanSeconds; i++ {
		if chunks[i] >= v.cfg.SilenceThresholdDB {
			break
		}
		intro++
	}
	m["intro_silence_seconds"] = float64(intro)
	if intro > v.cfg.MaxIntroSilenceSec {
		issues = append(issues, issue{
			text:  fmt.Sprintf("long silent intro: %d seconds", intro),
			minor: true,
		})
	}

	outro := 0
	start := len(chunks) - outroScanSeconds
	if start < 0 {
		start = 0
	}
	for i := start; i < len(chunks); i++ {
		if chunks[i] < v.cfg.SilenceThresholdDB {
			outro++
		} else {
			outro = 0
		}
	}
	m["outro_silence_seconds"] = float64(outro)
	if outro > v.cfg.MaxOutroSilenceSec {
		issues = append(issues, issue{
			text:  fmt.Sprintf("long silent outro: %d seconds", outro),
			minor: true,
		})
	}
	return issues
}

func deriveBitrateKbps(sizeBytes int, durationSeconds float64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return float64(sizeBytes) * 8 / durationSeconds / 1000
}

func rejectWith(text string) domain.ValidationReport {
	return domain.ValidationReport{
		Accepted: false,
		Issues:   []string{text},
	}
}
