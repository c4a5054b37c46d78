package artifact

import (
	"regexp"
	"time"
)

// Descriptor references one candidate forecast artifact before download.
type Descriptor struct {
	// DisplayText is the label the portal renders for the artifact,
	// e.g. "DA Price Forecast 10-08-2025 09:00:00".
	DisplayText string
	// EmbeddedTimestamp holds the instant parsed out of DisplayText, when any.
	EmbeddedTimestamp *time.Time
	// SequencePosition is the 0-based index in listing order, unique per run.
	SequencePosition int
	// BytesRef is the opaque handle Portal Access needs to download the bytes.
	BytesRef string
}

// Strategy names the resolution rule that selected an artifact.
type Strategy string

const (
	StrategyExplicitTimestamp Strategy = "explicit_timestamp"
	StrategyFilenameSuffix    Strategy = "filename_timestamp_suffix"
	StrategyPositionalLast    Strategy = "positional_last"
	StrategyFallbackLast      Strategy = "fallback_last"
)

// Selection is the resolver verdict: which descriptor won and how.
type Selection struct {
	Descriptor Descriptor
	Strategy   Strategy
	Warnings   []string
}

// timestampLayouts 按优先级排列：日-月-年、年-月-日、月-日-年。
// Each template requires a full hour:minute:second component.
var timestampLayouts = []string{
	"02-01-2006 15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"01-02-2006 15:04:05",
	"01/02/2006 15:04:05",
}

var embeddedTimestampPattern = regexp.MustCompile(`\d{1,4}[-/]\d{1,2}[-/]\d{1,4}[ T]\d{1,2}:\d{2}:\d{2}`)

// ParseEmbeddedTimestamp extracts a timestamp from display text by trying the
// ordered date-order templates; the first template that parses wins.
func ParseEmbeddedTimestamp(text string) (time.Time, bool) {
	token := embeddedTimestampPattern.FindString(text)
	if token == "" {
		return time.Time{}, false
	}
	token = normalizeToken(token)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, token); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func normalizeToken(token string) string {
	for i := 0; i < len(token); i++ {
		if token[i] == 'T' {
			return token[:i] + " " + token[i+1:]
		}
	}
	return token
}
