package artifact

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"
)

// ResolutionError indicates no strategy produced a newest artifact.
type ResolutionError struct {
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("artifact resolution failed: %s", e.Reason)
}

// strategy attempts to select the newest descriptor from candidates.
type strategy interface {
	name() Strategy
	attempt(descriptors []Descriptor) (Descriptor, bool)
}

// Resolver picks the single newest artifact from a portal listing using an
// ordered strategy chain. First success wins.
type Resolver struct {
	chain  []strategy
	logger zerolog.Logger
}

// Options tune resolver behaviour.
type Options struct {
	// DisableTimestampParse skips every timestamp heuristic and always takes
	// the last listed artifact (FallbackLast operating mode).
	DisableTimestampParse bool
}

// NewResolver constructs a resolver with the configured strategy chain.
func NewResolver(opts Options, logger zerolog.Logger) *Resolver {
	var chain []strategy
	if opts.DisableTimestampParse {
		chain = []strategy{lastListedStrategy{fallback: true}}
	} else {
		chain = []strategy{
			explicitTimestampStrategy{},
			filenameSuffixStrategy{},
			lastListedStrategy{},
		}
	}
	return &Resolver{
		chain:  chain,
		logger: logger.With().Str("component", "artifact_resolver").Logger(),
	}
}

// Resolve selects exactly one newest descriptor.
func (r *Resolver) Resolve(descriptors []Descriptor) (Selection, error) {
	if len(descriptors) == 0 {
		return Selection{}, &ResolutionError{Reason: "empty candidate listing"}
	}

	for _, s := range r.chain {
		winner, ok := s.attempt(descriptors)
		if !ok {
			continue
		}

		sel := Selection{Descriptor: winner, Strategy: s.name()}

		switch s.name() {
		case StrategyPositionalLast:
			sel.Warnings = append(sel.Warnings, "no embedded timestamps found; listing order could not be independently confirmed")
		case StrategyExplicitTimestamp, StrategyFilenameSuffix:
			if maxPos := maxPosition(descriptors); winner.SequencePosition != maxPos {
				sel.Warnings = append(sel.Warnings, fmt.Sprintf(
					"listing order disagrees with timestamp order: winner at position %d, last position %d",
					winner.SequencePosition, maxPos))
			}
		}

		for _, w := range sel.Warnings {
			r.logger.Warn().Str("strategy", string(sel.Strategy)).Msg(w)
		}
		r.logger.Debug().
			Str("strategy", string(sel.Strategy)).
			Int("position", winner.SequencePosition).
			Str("display_text", winner.DisplayText).
			Msg("artifact resolved")

		return sel, nil
	}

	return Selection{}, &ResolutionError{Reason: "every strategy failed to produce a candidate"}
}

func maxPosition(descriptors []Descriptor) int {
	max := descriptors[0].SequencePosition
	for _, d := range descriptors[1:] {
		if d.SequencePosition > max {
			max = d.SequencePosition
		}
	}
	return max
}

// explicitTimestampStrategy picks the descriptor with the maximum embedded
// timestamp. Ties break toward the highest sequence position.
type explicitTimestampStrategy struct{}

func (explicitTimestampStrategy) name() Strategy { return StrategyExplicitTimestamp }

func (explicitTimestampStrategy) attempt(descriptors []Descriptor) (Descriptor, bool) {
	var winner Descriptor
	found := false
	for _, d := range descriptors {
		ts := d.EmbeddedTimestamp
		if ts == nil {
			if parsed, ok := ParseEmbeddedTimestamp(d.DisplayText); ok {
				ts = &parsed
			}
		}
		if ts == nil {
			continue
		}
		d.EmbeddedTimestamp = ts
		if !found {
			winner, found = d, true
			continue
		}
		switch {
		case ts.After(*winner.EmbeddedTimestamp):
			winner = d
		case ts.Equal(*winner.EmbeddedTimestamp) && d.SequencePosition > winner.SequencePosition:
			winner = d
		}
	}
	return winner, found
}

// filenameSuffixStrategy compares fixed-width numeric date-time suffixes,
// e.g. forecast_20250810090000.csv. Highest numeric value wins.
type filenameSuffixStrategy struct{}

var filenameSuffixPattern = regexp.MustCompile(`(\d{14})(?:\.\w+)?$`)

func (filenameSuffixStrategy) name() Strategy { return StrategyFilenameSuffix }

func (filenameSuffixStrategy) attempt(descriptors []Descriptor) (Descriptor, bool) {
	var winner Descriptor
	var winnerValue uint64
	found := false
	for _, d := range descriptors {
		m := filenameSuffixPattern.FindStringSubmatch(d.DisplayText)
		if m == nil {
			continue
		}
		value, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		if !found || value > winnerValue || (value == winnerValue && d.SequencePosition > winner.SequencePosition) {
			winner, winnerValue, found = d, value, true
		}
	}
	return winner, found
}

// lastListedStrategy assumes the portal lists artifacts in ascending
// chronological order and takes the final entry.
type lastListedStrategy struct {
	fallback bool
}

func (s lastListedStrategy) name() Strategy {
	if s.fallback {
		return StrategyFallbackLast
	}
	return StrategyPositionalLast
}

func (lastListedStrategy) attempt(descriptors []Descriptor) (Descriptor, bool) {
	winner := descriptors[0]
	for _, d := range descriptors[1:] {
		if d.SequencePosition > winner.SequencePosition {
			winner = d
		}
	}
	return winner, true
}
