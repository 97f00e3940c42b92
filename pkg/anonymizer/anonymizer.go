// Package anonymizer detects PII spans in extracted text and rewrites them
// according to a configurable strategy. It runs before chunking, embedding,
// and persistence, so nothing downstream ever sees the original spans.
package anonymizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/paydesk/paydesk/pkg/config"
)

// Result is the outcome of one anonymization pass. Entities record what was
// found and where in the original text, never the matched text itself
// (except under the keep strategy, which changes nothing anyway).
type Result struct {
	Text     string   `json:"text"`
	Entities []Entity `json:"entities"`
}

// Anonymizer applies the detector set and rewrite strategies. Created once at
// startup; thread-safe and stateless aside from compiled patterns.
type Anonymizer struct {
	detectors       []detector
	defaultStrategy config.PIIStrategy
	placeholder     string
	minScore        float64
}

// New compiles the built-in detector set plus any custom patterns from
// settings. Invalid custom patterns are logged and skipped.
func New(settings config.PIISettings) *Anonymizer {
	detectors := builtinDetectors()

	for _, custom := range settings.CustomPatterns {
		compiled, err := regexp.Compile(custom.Regex)
		if err != nil {
			slog.Error("Failed to compile custom PII pattern, skipping",
				"pattern", custom.Name, "error", err)
			continue
		}
		score := custom.Score
		if score <= 0 || score > 1 {
			score = 0.8
		}
		detectors = append(detectors, detector{
			entityType: custom.Name,
			regex:      compiled,
			score:      score,
		})
	}

	a := &Anonymizer{
		detectors:       detectors,
		defaultStrategy: settings.DefaultStrategy,
		placeholder:     settings.Placeholder,
		minScore:        settings.MinScore,
	}

	slog.Info("Anonymizer initialized",
		"detectors", len(detectors),
		"custom_patterns", len(settings.CustomPatterns),
		"default_strategy", settings.DefaultStrategy,
		"min_score", settings.MinScore)

	return a
}

// Anonymize runs detection and rewrite with the configured defaults.
func (a *Anonymizer) Anonymize(text string) (*Result, error) {
	return a.AnonymizeWith(text, a.defaultStrategy, a.placeholder, a.minScore)
}

// AnonymizeWith runs detection and rewrite with explicit parameters. Only
// spans scoring ≥ minScore are transformed; spans are rewritten right-to-left
// so earlier offsets stay valid.
func (a *Anonymizer) AnonymizeWith(text string, strategy config.PIIStrategy, placeholder string, minScore float64) (*Result, error) {
	if !strategy.IsValid() {
		return nil, fmt.Errorf("unknown PII strategy %q", strategy)
	}
	if text == "" {
		return &Result{Text: text}, nil
	}

	entities := a.detect(text, minScore)
	if strategy == config.PIIStrategyKeep || len(entities) == 0 {
		return &Result{Text: text, Entities: entities}, nil
	}

	out := text
	for i := len(entities) - 1; i >= 0; i-- {
		e := entities[i]
		out = out[:e.Start] + rewriteSpan(out[e.Start:e.End], strategy, placeholder) + out[e.End:]
	}
	return &Result{Text: out, Entities: entities}, nil
}

// detect finds every span scoring ≥ minScore, resolving overlaps by higher
// score, then longer span. The returned entities are sorted by start offset.
func (a *Anonymizer) detect(text string, minScore float64) []Entity {
	var found []Entity
	for _, d := range a.detectors {
		for _, loc := range d.regex.FindAllStringIndex(text, -1) {
			score := d.score
			if d.validate != nil {
				score = d.validate(text[loc[0]:loc[1]])
				if score < 0 {
					continue
				}
			}
			if score < minScore {
				continue
			}
			found = append(found, Entity{
				Type:  d.entityType,
				Score: score,
				Start: loc[0],
				End:   loc[1],
			})
		}
	}
	if len(found) == 0 {
		return nil
	}

	// Higher score wins an overlap; ties go to the longer span.
	sort.Slice(found, func(i, j int) bool {
		if found[i].Score != found[j].Score {
			return found[i].Score > found[j].Score
		}
		return found[i].End-found[i].Start > found[j].End-found[j].Start
	})
	var kept []Entity
	for _, e := range found {
		overlaps := false
		for _, k := range kept {
			if e.Start < k.End && k.Start < e.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, e)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}

// rewriteSpan applies one strategy to a matched span.
func rewriteSpan(span string, strategy config.PIIStrategy, placeholder string) string {
	switch strategy {
	case config.PIIStrategyRedact:
		return ""
	case config.PIIStrategyReplace:
		return placeholder
	case config.PIIStrategyMask:
		return maskSpan(span)
	case config.PIIStrategyHash:
		return hashSpan(span)
	default:
		return span
	}
}

// maskSpan replaces every letter and digit with '*', preserving separators so
// the shape of the value stays readable.
func maskSpan(span string) string {
	var b strings.Builder
	b.Grow(len(span))
	for _, r := range span {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteByte('*')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hashSpan replaces the span with a deterministic one-way hash prefix. The
// same input always yields the same token, so equality survives rewriting.
func hashSpan(span string) string {
	sum := sha256.Sum256([]byte(span))
	return "pii_" + hex.EncodeToString(sum[:])[:10]
}
