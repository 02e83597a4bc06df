package router

import (
	"log"

	"bibleai-be/pkg/store"
)

// DefaultThreshold is the confidence at or above which answers are grounded
const DefaultThreshold = 0.25

// Mode represents the retrieval mode chosen for a query
type Mode string

const (
	ModeGrounded   Mode = store.ModeGrounded   // answer must cite retrieved passages
	ModeUngrounded Mode = store.ModeUngrounded // general conversation, no citations
)

// Decision is the tagged result of routing: Grounded(candidates) or Ungrounded.
// Ungrounded decisions never carry candidates.
type Decision struct {
	Mode       Mode
	Candidates []store.Candidate
	Confidence float64
}

// Grounded reports whether the answer must be grounded in Candidates
func (d Decision) Grounded() bool {
	return d.Mode == ModeGrounded
}

// ModeRouter decides between grounded and ungrounded answering
type ModeRouter struct {
	threshold float64
	logger    *log.Logger
}

// NewModeRouter creates a router; a non-positive threshold falls back to DefaultThreshold
func NewModeRouter(threshold float64, logger *log.Logger) *ModeRouter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &ModeRouter{threshold: threshold, logger: logger}
}

// Threshold returns the configured confidence threshold
func (r *ModeRouter) Threshold() float64 {
	return r.threshold
}

// Decide routes on the ranked candidates and their confidence.
// Grounded keeps only the candidates scoring at or above the threshold.
func (r *ModeRouter) Decide(candidates []store.Candidate, confidence float64) Decision {
	if len(candidates) == 0 || confidence < r.threshold {
		r.logf("[ROUTER] Mode: %s (confidence %.3f < %.2f, candidates %d)", ModeUngrounded, confidence, r.threshold, len(candidates))
		return Decision{Mode: ModeUngrounded, Confidence: confidence}
	}

	retained := make([]store.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= r.threshold {
			retained = append(retained, c)
		}
	}

	r.logf("[ROUTER] Mode: %s (confidence %.3f, retained %d/%d)", ModeGrounded, confidence, len(retained), len(candidates))
	return Decision{Mode: ModeGrounded, Candidates: retained, Confidence: confidence}
}

func (r *ModeRouter) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
