// Package costbasis matches share disposals against acquisition lots.
//
// Matching is modelled as a pure replay over a ticker's full history:
// given the ordered acquisitions, the ordered disposals and the method in
// force, Replay produces the complete consumption plan. There is no
// incremental update path; switching a ticker's method means replaying.
package costbasis

import (
	"fmt"
	"strings"

	apperrors "aktieskat/internal/errors"
)

// Method selects how a disposal is matched against open lots.
type Method string

const (
	// LotBased consumes the oldest open lot first (FIFO).
	LotBased Method = "lot-based"
	// AverageCost pools every open lot of a ticker into one average-cost lot
	// (gennemsnitsmetoden).
	AverageCost Method = "average-cost"
)

// DefaultMethod is used for tickers without an explicit setting.
const DefaultMethod = LotBased

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	return m == LotBased || m == AverageCost
}

func (m Method) String() string { return string(m) }

// ParseMethod parses a method name. It accepts a few common aliases.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lot-based", "lot", "fifo":
		return LotBased, nil
	case "average-cost", "average", "gennemsnitsmetoden":
		return AverageCost, nil
	default:
		return "", apperrors.WithMessage(apperrors.ErrInvalidMethod, fmt.Sprintf("unknown cost-basis method %q", s))
	}
}

// Methods maps tickers to their configured method. Tickers that are not
// present use DefaultMethod.
type Methods map[string]Method

// For returns the method configured for ticker.
func (m Methods) For(ticker string) Method {
	if method, ok := m[ticker]; ok && method.Valid() {
		return method
	}
	return DefaultMethod
}
