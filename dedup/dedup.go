// Package dedup derives the deduplication key that lets the queue merge
// equivalent reports into a single counted record.
package dedup

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/zeebo/blake3"

	"github.com/pithecene-io/burrow/types"
)

// Strategy selects which report dimensions contribute to the key.
// Values combine as a bitmask.
type Strategy uint8

// Strategy bits.
const (
	None       Strategy = 0
	Callstack  Strategy = 1 << 0
	Classifier Strategy = 1 << 1
	Message    Strategy = 1 << 2
	All                 = Callstack | Classifier | Message
)

// ErrInvalidStrategy is returned by ParseStrategy for unknown names.
var ErrInvalidStrategy = errors.New("invalid deduplication strategy")

// Has reports whether every bit of flag is set.
func (s Strategy) Has(flag Strategy) bool {
	return flag != 0 && s&flag == flag
}

// String renders the strategy as a comma-separated list of names.
func (s Strategy) String() string {
	if s == None {
		return "none"
	}
	if s == All {
		return "all"
	}
	var parts []string
	if s.Has(Callstack) {
		parts = append(parts, "callstack")
	}
	if s.Has(Classifier) {
		parts = append(parts, "classifier")
	}
	if s.Has(Message) {
		parts = append(parts, "message")
	}
	return strings.Join(parts, ",")
}

// ParseStrategy parses a comma-separated list of "none", "all",
// "callstack", "classifier" and "message".
func ParseStrategy(s string) (Strategy, error) {
	var out Strategy
	for _, part := range strings.Split(s, ",") {
		switch strings.TrimSpace(strings.ToLower(part)) {
		case "", "none":
		case "all":
			out |= All
		case "callstack":
			out |= Callstack
		case "classifier":
			out |= Classifier
		case "message":
			out |= Message
		default:
			return None, fmt.Errorf("%w: %q", ErrInvalidStrategy, part)
		}
	}
	return out, nil
}

// Key computes the deduplication key of report.
//
// An explicit fingerprint attribute wins over the strategy. With
// strategy None the key is empty and the report is never merged.
// Missing report fields contribute empty segments.
func Key(report *types.Report, strategy Strategy) string {
	if fp, ok := report.StringAttribute(types.AttributeFingerprint); ok && fp != "" {
		return fp
	}
	if strategy == None || report == nil {
		return ""
	}

	var b strings.Builder
	if strategy.Has(Classifier) {
		b.WriteString(strings.Join(report.Classifiers, ","))
	}
	if strategy.Has(Callstack) {
		if thread, ok := report.MainStack(); ok {
			// marshalling plain structs cannot fail; an error leaves the segment empty
			if data, err := json.Marshal(thread); err == nil {
				b.Write(data)
			}
		}
	}
	if strategy.Has(Message) {
		if msg, ok := report.StringAttribute(types.AttributeErrorMessage); ok {
			b.WriteString(msg)
		}
	}

	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Model binds a strategy for repeated key computation.
type Model struct {
	Strategy Strategy
}

// Key computes the key of report under the model's strategy.
func (m Model) Key(report *types.Report) string {
	return Key(report, m.Strategy)
}
