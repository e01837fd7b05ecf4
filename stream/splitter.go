// Package stream cuts an append-only byte stream into bounded chunks
// and rotates them across a bounded set of destinations.
package stream

import (
	"bytes"
	"errors"
	"fmt"
)

// Splitter decides where to cut a stream. Given the next piece of
// data it returns the head that belongs to the current destination.
// When split is true the destination is full: tail, possibly empty,
// starts the next one.
//
// A Splitter keeps running totals and belongs to one destination.
type Splitter func(data []byte) (head, tail []byte, split bool)

// SplitterFactory builds a fresh Splitter for each destination.
type SplitterFactory func() Splitter

// ErrInvalidLimit is returned for non-positive splitter limits.
var ErrInvalidLimit = errors.New("splitter limit must be at least 1")

// WholeLines selects how the length splitter treats lines that cross
// the length boundary.
type WholeLines int

// WholeLines modes.
const (
	// WholeLinesOff cuts at the exact byte boundary.
	WholeLinesOff WholeLines = iota
	// WholeLinesBreak cuts after the last complete line that fits, and
	// mid-line only when no line fits.
	WholeLinesBreak
	// WholeLinesSkip cuts after the last complete line that fits, and
	// drops lines longer than the limit.
	WholeLinesSkip
)

// String returns the mode name.
func (w WholeLines) String() string {
	switch w {
	case WholeLinesBreak:
		return "break"
	case WholeLinesSkip:
		return "skip"
	default:
		return "off"
	}
}

// LineSplitter cuts after every maxLines newline-terminated lines.
func LineSplitter(maxLines int) (SplitterFactory, error) {
	if maxLines < 1 {
		return nil, fmt.Errorf("%w: lines %d", ErrInvalidLimit, maxLines)
	}
	return func() Splitter { return newLineSplitter(maxLines) }, nil
}

func newLineSplitter(maxLines int) Splitter {
	seen := 0
	return func(data []byte) ([]byte, []byte, bool) {
		end, counted := nthLineEnd(data, maxLines-seen)
		if end < 0 {
			seen += counted
			return data, nil, false
		}
		seen = 0
		return data[:end], data[end:], true
	}
}

// nthLineEnd returns the offset just past the nth newline in data, or
// -1 and the number of newlines found when data holds fewer than n.
func nthLineEnd(data []byte, n int) (end, counted int) {
	offset := 0
	for counted < n {
		i := bytes.IndexByte(data[offset:], '\n')
		if i < 0 {
			return -1, counted
		}
		offset += i + 1
		counted++
	}
	return offset, counted
}

// LengthSplitter cuts after maxLength bytes, honouring mode.
func LengthSplitter(maxLength int, mode WholeLines) (SplitterFactory, error) {
	if maxLength < 1 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidLimit, maxLength)
	}
	return func() Splitter { return newLengthSplitter(maxLength, mode) }, nil
}

func newLengthSplitter(maxLength int, mode WholeLines) Splitter {
	seen := 0
	return func(data []byte) ([]byte, []byte, bool) {
		remaining := maxLength - seen
		if len(data) <= remaining {
			seen += len(data)
			return data, nil, false
		}
		seen = 0

		if mode == WholeLinesOff {
			return data[:remaining], data[remaining:], true
		}

		lastNewline := bytes.LastIndexByte(data[:remaining], '\n')
		if lastNewline >= 0 {
			return data[:lastNewline+1], data[lastNewline+1:], true
		}

		// No line ends within budget. A partly filled destination
		// rotates so the line can start fresh in the next one.
		if remaining != maxLength {
			return data[:0], data, true
		}
		if mode == WholeLinesBreak {
			return data[:remaining], data[remaining:], true
		}

		// The line is longer than a whole destination: drop it.
		next := bytes.IndexByte(data[remaining:], '\n')
		if next < 0 {
			return data[:0], nil, false
		}
		return data[:0], data[remaining+next+1:], true
	}
}

// Combine runs splitters in sequence, each on the head left by the
// previous one. Tails are joined into one tail, nearest cut first.
func Combine(factories ...SplitterFactory) SplitterFactory {
	return CombineWith(func(parts ...[]byte) []byte { return bytes.Join(parts, nil) }, factories...)
}

// CombineWith is Combine with a custom join for the tails.
func CombineWith(join func(parts ...[]byte) []byte, factories ...SplitterFactory) SplitterFactory {
	return func() Splitter {
		splitters := make([]Splitter, len(factories))
		for i, f := range factories {
			splitters[i] = f()
		}
		return func(data []byte) ([]byte, []byte, bool) {
			head := data
			var (
				tails [][]byte
				split bool
			)
			for _, s := range splitters {
				h, t, ok := s(head)
				head = h
				if ok {
					split = true
					tails = append([][]byte{t}, tails...)
				}
			}
			if !split {
				return head, nil, false
			}
			return head, join(tails...), true
		}
	}
}
