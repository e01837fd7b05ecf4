package stream_test

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/pithecene-io/burrow/stream"
)

// splitToEnd feeds chunks through one splitter and groups the output
// by cut, dropping trailing empty groups.
func splitToEnd(s stream.Splitter, chunks ...[]byte) []string {
	results := []string{""}
	for _, data := range chunks {
		for {
			head, tail, split := s(data)
			results[len(results)-1] += string(head)
			if !split {
				break
			}
			results = append(results, "")
			data = tail
		}
	}
	for len(results) > 0 && results[len(results)-1] == "" {
		results = results[:len(results)-1]
	}
	return results
}

// splitFresh is splitToEnd with a fresh splitter per group, the way
// a Chunkifier uses one per destination.
func splitFresh(f stream.SplitterFactory, data []byte) []string {
	var results []string
	for {
		head, tail, split := f()(data)
		results = append(results, string(head))
		if !split {
			break
		}
		data = tail
	}
	for len(results) > 0 && results[len(results)-1] == "" {
		results = results[:len(results)-1]
	}
	return results
}

// chunkify cuts data into pieces of n bytes.
func chunkify(data []byte, n int) [][]byte {
	var out [][]byte
	for len(data) > n {
		out = append(out, data[:n])
		data = data[n:]
	}
	return append(out, data)
}

func randomText(n int, newlineEvery int) []byte {
	r := rand.New(rand.NewPCG(1, 2))
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, n)
	for i := range b {
		if newlineEvery > 0 && r.IntN(newlineEvery) == 0 {
			b[i] = '\n'
			continue
		}
		b[i] = letters[r.IntN(len(letters))]
	}
	return b
}

func mustFactory(t *testing.T) func(stream.SplitterFactory, error) stream.SplitterFactory {
	return func(f stream.SplitterFactory, err error) stream.SplitterFactory {
		t.Helper()
		if err != nil {
			t.Fatalf("splitter: %v", err)
		}
		return f
	}
}

func assertStrings(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d parts %q, want %d parts %q", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitters_RejectInvalidLimits(t *testing.T) {
	if _, err := stream.LineSplitter(0); !errors.Is(err, stream.ErrInvalidLimit) {
		t.Errorf("LineSplitter(0) error = %v", err)
	}
	if _, err := stream.LengthSplitter(-1, stream.WholeLinesOff); !errors.Is(err, stream.ErrInvalidLimit) {
		t.Errorf("LengthSplitter(-1) error = %v", err)
	}
}

func TestLengthSplitter_SplitsLargeChunk(t *testing.T) {
	s := mustFactory(t)(stream.LengthSplitter(10, stream.WholeLinesOff))()
	head, tail, split := s(randomText(30, 0))
	if !split || len(head) != 10 || len(tail) != 20 {
		t.Errorf("split=%v head=%d tail=%d, want true/10/20", split, len(head), len(tail))
	}
}

func TestLengthSplitter_AccumulatesSeenLength(t *testing.T) {
	s := mustFactory(t)(stream.LengthSplitter(100, stream.WholeLinesOff))()
	chunk := randomText(30, 0)
	for range 3 {
		if _, _, split := s(chunk); split {
			t.Fatal("split before limit")
		}
	}
	head, tail, split := s(chunk)
	if !split || len(head) != 10 || len(tail) != 20 {
		t.Errorf("split=%v head=%d tail=%d, want true/10/20", split, len(head), len(tail))
	}
}

func TestLengthSplitter_ExactLimitDoesNotSplit(t *testing.T) {
	s := mustFactory(t)(stream.LengthSplitter(100, stream.WholeLinesOff))()
	head, tail, split := s(randomText(100, 0))
	if split || len(head) != 100 || tail != nil {
		t.Errorf("split=%v head=%d tail=%v", split, len(head), tail)
	}
}

func TestLengthSplitter_SplitsStreamByLength(t *testing.T) {
	const maxLength = 123
	data := randomText(1000, 0)
	s := mustFactory(t)(stream.LengthSplitter(maxLength, stream.WholeLinesOff))()

	parts := splitToEnd(s, chunkify(data, 100)...)
	for i, part := range parts {
		end := min((i+1)*maxLength, len(data))
		if part != string(data[i*maxLength:end]) {
			t.Fatalf("part %d does not match input window", i)
		}
	}
}

func TestLengthSplitter_WholeLinesBreak(t *testing.T) {
	s := mustFactory(t)(stream.LengthSplitter(4, stream.WholeLinesBreak))()
	got := splitToEnd(s, []byte("a\nb\ncde\nfghijklmno\npqrs\ntuv\nwxyz"))
	assertStrings(t, got, []string{"a\nb\n", "cde\n", "fghi", "jklm", "no\n", "pqrs", "\n", "tuv\n", "wxyz"})
}

func TestLengthSplitter_WholeLinesSkip(t *testing.T) {
	s := mustFactory(t)(stream.LengthSplitter(4, stream.WholeLinesSkip))()
	got := splitToEnd(s, []byte("a\nb\ncde\nfghijklmno\npqrs\ntuv\nwxyz"))
	assertStrings(t, got, []string{"a\nb\n", "cde\n", "", "", "tuv\n", "wxyz"})
}

func TestLengthSplitter_SkipNeverEmitsOversizedLines(t *testing.T) {
	const maxLength = 16
	data := randomText(4000, 12)
	s := mustFactory(t)(stream.LengthSplitter(maxLength, stream.WholeLinesSkip))()

	for _, part := range splitToEnd(s, chunkify(data, 37)...) {
		if len(part) > maxLength {
			t.Fatalf("part of %d bytes exceeds %d", len(part), maxLength)
		}
		for _, line := range strings.SplitAfter(part, "\n") {
			if len(line) > maxLength {
				t.Fatalf("line %q longer than %d", line, maxLength)
			}
		}
	}
}

func TestLineSplitter_CutsAfterNLines(t *testing.T) {
	s := mustFactory(t)(stream.LineSplitter(2))()
	got := splitToEnd(s, []byte("a\nb\nc\n"), []byte("d"), []byte("\ne\n"))
	assertStrings(t, got, []string{"a\nb\n", "c\nd\n", "e\n"})
}

func TestLineSplitter_OverflowMayBeEmpty(t *testing.T) {
	s := mustFactory(t)(stream.LineSplitter(1))()
	head, tail, split := s([]byte("only\n"))
	if !split || string(head) != "only\n" || len(tail) != 0 {
		t.Errorf("split=%v head=%q tail=%q", split, head, tail)
	}
}

func TestLineSplitter_Reconstructs(t *testing.T) {
	data := randomText(5000, 9)
	s := mustFactory(t)(stream.LineSplitter(7))()

	parts := splitToEnd(s, chunkify(data, 61)...)
	if got := strings.Join(parts, ""); got != string(data) {
		t.Fatal("concatenated parts differ from input")
	}
	for i, part := range parts[:len(parts)-1] {
		if n := strings.Count(part, "\n"); n != 7 {
			t.Errorf("part %d has %d lines, want 7", i, n)
		}
	}
}

func TestCombine_TighterConstraintWins(t *testing.T) {
	lines := mustFactory(t)(stream.LineSplitter(2))
	length := mustFactory(t)(stream.LengthSplitter(6, stream.WholeLinesBreak))
	got := splitFresh(stream.Combine(lines, length), []byte("ab\ncd\nefghij\nk\n"))
	assertStrings(t, got, []string{"ab\ncd\n", "efghij", "\nk\n"})
}

func TestCombine_JoinsTailsInStreamOrder(t *testing.T) {
	lines := mustFactory(t)(stream.LineSplitter(3))
	length := mustFactory(t)(stream.LengthSplitter(4, stream.WholeLinesOff))

	var joined [][]byte
	join := func(parts ...[]byte) []byte {
		joined = parts
		return bytes.Join(parts, nil)
	}
	s := stream.CombineWith(join, lines, length)()

	head, tail, split := s([]byte("a\nb\nc\nd\n"))
	if !split || string(head) != "a\nb\n" || string(tail) != "c\nd\n" {
		t.Fatalf("head=%q tail=%q split=%v", head, tail, split)
	}
	if len(joined) != 2 || string(joined[0]) != "c\n" || string(joined[1]) != "d\n" {
		t.Errorf("join parts = %q", joined)
	}
}

func TestWholeLines_String(t *testing.T) {
	if stream.WholeLinesSkip.String() != "skip" || stream.WholeLinesBreak.String() != "break" || stream.WholeLinesOff.String() != "off" {
		t.Error("unexpected mode names")
	}
}
