package breadcrumbs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/pithecene-io/burrow/breadcrumbs"
	"github.com/pithecene-io/burrow/metrics"
	"github.com/pithecene-io/burrow/stream"
	"github.com/pithecene-io/burrow/types"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMemoryStorage(t *testing.T, cfg breadcrumbs.Config) (*breadcrumbs.Storage, *stream.MemoryFS) {
	t.Helper()
	fsys := stream.NewMemoryFS()
	cfg.Directory = "crumbs"
	cfg.FS = fsys
	cfg.Now = func() time.Time { return fixedNow }
	s, err := breadcrumbs.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, fsys
}

func mustFlush(t *testing.T, s *breadcrumbs.Storage) {
	t.Helper()
	if err := s.Flush(t.Context()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

// messages decodes the breadcrumb messages stored in each attachment.
func messages(t *testing.T, fsys *stream.MemoryFS, attachments []types.Attachment) [][]string {
	t.Helper()
	out := make([][]string, len(attachments))
	for i, a := range attachments {
		data, err := fsys.ReadFile(a.Path)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", a.Path, err)
		}
		for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
			if line == "" {
				continue
			}
			var b types.Breadcrumb
			if err := json.Unmarshal([]byte(line), &b); err != nil {
				t.Fatalf("line %q: %v", line, err)
			}
			out[i] = append(out[i], b.Message)
		}
	}
	return out
}

func addAll(s *breadcrumbs.Storage, msgs ...string) {
	for _, m := range msgs {
		s.Add(types.RawBreadcrumb{Message: m, Type: types.BreadcrumbManual, Level: types.BreadcrumbInfo})
	}
}

func TestNew_RequiresDirectory(t *testing.T) {
	if _, err := breadcrumbs.New(breadcrumbs.Config{}); err == nil {
		t.Error("expected error without directory")
	}
}

func TestStorage_IDsStartAtCurrentSecond(t *testing.T) {
	s, _ := newMemoryStorage(t, breadcrumbs.DefaultConfig(""))

	first := s.Add(types.RawBreadcrumb{Message: "a"})
	second := s.Add(types.RawBreadcrumb{Message: "b"})
	if first != fixedNow.Unix()+1 || second != first+1 {
		t.Errorf("ids = %d, %d; want %d, %d", first, second, fixedNow.Unix()+1, fixedNow.Unix()+2)
	}
	if s.LastID() != second {
		t.Errorf("LastID = %d, want %d", s.LastID(), second)
	}
}

func TestStorage_EntryFormat(t *testing.T) {
	s, fsys := newMemoryStorage(t, breadcrumbs.DefaultConfig(""))

	id := s.Add(types.RawBreadcrumb{
		Message:    "clicked",
		Type:       types.BreadcrumbUser,
		Level:      types.BreadcrumbWarning,
		Attributes: map[string]any{"button": "save"},
	})
	mustFlush(t, s)

	data, err := fsys.ReadFile(filepath.Join("crumbs", "bt-breadcrumbs-0"))
	if err != nil {
		t.Fatal(err)
	}
	var got types.Breadcrumb
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	if got.ID != id || got.Message != "clicked" || got.Type != types.BreadcrumbUser || got.Level != types.BreadcrumbWarning {
		t.Errorf("entry = %+v", got)
	}
	if got.Timestamp != fixedNow.UnixMilli() {
		t.Errorf("Timestamp = %d, want %d", got.Timestamp, fixedNow.UnixMilli())
	}
	if got.Attributes["button"] != "save" {
		t.Errorf("Attributes = %v", got.Attributes)
	}
}

func TestStorage_DefaultsTypeAndLevel(t *testing.T) {
	s, fsys := newMemoryStorage(t, breadcrumbs.DefaultConfig(""))
	s.Add(types.RawBreadcrumb{Message: "x"})
	mustFlush(t, s)

	data, err := fsys.ReadFile(filepath.Join("crumbs", "bt-breadcrumbs-0"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"type":"manual"`) || !strings.Contains(string(data), `"level":"info"`) {
		t.Errorf("line = %s", data)
	}
}

func TestStorage_SplitsAtHalfTheLimit(t *testing.T) {
	cfg := breadcrumbs.DefaultConfig("")
	cfg.MaximumBreadcrumbs = 4
	s, fsys := newMemoryStorage(t, cfg)

	addAll(s, "a", "b", "c")
	mustFlush(t, s)

	got := messages(t, fsys, s.Attachments())
	if len(got) != 2 {
		t.Fatalf("attachments = %d, want 2", len(got))
	}
	if strings.Join(got[0], ",") != "a,b" || strings.Join(got[1], ",") != "c" {
		t.Errorf("files = %v, want [[a b] [c]]", got)
	}
}

func TestStorage_KeepsTwoFiles(t *testing.T) {
	cfg := breadcrumbs.DefaultConfig("")
	cfg.MaximumBreadcrumbs = 2
	s, fsys := newMemoryStorage(t, cfg)

	addAll(s, "a", "b", "c")
	mustFlush(t, s)

	attachments := s.Attachments()
	got := messages(t, fsys, attachments)
	if len(got) != 2 || strings.Join(got[0], ",") != "b" || strings.Join(got[1], ",") != "c" {
		t.Fatalf("files = %v, want [[b] [c]]", got)
	}
	if attachments[0].Name != "bt-breadcrumbs-1" || attachments[1].Name != "bt-breadcrumbs-2" {
		t.Errorf("names = %s, %s", attachments[0].Name, attachments[1].Name)
	}
	if len(fsys.Paths()) != 2 {
		t.Errorf("files on fs = %v", fsys.Paths())
	}
}

func TestStorage_TotalSizeLimit(t *testing.T) {
	cfg := breadcrumbs.DefaultConfig("")
	cfg.MaximumTotalSize = 400
	s, fsys := newMemoryStorage(t, cfg)

	for range 20 {
		addAll(s, strings.Repeat("m", 40))
	}
	mustFlush(t, s)

	total := 0
	for _, a := range s.Attachments() {
		data, err := fsys.ReadFile(a.Path)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) > 200 {
			t.Errorf("%s holds %d bytes, want at most 200", a.Name, len(data))
		}
		total += len(data)
	}
	if total == 0 || total > 400 {
		t.Errorf("total size = %d", total)
	}
}

func TestStorage_OversizedEntryIsSkipped(t *testing.T) {
	cfg := breadcrumbs.DefaultConfig("")
	cfg.MaximumTotalSize = 200
	s, fsys := newMemoryStorage(t, cfg)

	addAll(s, "small", strings.Repeat("x", 500), "after")
	mustFlush(t, s)

	var all []string
	for _, msgs := range messages(t, fsys, s.Attachments()) {
		all = append(all, msgs...)
	}
	if strings.Join(all, ",") != "small,after" {
		t.Errorf("messages = %v, want [small after]", all)
	}
}

func TestStorage_SkippedEntryTakesNoLineSlot(t *testing.T) {
	cfg := breadcrumbs.DefaultConfig("")
	cfg.MaximumBreadcrumbs = 4
	cfg.MaximumTotalSize = 400
	s, fsys := newMemoryStorage(t, cfg)

	addAll(s, "a", strings.Repeat("x", 500), "b", "c")
	mustFlush(t, s)

	got := messages(t, fsys, s.Attachments())
	if len(got) != 2 || strings.Join(got[0], ",") != "a" || strings.Join(got[1], ",") != "b,c" {
		t.Errorf("files = %v, want [[a] [b c]]", got)
	}
}

func TestStorage_CountsWrites(t *testing.T) {
	collector := metrics.NewCollector("inst", "file", "http")
	cfg := breadcrumbs.DefaultConfig("")
	cfg.Metrics = collector
	s, _ := newMemoryStorage(t, cfg)

	addAll(s, "a", "b")
	mustFlush(t, s)

	if got := collector.Snapshot().BreadcrumbsWritten; got != 2 {
		t.Errorf("BreadcrumbsWritten = %d, want 2", got)
	}
}

func TestStorage_DropsWhenSinkFails(t *testing.T) {
	collector := metrics.NewCollector("inst", "file", "http")
	fsys := stream.NewMemoryFS()
	fsys.CreateErr = os.ErrPermission
	s, err := breadcrumbs.New(breadcrumbs.Config{Directory: "crumbs", FS: fsys, Metrics: collector})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	addAll(s, "a")
	mustFlush(t, s)

	if got := collector.Snapshot().BreadcrumbsDropped; got != 1 {
		t.Errorf("BreadcrumbsDropped = %d, want 1", got)
	}
	if len(s.Attachments()) != 0 {
		t.Errorf("Attachments = %v", s.Attachments())
	}
}

func TestStorage_AddAfterClose(t *testing.T) {
	s, _ := newMemoryStorage(t, breadcrumbs.DefaultConfig(""))
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	before := s.LastID()
	if id := s.Add(types.RawBreadcrumb{Message: "late"}); id != before+1 {
		t.Errorf("id = %d, want %d", id, before+1)
	}
	if err := s.Flush(t.Context()); err != nil {
		t.Errorf("Flush after Close: %v", err)
	}
}

func TestStorage_OnDiskAndSessionAttachments(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "crumbs")
	cfg := breadcrumbs.DefaultConfig(dir)
	cfg.MaximumBreadcrumbs = 2
	s, err := breadcrumbs.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	addAll(s, "a", "b", "c")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	attachments, err := breadcrumbs.SessionAttachments(dir)
	if err != nil {
		t.Fatalf("SessionAttachments: %v", err)
	}
	if len(attachments) != 2 {
		t.Fatalf("attachments = %v", attachments)
	}
	data, err := os.ReadFile(attachments[1].Path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"message":"c"`) {
		t.Errorf("newest file = %s", data)
	}
	if attachments[0].Name != "bt-breadcrumbs-1" {
		t.Errorf("oldest = %s", attachments[0].Name)
	}
}
