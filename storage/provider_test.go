package storage_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/burrow/storage"
	"github.com/pithecene-io/burrow/types"
)

// providerFactories builds each real provider over a fresh directory.
func providerFactories() map[string]func(t *testing.T) storage.Provider {
	return map[string]func(t *testing.T) storage.Provider{
		"file": func(t *testing.T) storage.Provider {
			return storage.NewFileProvider(storage.FileConfig{Directory: t.TempDir(), CreateDirectory: true})
		},
		"badger": func(t *testing.T) storage.Provider {
			return storage.NewBadgerProvider(storage.BadgerConfig{InMemory: true})
		},
	}
}

func mustStart(t *testing.T, p storage.Provider) {
	t.Helper()
	if err := p.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
}

func sampleReport(ts time.Time) *types.Record {
	r := types.NewReportRecord(&types.Report{
		UUID:        "report-uuid",
		Classifiers: []string{"Error"},
		Attributes:  map[string]any{"error.message": "boom"},
	}, []types.Attachment{{Name: "mem", Data: []byte("abc")}}, "hash", "session-1", ts)
	r.Count = 3
	return r
}

func TestProviders_RoundTrip(t *testing.T) {
	for name, factory := range providerFactories() {
		t.Run(name, func(t *testing.T) {
			p := factory(t)
			mustStart(t, p)

			base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			newer := sampleReport(base.Add(time.Minute))
			older := sampleReport(base)
			older.Lock()

			for _, r := range []*types.Record{newer, older} {
				if err := p.Add(t.Context(), r); err != nil {
					t.Fatalf("Add: %v", err)
				}
			}

			got, err := p.Get(t.Context())
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("Get returned %d records, want 2", len(got))
			}
			if got[0].ID != older.ID || got[1].ID != newer.ID {
				t.Error("records not ordered by timestamp")
			}
			r := got[0]
			if r.State() != types.RecordPending {
				t.Errorf("loaded state = %v, want pending", r.State())
			}
			if r.Count != 3 || r.Hash != "hash" || r.SessionID != "session-1" {
				t.Errorf("loaded record = %+v", r)
			}
			if r.Report == nil || r.Report.UUID != "report-uuid" {
				t.Fatalf("report payload lost: %+v", r.Report)
			}
			if r.Report.Attributes["error.message"] != "boom" {
				t.Errorf("attributes = %v", r.Report.Attributes)
			}
			if len(r.Attachments) != 1 || string(r.Attachments[0].Data) != "abc" {
				t.Errorf("attachments = %+v", r.Attachments)
			}

			if err := p.Delete(t.Context(), older); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := p.Delete(t.Context(), older); err != nil {
				t.Errorf("second Delete: %v", err)
			}
			got, _ = p.Get(t.Context())
			if len(got) != 1 || got[0].ID != newer.ID {
				t.Errorf("after delete Get = %v", got)
			}
		})
	}
}

func TestProviders_DropAttachmentRecordWithMissingFile(t *testing.T) {
	for name, factory := range providerFactories() {
		t.Run(name, func(t *testing.T) {
			p := factory(t)
			mustStart(t, p)

			path := filepath.Join(t.TempDir(), "minidump.dmp")
			if err := os.WriteFile(path, []byte("dump"), 0o600); err != nil {
				t.Fatal(err)
			}
			kept := types.NewAttachmentRecord("rx1", types.Attachment{Name: "dump", Path: path}, "", time.Now())
			lost := types.NewAttachmentRecord("rx2", types.Attachment{Name: "gone", Path: path + ".missing"}, "", time.Now())
			for _, r := range []*types.Record{kept, lost} {
				if err := p.Add(t.Context(), r); err != nil {
					t.Fatal(err)
				}
			}

			got, err := p.Get(t.Context())
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 || got[0].ID != kept.ID {
				t.Fatalf("Get = %v, want only %s", got, kept.ID)
			}
			if got[0].RXID != "rx1" {
				t.Errorf("rxid = %q", got[0].RXID)
			}
		})
	}
}

func TestProviders_UseBeforeStart(t *testing.T) {
	for name, factory := range providerFactories() {
		t.Run(name, func(t *testing.T) {
			p := factory(t)
			err := p.Add(t.Context(), sampleReport(time.Now()))
			if !errors.Is(err, storage.ErrNotStarted) {
				t.Errorf("Add before Start error = %v, want ErrNotStarted", err)
			}
		})
	}
}

func TestFileProvider_StartWithoutCreate(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent")
	p := storage.NewFileProvider(storage.FileConfig{Directory: missing})

	err := p.Start(t.Context())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Start error = %v, want ErrNotFound", err)
	}
	if _, statErr := os.Stat(missing); !os.IsNotExist(statErr) {
		t.Error("directory created although CreateDirectory is false")
	}

	existing := storage.NewFileProvider(storage.FileConfig{Directory: t.TempDir()})
	if err := existing.Start(t.Context()); err != nil {
		t.Errorf("Start on existing dir: %v", err)
	}
}

func TestFileProvider_PurgesCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	p := storage.NewFileProvider(storage.FileConfig{Directory: dir})
	mustStart(t, p)

	bad := filepath.Join(dir, "broken"+storage.RecordFileSuffix)
	if err := os.WriteFile(bad, []byte{0xc1, 0xff, 0x00}, 0o600); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("keep"), 0o600); err != nil {
		t.Fatal(err)
	}
	good := sampleReport(time.Now())
	if err := p.Add(t.Context(), good); err != nil {
		t.Fatal(err)
	}

	got, err := p.Get(t.Context())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 1 || got[0].ID != good.ID {
		t.Fatalf("Get = %v", got)
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Error("corrupt record file not purged")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("unrelated file removed")
	}
	if _, err := os.Stat(p.Path(good.ID)); err != nil {
		t.Errorf("record file missing at %s", p.Path(good.ID))
	}
}

func TestFileProvider_Closed(t *testing.T) {
	p := storage.NewFileProvider(storage.FileConfig{Directory: t.TempDir()})
	mustStart(t, p)
	_ = p.Close()

	if _, err := p.Get(t.Context()); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Get after Close error = %v, want ErrClosed", err)
	}
}

func TestStubProvider(t *testing.T) {
	p := storage.NewStubProvider()
	p.StartErr = errors.New("no disk")
	if err := p.Start(t.Context()); err == nil || p.Started() {
		t.Fatal("StartErr not honoured")
	}

	p.StartErr = nil
	mustStart(t, p)
	r := sampleReport(time.Now())
	_ = p.Add(t.Context(), r)
	_ = p.Delete(t.Context(), r)

	if len(p.AddCalls) != 1 || len(p.DeleteCalls) != 1 {
		t.Errorf("calls = add %v delete %v", p.AddCalls, p.DeleteCalls)
	}
	if len(p.IDs()) != 0 {
		t.Errorf("IDs() = %v, want empty", p.IDs())
	}
}
