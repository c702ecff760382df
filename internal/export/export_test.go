package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/daybook/internal/cache"
	"github.com/hyperengineering/daybook/internal/config"
	"github.com/hyperengineering/daybook/internal/types"
)

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.NewStore(filepath.Join(t.TempDir(), "daybook.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedRecord(t *testing.T, s *cache.Store, date string, synced bool) {
	t.Helper()
	rec := types.CacheRecord{
		Date:      date,
		Document:  "---\ndate: " + date + "\n---\n# 1. Identity & North Star\n",
		State:     types.StatePending,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.PutRecord(context.Background(), rec); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if synced {
		if err := s.MarkSynced(context.Background(), date, "tok-"+date); err != nil {
			t.Fatalf("mark synced failed: %v", err)
		}
	}
}

// --- JSON Export Tests ---

func TestWriteJSON(t *testing.T) {
	s := newTestStore(t)
	seedRecord(t, s, "2025-06-01", true)
	seedRecord(t, s, "2025-06-02", false)

	var buf bytes.Buffer
	if err := WriteJSON(context.Background(), s, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}

	if doc.Version != FormatVersion {
		t.Errorf("version = %d, want %d", doc.Version, FormatVersion)
	}
	if doc.TotalEntries != 2 || len(doc.Entries) != 2 {
		t.Errorf("expected 2 entries, got %d/%d", doc.TotalEntries, len(doc.Entries))
	}
	if doc.ExportID == "" || doc.ExportedAt.IsZero() {
		t.Error("missing export id or timestamp")
	}

	synced := doc.Entries["2025-06-01"]
	if !synced.Synced || synced.VersionToken == nil || *synced.VersionToken != "tok-2025-06-01" {
		t.Errorf("synced entry exported wrong: %+v", synced)
	}
	pending := doc.Entries["2025-06-02"]
	if pending.Synced || pending.VersionToken != nil {
		t.Errorf("pending entry exported wrong: %+v", pending)
	}
}

// --- Archive Tests ---

func TestWriteArchive(t *testing.T) {
	s := newTestStore(t)
	seedRecord(t, s, "2025-06-01", true)
	seedRecord(t, s, "2025-06-02", false)

	var buf bytes.Buffer
	if err := WriteArchive(context.Background(), s, &buf); err != nil {
		t.Fatalf("archive failed: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("archive unreadable: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"entries/2025-06-01.md", "entries/2025-06-02.md"} {
		if !names[want] {
			t.Errorf("archive missing %s (have %v)", want, names)
		}
	}

	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatalf("member open failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if !strings.Contains(string(data), "# 1. Identity & North Star") {
		t.Error("member content wrong")
	}
}

// --- Import Tests ---

func exportOf(t *testing.T, s *cache.Store) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteJSON(context.Background(), s, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	return buf.Bytes()
}

func TestImportJSON_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	seedRecord(t, src, "2025-06-01", true)
	seedRecord(t, src, "2025-06-02", false)
	data := exportOf(t, src)

	dst := newTestStore(t)
	report, err := ImportJSON(ctx, dst, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if report.Imported != 2 || report.Skipped != 0 || report.Retained != 0 {
		t.Errorf("unexpected report: %+v", report)
	}

	// Imported entries land pending so the next drain pushes them; the
	// exported token is kept for conditioning the write.
	rec, err := dst.GetRecord(ctx, "2025-06-01")
	if err != nil {
		t.Fatalf("imported record missing: %v", err)
	}
	if rec.State != types.StatePending {
		t.Errorf("imported entry should be pending, got %s", rec.State)
	}
	if rec.RemoteToken == nil || *rec.RemoteToken != "tok-2025-06-01" {
		t.Errorf("exported token lost: %v", rec.RemoteToken)
	}
}

func TestImportJSON_NeverOverwritesSynced(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	seedRecord(t, src, "2025-06-01", false)
	data := exportOf(t, src)

	dst := newTestStore(t)
	seedRecord(t, dst, "2025-06-01", true)
	before, _ := dst.GetRecord(ctx, "2025-06-01")

	report, err := ImportJSON(ctx, dst, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if report.Retained != 1 || report.Imported != 0 {
		t.Errorf("unexpected report: %+v", report)
	}

	after, _ := dst.GetRecord(ctx, "2025-06-01")
	if after.Document != before.Document || after.State != before.State {
		t.Error("import overwrote a synced entry")
	}
}

func TestImportJSON_SkipsMalformedDates(t *testing.T) {
	ctx := context.Background()
	dst := newTestStore(t)

	raw := `{
		"version": 1,
		"exportedAt": "2025-06-10T00:00:00Z",
		"totalEntries": 2,
		"entries": {
			"2025-13-40": {"document": "bogus", "synced": false, "versionToken": null, "updatedAt": "2025-06-10T00:00:00Z"},
			"2025-06-01": {"document": "ok", "synced": false, "versionToken": null, "updatedAt": "2025-06-10T00:00:00Z"}
		}
	}`

	report, err := ImportJSON(ctx, dst, strings.NewReader(raw))
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if report.Skipped != 1 || report.Imported != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	// No cache mutation for the malformed key.
	if _, err := dst.GetRecord(ctx, "2025-13-40"); err == nil {
		t.Error("malformed date reached the cache")
	}
}

func TestImportJSON_BadPayload(t *testing.T) {
	dst := newTestStore(t)
	if _, err := ImportJSON(context.Background(), dst, strings.NewReader("not json")); err == nil {
		t.Error("expected decode error")
	}
}

// --- Uploader Tests ---

type mockS3 struct {
	putCalls  int
	lastKey   string
	lastSize  int64
	presigned string
}

func (m *mockS3) PutObject(ctx context.Context, bucket, objectName string, r io.Reader, size int64) error {
	m.putCalls++
	m.lastKey = objectName
	m.lastSize = size
	return nil
}

func (m *mockS3) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return url.Parse(m.presigned)
}

func TestS3Uploader_Upload(t *testing.T) {
	mock := &mockS3{}
	u := &S3Uploader{client: mock, bucket: "backups", urlExpiry: time.Minute}

	data := []byte("zip bytes")
	if err := u.Upload(context.Background(), "01J5EXPORT", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if mock.putCalls != 1 || mock.lastKey != "exports/01J5EXPORT.zip" || mock.lastSize != int64(len(data)) {
		t.Errorf("unexpected put: %+v", mock)
	}
}

func TestS3Uploader_PresignedURL(t *testing.T) {
	mock := &mockS3{presigned: "https://s3.example.com/backups/exports/x.zip?sig=abc"}
	u := &S3Uploader{client: mock, bucket: "backups", urlExpiry: time.Minute}

	got, expiry, err := u.PresignedURL(context.Background(), "x")
	if err != nil {
		t.Fatalf("presign failed: %v", err)
	}
	if got != mock.presigned {
		t.Errorf("url mismatch: %q", got)
	}
	if time.Until(expiry) <= 0 {
		t.Error("expiry not in the future")
	}
}

func TestNewUploader_NoopWhenUnconfigured(t *testing.T) {
	u, err := NewUploader(config.BackupConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := u.(*NoopUploader); !ok {
		t.Fatalf("expected NoopUploader, got %T", u)
	}
	if _, _, err := u.PresignedURL(context.Background(), "x"); err != ErrNotConfigured {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}
