package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/daybook/internal/cache"
	"github.com/hyperengineering/daybook/internal/index"
	"github.com/hyperengineering/daybook/internal/remote"
	"github.com/hyperengineering/daybook/internal/syncer"
	"github.com/hyperengineering/daybook/internal/types"
)

// memRemote is an in-memory remote.Store with token-checked writes.
type memRemote struct {
	files  map[string]remote.File
	nextID int
	fail   bool
}

func newMemRemote() *memRemote {
	return &memRemote{files: map[string]remote.File{}}
}

func (m *memRemote) Read(ctx context.Context, path string) (*remote.File, error) {
	f, ok := m.files[path]
	if !ok {
		return nil, nil
	}
	cp := f
	return &cp, nil
}

func (m *memRemote) Write(ctx context.Context, path, content string, token *string, message string) (string, error) {
	if m.fail {
		return "", &remote.StatusError{Status: http.StatusInternalServerError}
	}
	existing, exists := m.files[path]
	if exists && (token == nil || *token != existing.Token) {
		return "", remote.ErrConflict
	}
	if !exists && token != nil {
		return "", remote.ErrConflict
	}
	m.nextID++
	f := remote.File{Content: content, Token: fmt.Sprintf("tok-%d", m.nextID)}
	m.files[path] = f
	return f.Token, nil
}

func (m *memRemote) Delete(ctx context.Context, path, token, message string) error {
	existing, ok := m.files[path]
	if !ok {
		return remote.ErrNotFound
	}
	if token != existing.Token {
		return remote.ErrConflict
	}
	delete(m.files, path)
	return nil
}

func (m *memRemote) List(ctx context.Context, dir string) ([]remote.DirEntry, error) {
	var out []remote.DirEntry
	for path, f := range m.files {
		if strings.HasPrefix(path, dir+"/") {
			out = append(out, remote.DirEntry{Name: strings.TrimPrefix(path, dir+"/"), Path: path, Token: f.Token})
		}
	}
	return out, nil
}

type fixture struct {
	store  *cache.Store
	remote *memRemote
	router http.Handler
}

func newFixture(t *testing.T, apiKey string) *fixture {
	t.Helper()

	store, err := cache.NewStore(filepath.Join(t.TempDir(), "daybook.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ix := index.New(func(date string) (string, bool) {
		rec, err := store.GetRecord(context.Background(), date)
		if err != nil {
			return "", false
		}
		return rec.Document, true
	})

	rem := newMemRemote()
	co := syncer.New(store, rem, ix, 0)
	h := NewHandler(co, store, ix, nil, apiKey, "test")
	return &fixture{store: store, remote: rem, router: NewRouter(h)}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, rr.Body.String())
	}
	return v
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, "")

	rr := f.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody[map[string]string](t, rr)
	if body["status"] != "healthy" || body["version"] != "test" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestAuth(t *testing.T) {
	f := newFixture(t, "secret-key")

	// Given a configured API key, an unauthenticated request is rejected
	// with a problem response.
	rr := f.do(t, http.MethodGet, "/api/v1/status", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q", ct)
	}
	p := decodeBody[Problem](t, rr)
	if p.Status != http.StatusUnauthorized || p.Title != "Unauthorized" {
		t.Errorf("unexpected problem: %+v", p)
	}

	// When the bearer token matches, the request goes through.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	ok := httptest.NewRecorder()
	f.router.ServeHTTP(ok, req)
	if ok.Code != http.StatusOK {
		t.Errorf("authenticated status = %d", ok.Code)
	}

	// Health stays public.
	if rr := f.do(t, http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
		t.Errorf("healthz behind auth: %d", rr.Code)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", ""},
		{"wrong scheme", "Basic abc", ""},
		{"lowercase scheme", "bearer abc", ""},
		{"valid", "Bearer abc123", "abc123"},
		{"padded", "Bearer   abc123  ", "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := extractBearerToken(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPutAndGetEntry_RawDocument(t *testing.T) {
	f := newFixture(t, "")

	doc := "---\nschema: 1\ndate: 2025-06-01\nscore: 7\n---\n# 5. Wins\nShipped the thing.\n"
	rr := f.do(t, http.MethodPut, "/api/v1/entries/2025-06-01", putEntryRequest{Document: doc})
	if rr.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", rr.Code, rr.Body.String())
	}

	// The write is local-only and lands pending.
	rec, err := f.store.GetRecord(context.Background(), "2025-06-01")
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if rec.State != types.StatePending {
		t.Errorf("state = %s, want pending", rec.State)
	}

	get := f.do(t, http.MethodGet, "/api/v1/entries/2025-06-01", nil)
	if get.Code != http.StatusOK {
		t.Fatalf("get status = %d", get.Code)
	}
	resp := decodeBody[entryResponse](t, get)
	if resp.Scores.Score != 7 {
		t.Errorf("score = %d, want 7", resp.Scores.Score)
	}
	if resp.Sections["s5"] != "Shipped the thing." {
		t.Errorf("section s5 = %q", resp.Sections["s5"])
	}
}

func TestPutEntry_StructuredPartialUpdate(t *testing.T) {
	f := newFixture(t, "")

	// Given an entry with a wins section.
	first := f.do(t, http.MethodPut, "/api/v1/entries/2025-06-01", putEntryRequest{
		Sections: map[string]string{"s5": "First win"},
	})
	if first.Code != http.StatusOK {
		t.Fatalf("first put status = %d: %s", first.Code, first.Body.String())
	}

	// When a later update touches only a section-4 subsection.
	delta := 12.5
	second := f.do(t, http.MethodPut, "/api/v1/entries/2025-06-01", putEntryRequest{
		NetWorthDelta: &delta,
		Sections:      map[string]string{"s4:health": "Ran 5k"},
	})
	if second.Code != http.StatusOK {
		t.Fatalf("second put status = %d: %s", second.Code, second.Body.String())
	}

	// Then the untouched section survives.
	resp := decodeBody[entryResponse](t, second)
	if resp.Sections["s5"] != "First win" {
		t.Errorf("earlier section lost: %q", resp.Sections["s5"])
	}
	if resp.Sections["s4:Health"] != "Ran 5k" {
		t.Errorf("subsection = %q", resp.Sections["s4:Health"])
	}
	if resp.NetWorthDelta != 12.5 {
		t.Errorf("delta = %v", resp.NetWorthDelta)
	}
}

func TestPutEntry_Rejections(t *testing.T) {
	f := newFixture(t, "")

	// Unknown section key.
	rr := f.do(t, http.MethodPut, "/api/v1/entries/2025-06-01", putEntryRequest{
		Sections: map[string]string{"s99": "nope"},
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown section status = %d", rr.Code)
	}

	// Out-of-range score in a raw document fails validation.
	doc := "---\ndate: 2025-06-01\nscore: 42\n---\n"
	rr = f.do(t, http.MethodPut, "/api/v1/entries/2025-06-01", putEntryRequest{Document: doc})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid entry status = %d: %s", rr.Code, rr.Body.String())
	}

	// Malformed JSON body.
	req := httptest.NewRequest(http.MethodPut, "/api/v1/entries/2025-06-01", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d", rec.Code)
	}
}

func TestListEntries(t *testing.T) {
	f := newFixture(t, "")

	for _, date := range []string{"2025-06-01", "2025-06-02", "2025-06-03"} {
		doc := "---\ndate: " + date + "\n---\n# 5. Wins\n"
		if date == "2025-06-02" {
			doc += "climbing trip\n"
		}
		rr := f.do(t, http.MethodPut, "/api/v1/entries/"+date, putEntryRequest{Document: doc})
		if rr.Code != http.StatusOK {
			t.Fatalf("seed put failed: %d", rr.Code)
		}
	}

	// Unfiltered listing, newest first.
	rr := f.do(t, http.MethodGet, "/api/v1/entries", nil)
	page := decodeBody[types.Page](t, rr)
	if len(page.Dates) != 3 || page.Dates[0] != "2025-06-03" {
		t.Errorf("unexpected page: %+v", page)
	}

	// Search filters on document text.
	rr = f.do(t, http.MethodGet, "/api/v1/entries?q=climbing", nil)
	page = decodeBody[types.Page](t, rr)
	if len(page.Dates) != 1 || page.Dates[0] != "2025-06-02" {
		t.Errorf("search page: %+v", page)
	}

	// Out-of-range page numbers clamp instead of erroring.
	rr = f.do(t, http.MethodGet, "/api/v1/entries?page=99", nil)
	page = decodeBody[types.Page](t, rr)
	if page.Current != 1 {
		t.Errorf("clamped page = %d", page.Current)
	}

	// Non-numeric page is a bad request.
	if rr := f.do(t, http.MethodGet, "/api/v1/entries?page=abc", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("bad page status = %d", rr.Code)
	}
}

func TestDeleteEntry(t *testing.T) {
	f := newFixture(t, "")

	doc := "---\ndate: 2025-06-01\n---\n"
	f.do(t, http.MethodPut, "/api/v1/entries/2025-06-01", putEntryRequest{Document: doc})

	rr := f.do(t, http.MethodDelete, "/api/v1/entries/2025-06-01", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}

	if _, err := f.store.GetRecord(context.Background(), "2025-06-01"); err == nil {
		t.Error("record survived delete")
	}
	page := decodeBody[types.Page](t, f.do(t, http.MethodGet, "/api/v1/entries", nil))
	if len(page.Dates) != 0 {
		t.Errorf("index still lists: %v", page.Dates)
	}
}

func TestSyncEndpoint(t *testing.T) {
	f := newFixture(t, "")

	doc := "---\ndate: 2025-06-01\n---\n"
	f.do(t, http.MethodPut, "/api/v1/entries/2025-06-01", putEntryRequest{Document: doc})

	rr := f.do(t, http.MethodPost, "/api/v1/sync", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("sync status = %d", rr.Code)
	}
	report := decodeBody[syncer.Report](t, rr)
	if report.Attempted != 1 || report.Synced != 1 || report.RunID == "" {
		t.Errorf("unexpected report: %+v", report)
	}

	if _, ok := f.remote.files["entries/2025-06-01.md"]; !ok {
		t.Error("entry never reached the remote")
	}
}

func TestSyncEndpoint_PartialFailureStillReports(t *testing.T) {
	f := newFixture(t, "")

	doc := "---\ndate: 2025-06-01\n---\n"
	f.do(t, http.MethodPut, "/api/v1/entries/2025-06-01", putEntryRequest{Document: doc})
	f.remote.fail = true

	rr := f.do(t, http.MethodPost, "/api/v1/sync", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("sync status = %d", rr.Code)
	}
	report := decodeBody[syncer.Report](t, rr)
	if report.Failed != 1 || report.Synced != 0 {
		t.Errorf("unexpected report: %+v", report)
	}

	// The entry stays queued for the next drain.
	rec, _ := f.store.GetRecord(context.Background(), "2025-06-01")
	if rec.State != types.StatePending {
		t.Errorf("state = %s, want pending", rec.State)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, "")

	doc := "---\ndate: 2025-06-01\n---\n"
	f.do(t, http.MethodPut, "/api/v1/entries/2025-06-01", putEntryRequest{Document: doc})

	rr := f.do(t, http.MethodGet, "/api/v1/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	st := decodeBody[statusResponse](t, rr)
	if st.Entries != 1 || len(st.PendingDates) != 1 || st.PendingDates[0] != "2025-06-01" {
		t.Errorf("unexpected status: %+v", st)
	}
	if !st.Usage.Writable || st.Usage.Bytes <= 0 {
		t.Errorf("unexpected usage: %+v", st.Usage)
	}
	if st.LastSyncAt != "" {
		t.Errorf("last_sync_at before any sync: %q", st.LastSyncAt)
	}

	// After a drain the status carries the sync timestamp and an empty
	// queue.
	f.do(t, http.MethodPost, "/api/v1/sync", nil)
	st = decodeBody[statusResponse](t, f.do(t, http.MethodGet, "/api/v1/status", nil))
	if st.LastSyncAt == "" {
		t.Error("last_sync_at missing after sync")
	}
	if len(st.PendingDates) != 0 {
		t.Errorf("pending after sync: %v", st.PendingDates)
	}
}

func TestExportEndpoint(t *testing.T) {
	f := newFixture(t, "")

	doc := "---\ndate: 2025-06-01\n---\n"
	f.do(t, http.MethodPut, "/api/v1/entries/2025-06-01", putEntryRequest{Document: doc})

	rr := f.do(t, http.MethodGet, "/api/v1/export", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	var payload struct {
		Version int                        `json:"version"`
		Entries map[string]json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("export not JSON: %v", err)
	}
	if payload.Version != 1 || len(payload.Entries) != 1 {
		t.Errorf("unexpected export: version=%d entries=%d", payload.Version, len(payload.Entries))
	}
}

// recordingUploader captures uploads and serves a fixed presigned URL.
type recordingUploader struct {
	uploads int
	lastID  string
}

func (u *recordingUploader) Upload(ctx context.Context, exportID string, r io.Reader, size int64) error {
	u.uploads++
	u.lastID = exportID
	return nil
}

func (u *recordingUploader) PresignedURL(ctx context.Context, exportID string) (string, time.Time, error) {
	return "https://backups.example.com/exports/" + exportID + ".zip", time.Now().Add(time.Hour), nil
}

func TestBackupEndpoint(t *testing.T) {
	f := newFixture(t, "")
	doc := "---\ndate: 2025-06-01\n---\n"
	f.do(t, http.MethodPut, "/api/v1/entries/2025-06-01", putEntryRequest{Document: doc})

	// Without backup storage the endpoint reports unavailable.
	rr := f.do(t, http.MethodPost, "/api/v1/export/backup", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured status = %d", rr.Code)
	}

	// With an uploader wired the archive goes out and a download URL comes
	// back.
	up := &recordingUploader{}
	h := NewHandler(syncer.New(f.store, f.remote, index.New(nil), 0), f.store, index.New(nil), up, "", "test")
	router := NewRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/export/backup", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if up.uploads != 1 {
		t.Errorf("uploads = %d, want 1", up.uploads)
	}
	body := decodeBody[map[string]any](t, rec)
	url, _ := body["url"].(string)
	if !strings.Contains(url, up.lastID) {
		t.Errorf("url %q missing export id %q", url, up.lastID)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rr := httptest.NewRecorder()
	RecoveryMiddleware(panicking).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	p := decodeBody[Problem](t, rr)
	if p.Detail != "Internal Server Error" || strings.Contains(rr.Body.String(), "boom") {
		t.Errorf("panic detail leaked: %s", rr.Body.String())
	}
}
