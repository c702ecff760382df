// Package export produces and consumes the bulk formats: a JSON document of
// all cached entries and a ZIP archive mirroring the remote layout. Import
// feeds the JSON shape back into the cache without ever overwriting entries
// the client already confirmed synced.
package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/daybook/internal/cache"
	"github.com/hyperengineering/daybook/internal/types"
)

// FormatVersion tags the JSON export shape.
const FormatVersion = 1

// Document is the JSON export envelope.
type Document struct {
	Version      int                  `json:"version"`
	ExportID     string               `json:"exportId"`
	ExportedAt   time.Time            `json:"exportedAt"`
	TotalEntries int                  `json:"totalEntries"`
	Entries      map[string]EntryBlob `json:"entries"`
}

// EntryBlob is one exported entry: the serialized document plus its sync
// bookkeeping.
type EntryBlob struct {
	Document     string    `json:"document"`
	Synced       bool      `json:"synced"`
	VersionToken *string   `json:"versionToken"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// WriteJSON streams the JSON export of every cached entry to w.
func WriteJSON(ctx context.Context, store *cache.Store, w io.Writer) error {
	records, err := store.Records(ctx)
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}

	doc := Document{
		Version:      FormatVersion,
		ExportID:     ulid.Make().String(),
		ExportedAt:   time.Now().UTC(),
		TotalEntries: len(records),
		Entries:      make(map[string]EntryBlob, len(records)),
	}
	for _, rec := range records {
		doc.Entries[rec.Date] = EntryBlob{
			Document:     rec.Document,
			Synced:       rec.Synced(),
			VersionToken: rec.RemoteToken,
			UpdatedAt:    rec.UpdatedAt,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// WriteArchive streams a ZIP archive to w with one entries/<date>.md file
// per cached entry, mirroring the remote layout.
func WriteArchive(ctx context.Context, store *cache.Store, w io.Writer) error {
	records, err := store.Records(ctx)
	if err != nil {
		return fmt.Errorf("read cache: %w", err)
	}

	zw := zip.NewWriter(w)
	for _, rec := range records {
		if ctx.Err() != nil {
			zw.Close()
			return ctx.Err()
		}
		f, err := zw.Create("entries/" + rec.Date + ".md")
		if err != nil {
			zw.Close()
			return fmt.Errorf("create archive member: %w", err)
		}
		if _, err := f.Write([]byte(rec.Document)); err != nil {
			zw.Close()
			return fmt.Errorf("write archive member: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// ImportReport summarizes one import run.
type ImportReport struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`  // malformed dates
	Retained int `json:"retained"` // locally synced entries left untouched
}

// ImportJSON reads a JSON export and merges it into the cache. Entries the
// client already confirmed synced are never overwritten; malformed dates
// are skipped and counted. Imported entries land pending so the next drain
// pushes them, keeping the export's token only when the local cache has
// none to condition on.
func ImportJSON(ctx context.Context, store *cache.Store, r io.Reader) (ImportReport, error) {
	var report ImportReport

	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return report, fmt.Errorf("decode import: %w", err)
	}

	for date, blob := range doc.Entries {
		if !types.ValidDate(date) {
			report.Skipped++
			continue
		}

		rec := types.CacheRecord{
			Date:        date,
			Document:    blob.Document,
			RemoteToken: blob.VersionToken,
			State:       types.StatePending,
			UpdatedAt:   time.Now().UTC(),
		}

		existing, err := store.GetRecord(ctx, date)
		if err == nil {
			if existing.Synced() {
				report.Retained++
				continue
			}
			if existing.RemoteToken != nil {
				rec.RemoteToken = existing.RemoteToken
			}
		}

		if err := store.PutRecord(ctx, rec); err != nil {
			return report, fmt.Errorf("import %s: %w", date, err)
		}
		report.Imported++
	}

	return report, nil
}
