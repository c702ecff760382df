// Package syncer orchestrates the offline/online lifecycle: every local
// save lands in the cache as pending, and the coordinator pushes pending
// entries to the remote store, promoting them to synced once the write is
// confirmed. Failures never dequeue an entry; conflicts surface untouched.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/daybook/internal/cache"
	"github.com/hyperengineering/daybook/internal/codec"
	"github.com/hyperengineering/daybook/internal/index"
	"github.com/hyperengineering/daybook/internal/remote"
	"github.com/hyperengineering/daybook/internal/types"
)

// entriesDir is the remote directory holding one file per entry.
const entriesDir = "entries"

// ErrInvalidEntry wraps validation failures on save. Never retried.
var ErrInvalidEntry = errors.New("invalid entry")

// Report summarizes one drain of the pending queue.
type Report struct {
	RunID     string `json:"run_id"`
	Attempted int    `json:"attempted"`
	Synced    int    `json:"synced"`
	Failed    int    `json:"failed"`
	Conflicts int    `json:"conflicts"`
	Skipped   bool   `json:"skipped"` // a drain was already in flight
}

// Coordinator wires the cache, the remote store, and the listing view.
type Coordinator struct {
	cache  *cache.Store
	remote remote.Store
	index  *index.Index

	mu       sync.Mutex
	draining bool
	inFlight map[string]bool // per-date write serialization

	interval time.Duration
}

// New creates a coordinator. interval governs the optional Run loop; zero
// disables periodic drains.
func New(c *cache.Store, r remote.Store, ix *index.Index, interval time.Duration) *Coordinator {
	return &Coordinator{
		cache:    c,
		remote:   r,
		index:    ix,
		inFlight: make(map[string]bool),
		interval: interval,
	}
}

// entryPath maps a date to its remote file path.
func entryPath(date string) string {
	return entriesDir + "/" + date + ".md"
}

// Entry returns the entry for a date. Resolution order: local cache, then
// the remote store (lazy hydration for dates known only from a listing),
// then a fresh empty entry. Decoded entries are migrated to the current
// schema before they are returned.
func (co *Coordinator) Entry(ctx context.Context, date string) (types.Entry, error) {
	if !types.ValidDate(date) {
		return types.Entry{}, fmt.Errorf("%w: bad date %q", ErrInvalidEntry, date)
	}

	rec, err := co.cache.GetRecord(ctx, date)
	if err == nil {
		return codec.Migrate(codec.Decode(rec.Document))
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return types.Entry{}, err
	}

	file, err := co.remote.Read(ctx, entryPath(date))
	if err != nil {
		return types.Entry{}, err
	}
	if file == nil {
		return types.NewEntry(date), nil
	}

	// Hydrate the cache with the remote copy. A cache write failure only
	// costs us the cached copy, not the read.
	if err := co.cache.PutRecord(ctx, types.CacheRecord{
		Date:        date,
		Document:    file.Content,
		RemoteToken: &file.Token,
		State:       types.StateSynced,
		UpdatedAt:   time.Now().UTC(),
	}); err != nil {
		slog.Warn("cache hydration failed",
			"component", "syncer",
			"action", "hydrate_failed",
			"date", date,
			"error", err,
		)
	}
	co.index.Add(date)

	return codec.Migrate(codec.Decode(file.Content))
}

// Save validates and persists an entry locally, marking it pending. The
// last known remote token is preserved so the next push stays conditioned
// on the revision we actually saw.
func (co *Coordinator) Save(ctx context.Context, e types.Entry) error {
	if errs := codec.Validate(e); len(errs) != 0 {
		msgs := make([]string, len(errs))
		for i, ve := range errs {
			msgs[i] = ve.Error()
		}
		return fmt.Errorf("%w: %s", ErrInvalidEntry, strings.Join(msgs, "; "))
	}

	rec := types.CacheRecord{
		Date:      e.Date,
		Document:  codec.Encode(e),
		State:     types.StatePending,
		UpdatedAt: time.Now().UTC(),
	}
	if prev, err := co.cache.GetRecord(ctx, e.Date); err == nil {
		rec.RemoteToken = prev.RemoteToken
	}

	if err := co.cache.PutRecord(ctx, rec); err != nil {
		return fmt.Errorf("cache save: %w", err)
	}
	co.index.Add(e.Date)
	return nil
}

// Delete removes an entry everywhere: conditioned remote delete when a
// token is known, then the cache record and index row.
func (co *Coordinator) Delete(ctx context.Context, date string) error {
	rec, err := co.cache.GetRecord(ctx, date)
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		return err
	}

	if err == nil && rec.RemoteToken != nil {
		if err := co.remote.Delete(ctx, entryPath(date), *rec.RemoteToken, "daybook: delete "+date); err != nil {
			return err
		}
	}

	if err := co.cache.DeleteRecord(ctx, date); err != nil {
		return err
	}
	co.index.Remove(date)
	return nil
}

// LoadRemoteIndex replaces the date index from a remote listing. Best
// effort by contract: a failure is logged and reported as false, never
// fatal — the local view keeps working offline.
func (co *Coordinator) LoadRemoteIndex(ctx context.Context) bool {
	entries, err := co.remote.List(ctx, entriesDir)
	if err != nil {
		slog.Warn("remote index refresh failed",
			"component", "syncer",
			"action", "index_refresh_failed",
			"error", err,
		)
		return false
	}

	var dates []string
	for _, e := range entries {
		date, ok := strings.CutSuffix(e.Name, ".md")
		if !ok || !types.ValidDate(date) {
			continue
		}
		dates = append(dates, date)
	}

	if err := co.cache.ReplaceDates(ctx, dates); err != nil {
		slog.Warn("date index persist failed",
			"component", "syncer",
			"action", "index_persist_failed",
			"error", err,
		)
		return false
	}

	// The persisted index is authoritative for the view: it includes the
	// listing plus any pending local dates the listing cannot know about.
	merged, err := co.cache.Dates(ctx)
	if err != nil {
		merged = dates
	}
	co.index.ReplaceAll(merged)

	slog.Info("remote index loaded",
		"component", "syncer",
		"action", "index_loaded",
		"dates", len(merged),
	)
	return true
}

// SyncOne pushes a single pending entry to the remote store. Writes for the
// same date are serialized: a second call while one is in flight returns
// immediately. A non-pending entry is a no-op.
func (co *Coordinator) SyncOne(ctx context.Context, date string) error {
	co.mu.Lock()
	if co.inFlight[date] {
		co.mu.Unlock()
		return nil
	}
	co.inFlight[date] = true
	co.mu.Unlock()

	defer func() {
		co.mu.Lock()
		delete(co.inFlight, date)
		co.mu.Unlock()
	}()

	return co.push(ctx, date)
}

// push performs the remote write for one date. Caller holds the per-date
// in-flight slot.
func (co *Coordinator) push(ctx context.Context, date string) error {
	rec, err := co.cache.GetRecord(ctx, date)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if rec.State != types.StatePending {
		return nil
	}

	token, err := co.remote.Write(ctx, entryPath(date), rec.Document, rec.RemoteToken, "daybook: save "+date)
	if err != nil {
		// The entry stays pending and queued; conflicts pass through
		// undisturbed so the caller can decide how to resolve.
		slog.Warn("remote write failed",
			"component", "syncer",
			"action", "push_failed",
			"date", date,
			"conflict", errors.Is(err, remote.ErrConflict),
			"error", err,
		)
		return err
	}

	if err := co.cache.MarkSynced(ctx, date, token); err != nil {
		// The remote write landed but the local flip did not; the entry
		// stays pending and the next push re-sends the same content with
		// a stale token. Record the token miss so the operator can see it.
		slog.Error("mark synced failed after confirmed write",
			"component", "syncer",
			"action", "mark_synced_failed",
			"date", date,
			"error", err,
		)
		return err
	}

	slog.Info("entry synced",
		"component", "syncer",
		"action", "entry_synced",
		"date", date,
	)
	return nil
}

// SyncAllPending drains the pending queue sequentially. A boolean in-flight
// guard collapses overlapping triggers — a periodic tick and a manual
// "back online" event arriving together produce exactly one drain; the
// loser returns a report with Skipped set and no error.
func (co *Coordinator) SyncAllPending(ctx context.Context) (Report, error) {
	co.mu.Lock()
	if co.draining {
		co.mu.Unlock()
		return Report{Skipped: true}, nil
	}
	co.draining = true
	co.mu.Unlock()

	defer func() {
		co.mu.Lock()
		co.draining = false
		co.mu.Unlock()
	}()

	report := Report{RunID: ulid.Make().String()}

	dates, err := co.cache.PendingDates(ctx)
	if err != nil {
		return report, fmt.Errorf("list pending: %w", err)
	}

	var errs []error
	for _, date := range dates {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report.Attempted++
		if err := co.SyncOne(ctx, date); err != nil {
			report.Failed++
			if errors.Is(err, remote.ErrConflict) {
				report.Conflicts++
			}
			errs = append(errs, fmt.Errorf("%s: %w", date, err))
			continue
		}
		report.Synced++
	}

	// Best effort bookkeeping; a settings write failure never fails the
	// drain itself.
	if err := co.cache.PutSetting(ctx, "last_sync_run", report.RunID); err == nil {
		_ = co.cache.PutSetting(ctx, "last_sync_at", time.Now().UTC().Format(time.RFC3339))
	}

	slog.Info("pending queue drained",
		"component", "syncer",
		"action", "drain_complete",
		"run_id", report.RunID,
		"attempted", report.Attempted,
		"synced", report.Synced,
		"failed", report.Failed,
		"conflicts", report.Conflicts,
	)
	return report, errors.Join(errs...)
}

// Run starts the periodic drain loop. Blocks until ctx is cancelled.
func (co *Coordinator) Run(ctx context.Context) {
	if co.interval <= 0 {
		return
	}

	slog.Info("worker started",
		"component", "syncer",
		"worker", "sync-coordinator",
		"action", "worker_started",
		"interval", co.interval.String(),
	)

	ticker := time.NewTicker(co.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "syncer",
				"worker", "sync-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			if _, err := co.SyncAllPending(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("periodic drain incomplete",
					"component", "syncer",
					"action", "drain_incomplete",
					"error", err,
				)
			}
		}
	}
}
