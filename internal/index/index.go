// Package index is the in-memory listing view over the cached date set:
// descending sort, case-insensitive search, fixed-size pagination. It holds
// no entry content itself; document text for search comes from a loader
// callback so the view stays decoupled from the cache.
package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/hyperengineering/daybook/internal/types"
)

// PageSize is the fixed number of dates per page.
const PageSize = 50

// DocumentLoader returns the cached document text for a date, or false when
// no document is cached. Dates without a cached document are excluded from
// text search but still match on the date string itself.
type DocumentLoader func(date string) (string, bool)

// Index is a stateful filter/paginate view. Safe for interleaved triggers:
// all operations take the mutex.
type Index struct {
	mu      sync.Mutex
	dates   []string // descending
	query   string   // lowercased
	current int      // 1-based
	loader  DocumentLoader
}

// New creates an empty index. The loader may be nil, in which case search
// matches on date strings only.
func New(loader DocumentLoader) *Index {
	return &Index{current: 1, loader: loader}
}

// ReplaceAll resets the view to an authoritative date set, such as a fresh
// remote listing. The current page is preserved where possible; Page clamps
// it into the new range.
func (ix *Index) ReplaceAll(dates []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.dates = dedupeDescending(dates)
}

// Add inserts a date if absent and re-sorts. Idempotent.
func (ix *Index) Add(date string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, d := range ix.dates {
		if d == date {
			return
		}
	}
	ix.dates = append(ix.dates, date)
	sort.Sort(sort.Reverse(sort.StringSlice(ix.dates)))
}

// Remove drops a date if present. Idempotent.
func (ix *Index) Remove(date string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for i, d := range ix.dates {
		if d == date {
			ix.dates = append(ix.dates[:i], ix.dates[i+1:]...)
			return
		}
	}
}

// Len reports the number of dates in the view, ignoring any filter.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.dates)
}

// SetQuery installs a case-insensitive search filter and resets to page 1.
// An empty query clears the filter.
func (ix *Index) SetQuery(q string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.query = strings.ToLower(strings.TrimSpace(q))
	ix.current = 1
}

// SetPage jumps to an absolute 1-based page. Page clamps it into range.
func (ix *Index) SetPage(n int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.current = n
}

// Next advances one page if available.
func (ix *Index) Next() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.current++
}

// Prev steps back one page if available.
func (ix *Index) Prev() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.current--
}

// Page returns the current page of filtered dates plus navigation state.
// The page number is clamped into [1, total] on every call, so a shrinking
// date set can never strand the view past the end.
func (ix *Index) Page() types.Page {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	filtered := ix.filtered()

	total := (len(filtered) + PageSize - 1) / PageSize
	if total < 1 {
		total = 1
	}
	if ix.current > total {
		ix.current = total
	}
	if ix.current < 1 {
		ix.current = 1
	}

	start := (ix.current - 1) * PageSize
	end := start + PageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	return types.Page{
		Dates:   append([]string(nil), filtered[start:end]...),
		Current: ix.current,
		Total:   total,
		HasNext: ix.current < total,
		HasPrev: ix.current > 1,
	}
}

// filtered applies the search query. Caller holds the mutex.
func (ix *Index) filtered() []string {
	if ix.query == "" {
		return ix.dates
	}

	var out []string
	for _, d := range ix.dates {
		if strings.Contains(strings.ToLower(d), ix.query) {
			out = append(out, d)
			continue
		}
		if ix.loader == nil {
			continue
		}
		if doc, ok := ix.loader(d); ok && strings.Contains(strings.ToLower(doc), ix.query) {
			out = append(out, d)
		}
	}
	return out
}

func dedupeDescending(dates []string) []string {
	seen := make(map[string]struct{}, len(dates))
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}
