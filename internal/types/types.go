package types

import (
	"fmt"
	"time"
)

// CurrentSchemaVersion is the document schema emitted by this build.
// Older documents are migrated forward on decode; newer documents pass
// through untouched so a downgrade never corrupts them.
const CurrentSchemaVersion = 1

// DateFormat is the canonical entry key layout (ISO calendar date).
const DateFormat = "2006-01-02"

// Subsection identifies one of the named subsections of the Daily Actions
// section. Zero value means "no subsection".
type Subsection int

const (
	SubNone Subsection = iota
	SubHealth
	SubSkill
	SubMoney
	SubLeverage
	SubMind
)

// subsectionNames maps subsection tags to their document headings.
var subsectionNames = [...]string{"", "Health", "Skill", "Money", "Leverage", "Mind"}

// Title returns the heading text for the subsection, empty for SubNone.
func (s Subsection) Title() string {
	if s < SubNone || int(s) >= len(subsectionNames) {
		return ""
	}
	return subsectionNames[s]
}

// SectionID addresses one body section of an entry: a section number 1–11
// plus an optional subsection tag valid only for section 4.
type SectionID struct {
	Number int
	Sub    Subsection
}

// Section returns the SectionID for a plain numbered section.
func Section(n int) SectionID { return SectionID{Number: n} }

// Sub returns the SectionID for a named subsection of section 4.
func Sub(s Subsection) SectionID { return SectionID{Number: 4, Sub: s} }

// Valid reports whether the identifier addresses a real section: number in
// [1,11] and a subsection tag only on section 4.
func (id SectionID) Valid() bool {
	if id.Number < 1 || id.Number > 11 {
		return false
	}
	if id.Sub != SubNone && id.Number != 4 {
		return false
	}
	return true
}

// String renders the identifier in the compact "s4" / "s4:Health" form used
// in logs and errors.
func (id SectionID) String() string {
	if id.Sub == SubNone {
		return fmt.Sprintf("s%d", id.Number)
	}
	return fmt.Sprintf("s%d:%s", id.Number, subsectionNames[id.Sub])
}

// Scores holds the five daily self-ratings. Each is constrained to [0,10].
type Scores struct {
	Score      int `json:"score"`
	Discipline int `json:"discipline"`
	Focus      int `json:"focus"`
	Energy     int `json:"energy"`
	Mood       int `json:"mood"`
}

// DefaultScores returns the neutral midpoint used when a document omits a
// score field.
func DefaultScores() Scores {
	return Scores{Score: 5, Discipline: 5, Focus: 5, Energy: 5, Mood: 5}
}

// Entry is one dated journal record: the structured form of a document.
type Entry struct {
	SchemaVersion int                  `json:"schema_version"`
	Date          string               `json:"date"`
	Scores        Scores               `json:"scores"`
	NetWorthDelta float64              `json:"net_worth_delta"`
	Sections      map[SectionID]string `json:"-"`
}

// NewEntry returns an empty entry for the given date at the current schema
// version with default scores.
func NewEntry(date string) Entry {
	return Entry{
		SchemaVersion: CurrentSchemaVersion,
		Date:          date,
		Scores:        DefaultScores(),
		Sections:      make(map[SectionID]string),
	}
}

// SectionText returns the text of a section, empty string when unset.
func (e Entry) SectionText(id SectionID) string {
	if e.Sections == nil {
		return ""
	}
	return e.Sections[id]
}

// SetSection stores text for a section, allocating the map on first use.
func (e *Entry) SetSection(id SectionID, text string) {
	if e.Sections == nil {
		e.Sections = make(map[SectionID]string)
	}
	e.Sections[id] = text
}

// SyncState tracks whether an entry's last local write has been confirmed
// against the remote store.
type SyncState string

const (
	// StatePending marks a local write not yet confirmed remote.
	StatePending SyncState = "pending"
	// StateSynced marks local and remote content confirmed identical as of
	// the last successful write.
	StateSynced SyncState = "synced"
)

// CacheRecord is the cache's stored representation of an entry. Document is
// the codec's serialized text; RemoteToken is the optimistic-concurrency
// token from the last confirmed remote write, nil if never synced.
type CacheRecord struct {
	Date        string    `json:"date"`
	Document    string    `json:"document"`
	RemoteToken *string   `json:"remote_token,omitempty"`
	State       SyncState `json:"state"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Synced reports whether the record's last write is confirmed remote.
func (r CacheRecord) Synced() bool { return r.State == StateSynced }

// Page is one page of the date index plus navigation state.
type Page struct {
	Dates   []string `json:"dates"`
	Current int      `json:"current"`
	Total   int      `json:"total"`
	HasNext bool     `json:"has_next"`
	HasPrev bool     `json:"has_prev"`
}

// Usage describes local storage consumption.
type Usage struct {
	Bytes    int64 `json:"bytes"`
	Writable bool  `json:"writable"`
}

// ValidDate reports whether s is a well-formed calendar date in the
// canonical YYYY-MM-DD layout. time.Parse alone accepts some non-canonical
// spellings, so the length is checked first.
func ValidDate(s string) bool {
	if len(s) != len(DateFormat) {
		return false
	}
	_, err := time.Parse(DateFormat, s)
	return err == nil
}
