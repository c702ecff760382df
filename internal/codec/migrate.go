package codec

import (
	"fmt"

	"github.com/hyperengineering/daybook/internal/types"
)

// Migration upgrades an entry from one schema version to the next. It must
// return an entry with a strictly higher SchemaVersion.
type Migration func(types.Entry) types.Entry

// migrations is keyed by the version a migration upgrades FROM. Empty while
// the schema is pinned at version 1.
var migrations = map[int]Migration{}

// RegisterMigration installs the upgrade step for entries at fromVersion.
// Registering the same version twice panics: each step has exactly one owner.
func RegisterMigration(fromVersion int, m Migration) {
	if _, exists := migrations[fromVersion]; exists {
		panic(fmt.Sprintf("codec: migration from schema %d already registered", fromVersion))
	}
	migrations[fromVersion] = m
}

// Migrate applies registered migrations until the entry reaches the current
// schema version. Entries already at or above the current version pass
// through unchanged; documents written by a newer build are preserved
// verbatim rather than downgraded.
func Migrate(e types.Entry) (types.Entry, error) {
	for e.SchemaVersion < types.CurrentSchemaVersion {
		m, ok := migrations[e.SchemaVersion]
		if !ok {
			return e, fmt.Errorf("no migration registered from schema version %d", e.SchemaVersion)
		}
		from := e.SchemaVersion
		e = m(e)
		if e.SchemaVersion <= from {
			return e, fmt.Errorf("migration from schema version %d did not advance the version", from)
		}
	}
	return e, nil
}
