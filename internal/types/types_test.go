package types

import "testing"

func TestSectionID_Valid(t *testing.T) {
	tests := []struct {
		name string
		id   SectionID
		want bool
	}{
		{"first section", Section(1), true},
		{"last section", Section(11), true},
		{"zero section", Section(0), false},
		{"past last", Section(12), false},
		{"subsection of four", Sub(SubHealth), true},
		{"subsection on other section", SectionID{Number: 2, Sub: SubMind}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSectionID_String(t *testing.T) {
	if got := Section(7).String(); got != "s7" {
		t.Errorf("expected s7, got %q", got)
	}
	if got := Sub(SubLeverage).String(); got != "s4:Leverage" {
		t.Errorf("expected s4:Leverage, got %q", got)
	}
}

func TestValidDate(t *testing.T) {
	tests := []struct {
		date string
		want bool
	}{
		{"2025-12-25", true},
		{"2024-02-29", true},  // leap day
		{"2025-02-29", false}, // not a leap year
		{"2025-13-40", false},
		{"2025-1-5", false}, // non-canonical spelling
		{"not-a-date", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			if got := ValidDate(tt.date); got != tt.want {
				t.Errorf("ValidDate(%q) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestNewEntry_Defaults(t *testing.T) {
	// Given: A fresh entry for a date
	e := NewEntry("2025-06-01")

	// Then: It carries the current schema version and neutral scores
	if e.SchemaVersion != CurrentSchemaVersion {
		t.Errorf("expected schema %d, got %d", CurrentSchemaVersion, e.SchemaVersion)
	}
	if e.Scores != DefaultScores() {
		t.Errorf("expected default scores, got %+v", e.Scores)
	}
	if e.SectionText(Section(1)) != "" {
		t.Error("expected empty section text")
	}
}

func TestEntry_SetSection_AllocatesMap(t *testing.T) {
	var e Entry
	e.SetSection(Section(3), "shipped the parser")
	if e.SectionText(Section(3)) != "shipped the parser" {
		t.Error("section text not stored")
	}
}
