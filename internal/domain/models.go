package domain

import (
	"github.com/admitsync/admitsync"
)

// ActionDefinition is the target system's catalog entry for one scheduled
// action code.
type ActionDefinition struct {
	Code   string
	Name   string
	Office string
}

// ScheduledAction is one admissions checklist item as exported by the CRM.
type ScheduledAction struct {
	AID           string
	ActionID      string
	Code          string
	ScheduledDate admitsync.Value
	CompletedDate admitsync.Value
	Completed     admitsync.Value
}

// ChecklistItem is one financial-aid checklist row read back from the target
// system.
type ChecklistItem struct {
	Code   string
	Status string
	Date   string
}

// TermCatalogEntry is one row of the target system's academic calendar.
type TermCatalogEntry struct {
	Year    string
	Term    string
	Session string
}

// ProgramOfStudy is one row of the target system's program catalog.
type ProgramOfStudy struct {
	Program    string
	Degree     string
	Curriculum string
}

// EducationResult reports what the education upsert procedure decided about
// one school row.
type EducationResult struct {
	GUID     string
	OrgFound bool
}
