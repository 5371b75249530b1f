package usecase

import (
	"context"

	"github.com/admitsync/admitsync"
	"github.com/admitsync/admitsync/internal/config"
	"github.com/admitsync/admitsync/internal/domain"
	"github.com/admitsync/admitsync/internal/transform"
)

// SlateClient defines the CRM web-service operations: the query endpoints the
// engine reads from and the upload endpoints it writes back to.
type SlateClient interface {
	// QueryApplications fetches submitted applications, optionally scoped to
	// one person identifier. pid == "" fetches everything.
	QueryApplications(ctx context.Context, pid string) ([]map[string]any, error)
	GetScheduledActions(ctx context.Context, aids []string) ([]domain.ScheduledAction, error)
	PostRows(ctx context.Context, endpoint config.Endpoint, rows []map[string]any) error
	PostChecklist(ctx context.Context, endpoint config.Endpoint, body string) error
}

// CampusGateway encapsulates the target system's REST surface.
type CampusGateway interface {
	// CreateApplication submits a creation payload and returns the target
	// person identifier assigned to it.
	CreateApplication(ctx context.Context, payload map[string]any) (string, error)
}

// CampusRepository defines the target system's stored-procedure surface.
type CampusRepository interface {
	GetStatus(ctx context.Context, aid string) (domain.ApplicationStatus, error)
	// LogClassification appends a diagnostic row carrying the raw status
	// codes, the computed label, and the status row's error text. Best
	// effort; failures never block the applicant.
	LogClassification(ctx context.Context, aid, pid string, status domain.ApplicationStatus) error

	UpdateApplication(ctx context.Context, app *transform.SQLApplication) error
	UpdateAcademicKey(ctx context.Context, app *transform.SQLApplication) error
	UpdateSMSOptIn(ctx context.Context, targetID string, optIn admitsync.Value) error
	InsertNote(ctx context.Context, targetID, office, noteType, text string) error
	UpdateUserDefined(ctx context.Context, targetID, field string, value admitsync.Value) error

	UpsertEducation(ctx context.Context, targetID string, row admitsync.Row) (domain.EducationResult, error)
	UpsertTestScores(ctx context.Context, targetID string, row admitsync.Row) error
	UpsertStop(ctx context.Context, targetID string, stop transform.Stop) error
	UpsertScholarship(ctx context.Context, targetID string, scholarship transform.Scholarship) error
	UpsertAssociation(ctx context.Context, targetID string, association transform.Association) error

	UpsertAction(ctx context.Context, targetID string, action domain.ScheduledAction) error
	// CleanupActions deletes the target system's scheduled actions for the
	// managed codes whose identifiers are not in keep. Runs strictly after
	// the batch's upserts.
	CleanupActions(ctx context.Context, targetID string, codes []string, keep []string) error
	GetActionDefinition(ctx context.Context, code string) (domain.ActionDefinition, error)

	GetProfile(ctx context.Context, targetID, year, term, session string) (admitsync.Row, error)
	GetChecklist(ctx context.Context, targetID string) ([]domain.ChecklistItem, error)

	TermCatalog(ctx context.Context, minimumYear int) ([]domain.TermCatalogEntry, error)
	ProgramCatalog(ctx context.Context) ([]domain.ProgramOfStudy, error)
}

// RunLock serializes full sync runs across processes.
type RunLock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context)
}
