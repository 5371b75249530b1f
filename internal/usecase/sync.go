// Package usecase holds the reconciliation engine: fetch, normalize,
// classify, create or update, and write results back to the CRM.
package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/admitsync/admitsync"
	"github.com/admitsync/admitsync/internal/config"
	"github.com/admitsync/admitsync/internal/domain"
	"github.com/admitsync/admitsync/internal/mapping"
	"github.com/admitsync/admitsync/internal/normalize"
	"github.com/admitsync/admitsync/internal/transform"
)

var tracer = otel.Tracer("usecase")

// SyncEngine drives one reconciliation run end to end. A run is strictly
// sequential per applicant; concurrency lives at the run level and is
// serialized by the run lock, not here.
type SyncEngine struct {
	cfg     config.Config
	cfgPath string
	table   *mapping.Table
	slate   SlateClient
	campus  CampusGateway
	repo    CampusRepository
	logger  *zap.Logger

	mu      sync.Mutex
	current string
}

func NewSyncEngine(
	cfg config.Config,
	cfgPath string,
	table *mapping.Table,
	slate SlateClient,
	campus CampusGateway,
	repo CampusRepository,
	logger *zap.Logger,
) *SyncEngine {
	return &SyncEngine{
		cfg:     cfg,
		cfgPath: cfgPath,
		table:   table,
		slate:   slate,
		campus:  campus,
		repo:    repo,
		logger:  logger,
	}
}

// Result tallies one run.
type Result struct {
	Fetched     int
	Created     int
	Resubmitted int
	Updated     int
	Errors      int
}

func (r Result) Summary() string {
	return fmt.Sprintf("fetched %d, created %d, resubmitted %d, updated %d, errors %d",
		r.Fetched, r.Created, r.Resubmitted, r.Updated, r.Errors)
}

// CurrentRecord reports the applicant the engine was working on, for crash
// diagnostics. Empty outside a run.
func (e *SyncEngine) CurrentRecord() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *SyncEngine) setCurrent(aid string) {
	e.mu.Lock()
	e.current = aid
	e.mu.Unlock()
}

// runState accumulates cross-applicant output destined for the CRM upload
// endpoints at the end of the run.
type runState struct {
	active    []*admitsync.Record
	schools   []map[string]any
	checklist []string
}

// SyncAll runs a full reconciliation over every submitted application.
func (e *SyncEngine) SyncAll(ctx context.Context) (Result, error) {
	return e.run(ctx, "")
}

// SyncOne runs a reconciliation scoped to one CRM person. An empty query
// result is an error here: the caller asked for somebody specific.
func (e *SyncEngine) SyncOne(ctx context.Context, pid string) (Result, error) {
	return e.run(ctx, pid)
}

func (e *SyncEngine) run(ctx context.Context, pid string) (Result, error) {
	ctx, span := tracer.Start(ctx, "SyncEngine.Run")
	defer span.End()

	var res Result

	raws, err := e.slate.QueryApplications(ctx, pid)
	if err != nil {
		return res, errors.Wrap(err, "failed to query applications")
	}
	if pid != "" && len(raws) == 0 {
		return res, domain.ErrNoApplications
	}
	res.Fetched = len(raws)

	records := make([]*admitsync.Record, 0, len(raws))
	for _, raw := range raws {
		rec := normalize.FromRow(raw)
		e.setCurrent(rec.AID())
		norm, err := normalize.Normalize(rec, e.cfg.Slate.UploadActive)
		if err != nil {
			if err := e.fail(rec, err, &res); err != nil {
				return res, err
			}
			records = append(records, rec)
			continue
		}
		records = append(records, norm)
	}

	if err := e.autoExtendMappings(ctx); err != nil {
		return res, err
	}

	st := &runState{}
	for _, rec := range records {
		if flagged, _ := rec.Get("error_flag").Bool(); flagged {
			continue
		}
		if err := e.process(ctx, rec, &res, st); err != nil {
			return res, err
		}
	}

	if err := e.syncActions(ctx, st.active); err != nil {
		return res, err
	}

	if err := e.upload(ctx, records, st); err != nil {
		return res, err
	}

	if e.table.Dirty() {
		if err := e.table.Commit(e.cfg.Campus.MappingFileLocation); err != nil {
			return res, errors.Wrap(err, "failed to commit mapping additions")
		}
		e.logger.Info("mapping document extended")
	}

	// cleared only on success: after a failed run the marker tells the
	// operator which applicant the engine was on
	e.setCurrent("")
	e.logger.Info("sync finished", zap.String("summary", res.Summary()))
	return res, nil
}

// process reconciles one applicant: classify, create or resubmit as needed,
// and push updates for active applications.
func (e *SyncEngine) process(ctx context.Context, rec *admitsync.Record, res *Result, st *runState) error {
	aid := rec.AID()
	e.setCurrent(aid)

	status, err := e.repo.GetStatus(ctx, aid)
	if err != nil {
		return errors.Wrap(err, "failed to scan application status")
	}

	if !status.Known() || status.Resubmittable() {
		resubmit := status.Known()
		payload, err := transform.ToAPI(rec, e.cfg.Sync.Defaults)
		if err != nil {
			return e.fail(rec, err, res)
		}
		if _, err := e.campus.CreateApplication(ctx, payload); err != nil {
			return e.fail(rec, err, res)
		}
		if resubmit {
			res.Resubmitted++
		} else {
			res.Created++
		}
		// the creation settles asynchronously on the target side, so the
		// status is always re-read instead of assumed
		status, err = e.repo.GetStatus(ctx, aid)
		if err != nil {
			return errors.Wrap(err, "failed to rescan application status")
		}
	}

	// an application with no status row gets no label at all; the creation
	// may still be settling on the target side
	if !status.Known() {
		e.logger.Warn("application still unknown to the target system", zap.String("aid", aid))
		return nil
	}

	label := domain.ComputeStatus(status.RegistrationStage, status.DecisionStage, status.TargetID)
	status.Computed = &label
	rec.Set("ComputedStatus", admitsync.String(label))

	if e.cfg.Campus.DiagnosticLog.Enabled {
		// best effort: a failed log row never blocks the applicant
		if err := e.repo.LogClassification(ctx, aid, rec.PID(), status); err != nil {
			e.logger.Warn("classification log failed", zap.String("aid", aid), zap.Error(err))
		}
	}

	if !status.Active() {
		e.logger.Debug("application not active", zap.String("aid", aid), zap.String("status", label))
		return nil
	}

	rec.Set("PEOPLE_CODE_ID", admitsync.String(*status.TargetID))
	if err := e.updateActive(ctx, rec, st); err != nil {
		return e.fail(rec, err, res)
	}
	res.Updated++
	st.active = append(st.active, rec)
	return nil
}

// updateActive pushes everything the target system stores about one active
// application, parent rows before child rows.
func (e *SyncEngine) updateActive(ctx context.Context, rec *admitsync.Record, st *runState) error {
	ctx, span := tracer.Start(ctx, "SyncEngine.UpdateActive")
	defer span.End()

	app, err := transform.ToSQL(rec, e.table, e.cfg.Campus)
	if err != nil {
		return err
	}
	targetID, _ := rec.Get("PEOPLE_CODE_ID").Str()

	if e.cfg.Campus.UpdateAcademicKey {
		if err := e.repo.UpdateAcademicKey(ctx, app); err != nil {
			return err
		}
	}
	if err := e.repo.UpdateApplication(ctx, app); err != nil {
		return err
	}

	if v := rec.Get("SMSOptIn"); !v.IsNull() {
		if err := e.repo.UpdateSMSOptIn(ctx, targetID, v); err != nil {
			return err
		}
	}
	for _, note := range e.cfg.Campus.Notes {
		if text, ok := rec.Get(note.SlateField).Str(); ok && text != "" {
			if err := e.repo.InsertNote(ctx, targetID, note.Office, note.NoteType, text); err != nil {
				return err
			}
		}
	}
	for _, udf := range e.cfg.Campus.UserDefinedFields {
		if v := rec.Get(udf.SlateField); !v.IsNull() {
			if err := e.repo.UpdateUserDefined(ctx, targetID, udf.CampusField, v); err != nil {
				return err
			}
		}
	}

	for _, row := range app.Education {
		result, err := e.repo.UpsertEducation(ctx, targetID, row)
		if err != nil {
			return err
		}
		now := admitsync.Bool(result.OrgFound)
		if !row["compare_org_found"].Equal(now) {
			st.schools = append(st.schools, map[string]any{
				"aid":      rec.AID(),
				"GUID":     result.GUID,
				"OrgFound": result.OrgFound,
			})
		}
	}
	for _, row := range app.TestScores {
		if err := e.repo.UpsertTestScores(ctx, targetID, row); err != nil {
			return err
		}
	}
	for _, stop := range app.Stops {
		if err := e.repo.UpsertStop(ctx, targetID, stop); err != nil {
			return err
		}
	}
	for _, sch := range app.Scholarships {
		if err := e.repo.UpsertScholarship(ctx, targetID, sch); err != nil {
			return err
		}
	}
	for _, assoc := range app.Associations {
		if err := e.repo.UpsertAssociation(ctx, targetID, assoc); err != nil {
			return err
		}
	}

	// read the target-side academic profile back into the record so the
	// upload channels carry the settled values
	year := app.Params["ACADEMIC_YEAR"].Text()
	term := app.Params["ACADEMIC_TERM"].Text()
	session := app.Params["ACADEMIC_SESSION"].Text()
	profile, err := e.repo.GetProfile(ctx, targetID, year, term, session)
	if err != nil {
		return err
	}
	if len(profile) == 0 {
		// a missing academic row must surface to the CRM, not pass as success
		return domain.ProfileNotFoundError{TargetID: targetID, Year: year, Term: term, Session: session}
	}
	for k, v := range profile {
		rec.Set(k, v)
	}

	if e.cfg.Sync.FAChecklist.Enabled {
		items, err := e.repo.GetChecklist(ctx, targetID)
		if err != nil {
			return err
		}
		for _, it := range items {
			st.checklist = append(st.checklist,
				fmt.Sprintf("%s\t%s\t%s\t%s", rec.AID(), it.Code, it.Status, it.Date))
		}
	}

	return nil
}

// fail applies the run's error policy to a per-applicant error: under
// "continue" the record is flagged for the error writeback and the run moves
// on, under "abort" the error propagates.
func (e *SyncEngine) fail(rec *admitsync.Record, cause error, res *Result) error {
	res.Errors++
	e.logger.Error("applicant failed", zap.String("aid", rec.AID()), zap.Error(cause))
	if e.cfg.Sync.ErrorPolicy == "abort" {
		return cause
	}
	rec.Set("error_flag", admitsync.Bool(true))
	rec.Set("error_message", admitsync.String(cause.Error()))
	return nil
}

// autoExtendMappings proposes mapping rows for target-system catalog entries
// the document does not cover yet. Only forward-looking academic years are
// considered.
func (e *SyncEngine) autoExtendMappings(ctx context.Context) error {
	ae := e.cfg.Campus.AutoExtendMappings
	if !ae.Enabled {
		return nil
	}
	ctx, span := tracer.Start(ctx, "SyncEngine.AutoExtendMappings")
	defer span.End()

	terms, err := e.repo.TermCatalog(ctx, ae.MinimumYear)
	if err != nil {
		return errors.Wrap(err, "failed to read term catalog")
	}
	for _, t := range terms {
		code := t.Year + "/" + t.Term
		if e.table.Has("AcademicTerm", code) {
			continue
		}
		e.table.Propose("AcademicTerm", code, map[string]string{
			"PCYearCodeValue":    t.Year,
			"PCTermCodeValue":    t.Term,
			"PCSessionCodeValue": t.Session,
		})
		e.logger.Info("proposed term mapping", zap.String("code", code))
	}

	programs, err := e.repo.ProgramCatalog(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read program catalog")
	}
	for _, p := range programs {
		code := p.Degree + "/" + p.Curriculum
		if e.table.Has("AcademicProgram", code) {
			continue
		}
		e.table.Propose("AcademicProgram", code, map[string]string{
			"PCDegreeCodeValue":     p.Degree,
			"PCCurriculumCodeValue": p.Curriculum,
		})
		e.logger.Info("proposed program mapping", zap.String("code", code))
	}

	return nil
}
