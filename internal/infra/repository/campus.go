// Package repository implements the target system's stored-procedure surface
// on top of gorm. Every write goes through a procedure in the custom schema;
// the engine never touches the target system's tables directly.
package repository

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/admitsync/admitsync"
	"github.com/admitsync/admitsync/internal/config"
	"github.com/admitsync/admitsync/internal/domain"
	"github.com/admitsync/admitsync/internal/transform"
)

type CampusRepository struct {
	db    *gorm.DB
	cfg   config.Campus
	cache *gocache.Cache
}

func NewCampusRepository(db *gorm.DB, cfg config.Campus) *CampusRepository {
	return &CampusRepository{
		db:    db,
		cfg:   cfg,
		cache: gocache.New(30*time.Minute, 10*time.Minute),
	}
}

// arg converts a record value into a procedure argument. Null becomes SQL
// null.
func arg(v admitsync.Value) any {
	switch v.Kind() {
	case admitsync.KindString:
		s, _ := v.Str()
		return s
	case admitsync.KindInt:
		n, _ := v.Int()
		return n
	case admitsync.KindBool:
		b, _ := v.Bool()
		return b
	}
	return nil
}

func args(row admitsync.Row, names ...string) []any {
	out := make([]any, len(names))
	for i, name := range names {
		out[i] = arg(row[name])
	}
	return out
}

// transient reports whether an error looks like a dropped database
// connection, which warrants exactly one retry. Anything else is not retried:
// the procedures are not idempotent enough to hammer.
func transient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected EOF")
}

func (r *CampusRepository) exec(ctx context.Context, query string, queryArgs ...any) error {
	err := r.db.WithContext(ctx).Exec(query, queryArgs...).Error
	if err != nil && transient(err) {
		err = r.db.WithContext(ctx).Exec(query, queryArgs...).Error
	}
	return err
}

func (r *CampusRepository) GetStatus(ctx context.Context, aid string) (domain.ApplicationStatus, error) {
	var row struct {
		RegistrationStage *int64  `gorm:"column:registration_stage"`
		DecisionStage     *int64  `gorm:"column:decision_stage"`
		PeopleCodeID      *string `gorm:"column:people_code_id"`
		ErrorMessage      *string `gorm:"column:ra_errormessage"`
	}
	err := r.db.WithContext(ctx).
		Raw("SELECT registration_stage, decision_stage, people_code_id, ra_errormessage FROM custom.ps_sel_ra_status(?)", aid).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ApplicationStatus{}, nil
	}
	if err != nil {
		return domain.ApplicationStatus{}, errors.Wrap(err, "failed to read application status")
	}
	return domain.ApplicationStatus{
		RegistrationStage: row.RegistrationStage,
		DecisionStage:     row.DecisionStage,
		TargetID:          row.PeopleCodeID,
		ErrorMessage:      row.ErrorMessage,
	}, nil
}

func (r *CampusRepository) LogClassification(ctx context.Context, aid, pid string, status domain.ApplicationStatus) error {
	table := r.cfg.DiagnosticLog.Table
	if table == "" {
		return nil
	}
	// the table name comes from config, not user input, so it is interpolated
	query := fmt.Sprintf(
		"INSERT INTO %s (aid, pid, registration_stage, decision_stage, people_code_id, label, error_text, logged_at) VALUES (?, ?, ?, ?, ?, ?, ?, now())", table)
	return r.exec(ctx, query, aid, pid,
		status.RegistrationStage, status.DecisionStage, status.TargetID, status.Computed, status.ErrorMessage)
}

func (r *CampusRepository) UpdateApplication(ctx context.Context, app *transform.SQLApplication) error {
	demographics := args(app.Params,
		"PEOPLE_CODE_ID", "GENDER", "Ethnicity", "DemographicsEthnicity", "MARITALSTATUS",
		"Religion", "VETERAN", "PRIMARYCITIZENSHIP", "SECONDARYCITIZENSHIP", "VISA",
		"PRIMARY_LANGUAGE", "HOME_LANGUAGE", "GovernmentId", "RaceAfricanAmerican",
		"RaceAmericanIndian", "RaceAsian", "RaceNativeHawaiian", "RaceWhite",
		"IsInterestedInCampusHousing", "IsInterestedInFinancialAid", "SMSOptIn",
	)
	if err := r.exec(ctx,
		"SELECT custom.ps_upd_demographics(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		demographics...); err != nil {
		return errors.Wrap(err, "failed to update demographics")
	}

	academic := args(app.Params,
		"PEOPLE_CODE_ID", "aid", "pid", "ACADEMIC_YEAR", "ACADEMIC_TERM", "ACADEMIC_SESSION",
		"PROGRAM", "DEGREE", "CURRICULUM", "College", "Department", "Population",
		"Counselor", "Nontraditional", "COLLEGE_ATTEND", "Matriculated", "Extracurricular",
		"AppStatus", "AppStatusDate", "AppDecision", "AppDecisionDate", "AdmitDate",
		"CreateDateTime", "OrganizationId",
	)
	if err := r.exec(ctx,
		"SELECT custom.ps_upd_academic(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		academic...); err != nil {
		return errors.Wrap(err, "failed to update academic record")
	}
	return nil
}

func (r *CampusRepository) UpdateAcademicKey(ctx context.Context, app *transform.SQLApplication) error {
	keyArgs := args(app.Params,
		"PEOPLE_CODE_ID", "AcademicGUID", "ACADEMIC_YEAR", "ACADEMIC_TERM", "ACADEMIC_SESSION",
		"PROGRAM", "DEGREE", "CURRICULUM",
	)
	if err := r.exec(ctx, "SELECT custom.ps_upd_academic_key(?,?,?,?,?,?,?,?)", keyArgs...); err != nil {
		return errors.Wrap(err, "failed to update academic key")
	}
	return nil
}

func (r *CampusRepository) UpdateSMSOptIn(ctx context.Context, targetID string, optIn admitsync.Value) error {
	if err := r.exec(ctx, "SELECT custom.ps_upd_sms_opt_in(?,?)", targetID, arg(optIn)); err != nil {
		return errors.Wrap(err, "failed to update sms opt-in")
	}
	return nil
}

func (r *CampusRepository) InsertNote(ctx context.Context, targetID, office, noteType, text string) error {
	if err := r.exec(ctx, "SELECT custom.ps_ins_note(?,?,?,?)", targetID, office, noteType, text); err != nil {
		return errors.Wrap(err, "failed to insert note")
	}
	return nil
}

func (r *CampusRepository) UpdateUserDefined(ctx context.Context, targetID, field string, value admitsync.Value) error {
	if err := r.exec(ctx, "SELECT custom.ps_upd_user_defined(?,?,?)", targetID, field, arg(value)); err != nil {
		return errors.Wrapf(err, "failed to update user-defined field %s", field)
	}
	return nil
}

func (r *CampusRepository) UpsertEducation(ctx context.Context, targetID string, row admitsync.Row) (domain.EducationResult, error) {
	eduArgs := append([]any{targetID}, args(row,
		"GUID", "OrgIdentifier", "Degree", "Curriculum", "GPA", "GPAUnweighted",
		"GPAUnweightedScale", "GPAWeighted", "GPAWeightedScale", "StartDate", "EndDate",
		"Honors", "TranscriptDate", "ClassRank", "ClassSize", "TransferCredits",
		"FinAidAmount", "Quartile",
	)...)

	var result struct {
		OrgFound bool `gorm:"column:org_found"`
	}
	err := r.db.WithContext(ctx).
		Raw("SELECT org_found FROM custom.ps_upd_education(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)", eduArgs...).
		Take(&result).Error
	if err != nil && transient(err) {
		err = r.db.WithContext(ctx).
			Raw("SELECT org_found FROM custom.ps_upd_education(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)", eduArgs...).
			Take(&result).Error
	}
	if err != nil {
		return domain.EducationResult{}, errors.Wrap(err, "failed to upsert education")
	}
	guid, _ := row["GUID"].Str()
	return domain.EducationResult{GUID: guid, OrgFound: result.OrgFound}, nil
}

func (r *CampusRepository) UpsertTestScores(ctx context.Context, targetID string, row admitsync.Row) error {
	// scores ride as one jsonb argument; the procedure unpacks the groups
	payload, err := admitsync.MarshalRow(row)
	if err != nil {
		return errors.Wrap(err, "failed to encode test scores")
	}
	if err := r.exec(ctx, "SELECT custom.ps_upd_test_scores(?,?::jsonb)", targetID, payload); err != nil {
		return errors.Wrap(err, "failed to upsert test scores")
	}
	return nil
}

func (r *CampusRepository) UpsertStop(ctx context.Context, targetID string, stop transform.Stop) error {
	if err := r.exec(ctx, "SELECT custom.ps_upd_stop(?,?,?,?,?,?)",
		targetID, stop.Code, arg(stop.Date), arg(stop.Cleared), arg(stop.ClearedDate), arg(stop.Comments)); err != nil {
		return errors.Wrapf(err, "failed to upsert stop %s", stop.Code)
	}
	return nil
}

func (r *CampusRepository) UpsertScholarship(ctx context.Context, targetID string, s transform.Scholarship) error {
	if r.cfg.ValidateScholarshipLevels {
		if level, ok := s.Level.Str(); ok {
			known, err := r.scholarshipLevelKnown(ctx, level)
			if err != nil {
				return err
			}
			if !known {
				return domain.FieldError{Field: "Scholarships.Level", Value: level, Reason: "unknown scholarship level"}
			}
		}
	}
	if err := r.exec(ctx, "SELECT custom.ps_upd_scholarship(?,?,?,?,?,?,?,?,?,?,?)",
		targetID, s.Year, s.Term, arg(s.Scholarship), arg(s.Department), arg(s.Level),
		arg(s.Status), arg(s.StatusDate), arg(s.AppliedAmount), arg(s.AwardedAmount), arg(s.Notes)); err != nil {
		return errors.Wrap(err, "failed to upsert scholarship")
	}
	return nil
}

func (r *CampusRepository) scholarshipLevelKnown(ctx context.Context, level string) (bool, error) {
	key := "scholarship-level:" + level
	if cached, ok := r.cache.Get(key); ok {
		return cached.(bool), nil
	}
	var known bool
	err := r.db.WithContext(ctx).
		Raw("SELECT custom.ps_sel_scholarship_level_exists(?)", level).
		Take(&known).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check scholarship level")
	}
	r.cache.SetDefault(key, known)
	return known, nil
}

func (r *CampusRepository) UpsertAssociation(ctx context.Context, targetID string, a transform.Association) error {
	if err := r.exec(ctx, "SELECT custom.ps_upd_association(?,?,?,?,?,?)",
		targetID, a.Year, a.Term, a.Session, arg(a.Association), arg(a.OfficeHeld)); err != nil {
		return errors.Wrap(err, "failed to upsert association")
	}
	return nil
}

func (r *CampusRepository) UpsertAction(ctx context.Context, targetID string, action domain.ScheduledAction) error {
	if err := r.exec(ctx, "SELECT custom.ps_upd_action_schedule(?,?,?,?,?,?)",
		targetID, action.ActionID, action.Code,
		arg(action.ScheduledDate), arg(action.Completed), arg(action.CompletedDate)); err != nil {
		return errors.Wrapf(err, "failed to upsert action %s", action.Code)
	}
	return nil
}

func (r *CampusRepository) CleanupActions(ctx context.Context, targetID string, codes []string, keep []string) error {
	if err := r.exec(ctx, "SELECT custom.ps_del_action_schedule_orphans(?,?,?)",
		targetID, strings.Join(codes, ","), strings.Join(keep, ",")); err != nil {
		return errors.Wrap(err, "failed to clean up scheduled actions")
	}
	return nil
}

// GetActionDefinition resolves one action code against the target system's
// catalog. The catalog changes rarely, so hits are cached for the run.
func (r *CampusRepository) GetActionDefinition(ctx context.Context, code string) (domain.ActionDefinition, error) {
	key := "action:" + code
	if cached, ok := r.cache.Get(key); ok {
		return cached.(domain.ActionDefinition), nil
	}

	var row struct {
		Code   string `gorm:"column:action_id"`
		Name   string `gorm:"column:action_name"`
		Office string `gorm:"column:office"`
	}
	err := r.db.WithContext(ctx).
		Raw("SELECT action_id, action_name, office FROM custom.ps_sel_action_definition(?)", code).
		Take(&row).Error
	if err != nil {
		return domain.ActionDefinition{}, errors.Wrapf(err, "action code %s not in catalog", code)
	}

	def := domain.ActionDefinition{Code: row.Code, Name: row.Name, Office: row.Office}
	r.cache.SetDefault(key, def)
	return def, nil
}

// GetProfile reads the settled academic profile back out of the target
// system. The column set varies by version, so rows come back as a generic
// map instead of a struct.
func (r *CampusRepository) GetProfile(ctx context.Context, targetID, year, term, session string) (admitsync.Row, error) {
	rows, err := r.db.WithContext(ctx).
		Raw("SELECT * FROM custom.ps_sel_profile(?,?,?,?,?)",
			targetID, year, term, session, r.cfg.CampusEmailType).
		Rows()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read profile")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read profile columns")
	}

	profile := admitsync.Row{}
	if rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "failed to scan profile")
		}
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			profile[col] = admitsync.FromAny(values[i])
		}
		if r.cfg.ReadmitCode != "" {
			attend, _ := profile["COLLEGE_ATTEND"].Str()
			profile["Readmit"] = admitsync.Bool(attend == r.cfg.ReadmitCode)
		}
	}
	return profile, rows.Err()
}

func (r *CampusRepository) GetChecklist(ctx context.Context, targetID string) ([]domain.ChecklistItem, error) {
	var items []domain.ChecklistItem
	err := r.db.WithContext(ctx).
		Raw("SELECT code, status, date FROM custom.ps_sel_fa_checklist(?)", targetID).
		Scan(&items).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to read financial aid checklist")
	}
	return items, nil
}

func (r *CampusRepository) TermCatalog(ctx context.Context, minimumYear int) ([]domain.TermCatalogEntry, error) {
	var entries []domain.TermCatalogEntry
	err := r.db.WithContext(ctx).
		Raw("SELECT academic_year AS year, academic_term AS term, academic_session AS session FROM custom.ps_sel_term_catalog(?)", minimumYear).
		Scan(&entries).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to read term catalog")
	}
	return entries, nil
}

func (r *CampusRepository) ProgramCatalog(ctx context.Context) ([]domain.ProgramOfStudy, error) {
	var entries []domain.ProgramOfStudy
	err := r.db.WithContext(ctx).
		Raw("SELECT program, degree, curriculum FROM custom.ps_sel_program_of_study()").
		Scan(&entries).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to read program catalog")
	}
	return entries, nil
}
