package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/admitsync/admitsync"
	"github.com/admitsync/admitsync/internal/config"
	"github.com/admitsync/admitsync/internal/domain"
	"github.com/admitsync/admitsync/internal/mapping"
	"github.com/admitsync/admitsync/internal/transform"
)

const testMappingDoc = `<?xml version="1.0" encoding="UTF-8"?>
<Mappings>
  <AcademicTerm NumberOfPowerCampusFieldsMapped="3" PCFirstField="Year" PCSecondField="Term" PCThirdField="Session">
    <Row RCCodeValue="2026/FALL" PCYearCodeValue="2026" PCTermCodeValue="FALL" PCSessionCodeValue="01" />
  </AcademicTerm>
  <AcademicLevel NumberOfPowerCampusFieldsMapped="1">
    <Row RCCodeValue="UNDERGRAD" PCCodeValue="UG" />
  </AcademicLevel>
  <AcademicProgram NumberOfPowerCampusFieldsMapped="2" PCFirstField="Degree" PCSecondField="Curriculum">
    <Row RCCodeValue="BA/HIST" PCDegreeCodeValue="BACH" PCCurriculumCodeValue="HIST" />
  </AcademicProgram>
</Mappings>
`

type mockSlate struct {
	apps        []map[string]any
	queryErr    error
	actions     []domain.ScheduledAction
	actionCalls [][]string
	posted      map[string][]map[string]any
	checklist   string
}

func (m *mockSlate) QueryApplications(ctx context.Context, pid string) ([]map[string]any, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if pid == "" {
		return m.apps, nil
	}
	var out []map[string]any
	for _, app := range m.apps {
		if app["pid"] == pid {
			out = append(out, app)
		}
	}
	return out, nil
}

func (m *mockSlate) GetScheduledActions(ctx context.Context, aids []string) ([]domain.ScheduledAction, error) {
	m.actionCalls = append(m.actionCalls, aids)
	var out []domain.ScheduledAction
	want := map[string]bool{}
	for _, aid := range aids {
		want[aid] = true
	}
	for _, a := range m.actions {
		if want[a.AID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockSlate) PostRows(ctx context.Context, ep config.Endpoint, rows []map[string]any) error {
	if m.posted == nil {
		m.posted = map[string][]map[string]any{}
	}
	m.posted[ep.URL] = append(m.posted[ep.URL], rows...)
	return nil
}

func (m *mockSlate) PostChecklist(ctx context.Context, ep config.Endpoint, body string) error {
	m.checklist = body
	return nil
}

type mockGateway struct {
	created []map[string]any
	err     error
}

func (m *mockGateway) CreateApplication(ctx context.Context, payload map[string]any) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.created = append(m.created, payload)
	return "P000000001", nil
}

type mockRepo struct {
	statusQueue    map[string][]domain.ApplicationStatus
	defaultStatus  *domain.ApplicationStatus
	actionDefs     map[string]domain.ActionDefinition
	profile        admitsync.Row
	profileMissing bool

	updated []string
	calls   []string
	logged  []domain.ApplicationStatus
}

func activeStatus(targetID string) domain.ApplicationStatus {
	reg, dec := int64(0), int64(2)
	return domain.ApplicationStatus{RegistrationStage: &reg, DecisionStage: &dec, TargetID: &targetID}
}

func (m *mockRepo) GetStatus(ctx context.Context, aid string) (domain.ApplicationStatus, error) {
	if q := m.statusQueue[aid]; len(q) > 0 {
		status := q[0]
		m.statusQueue[aid] = q[1:]
		return status, nil
	}
	if m.defaultStatus != nil {
		return *m.defaultStatus, nil
	}
	return domain.ApplicationStatus{}, nil
}

func (m *mockRepo) LogClassification(ctx context.Context, aid, pid string, status domain.ApplicationStatus) error {
	m.logged = append(m.logged, status)
	return nil
}

func (m *mockRepo) UpdateApplication(ctx context.Context, app *transform.SQLApplication) error {
	m.updated = append(m.updated, app.Params["aid"].Text())
	m.calls = append(m.calls, "update "+app.Params["aid"].Text())
	return nil
}

func (m *mockRepo) UpdateAcademicKey(ctx context.Context, app *transform.SQLApplication) error {
	m.calls = append(m.calls, "academicKey "+app.Params["aid"].Text())
	return nil
}

func (m *mockRepo) UpdateSMSOptIn(ctx context.Context, targetID string, optIn admitsync.Value) error {
	m.calls = append(m.calls, "smsOptIn "+targetID)
	return nil
}

func (m *mockRepo) InsertNote(ctx context.Context, targetID, office, noteType, text string) error {
	m.calls = append(m.calls, "note "+office+"/"+noteType)
	return nil
}

func (m *mockRepo) UpdateUserDefined(ctx context.Context, targetID, field string, value admitsync.Value) error {
	m.calls = append(m.calls, "udf "+field)
	return nil
}

func (m *mockRepo) UpsertEducation(ctx context.Context, targetID string, row admitsync.Row) (domain.EducationResult, error) {
	guid, _ := row["GUID"].Str()
	m.calls = append(m.calls, "education "+guid)
	return domain.EducationResult{GUID: guid, OrgFound: true}, nil
}

func (m *mockRepo) UpsertTestScores(ctx context.Context, targetID string, row admitsync.Row) error {
	m.calls = append(m.calls, "testScores")
	return nil
}

func (m *mockRepo) UpsertStop(ctx context.Context, targetID string, stop transform.Stop) error {
	m.calls = append(m.calls, "stop "+stop.Code)
	return nil
}

func (m *mockRepo) UpsertScholarship(ctx context.Context, targetID string, s transform.Scholarship) error {
	m.calls = append(m.calls, "scholarship")
	return nil
}

func (m *mockRepo) UpsertAssociation(ctx context.Context, targetID string, a transform.Association) error {
	m.calls = append(m.calls, "association")
	return nil
}

func (m *mockRepo) UpsertAction(ctx context.Context, targetID string, action domain.ScheduledAction) error {
	m.calls = append(m.calls, "upsertAction "+action.AID+" "+action.Code)
	return nil
}

func (m *mockRepo) CleanupActions(ctx context.Context, targetID string, codes []string, keep []string) error {
	m.calls = append(m.calls, "cleanupActions "+targetID)
	return nil
}

func (m *mockRepo) GetActionDefinition(ctx context.Context, code string) (domain.ActionDefinition, error) {
	if def, ok := m.actionDefs[code]; ok {
		return def, nil
	}
	return domain.ActionDefinition{}, errors.New("no such action code")
}

func (m *mockRepo) GetProfile(ctx context.Context, targetID, year, term, session string) (admitsync.Row, error) {
	if m.profileMissing {
		return admitsync.Row{}, nil
	}
	if m.profile != nil {
		return m.profile, nil
	}
	return admitsync.Row{"ACADEMIC_YEAR": admitsync.String(year)}, nil
}

func (m *mockRepo) GetChecklist(ctx context.Context, targetID string) ([]domain.ChecklistItem, error) {
	return []domain.ChecklistItem{{Code: "FAFSA", Status: "R", Date: "2026-02-01"}}, nil
}

func (m *mockRepo) TermCatalog(ctx context.Context, minimumYear int) ([]domain.TermCatalogEntry, error) {
	return nil, nil
}

func (m *mockRepo) ProgramCatalog(ctx context.Context) ([]domain.ProgramOfStudy, error) {
	return nil, nil
}

func testConfig(t *testing.T) (config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{}
	cfg.Sync.ErrorPolicy = "continue"
	cfg.Sync.Defaults = config.Defaults{AddressCountry: "US", PhoneCountry: "US", PhoneType: 1}
	cfg.Slate.UploadActive.URL = "https://crm.example/upload/active"
	cfg.Slate.UploadActive.FieldsString = []string{"ComputedStatus", "PEOPLE_CODE_ID"}
	cfg.Slate.UploadPassive.URL = "https://crm.example/upload/passive"
	cfg.Slate.UploadPassive.Fields = []string{"PEOPLE_CODE_ID"}
	cfg.Slate.UploadSchools.URL = "https://crm.example/upload/schools"
	cfg.Slate.UploadChecklist.URL = "https://crm.example/upload/checklist"
	cfg.Campus.MappingFileLocation = filepath.Join(dir, "mapping.xml")
	return cfg, filepath.Join(dir, "config.yml")
}

func testTable(t *testing.T) *mapping.Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.xml")
	if err := os.WriteFile(path, []byte(testMappingDoc), 0644); err != nil {
		t.Fatalf("write mapping fixture: %v", err)
	}
	table, err := mapping.Load(path)
	if err != nil {
		t.Fatalf("load mapping fixture: %v", err)
	}
	return table
}

func testApp(aid, pid string) map[string]any {
	return map[string]any{
		"aid":        aid,
		"pid":        pid,
		"YearTerm":   "2026/FALL",
		"Program":    "UNDERGRAD",
		"Degree":     "BA",
		"Curriculum": "HIST",
		"FirstName":  "Ada",
		"LastName":   "Lovelace",
	}
}

func newTestEngine(t *testing.T, cfg config.Config, cfgPath string, slate *mockSlate, gw *mockGateway, repo *mockRepo) *SyncEngine {
	t.Helper()
	return NewSyncEngine(cfg, cfgPath, testTable(t), slate, gw, repo, zap.NewNop())
}

func TestSyncCreatesUnknownApplication(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	slate := &mockSlate{apps: []map[string]any{testApp("app-1", "p-1")}}
	gw := &mockGateway{}
	repo := &mockRepo{
		statusQueue: map[string][]domain.ApplicationStatus{
			"app-1": {{}, activeStatus("P000000001")},
		},
	}
	e := newTestEngine(t, cfg, cfgPath, slate, gw, repo)

	res, err := e.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if res.Created != 1 || res.Resubmitted != 0 || res.Updated != 1 || res.Errors != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(gw.created) != 1 {
		t.Fatalf("expected one creation call, got %d", len(gw.created))
	}
	if len(repo.updated) != 1 || repo.updated[0] != "app-1" {
		t.Fatalf("expected update for app-1, got %v", repo.updated)
	}
}

func TestSyncResubmitsStalledApplication(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	slate := &mockSlate{apps: []map[string]any{testApp("app-1", "p-1")}}
	gw := &mockGateway{}
	reg := int64(1)
	repo := &mockRepo{
		statusQueue: map[string][]domain.ApplicationStatus{
			"app-1": {
				{RegistrationStage: &reg},
				activeStatus("P000000001"),
			},
		},
	}
	e := newTestEngine(t, cfg, cfgPath, slate, gw, repo)

	res, err := e.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if res.Created != 0 || res.Resubmitted != 1 || res.Updated != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSyncSkipsDeclined(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	slate := &mockSlate{apps: []map[string]any{testApp("app-1", "p-1")}}
	gw := &mockGateway{}
	reg, dec := int64(3), int64(3)
	repo := &mockRepo{
		statusQueue: map[string][]domain.ApplicationStatus{
			"app-1": {{RegistrationStage: &reg, DecisionStage: &dec}},
		},
	}
	e := newTestEngine(t, cfg, cfgPath, slate, gw, repo)

	res, err := e.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if res.Updated != 0 || len(gw.created) != 0 {
		t.Fatalf("declined application must not be created or updated: %+v", res)
	}
}

func TestSyncOneNoApplications(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	slate := &mockSlate{}
	e := newTestEngine(t, cfg, cfgPath, slate, &mockGateway{}, &mockRepo{})

	_, err := e.SyncOne(context.Background(), "p-404")
	if !errors.Is(err, domain.ErrNoApplications) {
		t.Fatalf("expected ErrNoApplications, got %v", err)
	}
}

func TestSyncErrorPolicyContinue(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	bad := testApp("app-bad", "p-1")
	bad["Ethnicity"] = "not-a-number"
	slate := &mockSlate{apps: []map[string]any{bad, testApp("app-2", "p-2")}}
	gw := &mockGateway{}
	repo := &mockRepo{defaultStatus: func() *domain.ApplicationStatus { s := activeStatus("P000000002"); return &s }()}
	e := newTestEngine(t, cfg, cfgPath, slate, gw, repo)

	res, err := e.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("continue policy must not abort: %v", err)
	}
	if res.Errors != 1 || res.Updated != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	rows := slate.posted["https://crm.example/upload/active"]
	var foundError bool
	for _, row := range rows {
		if row["aid"].(admitsync.Value).Text() == "app-bad" {
			if flagged, _ := row["error_flag"].(admitsync.Value).Bool(); flagged {
				foundError = true
			}
		}
	}
	if !foundError {
		t.Fatalf("errored applicant missing from writeback: %v", rows)
	}
}

func TestSyncErrorPolicyAbort(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	cfg.Sync.ErrorPolicy = "abort"
	bad := testApp("app-bad", "p-1")
	bad["Ethnicity"] = "not-a-number"
	slate := &mockSlate{apps: []map[string]any{bad}}
	e := newTestEngine(t, cfg, cfgPath, slate, &mockGateway{}, &mockRepo{})

	if _, err := e.SyncAll(context.Background()); !errors.Is(err, domain.ErrField) {
		t.Fatalf("abort policy should surface the field error, got %v", err)
	}
}

func TestSyncActionBatching(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	cfg.Sync.ScheduledActions.Enabled = true
	cfg.Sync.ScheduledActions.AdmissionsActionCodes = []string{"DEPOSIT"}

	var apps []map[string]any
	for i := 0; i < 100; i++ {
		apps = append(apps, testApp(fmt.Sprintf("app-%03d", i), fmt.Sprintf("p-%03d", i)))
	}
	slate := &mockSlate{apps: apps}
	repo := &mockRepo{defaultStatus: func() *domain.ApplicationStatus { s := activeStatus("P000000001"); return &s }()}
	e := newTestEngine(t, cfg, cfgPath, slate, &mockGateway{}, repo)

	if _, err := e.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	if len(slate.actionCalls) != 3 {
		t.Fatalf("expected 3 batches for 100 applicants, got %d", len(slate.actionCalls))
	}
	seen := map[string]bool{}
	for _, batch := range slate.actionCalls {
		if len(batch) > actionBatchSize {
			t.Fatalf("batch exceeds ceiling: %d", len(batch))
		}
		for _, aid := range batch {
			if seen[aid] {
				t.Fatalf("aid %s fetched twice", aid)
			}
			seen[aid] = true
		}
	}
	if len(seen) != 100 {
		t.Fatalf("batches cover %d applicants, want 100", len(seen))
	}
}

func TestSyncActionCleanupFollowsUpserts(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	cfg.Sync.ScheduledActions.Enabled = true
	cfg.Sync.ScheduledActions.AdmissionsActionCodes = []string{"DEPOSIT", "TRANSCRIPT"}

	slate := &mockSlate{
		apps: []map[string]any{testApp("app-1", "p-1")},
		actions: []domain.ScheduledAction{
			{AID: "app-1", ActionID: "act-1", Code: "DEPOSIT"},
			{AID: "app-1", ActionID: "act-2", Code: "TRANSCRIPT"},
			{AID: "app-1", ActionID: "act-3", Code: "UNMANAGED"},
		},
	}
	repo := &mockRepo{defaultStatus: func() *domain.ApplicationStatus { s := activeStatus("P000000001"); return &s }()}
	e := newTestEngine(t, cfg, cfgPath, slate, &mockGateway{}, repo)

	if _, err := e.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	var upserts []int
	cleanup := -1
	for i, call := range repo.calls {
		if strings.HasPrefix(call, "upsertAction") {
			upserts = append(upserts, i)
		}
		if strings.HasPrefix(call, "cleanupActions") {
			cleanup = i
		}
	}
	if len(upserts) != 2 {
		t.Fatalf("expected 2 managed upserts, got %d (%v)", len(upserts), repo.calls)
	}
	if cleanup < 0 {
		t.Fatalf("cleanup never ran: %v", repo.calls)
	}
	for _, i := range upserts {
		if i > cleanup {
			t.Fatalf("upsert after cleanup: %v", repo.calls)
		}
	}
}

func TestLearnActionCodes(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	cfg.Sync.ScheduledActions.Enabled = true
	cfg.Sync.ScheduledActions.AdmissionsActionCodes = []string{"DEPOSIT"}
	cfg.Sync.ScheduledActions.AutolearnActionCodes = true

	slate := &mockSlate{
		apps: []map[string]any{testApp("app-1", "p-1")},
		actions: []domain.ScheduledAction{
			{AID: "app-1", ActionID: "act-1", Code: "INTERVIEW"},
			{AID: "app-1", ActionID: "act-2", Code: "BOGUS"},
		},
	}
	repo := &mockRepo{
		defaultStatus: func() *domain.ApplicationStatus { s := activeStatus("P000000001"); return &s }(),
		actionDefs: map[string]domain.ActionDefinition{
			"INTERVIEW": {Code: "INTERVIEW", Name: "Admissions Interview", Office: "ADMIS"},
		},
	}
	e := newTestEngine(t, cfg, cfgPath, slate, &mockGateway{}, repo)

	if _, err := e.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	saved, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load saved config: %v", err)
	}
	codes := saved.Sync.ScheduledActions.AdmissionsActionCodes
	if len(codes) != 2 || codes[0] != "DEPOSIT" || codes[1] != "INTERVIEW" {
		t.Fatalf("saved codes = %v, want [DEPOSIT INTERVIEW]", codes)
	}
	for _, call := range repo.calls {
		if call == "upsertAction app-1 BOGUS" {
			t.Fatalf("catalog-rejected code must not be synced")
		}
	}
}

func TestActiveUploadChangeDetection(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	e := newTestEngine(t, cfg, cfgPath, &mockSlate{}, &mockGateway{}, &mockRepo{})

	unchanged := admitsync.NewRecord()
	unchanged.Set("aid", admitsync.String("app-1"))
	unchanged.Set("ComputedStatus", admitsync.String("Active"))
	unchanged.Set("compare_ComputedStatus", admitsync.String("Active"))
	unchanged.Set("PEOPLE_CODE_ID", admitsync.String("P000000001"))
	unchanged.Set("compare_PEOPLE_CODE_ID", admitsync.String("P000000001"))
	unchanged.Set("error_flag", admitsync.Bool(false))
	unchanged.Set("error_message", admitsync.Null())

	moved := unchanged.Clone()
	moved.Set("aid", admitsync.String("app-2"))
	moved.Set("compare_ComputedStatus", admitsync.String("Pending"))

	duplicate := moved.Clone()

	rows := e.activeRows([]*admitsync.Record{unchanged, moved, duplicate})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row (no-diff dropped, duplicate collapsed), got %d", len(rows))
	}
	if rows[0]["aid"].(admitsync.Value).Text() != "app-2" {
		t.Fatalf("wrong row survived: %v", rows[0])
	}
}

func TestSyncLeavesUnknownUnlabeled(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	cfg.Campus.DiagnosticLog.Enabled = true
	cfg.Campus.DiagnosticLog.Table = "custom.sync_log"
	slate := &mockSlate{apps: []map[string]any{testApp("app-1", "p-1")}}
	repo := &mockRepo{
		// unknown before creation and still unknown on the rescan
		statusQueue: map[string][]domain.ApplicationStatus{
			"app-1": {{}, {}},
		},
	}
	e := newTestEngine(t, cfg, cfgPath, slate, &mockGateway{}, repo)

	res, err := e.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if res.Created != 1 || res.Updated != 0 || res.Errors != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(repo.logged) != 0 {
		t.Fatalf("unknown application must not be classified: %+v", repo.logged)
	}
	for _, row := range slate.posted["https://crm.example/upload/active"] {
		if s, _ := row["ComputedStatus"].(admitsync.Value).Str(); strings.HasPrefix(s, "Unrecognized") {
			t.Fatalf("unknown application must not report a label: %v", row)
		}
	}
}

func TestClassificationLogCarriesRawCodes(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	cfg.Campus.DiagnosticLog.Enabled = true
	cfg.Campus.DiagnosticLog.Table = "custom.sync_log"
	slate := &mockSlate{apps: []map[string]any{testApp("app-1", "p-1")}}
	repo := &mockRepo{defaultStatus: func() *domain.ApplicationStatus { s := activeStatus("P000000001"); return &s }()}
	e := newTestEngine(t, cfg, cfgPath, slate, &mockGateway{}, repo)

	if _, err := e.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	if len(repo.logged) != 1 {
		t.Fatalf("expected one diagnostic row, got %d", len(repo.logged))
	}
	st := repo.logged[0]
	if st.RegistrationStage == nil || *st.RegistrationStage != 0 {
		t.Errorf("diagnostic row lost the registration stage: %+v", st)
	}
	if st.DecisionStage == nil || *st.DecisionStage != 2 {
		t.Errorf("diagnostic row lost the decision stage: %+v", st)
	}
	if st.Computed == nil || *st.Computed != domain.StatusActive {
		t.Errorf("diagnostic row lost the computed label: %+v", st)
	}
}

func TestSchoolsWritebackOnlyOnChange(t *testing.T) {
	run := func(t *testing.T, shadow string) []map[string]any {
		t.Helper()
		cfg, cfgPath := testConfig(t)
		app := testApp("app-1", "p-1")
		app["Education"] = []any{map[string]any{
			"GUID":              "edu-1",
			"OrgIdentifier":     "123456",
			"compare_org_found": shadow,
		}}
		slate := &mockSlate{apps: []map[string]any{app}}
		repo := &mockRepo{defaultStatus: func() *domain.ApplicationStatus { s := activeStatus("P000000001"); return &s }()}
		e := newTestEngine(t, cfg, cfgPath, slate, &mockGateway{}, repo)
		if _, err := e.SyncAll(context.Background()); err != nil {
			t.Fatalf("SyncAll failed: %v", err)
		}
		return slate.posted["https://crm.example/upload/schools"]
	}

	// the repo reports org_found=true; a "true" shadow means nothing moved
	if rows := run(t, "true"); len(rows) != 0 {
		t.Fatalf("unchanged school match must not repost, got %v", rows)
	}
	rows := run(t, "false")
	if len(rows) != 1 {
		t.Fatalf("changed school match should post one row, got %v", rows)
	}
	if rows[0]["GUID"] != "edu-1" || rows[0]["OrgFound"] != true {
		t.Fatalf("unexpected school row: %v", rows[0])
	}
}

func TestPassiveUploadDedupe(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	e := newTestEngine(t, cfg, cfgPath, &mockSlate{}, &mockGateway{}, &mockRepo{})

	rec := admitsync.NewRecord()
	rec.Set("aid", admitsync.String("app-1"))
	rec.Set("PEOPLE_CODE_ID", admitsync.String("P000000001"))
	duplicate := rec.Clone()

	other := admitsync.NewRecord()
	other.Set("aid", admitsync.String("app-2"))
	other.Set("PEOPLE_CODE_ID", admitsync.String("P000000002"))

	rows := e.passiveRows([]*admitsync.Record{rec, duplicate, other})
	if len(rows) != 2 {
		t.Fatalf("expected duplicate collapsed to 2 rows, got %d", len(rows))
	}
}

func TestMissingProfileFlagsApplicant(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	slate := &mockSlate{apps: []map[string]any{testApp("app-1", "p-1")}}
	repo := &mockRepo{
		defaultStatus:  func() *domain.ApplicationStatus { s := activeStatus("P000000001"); return &s }(),
		profileMissing: true,
	}
	e := newTestEngine(t, cfg, cfgPath, slate, &mockGateway{}, repo)

	res, err := e.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("continue policy must not abort: %v", err)
	}
	if res.Errors != 1 || res.Updated != 0 {
		t.Fatalf("missing profile should error the applicant: %+v", res)
	}

	rows := slate.posted["https://crm.example/upload/active"]
	var flagged bool
	for _, row := range rows {
		if row["aid"].(admitsync.Value).Text() != "app-1" {
			continue
		}
		if b, _ := row["error_flag"].(admitsync.Value).Bool(); b {
			msg, _ := row["error_message"].(admitsync.Value).Str()
			if !strings.Contains(msg, "no academic record") {
				t.Fatalf("error message should name the missing record: %q", msg)
			}
			flagged = true
		}
	}
	if !flagged {
		t.Fatalf("missing profile never surfaced to the CRM: %v", rows)
	}
}

func TestUploadChecklistBody(t *testing.T) {
	cfg, cfgPath := testConfig(t)
	cfg.Sync.FAChecklist.Enabled = true
	slate := &mockSlate{apps: []map[string]any{testApp("app-1", "p-1")}}
	repo := &mockRepo{defaultStatus: func() *domain.ApplicationStatus { s := activeStatus("P000000001"); return &s }()}
	e := newTestEngine(t, cfg, cfgPath, slate, &mockGateway{}, repo)

	if _, err := e.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	want := "AppID\tCode\tStatus\tDate\napp-1\tFAFSA\tR\t2026-02-01\n"
	if slate.checklist != want {
		t.Fatalf("checklist body = %q, want %q", slate.checklist, want)
	}
}
