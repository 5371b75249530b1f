package transform

import (
	"github.com/admitsync/admitsync"
	"github.com/admitsync/admitsync/internal/config"
	"github.com/admitsync/admitsync/internal/domain"
	"github.com/admitsync/admitsync/internal/mapping"
)

// SQLApplication is one applicant shaped for the stored-procedure surface:
// a flat parameter row plus the typed and registry-driven sub-collections.
type SQLApplication struct {
	Params       admitsync.Row
	Education    []admitsync.Row
	TestScores   []admitsync.Row
	Stops        []Stop
	Scholarships []Scholarship
	Associations []Association
}

// ToSQL maps a normalized record into the procedure parameter set, resolving
// every code-valued field through the mapping table. Null source values pass
// through as null without a lookup.
func ToSQL(rec *admitsync.Record, table *mapping.Table, campus config.Campus) (*SQLApplication, error) {
	aid := rec.AID()
	params := admitsync.Row{}

	for name, spec := range admitsync.Fields {
		if spec.SQLVerbatim && rec.Has(name) {
			params[name] = rec.Get(name)
		}
	}
	for _, note := range campus.Notes {
		if rec.Has(note.SlateField) {
			params[note.SlateField] = rec.Get(note.SlateField)
		}
	}
	for _, udf := range campus.UserDefinedFields {
		if rec.Has(udf.SlateField) {
			params[udf.SlateField] = rec.Get(udf.SlateField)
		}
	}

	gender, err := mapGender(aid, rec.Get("Gender"))
	if err != nil {
		return nil, err
	}
	params["GENDER"] = gender

	yt, ok := rec.Get("YearTerm").Str()
	if !ok {
		return nil, domain.FieldError{AID: aid, Field: "YearTerm", Reason: "required field missing"}
	}
	for field, param := range map[string]string{
		"PCYearCodeValue":    "ACADEMIC_YEAR",
		"PCTermCodeValue":    "ACADEMIC_TERM",
		"PCSessionCodeValue": "ACADEMIC_SESSION",
	} {
		target, err := table.LookupField("AcademicTerm", field, yt)
		if err != nil {
			return nil, err
		}
		params[param] = admitsync.String(target)
	}

	if program, ok := rec.Get("Program").Str(); ok {
		target, err := table.Lookup("AcademicLevel", program)
		if err != nil {
			return nil, err
		}
		params["PROGRAM"] = admitsync.String(target)
	} else {
		params["PROGRAM"] = admitsync.Null()
	}

	if degree, ok := rec.Get("Degree").Str(); ok {
		for field, param := range map[string]string{
			"PCDegreeCodeValue":     "DEGREE",
			"PCCurriculumCodeValue": "CURRICULUM",
		} {
			target, err := table.LookupField("AcademicProgram", field, degree)
			if err != nil {
				return nil, err
			}
			params[param] = admitsync.String(target)
		}
	} else {
		params["DEGREE"] = admitsync.Null()
		params["CURRICULUM"] = admitsync.Null()
	}

	singles := []struct {
		source, domain, param string
	}{
		{"PrimaryCitizenship", "CitizenshipStatus", "PRIMARYCITIZENSHIP"},
		{"SecondaryCitizenship", "CitizenshipStatus", "SECONDARYCITIZENSHIP"},
		{"CollegeAttendStatus", "CollegeAttend", "COLLEGE_ATTEND"},
		{"Visa", "Visa", "VISA"},
		{"Veteran", "Veteran", "VETERAN"},
		{"MaritalStatus", "MaritalStatus", "MARITALSTATUS"},
		{"Religion", "Religion", "Religion"},
		{"PrimaryLanguage", "Language", "PRIMARY_LANGUAGE"},
	}
	for _, s := range singles {
		v, err := lookupSingle(table, s.domain, rec.Get(s.source))
		if err != nil {
			return nil, err
		}
		params[s.param] = v
	}
	if rec.Has("HomeLanguage") {
		v, err := lookupSingle(table, "Language", rec.Get("HomeLanguage"))
		if err != nil {
			return nil, err
		}
		params["HOME_LANGUAGE"] = v
	}
	if rec.Has("Campus") {
		v, err := lookupSingle(table, "Campus", rec.Get("Campus"))
		if err != nil {
			return nil, err
		}
		params["OrganizationId"] = v
	}

	app := &SQLApplication{
		Params:     params,
		Education:  subRows(rec.Education, admitsync.EducationFields),
		TestScores: subRows(rec.TestScores, admitsync.TestScoreFields),
	}

	for _, row := range rec.Stops {
		stop, err := ParseStop(aid, row)
		if err != nil {
			return nil, err
		}
		app.Stops = append(app.Stops, stop)
	}
	for _, row := range rec.Scholarships {
		sch, err := ParseScholarship(aid, row)
		if err != nil {
			return nil, err
		}
		app.Scholarships = append(app.Scholarships, sch)
	}
	for _, row := range rec.Associations {
		assoc, err := ParseAssociation(aid, row)
		if err != nil {
			return nil, err
		}
		app.Associations = append(app.Associations, assoc)
	}

	return app, nil
}

// mapGender converts the creation API's gender encoding into the relational
// one. Absence is a valid input and maps to unknown.
func mapGender(aid string, v admitsync.Value) (admitsync.Value, error) {
	if v.IsNull() {
		return admitsync.Int(3), nil
	}
	if n, ok := v.Int(); ok {
		switch n {
		case 0:
			return admitsync.Int(1), nil
		case 1:
			return admitsync.Int(2), nil
		case 2:
			return admitsync.Int(3), nil
		}
	}
	return admitsync.Null(), domain.FieldError{AID: aid, Field: "Gender", Value: v.Text(), Reason: "not a recognized gender code"}
}

func lookupSingle(table *mapping.Table, domainName string, v admitsync.Value) (admitsync.Value, error) {
	if v.IsNull() {
		return admitsync.Null(), nil
	}
	target, err := table.Lookup(domainName, v.Text())
	if err != nil {
		return admitsync.Null(), err
	}
	return admitsync.String(target), nil
}

// subRows clones registry-driven sub-collection rows, supplying nulls for
// declared-nullable fields the CRM omitted.
func subRows(rows []admitsync.Row, spec map[string]admitsync.SubFieldSpec) []admitsync.Row {
	if rows == nil {
		return nil
	}
	out := make([]admitsync.Row, len(rows))
	for i, row := range rows {
		r := row.Clone()
		for name, fs := range spec {
			if fs.SupplyNull {
				if _, ok := r[name]; !ok {
					r[name] = admitsync.Null()
				}
			}
		}
		out[i] = r
	}
	return out
}
