package transform

import (
	"strconv"
	"strings"

	"github.com/admitsync/admitsync"
	"github.com/admitsync/admitsync/internal/domain"
)

// Stop is one registrar hold row.
type Stop struct {
	Code        string
	Date        admitsync.Value
	Cleared     admitsync.Value
	ClearedDate admitsync.Value
	Comments    admitsync.Value
}

// Scholarship is one award row, with the year/term split out of the combined
// source key.
type Scholarship struct {
	Year          string
	Term          string
	Scholarship   admitsync.Value
	Department    admitsync.Value
	Level         admitsync.Value
	Status        admitsync.Value
	StatusDate    admitsync.Value
	AppliedAmount admitsync.Value
	AwardedAmount admitsync.Value
	Notes         admitsync.Value
}

// Association is one activity membership row. Session is optional in the
// source key; a bare year means a year-long membership.
type Association struct {
	Year        string
	Term        string
	Session     string
	Association admitsync.Value
	OfficeHeld  admitsync.Value
}

// ParseStop validates one hold row. The code is the row's identity and must
// be present.
func ParseStop(aid string, row admitsync.Row) (Stop, error) {
	code, ok := row["StopCode"].Str()
	if !ok {
		return Stop{}, domain.FieldError{AID: aid, Field: "StopCode", Reason: "required field missing"}
	}
	cleared := row["Cleared"]
	if _, isBool := cleared.Bool(); !isBool && !cleared.IsNull() {
		cleared = parseLooseBool(cleared)
	}
	return Stop{
		Code:        code,
		Date:        row["StopDate"],
		Cleared:     cleared,
		ClearedDate: row["ClearedDate"],
		Comments:    row["Comments"],
	}, nil
}

// ParseScholarship validates one award row. The source year/term key is
// "year/term"; a trailing session component is tolerated and dropped because
// awards are keyed by year and term only.
func ParseScholarship(aid string, row admitsync.Row) (Scholarship, error) {
	yt, ok := row["YearTerm"].Str()
	if !ok {
		return Scholarship{}, domain.FieldError{AID: aid, Field: "Scholarships.YearTerm", Reason: "required field missing"}
	}
	parts := strings.Split(yt, "/")
	if len(parts) != 2 && len(parts) != 3 {
		return Scholarship{}, domain.FieldError{AID: aid, Field: "Scholarships.YearTerm", Value: yt, Reason: "expected year/term"}
	}
	return Scholarship{
		Year:          parts[0],
		Term:          parts[1],
		Scholarship:   row["Scholarship"],
		Department:    row["Department"],
		Level:         row["Level"],
		Status:        row["Status"],
		StatusDate:    row["StatusDate"],
		AppliedAmount: row["AppliedAmount"],
		AwardedAmount: row["AwardedAmount"],
		Notes:         row["Notes"],
	}, nil
}

// ParseAssociation validates one membership row. The source key is
// "year/term/session", "year/term", or a bare year.
func ParseAssociation(aid string, row admitsync.Row) (Association, error) {
	yt, ok := row["YearTerm"].Str()
	if !ok {
		return Association{}, domain.FieldError{AID: aid, Field: "Associations.YearTerm", Reason: "required field missing"}
	}
	parts := strings.Split(yt, "/")
	assoc := Association{
		Association: row["Association"],
		OfficeHeld:  row["OfficeHeld"],
	}
	switch len(parts) {
	case 3:
		assoc.Year, assoc.Term, assoc.Session = parts[0], parts[1], parts[2]
	case 2:
		assoc.Year, assoc.Term = parts[0], parts[1]
	case 1:
		year, err := strconv.Atoi(parts[0])
		if err != nil || year <= 1000 {
			return Association{}, domain.FieldError{AID: aid, Field: "Associations.YearTerm", Value: yt, Reason: "expected year/term/session, year/term, or a year"}
		}
		assoc.Year = parts[0]
	default:
		return Association{}, domain.FieldError{AID: aid, Field: "Associations.YearTerm", Value: yt, Reason: "expected year/term/session, year/term, or a year"}
	}
	return assoc, nil
}

func parseLooseBool(v admitsync.Value) admitsync.Value {
	s, ok := v.Str()
	if !ok {
		return admitsync.Null()
	}
	switch strings.ToLower(s) {
	case "true", "1", "y", "yes":
		return admitsync.Bool(true)
	case "false", "0", "n", "no":
		return admitsync.Bool(false)
	}
	return admitsync.Null()
}
