package normalize

import (
	"strconv"
	"strings"

	"github.com/admitsync/admitsync"
	"github.com/admitsync/admitsync/internal/config"
	"github.com/admitsync/admitsync/internal/domain"
)

// The upstream API omits GovernmentDateOfEntry instead of sending null, so a
// fixed epoch sentinel stands in. Placeholder for an upstream defect, not a
// business rule.
const dateOfEntrySentinel = "0001-01-01T00:00:00"

// ParseBool coerces a loosely-typed value into a tri-state boolean: known
// truthy and falsy tokens map to true/false, everything else (null included)
// stays null. Already-boolean values pass through.
func ParseBool(v admitsync.Value) admitsync.Value {
	if _, ok := v.Bool(); ok {
		return v
	}
	s, ok := v.Str()
	if !ok {
		return admitsync.Null()
	}
	switch strings.ToLower(s) {
	case "true", "1", "y", "yes":
		return admitsync.Bool(true)
	case "false", "0", "n", "no":
		return admitsync.Bool(false)
	default:
		return admitsync.Null()
	}
}

// Normalize supplies missing fields and corrects datatypes per the Field
// Registry, returning a new record. Pure: the input record is not modified.
// Normalizing an already-normalized record yields the same record.
func Normalize(rec *admitsync.Record, active config.UploadActive) (*admitsync.Record, error) {
	out := rec.Clone()
	aid := rec.AID()

	blankRecordToNull(out)

	supplyNull := map[string]bool{}
	boolFields := map[string]bool{}
	intFields := map[string]bool{}
	for name, spec := range admitsync.Fields {
		if spec.SupplyNull {
			supplyNull[name] = true
		}
		switch spec.Kind {
		case admitsync.KindBool:
			boolFields[name] = true
		case admitsync.KindInt:
			intFields[name] = true
		}
	}
	// Change-detection shadows follow the type of the field they shadow.
	for _, f := range active.FieldsString {
		supplyNull["compare_"+f] = true
	}
	for _, f := range active.FieldsBool {
		supplyNull["compare_"+f] = true
		boolFields["compare_"+f] = true
	}
	for _, f := range active.FieldsInt {
		supplyNull["compare_"+f] = true
		intFields["compare_"+f] = true
	}

	for name := range supplyNull {
		if !out.Has(name) {
			out.Set(name, admitsync.Null())
		}
	}

	for name := range boolFields {
		if out.Has(name) {
			out.Set(name, ParseBool(out.Get(name)))
		}
	}

	for name := range intFields {
		if !out.Has(name) {
			continue
		}
		v := out.Get(name)
		if v.IsNull() {
			continue
		}
		if _, ok := v.Int(); ok {
			continue
		}
		s, _ := v.Str()
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, domain.FieldError{AID: aid, Field: name, Value: s, Reason: "not an integer"}
		}
		out.Set(name, admitsync.Int(n))
	}

	// the school-match writeback compares this shadow against a boolean, so
	// the CRM's string form must coerce before the comparison
	for _, row := range out.Education {
		if v, ok := row["compare_org_found"]; ok {
			row["compare_org_found"] = ParseBool(v)
		}
	}

	if !out.Has("GovernmentDateOfEntry") || out.Get("GovernmentDateOfEntry").IsNull() {
		out.Set("GovernmentDateOfEntry", admitsync.String(dateOfEntrySentinel))
	}

	// The creation API still wants two program fields, so a curriculum
	// component folds into the degree.
	if cur, ok := out.Get("Curriculum").Str(); ok {
		if deg, ok := out.Get("Degree").Str(); ok {
			out.Set("Degree", admitsync.String(deg+"/"+cur))
		}
		out.Set("Curriculum", admitsync.Null())
	}

	out.Set("error_flag", admitsync.Bool(false))
	out.Set("error_message", admitsync.Null())

	return out, nil
}

// blankRecordToNull replaces every empty string in the record, including
// inside nested collections, with an explicit null.
func blankRecordToNull(rec *admitsync.Record) {
	for name, v := range rec.Fields {
		rec.Fields[name] = blankToNull(v)
	}
	for i := range rec.Addresses {
		a := &rec.Addresses[i]
		a.Type = blankToNull(a.Type)
		a.Line1 = blankToNull(a.Line1)
		a.Line2 = blankToNull(a.Line2)
		a.Line3 = blankToNull(a.Line3)
		a.Line4 = blankToNull(a.Line4)
		a.City = blankToNull(a.City)
		a.StateProvince = blankToNull(a.StateProvince)
		a.PostalCode = blankToNull(a.PostalCode)
		a.Country = blankToNull(a.Country)
	}
	for i := range rec.Phones {
		p := &rec.Phones[i]
		p.Type = blankToNull(p.Type)
		p.Country = blankToNull(p.Country)
		p.Number = blankToNull(p.Number)
	}
	for _, rows := range [][]admitsync.Row{rec.Education, rec.TestScores, rec.Stops, rec.Scholarships, rec.Associations} {
		for _, row := range rows {
			for k, v := range row {
				row[k] = blankToNull(v)
			}
		}
	}
}

func blankToNull(v admitsync.Value) admitsync.Value {
	if s, ok := v.Str(); ok && s == "" {
		return admitsync.Null()
	}
	return v
}
