// Package transform maps a normalized applicant record into the two target
// schemas: the REST creation payload and the stored-procedure parameter set.
package transform

import (
	"strconv"
	"strings"

	"github.com/admitsync/admitsync"
	"github.com/admitsync/admitsync/internal/config"
	"github.com/admitsync/admitsync/internal/domain"
)

// FormatPhoneNumber strips everything but digits and removes the US country
// code. An 11-digit number with a leading 1 is domestic; anything else keeps
// its full digit string.
func FormatPhoneNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}

// ToAPI maps a normalized record into the creation payload schema.
func ToAPI(rec *admitsync.Record, defaults config.Defaults) (map[string]any, error) {
	if rec.Get("YearTerm").IsNull() {
		return nil, domain.FieldError{AID: rec.AID(), Field: "YearTerm", Reason: "required field missing"}
	}

	mapped := map[string]any{}

	for name, spec := range admitsync.Fields {
		if spec.APIVerbatim && rec.Has(name) {
			mapped[name] = rec.Get(name)
		}
	}

	// The schema requires these collections even though the engine never
	// populates them.
	for _, name := range []string{"Relationships", "Activities", "EmergencyContacts", "Education"} {
		mapped[name] = []any{}
	}

	addresses := make([]admitsync.Address, 0, len(rec.Addresses))
	for _, a := range rec.Addresses {
		if a.Type.IsNull() {
			a.Type = admitsync.Int(0)
		} else if n, err := coerceInt(a.Type); err == nil {
			a.Type = n
		}
		if a.Country.IsNull() {
			a.Country = admitsync.String(defaults.AddressCountry)
		}
		addresses = append(addresses, a)
	}
	mapped["Addresses"] = addresses

	phones := make([]admitsync.Phone, 0, len(rec.Phones))
	for _, p := range rec.Phones {
		number, ok := p.Number.Str()
		if !ok {
			continue
		}
		p.Number = admitsync.String(FormatPhoneNumber(number))
		if p.Type.IsNull() {
			p.Type = admitsync.Int(defaults.PhoneType)
		} else {
			n, err := coerceInt(p.Type)
			if err != nil {
				return nil, domain.FieldError{AID: rec.AID(), Field: "PhoneType", Value: p.Type.Text(), Reason: "not an integer"}
			}
			p.Type = n
		}
		if p.Country.IsNull() {
			p.Country = phoneCountry(rec, defaults)
		}
		phones = append(phones, p)
	}
	if len(phones) == 0 {
		// The creation endpoint requires this exact sentinel instead of an
		// empty list.
		phones = []admitsync.Phone{{Type: admitsync.Int(-1), Country: admitsync.Null(), Number: admitsync.Null()}}
	}
	mapped["PhoneNumbers"] = phones

	if rec.Get("Veteran").IsNull() {
		mapped["Veteran"] = admitsync.Null()
		mapped["VeteranStatus"] = admitsync.Bool(false)
	} else {
		mapped["Veteran"] = rec.Get("Veteran")
		mapped["VeteranStatus"] = admitsync.Bool(true)
	}

	mapped["Programs"] = []map[string]admitsync.Value{{
		"Program":    rec.Get("Program"),
		"Degree":     rec.Get("Degree"),
		"Curriculum": admitsync.Null(),
	}}

	mapped["ApplicationNumber"] = rec.Get("aid")
	mapped["ProspectId"] = rec.Get("pid")

	return mapped, nil
}

// phoneCountry derives a phone's country from the first address, falling
// back to the configured default.
func phoneCountry(rec *admitsync.Record, defaults config.Defaults) admitsync.Value {
	if len(rec.Addresses) > 0 && !rec.Addresses[0].Country.IsNull() {
		return rec.Addresses[0].Country
	}
	if defaults.PhoneCountry == "" {
		return admitsync.Null()
	}
	return admitsync.String(defaults.PhoneCountry)
}

func coerceInt(v admitsync.Value) (admitsync.Value, error) {
	if _, ok := v.Int(); ok {
		return v, nil
	}
	s, _ := v.Str()
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return admitsync.Null(), err
	}
	return admitsync.Int(n), nil
}
