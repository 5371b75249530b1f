package normalize

import (
	"testing"
)

func TestFromRowCollapsesAddresses(t *testing.T) {
	rec := FromRow(map[string]any{
		"aid":                   "app-1",
		"Address1Line1":         "1 Main St",
		"Address1City":          "Springfield",
		"Address1StateProvince": "IL",
		"Address2Country":       "CA",
		"Address10City":         "Toronto",
	})

	if len(rec.Addresses) != 3 {
		t.Fatalf("expected 3 addresses, got %d", len(rec.Addresses))
	}
	if s, _ := rec.Addresses[0].Line1.Str(); s != "1 Main St" {
		t.Errorf("address 1 line1 = %v", rec.Addresses[0].Line1)
	}
	if s, _ := rec.Addresses[1].Country.Str(); s != "CA" {
		t.Errorf("address 2 country = %v", rec.Addresses[1].Country)
	}
	// index 10 sorts last, not lexicographically after 1
	if s, _ := rec.Addresses[2].City.Str(); s != "Toronto" {
		t.Errorf("address 10 city = %v", rec.Addresses[2].City)
	}
	if rec.Has("Address1Line1") {
		t.Errorf("numbered keys must not leak into flat fields")
	}
}

func TestFromRowDropsNumberlessPhoneGroups(t *testing.T) {
	rec := FromRow(map[string]any{
		"aid":          "app-1",
		"Phone1Number": "555-123-4567",
		"Phone1Type":   "1",
		"Phone2Type":   "2",
	})

	if len(rec.Phones) != 1 {
		t.Fatalf("expected 1 phone, got %d", len(rec.Phones))
	}
	if s, _ := rec.Phones[0].Number.Str(); s != "555-123-4567" {
		t.Errorf("phone number = %v", rec.Phones[0].Number)
	}
}

func TestFromRowConcatenatesNumberedCollections(t *testing.T) {
	rec := FromRow(map[string]any{
		"aid": "app-1",
		"Education": []any{
			map[string]any{"GUID": "g-1"},
		},
		"Education2": []any{
			map[string]any{"GUID": "g-2"},
		},
		"Stops1": []any{
			map[string]any{"StopCode": "HOLD"},
		},
	})

	if len(rec.Education) != 2 {
		t.Fatalf("expected 2 education rows, got %d", len(rec.Education))
	}
	if len(rec.Stops) != 1 {
		t.Fatalf("expected 1 stop row, got %d", len(rec.Stops))
	}
	if rec.Has("Education2") || rec.Has("Stops1") {
		t.Errorf("collection keys must not leak into flat fields")
	}
}

func TestFromRowFlatFieldTypes(t *testing.T) {
	rec := FromRow(map[string]any{
		"aid":       "app-1",
		"Ethnicity": float64(2),
		"Veteran":   nil,
	})

	if n, ok := rec.Get("Ethnicity").Int(); !ok || n != 2 {
		t.Errorf("integral JSON number should decode as int, got %v", rec.Get("Ethnicity"))
	}
	if !rec.Get("Veteran").IsNull() {
		t.Errorf("JSON null should decode as null")
	}
	if s, _ := rec.Get("aid").Str(); s != "app-1" {
		t.Errorf("aid = %v", rec.Get("aid"))
	}
}
