// Package normalize turns raw CRM rows into registry-conformant records.
//
// The adapter in this file is the only place that understands the CRM's
// legacy numbered-key convention ("Address1Line1", "Phone2Number", "Stops1");
// everything downstream sees explicit sub-collections.
package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/admitsync/admitsync"
)

var (
	addressKey = regexp.MustCompile(`^Address(10|[1-9])(Type|Line[1-4]|City|StateProvince|PostalCode|Country)$`)
	phoneKey   = regexp.MustCompile(`^Phone([1-9])(Number|Type|Country)$`)
)

// collection names that may arrive split across numbered keys
// ("Stops1", "Stops2") and must be concatenated under the base name.
var collectionNames = []string{"Education", "TestScoresNumeric", "Stops", "Scholarships", "Associations"}

// FromRow adapts one decoded CRM row into a Record. Numbered address and
// phone keys collapse into ordered lists; numbered sub-collection keys
// concatenate into one collection; all other keys pass through as flat
// fields.
func FromRow(raw map[string]any) *admitsync.Record {
	rec := admitsync.NewRecord()

	addrs := map[int]map[string]admitsync.Value{}
	phones := map[int]map[string]admitsync.Value{}
	collections := map[string][]admitsync.Row{}

	for key, rawVal := range raw {
		if m := addressKey.FindStringSubmatch(key); m != nil {
			idx, _ := strconv.Atoi(m[1])
			if addrs[idx] == nil {
				addrs[idx] = map[string]admitsync.Value{}
			}
			addrs[idx][m[2]] = admitsync.FromAny(rawVal)
			continue
		}
		if m := phoneKey.FindStringSubmatch(key); m != nil {
			idx, _ := strconv.Atoi(m[1])
			if phones[idx] == nil {
				phones[idx] = map[string]admitsync.Value{}
			}
			phones[idx][m[2]] = admitsync.FromAny(rawVal)
			continue
		}
		if base, ok := collectionKey(key); ok {
			if rows, ok := rawVal.([]any); ok {
				for _, rr := range rows {
					if rm, ok := rr.(map[string]any); ok {
						collections[base] = append(collections[base], rowFromMap(rm))
					}
				}
				continue
			}
		}
		rec.Set(key, admitsync.FromAny(rawVal))
	}

	for idx := 1; idx <= 10; idx++ {
		group, ok := addrs[idx]
		if !ok || len(group) == 0 {
			continue
		}
		rec.Addresses = append(rec.Addresses, admitsync.Address{
			Type:          group["Type"],
			Line1:         group["Line1"],
			Line2:         group["Line2"],
			Line3:         group["Line3"],
			Line4:         group["Line4"],
			City:          group["City"],
			StateProvince: group["StateProvince"],
			PostalCode:    group["PostalCode"],
			Country:       group["Country"],
		})
	}

	for idx := 1; idx <= 9; idx++ {
		group, ok := phones[idx]
		if !ok {
			continue
		}
		// A group without a number is an artifact of the flat export, not
		// a phone.
		if _, has := group["Number"]; !has {
			continue
		}
		rec.Phones = append(rec.Phones, admitsync.Phone{
			Type:    group["Type"],
			Country: group["Country"],
			Number:  group["Number"],
		})
	}

	rec.Education = collections["Education"]
	rec.TestScores = collections["TestScoresNumeric"]
	rec.Stops = collections["Stops"]
	rec.Scholarships = collections["Scholarships"]
	rec.Associations = collections["Associations"]

	return rec
}

// collectionKey matches a sub-collection name with an optional numeric
// suffix, returning the base name.
func collectionKey(key string) (string, bool) {
	for _, base := range collectionNames {
		if key == base {
			return base, true
		}
		if strings.HasPrefix(key, base) {
			suffix := key[len(base):]
			if _, err := strconv.Atoi(suffix); err == nil {
				return base, true
			}
		}
	}
	return "", false
}

func rowFromMap(m map[string]any) admitsync.Row {
	row := make(admitsync.Row, len(m))
	for k, v := range m {
		row[k] = admitsync.FromAny(v)
	}
	return row
}
