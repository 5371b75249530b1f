package admitsync

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Kind discriminates the primitive type carried by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindBool
)

// Value is one field of an applicant record. The CRM delivers loosely-typed
// JSON; after normalization every Value matches its registry-declared Kind,
// with KindNull as the explicit absence marker.
type Value struct {
	kind Kind
	str  string
	num  int64
	flag bool
}

func Null() Value           { return Value{kind: KindNull} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Int(i int64) Value     { return Value{kind: KindInt, num: i} }
func Bool(b bool) Value     { return Value{kind: KindBool, flag: b} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string content and whether the value is a non-null string.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

func (v Value) Int() (int64, bool) { return v.num, v.kind == KindInt }

func (v Value) Bool() (bool, bool) { return v.flag, v.kind == KindBool }

// Text renders any non-null value as its string form, mirroring how the
// procedure parameters accept loosely typed arguments.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return fmt.Sprintf("%d", v.num)
	case KindBool:
		if v.flag {
			return "true"
		}
		return "false"
	}
	return ""
}

func (v Value) Equal(o Value) bool { return v == o }

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindInt:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.flag)
	}
	return []byte("null"), nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// FromAny converts a decoded JSON primitive into a Value. Unknown types fall
// back to their fmt rendering so nothing is silently dropped.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		if t == math.Trunc(t) {
			return Int(int64(t))
		}
		return String(fmt.Sprintf("%v", t))
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// Row is one element of a loosely-typed repeated sub-collection
// (education rows, numeric test-score groups).
type Row map[string]Value

// MarshalRow encodes a row as JSON, for procedures taking jsonb arguments.
func MarshalRow(r Row) (string, error) {
	b, err := json.Marshal(r)
	return string(b), err
}

func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Address is one nested address of the creation payload.
type Address struct {
	Type          Value `json:"Type"`
	Line1         Value `json:"Line1"`
	Line2         Value `json:"Line2"`
	Line3         Value `json:"Line3"`
	Line4         Value `json:"Line4"`
	City          Value `json:"City"`
	StateProvince Value `json:"StateProvince"`
	PostalCode    Value `json:"PostalCode"`
	Country       Value `json:"Country"`
}

// Phone is one nested phone number of the creation payload.
type Phone struct {
	Type    Value `json:"Type"`
	Country Value `json:"Country"`
	Number  Value `json:"Number"`
}

// Record is the unit of work: one applicant as fetched from the CRM, with the
// numbered-key legacy convention already collapsed into explicit
// sub-collections by the ingestion adapter.
type Record struct {
	Fields       map[string]Value
	Addresses    []Address
	Phones       []Phone
	Education    []Row
	TestScores   []Row
	Stops        []Row
	Scholarships []Row
	Associations []Row
}

func NewRecord() *Record {
	return &Record{Fields: map[string]Value{}}
}

// Get returns the named field, Null if absent.
func (r *Record) Get(name string) Value {
	if v, ok := r.Fields[name]; ok {
		return v
	}
	return Null()
}

func (r *Record) Set(name string, v Value) { r.Fields[name] = v }

// Has reports whether the field arrived at all, null or not.
func (r *Record) Has(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

// AID is the stable source application identifier.
func (r *Record) AID() string {
	s, _ := r.Get("aid").Str()
	return s
}

// PID is the stable source person identifier.
func (r *Record) PID() string {
	s, _ := r.Get("pid").Str()
	return s
}

func (r *Record) Clone() *Record {
	out := &Record{Fields: make(map[string]Value, len(r.Fields))}
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	out.Addresses = append([]Address(nil), r.Addresses...)
	out.Phones = append([]Phone(nil), r.Phones...)
	out.Education = cloneRows(r.Education)
	out.TestScores = cloneRows(r.TestScores)
	out.Stops = cloneRows(r.Stops)
	out.Scholarships = cloneRows(r.Scholarships)
	out.Associations = cloneRows(r.Associations)
	return out
}

func cloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// FieldNames returns the record's field names in stable order.
func (r *Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
