// Package mapping loads the externally maintained code-translation document
// that converts CRM code values to target-system code values. The document is
// treated as a versioned resource: a snapshot is loaded at run start, any
// additions accumulate in memory, and Commit performs a single atomic rewrite.
package mapping

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/admitsync/admitsync/internal/domain"
)

// Domain is one translation domain. Single-valued domains map a source code
// straight to one target code; multi-valued domains map a source code to one
// target code per target field name.
type Domain struct {
	Fields []string // target field names; empty for single-valued domains
	single map[string]string
	multi  map[string]map[string]string // field -> source code -> target code
}

// Table is the in-memory mapping document.
type Table struct {
	domains map[string]*Domain
	pending []addition
}

type addition struct {
	domain string
	code   string
	values map[string]string // field -> target; "" key for single-valued
}

type xmlRow struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

type xmlDomain struct {
	XMLName      xml.Name
	NumberMapped string   `xml:"NumberOfPowerCampusFieldsMapped,attr"`
	FirstField   string   `xml:"PCFirstField,attr"`
	SecondField  string   `xml:"PCSecondField,attr"`
	ThirdField   string   `xml:"PCThirdField,attr"`
	Rows         []xmlRow `xml:",any"`
}

type xmlDoc struct {
	XMLName xml.Name
	Domains []xmlDomain `xml:",any"`
}

func attr(row xmlRow, name string) (string, bool) {
	for _, a := range row.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Load parses the mapping document at path. The authoring tool emits UTF-8
// with a byte order mark, which encoding/xml does not tolerate, so the BOM is
// stripped first. Malformed documents and duplicate source codes are fatal.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read mapping document")
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})

	var doc xmlDoc
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to parse mapping document")
	}

	t := &Table{domains: map[string]*Domain{}}
	for _, d := range doc.Domains {
		name := d.XMLName.Local
		if _, dup := t.domains[name]; dup {
			return nil, fmt.Errorf("duplicate mapping domain %q", name)
		}

		var fields []string
		for _, f := range []string{d.FirstField, d.SecondField, d.ThirdField} {
			if f != "" {
				fields = append(fields, f)
			}
		}

		dom := &Domain{Fields: fields}
		if len(fields) == 0 {
			dom.single = map[string]string{}
			for _, row := range d.Rows {
				code, ok := attr(row, "RCCodeValue")
				if !ok {
					continue
				}
				if _, dup := dom.single[code]; dup {
					return nil, fmt.Errorf("duplicate code %q in mapping domain %q", code, name)
				}
				target, _ := attr(row, "PCCodeValue")
				dom.single[code] = target
			}
		} else {
			dom.multi = map[string]map[string]string{}
			for _, f := range fields {
				dom.multi["PC"+f+"CodeValue"] = map[string]string{}
			}
			for _, row := range d.Rows {
				code, ok := attr(row, "RCCodeValue")
				if !ok {
					continue
				}
				for _, f := range fields {
					fn := "PC" + f + "CodeValue"
					if _, dup := dom.multi[fn][code]; dup {
						return nil, fmt.Errorf("duplicate code %q in mapping domain %q", code, name)
					}
					target, _ := attr(row, fn)
					dom.multi[fn][code] = target
				}
			}
		}
		t.domains[name] = dom
	}

	return t, nil
}

// Lookup resolves a source code in a single-valued domain.
func (t *Table) Lookup(domainName, code string) (string, error) {
	d, ok := t.domains[domainName]
	if ok && d.single != nil {
		if target, ok := d.single[code]; ok {
			return target, nil
		}
	}
	return "", domain.UnmappedCodeError{Domain: domainName, Code: code}
}

// LookupField resolves a source code in a multi-valued domain for one target
// field. Field names use the document's PC<Field>CodeValue convention.
func (t *Table) LookupField(domainName, field, code string) (string, error) {
	d, ok := t.domains[domainName]
	if ok && d.multi != nil {
		if m, ok := d.multi[field]; ok {
			if target, ok := m[code]; ok {
				return target, nil
			}
		}
	}
	return "", domain.UnmappedCodeError{Domain: domainName, Field: field, Code: code}
}

// Has reports whether a source code resolves in the named domain.
func (t *Table) Has(domainName, code string) bool {
	d, ok := t.domains[domainName]
	if !ok {
		return false
	}
	if d.single != nil {
		_, ok := d.single[code]
		return ok
	}
	for _, m := range d.multi {
		if _, ok := m[code]; ok {
			return true
		}
	}
	return false
}

// Propose queues a new translation for the next Commit and makes it visible
// to lookups immediately. values is keyed by PC<Field>CodeValue for
// multi-valued domains, or holds a single "" key for single-valued ones.
func (t *Table) Propose(domainName, code string, values map[string]string) {
	d, ok := t.domains[domainName]
	if !ok {
		return
	}
	if d.single != nil {
		d.single[code] = values[""]
	} else {
		for fn, target := range values {
			if m, ok := d.multi[fn]; ok {
				m[code] = target
			}
		}
	}
	t.pending = append(t.pending, addition{domain: domainName, code: code, values: values})
}

// Dirty reports whether Commit has anything to write.
func (t *Table) Dirty() bool { return len(t.pending) > 0 }

// Commit rewrites the mapping document at path with all proposed additions
// merged in, using a temp-file rename so concurrent readers never observe a
// partial document. A no-op when nothing was proposed.
func (t *Table) Commit(path string) error {
	if len(t.pending) == 0 {
		return nil
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<Mappings>\n")

	names := make([]string, 0, len(t.domains))
	for name := range t.domains {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		d := t.domains[name]
		if d.single != nil {
			fmt.Fprintf(&buf, "  <%s NumberOfPowerCampusFieldsMapped=\"1\">\n", name)
			for _, code := range sortedKeys(d.single) {
				fmt.Fprintf(&buf, "    <Row RCCodeValue=%q PCCodeValue=%q />\n", code, d.single[code])
			}
		} else {
			fmt.Fprintf(&buf, "  <%s NumberOfPowerCampusFieldsMapped=\"%d\"", name, len(d.Fields))
			attrs := []string{"PCFirstField", "PCSecondField", "PCThirdField"}
			for i, f := range d.Fields {
				fmt.Fprintf(&buf, " %s=%q", attrs[i], f)
			}
			buf.WriteString(">\n")

			codes := map[string]bool{}
			for _, m := range d.multi {
				for code := range m {
					codes[code] = true
				}
			}
			for _, code := range sortedBoolKeys(codes) {
				fmt.Fprintf(&buf, "    <Row RCCodeValue=%q", code)
				for _, f := range d.Fields {
					fn := "PC" + f + "CodeValue"
					fmt.Fprintf(&buf, " %s=%q", fn, d.multi[fn][code])
				}
				buf.WriteString(" />\n")
			}
		}
		fmt.Fprintf(&buf, "  </%s>\n", name)
	}
	buf.WriteString("</Mappings>\n")

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "failed to write mapping document")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "failed to replace mapping document")
	}
	t.pending = nil
	return nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedBoolKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
