// Package marc implements the MARC 21 authority record codec used by the
// harvesters: an in-memory record model, the ISO 2709 binary serialization
// and the MARCXML (MARC21 slim) serialization.
package marc

import (
	"strings"
)

// ISO 2709 framing bytes
const (
	fieldTerminator   = 0x1e
	recordTerminator  = 0x1d
	subfieldDelimiter = 0x1f
)

const leaderLength = 24

// defaultLeader is the template for new authority records: position 6 carries
// 'z' (authority data), position 9 'a' (UCS/Unicode). Lengths and the base
// address are patched during binary encoding.
const defaultLeader = "00000nz  a2200000o  4500"

// Subfield is a coded value inside a data field.
type Subfield struct {
	Code  byte
	Value string
}

// Field is a single MARC field. Control fields (tags 00X) carry Data;
// data fields carry indicators and subfields.
type Field struct {
	Tag       string
	Ind1      byte
	Ind2      byte
	Data      string
	Subfields []Subfield
}

// IsControl reports whether the field is a control field (tag 00X).
func (f Field) IsControl() bool {
	return strings.HasPrefix(f.Tag, "00")
}

// SubfieldValue returns the first subfield with the given code, or "".
func (f Field) SubfieldValue(code byte) string {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return sf.Value
		}
	}
	return ""
}

// SubfieldValues returns every subfield value with the given code, in order.
func (f Field) SubfieldValues(code byte) []string {
	var values []string
	for _, sf := range f.Subfields {
		if sf.Code == code {
			values = append(values, sf.Value)
		}
	}
	return values
}

// ControlField builds a control field (tag 00X) carrying raw data.
func ControlField(tag, data string) Field {
	return Field{Tag: tag, Data: data}
}

// DataField builds a data field with indicators and subfield pairs.
func DataField(tag string, ind1, ind2 byte, subfields ...Subfield) Field {
	return Field{Tag: tag, Ind1: ind1, Ind2: ind2, Subfields: subfields}
}

// Record is a single MARC record.
type Record struct {
	Leader []byte
	Fields []Field
}

// NewRecord creates an empty authority record with the default leader.
func NewRecord() *Record {
	return &Record{Leader: []byte(defaultLeader)}
}

// AddField appends a field to the record.
func (r *Record) AddField(f Field) {
	r.Fields = append(r.Fields, f)
}

// GetFields returns every field whose tag matches one of the given tags,
// in record order.
func (r *Record) GetFields(tags ...string) []Field {
	var fields []Field
	for _, f := range r.Fields {
		for _, tag := range tags {
			if f.Tag == tag {
				fields = append(fields, f)
				break
			}
		}
	}
	return fields
}

// GetField returns the first field with the given tag, or nil.
func (r *Record) GetField(tag string) *Field {
	for i := range r.Fields {
		if r.Fields[i].Tag == tag {
			return &r.Fields[i]
		}
	}
	return nil
}
