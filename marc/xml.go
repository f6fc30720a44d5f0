package marc

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/dainst/marc-authority-harvester/errors"
)

// Namespace is the MARC21 slim XML namespace.
const Namespace = "http://www.loc.gov/MARC21/slim"

// CollectionOpen and CollectionClose wrap a MARCXML output file. The opening
// element carries the standard namespace and schema location declarations.
var (
	CollectionOpen = []byte(xml.Header +
		`<collection xmlns="http://www.loc.gov/MARC21/slim"` +
		` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"` +
		` xsi:schemaLocation="http://www.loc.gov/MARC21/slim` +
		` http://www.loc.gov/standards/marcxml/schema/MARC21slim.xsd">`)
	CollectionClose = []byte(`</collection>`)
)

type xmlSubfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

type xmlControlField struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

type xmlDataField struct {
	Tag       string        `xml:"tag,attr"`
	Ind1      string        `xml:"ind1,attr"`
	Ind2      string        `xml:"ind2,attr"`
	Subfields []xmlSubfield `xml:"subfield"`
}

type xmlRecord struct {
	XMLName       xml.Name          `xml:"record"`
	Leader        string            `xml:"leader"`
	ControlFields []xmlControlField `xml:"controlfield"`
	DataFields    []xmlDataField    `xml:"datafield"`
}

// EncodeXML serializes the record as a single MARCXML <record> element,
// suitable for writing between CollectionOpen and CollectionClose.
func EncodeXML(r *Record) ([]byte, error) {
	xr := xmlRecord{Leader: string(r.Leader)}
	for _, f := range r.Fields {
		if f.IsControl() {
			xr.ControlFields = append(xr.ControlFields, xmlControlField{Tag: f.Tag, Value: f.Data})
			continue
		}
		df := xmlDataField{
			Tag:  f.Tag,
			Ind1: string(indicatorByte(f.Ind1)),
			Ind2: string(indicatorByte(f.Ind2)),
		}
		for _, sf := range f.Subfields {
			df.Subfields = append(df.Subfields, xmlSubfield{Code: string(sf.Code), Value: sf.Value})
		}
		xr.DataFields = append(xr.DataFields, df)
	}

	out, err := xml.Marshal(xr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal MARCXML record")
	}
	return out, nil
}

// DecodeXML parses every <record> element found in the document, whether it
// is a bare record, a <collection>, or a feed detail document embedding one.
func DecodeXML(data []byte) ([]*Record, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var records []*Record
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records, errors.Wrap(err, "failed to read MARCXML document")
		}

		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != "record" {
			continue
		}

		var xr xmlRecord
		if err := decoder.DecodeElement(&xr, &start); err != nil {
			return records, errors.Wrap(err, "failed to decode MARCXML record")
		}
		records = append(records, fromXMLRecord(xr))
	}

	if len(records) == 0 {
		return nil, errors.New("no MARCXML record found in document")
	}
	return records, nil
}

func fromXMLRecord(xr xmlRecord) *Record {
	record := &Record{}
	if len(xr.Leader) == leaderLength {
		record.Leader = []byte(xr.Leader)
	} else {
		record.Leader = []byte(defaultLeader)
	}

	for _, cf := range xr.ControlFields {
		record.AddField(ControlField(cf.Tag, cf.Value))
	}
	for _, df := range xr.DataFields {
		field := Field{Tag: df.Tag, Ind1: attrIndicator(df.Ind1), Ind2: attrIndicator(df.Ind2)}
		for _, sf := range df.Subfields {
			code := byte(' ')
			if len(sf.Code) > 0 {
				code = sf.Code[0]
			}
			field.Subfields = append(field.Subfields, Subfield{Code: code, Value: sf.Value})
		}
		record.AddField(field)
	}
	return record
}

func attrIndicator(s string) byte {
	if len(s) == 0 {
		return ' '
	}
	return s[0]
}
