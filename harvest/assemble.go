package harvest

import (
	"fmt"
	"time"

	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/marc"
)

// Identifier is the source identifier carried in the 024 field. Indicator
// conventions differ between sources, so they are part of the value.
type Identifier struct {
	Value  string // $a
	Source string // $2
	Local  string // $9, omitted when empty
	Ind1   byte
	Ind2   byte
}

// Variant is a non-preferred heading, emitted as a 4xx field.
type Variant struct {
	Label Label
	Note  string // $i annotation, e.g. which kind of upstream label this was
}

// BroaderRef is one resolved broader heading, emitted as a 5xx field.
type BroaderRef struct {
	Label         Label
	Order         int    // >0 annotates the hop distance to the described item
	ControlNumber string // $0
	URI           string // $1
	Note          string // $i annotation, omitted when Order is set
}

// Definition is a scope note, emitted as a 677 field.
type Definition struct {
	Label  Label
	Agency string // $v
}

// AuthorityRecord is the source-independent logical form of one authority
// record, assembled from an Item and its resolved ancestor chain before MARC
// encoding.
type AuthorityRecord struct {
	ControlNumber    string // 001
	Agency           string // 003
	FixedData        string // 008, omitted when empty
	Identifier       Identifier
	CatalogingSource string // 040 $a
	HeadingTag       string // 150 for topical terms, 151 for geographic names
	Heading          Label
	Variants         []Variant
	Broader          []BroaderRef
	Definitions      []Definition
}

// Assemble encodes the logical record as a MARC authority record. A record
// without a heading label is not assemblable and yields ErrNoPreferredLabel;
// callers drop the record and log the identifier.
func Assemble(a *AuthorityRecord) (*marc.Record, error) {
	if a.Heading.Text == "" {
		return nil, errors.Wrapf(errors.ErrNoPreferredLabel, "record %s", a.ControlNumber)
	}

	record := marc.NewRecord()

	if a.ControlNumber != "" {
		record.AddField(marc.ControlField("001", a.ControlNumber))
	}
	if a.Agency != "" {
		record.AddField(marc.ControlField("003", a.Agency))
	}
	if a.FixedData != "" {
		record.AddField(marc.ControlField("008", a.FixedData))
	}

	identifier := []marc.Subfield{
		{Code: 'a', Value: a.Identifier.Value},
		{Code: '2', Value: a.Identifier.Source},
	}
	if a.Identifier.Local != "" {
		identifier = append(identifier, marc.Subfield{Code: '9', Value: a.Identifier.Local})
	}
	record.AddField(marc.DataField("024", a.Identifier.Ind1, a.Identifier.Ind2, identifier...))

	record.AddField(marc.DataField("040", ' ', ' ', marc.Subfield{Code: 'a', Value: a.CatalogingSource}))

	record.AddField(marc.DataField(a.HeadingTag, ' ', ' ', labelSubfields(a.Heading)...))

	variantTag := "4" + a.HeadingTag[1:]
	for _, v := range a.Variants {
		subfields := labelSubfields(v.Label)
		if v.Note != "" {
			subfields = append(subfields, marc.Subfield{Code: 'i', Value: v.Note})
		}
		record.AddField(marc.DataField(variantTag, ' ', ' ', subfields...))
	}

	broaderTag := "5" + a.HeadingTag[1:]
	for _, b := range a.Broader {
		subfields := labelSubfields(b.Label)
		if b.Order > 0 {
			subfields = append(subfields,
				marc.Subfield{Code: 'x', Value: "part of"},
				marc.Subfield{Code: 'i', Value: fmt.Sprintf("ancestor of order %d", b.Order)},
			)
		}
		if b.ControlNumber != "" {
			subfields = append(subfields, marc.Subfield{Code: '0', Value: b.ControlNumber})
		}
		if b.URI != "" {
			subfields = append(subfields, marc.Subfield{Code: '1', Value: b.URI})
		}
		if b.Note != "" && b.Order == 0 {
			subfields = append(subfields, marc.Subfield{Code: 'i', Value: b.Note})
		}
		record.AddField(marc.DataField(broaderTag, ' ', ' ', subfields...))
	}

	for _, d := range a.Definitions {
		subfields := labelSubfields(d.Label)
		if d.Agency != "" {
			subfields = append(subfields, marc.Subfield{Code: 'v', Value: d.Agency})
		}
		record.AddField(marc.DataField("677", ' ', ' ', subfields...))
	}

	return record, nil
}

// labelSubfields renders a label as $a plus an optional $l language tag.
func labelSubfields(l Label) []marc.Subfield {
	subfields := []marc.Subfield{{Code: 'a', Value: l.Text}}
	if l.Lang != "" {
		subfields = append(subfields, marc.Subfield{Code: 'l', Value: l.Lang})
	}
	return subfields
}

// AuthorityFixedData builds the 008 fixed-length data elements for an
// authority record exported on the given day: kind-of-record positions set to
// "differentiated" defaults, everything unknown left as fill characters.
func AuthorityFixedData(today time.Time) string {
	return today.UTC().Format("20060102") + "||||zzz||||d          || bn|      "
}
