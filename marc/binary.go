package marc

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/dainst/marc-authority-harvester/errors"
)

// Encode serializes the record as a single ISO 2709 binary record.
func Encode(r *Record) ([]byte, error) {
	if len(r.Leader) != leaderLength {
		return nil, errors.Newf("leader must be %d bytes, got %d", leaderLength, len(r.Leader))
	}

	var directory bytes.Buffer
	var data bytes.Buffer

	for _, f := range r.Fields {
		if len(f.Tag) != 3 {
			return nil, errors.Newf("invalid tag %q", f.Tag)
		}

		start := data.Len()
		if f.IsControl() {
			data.WriteString(f.Data)
		} else {
			data.WriteByte(indicatorByte(f.Ind1))
			data.WriteByte(indicatorByte(f.Ind2))
			for _, sf := range f.Subfields {
				data.WriteByte(subfieldDelimiter)
				data.WriteByte(sf.Code)
				data.WriteString(sf.Value)
			}
		}
		data.WriteByte(fieldTerminator)

		length := data.Len() - start
		if length > 9999 || start > 99999 {
			return nil, errors.Newf("field %s exceeds ISO 2709 size limits", f.Tag)
		}
		fmt.Fprintf(&directory, "%s%04d%05d", f.Tag, length, start)
	}

	baseAddress := leaderLength + directory.Len() + 1
	recordLength := baseAddress + data.Len() + 1
	if recordLength > 99999 {
		return nil, errors.Newf("record length %d exceeds ISO 2709 limit", recordLength)
	}

	leader := make([]byte, leaderLength)
	copy(leader, r.Leader)
	copy(leader[0:5], fmt.Sprintf("%05d", recordLength))
	copy(leader[12:17], fmt.Sprintf("%05d", baseAddress))

	var out bytes.Buffer
	out.Grow(recordLength)
	out.Write(leader)
	out.Write(directory.Bytes())
	out.WriteByte(fieldTerminator)
	out.Write(data.Bytes())
	out.WriteByte(recordTerminator)

	return out.Bytes(), nil
}

// Decode parses a single ISO 2709 binary record from the front of data and
// returns it together with the number of bytes consumed.
func Decode(data []byte) (*Record, int, error) {
	if len(data) < leaderLength {
		return nil, 0, errors.New("record shorter than leader")
	}

	recordLength, err := strconv.Atoi(string(data[0:5]))
	if err != nil {
		return nil, 0, errors.Wrap(err, "invalid record length in leader")
	}
	if recordLength > len(data) {
		return nil, 0, errors.Newf("truncated record: leader says %d bytes, have %d", recordLength, len(data))
	}

	baseAddress, err := strconv.Atoi(string(data[12:17]))
	if err != nil {
		return nil, 0, errors.Wrap(err, "invalid base address in leader")
	}
	if baseAddress < leaderLength+1 || baseAddress > recordLength {
		return nil, 0, errors.Newf("base address %d out of range", baseAddress)
	}

	record := &Record{Leader: append([]byte(nil), data[0:leaderLength]...)}

	directory := data[leaderLength : baseAddress-1]
	if len(directory)%12 != 0 {
		return nil, 0, errors.Newf("directory length %d is not a multiple of 12", len(directory))
	}

	body := data[baseAddress:recordLength]

	for i := 0; i+12 <= len(directory); i += 12 {
		entry := directory[i : i+12]
		tag := string(entry[0:3])
		fieldLen, err := strconv.Atoi(string(entry[3:7]))
		if err != nil {
			return nil, 0, errors.Wrapf(err, "invalid length for field %s", tag)
		}
		fieldStart, err := strconv.Atoi(string(entry[7:12]))
		if err != nil {
			return nil, 0, errors.Wrapf(err, "invalid offset for field %s", tag)
		}
		if fieldStart+fieldLen > len(body) {
			return nil, 0, errors.Newf("field %s overruns record body", tag)
		}

		raw := body[fieldStart : fieldStart+fieldLen]
		// Strip the field terminator
		if len(raw) > 0 && raw[len(raw)-1] == fieldTerminator {
			raw = raw[:len(raw)-1]
		}

		field, err := parseField(tag, raw)
		if err != nil {
			return nil, 0, err
		}
		record.Fields = append(record.Fields, field)
	}

	return record, recordLength, nil
}

// DecodeAll parses a stream of concatenated ISO 2709 records.
func DecodeAll(data []byte) ([]*Record, error) {
	var records []*Record
	for len(data) > 0 {
		record, n, err := Decode(data)
		if err != nil {
			return records, err
		}
		records = append(records, record)
		data = data[n:]
	}
	return records, nil
}

func parseField(tag string, raw []byte) (Field, error) {
	if len(tag) > 1 && tag[0] == '0' && tag[1] == '0' {
		return Field{Tag: tag, Data: string(raw)}, nil
	}

	if len(raw) < 2 {
		return Field{}, errors.Newf("data field %s shorter than its indicators", tag)
	}

	field := Field{Tag: tag, Ind1: raw[0], Ind2: raw[1]}
	for _, part := range bytes.Split(raw[2:], []byte{subfieldDelimiter}) {
		if len(part) == 0 {
			continue
		}
		field.Subfields = append(field.Subfields, Subfield{Code: part[0], Value: string(part[1:])})
	}
	return field, nil
}

func indicatorByte(b byte) byte {
	if b == 0 {
		return ' '
	}
	return b
}
