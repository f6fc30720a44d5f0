package harvest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dainst/marc-authority-harvester/marc"
)

func writerSampleRecord(heading string) *marc.Record {
	r := marc.NewRecord()
	r.AddField(marc.ControlField("001", "iDAI.gazetteer1"))
	r.AddField(marc.DataField("151", ' ', ' ', marc.Subfield{Code: 'a', Value: heading}))
	return r
}

func TestWriterBinaryConcatenation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gazetteer_authority.mrc")

	w, err := NewWriter(path, FormatMARC)
	require.NoError(t, err)
	require.NoError(t, w.Write(writerSampleRecord("Pergamon")))
	require.NoError(t, w.Write(writerSampleRecord("Athen")))
	assert.Equal(t, 2, w.Count())
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	records, err := marc.DecodeAll(raw)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Athen", records[1].GetField("151").SubfieldValue('a'))
}

func TestWriterXMLCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gazetteer_authority.marcxml")

	w, err := NewWriter(path, FormatMARCXML)
	require.NoError(t, err)
	require.NoError(t, w.Write(writerSampleRecord("Pergamon")))
	require.NoError(t, w.Write(writerSampleRecord("Athen")))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "<?xml"))
	assert.True(t, strings.HasSuffix(string(raw), "</collection>"))

	records, err := marc.DecodeXML(raw)
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func TestWriterRejectsUnknownFormat(t *testing.T) {
	_, err := NewWriter(filepath.Join(t.TempDir(), "out.bin"), Format("yaml"))
	require.Error(t, err)

	// Write itself rejects an unknown format too, without counting the record.
	w := &Writer{format: Format("yaml")}
	require.Error(t, w.Write(writerSampleRecord("Pergamon")))
	assert.Equal(t, 0, w.Count())
}

func TestFormatSuffix(t *testing.T) {
	suffix, err := FormatMARC.Suffix()
	require.NoError(t, err)
	assert.Equal(t, ".mrc", suffix)

	suffix, err = FormatMARCXML.Suffix()
	require.NoError(t, err)
	assert.Equal(t, ".marcxml", suffix)

	_, err = Format("csv").Suffix()
	require.Error(t, err)
}
