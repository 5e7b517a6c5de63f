package edgar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	e, ok := ParseLine("4 ACME CORP 0001234567 20230114 edgar/data/x/y.txt")
	require.True(t, ok)
	assert.Equal(t, IndexEntry{
		FormType:   "4",
		Company:    "ACME CORP",
		CIK:        "0001234567",
		FilingDate: "20230114",
		Path:       "edgar/data/x/y.txt",
	}, e)
}

func TestParseLine_FixedWidth(t *testing.T) {
	line := "4/A         ACME HOLDINGS  LLC                                            0009999999  20230114    edgar/data/9999999/a.txt"
	e, ok := ParseLine(line)
	require.True(t, ok)
	assert.Equal(t, "4/A", e.FormType)
	assert.Equal(t, "ACME HOLDINGS LLC", e.Company)
	assert.Equal(t, "0009999999", e.CIK)
	assert.Equal(t, "edgar/data/9999999/a.txt", e.Path)
}

func TestParseLine_TooShort(t *testing.T) {
	for _, line := range []string{"", "   ", "Form Type", "--------", "4 X 0001"} {
		_, ok := ParseLine(line)
		assert.False(t, ok, "line %q", line)
	}
}

func TestParseLine_NoCompany(t *testing.T) {
	e, ok := ParseLine("4 0001234567 20230114 edgar/data/x/y.txt")
	require.True(t, ok)
	assert.Empty(t, e.Company)
	assert.Equal(t, "0001234567", e.CIK)
}

func TestSelectEntries(t *testing.T) {
	lines := splitLines(string(readFixture(t, "form.20230114.idx")))

	entries := SelectEntries(lines, DefaultFormTypes)
	require.Len(t, entries, 5)

	forms := make([]string, len(entries))
	for i, e := range entries {
		forms[i] = e.FormType
	}
	assert.Equal(t, []string{"4", "4", "4/A", "4", "4"}, forms)
	assert.Equal(t, "ACME CORP", entries[0].Company)
	assert.Equal(t, "edgar/data/1234567/0000899243-23-001234.txt", entries[0].Path)
}

func TestSelectEntries_ExactFormMatch(t *testing.T) {
	lines := []string{
		"4 A 0000000001 20230114 p1.txt",
		"424B2 B 0000000002 20230114 p2.txt",
		"40-F C 0000000003 20230114 p3.txt",
		"4/A D 0000000004 20230114 p4.txt",
	}
	entries := SelectEntries(lines, []string{"4"})
	require.Len(t, entries, 1)
	assert.Equal(t, "p1.txt", entries[0].Path)
}

func TestSelectEntries_Empty(t *testing.T) {
	assert.Empty(t, SelectEntries(nil, DefaultFormTypes))
	assert.Empty(t, SelectEntries([]string{"header only"}, DefaultFormTypes))
}
