package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "GAT-1 results",
		Headers: []string{"Position", "Student", "Total"},
		Rows: []map[string]string{
			{"Position": "1", "Student": "Karimov Ali", "Total": "42"},
			{"Position": "2", "Student": "Nazarova Zarina", "Total": "38.5"},
		},
	}
}

func TestCSVExporter(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, utf8BOM))
	assert.Equal(t, "Position,Student,Total\n1,Karimov Ali,42\n2,Nazarova Zarina,38.5\n", string(out[len(utf8BOM):]))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporter(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	wide := Dataset{Headers: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}}
	out, err = NewPDFExporter().Render(wide)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestXLSXExporter(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	rows, err := f.GetRows(defaultSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "GAT-1 results", rows[0][0])
	assert.Equal(t, []string{"Position", "Student", "Total"}, rows[2])
	assert.Equal(t, "Karimov Ali", rows[3][1])
	assert.Equal(t, "38.5", rows[4][2])
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	exporter, err := registry.Get(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", exporter.Extension())
	assert.Equal(t, "GAT_1_10A.xlsx", Filename("GAT 1/10A", exporter))

	_, err = registry.Get("docx")
	assert.Error(t, err)
}
