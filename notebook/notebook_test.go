package notebook

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readNotebook(t *testing.T, path string) document {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func TestNewSerializerWritesEmptyNotebook(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSerializer(dir, "notebook")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "notebook.ipynb"), s.Path(), "extension is appended")

	doc := readNotebook(t, s.Path())
	assert.Equal(t, 4, doc.NBFormat)
	assert.Empty(t, doc.Cells)
}

func TestAddCodeCellAndOutputs(t *testing.T) {
	s, err := NewSerializer(t.TempDir(), "nb.ipynb")
	require.NoError(t, err)

	require.NoError(t, s.AddCodeCell("print('hi')"))
	require.NoError(t, s.AddCodeCellOutput("hi"))
	require.NoError(t, s.AddImage("aWJhc2U2NA==", "image/png"))

	doc := readNotebook(t, s.Path())
	require.Len(t, doc.Cells, 1)
	cell := doc.Cells[0]
	assert.Equal(t, "code", cell.CellType)
	assert.Equal(t, "print('hi')", cell.Source)
	require.Len(t, cell.Outputs, 2)
	assert.Equal(t, "hi", cell.Outputs[0].Data["text/plain"])
	assert.Equal(t, "aWJhc2U2NA==", cell.Outputs[1].Data["image/png"])
}

func TestAddCodeCellError(t *testing.T) {
	s, err := NewSerializer(t.TempDir(), "nb")
	require.NoError(t, err)

	require.NoError(t, s.AddCodeCell("1/0"))
	require.NoError(t, s.AddCodeCellError("ZeroDivisionError: division by zero\ntrace line"))

	doc := readNotebook(t, s.Path())
	out := doc.Cells[0].Outputs[0]
	assert.Equal(t, "error", out.OutputType)
	assert.Equal(t, "ZeroDivisionError: division by zero", out.EValue)
}

func TestOutputBeforeAnyCellCreatesPlaceholder(t *testing.T) {
	s, err := NewSerializer(t.TempDir(), "nb")
	require.NoError(t, err)

	require.NoError(t, s.AddCodeCellOutput("orphan output"))

	doc := readNotebook(t, s.Path())
	require.Len(t, doc.Cells, 1)
	assert.Equal(t, "code", doc.Cells[0].CellType)
	assert.Len(t, doc.Cells[0].Outputs, 1)
}

func TestAddMarkdownWithTitle(t *testing.T) {
	s, err := NewSerializer(t.TempDir(), "nb")
	require.NoError(t, err)

	require.NoError(t, s.AddMarkdown("exploratory analysis", "eda"))

	doc := readNotebook(t, s.Path())
	require.Len(t, doc.Cells, 1)
	assert.Equal(t, "markdown", doc.Cells[0].CellType)
	assert.Equal(t, "##### eda:\nexploratory analysis", doc.Cells[0].Source)
}

func TestEmptyCodeCellGetsPlaceholderSource(t *testing.T) {
	s, err := NewSerializer(t.TempDir(), "nb")
	require.NoError(t, err)

	require.NoError(t, s.AddCodeCell("   \n"))

	doc := readNotebook(t, s.Path())
	assert.Equal(t, "# (empty)", doc.Cells[0].Source)
}
