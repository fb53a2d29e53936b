// Package notebook persists the session's execution transcript as a
// minimal nbformat-4 .ipynb file: code cells, their text/error/image
// outputs, and markdown section headers.
package notebook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type output struct {
	OutputType string            `json:"output_type"`
	Data       map[string]string `json:"data,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	EName      string            `json:"ename,omitempty"`
	EValue     string            `json:"evalue,omitempty"`
	Traceback  []string          `json:"traceback,omitempty"`
}

type cell struct {
	CellType       string         `json:"cell_type"`
	Source         string         `json:"source"`
	Metadata       map[string]any `json:"metadata"`
	ExecutionCount *int           `json:"execution_count"`
	Outputs        []output       `json:"outputs"`
}

type document struct {
	Cells         []*cell        `json:"cells"`
	Metadata      map[string]any `json:"metadata"`
	NBFormat      int            `json:"nbformat"`
	NBFormatMinor int            `json:"nbformat_minor"`
}

// Serializer accumulates cells and rewrites the notebook file after
// every mutation, so the transcript survives a crash mid-task.
type Serializer struct {
	path string
	doc  document
}

// NewSerializer creates the notebook under workDir, appending the
// .ipynb extension if name lacks it.
func NewSerializer(workDir, name string) (*Serializer, error) {
	if !strings.EqualFold(filepath.Ext(name), ".ipynb") {
		name += ".ipynb"
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("create notebook directory: %w", err)
	}

	s := &Serializer{
		path: filepath.Join(workDir, name),
		doc: document{
			Cells:         []*cell{},
			Metadata:      map[string]any{},
			NBFormat:      4,
			NBFormatMinor: 5,
		},
	}
	return s, s.write()
}

// Path returns the notebook file location.
func (s *Serializer) Path() string {
	return s.path
}

// AddCodeCell appends a new code cell.
func (s *Serializer) AddCodeCell(code string) error {
	if strings.TrimSpace(code) == "" {
		code = "# (empty)"
	}
	s.doc.Cells = append(s.doc.Cells, &cell{
		CellType: "code",
		Source:   code,
		Metadata: map[string]any{},
		Outputs:  []output{},
	})
	return s.write()
}

// AddCodeCellOutput attaches a text output to the last code cell.
func (s *Serializer) AddCodeCellOutput(text string) error {
	c := s.lastCodeCell()
	c.Outputs = append(c.Outputs, output{
		OutputType: "display_data",
		Data:       map[string]string{"text/plain": text},
		Metadata:   map[string]any{},
	})
	return s.write()
}

// AddCodeCellError attaches an error output to the last code cell.
func (s *Serializer) AddCodeCellError(text string) error {
	evalue := "Error"
	if lines := strings.SplitN(text, "\n", 2); len(lines) > 0 && lines[0] != "" {
		evalue = lines[0]
	}
	c := s.lastCodeCell()
	c.Outputs = append(c.Outputs, output{
		OutputType: "error",
		EName:      "ExecutionError",
		EValue:     evalue,
		Traceback:  []string{text},
	})
	return s.write()
}

// AddImage attaches a base64 image output to the last code cell.
func (s *Serializer) AddImage(base64Data, mimeType string) error {
	c := s.lastCodeCell()
	c.Outputs = append(c.Outputs, output{
		OutputType: "display_data",
		Data:       map[string]string{mimeType: base64Data},
		Metadata:   map[string]any{},
	})
	return s.write()
}

// AddMarkdown appends a markdown cell, optionally with a title heading.
func (s *Serializer) AddMarkdown(content, title string) error {
	if title != "" {
		content = "##### " + title + ":\n" + content
	}
	s.doc.Cells = append(s.doc.Cells, &cell{
		CellType: "markdown",
		Source:   content,
		Metadata: map[string]any{},
	})
	return s.write()
}

// lastCodeCell returns the trailing code cell, creating a placeholder
// if outputs arrive before any code was recorded.
func (s *Serializer) lastCodeCell() *cell {
	if n := len(s.doc.Cells); n > 0 && s.doc.Cells[n-1].CellType == "code" {
		return s.doc.Cells[n-1]
	}
	c := &cell{
		CellType: "code",
		Source:   "# auto-created cell for outputs",
		Metadata: map[string]any{},
		Outputs:  []output{},
	}
	s.doc.Cells = append(s.doc.Cells, c)
	return c
}

func (s *Serializer) write() error {
	data, err := json.MarshalIndent(s.doc, "", " ")
	if err != nil {
		return fmt.Errorf("marshal notebook: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write notebook: %w", err)
	}
	return nil
}
