// Package render holds the rendering capabilities the export pipeline
// consumes. PDF rendering is an external HTML-to-PDF service treated as a
// black box; tabular formats (CSV, XLSX) are produced in-process.
package render

import (
	"context"
	"encoding/json"
)

// Renderer turns a template reference and a data payload into artifact
// bytes, or fails with utils.RenderError (bad template/data) or
// utils.DependencyUnavailableError (rendering service down).
type Renderer interface {
	Render(ctx context.Context, templateRef string, payload []byte) ([]byte, error)
}

// Table is the payload shape the tabular renderers accept.
type Table struct {
	Title   string          `json:"title"`
	Headers []string        `json:"headers"`
	Rows    [][]interface{} `json:"rows"`
}

func DecodeTable(payload []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
