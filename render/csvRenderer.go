package render

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/mmdatafocus/docgen_backend/utils"
)

// CSVRenderer produces plain CSV from tabular report data.
type CSVRenderer struct{}

func NewCSVRenderer() *CSVRenderer { return &CSVRenderer{} }

func (r *CSVRenderer) Render(ctx context.Context, templateRef string, payload []byte) ([]byte, error) {
	table, err := DecodeTable(payload)
	if err != nil {
		return nil, &utils.RenderError{TemplateRef: templateRef, Message: "invalid table payload: " + err.Error()}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if len(table.Headers) > 0 {
		if err := w.Write(table.Headers); err != nil {
			return nil, &utils.RenderError{TemplateRef: templateRef, Message: err.Error()}
		}
	}
	for _, row := range table.Rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprint(v)
		}
		if err := w.Write(record); err != nil {
			return nil, &utils.RenderError{TemplateRef: templateRef, Message: err.Error()}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, &utils.RenderError{TemplateRef: templateRef, Message: err.Error()}
	}
	return buf.Bytes(), nil
}
