package render

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/docgen_backend/utils"
	"github.com/xuri/excelize/v2"
)

// ExcelRenderer produces XLSX workbooks from tabular report data.
type ExcelRenderer struct{}

func NewExcelRenderer() *ExcelRenderer { return &ExcelRenderer{} }

func (r *ExcelRenderer) Render(ctx context.Context, templateRef string, payload []byte) ([]byte, error) {
	table, err := DecodeTable(payload)
	if err != nil {
		return nil, &utils.RenderError{TemplateRef: templateRef, Message: "invalid table payload: " + err.Error()}
	}

	f := excelize.NewFile()
	defer f.Close()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return nil, &utils.RenderError{TemplateRef: templateRef, Message: err.Error()}
	}

	for col, h := range table.Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, &utils.RenderError{TemplateRef: templateRef, Message: err.Error()}
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, &utils.RenderError{TemplateRef: templateRef, Message: err.Error()}
		}
	}

	for i, row := range table.Rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, &utils.RenderError{TemplateRef: templateRef, Message: err.Error()}
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, &utils.RenderError{TemplateRef: templateRef, Message: fmt.Sprintf("row %d col %d: %v", i, col, err)}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, &utils.RenderError{TemplateRef: templateRef, Message: err.Error()}
	}
	return buf.Bytes(), nil
}
