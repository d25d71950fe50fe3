package render

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mmdatafocus/docgen_backend/resilience"
	"github.com/mmdatafocus/docgen_backend/utils"
	"github.com/xuri/excelize/v2"
)

func tablePayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(&Table{
		Title:   "Sales Statistics",
		Headers: []string{"branch", "total"},
		Rows: [][]interface{}{
			{"Yangon", 1250.5},
			{"Mandalay", 830},
		},
	})
	if err != nil {
		t.Fatalf("marshal table: %v", err)
	}
	return payload
}

func TestCSVRendererWritesHeaderAndRows(t *testing.T) {
	out, err := NewCSVRenderer().Render(context.Background(), "sales-stat-CSV", tablePayload(t))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), out)
	}
	if lines[0] != "branch,total" {
		t.Fatalf("header line = %q", lines[0])
	}
	if lines[1] != "Yangon,1250.5" {
		t.Fatalf("first row = %q", lines[1])
	}
}

func TestCSVRendererRejectsMalformedPayload(t *testing.T) {
	_, err := NewCSVRenderer().Render(context.Background(), "sales-stat-CSV", []byte("not json"))
	if !utils.IsRenderError(err) {
		t.Fatalf("expected RenderError, got %v", err)
	}
}

func TestExcelRendererProducesReadableWorkbook(t *testing.T) {
	out, err := NewExcelRenderer().Render(context.Background(), "sales-stat-XLSX", tablePayload(t))
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a readable workbook: %v", err)
	}
	defer f.Close()

	header, err := f.GetCellValue("Sheet1", "A1")
	if err != nil || header != "branch" {
		t.Fatalf("A1 = %q (%v), want branch", header, err)
	}
	cell, err := f.GetCellValue("Sheet1", "B2")
	if err != nil || cell != "1250.5" {
		t.Fatalf("B2 = %q (%v), want 1250.5", cell, err)
	}
}

// fixedCaller answers every render call with one canned response.
type fixedCaller struct {
	resp *resilience.Response
}

func (c *fixedCaller) Call(ctx context.Context, req resilience.Request) (*resilience.Response, error) {
	return c.resp, nil
}

func pdfPolicy() resilience.Policy {
	return resilience.DefaultPolicy("pdf-renderer", "http://pdf.local")
}

func TestPDFServiceReturnsDocumentBytes(t *testing.T) {
	caller := &fixedCaller{resp: &resilience.Response{StatusCode: 200, Body: []byte("%PDF-1.7")}}
	svc := NewPDFServiceWithCaller(pdfPolicy(), caller, nil)

	out, err := svc.Render(context.Background(), "invoice-PDF", tablePayload(t))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(out) != "%PDF-1.7" {
		t.Fatalf("unexpected document %q", out)
	}
}

func TestPDFServiceMapsRejectionToRenderError(t *testing.T) {
	caller := &fixedCaller{resp: &resilience.Response{StatusCode: 422, Body: []byte("unknown template_ref")}}
	svc := NewPDFServiceWithCaller(pdfPolicy(), caller, nil)

	_, err := svc.Render(context.Background(), "invoice-PDF", tablePayload(t))
	if !utils.IsRenderError(err) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown template_ref") {
		t.Fatalf("rejection detail lost: %v", err)
	}
}

func TestPDFServiceRejectsEmptyDocument(t *testing.T) {
	caller := &fixedCaller{resp: &resilience.Response{StatusCode: 200}}
	svc := NewPDFServiceWithCaller(pdfPolicy(), caller, nil)

	_, err := svc.Render(context.Background(), "invoice-PDF", tablePayload(t))
	if !utils.IsRenderError(err) {
		t.Fatalf("expected RenderError for empty body, got %v", err)
	}
}
