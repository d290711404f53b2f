// Package reporting renders an on-demand PDF summary of tracked
// captures: header, stat grid, crackable-network table, footer.
package reporting

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/corvidlabs/corvid/internal/core/domain"
)

// PDFExporter exports capture reports to PDF format.
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportCaptureReport renders a one-page PDF summary of the current
// capture counters and the list of crackable networks. Failure to
// render is the caller's to log; it never affects the counters
// themselves.
func (e *PDFExporter) ExportCaptureReport(req *domain.CaptureReportRequest) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, req)
	e.addStatistics(pdf, req)
	e.addCrackableTable(pdf, req)
	e.addFooter(pdf, req)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("reporting: generate pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, req *domain.CaptureReportRequest) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 15, "Capture Report", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	dateStr := fmt.Sprintf("Generated: %s", req.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.CellFormat(0, 6, dateStr, "", 1, "L", false, 0, "")
	pdf.Ln(8)
}

// addStatistics adds the FHS/PHS/PWDS/TCAPS counter grid.
func (e *PDFExporter) addStatistics(pdf *gofpdf.Fpdf, req *domain.CaptureReportRequest) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Capture Overview", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	stats := []struct {
		label string
		value int
		color []int
	}{
		{"Full Handshakes (FHS)", req.Fhs, []int{52, 199, 89}},
		{"Partial Handshakes (PHS)", req.Phs, []int{255, 204, 0}},
		{"Passwords Cracked (PWDS)", req.Pwds, []int{0, 102, 204}},
		{"Total Captures (TCAPS)", req.Tcaps, []int{100, 100, 100}},
	}

	colWidth := 85.0
	for i, stat := range stats {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}
		pdf.SetXY(x, pdf.GetY())

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(55, 7, stat.label+":", "", 0, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(stat.color[0], stat.color[1], stat.color[2])
		pdf.CellFormat(colWidth-55, 7, fmt.Sprintf("%d", stat.value), "", 0, "R", false, 0, "")

		if i%2 == 1 {
			pdf.Ln(7)
		}
	}
	pdf.Ln(10)
}

// addCrackableTable lists every network validated as crackable at
// report time.
func (e *PDFExporter) addCrackableTable(pdf *gofpdf.Fpdf, req *domain.CaptureReportRequest) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Crackable Networks", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(req.Crackable) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No crackable networks identified", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(70, 8, "BSSID", "1", 0, "L", true, 0, "")
	pdf.CellFormat(120, 8, "SSID", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(60, 60, 60)
	for _, n := range req.Crackable {
		pdf.CellFormat(70, 7, n.BSSID.String(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(120, 7, n.SSID, "1", 1, "L", false, 0, "")
	}
	pdf.Ln(8)
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, req *domain.CaptureReportRequest) {
	pdf.SetY(-20)
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 5, "Generated by corvid", "", 1, "C", false, 0, "")
}
