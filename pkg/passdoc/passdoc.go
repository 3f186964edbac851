package passdoc

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Document holds the fields rendered onto a printable outpass.
type Document struct {
	Number      int64
	StudentName string
	Hostel      string
	Type        string
	Destination string
	Reason      string
	FromDate    time.Time
	ToDate      time.Time
	ApprovedBy  string
	ApprovedAt  time.Time
	Code        string
}

// Renderer produces the printable PDF for an approved outpass.
type Renderer struct{}

// NewRenderer constructs a renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render creates the PDF document for the pass.
func (r *Renderer) Render(doc Document) ([]byte, error) {
	if doc.Number <= 0 {
		return nil, fmt.Errorf("pass number required")
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 14, 12)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "CAMPUS EXIT PASS", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("No. %d", doc.Number), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	rows := [][2]string{
		{"Student", doc.StudentName},
		{"Hostel", doc.Hostel},
		{"Type", doc.Type},
		{"Destination", doc.Destination},
		{"Reason", doc.Reason},
		{"Departure", doc.FromDate.Format("02 Jan 2006 15:04")},
		{"Return by", doc.ToDate.Format("02 Jan 2006 15:04")},
		{"Approved by", doc.ApprovedBy},
		{"Approved at", doc.ApprovedAt.Format("02 Jan 2006 15:04")},
	}

	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(35, 7, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, row[1], "1", 1, "", false, 0, "")
	}

	if doc.Code != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, "Gate verification code", "", 1, "C", false, 0, "")
		pdf.SetFont("Courier", "", 9)
		pdf.CellFormat(0, 6, doc.Code, "", 1, "C", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Present this pass together with your student ID at the gate.", "", 1, "C", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pass document: %w", err)
	}
	return buf.Bytes(), nil
}
