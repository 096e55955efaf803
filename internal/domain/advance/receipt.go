package advance

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Receipt renders a one-page PDF confirming an advance and its fee split.
func Receipt(adv Advance, companyName string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	// core fonts are cp1252; names carry accents
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Salary advance receipt")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Reference: %s", adv.ID),
		tr(fmt.Sprintf("Company: %s", companyName)),
		tr(fmt.Sprintf("Employee: %s (%s)", adv.EmployeeName, adv.EmployeeCedula)),
		fmt.Sprintf("Requested on: %s", adv.CreatedAt.Format("2006-01-02 15:04")),
		fmt.Sprintf("Status: %s", adv.Status),
	}
	for _, line := range lines {
		pdf.Cell(0, 8, line)
		pdf.Ln(7)
	}
	pdf.Ln(4)
	pdf.Cell(0, 8, fmt.Sprintf("Requested: %s", adv.RequestedAmount.StringFixed(2)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Fee: %s", adv.FeeAmount.StringFixed(2)))
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Net disbursed: %s", adv.NetAmount.StringFixed(2)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
