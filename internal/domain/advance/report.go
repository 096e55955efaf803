package advance

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var reportHeader = []string{"id", "employee", "cedula", "requested", "fee", "net", "status", "created_at"}

func reportRow(adv Advance) []string {
	return []string{
		adv.ID,
		adv.EmployeeName,
		adv.EmployeeCedula,
		adv.RequestedAmount.StringFixed(2),
		adv.FeeAmount.StringFixed(2),
		adv.NetAmount.StringFixed(2),
		string(adv.Status),
		adv.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

type Report struct {
	Filename    string
	ContentType string
	Body        []byte
}

func BuildReport(advances []Advance, format string) (Report, error) {
	switch format {
	case "", FormatCSV:
		body, err := buildCSV(advances)
		return Report{Filename: "advances.csv", ContentType: "text/csv", Body: body}, err
	case FormatXLSX:
		body, err := buildXLSX(advances)
		return Report{
			Filename:    "advances.xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Body:        body,
		}, err
	}
	return Report{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

func buildCSV(advances []Advance) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(reportHeader); err != nil {
		return nil, err
	}
	for _, adv := range advances {
		if err := writer.Write(reportRow(adv)); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

func buildXLSX(advances []Advance) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Advances"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &reportHeader); err != nil {
		return nil, err
	}
	for i, adv := range advances {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := reportRow(adv)
		values := make([]any, len(row))
		for j, value := range row {
			values[j] = value
		}
		// amounts as numbers so the sheet can sum them
		values[3] = adv.RequestedAmount.InexactFloat64()
		values[4] = adv.FeeAmount.InexactFloat64()
		values[5] = adv.NetAmount.InexactFloat64()
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
