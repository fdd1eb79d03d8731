package report

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/tbourn/leaktrack-backend/internal/domain"
)

// CSVHeader is the fixed column order of the inspection export.
var CSVHeader = []string{
	"Chassis No",
	"Product Line",
	"Model",
	"Leakage",
	"Severity",
	"Status",
	"Tester",
	"Timestamp",
}

// ExportRow is one line of the inspection export.
type ExportRow struct {
	ChassisNumber   string
	ProductLineCode string
	ModelCode       string
	LeakageCode     string
	Severity        string
	Status          string
	TesterName      string
	CreatedAt       time.Time
}

// ExportRowFromInspection flattens an inspection preloaded with
// Machine.Model.ProductLine, LeakageType and Tester. Missing relations leave
// their columns empty.
func ExportRowFromInspection(in domain.InspectionRecord) ExportRow {
	row := ExportRow{
		Severity:  in.Severity,
		Status:    in.Status,
		CreatedAt: in.CreatedAt,
	}
	if m := in.Machine; m != nil {
		row.ChassisNumber = m.ChassisNumber
		if m.Model != nil {
			row.ModelCode = m.Model.Code
			if m.Model.ProductLine != nil {
				row.ProductLineCode = m.Model.ProductLine.Code
			}
		}
	}
	if in.LeakageType != nil {
		row.LeakageCode = in.LeakageType.Code
	}
	if in.Tester != nil {
		row.TesterName = in.Tester.FullName
	}
	return row
}

// WriteCSV writes the header followed by rows. Timestamps are RFC 3339 in
// UTC.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.ChassisNumber,
			r.ProductLineCode,
			r.ModelCode,
			r.LeakageCode,
			r.Severity,
			r.Status,
			r.TesterName,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
