package report

import (
	"encoding/csv"
	"io"

	"smabt/internal/backtest"
)

// WriteCSV writes the combined record table with a header row.
func WriteCSV(w io.Writer, records []backtest.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(recordRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
