package export

import (
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteXLSX writes rows as a single-sheet workbook: a header row of every
// key, then one row per map. Numbers are numeric cells; NaN and infinities
// are written as text.
func WriteXLSX(w io.Writer, rows []map[string]any) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("data")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	cols := columns(rows)
	header := sheet.AddRow()
	for _, c := range cols {
		header.AddCell().SetString(c)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		for _, c := range cols {
			cell := row.AddCell()
			v, ok := r[c]
			if !ok || v == nil {
				continue
			}
			if f, ok := numeric(v); ok {
				cell.SetFloat(f)
				continue
			}
			cell.SetString(text(v))
		}
	}

	if err := file.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func text(v any) string {
	if m, ok := v.(interface{ MarshalJSON() ([]byte, error) }); ok {
		if b, err := m.MarshalJSON(); err == nil {
			s := string(b)
			if len(s) >= 2 && s[0] == '"' {
				return s[1 : len(s)-1]
			}
			return s
		}
	}
	return fmt.Sprint(v)
}
