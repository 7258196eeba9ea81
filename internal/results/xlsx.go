package results

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/forecourt/internal/model"
)

// DefaultSheet names the worksheet used when none is configured.
const DefaultSheet = "results"

// XLSXTable stores results in one worksheet of a spreadsheet file. Every
// append rewrites the workbook, which is fine at one row per API call.
type XLSXTable struct {
	path  string
	sheet string
}

// NewXLSXTable returns a table backed by the named sheet of path.
func NewXLSXTable(path, sheet string) *XLSXTable {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &XLSXTable{path: path, sheet: sheet}
}

// Path returns the workbook backing the table.
func (t *XLSXTable) Path() string { return t.path }

func (t *XLSXTable) SiteIDs(ctx context.Context) ([]string, error) {
	return siteIDs(ctx, t)
}

func (t *XLSXTable) List(_ context.Context) ([]model.InferenceResult, error) {
	ok, err := exists(t.path)
	if err != nil || !ok {
		return nil, err
	}

	f, err := xlsx.OpenFile(t.path)
	if err != nil {
		return nil, eris.Wrapf(err, "results: open %s", t.path)
	}
	sheet, ok := f.Sheet[t.sheet]
	if !ok || len(sheet.Rows) == 0 {
		return nil, nil
	}

	header := rowToStrings(sheet.Rows[0])
	var out []model.InferenceResult
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		vals := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(cells) {
				vals[col] = cells[i]
			}
		}
		rec := recordFromValues(vals)
		if strings.TrimSpace(rec.SiteID) == "" {
			continue
		}
		out = append(out, rec.result())
	}
	return out, nil
}

// Append rewrites the workbook with res added as the last row.
func (t *XLSXTable) Append(_ context.Context, res model.InferenceResult) error {
	if res.SiteID == "" {
		return eris.New("results: append row without SiteID")
	}
	return t.appendRows([]model.InferenceResult{res})
}

func (t *XLSXTable) appendRows(rows []model.InferenceResult) error {
	f, sheet, header, err := t.open()
	if err != nil {
		return err
	}
	for _, res := range rows {
		addRow(sheet, toRecord(res).row(header))
	}
	if err := f.Save(t.path); err != nil {
		return eris.Wrapf(err, "results: save %s", t.path)
	}
	return nil
}

// open loads the workbook, creating it (and the header row) when absent.
func (t *XLSXTable) open() (*xlsx.File, *xlsx.Sheet, []string, error) {
	ok, err := exists(t.path)
	if err != nil {
		return nil, nil, nil, err
	}

	var f *xlsx.File
	if ok {
		f, err = xlsx.OpenFile(t.path)
		if err != nil {
			return nil, nil, nil, eris.Wrapf(err, "results: open %s", t.path)
		}
	} else {
		f = xlsx.NewFile()
	}

	if sheet, found := f.Sheet[t.sheet]; found && len(sheet.Rows) > 0 {
		return f, sheet, rowToStrings(sheet.Rows[0]), nil
	}

	sheet, found := f.Sheet[t.sheet]
	if !found {
		sheet, err = f.AddSheet(t.sheet)
		if err != nil {
			return nil, nil, nil, eris.Wrapf(err, "results: add sheet %s", t.sheet)
		}
	}
	addRow(sheet, model.ResultColumns)
	return f, sheet, model.ResultColumns, nil
}

// WriteXLSX writes rows to a fresh workbook at path.
func WriteXLSX(path, sheet string, rows []model.InferenceResult) error {
	t := NewXLSXTable(path, sheet)
	f := xlsx.NewFile()
	s, err := f.AddSheet(t.sheet)
	if err != nil {
		return eris.Wrapf(err, "results: add sheet %s", t.sheet)
	}
	addRow(s, model.ResultColumns)
	for _, res := range rows {
		addRow(s, toRecord(res).row(model.ResultColumns))
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "results: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
