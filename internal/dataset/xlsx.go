// Package dataset decodes and exports the spreadsheet artifacts exchanged
// with the analysis service. The service speaks xlsx; this package turns the
// keyword workbook into typed rows and writes report exports.
package dataset

import (
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/civiclens/appeals-cli/internal/model"
)

// Column names the summarization stage writes into its output workbook.
const (
	colCluster  = "Cluster"
	colKeywords = "LLM_Keywords"
	colCount    = "Count"
)

// DecodeClusterRows parses the keyword workbook produced by the summarization
// stage into typed rows. The first sheet's first row is the header; Cluster
// and LLM_Keywords are required, Count is optional. Rows whose cluster cell
// is blank or non-numeric are skipped.
func DecodeClusterRows(data []byte) ([]model.ClusterRow, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("dataset: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("dataset: workbook sheet is empty")
	}

	header := rowStrings(sheet.Rows[0])
	idx := headerIndex(header)

	clusterIdx, ok := idx[colCluster]
	if !ok {
		return nil, missingColumn(colCluster, header)
	}
	keywordIdx, ok := idx[colKeywords]
	if !ok {
		return nil, missingColumn(colKeywords, header)
	}
	countIdx, hasCount := idx[colCount]

	var rows []model.ClusterRow
	for _, r := range sheet.Rows[1:] {
		cells := rowStrings(r)

		cluster, ok := cellInt(cellAt(cells, clusterIdx))
		if !ok {
			continue
		}

		row := model.ClusterRow{
			Cluster: cluster,
			Keyword: cellAt(cells, keywordIdx),
		}
		if hasCount {
			if n, ok := cellInt(cellAt(cells, countIdx)); ok {
				row.Count = &n
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// ReadClusterRowsFile reads an xlsx file from disk and decodes it with
// DecodeClusterRows.
func ReadClusterRowsFile(path string) ([]model.ClusterRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	return DecodeClusterRows(data)
}

// Preview returns up to limit rows of the workbook's first sheet, header
// included, each cell rendered as a trimmed string. A limit of zero or less
// returns every row.
func Preview(data []byte, limit int) ([][]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("dataset: workbook has no sheets")
	}

	var out [][]string
	for _, r := range f.Sheets[0].Rows {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, rowStrings(r))
	}
	return out, nil
}

func missingColumn(name string, header []string) error {
	return eris.Errorf("dataset: required column %q not found (workbook has: %s)",
		name, strings.Join(header, ", "))
}

// headerIndex maps each header name to its column position. The first
// occurrence of a duplicated name wins.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		if _, ok := idx[name]; !ok {
			idx[name] = i
		}
	}
	return idx
}

func rowStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = strings.TrimSpace(cell.String())
	}
	return cells
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

// cellInt parses a cell as an integer. Numeric cells round-trip through
// floats ("2.0") when the sheet was written by a dataframe library.
func cellInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}
