package classify

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/blueray32/bimcalc/internal/domain"
	"github.com/blueray32/bimcalc/internal/normalize"
)

// loadCuratedList reads an operator-maintained classification table from a
// CSV or XLSX file. Expected columns: family, type (optional), code. Rows
// with a type are keyed "family|type", rows without are keyed by family.
func loadCuratedList(path string) (map[string]int, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSVRows(path)
	case ".xlsx":
		rows, err = readXLSXRows(path)
	default:
		return nil, &domain.ConfigurationError{Message: fmt.Sprintf("unsupported curated list format %s", path)}
	}
	if err != nil {
		return nil, &domain.ConfigurationError{Message: fmt.Sprintf("read curated list %s", path), Err: err}
	}

	entries := make(map[string]int, len(rows))
	for i, row := range rows {
		if i == 0 && isHeaderRow(row) {
			continue
		}
		if len(row) < 2 {
			continue
		}

		family := normalize.Text(row[0])
		if family == "" {
			continue
		}

		codeCell := row[len(row)-1]
		code, convErr := strconv.Atoi(strings.TrimSpace(codeCell))
		if convErr != nil {
			return nil, &domain.ConfigurationError{
				Message: fmt.Sprintf("curated list %s row %d: bad code %q", path, i+1, codeCell),
			}
		}

		key := family
		if len(row) >= 3 {
			if typeName := normalize.Text(row[1]); typeName != "" {
				key = family + "|" + typeName
			}
		}
		entries[key] = code
	}

	return entries, nil
}

func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(row[len(row)-1]))
	return err != nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}
