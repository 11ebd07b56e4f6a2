package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/models"
)

// metadata sheets skipped when looking for the data sheet
var skipSheets = map[string]bool{
	"info":     true,
	"metadata": true,
	"about":    true,
	"readme":   true,
	"notes":    true,
}

// LoadTable reads a spreadsheet or CSV file fully into memory. The first row is the header.
func LoadTable(filePath string) (*models.Table, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".xlsx", ".xlsm":
		return parseXLSX(filePath)
	case ".csv":
		return parseCSV(filePath, ',')
	case ".tsv":
		return parseCSV(filePath, '\t')
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func parseXLSX(filePath string) (*models.Table, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := dataSheet(f.GetSheetList())
	if sheet == "" {
		return nil, fmt.Errorf("no sheets in %s", filePath)
	}
	log.Debug().Str("sheet", sheet).Msg("Reading sheet")

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var header []string
	var data [][]any
	rowNum := 0
	for rows.Next() {
		rowNum++
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowNum, err)
		}
		if header == nil {
			header = normalizeHeader(cols)
			continue
		}
		values := make([]any, len(header))
		for i := 0; i < len(header) && i < len(cols); i++ {
			values[i] = cellValue(f, sheet, i+1, rowNum, cols[i])
		}
		data = append(data, values)
	}
	if err := rows.Error(); err != nil {
		return nil, err
	}
	if header == nil {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}
	return models.NewTable(header, data), nil
}

func dataSheet(sheets []string) string {
	for _, s := range sheets {
		if !skipSheets[strings.ToLower(s)] {
			return s
		}
	}
	// all sheets look like metadata, use the last one
	if len(sheets) > 0 {
		return sheets[len(sheets)-1]
	}
	return ""
}

// cellValue maps a raw cell to nil, float64 or string. Only cells stored as numbers become
// float64; numeric-looking text stays text.
func cellValue(f *excelize.File, sheet string, col, row int, raw string) any {
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return raw
	}
	if typ == excelize.CellTypeUnset || typ == excelize.CellTypeNumber {
		return n
	}
	return raw
}

func normalizeHeader(cols []string) []string {
	header := make([]string, len(cols))
	for i, c := range cols {
		c = strings.TrimSpace(c)
		if c == "" {
			c = fmt.Sprintf("Unnamed: %d", i)
		}
		header[i] = c
	}
	return header
}

func parseCSV(filePath string, comma rune) (*models.Table, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	header = normalizeHeader(header)

	var data [][]any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		values := make([]any, len(header))
		for i := 0; i < len(header) && i < len(record); i++ {
			if record[i] != "" {
				values[i] = record[i]
			}
		}
		data = append(data, values)
	}
	return models.NewTable(header, data), nil
}
