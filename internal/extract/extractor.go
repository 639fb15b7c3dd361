// Package extract parses the DANE "referencias mas vendidas" workbook
// into records. The worksheet layout is a fixed template; every
// positional assumption lives in the constants below so a template
// change is a one-line fix.
package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/propital/dane-automation/internal/domain"
)

// Fixed layout of the source template. Rows and columns are 1-based as
// in the spreadsheet itself.
const (
	// SheetIndex selects the third worksheet of the workbook.
	SheetIndex = 2

	// DataStartRow and DataEndRow bound the contiguous data block
	// (both inclusive). Rows outside are never read.
	DataStartRow = 9
	DataEndRow   = 1354

	ColProduct  = 5  // column E
	ColBrand    = 7  // column G
	ColQuantity = 8  // column H
	ColPrice    = 11 // column K
)

// ErrEmptyExtraction means the configured range produced no records.
// Downstream aggregation cannot proceed on zero records.
var ErrEmptyExtraction = errors.New("extract: no records found in configured range")

// UnreadableFileError means the workbook is absent, corrupt, or does not
// have the expected worksheet.
type UnreadableFileError struct {
	Path string
	Err  error
}

func (e *UnreadableFileError) Error() string {
	return fmt.Sprintf("extract: unreadable workbook %q: %v", e.Path, e.Err)
}

func (e *UnreadableFileError) Unwrap() error { return e.Err }

// Extractor reads the fixed-layout worksheet into domain records.
type Extractor struct {
	log zerolog.Logger
}

// NewExtractor creates a new Extractor.
func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

// Parse opens the workbook at path and returns one record per row in the
// data block whose quantity cell is non-empty, in original row order.
func (e *Extractor) Parse(path string) ([]domain.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &UnreadableFileError{Path: path, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) <= SheetIndex {
		return nil, &UnreadableFileError{
			Path: path,
			Err:  fmt.Errorf("workbook has %d sheets, need at least %d", len(sheets), SheetIndex+1),
		}
	}
	sheet := sheets[SheetIndex]

	var records []domain.Record
	for row := DataStartRow; row <= DataEndRow; row++ {
		quantity, ok, err := e.quantityAt(f, sheet, row)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		product, err := cellAt(f, sheet, ColProduct, row)
		if err != nil {
			return nil, err
		}
		brand, err := cellAt(f, sheet, ColBrand, row)
		if err != nil {
			return nil, err
		}
		price, err := cellAt(f, sheet, ColPrice, row)
		if err != nil {
			return nil, err
		}

		records = append(records, domain.Record{
			Product:  product,
			Brand:    brand,
			Quantity: quantity,
			Price:    price,
		})
	}

	if len(records) == 0 {
		return nil, ErrEmptyExtraction
	}

	e.log.Info().
		Str("path", path).
		Str("sheet", sheet).
		Int("records", len(records)).
		Msg("Workbook extracted")

	return records, nil
}

// quantityAt reads the quantity cell for a row. A row belongs to the
// result iff this cell holds a numeric value; blank and non-numeric
// cells exclude the row.
func (e *Extractor) quantityAt(f *excelize.File, sheet string, row int) (int64, bool, error) {
	raw, err := cellAt(f, sheet, ColQuantity, row)
	if err != nil {
		return 0, false, err
	}
	if raw == "" {
		return 0, false, nil
	}

	// The template stores quantities as numbers, but excelize hands back
	// display text, so a value can arrive as "80" or "80.0".
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		e.log.Warn().Int("row", row).Str("value", raw).Msg("Skipping row with non-numeric quantity")
		return 0, false, nil
	}
	return int64(v), true, nil
}

func cellAt(f *excelize.File, sheet string, col, row int) (string, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", fmt.Errorf("extract: cell name for (%d,%d): %w", col, row, err)
	}
	v, err := f.GetCellValue(sheet, name)
	if err != nil {
		return "", fmt.Errorf("extract: read cell %s: %w", name, err)
	}
	return strings.TrimSpace(v), nil
}
