// Package report renders the ranked records into the CSV artifact.
package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/propital/dane-automation/internal/domain"
)

// FileName is the fixed name of the rendered report inside the download
// directory. One artifact per run, overwritten each time.
const FileName = "top_10_best_sellers.csv"

// placeholder stands in for a blank product or brand cell.
const placeholder = "N/A"

var header = []string{"Nombre del Producto", "Marca", "Cantidad", "Precio"}

// WriteError means the report file could not be created or written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("report: write %q: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Renderer writes the top-sellers CSV.
type Renderer struct {
	dir string
	log zerolog.Logger
}

// NewRenderer creates a Renderer writing into dir.
func NewRenderer(dir string, log zerolog.Logger) *Renderer {
	return &Renderer{dir: dir, log: log}
}

// Path returns where the report is written.
func (r *Renderer) Path() string {
	return filepath.Join(r.dir, FileName)
}

// Render writes one row per record plus a final TOTAL row carrying the
// sum of the rendered prices rounded to two decimals. Blank product or
// brand cells render as a placeholder; a price that does not parse as a
// number renders as 0 instead of failing the row. Rendering the same
// input twice overwrites the file with identical bytes.
func (r *Renderer) Render(records []domain.Record) (string, error) {
	path := r.Path()

	f, err := os.Create(path)
	if err != nil {
		return "", &WriteError{Path: path, Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}

	var totalPrice float64
	for _, rec := range records {
		price := coercePrice(rec.Price)
		totalPrice += price

		row := []string{
			orPlaceholder(rec.Product),
			orPlaceholder(rec.Brand),
			strconv.FormatInt(rec.Quantity, 10),
			formatPrice(price),
		}
		if err := w.Write(row); err != nil {
			return "", &WriteError{Path: path, Err: err}
		}
	}

	total := math.Round(totalPrice*100) / 100
	if err := w.Write([]string{"TOTAL", "", "", formatPrice(total)}); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}

	r.log.Info().Str("path", path).Int("rows", len(records)).Msg("Report rendered")
	return path, nil
}

func coercePrice(raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
