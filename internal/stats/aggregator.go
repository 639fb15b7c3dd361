// Package stats ranks extracted records and computes the run summary.
package stats

import (
	"errors"
	"fmt"
	"sort"

	"github.com/propital/dane-automation/internal/domain"
)

// DefaultTopN is how many best-selling references the report covers.
const DefaultTopN = 10

// ErrNoData means aggregation was asked to run on an empty record set.
// Distinct from a legitimate zero sum: empty input means nothing was
// loaded upstream.
var ErrNoData = errors.New("stats: no records to aggregate")

// ErrDivisionUndefined means the share percentage has no defined value
// because the all-products total is zero.
var ErrDivisionUndefined = errors.New("stats: share percentage undefined for zero total")

// TotalQuantity sums the quantity of every record.
func TotalQuantity(records []domain.Record) (int64, error) {
	if len(records) == 0 {
		return 0, ErrNoData
	}
	var total int64
	for _, r := range records {
		total += r.Quantity
	}
	return total, nil
}

// TopN returns the n records with the highest quantity, sorted descending,
// plus the sum of their quantities. The sort is stable: records with equal
// quantity keep their original relative order, so identical input always
// produces identical output. Fewer than n records is not an error; all of
// them are returned.
func TopN(records []domain.Record, n int) ([]domain.Record, int64) {
	ranked := make([]domain.Record, len(records))
	copy(ranked, records)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Quantity > ranked[j].Quantity
	})

	if n < len(ranked) {
		ranked = ranked[:n]
	}

	var total int64
	for _, r := range ranked {
		total += r.Quantity
	}
	return ranked, total
}

// SharePercent returns totalTopN/total*100. No rounding is applied here;
// formatting is the renderer's concern.
func SharePercent(total, totalTopN int64) (float64, error) {
	if total == 0 {
		return 0, ErrDivisionUndefined
	}
	return float64(totalTopN) / float64(total) * 100, nil
}

// Summarize runs the full aggregation for one pipeline run: total over all
// records, the top-n ranking, and the top-n share of the total.
func Summarize(records []domain.Record, n int) ([]domain.Record, domain.SummaryStats, error) {
	total, err := TotalQuantity(records)
	if err != nil {
		return nil, domain.SummaryStats{}, err
	}

	top, totalTop := TopN(records, n)

	share, err := SharePercent(total, totalTop)
	if err != nil {
		return nil, domain.SummaryStats{}, fmt.Errorf("summarize: %w", err)
	}

	return top, domain.SummaryStats{
		TotalAll:  total,
		TotalTopN: totalTop,
		TopShare:  share,
	}, nil
}
