package cleaning

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hellojin97/copilot-ci-automation/internal/dataset"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ImputePolicy decides what happens to a row whose quantity is missing and
// has no same-product peers to impute from.
type ImputePolicy string

const (
	// ImputeExclude keeps the row out of the validated table and records a warning.
	ImputeExclude ImputePolicy = "exclude"
	// ImputeGlobalMean falls back to the mean quantity over every row that has one.
	ImputeGlobalMean ImputePolicy = "global_mean"
	// ImputeDrop removes the row without a warning.
	ImputeDrop ImputePolicy = "drop"
)

// ParseImputePolicy validates a policy name.
func ParseImputePolicy(s string) (ImputePolicy, error) {
	switch p := ImputePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ImputeExclude, ImputeGlobalMean, ImputeDrop:
		return p, nil
	case "":
		return ImputeExclude, nil
	default:
		return "", fmt.Errorf("invalid impute policy: %s (use exclude, global_mean or drop)", s)
	}
}

// Options holds the repair constants that the export defects are checked against.
type Options struct {
	// FallbackDate replaces dates exported in scientific notation.
	FallbackDate time.Time
	// PlaceholderProductID marks rows that are known bad exports.
	PlaceholderProductID string
	// UnknownSalesperson labels rows with no salesperson.
	UnknownSalesperson string
	ImputePolicy       ImputePolicy
}

// DefaultOptions returns the constants used by the sales export.
func DefaultOptions() Options {
	return Options{
		FallbackDate:         time.Date(2025, time.September, 22, 0, 0, 0, 0, time.UTC),
		PlaceholderProductID: "P0000",
		UnknownSalesperson:   "Unknown",
		ImputePolicy:         ImputeExclude,
	}
}

// Transaction is a validated sales row.
type Transaction struct {
	OrderID     string
	Date        time.Time
	ProductID   string
	ProductName string
	Category    string
	Region      string
	Salesperson string
	Quantity    int64
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	// Imputed is set when Quantity was derived rather than read.
	Imputed bool
}

// Stats counts the corrections applied by Clean.
type Stats struct {
	InputRows            int
	DatesRepaired        int
	TextNormalized       int
	InvalidRemoved       int
	QuantitiesImputed    int
	QuantitiesUnresolved int
	TotalsRecomputed     int
	SalespersonFilled    int
}

// Result is the validated table plus the correction log.
type Result struct {
	Transactions []Transaction
	Stats        Stats
	// Notes are human-readable lines for the data-quality section.
	Notes []string
	// Warnings describe rows that could not be repaired.
	Warnings []string
}

var scientific = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)[eE][-+]?\d+$`)

// IsScientific reports whether v is rendered in exponential notation.
func IsScientific(v string) bool {
	return scientific.MatchString(strings.TrimSpace(v))
}

var dateLayouts = []string{
	"2006-01-02", "2006/01/02", "01/02/2006", "1/2/2006", time.RFC3339,
	"2006-01-02 15:04:05", "2006-01-02 15:04", "1/2/2006 15:04", "1/2/2006 15:04:05",
}

// ParseDate parses v with the accepted layouts and truncates it to a calendar date.
func ParseDate(v string) (time.Time, bool) {
	s := strings.TrimSpace(v)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

type row struct {
	rec      dataset.Record
	date     time.Time
	qty      float64
	hasQty   bool
	imputed  bool
	excluded bool
}

// Clean applies the repair rules in order: date repair, text normalization,
// invalid-row removal, quantity imputation, total recompute and salesperson
// fallback.
func Clean(ctx context.Context, t *dataset.Table, opt Options) (*Result, error) {
	log := zerolog.Ctx(ctx)
	if opt.PlaceholderProductID == "" && opt.UnknownSalesperson == "" && opt.FallbackDate.IsZero() {
		opt = DefaultOptions()
	}
	if opt.ImputePolicy == "" {
		opt.ImputePolicy = ImputeExclude
	}
	res := &Result{}
	res.Stats.InputRows = t.Len()

	rows := make([]*row, 0, t.Len())
	for _, rec := range t.Records {
		rows = append(rows, &row{rec: rec})
	}

	// 1. dates
	fallback := opt.FallbackDate.Format("2006-01-02")
	for _, r := range rows {
		if IsScientific(r.rec.Date) {
			r.rec.Date = fallback
			res.Stats.DatesRepaired++
		}
		d, ok := ParseDate(r.rec.Date)
		if !ok {
			return nil, &DataFormatError{Row: r.rec.Line, Column: dataset.ColDate, Value: r.rec.Date, Err: errUnparseableDate}
		}
		r.date = d
	}
	if n := res.Stats.DatesRepaired; n > 0 {
		log.Info().Int("count", n).Str("fallback", fallback).Msg("repaired scientific-notation dates")
	}

	// 2. title case
	caser := cases.Title(language.Und)
	for _, r := range rows {
		for _, f := range []*string{&r.rec.Category, &r.rec.ProductName, &r.rec.Salesperson} {
			if *f == "" {
				continue
			}
			if v := caser.String(*f); v != *f {
				*f = v
				res.Stats.TextNormalized++
			}
		}
	}

	// 3. placeholder products
	kept := rows[:0]
	for _, r := range rows {
		if r.rec.ProductID == opt.PlaceholderProductID {
			res.Stats.InvalidRemoved++
			continue
		}
		kept = append(kept, r)
	}
	rows = kept
	if n := res.Stats.InvalidRemoved; n > 0 {
		log.Info().Int("count", n).Str("product_id", opt.PlaceholderProductID).Msg("removed placeholder product rows")
	}

	// 4. quantities
	if err := imputeQuantities(rows, opt, res); err != nil {
		return nil, err
	}
	if res.Stats.QuantitiesImputed > 0 || res.Stats.QuantitiesUnresolved > 0 {
		log.Info().Int("imputed", res.Stats.QuantitiesImputed).Int("unresolved", res.Stats.QuantitiesUnresolved).
			Str("policy", string(opt.ImputePolicy)).Msg("filled missing quantities")
	}

	// 5. totals, 6. salesperson
	for _, r := range rows {
		if r.excluded {
			continue
		}
		price, err := parsePrice(r.rec.UnitPrice)
		if err != nil {
			return nil, &DataFormatError{Row: r.rec.Line, Column: dataset.ColUnitPrice, Value: r.rec.UnitPrice, Err: err}
		}
		q := int64(r.qty)
		total := price.Mul(decimal.NewFromInt(q))
		if src, err := parsePrice(r.rec.TotalPrice); err != nil || !src.Equal(total) {
			res.Stats.TotalsRecomputed++
		}
		sp := r.rec.Salesperson
		if sp == "" {
			sp = opt.UnknownSalesperson
			res.Stats.SalespersonFilled++
		}
		res.Transactions = append(res.Transactions, Transaction{
			OrderID:     r.rec.OrderID,
			Date:        r.date,
			ProductID:   r.rec.ProductID,
			ProductName: r.rec.ProductName,
			Category:    r.rec.Category,
			Region:      r.rec.Region,
			Salesperson: sp,
			Quantity:    q,
			UnitPrice:   price,
			TotalPrice:  total,
			Imputed:     r.imputed,
		})
	}
	if n := res.Stats.TotalsRecomputed; n > 0 {
		log.Info().Int("count", n).Msg("recomputed inconsistent totals")
	}
	if n := res.Stats.SalespersonFilled; n > 0 {
		log.Info().Int("count", n).Str("label", opt.UnknownSalesperson).Msg("filled missing salesperson")
	}

	res.Notes = res.Stats.Notes(opt)
	log.Debug().Int("input", res.Stats.InputRows).Int("output", len(res.Transactions)).Msg("cleaning complete")
	return res, nil
}

func imputeQuantities(rows []*row, opt Options, res *Result) error {
	type acc struct {
		sum float64
		n   int
	}
	byProduct := map[string]*acc{}
	var global acc
	for _, r := range rows {
		if strings.TrimSpace(r.rec.Quantity) == "" {
			continue
		}
		q, err := parseQuantity(r.rec.Quantity)
		if err != nil {
			return &DataFormatError{Row: r.rec.Line, Column: dataset.ColQuantity, Value: r.rec.Quantity, Err: err}
		}
		r.qty, r.hasQty = q, true
		a := byProduct[r.rec.ProductID]
		if a == nil {
			a = &acc{}
			byProduct[r.rec.ProductID] = a
		}
		a.sum += q
		a.n++
		global.sum += q
		global.n++
	}
	// Missing rows are filled in row order, ties to even. Each filled value
	// joins the running means, so later rows see earlier imputations.
	fill := func(r *row, q float64) {
		r.qty, r.hasQty, r.imputed = q, true, true
		a := byProduct[r.rec.ProductID]
		if a == nil {
			a = &acc{}
			byProduct[r.rec.ProductID] = a
		}
		a.sum += q
		a.n++
		global.sum += q
		global.n++
	}
	for _, r := range rows {
		if r.hasQty {
			continue
		}
		if a := byProduct[r.rec.ProductID]; a != nil && a.n > 0 {
			fill(r, math.RoundToEven(a.sum/float64(a.n)))
			res.Stats.QuantitiesImputed++
			continue
		}
		if opt.ImputePolicy == ImputeGlobalMean && global.n > 0 {
			fill(r, math.RoundToEven(global.sum/float64(global.n)))
			res.Stats.QuantitiesImputed++
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"row %d (%s): no other rows for this product; quantity set to the overall mean %d",
				r.rec.Line, r.rec.ProductID, int64(r.qty)))
			continue
		}
		r.excluded = true
		res.Stats.QuantitiesUnresolved++
		if opt.ImputePolicy == ImputeDrop {
			continue
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"row %d (%s): quantity missing and no other rows for this product; excluded from all totals",
			r.rec.Line, r.rec.ProductID))
	}
	return nil
}

func parseQuantity(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), 64)
	if err != nil {
		return 0, errNotNumeric
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNegative
	}
	if f != math.Trunc(f) {
		return 0, errNotInteger
	}
	return f, nil
}

func parsePrice(v string) (decimal.Decimal, error) {
	s := strings.TrimSpace(v)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, errMissingValue
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errNotNumeric
	}
	if d.IsNegative() {
		return decimal.Zero, errNegative
	}
	return d, nil
}
