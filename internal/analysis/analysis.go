package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hellojin97/copilot-ci-automation/internal/cleaning"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Section names one aggregate table of the result.
type Section string

const (
	ByCategory    Section = "by_category"
	ByRegion      Section = "by_region"
	BySalesperson Section = "by_salesperson"
	TopProducts   Section = "top_products"
	DailyTrend    Section = "daily_trend"
	WeeklyTrend   Section = "weekly_trend"
)

// Sections lists every section in report order.
var Sections = []Section{ByCategory, ByRegion, BySalesperson, TopProducts, DailyTrend, WeeklyTrend}

// Options controls aggregation.
type Options struct {
	// TopProducts caps the product table. 0 means 10.
	TopProducts int
}

// DefaultOptions returns the standard aggregation settings.
func DefaultOptions() Options {
	return Options{TopProducts: 10}
}

// GroupRow is one line of an aggregate table.
type GroupRow struct {
	Key string
	// Label is a display name for the key (the product name for products,
	// otherwise equal to Key).
	Label         string
	Revenue       decimal.Decimal
	AvgOrderValue decimal.Decimal
	Orders        int
	Quantity      int64
}

// Summary holds the scalar figures of a run.
type Summary struct {
	TotalRevenue  decimal.Decimal
	TotalQuantity int64
	AvgOrderValue decimal.Decimal
	Orders        int
	Start         time.Time
	End           time.Time
}

// Days is the inclusive length of the analysis period.
func (s Summary) Days() int {
	if s.End.Before(s.Start) {
		return 0
	}
	return int(s.End.Sub(s.Start).Hours()/24) + 1
}

// Result is the full aggregation of a validated table.
type Result struct {
	Source   string
	Summary  Summary
	Sections map[Section][]GroupRow
	// Notes carries the cleaning correction log for the report.
	Notes    []string
	Warnings []string
}

// Top returns the first row of a section, which for revenue-ranked sections
// is the leader.
func (r *Result) Top(s Section) (GroupRow, bool) {
	rows := r.Sections[s]
	if len(rows) == 0 {
		return GroupRow{}, false
	}
	return rows[0], true
}

// Analyze aggregates transactions by every reporting dimension.
func Analyze(ctx context.Context, source string, txs []cleaning.Transaction, opt Options) (*Result, error) {
	if len(txs) == 0 {
		return nil, &EmptyDatasetError{Source: source}
	}
	if opt.TopProducts <= 0 {
		opt.TopProducts = 10
	}
	res := &Result{Source: source, Sections: make(map[Section][]GroupRow, len(Sections))}

	var total decimal.Decimal
	var qty int64
	start, end := txs[0].Date, txs[0].Date
	for _, tx := range txs {
		total = total.Add(lineTotal(tx))
		qty += tx.Quantity
		if tx.Date.Before(start) {
			start = tx.Date
		}
		if tx.Date.After(end) {
			end = tx.Date
		}
	}
	res.Summary = Summary{
		TotalRevenue:  total.Round(2),
		TotalQuantity: qty,
		AvgOrderValue: mean(total, len(txs)),
		Orders:        len(txs),
		Start:         start,
		End:           end,
	}

	res.Sections[ByCategory] = byRevenue(group(txs, func(tx cleaning.Transaction) (string, string) { return tx.Category, tx.Category }))
	res.Sections[ByRegion] = byRevenue(group(txs, func(tx cleaning.Transaction) (string, string) { return tx.Region, tx.Region }))
	res.Sections[BySalesperson] = byRevenue(group(txs, func(tx cleaning.Transaction) (string, string) { return tx.Salesperson, tx.Salesperson }))
	products := byRevenue(group(txs, func(tx cleaning.Transaction) (string, string) { return tx.ProductID, tx.ProductName }))
	if len(products) > opt.TopProducts {
		products = products[:opt.TopProducts]
	}
	res.Sections[TopProducts] = products
	res.Sections[DailyTrend] = group(txs, func(tx cleaning.Transaction) (string, string) {
		k := tx.Date.Format("2006-01-02")
		return k, k
	})
	res.Sections[WeeklyTrend] = group(txs, func(tx cleaning.Transaction) (string, string) {
		k := WeekKey(tx.Date)
		return k, k
	})

	zerolog.Ctx(ctx).Debug().
		Str("source", source).
		Int("orders", res.Summary.Orders).
		Str("revenue", res.Summary.TotalRevenue.StringFixed(2)).
		Int("days", res.Summary.Days()).
		Msg("aggregation complete")
	return res, nil
}

// WeekKey returns the ISO year-week of t, e.g. 2025-W38.
func WeekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// lineTotal is a transaction's revenue in cents. Every sum is built from
// these, so section sums always equal the summary total.
func lineTotal(tx cleaning.Transaction) decimal.Decimal {
	return tx.TotalPrice.Round(2)
}

type accum struct {
	label   string
	revenue decimal.Decimal
	orders  int
	qty     int64
}

// group sums transactions per key and returns rows in ascending key order.
func group(txs []cleaning.Transaction, key func(cleaning.Transaction) (string, string)) []GroupRow {
	acc := map[string]*accum{}
	for _, tx := range txs {
		k, label := key(tx)
		a := acc[k]
		if a == nil {
			a = &accum{label: label}
			acc[k] = a
		}
		a.revenue = a.revenue.Add(lineTotal(tx))
		a.orders++
		a.qty += tx.Quantity
	}
	keys := make([]string, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]GroupRow, 0, len(keys))
	for _, k := range keys {
		a := acc[k]
		out = append(out, GroupRow{
			Key:           k,
			Label:         a.label,
			Revenue:       a.revenue.Round(2),
			AvgOrderValue: mean(a.revenue, a.orders),
			Orders:        a.orders,
			Quantity:      a.qty,
		})
	}
	return out
}

// byRevenue orders rows by descending revenue; equal revenues keep key order.
func byRevenue(rows []GroupRow) []GroupRow {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Revenue.GreaterThan(rows[j].Revenue)
	})
	return rows
}

func mean(sum decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n))).Round(2)
}
