package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hellojin97/copilot-ci-automation/internal/cleaning"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(date, product, name, category, region, person string, qty int64, price string) cleaning.Transaction {
	d, _ := time.Parse("2006-01-02", date)
	p := decimal.RequireFromString(price)
	return cleaning.Transaction{
		Date:        d,
		ProductID:   product,
		ProductName: name,
		Category:    category,
		Region:      region,
		Salesperson: person,
		Quantity:    qty,
		UnitPrice:   p,
		TotalPrice:  p.Mul(decimal.NewFromInt(qty)),
	}
}

func sample() []cleaning.Transaction {
	return []cleaning.Transaction{
		tx("2025-09-20", "P1", "Laptop", "Electronics", "North", "Alice", 2, "500.00"),
		tx("2025-09-21", "P2", "Mouse", "Electronics", "South", "Bob", 10, "19.99"),
		tx("2025-09-22", "P3", "Desk", "Furniture", "North", "Alice", 1, "250.00"),
		tx("2025-09-22", "P4", "Chair", "Furniture", "East", "Carol", 4, "75.50"),
		tx("2025-09-29", "P1", "Laptop", "Electronics", "East", "Bob", 1, "500.00"),
	}
}

func sum(rows []GroupRow) decimal.Decimal {
	var s decimal.Decimal
	for _, r := range rows {
		s = s.Add(r.Revenue)
	}
	return s
}

func TestAnalyzeSummary(t *testing.T) {
	res, err := Analyze(context.Background(), "sales.csv", sample(), DefaultOptions())
	require.NoError(t, err)

	s := res.Summary
	assert.Equal(t, "2251.90", s.TotalRevenue.StringFixed(2))
	assert.Equal(t, int64(18), s.TotalQuantity)
	assert.Equal(t, 5, s.Orders)
	assert.Equal(t, "450.38", s.AvgOrderValue.StringFixed(2))
	assert.Equal(t, 10, s.Days())
	assert.Equal(t, "2025-09-20", s.Start.Format("2006-01-02"))
	assert.Equal(t, "2025-09-29", s.End.Format("2006-01-02"))
}

func TestAnalyzeDimensionSumsMatchTotal(t *testing.T) {
	res, err := Analyze(context.Background(), "sales.csv", sample(), DefaultOptions())
	require.NoError(t, err)

	total := res.Summary.TotalRevenue
	for _, sec := range []Section{ByCategory, ByRegion, BySalesperson, DailyTrend, WeeklyTrend} {
		assert.True(t, sum(res.Sections[sec]).Equal(total), "section %s", sec)
	}

	cat := res.Sections[ByCategory]
	require.Len(t, cat, 2)
	assert.Equal(t, "Electronics", cat[0].Key)
	assert.Equal(t, "1699.90", cat[0].Revenue.StringFixed(2))
	assert.Equal(t, 3, cat[0].Orders)
	assert.Equal(t, int64(13), cat[0].Quantity)
	assert.Equal(t, "566.63", cat[0].AvgOrderValue.StringFixed(2))

	top, ok := res.Top(BySalesperson)
	require.True(t, ok)
	assert.Equal(t, "Alice", top.Key)
}

func TestAnalyzeSubCentPricesKeepSumsConsistent(t *testing.T) {
	txs := []cleaning.Transaction{
		tx("2025-09-20", "P1", "Pin", "A", "North", "Alice", 1, "0.005"),
		tx("2025-09-20", "P2", "Clip", "B", "South", "Bob", 1, "0.005"),
		tx("2025-09-20", "P3", "Tack", "C", "East", "Carol", 1, "0.005"),
	}
	res, err := Analyze(context.Background(), "sales.csv", txs, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "0.03", res.Summary.TotalRevenue.StringFixed(2))
	for _, sec := range []Section{ByCategory, ByRegion, BySalesperson, TopProducts, DailyTrend, WeeklyTrend} {
		assert.True(t, sum(res.Sections[sec]).Equal(res.Summary.TotalRevenue), "section %s", sec)
	}
}

func TestAnalyzeTopProducts(t *testing.T) {
	var txs []cleaning.Transaction
	for i := 0; i < 14; i++ {
		txs = append(txs, tx("2025-01-01", fmt.Sprintf("P%02d", i), fmt.Sprintf("Item %d", i), "C", "R", "S", int64(i+1), "10"))
	}
	// ties with P13 and each other
	txs = append(txs, tx("2025-01-02", "Z1", "Tied B", "C", "R", "S", 14, "10"))
	txs = append(txs, tx("2025-01-02", "A1", "Tied A", "C", "R", "S", 14, "10"))

	res, err := Analyze(context.Background(), "sales.csv", txs, DefaultOptions())
	require.NoError(t, err)

	top := res.Sections[TopProducts]
	require.Len(t, top, 10)
	assert.Equal(t, []string{"A1", "P13", "Z1"}, []string{top[0].Key, top[1].Key, top[2].Key})
	assert.Equal(t, "Tied A", top[0].Label)
	for i := 1; i < len(top); i++ {
		assert.False(t, top[i].Revenue.GreaterThan(top[i-1].Revenue))
	}

	small, err := Analyze(context.Background(), "sales.csv", sample(), Options{TopProducts: 10})
	require.NoError(t, err)
	assert.Len(t, small.Sections[TopProducts], 4)
}

func TestAnalyzeTrendsChronological(t *testing.T) {
	txs := []cleaning.Transaction{
		tx("2026-01-02", "P1", "A", "C", "R", "S", 1, "1"),
		tx("2025-12-29", "P1", "A", "C", "R", "S", 100, "1"),
		tx("2025-12-20", "P1", "A", "C", "R", "S", 5, "1"),
	}
	res, err := Analyze(context.Background(), "sales.csv", txs, DefaultOptions())
	require.NoError(t, err)

	var days []string
	for _, r := range res.Sections[DailyTrend] {
		days = append(days, r.Key)
	}
	assert.Equal(t, []string{"2025-12-20", "2025-12-29", "2026-01-02"}, days)

	weeks := res.Sections[WeeklyTrend]
	require.Len(t, weeks, 2)
	assert.Equal(t, "2025-W51", weeks[0].Key)
	// 2025-12-29 and 2026-01-02 both fall in ISO week 1 of 2026.
	assert.Equal(t, "2026-W01", weeks[1].Key)
	assert.Equal(t, 2, weeks[1].Orders)
}

func TestAnalyzeIdempotent(t *testing.T) {
	a, err := Analyze(context.Background(), "sales.csv", sample(), DefaultOptions())
	require.NoError(t, err)
	b, err := Analyze(context.Background(), "sales.csv", sample(), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a.Text(), b.Text())
	assert.Equal(t, a.Sections, b.Sections)
}

func TestAnalyzeEmpty(t *testing.T) {
	_, err := Analyze(context.Background(), "empty.csv", nil, DefaultOptions())
	var empty *EmptyDatasetError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, "empty.csv", empty.Source)
}

func TestResultText(t *testing.T) {
	res, err := Analyze(context.Background(), "sales.csv", sample(), DefaultOptions())
	require.NoError(t, err)
	res.Warnings = []string{"row 7 (P9): excluded"}

	out := res.Text()
	assert.Contains(t, out, "[SALES SUMMARY]")
	assert.Contains(t, out, "File: sales.csv")
	assert.Contains(t, out, "Period: 2025-09-20 ~ 2025-09-29 (10 days)")
	assert.Contains(t, out, "[TOP PRODUCTS]")
	assert.Contains(t, out, "- P1 (Laptop): revenue 1500.00")
	assert.Contains(t, out, "[NOTES]\n- row 7 (P9): excluded")
}
