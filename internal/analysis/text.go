package analysis

import (
	"fmt"
	"strings"
)

var sectionTitles = map[Section]string{
	ByCategory:    "BY CATEGORY",
	ByRegion:      "BY REGION",
	BySalesperson: "BY SALESPERSON",
	TopProducts:   "TOP PRODUCTS",
	DailyTrend:    "DAILY TREND",
	WeeklyTrend:   "WEEKLY TREND",
}

// Text renders a plain-text summary suitable for a terminal.
func (r *Result) Text() string {
	var b strings.Builder
	s := r.Summary
	b.WriteString("[SALES SUMMARY]\n")
	if r.Source != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Source))
	}
	b.WriteString(fmt.Sprintf("Period: %s ~ %s (%d days)\n", s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"), s.Days()))
	b.WriteString(fmt.Sprintf("Total revenue: %s\n", s.TotalRevenue.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Total quantity: %d\n", s.TotalQuantity))
	b.WriteString(fmt.Sprintf("Orders: %d\n", s.Orders))
	b.WriteString(fmt.Sprintf("Average order value: %s\n", s.AvgOrderValue.StringFixed(2)))

	for _, sec := range Sections {
		rows := r.Sections[sec]
		if len(rows) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("\n[%s]\n", sectionTitles[sec]))
		for _, g := range rows {
			name := g.Key
			if g.Label != "" && g.Label != g.Key {
				name = fmt.Sprintf("%s (%s)", g.Key, g.Label)
			}
			b.WriteString(fmt.Sprintf("- %s: revenue %s, avg %s, orders %d, qty %d\n",
				name, g.Revenue.StringFixed(2), g.AvgOrderValue.StringFixed(2), g.Orders, g.Quantity))
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}
