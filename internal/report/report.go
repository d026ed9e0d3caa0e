package report

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hellojin97/copilot-ci-automation/internal/analysis"
	"github.com/hellojin97/copilot-ci-automation/internal/cleaning"
	"github.com/hellojin97/copilot-ci-automation/internal/utils"
	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// Title is the document heading.
const Title = "Sales Data Analysis Report"

// Suffix is appended to the input base name to form the output file name.
const Suffix = "_sales_report.pdf"

// Options controls rendering.
type Options struct {
	CurrencySymbol string
	// StaticQualityNotes prints the fixed disclaimer list instead of the
	// correction log.
	StaticQualityNotes bool
	// FontPath is a UTF-8 TrueType font used for all text. When empty the
	// core Arial font is used, which only covers Windows-1252.
	FontPath string
	// Now returns the generation timestamp. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the standard renderer settings.
func DefaultOptions() Options {
	return Options{CurrencySymbol: "$", Now: time.Now}
}

// Renderer writes analysis results as PDF documents.
type Renderer struct {
	opt Options
}

// New returns a Renderer, filling unset options with defaults.
func New(opt Options) *Renderer {
	if opt.CurrencySymbol == "" {
		opt.CurrencySymbol = "$"
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &Renderer{opt: opt}
}

// OutputPath derives the document path for an input file: same directory,
// same base name, report suffix.
func OutputPath(input string) string {
	return filepath.Join(filepath.Dir(input), utils.TrimExt(input)+Suffix)
}

// Insights returns one sentence per ranked dimension, read from the first
// row of each section.
func (r *Renderer) Insights(res *analysis.Result) []string {
	var out []string
	if g, ok := res.Top(analysis.ByCategory); ok {
		out = append(out, fmt.Sprintf("Sales leader: the %s category recorded the highest revenue at %s.",
			g.Label, FormatCurrency(r.opt.CurrencySymbol, g.Revenue)))
	}
	if g, ok := res.Top(analysis.ByRegion); ok {
		out = append(out, fmt.Sprintf("Regional performance: the %s region led with %s.",
			g.Label, FormatCurrency(r.opt.CurrencySymbol, g.Revenue)))
	}
	if g, ok := res.Top(analysis.BySalesperson); ok {
		out = append(out, fmt.Sprintf("Sales performance: %s ranked first with %s in revenue.",
			g.Label, FormatCurrency(r.opt.CurrencySymbol, g.Revenue)))
	}
	if g, ok := res.Top(analysis.TopProducts); ok {
		out = append(out, fmt.Sprintf("Best seller: %s was the top product with %s in revenue.",
			g.Label, FormatCurrency(r.opt.CurrencySymbol, g.Revenue)))
	}
	return out
}

// QualityNotes returns the lines of the data-quality section.
func (r *Renderer) QualityNotes(res *analysis.Result) []string {
	if r.opt.StaticQualityNotes {
		return cleaning.StaticNotes
	}
	if len(res.Notes) == 0 && len(res.Warnings) == 0 {
		return []string{cleaning.NoCorrectionsNote}
	}
	out := make([]string, 0, len(res.Notes)+len(res.Warnings))
	out = append(out, res.Notes...)
	out = append(out, res.Warnings...)
	return out
}

// Render writes the report for res to path, replacing any existing file.
func (r *Renderer) Render(ctx context.Context, res *analysis.Result, path string) error {
	now := r.opt.Now()
	d := r.newDoc(now)
	r.build(d, res, now)
	pdf := d.Fpdf
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if d.enc != nil && d.enc.missing > 0 {
		zerolog.Ctx(ctx).Warn().Int("characters", d.enc.missing).
			Msg("text outside Windows-1252 printed as '?'; set report_font to a UTF-8 TrueType font")
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("path", path).Int("bytes", buf.Len()).Int("pages", pdf.PageCount()).Msg("report written")
	return nil
}

const (
	pageWidth = 190.0
	rowHeight = 7.0
	// pageBreakY is where a table row starts a new page, leaving room for the footer.
	pageBreakY = 265.0
	// utf8Family is the family name the FontPath font is registered under.
	utf8Family = "report"
)

// doc is a page being built with its font family and text encoder.
type doc struct {
	*gofpdf.Fpdf
	family string
	tr     func(string) string
	// enc is nil when a UTF-8 font is in use.
	enc *cp1252
}

func (d *doc) font(style string, size float64) { d.SetFont(d.family, style, size) }

// cp1252 encodes text for the core fonts. Runes the code page lacks become
// '?' and are counted.
type cp1252 struct {
	missing int
}

func (c *cp1252) encode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
			continue
		}
		ch, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			c.missing++
			ch = '?'
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func (r *Renderer) newDoc(now time.Time) *doc {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(now)
	pdf.SetTitle(Title, true)
	pdf.SetAutoPageBreak(true, 15)
	if r.opt.FontPath != "" {
		for _, style := range []string{"", "B", "I"} {
			pdf.AddUTF8Font(utf8Family, style, r.opt.FontPath)
		}
		return &doc{Fpdf: pdf, family: utf8Family, tr: func(s string) string { return s }}
	}
	enc := &cp1252{}
	return &doc{Fpdf: pdf, family: "Arial", tr: enc.encode, enc: enc}
}

func (r *Renderer) build(d *doc, res *analysis.Result, now time.Time) {
	tr := d.tr
	d.AliasNbPages("")
	d.SetFooterFunc(func() {
		d.SetY(-12)
		d.font("I", 8)
		d.SetTextColor(120, 120, 120)
		d.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", d.PageNo()), "", 0, "C", false, 0, "")
		d.SetTextColor(0, 0, 0)
	})
	d.AddPage()

	s := res.Summary
	money := func(v decimal.Decimal) string { return FormatCurrency(r.opt.CurrencySymbol, v) }

	// title
	d.SetFillColor(44, 62, 80)
	d.SetTextColor(255, 255, 255)
	d.font("B", 18)
	d.CellFormat(pageWidth, 12, tr(Title), "1", 1, "C", true, 0, "")
	d.SetTextColor(0, 0, 0)
	d.Ln(6)

	meta := [][2]string{
		{"Analysis period:", fmt.Sprintf("%s ~ %s", s.Start.Format("January 2, 2006"), s.End.Format("January 2, 2006"))},
		{"Generated on:", now.Format("January 2, 2006 15:04")},
	}
	if res.Source != "" {
		meta = append(meta, [2]string{"Source file:", res.Source})
	}
	for _, kv := range meta {
		d.font("B", 10)
		d.Cell(35, 6, tr(kv[0]))
		d.font("", 10)
		d.Cell(pageWidth-35, 6, tr(kv[1]))
		d.Ln(6)
	}
	d.Ln(4)

	// summary
	d.heading("Overall Summary")
	summary := [][2]string{
		{"Total Revenue", money(s.TotalRevenue)},
		{"Total Quantity", FormatCount(s.TotalQuantity)},
		{"Average Order Value", money(s.AvgOrderValue)},
		{"Total Orders", FormatCount(int64(s.Orders))},
		{"Analysis Period", FormatDays(s.Days())},
	}
	for _, kv := range summary {
		d.font("B", 10)
		d.SetFillColor(240, 240, 240)
		d.CellFormat(pageWidth/2, rowHeight, tr(kv[0]), "1", 0, "L", true, 0, "")
		d.font("", 10)
		d.CellFormat(pageWidth/2, rowHeight, tr(kv[1]), "1", 1, "R", false, 0, "")
	}
	d.Ln(6)

	// insights
	d.heading("Key Insights")
	d.bullets(r.Insights(res))
	d.Ln(4)

	dims := []struct {
		section analysis.Section
		title   string
		column  string
	}{
		{analysis.ByCategory, "Analysis by Category", "Category"},
		{analysis.ByRegion, "Analysis by Region", "Region"},
		{analysis.BySalesperson, "Performance by Salesperson", "Salesperson"},
	}
	for _, dim := range dims {
		d.heading(dim.title)
		cols := []column{{dim.column, 58, "L"}, {"Total Revenue", 38, "R"}, {"Avg Order Value", 38, "R"}, {"Orders", 28, "R"}, {"Quantity", 28, "R"}}
		var rows [][]string
		for _, g := range res.Sections[dim.section] {
			rows = append(rows, []string{g.Label, money(g.Revenue), money(g.AvgOrderValue), FormatCount(int64(g.Orders)), FormatCount(g.Quantity)})
		}
		d.table(cols, rows)
		d.Ln(6)
	}

	d.heading("Top Products")
	cols := []column{{"Product ID", 24, "L"}, {"Product Name", 50, "L"}, {"Total Revenue", 34, "R"}, {"Avg Order Value", 34, "R"}, {"Orders", 24, "R"}, {"Quantity", 24, "R"}}
	var rows [][]string
	for _, g := range res.Sections[analysis.TopProducts] {
		rows = append(rows, []string{g.Key, g.Label, money(g.Revenue), money(g.AvgOrderValue), FormatCount(int64(g.Orders)), FormatCount(g.Quantity)})
	}
	d.table(cols, rows)
	d.Ln(6)

	d.heading("Data Quality Notes")
	d.bullets(r.QualityNotes(res))
	d.Ln(8)

	d.font("B", 9)
	d.CellFormat(pageWidth, 6, tr("Report generated: "+now.Format("January 2, 2006 15:04")), "", 1, "C", false, 0, "")
}

type column struct {
	title string
	width float64
	align string
}

func (d *doc) heading(text string) {
	if d.GetY() > pageBreakY-20 {
		d.AddPage()
	}
	d.font("B", 13)
	d.SetTextColor(44, 62, 80)
	d.CellFormat(pageWidth, 9, d.tr(text), "B", 1, "L", false, 0, "")
	d.SetTextColor(0, 0, 0)
	d.Ln(3)
}

func (d *doc) bullets(lines []string) {
	d.font("", 10)
	for _, l := range lines {
		d.CellFormat(5, 6, "-", "", 0, "L", false, 0, "")
		d.MultiCell(pageWidth-5, 6, d.tr(l), "", "L", false)
	}
}

func (d *doc) table(cols []column, rows [][]string) {
	header := func() {
		d.SetFillColor(200, 220, 240)
		d.font("B", 9)
		for i, c := range cols {
			ln := 0
			if i == len(cols)-1 {
				ln = 1
			}
			d.CellFormat(c.width, 8, d.tr(c.title), "1", ln, "C", true, 0, "")
		}
		d.font("", 9)
	}
	header()
	for _, row := range rows {
		if d.GetY() > pageBreakY {
			d.AddPage()
			header()
		}
		for i, c := range cols {
			ln := 0
			if i == len(cols)-1 {
				ln = 1
			}
			d.CellFormat(c.width, rowHeight, d.tr(row[i]), "1", ln, c.align, false, 0, "")
		}
	}
}
