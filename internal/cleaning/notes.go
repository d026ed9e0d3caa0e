package cleaning

import "fmt"

// StaticNotes is the fixed disclaimer list printed when notes are not
// derived from the correction log.
var StaticNotes = []string{
	"Some products were missing quantity values; these were replaced with the average quantity for the same product.",
	"Some salesperson values were missing and were recorded as 'Unknown'.",
	"One date exported in scientific notation was corrected.",
	"One invalid product record (P0000) was removed.",
}

// NoCorrectionsNote is emitted when the correction log is empty.
const NoCorrectionsNote = "No data-quality corrections were required."

// Notes renders the non-zero counters as report lines.
func (s Stats) Notes(opt Options) []string {
	var out []string
	if s.QuantitiesImputed > 0 {
		out = append(out, fmt.Sprintf("%s repaired using the average quantity of the same product.",
			plural(s.QuantitiesImputed, "missing quantity", "missing quantities")))
	}
	if s.QuantitiesUnresolved > 0 {
		out = append(out, fmt.Sprintf("%s could not be imputed and %s excluded from the totals.",
			plural(s.QuantitiesUnresolved, "row with a missing quantity", "rows with a missing quantity"),
			verb(s.QuantitiesUnresolved, "was", "were")))
	}
	if s.SalespersonFilled > 0 {
		out = append(out, fmt.Sprintf("%s recorded as '%s'.",
			plural(s.SalespersonFilled, "missing salesperson", "missing salespeople"), opt.UnknownSalesperson))
	}
	if s.DatesRepaired > 0 {
		out = append(out, fmt.Sprintf("%s in scientific notation replaced with %s.",
			plural(s.DatesRepaired, "date", "dates"), opt.FallbackDate.Format("2006-01-02")))
	}
	if s.InvalidRemoved > 0 {
		out = append(out, fmt.Sprintf("%s with product ID %s removed.",
			plural(s.InvalidRemoved, "invalid product record", "invalid product records"), opt.PlaceholderProductID))
	}
	if s.TotalsRecomputed > 0 {
		out = append(out, fmt.Sprintf("%s recomputed from quantity and unit price.",
			plural(s.TotalsRecomputed, "inconsistent total", "inconsistent totals")))
	}
	if s.TextNormalized > 0 {
		out = append(out, fmt.Sprintf("%s normalised to title case.",
			plural(s.TextNormalized, "text value", "text values")))
	}
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

func verb(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
