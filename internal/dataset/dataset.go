package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Column names of the sales export.
const (
	ColOrderID     = "OrderID"
	ColDate        = "Date"
	ColProductID   = "ProductID"
	ColProductName = "ProductName"
	ColCategory    = "Category"
	ColRegion      = "Region"
	ColSalesperson = "Salesperson"
	ColQuantity    = "Quantity"
	ColUnitPrice   = "UnitPrice"
	ColTotalPrice  = "TotalPrice"
)

// RequiredColumns must be present in every input. OrderID is optional.
var RequiredColumns = []string{
	ColDate, ColProductID, ColProductName, ColCategory, ColRegion,
	ColSalesperson, ColQuantity, ColUnitPrice, ColTotalPrice,
}

// Record is one raw transaction row. Values are trimmed but otherwise
// untouched; typing and repair happen in the cleaning package.
type Record struct {
	// Line is the 1-based data row number (the header is not counted).
	Line        int
	OrderID     string
	Date        string
	ProductID   string
	ProductName string
	Category    string
	Region      string
	Salesperson string
	Quantity    string
	UnitPrice   string
	TotalPrice  string
}

// Table is the in-memory form of an input file.
type Table struct {
	Name    string
	Columns []string
	Records []Record
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Records) }

// Options controls loading.
type Options struct {
	// Delimiter for CSV. If 0, chosen from the file extension.
	Delimiter rune
	// Sheet selects an XLSX worksheet by name; empty means the first sheet.
	Sheet string
}

// Source reads a tabular file into raw rows, header first.
type Source interface {
	CanLoad(filename string) bool
	Rows(path string, opt Options) ([][]string, error)
}

var registry []Source

// Register adds a source implementation to the registry.
func Register(s Source) {
	registry = append(registry, s)
}

// ErrUnsupported indicates no registered source handles the file type.
var ErrUnsupported = errors.New("unsupported input format")

func init() {
	Register(csvSource{})
	Register(xlsxSource{})
}

// Load reads the file at path using the first source that accepts it.
func Load(path string, opt Options) (*Table, error) {
	for _, s := range registry {
		if !s.CanLoad(path) {
			continue
		}
		rows, err := s.Rows(path, opt)
		if err != nil {
			return nil, err
		}
		return FromRows(filepath.Base(path), rows)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

// FromRows builds a Table from a header row followed by data rows.
func FromRows(name string, rows [][]string) (*Table, error) {
	t := &Table{Name: name}
	if len(rows) == 0 {
		return nil, &MissingColumnError{Source: name, Columns: RequiredColumns}
	}
	header := rows[0]
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.Columns = append(t.Columns, h)
		key := strings.ToLower(h)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := index[strings.ToLower(c)]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnError{Source: name, Columns: missing}
	}
	get := func(row []string, col string) string {
		i, ok := index[strings.ToLower(col)]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	for n, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := Record{
			Line:        n + 1,
			OrderID:     get(row, ColOrderID),
			Date:        get(row, ColDate),
			ProductID:   get(row, ColProductID),
			ProductName: get(row, ColProductName),
			Category:    get(row, ColCategory),
			Region:      get(row, ColRegion),
			Salesperson: get(row, ColSalesperson),
			Quantity:    get(row, ColQuantity),
			UnitPrice:   get(row, ColUnitPrice),
			TotalPrice:  get(row, ColTotalPrice),
		}
		if rec.OrderID == "" {
			rec.OrderID = strconv.Itoa(rec.Line)
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
