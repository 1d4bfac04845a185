package detest

import (
	"math"

	"godex/domain/core"
)

// Column is a method-specific summary column. Exactly one of the slices is set.
type Column struct {
	Name   string
	Floats []float64
	Ints   []int
	Bools  []bool
}

// Len returns the number of rows held by the column.
func (c Column) Len() int {
	switch {
	case c.Floats != nil:
		return len(c.Floats)
	case c.Ints != nil:
		return len(c.Ints)
	default:
		return len(c.Bools)
	}
}

// Value returns the cell at row i.
func (c Column) Value(i int) any {
	switch {
	case c.Floats != nil:
		return c.Floats[i]
	case c.Ints != nil:
		return c.Ints[i]
	default:
		return c.Bools[i]
	}
}

func (c Column) filter(keep []int) Column {
	out := Column{Name: c.Name}
	switch {
	case c.Floats != nil:
		out.Floats = make([]float64, len(keep))
		for j, i := range keep {
			out.Floats[j] = c.Floats[i]
		}
	case c.Ints != nil:
		out.Ints = make([]int, len(keep))
		for j, i := range keep {
			out.Ints[j] = c.Ints[i]
		}
	default:
		out.Bools = make([]bool, len(keep))
		for j, i := range keep {
			out.Bools[j] = c.Bools[i]
		}
	}
	return out
}

// Table is the per-gene summary. The base columns are always present, extra
// columns are appended by specific test kinds.
type Table struct {
	Gene   []string
	Pval   []float64
	Qval   []float64
	Log2FC []float64
	Mean   []float64
	Extra  []Column
}

// BaseColumns names the method-independent columns in output order.
var BaseColumns = []string{"gene", "pval", "qval", "log2fc", "mean"}

// NewTable assembles a table and checks that all columns have one row per gene.
func NewTable(genes GeneSet, pval, qval, log2fc, mean []float64, extra ...Column) (*Table, error) {
	n := len(genes)
	base := [][]float64{pval, qval, log2fc, mean}
	for i, col := range base {
		if len(col) != n {
			return nil, core.NewShapeError("summary column "+BaseColumns[i+1], n, len(col))
		}
	}
	for _, c := range extra {
		if c.Len() != n {
			return nil, core.NewShapeError("summary column "+c.Name, n, c.Len())
		}
	}
	return &Table{
		Gene:   append([]string(nil), genes...),
		Pval:   pval,
		Qval:   qval,
		Log2FC: log2fc,
		Mean:   mean,
		Extra:  extra,
	}, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Gene) }

// ColumnNames lists base and extra column names in output order.
func (t *Table) ColumnNames() []string {
	names := append([]string(nil), BaseColumns...)
	for _, c := range t.Extra {
		names = append(names, c.Name)
	}
	return names
}

// Column looks up an extra column by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Extra {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Row returns the cells of row i in ColumnNames order.
func (t *Table) Row(i int) []any {
	row := []any{t.Gene[i], t.Pval[i], t.Qval[i], t.Log2FC[i], t.Mean[i]}
	for _, c := range t.Extra {
		row = append(row, c.Value(i))
	}
	return row
}

// Select returns a new table holding only the given rows, in order.
func (t *Table) Select(rows []int) *Table {
	out := &Table{
		Gene:   make([]string, len(rows)),
		Pval:   pick(t.Pval, rows),
		Qval:   pick(t.Qval, rows),
		Log2FC: pick(t.Log2FC, rows),
		Mean:   pick(t.Mean, rows),
	}
	for j, i := range rows {
		out.Gene[j] = t.Gene[i]
	}
	for _, c := range t.Extra {
		out.Extra = append(out.Extra, c.filter(rows))
	}
	return out
}

func pick(v []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for j, i := range rows {
		out[j] = v[i]
	}
	return out
}

// Threshold holds the optional summary filters. Nil fields are not applied.
type Threshold struct {
	QvalMax *float64
	FCUpper *float64
	FCLower *float64
	MeanMin *float64
}

// Float returns a pointer to v, for building thresholds.
func Float(v float64) *float64 { return &v }

// IsZero reports whether no filter is set.
func (th Threshold) IsZero() bool {
	return th.QvalMax == nil && th.FCUpper == nil && th.FCLower == nil && th.MeanMin == nil
}

// Keep reports whether a row passes the filters. Fold-change thresholds are
// given on the linear scale. With only one of them set the filter is
// one-sided; with both set a row passes if it clears either side.
func (th Threshold) Keep(qval, log2fc, mean float64) bool {
	if th.QvalMax != nil && !(qval <= *th.QvalMax) {
		return false
	}
	switch {
	case th.FCUpper != nil && th.FCLower == nil:
		if !(log2fc >= math.Log2(*th.FCUpper)) {
			return false
		}
	case th.FCUpper == nil && th.FCLower != nil:
		if !(log2fc <= math.Log2(*th.FCLower)) {
			return false
		}
	case th.FCUpper != nil && th.FCLower != nil:
		if !(log2fc <= math.Log2(*th.FCLower) || log2fc >= math.Log2(*th.FCUpper)) {
			return false
		}
	}
	if th.MeanMin != nil && !(mean >= *th.MeanMin) {
		return false
	}
	return true
}

// Apply filters the table rows.
func (th Threshold) Apply(t *Table) *Table {
	if th.IsZero() {
		return t
	}
	rows := make([]int, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		if th.Keep(t.Qval[i], t.Log2FC[i], t.Mean[i]) {
			rows = append(rows, i)
		}
	}
	return t.Select(rows)
}
