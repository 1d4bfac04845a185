package detest

import (
	"fmt"

	"godex/domain/detest"

	"gonum.org/v1/gonum/mat"
)

// GroupingTerm is the term name of the grouping factor in built designs.
const GroupingTerm = "grouping"

// InterceptDesign builds the "~1" design.
func InterceptDesign(n int) (*mat.Dense, detest.DesignInfo) {
	d := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		d.Set(i, 0, 1)
	}
	return d, detest.DesignInfo{
		ColumnNames: []string{"Intercept"},
		Terms:       []detest.Term{{Name: "Intercept", Start: 0, Stop: 1}},
	}
}

// GroupDesign builds the "~1+grouping" treatment-coded design. groups[0] is
// the reference level.
func GroupDesign(labels, groups []string) (*mat.Dense, detest.DesignInfo) {
	n, k := len(labels), len(groups)
	idx := detest.GroupIndex(groups)
	d := mat.NewDense(n, k, nil)
	for i, l := range labels {
		d.Set(i, 0, 1)
		if j, ok := idx[l]; ok && j > 0 {
			d.Set(i, j, 1)
		}
	}
	names := []string{"Intercept"}
	for _, g := range groups[1:] {
		names = append(names, fmt.Sprintf("%s[T.%s]", GroupingTerm, g))
	}
	return d, detest.DesignInfo{
		ColumnNames: names,
		Terms: []detest.Term{
			{Name: "Intercept", Start: 0, Stop: 1},
			{Name: GroupingTerm, Start: 1, Stop: k, Factors: []string{GroupingTerm}},
		},
	}
}

// OneHotDesign builds the "~0+grouping" design with one column per group.
func OneHotDesign(labels, groups []string) (*mat.Dense, detest.DesignInfo) {
	n, k := len(labels), len(groups)
	idx := detest.GroupIndex(groups)
	d := mat.NewDense(n, k, nil)
	for i, l := range labels {
		if j, ok := idx[l]; ok {
			d.Set(i, j, 1)
		}
	}
	names := make([]string, k)
	for j, g := range groups {
		names[j] = fmt.Sprintf("%s[%s]", GroupingTerm, g)
	}
	return d, detest.DesignInfo{
		ColumnNames: names,
		Terms:       []detest.Term{{Name: GroupingTerm, Start: 0, Stop: k, Factors: []string{GroupingTerm}}},
	}
}

// subsetRows copies the given rows of x.
func subsetRows(x mat.Matrix, rows []int) *mat.Dense {
	_, c := x.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for k, i := range rows {
		for j := 0; j < c; j++ {
			out.Set(k, j, x.At(i, j))
		}
	}
	return out
}

func subsetStrings(v []string, rows []int) []string {
	out := make([]string, len(rows))
	for k, i := range rows {
		out[k] = v[i]
	}
	return out
}

func subsetFloats(v []float64, rows []int) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(rows))
	for k, i := range rows {
		out[k] = v[i]
	}
	return out
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
