package detest

import "sort"

// Term is a named model term occupying the design columns [Start, Stop).
type Term struct {
	Name    string
	Start   int
	Stop    int
	Factors []string
}

// Columns lists the column indices of the term.
func (t Term) Columns() []int {
	cols := make([]int, 0, t.Stop-t.Start)
	for c := t.Start; c < t.Stop; c++ {
		cols = append(cols, c)
	}
	return cols
}

// DesignInfo is the reverse mapping produced by the design-matrix collaborator
// from named terms to the column ranges they occupy.
type DesignInfo struct {
	ColumnNames []string
	Terms       []Term
}

// TermNames returns the term names in design order.
func (d DesignInfo) TermNames() []string {
	names := make([]string, len(d.Terms))
	for i, t := range d.Terms {
		names[i] = t.Name
	}
	return names
}

// Term looks up a term by name.
func (d DesignInfo) Term(name string) (Term, bool) {
	for _, t := range d.Terms {
		if t.Name == name {
			return t, true
		}
	}
	return Term{}, false
}

// TermsMissingFrom returns the terms of d absent from other, sorted by name.
func (d DesignInfo) TermsMissingFrom(other DesignInfo) []Term {
	var out []Term
	for _, t := range d.Terms {
		if _, ok := other.Term(t.Name); !ok {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SampleDescription holds observation-level annotation columns.
type SampleDescription map[string][]string
