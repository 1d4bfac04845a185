package excel

import (
	"godex/domain/detest"

	"gonum.org/v1/gonum/mat"
)

// RawRowData represents a row of raw sheet data as string key-value pairs
type RawRowData map[string]string

// ExcelData represents the complete sheet
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Expression is an observations x genes matrix with its annotations.
type Expression struct {
	Observations []string
	Genes        detest.GeneSet
	X            *mat.Dense
	Annotations  detest.SampleDescription
}

// Annotation returns the values of an annotation column.
func (e *Expression) Annotation(name string) ([]string, bool) {
	v, ok := e.Annotations[name]
	return v, ok
}
