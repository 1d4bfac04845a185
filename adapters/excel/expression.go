package excel

import (
	"fmt"
	"strconv"

	"godex/domain/core"
	"godex/domain/detest"

	"gonum.org/v1/gonum/mat"
)

// ExpressionConfig tells the reader how to split a table into annotations
// and gene columns. Rows are observations.
type ExpressionConfig struct {
	// ObservationColumn names the observations. Empty means detect, and
	// "-" means the table has no such column.
	ObservationColumn string
	// AnnotationColumns are kept as strings. When nil, every non-numeric
	// column is an annotation.
	AnnotationColumns []string
}

// NoObservationColumn marks tables without observation names.
const NoObservationColumn = "-"

// ReadExpression reads the file and converts it into an expression matrix.
func (r *DataReader) ReadExpression(cfg ExpressionConfig) (*Expression, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	return ToExpression(data, cfg)
}

// ToExpression converts a raw table into an expression matrix. Every column
// that is neither the observation column nor an annotation becomes a gene,
// in header order. Empty cells are rejected.
func ToExpression(data *ExcelData, cfg ExpressionConfig) (*Expression, error) {
	obsCol := cfg.ObservationColumn
	switch obsCol {
	case "":
		detected, err := DetectObservationColumn(data)
		if err != nil {
			obsCol = NoObservationColumn
		} else {
			obsCol = detected
		}
	case NoObservationColumn:
	default:
		if !hasHeader(data, obsCol) {
			return nil, fmt.Errorf("observation column %q not found", obsCol)
		}
	}

	annotation := make(map[string]bool)
	if cfg.AnnotationColumns != nil {
		for _, c := range cfg.AnnotationColumns {
			if !hasHeader(data, c) {
				return nil, fmt.Errorf("annotation column %q not found", c)
			}
			annotation[c] = true
		}
	} else {
		for _, h := range data.Headers {
			if h != obsCol && !isNumericColumn(data, h) {
				annotation[h] = true
			}
		}
	}

	var genes detest.GeneSet
	for _, h := range data.Headers {
		if h != obsCol && !annotation[h] {
			genes = append(genes, h)
		}
	}
	if len(genes) == 0 {
		return nil, fmt.Errorf("%w: table has no gene columns", core.ErrShape)
	}

	n := len(data.Rows)
	x := mat.NewDense(n, len(genes), nil)
	for i, row := range data.Rows {
		for j, g := range genes {
			v, err := strconv.ParseFloat(row[g], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %q is not a number", core.ErrShape, i+2, g, row[g])
			}
			x.Set(i, j, v)
		}
	}

	expr := &Expression{Genes: genes, X: x, Annotations: detest.SampleDescription{}}
	for _, h := range data.Headers {
		if !annotation[h] {
			continue
		}
		col := make([]string, n)
		for i, row := range data.Rows {
			col[i] = row[h]
		}
		expr.Annotations[h] = col
	}
	expr.Observations = make([]string, n)
	for i, row := range data.Rows {
		if obsCol == NoObservationColumn {
			expr.Observations[i] = strconv.Itoa(i)
		} else {
			expr.Observations[i] = row[obsCol]
		}
	}
	return expr, nil
}

func hasHeader(data *ExcelData, name string) bool {
	for _, h := range data.Headers {
		if h == name {
			return true
		}
	}
	return false
}

func isNumericColumn(data *ExcelData, column string) bool {
	for _, row := range data.Rows {
		if _, err := strconv.ParseFloat(row[column], 64); err != nil {
			return false
		}
	}
	return len(data.Rows) > 0
}
