// Package estimate reads externally fitted GLM estimates from YAML or JSON
// files.
package estimate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"godex/domain/detest"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Matrix is a row-major matrix as nested lists.
type Matrix [][]float64

// Term is the serialized form of a design term.
type Term struct {
	Name    string   `yaml:"name" json:"name"`
	Start   int      `yaml:"start" json:"start"`
	Stop    int      `yaml:"stop" json:"stop"`
	Factors []string `yaml:"factors,omitempty" json:"factors,omitempty"`
}

// Design is a design matrix with its column names and terms.
type Design struct {
	Columns []string `yaml:"columns" json:"columns"`
	Terms   []Term   `yaml:"terms,omitempty" json:"terms,omitempty"`
	Rows    Matrix   `yaml:"rows" json:"rows"`
}

// File is the on-disk layout of one fitted model.
type File struct {
	NoiseModel       string   `yaml:"noise_model" json:"noise_model"`
	Genes            []string `yaml:"genes" json:"genes"`
	X                Matrix   `yaml:"x" json:"x"`
	DesignLoc        Design   `yaml:"design_loc" json:"design_loc"`
	DesignScale      *Design  `yaml:"design_scale,omitempty" json:"design_scale,omitempty"`
	ConstraintsLoc   Matrix   `yaml:"constraints_loc,omitempty" json:"constraints_loc,omitempty"`
	ConstraintsScale Matrix   `yaml:"constraints_scale,omitempty" json:"constraints_scale,omitempty"`
	// ALoc and BScale are coefficients x genes.
	ALoc          Matrix    `yaml:"a_loc" json:"a_loc"`
	BScale        Matrix    `yaml:"b_scale,omitempty" json:"b_scale,omitempty"`
	LogLikelihood []float64 `yaml:"log_likelihood,omitempty" json:"log_likelihood,omitempty"`
	Gradients     []float64 `yaml:"gradients,omitempty" json:"gradients,omitempty"`
	// FisherInv holds one square matrix per gene, location block first.
	FisherInv  []Matrix `yaml:"fisher_inv" json:"fisher_inv"`
	ErrorCodes []int    `yaml:"error_codes,omitempty" json:"error_codes,omitempty"`
	NIter      []int    `yaml:"niter,omitempty" json:"niter,omitempty"`
}

// Model is a loaded estimate plus the design metadata the tests need.
type Model struct {
	Estimate  *detest.StaticEstimate
	LocInfo   detest.DesignInfo
	ScaleInfo detest.DesignInfo
}

// Load reads a model file. The format follows the extension: .json is JSON,
// anything else is YAML.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read estimate: %w", err)
	}
	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode JSON estimate %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode YAML estimate %s: %w", path, err)
		}
	}
	m, err := f.Model()
	if err != nil {
		return nil, fmt.Errorf("estimate %s: %w", path, err)
	}
	return m, nil
}

// Save writes a model file in the format implied by the extension.
func Save(path string, f *File) error {
	var (
		data []byte
		err  error
	)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		data, err = json.MarshalIndent(f, "", "  ")
	} else {
		data, err = yaml.Marshal(f)
	}
	if err != nil {
		return fmt.Errorf("encode estimate: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Model converts the file into an in-memory estimate and validates shapes.
func (f *File) Model() (*Model, error) {
	x, err := f.X.dense("x")
	if err != nil {
		return nil, err
	}
	loc, err := f.DesignLoc.Rows.dense("design_loc")
	if err != nil {
		return nil, err
	}
	a, err := f.ALoc.dense("a_loc")
	if err != nil {
		return nil, err
	}
	est := &detest.StaticEstimate{
		Noise:      f.NoiseModel,
		Genes:      detest.GeneSet(f.Genes),
		Data:       x,
		Loc:        loc,
		LocNames:   f.DesignLoc.Columns,
		A:          a,
		LL:         f.LogLikelihood,
		Grad:       f.Gradients,
		Errors:     f.ErrorCodes,
		Iterations: f.NIter,
	}
	if err := detest.ValidNoiseModel(est.NoiseModel()); err != nil {
		return nil, err
	}
	if est.LocConstraints, err = f.ConstraintsLoc.optional("constraints_loc"); err != nil {
		return nil, err
	}
	if est.ScaleConstraints, err = f.ConstraintsScale.optional("constraints_scale"); err != nil {
		return nil, err
	}
	if est.B, err = f.BScale.optional("b_scale"); err != nil {
		return nil, err
	}
	m := &Model{Estimate: est, LocInfo: f.DesignLoc.info()}
	if f.DesignScale != nil {
		if est.Scale, err = f.DesignScale.Rows.dense("design_scale"); err != nil {
			return nil, err
		}
		m.ScaleInfo = f.DesignScale.info()
	}

	if len(f.FisherInv) != len(f.Genes) {
		return nil, fmt.Errorf("fisher_inv: want one matrix per gene (%d), got %d", len(f.Genes), len(f.FisherInv))
	}
	est.Fisher = make([]*mat.SymDense, len(f.FisherInv))
	for g, fm := range f.FisherInv {
		d, err := fm.dense(fmt.Sprintf("fisher_inv[%d]", g))
		if err != nil {
			return nil, err
		}
		r, c := d.Dims()
		if r != c {
			return nil, fmt.Errorf("fisher_inv[%d]: not square (%dx%d)", g, r, c)
		}
		sym := mat.NewSymDense(r, nil)
		for i := 0; i < r; i++ {
			for j := i; j < r; j++ {
				sym.SetSym(i, j, d.At(i, j))
			}
		}
		est.Fisher[g] = sym
	}

	if err := detest.ValidateEstimate(est); err != nil {
		return nil, err
	}
	if err := detest.ValidateFisher(est); err != nil {
		return nil, err
	}
	return m, nil
}

// FromEstimate captures an estimate in serializable form.
func FromEstimate(e detest.Estimate, locInfo, scaleInfo detest.DesignInfo) *File {
	f := &File{
		NoiseModel:       e.NoiseModel(),
		Genes:            append([]string(nil), e.Features()...),
		X:                toMatrix(e.X()),
		DesignLoc:        Design{Columns: e.DesignLocNames(), Terms: toTerms(locInfo.Terms), Rows: toMatrix(e.DesignLoc())},
		ConstraintsLoc:   toMatrix(e.ConstraintsLoc()),
		ConstraintsScale: toMatrix(e.ConstraintsScale()),
		ALoc:             toMatrix(e.ALoc()),
		BScale:           toMatrix(e.BScale()),
		LogLikelihood:    e.LogLikelihood(),
		Gradients:        e.Gradients(),
		ErrorCodes:       e.ErrorCodes(),
		NIter:            e.NIter(),
	}
	if s := e.DesignScale(); s != nil {
		f.DesignScale = &Design{Columns: scaleInfo.ColumnNames, Terms: toTerms(scaleInfo.Terms), Rows: toMatrix(s)}
	}
	for g := range f.Genes {
		f.FisherInv = append(f.FisherInv, toMatrix(e.FisherInv(g)))
	}
	return f
}

func (d Design) info() detest.DesignInfo {
	info := detest.DesignInfo{ColumnNames: d.Columns}
	for _, t := range d.Terms {
		info.Terms = append(info.Terms, detest.Term{Name: t.Name, Start: t.Start, Stop: t.Stop, Factors: t.Factors})
	}
	return info
}

func toTerms(terms []detest.Term) []Term {
	var out []Term
	for _, t := range terms {
		out = append(out, Term{Name: t.Name, Start: t.Start, Stop: t.Stop, Factors: t.Factors})
	}
	return out
}

func (m Matrix) dense(name string) (*mat.Dense, error) {
	if len(m) == 0 || len(m[0]) == 0 {
		return nil, fmt.Errorf("%s: empty matrix", name)
	}
	r, c := len(m), len(m[0])
	d := mat.NewDense(r, c, nil)
	for i, row := range m {
		if len(row) != c {
			return nil, fmt.Errorf("%s: row %d has %d entries, want %d", name, i, len(row), c)
		}
		d.SetRow(i, row)
	}
	return d, nil
}

func (m Matrix) optional(name string) (*mat.Dense, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m.dense(name)
}

func toMatrix(m mat.Matrix) Matrix {
	if m == nil {
		return nil
	}
	r, c := m.Dims()
	out := make(Matrix, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}
