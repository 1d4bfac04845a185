// Package correction adjusts p-value collections for multiple testing.
//
// Methods are looked up by name in a registry so callers never depend on a
// particular procedure. NaN p-values are excluded from the number of tests and
// come back as NaN.
package correction

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"godex/domain/core"
	"godex/domain/detest"
)

// DefaultMethod is Benjamini-Hochberg false discovery rate control.
const DefaultMethod = "fdr_bh"

// Method adjusts p-values sorted ascending. It must not see NaN and returns
// values in the same order.
type Method func(sorted []float64) []float64

var (
	mu      sync.RWMutex
	methods = map[string]Method{
		"fdr_bh":         fdrBH,
		"fdr_by":         fdrBY,
		"bonferroni":     bonferroni,
		"sidak":          sidak,
		"holm":           holm,
		"holm-sidak":     holmSidak,
		"simes-hochberg": simesHochberg,
		"hommel":         hommel,
	}
)

// Register adds or replaces a correction method.
func Register(name string, m Method) {
	mu.Lock()
	defer mu.Unlock()
	methods[strings.ToLower(name)] = m
}

// Lookup returns the method registered under name.
func Lookup(name string) (Method, error) {
	mu.RLock()
	defer mu.RUnlock()
	m, ok := methods[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownMethod, name)
	}
	return m, nil
}

// Methods lists the registered method names.
func Methods() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(methods))
	for n := range methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Correct returns adjusted p-values in input order.
func Correct(pvals []float64, method string) ([]float64, error) {
	m, err := Lookup(method)
	if err != nil {
		return nil, err
	}
	return apply(pvals, m), nil
}

func apply(pvals []float64, m Method) []float64 {
	out := make([]float64, len(pvals))
	idx := make([]int, 0, len(pvals))
	for i, p := range pvals {
		out[i] = math.NaN()
		if !math.IsNaN(p) {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		copy(out, pvals)
		return out
	}

	sort.SliceStable(idx, func(a, b int) bool { return pvals[idx[a]] < pvals[idx[b]] })
	sorted := make([]float64, len(idx))
	for k, i := range idx {
		sorted[k] = pvals[i]
	}
	adj := m(sorted)
	for k, i := range idx {
		out[i] = math.Min(1, adj[k])
	}
	return out
}

// CorrectTensor corrects a multi-test tensor. Global flattens the tensor into
// a single call; by-test corrects every (a, b) gene row on its own.
func CorrectTensor(t *detest.Tensor, policy detest.CorrectionPolicy, method string) (*detest.Tensor, error) {
	m, err := Lookup(method)
	if err != nil {
		return nil, err
	}
	out := &detest.Tensor{A: t.A, B: t.B, G: t.G}
	switch policy {
	case detest.CorrectGlobal:
		out.Data = apply(t.Data, m)
	case detest.CorrectByTest:
		out.Data = make([]float64, len(t.Data))
		for a := 0; a < t.A; a++ {
			for b := 0; b < t.B; b++ {
				out.SetRow(a, b, apply(t.Row(a, b), m))
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownPolicy, policy)
	}
	return out, nil
}

func fdrBH(p []float64) []float64 {
	return cumMinReverse(fdrBHRaw(p))
}

func fdrBY(p []float64) []float64 {
	cm := 0.0
	for i := 1; i <= len(p); i++ {
		cm += 1 / float64(i)
	}
	raw := fdrBHRaw(p)
	for i := range raw {
		raw[i] *= cm
	}
	return cumMinReverse(raw)
}

func fdrBHRaw(p []float64) []float64 {
	n := float64(len(p))
	raw := make([]float64, len(p))
	for i, v := range p {
		raw[i] = v * n / float64(i+1)
	}
	return raw
}

func bonferroni(p []float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = v * float64(len(p))
	}
	return out
}

func sidak(p []float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = -math.Expm1(float64(len(p)) * math.Log1p(-v))
	}
	return out
}

func holm(p []float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = v * float64(len(p)-i)
	}
	return cumMax(out)
}

func holmSidak(p []float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = -math.Expm1(float64(len(p)-i) * math.Log1p(-v))
	}
	return cumMax(out)
}

func simesHochberg(p []float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = v * float64(len(p)-i)
	}
	return cumMinReverse(out)
}

func hommel(p []float64) []float64 {
	n := len(p)
	a := append([]float64(nil), p...)
	for m := n; m > 1; m-- {
		cim := math.Inf(1)
		for k := 0; k < m; k++ {
			cim = math.Min(cim, float64(m)*p[n-m+k]/float64(k+1))
		}
		for i := n - m; i < n; i++ {
			a[i] = math.Max(a[i], cim)
		}
		for i := 0; i < n-m; i++ {
			a[i] = math.Max(a[i], math.Min(float64(m)*p[i], cim))
		}
	}
	return a
}

func cumMinReverse(v []float64) []float64 {
	for i := len(v) - 2; i >= 0; i-- {
		if v[i+1] < v[i] {
			v[i] = v[i+1]
		}
	}
	return v
}

func cumMax(v []float64) []float64 {
	for i := 1; i < len(v); i++ {
		if v[i-1] > v[i] {
			v[i] = v[i-1]
		}
	}
	return v
}
