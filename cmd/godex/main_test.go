package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"godex/adapters/estimate"
	"godex/domain/detest"
	detests "godex/internal/detest"
	"godex/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const expressionCSV = `obs,grouping,partition,gene0,gene1,gene2
s0,a,p0,1,5,3
s1,a,p1,2,6,4
s2,a,p0,3,5,2
s3,a,p1,2,7,3
s4,b,p0,11,6,3
s5,b,p1,12,5,4
s6,b,p0,13,7,2
s7,b,p1,12,6,3
`

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "expr.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GODEX_CONFIG", "")
	t.Setenv("GODEX_LOG_LEVEL", "error")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func csvLines(out string) []string {
	return strings.Split(strings.TrimSpace(out), "\n")
}

func TestTTestCommand(t *testing.T) {
	out, err := run(t, "ttest", "-i", writeInput(t, expressionCSV), "-f", "csv")
	require.NoError(t, err)

	lines := csvLines(out)
	require.Len(t, lines, 4)
	assert.Equal(t, "gene,pval,qval,log2fc,mean,zero_mean,zero_variance", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "gene0,"))
}

func TestRankCommandThreshold(t *testing.T) {
	out, err := run(t, "rank", "-i", writeInput(t, expressionCSV), "-f", "csv", "--qval-max", "0.2")
	require.NoError(t, err)

	lines := csvLines(out)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "gene0,"))
}

func TestJSONReport(t *testing.T) {
	out, err := run(t, "ttest", "-i", writeInput(t, expressionCSV), "-f", "json")
	require.NoError(t, err)

	var doc struct {
		RunID string           `json:"run_id"`
		Test  string           `json:"test"`
		Rows  []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.NotEmpty(t, doc.RunID)
	assert.Equal(t, "t-test", doc.Test)
	assert.Len(t, doc.Rows, 3)
}

func TestPairwiseCommand(t *testing.T) {
	input := writeInput(t, expressionCSV)

	out, err := run(t, "pairwise", "-i", input, "-f", "csv")
	require.NoError(t, err)
	assert.Len(t, csvLines(out), 4)

	out, err = run(t, "pairwise", "-i", input, "-f", "csv", "--group0", "a", "--group1", "b")
	require.NoError(t, err)
	assert.Len(t, csvLines(out), 4)

	_, err = run(t, "pairwise", "-i", input, "--group0", "a", "--group1", "c")
	assert.ErrorContains(t, err, "c")
}

func TestVersusRestCommand(t *testing.T) {
	out, err := run(t, "vsrest", "-i", writeInput(t, expressionCSV), "-f", "csv", "--target", "b")
	require.NoError(t, err)
	assert.Len(t, csvLines(out), 4)
}

func TestPartitionCommand(t *testing.T) {
	input := writeInput(t, expressionCSV)

	out, err := run(t, "partition", "-i", input, "-f", "csv")
	require.NoError(t, err)
	assert.Len(t, csvLines(out), 4)

	out, err = run(t, "partition", "-i", input, "-f", "csv", "--partition", "p1")
	require.NoError(t, err)
	assert.Len(t, csvLines(out), 4)
}

func TestMissingAnnotationColumn(t *testing.T) {
	_, err := run(t, "ttest", "-i", writeInput(t, expressionCSV), "-g", "condition")
	assert.ErrorContains(t, err, `"condition"`)
}

func TestWorkbookOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.xlsx")
	_, err := run(t, "ttest", "-i", writeInput(t, expressionCSV), "-o", path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

type designFunc func(labels, groups []string) (*mat.Dense, detest.DesignInfo)

func interceptOnly(labels, _ []string) (*mat.Dense, detest.DesignInfo) {
	return detests.InterceptDesign(len(labels))
}

func saveModel(t *testing.T, name string, build designFunc) string {
	t.Helper()
	c := testkit.GenerateCounts(testkit.CountsConfig{
		Groups:   []string{"a", "b"},
		PerGroup: 10,
		Genes:    4,
		BaseMean: 20,
		Effects:  map[int][]float64{0: {1, 4}},
		Noise:    0.1,
		Seed:     7,
	})
	design, info := build(c.Grouping, detest.Groups(c.Grouping))
	est, err := testkit.NewLinearFitter().Fit(context.Background(), detest.FitRequest{
		NoiseModel:    "nb",
		X:             c.X,
		Features:      c.Genes,
		DesignLoc:     design,
		DesignLocInfo: info,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, estimate.Save(path, estimate.FromEstimate(est, info, detest.DesignInfo{ColumnNames: []string{"Intercept"}})))
	return path
}

func TestWaldCommand(t *testing.T) {
	model := saveModel(t, "full.yaml", detests.GroupDesign)

	out, err := run(t, "wald", "--estimate", model, "--coef", "grouping[T.b]", "-f", "csv", "--qval-max", "1e-3")
	require.NoError(t, err)
	lines := csvLines(out)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "gene0,"))

	_, err = run(t, "wald", "--estimate", model, "--coef", "grouping[T.c]")
	assert.Error(t, err)
}

func TestLRTCommand(t *testing.T) {
	full := saveModel(t, "full.json", detests.GroupDesign)
	reduced := saveModel(t, "reduced.json", interceptOnly)

	out, err := run(t, "lrt", "--full", full, "--reduced", reduced, "-f", "csv")
	require.NoError(t, err)
	assert.Len(t, csvLines(out), 5)
}

func TestPairwiseFromEstimate(t *testing.T) {
	model := saveModel(t, "onehot.yaml", detests.OneHotDesign)

	_, err := run(t, "pairwise", "--estimate", model, "--groups", "a,b", "--lazy")
	assert.ErrorContains(t, err, "--group0")

	out, err := run(t, "pairwise", "--estimate", model, "--groups", "a,b", "--lazy", "--group0", "a", "--group1", "b", "-f", "csv")
	require.NoError(t, err)
	assert.Len(t, csvLines(out), 5)
}
