package report

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"godex/domain/core"
	"godex/domain/detest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(t *testing.T) *Report {
	t.Helper()
	tbl, err := detest.NewTable(detest.GeneSet{"g0", "g1"},
		[]float64{0.001, math.NaN()},
		[]float64{0.002, math.NaN()},
		[]float64{2, 0},
		[]float64{10, 0},
		detest.Column{Name: "zero_mean", Bools: []bool{false, true}})
	require.NoError(t, err)
	return New("Treatment vs control", "t-test", tbl)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "CSV": FormatCSV, ".md": FormatMarkdown, "html": FormatHTML, "json": FormatJSON} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("pdf")
	assert.True(t, core.IsConfigError(err))
}

func TestWriteCSV(t *testing.T) {
	out, err := Bytes(FormatCSV, sampleReport(t))
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(out))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"gene", "pval", "qval", "log2fc", "mean", "zero_mean"}, records[0])
	assert.Equal(t, []string{"g0", "0.001", "0.002", "2", "10", "false"}, records[1])
	assert.Equal(t, "NaN", records[2][1])
}

func TestWriteJSONUsesNullForNaN(t *testing.T) {
	r := sampleReport(t)
	out, err := Bytes(FormatJSON, r)
	require.NoError(t, err)

	var decoded struct {
		RunID   string           `json:"run_id"`
		Test    string           `json:"test"`
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, r.RunID.String(), decoded.RunID)
	assert.Equal(t, "t-test", decoded.Test)
	require.Len(t, decoded.Rows, 2)
	assert.Nil(t, decoded.Rows[1]["pval"])
	assert.Equal(t, true, decoded.Rows[1]["zero_mean"])
	assert.Equal(t, 2.0, decoded.Rows[0]["log2fc"])
}

func TestMarkdownAndHTML(t *testing.T) {
	r := sampleReport(t)
	md := Markdown(r)
	assert.Contains(t, md, "# Treatment vs control")
	assert.Contains(t, md, "| gene | pval | qval | log2fc | mean | zero_mean |")
	assert.Contains(t, md, "| g0 | 0.001 |")

	page := string(HTML(r))
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<title>Treatment vs control</title>")
	assert.Contains(t, page, "<td>g1</td>")
}

func TestWriteText(t *testing.T) {
	out, err := Bytes(FormatText, sampleReport(t))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Contains(t, lines[0], "Treatment vs control")
	assert.True(t, strings.HasPrefix(lines[2], "gene"))
	assert.Len(t, lines, 5)

	_, err = Bytes(Format("xml"), sampleReport(t))
	assert.Error(t, err)
}
