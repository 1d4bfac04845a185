package detest

import (
	"fmt"
	"sort"
	"strings"

	"godex/domain/core"
)

// GeneSet is the ordered list of feature identifiers. Identity is positional.
type GeneSet []string

// Index returns the position of id, or -1.
func (g GeneSet) Index(id string) int {
	for i, s := range g {
		if s == id {
			return i
		}
	}
	return -1
}

// TestKind discriminates the concrete test result variants.
type TestKind string

const (
	KindLRT          TestKind = "lrt"
	KindWald         TestKind = "wald"
	KindTTest        TestKind = "t-test"
	KindRank         TestKind = "wilcoxon"
	KindContinuous   TestKind = "continuous"
	KindPairwise     TestKind = "pairwise"
	KindZTest        TestKind = "z-test"
	KindPairwiseLazy TestKind = "z-test-lazy"
	KindVersusRest   TestKind = "versus-rest"
	KindPartition    TestKind = "partition"
)

// ParseTestName normalizes the user-facing test names accepted by the drivers.
func ParseTestName(name string) (TestKind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wald":
		return KindWald, nil
	case "lrt":
		return KindLRT, nil
	case "t-test", "t_test", "ttest":
		return KindTTest, nil
	case "wilcoxon", "rank":
		return KindRank, nil
	case "z-test", "z_test", "ztest":
		return KindZTest, nil
	default:
		return "", fmt.Errorf("%w: test %q", core.ErrUnknownTest, name)
	}
}

// IsModelBased reports whether the test needs a fitted model.
func (k TestKind) IsModelBased() bool {
	return k == KindWald || k == KindLRT || k == KindZTest
}

// CorrectionPolicy selects how multi-test p-values are grouped for correction.
type CorrectionPolicy string

const (
	// CorrectGlobal corrects every p-value of a tensor in one call.
	CorrectGlobal CorrectionPolicy = "global"
	// CorrectByTest corrects each (group, group) row over genes independently.
	CorrectByTest CorrectionPolicy = "by_test"
)

// ParseCorrectionPolicy parses a policy name.
func ParseCorrectionPolicy(s string) (CorrectionPolicy, error) {
	switch CorrectionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case CorrectGlobal:
		return CorrectGlobal, nil
	case CorrectByTest:
		return CorrectByTest, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnknownPolicy, s)
	}
}

// Groups derives the sorted unique label set. The order defines the indices of
// every pairwise matrix, so all code paths must derive groups through here.
func Groups(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0)
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// GroupIndex maps each group to its position in groups.
func GroupIndex(groups []string) map[string]int {
	idx := make(map[string]int, len(groups))
	for i, g := range groups {
		idx[g] = i
	}
	return idx
}

// Observations returns the observation indices whose label is in any of want.
func Observations(labels []string, want ...string) []int {
	set := make(map[string]struct{}, len(want))
	for _, w := range want {
		set[w] = struct{}{}
	}
	var rows []int
	for i, l := range labels {
		if _, ok := set[l]; ok {
			rows = append(rows, i)
		}
	}
	return rows
}
