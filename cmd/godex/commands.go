package main

import (
	"fmt"
	"strings"

	"godex/adapters/estimate"
	"godex/domain/detest"
	detests "godex/internal/detest"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTwoSampleCmd(e *env, use, test, short string) *cobra.Command {
	var in inputFlags
	var tf testFlags
	var out outputFlags
	var groupColumn string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: fmt.Sprintf(`Runs a %s per gene between the two groups of an annotation column.
The first sorted group is the reference.`, test),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := in.read(e)
			if err != nil {
				return err
			}
			grouping, err := annotation(expr, groupColumn)
			if err != nil {
				return err
			}
			opts, err := tf.options(e)
			if err != nil {
				return err
			}
			res, err := detests.TwoSample(cmd.Context(), expr.X, grouping, expr.Genes, test, opts...)
			if err != nil {
				return err
			}
			tbl, err := res.Summary(tf.threshold(cmd))
			if err != nil {
				return err
			}
			e.logger.Info("test finished", zap.String("test", test), zap.Int("genes", len(expr.Genes)), zap.Int("kept", tbl.Len()))
			return out.write(cmd, use+" "+groupColumn, test, tbl)
		},
	}
	in.register(cmd)
	tf.register(cmd)
	out.register(cmd)
	cmd.Flags().StringVarP(&groupColumn, "group", "g", "grouping", "Annotation column with the two groups")
	return cmd
}

func newPairwiseCmd(e *env) *cobra.Command {
	var in inputFlags
	var tf testFlags
	var out outputFlags
	var groupColumn, test, estimatePath string
	var groups []string
	var lazy bool
	var group0, group1 string

	cmd := &cobra.Command{
		Use:   "pairwise",
		Short: "Test every pair of groups",
		Long: `Runs a two-sample test for every pair of groups. With --estimate the
z-test reads a fitted model whose location coefficients follow --groups.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := tf.options(e)
			if err != nil {
				return err
			}
			opts = append(opts, detests.WithLazy(lazy))

			var res detests.Multi
			if estimatePath != "" {
				m, err := estimate.Load(estimatePath)
				if err != nil {
					return err
				}
				if lazy {
					res, err = detests.NewPairwiseLazy(m.Estimate, groups, opts...)
				} else {
					res, err = detests.NewZTestPairwise(m.Estimate, groups, opts...)
				}
				if err != nil {
					return err
				}
				test = string(detest.KindZTest)
			} else {
				expr, err := in.read(e)
				if err != nil {
					return err
				}
				grouping, err := annotation(expr, groupColumn)
				if err != nil {
					return err
				}
				res, err = detests.Pairwise(cmd.Context(), expr.X, grouping, expr.Genes, test, opts...)
				if err != nil {
					return err
				}
			}

			th := tf.threshold(cmd)
			var tbl *detest.Table
			switch p := res.(type) {
			case *detests.PairwiseLazy:
				if group0 == "" || group1 == "" {
					return fmt.Errorf("lazy results need --group0 and --group1")
				}
				tbl, err = p.SummaryPair([]string{group0}, []string{group1}, th)
			case *detests.PairwiseResult:
				if group0 != "" || group1 != "" {
					tbl, err = p.SummaryPair(group0, group1, th)
				} else {
					tbl, err = p.Summary(th)
				}
			default:
				tbl, err = res.Summary(th)
			}
			if err != nil {
				return err
			}
			title := "pairwise"
			if group0 != "" {
				title = fmt.Sprintf("pairwise %s vs %s", group1, group0)
			}
			return out.write(cmd, title, test, tbl)
		},
	}
	in.registerOptional(cmd)
	tf.register(cmd)
	out.register(cmd)
	cmd.Flags().StringVarP(&groupColumn, "group", "g", "grouping", "Annotation column with the groups")
	cmd.Flags().StringVarP(&test, "test", "t", string(detest.KindTTest), "Test: t-test, wilcoxon or z-test")
	cmd.Flags().StringVar(&estimatePath, "estimate", "", "Fitted model file for the z-test")
	cmd.Flags().StringSliceVar(&groups, "groups", nil, "Group names in coefficient order, with --estimate")
	cmd.Flags().BoolVar(&lazy, "lazy", false, "Compute only the requested pair")
	cmd.Flags().StringVar(&group0, "group0", "", "Reference group of one comparison")
	cmd.Flags().StringVar(&group1, "group1", "", "Other group of one comparison")
	cmd.MarkFlagsMutuallyExclusive("input", "estimate")
	cmd.MarkFlagsOneRequired("input", "estimate")
	cmd.MarkFlagsRequiredTogether("estimate", "groups")
	return cmd
}

func newVersusRestCmd(e *env) *cobra.Command {
	var in inputFlags
	var tf testFlags
	var out outputFlags
	var groupColumn, test, target string

	cmd := &cobra.Command{
		Use:   "vsrest",
		Short: "Test each group against all other observations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := in.read(e)
			if err != nil {
				return err
			}
			grouping, err := annotation(expr, groupColumn)
			if err != nil {
				return err
			}
			opts, err := tf.options(e)
			if err != nil {
				return err
			}
			res, err := detests.VersusRest(cmd.Context(), expr.X, grouping, expr.Genes, test, opts...)
			if err != nil {
				return err
			}
			th := tf.threshold(cmd)
			var tbl *detest.Table
			if target != "" {
				tbl, err = res.SummaryGroup(target, th)
			} else {
				tbl, err = res.Summary(th)
			}
			if err != nil {
				return err
			}
			return out.write(cmd, strings.TrimSpace("versus rest "+target), test, tbl)
		},
	}
	in.register(cmd)
	tf.register(cmd)
	out.register(cmd)
	cmd.Flags().StringVarP(&groupColumn, "group", "g", "grouping", "Annotation column with the groups")
	cmd.Flags().StringVarP(&test, "test", "t", string(detest.KindTTest), "Test: t-test or wilcoxon")
	cmd.Flags().StringVar(&target, "target", "", "Summarize one group against the rest")
	return cmd
}

func newPartitionCmd(e *env) *cobra.Command {
	var in inputFlags
	var tf testFlags
	var out outputFlags
	var groupColumn, partitionColumn, test, partition string

	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Run a two-sample test within each partition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			expr, err := in.read(e)
			if err != nil {
				return err
			}
			grouping, err := annotation(expr, groupColumn)
			if err != nil {
				return err
			}
			parts, err := annotation(expr, partitionColumn)
			if err != nil {
				return err
			}
			opts, err := tf.options(e)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("policy") && e.cfg.Engine.CorrectionPolicy == string(detest.CorrectGlobal) {
				opts = append(opts, detests.WithPolicy(detest.CorrectByTest))
			}
			p, err := detests.NewPartition(expr.X, parts, expr.Genes, opts...)
			if err != nil {
				return err
			}
			res, err := p.TwoSample(cmd.Context(), grouping, test)
			if err != nil {
				return err
			}
			th := tf.threshold(cmd)
			var tbl *detest.Table
			if partition != "" {
				tbl, err = res.SummaryPartition(partition, th)
			} else {
				tbl, err = res.Summary(th)
			}
			if err != nil {
				return err
			}
			return out.write(cmd, strings.TrimSpace("partition "+partition), test, tbl)
		},
	}
	in.register(cmd)
	tf.register(cmd)
	out.register(cmd)
	cmd.Flags().StringVarP(&groupColumn, "group", "g", "grouping", "Annotation column with the two groups")
	cmd.Flags().StringVarP(&partitionColumn, "partition-column", "p", "partition", "Annotation column with the partitions")
	cmd.Flags().StringVarP(&test, "test", "t", string(detest.KindTTest), "Test: t-test or wilcoxon")
	cmd.Flags().StringVar(&partition, "partition", "", "Summarize one partition only")
	return cmd
}

func newWaldCmd(e *env) *cobra.Command {
	var tf testFlags
	var out outputFlags
	var estimatePath string
	var coefs []string

	cmd := &cobra.Command{
		Use:   "wald",
		Short: "Wald test of location coefficients of a fitted model",
		Long: `Tests the named location coefficients of a fitted model jointly. One
coefficient gives a z-test, several a chi-square test.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := estimate.Load(estimatePath)
			if err != nil {
				return err
			}
			idx := make([]int, len(coefs))
			for k, name := range coefs {
				if idx[k], err = detests.CoefIndex(m.Estimate, name); err != nil {
					return err
				}
			}
			opts, err := tf.options(e)
			if err != nil {
				return err
			}
			w, err := detests.NewWald(m.Estimate, idx, opts...)
			if err != nil {
				return err
			}
			tbl, err := w.Summary(tf.threshold(cmd))
			if err != nil {
				return err
			}
			return out.write(cmd, "wald "+strings.Join(coefs, ","), string(detest.KindWald), tbl)
		},
	}
	tf.register(cmd)
	out.register(cmd)
	cmd.Flags().StringVar(&estimatePath, "estimate", "", "Fitted model file")
	cmd.Flags().StringSliceVar(&coefs, "coef", nil, "Location coefficient names to test")
	_ = cmd.MarkFlagRequired("estimate")
	_ = cmd.MarkFlagRequired("coef")
	return cmd
}

func newLRTCmd(e *env) *cobra.Command {
	var tf testFlags
	var out outputFlags
	var fullPath, reducedPath string

	cmd := &cobra.Command{
		Use:   "lrt",
		Short: "Likelihood ratio test between a full and a reduced model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			full, err := estimate.Load(fullPath)
			if err != nil {
				return err
			}
			reduced, err := estimate.Load(reducedPath)
			if err != nil {
				return err
			}
			opts, err := tf.options(e)
			if err != nil {
				return err
			}
			l, err := detests.NewLRT(full.Estimate, reduced.Estimate, full.LocInfo, reduced.LocInfo, opts...)
			if err != nil {
				return err
			}
			tbl, err := l.Summary(tf.threshold(cmd))
			if err != nil {
				return err
			}
			e.logger.Debug("likelihood ratio test", zap.Int("df", l.DFDifference()))
			return out.write(cmd, "lrt", string(detest.KindLRT), tbl)
		},
	}
	tf.register(cmd)
	out.register(cmd)
	cmd.Flags().StringVar(&fullPath, "full", "", "Full model file")
	cmd.Flags().StringVar(&reducedPath, "reduced", "", "Reduced model file")
	_ = cmd.MarkFlagRequired("full")
	_ = cmd.MarkFlagRequired("reduced")
	return cmd
}
