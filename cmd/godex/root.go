package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"godex/adapters/excel"
	"godex/adapters/report"
	"godex/domain/detest"
	"godex/internal/config"
	detests "godex/internal/detest"
	"godex/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// env is shared by every command once the root pre-run has loaded it.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}
	var configPath, logLevel string

	rootCmd := &cobra.Command{
		Use:           "godex",
		Short:         "Differential expression tests on expression matrices",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				if err := os.Setenv("GODEX_CONFIG", configPath); err != nil {
					return err
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			e.cfg, e.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file (overrides GODEX_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newTwoSampleCmd(e, "ttest", "t-test", "Welch t-test between two groups"),
		newTwoSampleCmd(e, "rank", "wilcoxon", "Mann-Whitney rank-sum test between two groups"),
		newPairwiseCmd(e),
		newVersusRestCmd(e),
		newPartitionCmd(e),
		newWaldCmd(e),
		newLRTCmd(e),
		newServeCmd(e),
	)
	return rootCmd
}

// inputFlags locate the expression table.
type inputFlags struct {
	path      string
	sheet     string
	obsColumn string
	columns   []string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	f.registerOptional(cmd)
	_ = cmd.MarkFlagRequired("input")
}

func (f *inputFlags) registerOptional(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "input", "i", "", "Expression table (.xlsx or .csv), observations in rows")
	cmd.Flags().StringVar(&f.sheet, "sheet", excel.DefaultSheet, "Workbook sheet")
	cmd.Flags().StringVar(&f.obsColumn, "obs-column", "", "Observation name column, detected when empty, \"-\" for none")
	cmd.Flags().StringSliceVar(&f.columns, "annotation", nil, "Annotation columns, default every non-numeric column")
}

func (f *inputFlags) read(e *env) (*excel.Expression, error) {
	return excel.NewDataReader(f.path, e.logger).WithSheet(f.sheet).ReadExpression(excel.ExpressionConfig{
		ObservationColumn: f.obsColumn,
		AnnotationColumns: f.columns,
	})
}

func annotation(expr *excel.Expression, name string) ([]string, error) {
	col, ok := expr.Annotation(name)
	if !ok {
		return nil, fmt.Errorf("annotation column %q not found", name)
	}
	return col, nil
}

// testFlags are the engine settings every test command accepts.
type testFlags struct {
	correction string
	policy     string
	logged     bool
	keepTests  bool
	workers    int
	qvalMax    float64
	fcUpper    float64
	fcLower    float64
	meanMin    float64
}

func (f *testFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.correction, "correction", "", "Multiple testing correction method")
	cmd.Flags().StringVar(&f.policy, "policy", "", "Correction policy for multi-test results: global or by_test")
	cmd.Flags().BoolVar(&f.logged, "logged", false, "Data is already log transformed")
	cmd.Flags().BoolVar(&f.keepTests, "keep-tests", false, "Keep individual sub-tests")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent sub-tests")
	cmd.Flags().Float64Var(&f.qvalMax, "qval-max", 0, "Keep genes with qval at or below this value")
	cmd.Flags().Float64Var(&f.fcUpper, "fc-upper", 0, "Keep genes with fold change at or above this value")
	cmd.Flags().Float64Var(&f.fcLower, "fc-lower", 0, "Keep genes with fold change at or below this value")
	cmd.Flags().Float64Var(&f.meanMin, "mean-min", 0, "Keep genes with mean at or above this value")
}

func (f *testFlags) options(e *env) ([]detests.Option, error) {
	method := e.cfg.Engine.CorrectionMethod
	if f.correction != "" {
		method = f.correction
	}
	policy := e.cfg.Policy()
	if f.policy != "" {
		p, err := detest.ParseCorrectionPolicy(f.policy)
		if err != nil {
			return nil, err
		}
		policy = p
	}
	workers := e.cfg.Engine.Workers
	if f.workers > 0 {
		workers = f.workers
	}
	keep := e.cfg.Engine.KeepTests || f.keepTests
	return []detests.Option{
		detests.WithLogger(e.logger),
		detests.WithCorrection(method),
		detests.WithPolicy(policy),
		detests.WithWorkers(workers),
		detests.WithKeepTests(keep),
		detests.WithLogged(f.logged),
	}, nil
}

func (f *testFlags) threshold(cmd *cobra.Command) detest.Threshold {
	var th detest.Threshold
	if cmd.Flags().Changed("qval-max") {
		th.QvalMax = detest.Float(f.qvalMax)
	}
	if cmd.Flags().Changed("fc-upper") {
		th.FCUpper = detest.Float(f.fcUpper)
	}
	if cmd.Flags().Changed("fc-lower") {
		th.FCLower = detest.Float(f.fcLower)
	}
	if cmd.Flags().Changed("mean-min") {
		th.MeanMin = detest.Float(f.meanMin)
	}
	return th
}

// outputFlags choose where and how the summary is written.
type outputFlags struct {
	format string
	output string
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Output format: text, csv, json, markdown, html")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file, .xlsx writes a workbook")
}

func (f *outputFlags) write(cmd *cobra.Command, title, test string, tbl *detest.Table) error {
	if strings.EqualFold(filepath.Ext(f.output), ".xlsx") {
		return excel.WriteTable(f.output, tbl)
	}
	name := f.format
	if name == "" && f.output != "" {
		name = filepath.Ext(f.output)
	}
	format, err := report.ParseFormat(name)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}
	return report.Write(w, format, report.New(title, test, tbl))
}
