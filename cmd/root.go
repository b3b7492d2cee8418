/*
Copyright © 2025 Godwin Mafireyi (mafireyi@gmail.com)
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/gmaffy/bamqc/qc"
	"github.com/gmaffy/bamqc/utils"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

// rootCmd is the single bamqc entry point.
var rootCmd = &cobra.Command{
	Use:     "bamqc <reference.fa> <alignment.bam> [flags]",
	Short:   "Quality-control report for a sequence alignment file",
	Version: version,
	Long: `bamqc produces a QC report for an alignment file by running:
1.	bamstats: per-alignment metrics as tabular files
2.	verifyBamID: contamination estimate (only with -g genotypes)
3.	qcreport: renders the final report document

bamqc owns the working files between stages and removes them after a
successful run unless -k is set or a path was supplied externally.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return &qc.UsageError{Reason: fmt.Sprintf("expected exactly 2 arguments (reference, alignment), got %d", len(args))}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Checking dependencies ...\n\n")

		cfg, err := buildConfig(cmd, args)
		if err != nil {
			return err
		}

		deps := []string{qc.StatsProgram, qc.ReportProgram}
		if cfg.Genotypes != "" {
			deps = append(deps, qc.ContamProgram)
		}
		if err := utils.CheckDeps(deps...); err != nil {
			return &qc.OptionError{Reason: err.Error()}
		}

		fmt.Printf("Dependencies OK\n\n----------------------------------------------------------\n\n")

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := qc.ValidateReference(cfg.Reference); err != nil {
			return err
		}

		if err := qc.NewPipeline(cfg).Run(cmd.Context()); err != nil {
			var cleanupErr *qc.CleanupError
			if errors.As(err, &cleanupErr) {
				// The report was written; only cleanup is incomplete.
				fmt.Printf("Report saved at: %s\n", cfg.Report)
			}
			return err
		}

		fmt.Printf("Report saved at: %s\n", cfg.Report)
		return nil
	},
}

// buildConfig merges the optional config file with command-line flags.
// Flags win over config-file values.
func buildConfig(cmd *cobra.Command, args []string) (qc.Config, error) {
	var cfg qc.Config

	configFile, cErr := cmd.Flags().GetString("config")
	if cErr != nil {
		return cfg, fmt.Errorf("error getting config flag: %v", cErr)
	}

	var fileCfg utils.Config
	if configFile != "" {
		var err error
		fileCfg, err = utils.ReadConfig(configFile)
		if err != nil {
			return cfg, &qc.OptionError{Reason: fmt.Sprintf("cannot read config file %s: %v", configFile, err)}
		}
	}

	report, oErr := cmd.Flags().GetString("output")
	if oErr != nil {
		return cfg, fmt.Errorf("error getting output flag: %v", oErr)
	}

	window, wErr := cmd.Flags().GetInt("window")
	if wErr != nil {
		return cfg, fmt.Errorf("error getting window flag: %v", wErr)
	}

	singleEnd, sErr := cmd.Flags().GetBool("single-end")
	if sErr != nil {
		return cfg, fmt.Errorf("error getting single-end flag: %v", sErr)
	}

	keep, kErr := cmd.Flags().GetBool("keep")
	if kErr != nil {
		return cfg, fmt.Errorf("error getting keep flag: %v", kErr)
	}

	statsFile, sfErr := cmd.Flags().GetString("stats-file")
	if sfErr != nil {
		return cfg, fmt.Errorf("error getting stats-file flag: %v", sfErr)
	}

	insertsFile, ifErr := cmd.Flags().GetString("inserts-file")
	if ifErr != nil {
		return cfg, fmt.Errorf("error getting inserts-file flag: %v", ifErr)
	}

	genotypes, gErr := cmd.Flags().GetString("genotypes")
	if gErr != nil {
		return cfg, fmt.Errorf("error getting genotypes flag: %v", gErr)
	}

	debug, dErr := cmd.Flags().GetBool("debug")
	if dErr != nil {
		return cfg, fmt.Errorf("error getting debug flag: %v", dErr)
	}

	cfg = qc.Config{
		Reference:   args[0],
		Alignment:   args[1],
		Report:      report,
		WindowSize:  window,
		SingleEnd:   singleEnd,
		Keep:        keep,
		StatsFile:   statsFile,
		InsertsFile: insertsFile,
		Genotypes:   genotypes,
		Debug:       debug,
	}

	// Config file fills only the gaps left at the flag defaults.
	if !cmd.Flags().Changed("output") && fileCfg.Report != "" {
		cfg.Report = fileCfg.Report
	}
	if !cmd.Flags().Changed("window") && fileCfg.Window != "" {
		w, err := strconv.Atoi(fileCfg.Window)
		if err != nil {
			return cfg, &qc.OptionError{Reason: fmt.Sprintf("config file Window is not an integer: %q", fileCfg.Window)}
		}
		cfg.WindowSize = w
	}
	if cfg.Genotypes == "" {
		cfg.Genotypes = fileCfg.Genotypes
	}
	if cfg.StatsFile == "" {
		cfg.StatsFile = fileCfg.StatsFile
	}
	if cfg.InsertsFile == "" {
		cfg.InsertsFile = fileCfg.InsertsFile
	}

	return cfg, nil
}

// Execute runs the root command and exits with the code for any error.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "bamqc: %v\n", err)
	code := qc.ExitCode(err)
	if code == qc.ExitOption || code == qc.ExitUsage {
		fmt.Fprintln(os.Stderr, rootCmd.UsageString())
	}
	os.Exit(code)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "report.pdf", "path for the rendered report")
	cmd.Flags().IntP("window", "w", 1000000, "window size for the stats engine")
	cmd.Flags().BoolP("single-end", "s", false, "alignment is single-end (default paired-end)")
	cmd.Flags().BoolP("keep", "k", false, "keep working files and echo the final command")
	cmd.Flags().String("stats-file", "", "write the stats summary to this path instead of a working file")
	cmd.Flags().String("inserts-file", "", "write insert lengths to this path instead of a working file")
	cmd.Flags().StringP("genotypes", "g", "", "genotypes VCF, enables the contamination check")
	cmd.Flags().Bool("debug", false, "trace every external invocation")
	cmd.Flags().StringP("config", "c", "", "path to key: value config file")
}

func init() {
	addRunFlags(rootCmd)
}
