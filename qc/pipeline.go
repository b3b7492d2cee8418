package qc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// runState tracks where a run is in its lifecycle. Any running state can
// move to stateFailed; stateFailed and stateDone are terminal.
type runState string

const (
	stateIdle     runState = "IDLE"
	stateStats    runState = "STATS_RUNNING"
	stateContam   runState = "CONTAM_RUNNING"
	stateReshaped runState = "CONTAM_RESHAPED"
	stateReport   runState = "REPORT_RUNNING"
	stateCleanup  runState = "CLEANUP"
	stateDone     runState = "DONE"
	stateFailed   runState = "FAILED"
)

// Pipeline sequences the three external engines over one alignment file
// and owns the working artifacts in between.
type Pipeline struct {
	cfg    Config
	runner Runner
	log    *slog.Logger
	state  runState

	contamDir      string // verifyBamID working directory, removed in cleanup
	lastInvocation string // echoed to diagnostics when --keep is set
}

// NewPipeline builds a pipeline for cfg with the subprocess runner. cfg
// must already be validated.
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg, state: stateIdle}
}

func (p *Pipeline) setState(s runState) {
	p.state = s
	if p.cfg.Debug {
		slog.Info("BAMQC", "STATE", string(s))
	}
}

// Run executes the whole pipeline: allocate artifacts, run the stats
// engine, optionally derive a depth cutoff and run the contamination
// engine, render the report, then clean up. On a fatal stage failure all
// artifacts are left on disk for diagnosis regardless of the keep flag.
func (p *Pipeline) Run(ctx context.Context) error {
	// ------------------------------------------------- Log file ------------------------------------------------- //
	logPath := filepath.Join(p.cfg.workDir(), "bamqc.log")
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return &OptionError{Reason: fmt.Sprintf("failed to open log file %s: %v", logPath, err)}
	}
	defer logFile.Close()

	p.log = slog.New(slog.NewJSONHandler(logFile, nil))
	if p.runner == nil {
		p.runner = &execRunner{log: p.log, debug: p.cfg.Debug}
	}

	p.log.Info("BAMQC", "PROGRAM", "INITIALISE", "STATUS", "STARTED",
		"REFERENCE", p.cfg.Reference, "ALIGNMENT", p.cfg.Alignment)

	// --------------------------------------------- Artifact allocation ------------------------------------------ //
	arts, err := allocateArtifacts(p.cfg)
	if err != nil {
		p.setState(stateFailed)
		return err
	}

	// ------------------------------------------------- Stage 1 -------------------------------------------------- //
	p.setState(stateStats)
	if err := p.runner.Run(ctx, stageStats, StatsProgram, statsArgs(p.cfg, arts)); err != nil {
		p.setState(stateFailed)
		return err
	}

	// ----------------------------------------- Contamination sub-pipeline --------------------------------------- //
	if p.cfg.Genotypes != "" {
		if err := p.runContamination(ctx, arts); err != nil {
			p.setState(stateFailed)
			return err
		}
	}

	// ------------------------------------------------- Stage 3 -------------------------------------------------- //
	if err := arts.requireNonEmpty(stageStats, reportInputs(arts)...); err != nil {
		p.setState(stateFailed)
		return err
	}
	p.setState(stateReport)
	args := reportArgs(p.cfg, arts)
	p.lastInvocation = ReportProgram + " " + strings.Join(args, " ")
	if err := p.runner.Run(ctx, stageReport, ReportProgram, args); err != nil {
		p.setState(stateFailed)
		return err
	}

	// ------------------------------------------------- Cleanup -------------------------------------------------- //
	p.setState(stateCleanup)
	cleanupErr := p.cleanup(arts)
	p.setState(stateDone)
	p.log.Info("BAMQC", "PROGRAM", "INITIALISE", "STATUS", "COMPLETED", "REPORT", p.cfg.Report)
	if cleanupErr != nil {
		// Degraded success: the report exists, cleanup does not.
		return cleanupErr
	}
	return nil
}

// runContamination derives the depth cutoff from the coverage histogram,
// invokes the contamination engine in a private working directory, and
// reshapes its two-row summary into field<TAB>value lines.
func (p *Pipeline) runContamination(ctx context.Context, arts *ArtifactSet) error {
	if err := arts.requireNonEmpty(stageStats, RoleCoverage); err != nil {
		return err
	}
	bins, err := readCoverageHistogram(arts.Path(RoleCoverage))
	if err != nil {
		return err
	}
	cutoff := depthCutoff(bins)
	slog.Info("BAMQC", "PROGRAM", stageContam, "MAX_DEPTH", cutoff)
	p.log.Info("BAMQC", "PROGRAM", stageContam, "MAX_DEPTH", cutoff)
	if mean, sd, ok := coverageSummary(bins); ok {
		p.log.Info("BAMQC", "PROGRAM", stageContam, "MEAN_DEPTH", mean, "SD_DEPTH", sd)
	}

	workDir, err := os.MkdirTemp(p.cfg.workDir(), "bamqc_contam_")
	if err != nil {
		return &StageError{Stage: stageContam, ExitCode: -1, Detail: fmt.Sprintf("cannot create working directory: %v", err)}
	}
	p.contamDir = workDir

	p.setState(stateContam)
	prefix := filepath.Join(workDir, "contam")
	if err := p.runner.Run(ctx, stageContam, ContamProgram, contamArgs(p.cfg, prefix, cutoff)); err != nil {
		return err
	}

	dest, err := uniquePath(p.cfg.workDir(), RoleContamination)
	if err != nil {
		return err
	}
	if err := reshapeContamSummary(prefix+".selfSM", dest); err != nil {
		return err
	}
	arts.add(&Artifact{Role: RoleContamination, Path: dest})
	p.setState(stateReshaped)
	return nil
}

// cleanup removes controller-owned working files after a successful run.
// With the keep flag set nothing is deleted and the final report command
// is echoed so an operator can resume by hand.
func (p *Pipeline) cleanup(arts *ArtifactSet) error {
	if p.cfg.Keep {
		slog.Info("BAMQC", "PROGRAM", "CLEANUP", "STATUS", "SKIPPED", "CMD", p.lastInvocation)
		p.log.Info("BAMQC", "PROGRAM", "CLEANUP", "STATUS", "SKIPPED", "CMD", p.lastInvocation)
		return nil
	}

	cleanupErr := arts.cleanup()
	if p.contamDir != "" {
		if err := os.RemoveAll(p.contamDir); err != nil {
			if cleanupErr == nil {
				cleanupErr = &CleanupError{}
			}
			cleanupErr.Failures = append(cleanupErr.Failures, fmt.Sprintf("%s: %v", p.contamDir, err))
		}
	}
	if cleanupErr != nil {
		for _, f := range cleanupErr.Failures {
			p.log.Error("BAMQC", "PROGRAM", "CLEANUP", "STATUS", "FAILED", "PATH", f)
		}
		return cleanupErr
	}
	p.log.Info("BAMQC", "PROGRAM", "CLEANUP", "STATUS", "COMPLETED")
	return nil
}
