package qc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

type invocation struct {
	stage   string
	program string
	args    []string
}

// fakeRunner records invocations and plays the engines' part: it writes
// the output files a real engine would have written.
type fakeRunner struct {
	t            *testing.T
	calls        []invocation
	failures     map[string]int // stage -> exit code
	coverage     string         // content of the coverage artifact
	selfSM       string         // content of the contamination summary
	beforeReturn map[string]func(args []string)
}

func newFakeRunner(t *testing.T) *fakeRunner {
	return &fakeRunner{
		t:            t,
		failures:     make(map[string]int),
		coverage:     "2\t100\n10\t5\n30\t50\n",
		selfSM:       "SEQ_ID\tFREEMIX\tDEPTH\nsample\t0.01\t31\n",
		beforeReturn: make(map[string]func(args []string)),
	}
}

func (f *fakeRunner) Run(_ context.Context, stage, program string, args []string) error {
	f.calls = append(f.calls, invocation{stage: stage, program: program, args: slices.Clone(args)})
	if code, ok := f.failures[stage]; ok {
		return &StageError{Stage: stage, ExitCode: code}
	}

	write := func(path, content string) {
		f.t.Helper()
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			f.t.Fatal(err)
		}
	}
	flagValue := func(flag string) (string, bool) {
		i := slices.Index(args, flag)
		if i < 0 || i+1 >= len(args) {
			return "", false
		}
		return args[i+1], true
	}

	switch stage {
	case stageStats:
		for _, flag := range statsOutputFlags {
			path, ok := flagValue(flag)
			if !ok {
				continue
			}
			if flag == "--coverage" {
				write(path, f.coverage)
			} else {
				write(path, "metric\tvalue\n")
			}
		}
	case stageContam:
		prefix, ok := flagValue("--out")
		if !ok {
			f.t.Fatalf("contamination invocation has no --out: %v", args)
		}
		write(prefix+".selfSM", f.selfSM)
	case stageReport:
		path, ok := flagValue("-o")
		if !ok {
			f.t.Fatalf("report invocation has no -o: %v", args)
		}
		write(path, "%PDF\n")
	}

	if hook := f.beforeReturn[stage]; hook != nil {
		hook(args)
	}
	return nil
}

func (f *fakeRunner) stages() []string {
	stages := make([]string, len(f.calls))
	for i, c := range f.calls {
		stages[i] = c.stage
	}
	return stages
}

func (f *fakeRunner) call(stage string) invocation {
	f.t.Helper()
	for _, c := range f.calls {
		if c.stage == stage {
			return c
		}
	}
	f.t.Fatalf("stage %s was never invoked", stage)
	return invocation{}
}

func runPipeline(t *testing.T, cfg Config, fr *fakeRunner) error {
	t.Helper()
	p := NewPipeline(cfg)
	p.runner = fr
	return p.Run(context.Background())
}

func workingFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "bamqc_*"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestRunPairedEndNoGenotypes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report = filepath.Join(cfg.WorkDir, "report.pdf")
	fr := newFakeRunner(t)

	if err := runPipeline(t, cfg, fr); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{stageStats, stageReport}
	if !slices.Equal(fr.stages(), want) {
		t.Errorf("stage order = %v, want %v", fr.stages(), want)
	}
	if got := countOutputFlags(fr.call(stageStats).args, statsOutputFlags...); got != 10 {
		t.Errorf("stats invocation names %d outputs, want 10", got)
	}
	report := fr.call(stageReport)
	if got := countOutputFlags(report.args, reportInputFlags...); got != 10 {
		t.Errorf("report invocation names %d inputs, want 10", got)
	}
	if slices.Contains(report.args, "--contamination") {
		t.Error("report invocation mentions contamination without genotypes")
	}
	if _, err := os.Stat(cfg.Report); err != nil {
		t.Errorf("report was not produced: %v", err)
	}
	if left := workingFiles(t, cfg.WorkDir); len(left) != 0 {
		t.Errorf("working files survived cleanup: %v", left)
	}
}

func TestRunWithGenotypes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report = filepath.Join(cfg.WorkDir, "report.pdf")
	cfg.Genotypes = filepath.Join(cfg.WorkDir, "geno.vcf")
	fr := newFakeRunner(t)

	if err := runPipeline(t, cfg, fr); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{stageStats, stageContam, stageReport}
	if !slices.Equal(fr.stages(), want) {
		t.Errorf("stage order = %v, want %v", fr.stages(), want)
	}

	// Coverage histogram: depth 30 has the top frequency above 5 -> 60.
	contam := fr.call(stageContam)
	i := slices.Index(contam.args, "--maxDepth")
	if i < 0 || contam.args[i+1] != "60" {
		t.Errorf("contamination invocation cutoff = %v, want 60", contam.args)
	}

	report := fr.call(stageReport)
	i = slices.Index(report.args, "--contamination")
	if i < 0 {
		t.Fatalf("report invocation has no contamination input: %v", report.args)
	}

	// The reshaped summary was already consumed and cleaned up, so check
	// its content through what the fake saw at report time.
	if left := workingFiles(t, cfg.WorkDir); len(left) != 0 {
		t.Errorf("working files survived cleanup: %v", left)
	}
}

func TestRunReshapesContamSummary(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report = filepath.Join(cfg.WorkDir, "report.pdf")
	cfg.Genotypes = filepath.Join(cfg.WorkDir, "geno.vcf")
	fr := newFakeRunner(t)

	var reshaped string
	fr.beforeReturn[stageReport] = func(args []string) {
		i := slices.Index(args, "--contamination")
		if i < 0 {
			t.Fatalf("report invocation has no contamination input: %v", args)
		}
		data, err := os.ReadFile(args[i+1])
		if err != nil {
			t.Fatalf("reading reshaped summary: %v", err)
		}
		reshaped = string(data)
	}

	if err := runPipeline(t, cfg, fr); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "SEQ_ID\tsample\nFREEMIX\t0.01\nDEPTH\t31\n"
	if reshaped != want {
		t.Errorf("reshaped summary = %q, want %q", reshaped, want)
	}
}

func TestRunSingleEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report = filepath.Join(cfg.WorkDir, "report.pdf")
	cfg.SingleEnd = true
	fr := newFakeRunner(t)

	if err := runPipeline(t, cfg, fr); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stats := strings.Join(fr.call(stageStats).args, " ")
	if strings.Contains(stats, "--inserts") || strings.Contains(stats, "--paired") {
		t.Errorf("single-end stats invocation mentions inserts: %s", stats)
	}
	report := strings.Join(fr.call(stageReport).args, " ")
	if strings.Contains(report, "--inserts") {
		t.Errorf("single-end report invocation mentions inserts: %s", report)
	}
}

func TestRunStageFailureAbortsAndPreserves(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report = filepath.Join(cfg.WorkDir, "report.pdf")
	fr := newFakeRunner(t)
	fr.failures[stageReport] = 7

	err := runPipeline(t, cfg, fr)
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("got %v, want StageError", err)
	}
	if stageErr.Stage != stageReport || stageErr.ExitCode != 7 {
		t.Errorf("StageError = %+v, want report stage exit 7", stageErr)
	}

	// All artifacts written before the failure stay on disk for diagnosis.
	if left := workingFiles(t, cfg.WorkDir); len(left) == 0 {
		t.Error("artifacts were deleted after a stage failure")
	}
}

func TestRunStatsFailureSkipsLaterStages(t *testing.T) {
	cfg := testConfig(t)
	cfg.Genotypes = filepath.Join(cfg.WorkDir, "geno.vcf")
	fr := newFakeRunner(t)
	fr.failures[stageStats] = 1

	err := runPipeline(t, cfg, fr)
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("got %v, want StageError", err)
	}
	if got := fr.stages(); !slices.Equal(got, []string{stageStats}) {
		t.Errorf("stages after stats failure = %v, want just stats", got)
	}
}

func TestRunKeepPreservesWorkingFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report = filepath.Join(cfg.WorkDir, "report.pdf")
	cfg.Keep = true
	fr := newFakeRunner(t)

	if err := runPipeline(t, cfg, fr); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if left := workingFiles(t, cfg.WorkDir); len(left) == 0 {
		t.Error("keep flag was ignored: working files were deleted")
	}
}

func TestRunExternalArtifactsSurviveCleanup(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report = filepath.Join(cfg.WorkDir, "report.pdf")
	external := t.TempDir()
	cfg.StatsFile = filepath.Join(external, "stats.tsv")
	cfg.InsertsFile = filepath.Join(external, "inserts.tsv")
	fr := newFakeRunner(t)

	if err := runPipeline(t, cfg, fr); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, p := range []string{cfg.StatsFile, cfg.InsertsFile} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("external artifact %s was deleted: %v", p, err)
		}
	}
	if left := workingFiles(t, cfg.WorkDir); len(left) != 0 {
		t.Errorf("owned working files survived cleanup: %v", left)
	}
}

func TestRunCleanupFailureIsDegradedSuccess(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report = filepath.Join(cfg.WorkDir, "report.pdf")
	fr := newFakeRunner(t)

	// Swap one stats artifact for a non-empty directory after the shape
	// check, so only the final deletion can fail.
	fr.beforeReturn[stageReport] = func(args []string) {
		i := slices.Index(args, "--gc")
		if i < 0 {
			t.Fatalf("report invocation has no --gc: %v", args)
		}
		path := args[i+1]
		if err := os.Remove(path); err != nil {
			t.Fatal(err)
		}
		if err := os.MkdirAll(filepath.Join(path, "sub"), 0755); err != nil {
			t.Fatal(err)
		}
	}

	err := runPipeline(t, cfg, fr)
	var cleanupErr *CleanupError
	if !errors.As(err, &cleanupErr) {
		t.Fatalf("got %v, want CleanupError", err)
	}
	if ExitCode(err) != ExitCleanup {
		t.Errorf("ExitCode = %d, want %d", ExitCode(err), ExitCleanup)
	}
	if _, statErr := os.Stat(cfg.Report); statErr != nil {
		t.Errorf("report should exist on degraded success: %v", statErr)
	}
}
