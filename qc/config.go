package qc

import (
	"fmt"
	"os"
)

const defaultWindowSize = 1000000

// Config describes one QC run. It is built once by the cmd layer from
// flags (and an optional config file) and is read-only afterwards. Debug
// is an explicit field here, not process-wide state, so the controller
// stays independently testable.
type Config struct {
	Reference   string
	Alignment   string
	Report      string
	WindowSize  int
	SingleEnd   bool
	Keep        bool
	StatsFile   string // externally supplied stats-summary path, never deleted
	InsertsFile string // externally supplied insert-length path, never deleted
	Genotypes   string // enables the contamination sub-pipeline when set
	Debug       bool
	WorkDir     string // directory for working artifacts, "" means "."
}

// Validate checks the configuration before the pipeline starts. External
// artifact paths are borrowed resources: they must be writable or
// creatable up front rather than failing deep inside stage 1.
func (c Config) Validate() error {
	if c.Reference == "" || c.Alignment == "" {
		return &OptionError{Reason: "reference and alignment paths are both required"}
	}
	if c.WindowSize <= 0 {
		return &OptionError{Reason: fmt.Sprintf("window size must be positive, got %d", c.WindowSize)}
	}
	for _, in := range []string{c.Reference, c.Alignment} {
		if _, err := os.Stat(in); err != nil {
			return &OptionError{Reason: fmt.Sprintf("cannot read input %s: %v", in, err)}
		}
	}
	if c.Genotypes != "" {
		if _, err := os.Stat(c.Genotypes); err != nil {
			return &OptionError{Reason: fmt.Sprintf("cannot read genotypes %s: %v", c.Genotypes, err)}
		}
	}
	for _, out := range []string{c.StatsFile, c.InsertsFile} {
		if out == "" {
			continue
		}
		if err := ensureWritable(out); err != nil {
			return &OptionError{Reason: fmt.Sprintf("external output %s is not writable: %v", out, err)}
		}
	}
	return nil
}

func (c Config) workDir() string {
	if c.WorkDir == "" {
		return "."
	}
	return c.WorkDir
}

// ensureWritable probes that path can be opened for writing, creating it
// if necessary. A file created only by the probe is removed again.
func ensureWritable(path string) error {
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	if cErr := f.Close(); cErr != nil {
		return cErr
	}
	if statErr != nil && os.IsNotExist(statErr) {
		return os.Remove(path)
	}
	return nil
}
