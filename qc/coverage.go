package qc

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// CoverageBin is one row of the coverage-by-position artifact: how many
// windows were observed at a given sequencing depth.
type CoverageBin struct {
	Depth     int
	Frequency int
}

const (
	// Depths at or below this are too noisy to pick a cutoff from.
	minInformativeDepth = 5
	// Fallback cutoff when no bin exceeds minInformativeDepth.
	defaultMaxDepth = 20
)

// readCoverageHistogram parses the depth<TAB>frequency rows written by
// the stats engine. Row order is preserved; it matters for tie-breaking.
func readCoverageHistogram(path string) ([]CoverageBin, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DataShapeError{Stage: stageStats, Reason: fmt.Sprintf("cannot open coverage artifact: %v", err)}
	}
	defer f.Close()

	var bins []CoverageBin
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, &DataShapeError{Stage: stageStats, Reason: fmt.Sprintf("coverage line %d has %d columns, want 2", lineNo, len(fields))}
		}
		depth, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, &DataShapeError{Stage: stageStats, Reason: fmt.Sprintf("coverage line %d: bad depth %q", lineNo, fields[0])}
		}
		freq, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, &DataShapeError{Stage: stageStats, Reason: fmt.Sprintf("coverage line %d: bad frequency %q", lineNo, fields[1])}
		}
		bins = append(bins, CoverageBin{Depth: depth, Frequency: freq})
	}
	if err := scanner.Err(); err != nil {
		return nil, &DataShapeError{Stage: stageStats, Reason: fmt.Sprintf("reading coverage artifact: %v", err)}
	}
	return bins, nil
}

// depthCutoff derives the maximum depth passed to the contamination
// engine. Among bins with depth > 5 the most frequent depth wins, first
// in file order on ties; the cutoff is twice that depth. With no such
// bin the cutoff is the fixed fallback of 20.
func depthCutoff(bins []CoverageBin) int {
	bestDepth := -1
	bestFreq := -1
	for _, b := range bins {
		if b.Depth <= minInformativeDepth {
			continue
		}
		if b.Frequency > bestFreq {
			bestFreq = b.Frequency
			bestDepth = b.Depth
		}
	}
	if bestDepth < 0 {
		return defaultMaxDepth
	}
	return 2 * bestDepth
}

// coverageSummary computes the frequency-weighted mean and standard
// deviation of the histogram, logged as diagnostics next to the cutoff.
// The second return is false when the histogram carries no mass.
func coverageSummary(bins []CoverageBin) (mean, sd float64, ok bool) {
	depths := make([]float64, 0, len(bins))
	weights := make([]float64, 0, len(bins))
	var total int
	for _, b := range bins {
		depths = append(depths, float64(b.Depth))
		weights = append(weights, float64(b.Frequency))
		total += b.Frequency
	}
	if total == 0 {
		return 0, 0, false
	}
	return stat.Mean(depths, weights), stat.StdDev(depths, weights), true
}
