package qc

import (
	"fmt"
	"os"

	"github.com/go-gota/gota/dataframe"
)

// reshapeContamSummary transposes the two-row table written by the
// contamination engine (header row of field names, one value row) into
// field<TAB>value lines at dest, keeping the original column order. A
// ragged table is a data-shape error: the engine produced malformed
// output.
func reshapeContamSummary(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return &DataShapeError{Stage: stageContam, Reason: fmt.Sprintf("cannot open summary %s: %v", src, err)}
	}
	defer f.Close()

	// Values are copied verbatim, so type detection stays off: it would
	// reformat floats and swallow NA markers.
	df := dataframe.ReadCSV(f, dataframe.WithDelimiter('\t'), dataframe.DetectTypes(false))
	if df.Err != nil {
		// encoding/csv rejects rows whose length differs from the header.
		return &DataShapeError{Stage: stageContam, Reason: fmt.Sprintf("summary %s: %v", src, df.Err)}
	}
	if df.Nrow() != 1 {
		return &DataShapeError{Stage: stageContam, Reason: fmt.Sprintf("summary %s has %d value rows, want 1", src, df.Nrow())}
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating contamination artifact: %w", err)
	}
	for j, name := range df.Names() {
		if _, err := fmt.Fprintf(out, "%s\t%s\n", name, df.Elem(0, j).String()); err != nil {
			out.Close()
			return fmt.Errorf("writing contamination artifact: %w", err)
		}
	}
	return out.Close()
}
