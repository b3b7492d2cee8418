package qc

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// ValidateReference checks that the reference is a readable FASTA file
// (plain or gzipped) with at least one sequence record, so a bad path
// fails fast instead of deep inside the stats engine.
func ValidateReference(path string) error {
	fna, err := os.Open(path)
	if err != nil {
		return &OptionError{Reason: fmt.Sprintf("cannot open reference %s: %v", path, err)}
	}
	defer fna.Close()

	var reader io.Reader = fna
	if strings.HasSuffix(path, ".gz") {
		gzReader, err := gzip.NewReader(fna)
		if err != nil {
			return &OptionError{Reason: fmt.Sprintf("reference %s is not valid gzip: %v", path, err)}
		}
		defer gzReader.Close()
		reader = gzReader
	}

	r := fasta.NewReader(reader, linear.NewSeq("", nil, alphabet.DNA))
	sc := seqio.NewScanner(r)
	if !sc.Next() {
		if err := sc.Error(); err != nil {
			return &OptionError{Reason: fmt.Sprintf("reference %s is not valid FASTA: %v", path, err)}
		}
		return &OptionError{Reason: fmt.Sprintf("reference %s contains no sequences", path)}
	}
	return nil
}
