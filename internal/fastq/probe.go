// Package fastq checks that read files are readable FASTQ before any tool is
// pointed at them.
package fastq

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/pgzip"
)

// ErrNotFASTQ is returned when a file's first record does not start with '@'.
var ErrNotFASTQ = errors.New("not a FASTQ file")

var gzipMagic = []byte{0x1f, 0x8b}

// Probe opens path and reads the header line of its first record.
//
// Gzip compression is detected from the file's magic bytes rather than its
// extension, so plain files named .gz and compressed files without a suffix
// are both handled. Probe does not validate the whole file.
func Probe(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open reads: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var r io.Reader = br
	if bytes.Equal(magic, gzipMagic) {
		gz, err := pgzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to decompress %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	header, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(header) == 0 || header[0] != '@' {
		return fmt.Errorf("%w: %s", ErrNotFASTQ, path)
	}
	return nil
}

// ProbePair runs [Probe] on both reads of a pair and returns the first error.
func ProbePair(forward, reverse string) error {
	if err := Probe(forward); err != nil {
		return err
	}
	return Probe(reverse)
}
