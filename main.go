// Command readqc runs FastQC, fastp and MultiQC over a directory of
// paired-end reads.
package main

import "readqc/internal/cli"

func main() {
	cli.Execute()
}
