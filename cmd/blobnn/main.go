// Command blobnn measures blob intensity on pre-extracted ROI crops using a
// pretrained segmentation network. It reads rois.tsv from the source
// directory, recomputes the requested uid range, and maintains the raw.tsv
// and stats.tsv ledgers alongside per-uid overlay and mask artifacts.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"blobnn/internal/config"
	"blobnn/internal/manifest"
	"blobnn/internal/pipeline"
)

func main() {
	opts := config.Load()

	start := flag.Int("start", opts.StartID, "starting index (included) of the uid")
	end := flag.Int("end", opts.EndID, "ending index (included) of the uid")
	cutoff := flag.Int("cutoff", opts.Cutoff, "prediction grayscale cutoff for the foreground mask")
	modelPath := flag.String("model", opts.ModelPath, "path to the segmentation model artifact")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}

	opts.Source = flag.Arg(0)
	opts.StartID = *start
	opts.EndID = *end
	opts.Cutoff = *cutoff
	opts.ModelPath = *modelPath

	if opts.ModelPath == "" {
		fmt.Fprintln(os.Stderr, "[e] model path is required")
		os.Exit(1)
	}

	if err := checkLayout(opts); err != nil {
		fmt.Fprintf(os.Stderr, "[e] %v\n", err)
		os.Exit(1)
	}

	run, err := pipeline.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[e] %v\n", err)
		os.Exit(1)
	}
	defer run.Close()

	if err := run.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[e] %v\n", err)
		os.Exit(1)
	}
}

// checkLayout validates the source directory and creates the artifact
// subdirectories. Failures here are configuration errors: the run stops
// before any ledger is opened.
func checkLayout(opts config.Options) error {
	info, err := os.Stat(opts.Source)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("data output path %s does not exist", opts.Source)
	}

	if _, err := os.Stat(filepath.Join(opts.Source, manifest.FileName)); err != nil {
		return fmt.Errorf("no %s under the source folder", manifest.FileName)
	}

	if _, err := os.Stat(opts.ModelPath); err != nil {
		return fmt.Errorf("model artifact %s not found", opts.ModelPath)
	}

	for _, sub := range []string{"annots", "masks"} {
		if err := os.MkdirAll(filepath.Join(opts.Source, sub), 0755); err != nil {
			return fmt.Errorf("create %s: %w", sub, err)
		}
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: blobnn [-start M] [-end N] [-cutoff CUTOFF] -model PATH SOURCE\n\n")
	fmt.Fprintf(os.Stderr, "Detects blob intensity on extracted ROI crops with a segmentation\n")
	fmt.Fprintf(os.Stderr, "network and maintains the raw.tsv / stats.tsv ledgers under SOURCE.\n\n")
	flag.PrintDefaults()
}
