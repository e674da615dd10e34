// Package pipeline drives one detection run: manifest in, per-uid masks and
// statistics out, ledgers merged, artifacts written.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"blobnn/internal/config"
	"blobnn/internal/ledger"
	"blobnn/internal/manifest"
	"blobnn/internal/mask"
	"blobnn/internal/model"
	"blobnn/internal/stats"
)

// Run is the context for one invocation. It owns the model handle and both
// ledger transactions; its lifecycle is the run itself.
type Run struct {
	opts   config.Options
	rows   []manifest.Row
	runner *model.Runner
	params mask.Params

	raw   *ledger.Ledger
	stat  *ledger.Ledger
	feats []stats.Features
}

// New loads the manifest and the model, then opens the ledger transactions.
// The ordering matters: a fatal configuration error (bad manifest, bad
// model) must terminate before either ledger file has been truncated.
func New(opts config.Options) (*Run, error) {
	rows, err := manifest.Read(filepath.Join(opts.Source, manifest.FileName))
	if err != nil {
		return nil, err
	}

	fmt.Printf("[i] loading model file from: %s ...\n", opts.ModelPath)
	runner, err := model.Load(opts.ModelPath)
	if err != nil {
		return nil, err
	}
	fmt.Printf("[i] loading model file successfully, running on %s.\n", runner.Device())

	raw, err := ledger.Open(filepath.Join(opts.Source, "raw.tsv"))
	if err != nil {
		runner.Close()
		return nil, err
	}
	stat, err := ledger.Open(filepath.Join(opts.Source, "stats.tsv"))
	if err != nil {
		raw.Close()
		runner.Close()
		return nil, err
	}

	params := mask.Params{
		Cutoff:  opts.Cutoff,
		Padding: opts.Padding,
		MinArea: opts.MinArea,
		MaxArea: opts.MaxArea,
	}

	return &Run{
		opts:   opts,
		rows:   rows,
		runner: runner,
		params: params,
		raw:    raw,
		stat:   stat,
	}, nil
}

// Close releases the model and closes both ledgers.
func (r *Run) Close() {
	r.runner.Close()
	r.raw.Close()
	r.stat.Close()
}

// Execute processes the uid range strictly sequentially in manifest order,
// folding each fresh record into the two ledgers and persisting the per-uid
// artifacts. Prior ledger rows outside the range are carried over verbatim.
func (r *Run) Execute() error {
	if err := r.raw.WriteHead(r.opts.StartID); err != nil {
		return err
	}
	if err := r.stat.WriteHead(r.opts.StartID); err != nil {
		return err
	}

	processed := 0
	for _, row := range r.rows {
		if row.UID < r.opts.StartID || row.UID > r.opts.EndID {
			continue
		}
		if err := r.processRow(row); err != nil {
			return fmt.Errorf("uid %d: %w", row.UID, err)
		}
		processed++
	}
	fmt.Println()

	if err := r.raw.WriteTail(r.opts.EndID); err != nil {
		return err
	}
	if err := r.stat.WriteTail(r.opts.EndID); err != nil {
		return err
	}

	fmt.Printf("[i] processed %d detections, %d with valid statistics.\n", processed, len(r.feats))
	stats.WriteSummary(os.Stdout, stats.Summarize(r.feats))
	return nil
}

// processRow computes and persists everything for one uid. Rows whose
// upstream detection failed skip inference entirely and get placeholder
// rasters; inference or I/O failure on a live row is fatal for the run.
func (r *Run) processRow(row manifest.Row) error {
	if !row.DetSuccess {
		fmt.Printf("[!] detection %d failed.                                \r", row.UID)

		m := mask.Placeholder()
		defer m.Close()
		pred := mask.Blank()
		defer pred.Close()

		rec := stats.Record{
			Row: row,
			Measurements: stats.Measurements{
				ForegroundMean: -1,
				ForegroundSize: -1,
			},
		}
		if err := r.raw.Write(row.UID, rec.RawLine()); err != nil {
			return err
		}
		return r.writeArtifacts(row.UID, m.Overlay, pred)
	}

	start := time.Now()

	roi, err := manifest.LoadROI(r.opts.Source, row.UID)
	if err != nil {
		return err
	}
	defer roi.Close()

	pred, err := r.runner.Predict(roi)
	if err != nil {
		return err
	}
	defer pred.Close()

	m := mask.Build(roi, pred, r.params)
	defer m.Close()

	rec := stats.Record{Row: row, Measurements: stats.Measure(roi, m)}
	if err := r.raw.Write(row.UID, rec.RawLine()); err != nil {
		return err
	}

	// Records failing the validity gate stay out of the stats ledger but
	// keep their raw row.
	if f, ok := stats.Derive(rec); ok {
		if err := r.stat.Write(row.UID, rec.StatLine(f)); err != nil {
			return err
		}
		r.feats = append(r.feats, f)
	}

	if err := r.writeArtifacts(row.UID, m.Overlay, pred); err != nil {
		return err
	}

	fmt.Printf("[i] processing detection %d ... %.2f s \r", row.UID, time.Since(start).Seconds())
	return nil
}

// writeArtifacts persists the visualization overlay and the raw prediction
// map under their fixed uid-named paths.
func (r *Run) writeArtifacts(uid int, overlay, pred gocv.Mat) error {
	name := fmt.Sprintf("%d.jpg", uid)
	if ok := gocv.IMWrite(filepath.Join(r.opts.Source, "annots", name), overlay); !ok {
		return fmt.Errorf("write annotation %s", name)
	}
	if ok := gocv.IMWrite(filepath.Join(r.opts.Source, "masks", name), pred); !ok {
		return fmt.Errorf("write mask %s", name)
	}
	return nil
}
