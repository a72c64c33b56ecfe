package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/leca/cardvault/internal/imageproc"
	"github.com/leca/cardvault/internal/storage"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	errSomeFailed      = errors.New("some images failed or exceed the limit")
	errDuplicateOutput = errors.New("output name already taken")
)

type compressOptions struct {
	MaxKB        float64
	LimitKB      float64
	OutDir       string
	WriteDataURI bool
	Workers      int
	MaxDimension int
	SkipExisting bool
}

// fileResult is the outcome for one input file.
type fileResult struct {
	Path   string
	Result *imageproc.Result
	Err    error
	// Skipped is set when the output already existed and was kept.
	Skipped bool
}

func (r fileResult) ok(limitKB float64) bool {
	return r.Err == nil && (r.Skipped || r.Result.Fits(limitKB))
}

func newCompressCmd() *cobra.Command {
	opts := compressOptions{}
	cmd := &cobra.Command{
		Use:   "compress FILE...",
		Short: "Shrink images so their JPEG data URI fits the card size budget",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.LimitKB < opts.MaxKB {
				return fmt.Errorf("--limit-kb (%.0f) must not be below --max-kb (%.0f)", opts.LimitKB, opts.MaxKB)
			}
			results, err := runCompress(cmd.Context(), opts, args)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), results, opts.LimitKB)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.MaxKB, "max-kb", 45, "target size in KB")
	f.Float64Var(&opts.LimitKB, "limit-kb", 50, "hard limit in KB; larger results are reported as failures")
	f.StringVarP(&opts.OutDir, "out", "o", ".", "output directory")
	f.BoolVar(&opts.WriteDataURI, "datauri", false, "also write a .datauri file next to each .jpg")
	f.IntVarP(&opts.Workers, "workers", "j", runtime.NumCPU(), "images compressed in parallel")
	f.IntVar(&opts.MaxDimension, "max-dimension", imageproc.DefaultMaxDimension, "bound for the larger side in pixels")
	f.BoolVar(&opts.SkipExisting, "skip-existing", false, "leave inputs alone whose .jpg is already in the output directory")
	return cmd
}

// runCompress compresses every file with at most opts.Workers in flight.
// Per-file failures are recorded in the results; the returned error is set
// only when the run itself could not proceed. Inputs that would write the
// same output name as an earlier input fail with errDuplicateOutput.
func runCompress(ctx context.Context, opts compressOptions, files []string) ([]fileResult, error) {
	out, err := storage.NewDir(opts.OutDir)
	if err != nil {
		return nil, err
	}

	compressor := imageproc.NewCompressor(imageproc.StdCodec{})
	if opts.MaxDimension > 0 {
		compressor.MaxDimension = opts.MaxDimension
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))

	claimed := make(map[string]string, len(files))
	for i, path := range files {
		base := outputBase(path)
		if first, dup := claimed[base]; dup {
			results[i] = fileResult{Path: path, Err: fmt.Errorf("%w: %s.jpg is written for %s", errDuplicateOutput, base, first)}
			continue
		}
		claimed[base] = path

		if opts.SkipExisting {
			exists, err := out.Exists(base + ".jpg")
			if err != nil {
				results[i] = fileResult{Path: path, Err: err}
				continue
			}
			if exists {
				results[i] = fileResult{Path: path, Skipped: true}
				continue
			}
		}

		g.Go(func() error {
			res, err := compressFile(gctx, compressor, out, path, opts)
			results[i] = fileResult{Path: path, Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}

func compressFile(ctx context.Context, c *imageproc.Compressor, out *storage.Dir, path string, opts compressOptions) (*imageproc.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := c.Compress(ctx, f, opts.MaxKB)
	if err != nil {
		return nil, err
	}
	if !res.Fits(opts.LimitKB) {
		return res, nil
	}

	base := outputBase(path)
	_, jpg, err := imageproc.ParseDataURI(res.DataURI)
	if err != nil {
		return nil, err
	}
	if _, err := out.Write(base+".jpg", bytes.NewReader(jpg)); err != nil {
		return nil, err
	}
	if opts.WriteDataURI {
		if _, err := out.Write(base+".datauri", strings.NewReader(res.DataURI)); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// outputBase is the file name, without extension, written for path.
func outputBase(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// report prints one line per file and returns errSomeFailed when any file
// failed or is over limitKB.
func report(w io.Writer, results []fileResult, limitKB float64) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tQUALITY\tATTEMPTS\tSTATUS")

	failed := false
	for _, r := range results {
		switch {
		case r.Skipped:
			fmt.Fprintf(tw, "%s\t-\t-\t-\tskipped: output exists\n", r.Path)
		case r.Err != nil:
			failed = true
			fmt.Fprintf(tw, "%s\t-\t-\t-\terror: %v\n", r.Path, r.Err)
		case !r.ok(limitKB):
			failed = true
			fmt.Fprintf(tw, "%s\t%dx%d %.1fKB\t%.1f\t%d\tover %.0fKB limit\n",
				r.Path, r.Result.Width, r.Result.Height, r.Result.SizeKB, r.Result.Quality, r.Result.Attempts, limitKB)
		default:
			fmt.Fprintf(tw, "%s\t%dx%d %.1fKB\t%.1f\t%d\tok\n",
				r.Path, r.Result.Width, r.Result.Height, r.Result.SizeKB, r.Result.Quality, r.Result.Attempts)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed {
		return errSomeFailed
	}
	return nil
}
