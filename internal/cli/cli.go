// Package cli implements the obfuscate command: mask PII fields in one or
// more stored objects from the command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/obfuscator/internal/config"
	"github.com/JonMunkholm/obfuscator/internal/core"
	"github.com/JonMunkholm/obfuscator/internal/logging"
	"github.com/JonMunkholm/obfuscator/internal/service"
	"github.com/JonMunkholm/obfuscator/internal/storage"
)

var version = "dev"

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	_ = godotenv.Load()

	cmd := NewRootCmd(nil)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		printError(os.Stderr, err)
		return 1
	}
	return 0
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	var be *BatchError
	if errors.As(err, &be) {
		return
	}
	if msg := core.FormatUserError(err); msg != "" {
		fmt.Fprintf(w, "  %s\n", msg)
	}
}

type options struct {
	fields      []string
	format      string
	out         string
	outDir      string
	concurrency int
	emptyFields string
	maxSize     int64
	logLevel    string
	logFormat   string
}

// NewRootCmd builds the obfuscate command. stores overrides the storage
// backends built from the environment; nil means use the environment.
func NewRootCmd(stores storage.Store) *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:   "obfuscate [flags] PATH...",
		Short: "Replace PII fields in CSV, JSON or Parquet objects with ***",
		Long: "Fetches each PATH (s3://, az://, gs:// or a local file), detects its format from the\n" +
			"requested fields, masks those fields and writes the result in the same format.\n" +
			"With one PATH the result goes to --out (default stdout). With several, --out-dir is required.",
		Example: "  obfuscate --field name --field email_address s3://bucket/students.csv > masked.csv\n" +
			"  obfuscate -f name,email -j 8 --out-dir s3://bucket/masked s3://bucket/a.csv s3://bucket/b.parquet",
		Version:       version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, stores, o, args)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&o.fields, "field", "f", nil, "Field to obfuscate (repeatable or comma-separated)")
	f.StringVar(&o.format, "format", "", "Restrict detection to one format: csv, json or parquet")
	f.StringVarP(&o.out, "out", "o", "-", "Output path or storage URI for a single input (- for stdout)")
	f.StringVar(&o.outDir, "out-dir", "", "Output directory or storage URI prefix for several inputs")
	f.IntVarP(&o.concurrency, "concurrency", "j", 4, "Maximum objects processed at once")
	f.StringVar(&o.emptyFields, "empty-fields", "", "Policy when no fields are given: first_parsed or reject (default from OBFUSCATE_EMPTY_FIELDS)")
	f.Int64Var(&o.maxSize, "max-size", 0, "Largest object fetched, in bytes (default from OBFUSCATE_MAX_OBJECT_SIZE)")
	f.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	f.StringVar(&o.logFormat, "log-format", "", "Log format: text or json")

	return cmd
}

func run(cmd *cobra.Command, stores storage.Store, o options, args []string) error {
	if len(args) > 1 && o.outDir == "" {
		return fmt.Errorf("%w: %d inputs need --out-dir", service.ErrInvalidRequest, len(args))
	}
	if o.outDir != "" && cmd.Flags().Changed("out") {
		return fmt.Errorf("%w: --out and --out-dir are mutually exclusive", service.ErrInvalidRequest)
	}
	if o.concurrency < 1 {
		return fmt.Errorf("%w: --concurrency must be at least 1", service.ErrInvalidRequest)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyFlags(cfg, o)
	logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)

	policy, err := core.ParseEmptyFieldsPolicy(cfg.Obfuscation.EmptyFields)
	if err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
	}

	ctx := cmd.Context()
	if stores == nil {
		backends := cfg.Storage.Backends()
		backends.Files = true
		mux, closeStores, err := storage.New(ctx, backends)
		if err != nil {
			return err
		}
		defer func() { _ = closeStores() }()
		stores = mux
	}

	svc := service.New(stores, service.Options{
		MaxObjectSize: cfg.Obfuscation.MaxObjectSize,
		MaxConcurrent: o.concurrency,
		MaxWaitTime:   cfg.Obfuscation.MaxWaitTime,
		Timeout:       cfg.Obfuscation.Timeout,
		EmptyFields:   policy,
	})

	if len(args) == 1 && o.outDir == "" {
		return runSingle(ctx, cmd, svc, o, args[0])
	}
	return runBatch(ctx, cmd, svc, o, args)
}

func applyFlags(cfg *config.Config, o options) {
	if o.emptyFields != "" {
		cfg.Obfuscation.EmptyFields = o.emptyFields
	}
	if o.maxSize > 0 {
		cfg.Obfuscation.MaxObjectSize = o.maxSize
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
}

func runSingle(ctx context.Context, cmd *cobra.Command, svc *service.Service, o options, src string) error {
	req := service.Request{TargetPath: src, Fields: o.fields, Format: o.format}
	if o.out != "-" && o.out != "" {
		req.Destination = o.out
	}

	resp, err := svc.Obfuscate(ctx, req)
	if err != nil {
		return err
	}
	if req.Destination == "" {
		_, err = cmd.OutOrStdout().Write(resp.Payload)
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s -> %s (%s, %d rows)\n", src, resp.Destination, resp.Format, resp.Rows)
	return nil
}

// BatchError reports every input that failed in a batch run.
type BatchError struct {
	Failed map[string]error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d input(s) failed", len(e.Failed))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		out = append(out, err)
	}
	return out
}

func runBatch(ctx context.Context, cmd *cobra.Command, svc *service.Service, o options, srcs []string) error {
	dsts, err := batchDestinations(o.outDir, srcs)
	if err != nil {
		return err
	}

	var (
		mu     sync.Mutex
		failed = make(map[string]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, src := range srcs {
		g.Go(func() error {
			resp, err := svc.Obfuscate(gctx, service.Request{
				TargetPath:  src,
				Fields:      o.fields,
				Format:      o.format,
				Destination: dsts[i],
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// One bad input does not stop the others
				failed[src] = err
				printError(cmd.ErrOrStderr(), fmt.Errorf("%s: %w", src, err))
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s -> %s (%s, %d rows)\n", src, resp.Destination, resp.Format, resp.Rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

// batchDestinations maps every input to its output under outDir. Inputs
// that share a file name would overwrite each other, so the batch is
// refused before any job runs.
func batchDestinations(outDir string, srcs []string) ([]string, error) {
	dsts := make([]string, len(srcs))
	seen := make(map[string]string, len(srcs))
	for i, src := range srcs {
		dst, err := destinationFor(outDir, src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", service.ErrInvalidRequest, src, err)
		}
		if prev, ok := seen[dst]; ok {
			return nil, fmt.Errorf("%w: %s and %s both write %s", service.ErrInvalidRequest, prev, src, dst)
		}
		seen[dst] = src
		dsts[i] = dst
	}
	return dsts, nil
}

// destinationFor places the output for src under outDir, keeping the
// source's base name. outDir may be a local directory or a storage URI.
func destinationFor(outDir, src string) (string, error) {
	loc, err := storage.ParsePathOrLocation(src)
	if err != nil {
		return "", err
	}
	base := path.Base(loc.Key)
	if loc.Scheme == storage.SchemeFile {
		base = filepath.Base(loc.Key)
	}
	if base == "." || base == "/" {
		return "", fmt.Errorf("%w: no file name in %q", storage.ErrInvalidLocation, src)
	}

	if strings.Contains(outDir, "://") {
		dir, err := storage.ParseLocation(strings.TrimSuffix(outDir, "/") + "/" + base)
		if err != nil {
			return "", err
		}
		return dir.String(), nil
	}
	return filepath.Join(outDir, base), nil
}
