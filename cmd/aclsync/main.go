// aclsync reconciles the ACLs of a hierarchical blob store against the
// declared directories of a configuration document and applies only the
// differences.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/mwantia/aclsync/backend"
	"github.com/mwantia/aclsync/backend/address"
	"github.com/mwantia/aclsync/backend/retry"
	"github.com/mwantia/aclsync/config"
	"github.com/mwantia/aclsync/data"
	"github.com/mwantia/aclsync/log"
	"github.com/mwantia/aclsync/reconcile"
)

// usageError marks invalid invocations.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }
func (e *usageError) ExitCode() int { return 2 }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

type options struct {
	Backend     string
	AccountName string
	AccessKey   string
	Config      string

	ConnectionLimit   int
	Expect100Continue bool

	BatchSize  int
	Retries    int
	RetryDelay time.Duration

	LogLevel string
	LogFile  string
	LogJSON  bool
	NoColor  bool
	Quiet    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) (err error) {
	var opts options

	flagSet := pflag.NewFlagSet("aclsync", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&opts.Backend, "backend", "b", "memory://", "storage backend address (memory://, local://, sqlite://, postgres://, consul://, s3://, minio://)")
	flagSet.StringVarP(&opts.AccountName, "account-name", "a", "", "storage account name, overrides the address credentials")
	flagSet.StringVarP(&opts.AccessKey, "access-key", "k", "", "storage access key, overrides the address credentials")
	flagSet.StringVarP(&opts.Config, "config", "c", "", "path to the declared directories (.json, .jsonc, .yaml, .yml)")
	flagSet.IntVar(&opts.ConnectionLimit, "default-connection-limit", 0, "maximum concurrent connections per host (0 keeps the default)")
	flagSet.BoolVar(&opts.Expect100Continue, "expect-100-continue", false, "wait for '100 Continue' before sending request bodies")
	flagSet.IntVar(&opts.BatchSize, "batch-size", reconcile.DefaultBatchSize, "number of descendants updated concurrently")
	flagSet.IntVar(&opts.Retries, "retries", retry.DefaultRetries, "attempts per storage operation")
	flagSet.DurationVar(&opts.RetryDelay, "retry-delay", retry.DefaultBaseDelay, "base delay between attempts, multiplied by the attempt number")
	flagSet.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flagSet.StringVar(&opts.LogFile, "log-file", "", "additionally write logs to this file")
	flagSet.BoolVar(&opts.LogJSON, "log-json", false, "write logs as JSON lines")
	flagSet.BoolVar(&opts.NoColor, "no-color", false, "disable coloured terminal output")
	flagSet.BoolVarP(&opts.Quiet, "quiet", "q", false, "do not log to the terminal")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &usageError{err: err}
	}

	if flagSet.NArg() > 0 {
		return usagef("unexpected argument: %s", flagSet.Arg(0))
	}
	if opts.Config == "" {
		return usagef("missing required flag --config")
	}

	level, err := log.Parse(opts.LogLevel)
	if err != nil {
		return &usageError{err: err}
	}

	logger := log.NewLogger("aclsync", level, opts.LogFile, opts.Quiet)
	logger.JSON = opts.LogJSON
	logger.NoColor = opts.NoColor

	// Without terminal or file output failures would go unreported
	if opts.Quiet && opts.LogFile == "" {
		defer func() {
			var usage *usageError
			if err != nil && !errors.As(err, &usage) {
				fmt.Fprintf(stderr, "error: %v\n", err)
			}
		}()
	}

	directories, err := config.LoadDirectories(opts.Config)
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		return err
	}

	connection := &backend.ConnectionOptions{
		ConnectionLimit: opts.ConnectionLimit,
	}
	if flagSet.Changed("expect-100-continue") {
		connection.Expect100Continue = &opts.Expect100Continue
	}

	storage, err := address.Parse(ctx, opts.Backend, &address.Options{
		Connection:  connection,
		AccountName: opts.AccountName,
		AccessKey:   opts.AccessKey,
	})
	if err != nil {
		logger.Error("Failed to create backend: %v", err)
		return err
	}

	if err := storage.Open(ctx); err != nil {
		logger.Error("Failed to open backend '%s': %v", storage.Name(), err)
		return err
	}
	defer storage.Close(context.Background())

	retrying, err := retry.New(storage,
		retry.WithRetries(opts.Retries),
		retry.WithBaseDelay(opts.RetryDelay),
		retry.WithLogger(logger.Named("retry")),
	)
	if err != nil {
		return &usageError{err: err}
	}

	reconciler, err := reconcile.New(retrying, logger, reconcile.WithBatchSize(opts.BatchSize))
	if err != nil {
		if errors.Is(err, data.ErrBackendUnsupported) {
			logger.Error("Unable to reconcile using backend '%s': %v", storage.Name(), err)
			return err
		}
		return &usageError{err: err}
	}

	logger.Debug("Reconciling %d directories using backend '%s'", len(directories), storage.Name())

	result, err := reconciler.Run(ctx, directories)
	if err != nil {
		return err
	}

	logger.Info("Reconciled %d directories: %d applied, %d unchanged, %d items updated",
		len(result.Paths), result.Applied, result.Unchanged, result.Items)

	return nil
}
