package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/batchship/internal/app"
	"github.com/bft-labs/batchship/internal/cliconfig"
	"github.com/bft-labs/batchship/internal/metrics"
	"github.com/bft-labs/batchship/pkg/dispatch"
	logAdapter "github.com/bft-labs/batchship/pkg/log"
)

const helpDescription = `
Batch newline-delimited JSON records into DynamoDB tables or Kinesis streams.

Highlights:
  - Groups records into service-sized batches (BatchWriteItem, PutRecords).
  - Resends rejected records individually, or in shrinking batches for Kinesis, within bounded budgets.
  - Keeps float values exact by writing them as decimals.
  - Configure via file, env (BATCHSHIP_*), or flags.
`

var exampleUsage = strings.TrimSpace(`
  batchship dynamodb --table readings --primary-key pk < readings.ndjson
  batchship kinesis --stream events --input events.ndjson --follow
  batchship kinesis --stream events --endpoint-url http://localhost:4566 --metrics-addr :9100
`)

// maxRetryBackoff caps the wait between individual retries.
const maxRetryBackoff = 30 * time.Second

// errUndelivered is returned when a run finished but some records were lost.
var errUndelivered = errors.New("some records were not delivered")

// sinkFactory builds the dispatcher for one service.
type sinkFactory func(ctx context.Context, cfg cliconfig.Config, opts ...dispatch.Option) (app.Sink, error)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:          "batchship",
		Short:        "Batch records into DynamoDB tables or Kinesis streams",
		Long:         strings.TrimSpace(helpDescription),
		Example:      exampleUsage,
		Version:      fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage: true,
	}
	root.AddCommand(
		newServiceCommand(cliconfig.ServiceDynamoDB, "Write records to a DynamoDB table", bindDynamoDBFlags, newDynamoDBSink),
		newServiceCommand(cliconfig.ServiceKinesis, "Put records on a Kinesis stream", bindKinesisFlags, newKinesisSink),
	)

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("batchship")
		stop()
		os.Exit(1)
	}
}

func newServiceCommand(service, short string, bind func(*pflag.FlagSet, *cliconfig.Config), build sinkFactory) *cobra.Command {
	cfg := cliconfig.DefaultConfig(service)
	var cfgPath string

	cmd := &cobra.Command{
		Use:   service,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, &cfg, cfgPath); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, build)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.batchship/config.toml)")
	bind(fs, &cfg)
	bindSharedFlags(fs, &cfg)
	return cmd
}

func bindDynamoDBFlags(fs *pflag.FlagSet, cfg *cliconfig.Config) {
	fs.StringVar(&cfg.Table, "table", cfg.Table, "target table name")
	fs.StringVar(&cfg.PrimaryKey, "primary-key", cfg.PrimaryKey, "partition key attribute name")
	fs.StringVar(&cfg.KeyType, "key-type", cfg.KeyType, "partition key type when derived: string or number")
	fs.StringVar(&cfg.PartitionKeyLocation, "partition-key-location", cfg.PartitionKeyLocation, "field a missing primary key is copied from")
}

func bindKinesisFlags(fs *pflag.FlagSet, cfg *cliconfig.Config) {
	fs.StringVar(&cfg.Stream, "stream", cfg.Stream, "target stream name")
	fs.StringVar(&cfg.PartitionKeyField, "partition-key-field", cfg.PartitionKeyField, "record field used as the partition key")
	fs.IntVar(&cfg.NestedBatchRetries, "nested-batch-retries", cfg.NestedBatchRetries, "resends of failed records as smaller batches before falling back to PutRecord")
}

func bindSharedFlags(fs *pflag.FlagSet, cfg *cliconfig.Config) {
	fs.StringVarP(&cfg.Input, "input", "i", cfg.Input, "NDJSON input file, or - for stdin")
	fs.BoolVarP(&cfg.Follow, "follow", "f", cfg.Follow, "keep reading records appended to the input file")
	fs.BoolVar(&cfg.IdleFlush, "idle-flush", cfg.IdleFlush, "in follow mode, flush after each burst of appended records")

	fs.IntVar(&cfg.MaxBatchSize, "max-batch-size", cfg.MaxBatchSize, "records per batch request")
	fs.BoolVar(&cfg.FlushOnFull, "flush-on-full", cfg.FlushOnFull, "flush as soon as max-batch-size records are pending")
	fs.IntVar(&cfg.IndividualRetries, "individual-retries", cfg.IndividualRetries, "retries for each record sent on its own")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "initial wait between individual retries (0 retries immediately)")

	fs.StringVar(&cfg.Region, "region", cfg.Region, "AWS region (defaults to the SDK's resolution)")
	fs.StringVar(&cfg.EndpointURL, "endpoint-url", cfg.EndpointURL, "override the service endpoint, e.g. for LocalStack")

	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn, error")
}

// loadConfig applies the config file, then BATCHSHIP_* env vars, onto flag
// values the user did not set explicitly, and validates the result.
func loadConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) error {
	// Build set of changed flags
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	} else if !cliconfig.FileExists(cfgFile) {
		return fmt.Errorf("config file %s not found", cfgFile)
	}

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}

	return cfg.Validate()
}

func run(ctx context.Context, cfg cliconfig.Config, build sinkFactory) error {
	log := cfg.LeveledLogger()
	log.Info().Interface("config", cfg).Msg("configuration")
	logger := logAdapter.NewZerologAdapterWithLogger(log)

	collector := metrics.NewCollector()
	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithRecorder(collector.Recorder(cfg.Service, cfg.Target())),
	}
	if cfg.RetryBackoff > 0 {
		opts = append(opts, dispatch.WithRetryBackoff(cfg.RetryBackoff, maxRetryBackoff))
	}

	sink, err := build(ctx, cfg, opts...)
	if err != nil {
		return fmt.Errorf("create %s dispatcher: %w", cfg.Service, err)
	}

	if cfg.MetricsAddr != "" {
		srv := collector.Server(cfg.MetricsAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("metrics server shutdown")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
	}

	p := app.NewPipeline(app.Config{
		Input:     cfg.Input,
		Follow:    cfg.Follow,
		IdleFlush: cfg.IdleFlush,
	}, sink, logger)

	res, err := p.Run(ctx)
	if err != nil {
		return err
	}
	if lost := res.Stats.Dropped + res.Stats.LostInFailedBatches; lost > 0 {
		return fmt.Errorf("%w: %d of %d", errUndelivered, lost, res.Stats.Submitted)
	}
	return nil
}
