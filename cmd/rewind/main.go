// Command rewind restores archived Kafka topic data from chunk files.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"rewind/internal/chunk"
	"rewind/internal/chunk/decode"
	"rewind/internal/fetch"
	"rewind/internal/logging"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug, // allow all levels; filtering done by ComponentFilterHandler
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "rewind",
		Short: "Restore archived Kafka topic data",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				filterHandler.SetLevel("replay", slog.LevelDebug)
				filterHandler.SetLevel("fetch", slog.LevelDebug)
			}
		},
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")

	catCmd := &cobra.Command{
		Use:   "cat <chunk-file>",
		Short: "Decode a local chunk file and print its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			withKeys, _ := cmd.Flags().GetBool("keys")
			return runCat(args[0], withKeys)
		},
	}
	catCmd.Flags().Bool("keys", false, "chunk was archived with record keys")

	replayCmd := newReplayCmd(logger)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(catCmd, replayCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runCat decodes one chunk file and prints a line per record:
// offset, key (or "-"), value.
func runCat(path string, withKeys bool) error {
	r, err := decode.OpenFile(path, withKeys)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	for {
		rec, err := r.Next()
		if errors.Is(err, chunk.ErrNoMoreRecords) {
			return nil
		}
		if err != nil {
			return err
		}
		key := "-"
		if rec.Key != nil {
			key = string(rec.Key)
		}
		fmt.Printf("%d\t%s\t%s\n", rec.Offset, key, rec.Value)
	}
}

// newOpener builds a chunk source from the replay command's flags, via
// the fetch factories' param-map convention.
func newOpener(ctx context.Context, cmd *cobra.Command, logger *slog.Logger) (fetch.Opener, error) {
	source, _ := cmd.Flags().GetString("source")

	params := map[string]string{}
	for flag, param := range map[string]string{
		"root":       "root",
		"bucket":     "bucket",
		"region":     "region",
		"endpoint":   "endpoint",
		"access-key": "access_key",
		"secret-key": "secret_key",
	} {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			params[param] = v
		}
	}
	if pathStyle, _ := cmd.Flags().GetBool("path-style"); pathStyle {
		params["path_style"] = "true"
	}

	factories := map[string]fetch.Factory{
		"s3":    fetch.NewS3Factory(),
		"local": fetch.NewLocalFactory(),
	}
	factory, ok := factories[source]
	if !ok {
		return nil, fmt.Errorf("unknown source type: %q", source)
	}
	return factory(ctx, params, logger)
}

func newReplayCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Produce archived records back into a Kafka cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			opener, err := newOpener(ctx, cmd, logger)
			if err != nil {
				return err
			}
			return runReplay(ctx, cmd, opener, logger)
		},
	}

	cmd.Flags().String("source", "s3", "chunk source type: s3 or local")
	cmd.Flags().String("root", "", "chunk directory (local source)")
	cmd.Flags().String("bucket", "", "bucket name (s3 source)")
	cmd.Flags().String("region", "", "bucket region (s3 source)")
	cmd.Flags().String("endpoint", "", "custom S3 endpoint (s3 source)")
	cmd.Flags().Bool("path-style", false, "use path-style S3 addressing (s3 source)")
	cmd.Flags().String("access-key", "", "static access key (s3 source)")
	cmd.Flags().String("secret-key", "", "static secret key (s3 source)")

	cmd.Flags().String("topic", "", "topic to restore (required)")
	cmd.Flags().Int32("partition", -1, "restrict replay to one partition (-1 = all)")
	cmd.Flags().String("prefix", "", "chunk key prefix to list")
	cmd.Flags().Bool("keys", false, "chunks were archived with record keys")
	cmd.Flags().Int("workers", 4, "partitions replayed concurrently")

	cmd.Flags().StringSlice("brokers", nil, "Kafka bootstrap brokers (required)")
	cmd.Flags().Bool("tls", false, "connect to Kafka over TLS")
	cmd.Flags().String("sasl-mechanism", "", "SASL mechanism: plain, scram-sha-256, scram-sha-512")
	cmd.Flags().String("sasl-user", "", "SASL user")
	cmd.Flags().String("sasl-password", "", "SASL password")

	_ = cmd.MarkFlagRequired("topic")
	_ = cmd.MarkFlagRequired("brokers")

	return cmd
}
